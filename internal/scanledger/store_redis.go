package scanledger

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var priorScanCheckDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "veritag_prior_scan_check_duration_ms",
	Help:    "Latency of shared prior-scan index checks in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const scannedKeyPrefix = "scan:code:"

// RedisScanIndex is a shared fast-path marker of already-scanned codes for
// multi-instance deployments. The durable ledger stays authoritative; the
// index only lets instances agree on "seen before" without a database round
// trip. Entries carry the code's remaining shelf life as TTL because a scan
// after expiry resolves to an expired verdict regardless.
type RedisScanIndex struct {
	client *redis.Client
}

// NewRedisScanIndex constructs an index on the given client.
func NewRedisScanIndex(client *redis.Client) *RedisScanIndex {
	return &RedisScanIndex{client: client}
}

// MarkScanned records that a code has had its first valid use.
func (i *RedisScanIndex) MarkScanned(ctx context.Context, code string, ttl time.Duration) error {
	if code == "" {
		return nil
	}
	return i.client.Set(ctx, scannedKeyPrefix+code, "1", ttl).Err()
}

// IsScanned reports whether a first valid use has been recorded for the code.
// A missing key means "not scanned here": callers still consult the ledger.
func (i *RedisScanIndex) IsScanned(ctx context.Context, code string) (bool, error) {
	start := time.Now()
	defer func() {
		priorScanCheckDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if code == "" {
		return false, nil
	}
	_, err := i.client.Get(ctx, scannedKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
