package scanledger

import (
	"context"
	"sync"
)

// InMemoryStore keeps the ledger in process memory, indexed per code for the
// O(1) prior-scan lookup the verification hot path needs.
type InMemoryStore struct {
	mu     sync.RWMutex
	byCode map[string][]ScanRecord
}

// NewInMemoryStore creates an empty ledger.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byCode: make(map[string][]ScanRecord)}
}

func (s *InMemoryStore) Append(_ context.Context, record ScanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCode[record.Code] = append(s.byCode[record.Code], record)
	return nil
}

func (s *InMemoryStore) HasPriorScan(_ context.Context, code string) (bool, *ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.byCode[code]
	if len(records) == 0 {
		return false, nil, nil
	}
	first := records[0]
	return true, &first, nil
}

func (s *InMemoryStore) ListByCode(_ context.Context, code string) ([]ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ScanRecord{}, s.byCode[code]...), nil
}
