package batch

import (
	"context"
	"sort"
	"sync"
	"time"

	"veritag/pkg/domain"
	"veritag/pkg/platform/sentinel"
)

// InMemoryStore keeps batches and codes in process memory. Code strings are
// globally unique across the whole registry, so the code index is one flat
// map, not per batch.
type InMemoryStore struct {
	mu           sync.RWMutex
	batches      map[domain.BatchID]*Batch
	batchNumbers map[string]domain.BatchID
	codes        map[string]*Code
	codesByBatch map[domain.BatchID][]string
	sequences    map[string]int
}

// NewInMemoryStore creates an empty registry store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		batches:      make(map[domain.BatchID]*Batch),
		batchNumbers: make(map[string]domain.BatchID),
		codes:        make(map[string]*Code),
		codesByBatch: make(map[domain.BatchID][]string),
		sequences:    make(map[string]int),
	}
}

func (s *InMemoryStore) ReserveSequences(_ context.Context, key string, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := s.sequences[key] + 1
	s.sequences[key] += n
	return first, nil
}

func (s *InMemoryStore) CreateBatch(_ context.Context, b *Batch, codes []Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batchNumbers[b.BatchNumber]; exists {
		return sentinel.ErrConflict
	}
	for i := range codes {
		if _, exists := s.codes[codes[i].Value]; exists {
			return sentinel.ErrConflict
		}
	}

	// Checks passed: commit everything.
	stored := *b
	s.batches[b.ID] = &stored
	s.batchNumbers[b.BatchNumber] = b.ID
	values := make([]string, 0, len(codes))
	for i := range codes {
		c := codes[i]
		s.codes[c.Value] = &c
		values = append(values, c.Value)
	}
	s.codesByBatch[b.ID] = values
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.BatchID) (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *b
	return &out, nil
}

func (s *InMemoryStore) FindCode(_ context.Context, code string) (*Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.codes[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *InMemoryStore) ListCodes(_ context.Context, id domain.BatchID) ([]Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.batches[id]; !ok {
		return nil, sentinel.ErrNotFound
	}
	values := s.codesByBatch[id]
	out := make([]Code, 0, len(values))
	for _, v := range values {
		out = append(out, *s.codes[v])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, id domain.BatchID, validate func(*Batch) error, mutate func(*Batch)) (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(b); err != nil {
		return nil, err
	}
	mutate(b)
	out := *b
	return &out, nil
}

func (s *InMemoryStore) ClaimFirstUse(_ context.Context, code string, scannedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return sentinel.ErrNotFound
	}
	switch c.Status {
	case CodeStatusActive:
		c.Status = CodeStatusScanned
		at := scannedAt
		c.ScannedAt = &at
		return nil
	case CodeStatusScanned:
		return sentinel.ErrAlreadyUsed
	default:
		return sentinel.ErrInvalidState
	}
}

func (s *InMemoryStore) RevokeCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.Status = CodeStatusRevoked
	return nil
}

func (s *InMemoryStore) ExpireCodes(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flipped := 0
	for id, b := range s.batches {
		if !b.Expired(now) {
			continue
		}
		for _, v := range s.codesByBatch[id] {
			if c := s.codes[v]; c.Status == CodeStatusActive {
				c.Status = CodeStatusExpired
				flipped++
			}
		}
	}
	return flipped, nil
}
