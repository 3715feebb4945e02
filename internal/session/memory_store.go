package session

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	payload   Payload
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Intended for tests and
// single-node development; the contract matches the durable backends.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	now     func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord), now: time.Now}
}

// WithClock overrides the time source. Used by expiry tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Get(ctx context.Context, sid string) (Payload, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[sid]
	if !ok {
		return Payload{}, false, nil
	}
	if !rec.expiresAt.After(s.now()) {
		delete(s.records, sid)
		return Payload{}, false, nil
	}
	return clonePayload(rec.payload), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, sid string, p Payload, hint ExpiryHint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sid] = memoryRecord{payload: clonePayload(p), expiresAt: hint.Deadline(s.now())}
	return nil
}

func (s *MemoryStore) Touch(ctx context.Context, sid string, hint ExpiryHint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[sid]
	if !ok {
		return nil
	}
	rec.expiresAt = hint.Deadline(s.now())
	s.records[sid] = rec
	return nil
}

func (s *MemoryStore) Destroy(ctx context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sid)
	return nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *MemoryStore) All(ctx context.Context) (map[string]Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make(map[string]Payload)
	for sid, rec := range s.records {
		if rec.expiresAt.After(now) {
			out[sid] = clonePayload(rec.payload)
		}
	}
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]memoryRecord)
	return nil
}

var _ Store = (*MemoryStore)(nil)
