package store

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type nonceEntry struct {
	clientIP string
	expires  time.Time
}

type limiterEntry struct {
	limiter   *rate.Limiter
	perMinute int
	lastSeen  time.Time
}

// MemoryStore is a single-process Store. Idle limiters and expired nonces
// are swept by a janitor goroutine until Close.
type MemoryStore struct {
	mu       sync.Mutex
	nonces   map[string]nonceEntry
	limiters map[string]*limiterEntry
	idleTTL  time.Duration
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

var _ Store = (*MemoryStore)(nil)

func NewMemory() *MemoryStore {
	s := newMemory(time.Now)
	go s.janitor(time.Minute)
	return s
}

func newMemory(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		nonces:   make(map[string]nonceEntry),
		limiters: make(map[string]*limiterEntry),
		idleTTL:  15 * time.Minute,
		now:      now,
		done:     make(chan struct{}),
	}
}

func (s *MemoryStore) IssueNonce(_ context.Context, clientIP string, ttl time.Duration) (string, error) {
	nonce := newNonce()
	s.mu.Lock()
	s.nonces[nonce] = nonceEntry{clientIP: clientIP, expires: s.now().Add(ttl)}
	s.mu.Unlock()
	return nonce, nil
}

func (s *MemoryStore) ConsumeNonce(_ context.Context, nonce, clientIP string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.nonces[nonce]
	if !ok {
		return false, nil
	}
	delete(s.nonces, nonce)
	if s.now().After(e.expires) {
		return false, nil
	}
	return e.clientIP == clientIP, nil
}

func (s *MemoryStore) IsRateLimited(_ context.Context, id string, perMinute int) (bool, error) {
	if perMinute <= 0 {
		return false, nil
	}
	now := s.now()
	s.mu.Lock()
	e, ok := s.limiters[id]
	if !ok || e.perMinute != perMinute {
		e = &limiterEntry{
			limiter:   rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute),
			perMinute: perMinute,
		}
		s.limiters[id] = e
	}
	e.lastSeen = now
	s.mu.Unlock()
	return !e.limiter.AllowN(now, 1), nil
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for n, e := range s.nonces {
		if now.After(e.expires) {
			delete(s.nonces, n)
		}
	}
	for id, e := range s.limiters {
		if now.Sub(e.lastSeen) > s.idleTTL {
			delete(s.limiters, id)
		}
	}
}
