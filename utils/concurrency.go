package utils

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer enforces a randomized cooldown between consecutive fetches.
// Each Wait sleeps a uniformly random duration in [Min, Max].
type Pacer struct {
	Min time.Duration
	Max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPacer creates a Pacer for the [min, max] window. A max below min is
// clamped to min.
func NewPacer(min, max time.Duration) *Pacer {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &Pacer{
		Min: min,
		Max: max,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next cooldown without sleeping.
func (p *Pacer) Next() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Min + time.Duration(p.rnd.Int63n(int64(p.Max-p.Min)+1))
}

// Wait sleeps for the next cooldown or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return Sleep(ctx, p.Next())
}

// KeySet is a thread-safe set of string keys.
type KeySet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains returns true if the key is present.
func (s *KeySet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *KeySet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
