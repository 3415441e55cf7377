package decision

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	sweepEvery = time.Minute
	idleAfter  = 5 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryBucketStore keeps one rate.Limiter per key in process memory.
// Idle keys are swept lazily while taking tokens.
type MemoryBucketStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryBucketStore() *MemoryBucketStore {
	return &MemoryBucketStore{
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (m *MemoryBucketStore) Take(_ context.Context, key string, cost int, b Bucket) (Take, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	v, exists := m.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(b.perSecond()), b.Capacity)}
		m.visitors[key] = v
	}
	v.lastSeen = now

	allowed := v.limiter.AllowN(now, cost)
	tokens := v.limiter.TokensAt(now)

	take := Take{Allowed: allowed, Remaining: int(tokens)}
	if tokens < 0 {
		take.Remaining = 0
	}
	if missing := float64(cost) - tokens; missing > 0 {
		take.ResetIn = time.Duration(missing / b.perSecond() * float64(time.Second))
	}
	return take, nil
}

func (m *MemoryBucketStore) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < sweepEvery {
		return
	}
	for key, v := range m.visitors {
		if now.Sub(v.lastSeen) > idleAfter {
			delete(m.visitors, key)
		}
	}
	m.lastSweep = now
}

// Len reports the number of tracked keys.
func (m *MemoryBucketStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visitors)
}
