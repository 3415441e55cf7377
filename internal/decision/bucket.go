package decision

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Bucket describes a token bucket: Refill tokens are added every Interval, up to Capacity.
type Bucket struct {
	Capacity int
	Refill   int
	Interval time.Duration
}

func (b Bucket) perSecond() float64 {
	return float64(b.Refill) / b.Interval.Seconds()
}

type Take struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// BucketStore keeps bucket state per key.
type BucketStore interface {
	Take(ctx context.Context, key string, cost int, b Bucket) (Take, error)
}

// TokenBucketRule rate limits by client IP.
type TokenBucketRule struct {
	bucket Bucket
	store  BucketStore
}

func NewTokenBucketRule(b Bucket, store BucketStore) *TokenBucketRule {
	return &TokenBucketRule{bucket: b, store: store}
}

func (t *TokenBucketRule) Name() string { return "token_bucket" }

func (t *TokenBucketRule) Evaluate(ctx context.Context, d Details, cost int) (RuleResult, error) {
	if cost < 1 {
		cost = 1
	}
	key := fmt.Sprintf("ratelimit:%s", d.IP)

	take, err := t.store.Take(ctx, key, cost, t.bucket)
	if err != nil {
		return RuleResult{}, err
	}

	reason := Reason{
		Kind:         ReasonRateLimit,
		Remaining:    take.Remaining,
		ResetSeconds: int(math.Ceil(take.ResetIn.Seconds())),
	}
	conclusion := Allow
	if !take.Allowed {
		conclusion = Deny
	}
	return RuleResult{Rule: t.Name(), Conclusion: conclusion, Reason: reason}, nil
}
