package infrastructure

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// retryPolicy is the reconnect schedule shared by postgres and nats.
type retryPolicy struct {
	maxRetry  int
	factor    float64
	minJitter time.Duration
	maxJitter time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func newRetryPolicy(maxRetry int, factor float64, minJitter, maxJitter time.Duration, defaults *retryPolicy) *retryPolicy {
	p := &retryPolicy{
		maxRetry:  maxRetry,
		factor:    factor,
		minJitter: minJitter,
		maxJitter: maxJitter,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if p.maxRetry < 0 {
		p.maxRetry = 0
	}
	if p.maxRetry == 0 {
		p.maxRetry = defaults.maxRetry
	}
	if p.factor < 1 {
		p.factor = defaults.factor
	}
	if p.minJitter <= 0 {
		p.minJitter = defaults.minJitter
	}
	if p.maxJitter <= 0 {
		p.maxJitter = defaults.maxJitter
	}
	if p.maxJitter < p.minJitter {
		p.maxJitter = p.minJitter
	}

	return p
}

// delay is safe to call from the nats reconnect goroutine.
func (p *retryPolicy) delay(attempt int) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return backoffWithJitter(attempt, p.factor, p.minJitter, p.maxJitter, p.rng)
}

func backoffWithJitter(attempt int, factor float64, min, max time.Duration, rng *rand.Rand) time.Duration {
	backoff := float64(min) * math.Pow(factor, float64(attempt))
	if backoff > float64(max) {
		backoff = float64(max)
	}

	base := time.Duration(backoff)
	if max <= min {
		return base
	}

	jitter := time.Duration(rng.Int63n(int64(max-min) + 1))
	if base+jitter > max {
		return max
	}

	return base + jitter
}
