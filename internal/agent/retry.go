package agent

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	errRateLimited  = errors.New("rate limited (429)")
	errServerError  = errors.New("server error (5xx)")
	errMaxRetries   = errors.New("maximum retries exceeded")
)

// RetryConfig controls the model client's exponential backoff.
type RetryConfig struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
}

// DefaultRetryConfig is the model client's default backoff policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     5,
		InitialDelay:   1 * time.Second,
		MaxDelay:       60 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.3,
	}
}

// retrier implements exponential backoff with jitter around one model call.
type retrier struct {
	config RetryConfig
	rng    *rand.Rand
}

func newRetrier(config RetryConfig) *retrier {
	return &retrier{config: config, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (r *retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
		if attempt == r.config.MaxRetries {
			break
		}

		delay := r.calculateDelay(attempt)
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying model call")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return errors.Join(errMaxRetries, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())

	if strings.Contains(s, "429") || strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests") || errors.Is(err, errRateLimited) {
		return true
	}
	if strings.Contains(s, "500") || strings.Contains(s, "502") || strings.Contains(s, "503") || strings.Contains(s, "504") || errors.Is(err, errServerError) {
		return true
	}
	if strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded") || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if strings.Contains(s, "connection refused") || strings.Contains(s, "connection reset") || strings.Contains(s, "no such host") {
		return true
	}
	if strings.Contains(s, "overloaded") || strings.Contains(s, "capacity") {
		return true
	}
	return false
}

func (r *retrier) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	jitterRange := delay * r.config.JitterFraction
	delay += (r.rng.Float64() * 2 * jitterRange) - jitterRange

	if delay < float64(100*time.Millisecond) {
		delay = float64(100 * time.Millisecond)
	}
	return time.Duration(delay)
}
