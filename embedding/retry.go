package embedding

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RetryMiddleware retries failed batches with capped exponential backoff.
// Only ErrEmbeddingService failures are retried; cancellation is not.
func RetryMiddleware(cfg RetryConfig) Middleware {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}

	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}

	return func(next Embedder) Embedder {
		if cfg.Attempts <= 0 {
			return next
		}

		return &retryMiddleware{
			cfg:  cfg,
			log:  zap.L().With(zap.String("component", "embedding"), zap.String("embedder", next.Name())),
			next: next,
		}
	}
}

type retryMiddleware struct {
	cfg  RetryConfig
	log  *zap.Logger
	next Embedder
}

func (mw *retryMiddleware) Name() string {
	return mw.next.Name()
}

func (mw *retryMiddleware) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var err error
	for attempt := 0; ; attempt++ {
		var vectors [][]float32
		vectors, err = mw.next.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}

		if attempt >= mw.cfg.Attempts || !errors.Is(err, ErrEmbeddingService) {
			return nil, err
		}

		delay := Backoff(attempt, mw.cfg.BaseDelay, mw.cfg.MaxDelay)

		mw.log.Warn("embedding failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()

		case <-timer.C:
		}
	}
}

// Backoff returns base * 2^attempt capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}

	return min(d, max)
}
