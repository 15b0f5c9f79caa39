package embedding

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware throttles provider calls with a token bucket. One
// batch consumes one token.
func RateLimitMiddleware(cfg RateLimitConfig) Middleware {
	return func(next Embedder) Embedder {
		if cfg.RPS <= 0 {
			return next
		}

		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}

		return &rateLimitMiddleware{
			limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
			next:    next,
		}
	}
}

type rateLimitMiddleware struct {
	limiter *rate.Limiter
	next    Embedder
}

func (mw *rateLimitMiddleware) Name() string {
	return mw.next.Name()
}

func (mw *rateLimitMiddleware) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := mw.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return mw.next.Embed(ctx, texts)
}
