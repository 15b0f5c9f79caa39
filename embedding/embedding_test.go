package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	calls   int
	failFor int
	err     error
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failFor {
		return nil, f.err
	}

	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1}
	}

	return vectors, nil
}

func TestRetryMiddlewareDisabledByDefault(t *testing.T) {
	next := &fakeEmbedder{failFor: 1, err: ErrEmbeddingService}
	e := RetryMiddleware(RetryConfig{})(next)

	_, err := e.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrEmbeddingService)
	assert.Equal(t, 1, next.calls)
}

func TestRetryMiddlewareRecovers(t *testing.T) {
	next := &fakeEmbedder{failFor: 2, err: ErrEmbeddingService}
	e := RetryMiddleware(RetryConfig{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})(next)

	vectors, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, "fake", e.Name())
}

func TestRetryMiddlewareGivesUp(t *testing.T) {
	next := &fakeEmbedder{failFor: 10, err: ErrEmbeddingService}
	e := RetryMiddleware(RetryConfig{Attempts: 2, BaseDelay: time.Millisecond})(next)

	_, err := e.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrEmbeddingService)
	assert.Equal(t, 3, next.calls)
}

func TestRetryMiddlewareSkipsOtherErrors(t *testing.T) {
	next := &fakeEmbedder{failFor: 10, err: errors.New("bad input")}
	e := RetryMiddleware(RetryConfig{Attempts: 5, BaseDelay: time.Millisecond})(next)

	_, err := e.Embed(context.Background(), []string{"a"})
	assert.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestRetryMiddlewareCanceled(t *testing.T) {
	next := &fakeEmbedder{failFor: 10, err: ErrEmbeddingService}
	e := RetryMiddleware(RetryConfig{Attempts: 5, BaseDelay: time.Hour})(next)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := e.Embed(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, next.calls)
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	assert.Equal(t, 100*time.Millisecond, Backoff(0, base, max))
	assert.Equal(t, 200*time.Millisecond, Backoff(1, base, max))
	assert.Equal(t, 800*time.Millisecond, Backoff(3, base, max))
	assert.Equal(t, time.Second, Backoff(4, base, max))
	assert.Equal(t, time.Second, Backoff(60, base, max))
}

func TestRateLimitMiddleware(t *testing.T) {
	next := &fakeEmbedder{}

	assert.Same(t, Embedder(next), RateLimitMiddleware(RateLimitConfig{})(next))

	e := RateLimitMiddleware(RateLimitConfig{RPS: 1000, Burst: 2})(next)
	for i := 0; i < 3; i++ {
		_, err := e.Embed(context.Background(), []string{"a"})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, next.calls)
}

func TestCheck(t *testing.T) {
	dim, err := Check([]string{"a", "b"}, [][]float32{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 2, dim)

	_, err = Check([]string{"a", "b"}, [][]float32{{1, 2}})
	assert.ErrorIs(t, err, ErrEmbeddingService)

	_, err = Check([]string{"a", "b"}, [][]float32{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrEmbeddingService)

	_, err = Check([]string{"a"}, [][]float32{{}})
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Provider: ProviderHashing}.Validate())
	assert.ErrorIs(t, Config{Provider: "cohere"}.Validate(), ErrUnknownProvider)
	assert.Error(t, Config{Provider: ProviderOpenAI, Retry: RetryConfig{Attempts: -1}}.Validate())
}
