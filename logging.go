package ragblade

import (
	"context"

	"go.uber.org/zap"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "ragblade"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) Ingest(ctx context.Context, paths []string) (int, error) {
	log := mw.log.With(
		zap.String("action", "ingest"),
		zap.Strings("paths", paths),
	)

	count, err := mw.next.Ingest(ctx, paths)
	if err != nil {
		log.Error(err.Error())
		return 0, err
	}

	log.Info("documents ingested", zap.Int("chunks", count))
	return count, nil
}

func (mw *loggingMiddleware) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	log := mw.log.With(
		zap.String("action", "retrieve"),
		zap.String("query", query),
	)

	if k > 0 {
		log = log.With(
			zap.Int("k", k),
		)
	}

	passages, err := mw.next.Retrieve(ctx, query, k)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("passages retrieved", zap.Int("passages", len(passages)))
	return passages, nil
}

func (mw *loggingMiddleware) SearchCompanyPolicy(ctx context.Context, query string, limit int) (string, error) {
	log := mw.log.With(
		zap.String("action", "search_company_policy"),
		zap.String("query", query),
		zap.Int("limit", limit),
	)

	result, err := mw.next.SearchCompanyPolicy(ctx, query, limit)
	if err != nil {
		log.Error(err.Error())
		return "", err
	}

	log.Info("policy searched", zap.Int("bytes", len(result)))
	return result, nil
}
