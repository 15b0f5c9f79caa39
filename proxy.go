package ragblade

import (
	"context"
	"errors"
)

// ProxyMiddleware forwards every call to remote endpoints, typically the
// NATS client side of a running ragblade service.
func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

type proxyMiddleware struct {
	endpoints *EndpointSet
}

func (mw *proxyMiddleware) Close() error {
	return errors.New("method not implemented")
}

func (mw *proxyMiddleware) Ingest(ctx context.Context, paths []string) (int, error) {
	req := IngestRequest{
		Paths: paths,
	}

	resp, err := mw.endpoints.Ingest(ctx, req)
	if err != nil {
		return 0, err
	}

	result, ok := resp.(IngestResponse)
	if !ok {
		return 0, errors.New("invalid response type")
	}

	return result.Count, nil
}

func (mw *proxyMiddleware) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	req := RetrieveRequest{
		Query: query,
		K:     k,
	}

	resp, err := mw.endpoints.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	passages, ok := resp.([]Passage)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return passages, nil
}

func (mw *proxyMiddleware) SearchCompanyPolicy(ctx context.Context, query string, limit int) (string, error) {
	req := SearchCompanyPolicyRequest{
		Query: query,
		Limit: limit,
	}

	resp, err := mw.endpoints.SearchCompanyPolicy(ctx, req)
	if err != nil {
		return "", err
	}

	result, ok := resp.(string)
	if !ok {
		return "", errors.New("invalid response type")
	}

	return result, nil
}
