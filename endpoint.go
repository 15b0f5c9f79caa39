package ragblade

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
)

type EndpointSet struct {
	Ingest              endpoint.Endpoint
	Retrieve            endpoint.Endpoint
	SearchCompanyPolicy endpoint.Endpoint
}

func MakeEndpoints(svc Service) *EndpointSet {
	return &EndpointSet{
		Ingest:              IngestEndpoint(svc),
		Retrieve:            RetrieveEndpoint(svc),
		SearchCompanyPolicy: SearchCompanyPolicyEndpoint(svc),
	}
}

type IngestRequest struct {
	Paths []string `json:"paths,omitempty"`
}

type IngestResponse struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

func IngestEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(IngestRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		count, err := svc.Ingest(ctx, req.Paths)
		if err != nil {
			return nil, err
		}

		return IngestResponse{
			Count:   count,
			Message: "Indexed the documents successfully.",
		}, nil
	}
}

type RetrieveRequest struct {
	Query string `json:"query" form:"query"`
	K     int    `json:"k,omitempty" form:"k"`
}

func RetrieveEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(RetrieveRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Retrieve(ctx, req.Query, req.K)
	}
}

type SearchCompanyPolicyRequest struct {
	Query string `json:"query" form:"query"`
	Limit int    `json:"limit,omitempty" form:"limit"`
}

func SearchCompanyPolicyEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(SearchCompanyPolicyRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.SearchCompanyPolicy(ctx, req.Query, req.Limit)
	}
}
