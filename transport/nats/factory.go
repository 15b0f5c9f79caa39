package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/ragblade"
)

func MakeEndpoints(nc *nats.Conn, prefix string) *ragblade.EndpointSet {
	return &ragblade.EndpointSet{
		Ingest:              IngestEndpoint(nc, prefix+".ingest"),
		Retrieve:            RetrieveEndpoint(nc, prefix+".retrieve"),
		SearchCompanyPolicy: SearchCompanyPolicyEndpoint(nc, prefix+".search_company_policy"),
	}
}

// roundTrip sends data and returns the reply payload, turning micro error
// headers back into errors. Ingestion can outlast nats.DefaultTimeout, so
// the context deadline wins when one is set.
func roundTrip(ctx context.Context, nc *nats.Conn, topic string, data []byte) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, nats.DefaultTimeout)
		defer cancel()
	}

	resp, err := nc.RequestWithContext(ctx, topic, data)
	if err != nil {
		return nil, err
	}

	if err := Error(resp); err != nil {
		return nil, err
	}

	return resp.Data, nil
}

func IngestEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ragblade.IngestRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		respData, err := roundTrip(ctx, nc, topic, data)
		if err != nil {
			return nil, err
		}

		var resp ragblade.IngestResponse
		if err := json.Unmarshal(respData, &resp); err != nil {
			return nil, err
		}

		return resp, nil
	}
}

func RetrieveEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ragblade.RetrieveRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		respData, err := roundTrip(ctx, nc, topic, data)
		if err != nil {
			return nil, err
		}

		var passages []ragblade.Passage
		if err := json.Unmarshal(respData, &passages); err != nil {
			return nil, err
		}

		return passages, nil
	}
}

func SearchCompanyPolicyEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ragblade.SearchCompanyPolicyRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		respData, err := roundTrip(ctx, nc, topic, data)
		if err != nil {
			return nil, err
		}

		return string(respData), nil
	}
}

// Error decodes the error headers set by a micro handler. A 503 maps back
// to ragblade.ErrRetrievalUnavailable so callers can match it.
func Error(msg *nats.Msg) error {
	if msg == nil {
		return errors.New("nil message")
	}

	code := msg.Header.Get(micro.ErrorCodeHeader)
	if code == "" {
		return nil
	}

	description := msg.Header.Get(micro.ErrorHeader)
	if description == "" {
		description = "unknown error"
	}

	if code == CodeUnavailable {
		return fmt.Errorf("%w: %s", ragblade.ErrRetrievalUnavailable, description)
	}

	return errors.New(code + ":" + description)
}
