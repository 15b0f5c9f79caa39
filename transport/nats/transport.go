package nats

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/ragblade"
	"github.com/flarexio/ragblade/document"
	"github.com/flarexio/ragblade/vector"
)

const (
	CodeBadRequest  = "400"
	CodeFailed      = "417"
	CodeInternal    = "500"
	CodeUnavailable = "503"
)

// ErrorCode maps service errors onto the status codes carried in micro
// error headers. The codes follow the HTTP transport.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ragblade.ErrRetrievalUnavailable):
		return CodeUnavailable

	case errors.Is(err, ragblade.ErrEmptyQuery),
		errors.Is(err, ragblade.ErrNoDocuments),
		errors.Is(err, vector.ErrInvalidK),
		errors.Is(err, document.ErrUnsupportedFormat):
		return CodeBadRequest

	default:
		return CodeFailed
	}
}

func IngestHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req ragblade.IngestRequest
		if data := r.Data(); len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				r.Error(CodeBadRequest, err.Error(), nil)
				return
			}
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			r.Error(ErrorCode(err), err.Error(), nil)
			return
		}

		r.RespondJSON(&resp)
	}
}

func RetrieveHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req ragblade.RetrieveRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error(CodeBadRequest, err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			r.Error(ErrorCode(err), err.Error(), nil)
			return
		}

		passages, ok := resp.([]ragblade.Passage)
		if !ok {
			r.Error(CodeInternal, "invalid response type", nil)
			return
		}

		r.RespondJSON(&passages)
	}
}

func SearchCompanyPolicyHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req ragblade.SearchCompanyPolicyRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error(CodeBadRequest, err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			r.Error(ErrorCode(err), err.Error(), nil)
			return
		}

		text, ok := resp.(string)
		if !ok {
			r.Error(CodeInternal, "invalid response type", nil)
			return
		}

		r.Respond([]byte(text))
	}
}
