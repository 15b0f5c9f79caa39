package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/flarexio/ragblade"
	"github.com/flarexio/ragblade/document"
	"github.com/flarexio/ragblade/vector"
)

// StatusCode maps service errors onto HTTP statuses.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ragblade.ErrRetrievalUnavailable):
		return http.StatusServiceUnavailable

	case errors.Is(err, ragblade.ErrEmptyQuery),
		errors.Is(err, ragblade.ErrNoDocuments),
		errors.Is(err, vector.ErrInvalidK),
		errors.Is(err, document.ErrUnsupportedFormat):
		return http.StatusBadRequest

	default:
		return http.StatusExpectationFailed
	}
}

func IngestHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragblade.IngestRequest

		// an empty body ingests the configured documents
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			c.String(StatusCode(err), err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func RetrieveHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragblade.RetrieveRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			c.String(StatusCode(err), err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func SearchCompanyPolicyHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragblade.SearchCompanyPolicyRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			c.String(StatusCode(err), err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		text, ok := resp.(string)
		if !ok {
			err := errors.New("invalid response type")
			c.String(http.StatusInternalServerError, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		c.String(http.StatusOK, text)
	}
}
