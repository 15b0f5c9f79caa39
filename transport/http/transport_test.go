package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/flarexio/ragblade"
	"github.com/flarexio/ragblade/embedding"
	"github.com/flarexio/ragblade/embedding/hashing"
	"github.com/flarexio/ragblade/persistence/flat"

	mcpE "github.com/flarexio/ragblade/mcp"
)

type httpTransportTestSuite struct {
	suite.Suite
	svc    ragblade.Service
	router *gin.Engine
	policy string
}

func (suite *httpTransportTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	dir := suite.T().TempDir()

	suite.policy = filepath.Join(dir, "hr_policy.txt")
	err := os.WriteFile(suite.policy, []byte("Employees get 20 days PTO."), 0o644)
	suite.Require().NoError(err)

	cfg := ragblade.DefaultConfig()
	cfg.Embedder.Provider = embedding.ProviderHashing
	cfg.Index.Location = filepath.Join(dir, "index")
	cfg.Ingest.Paths = []string{suite.policy}

	store, err := flat.NewStore(flat.Options{Metric: cfg.Index.Metric})
	suite.Require().NoError(err)

	svc, err := ragblade.NewService(context.Background(), cfg, ragblade.Components{
		Embedder: hashing.NewEmbedder(64),
		Store:    store,
	})
	suite.Require().NoError(err)

	r := gin.New()
	AddRouters(r, ragblade.MakeEndpoints(svc))
	AddStreamableRouters(r, mcpE.MakeEndpoints(svc))

	suite.svc = svc
	suite.router = r
}

func (suite *httpTransportTestSuite) TearDownTest() {
	suite.svc.Close()
}

func (suite *httpTransportTestSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *httpTransportTestSuite) TestSearchBeforeIngest() {
	w := suite.do(http.MethodGet, "/api/search?query=vacation", "")
	suite.Equal(http.StatusServiceUnavailable, w.Code)
	suite.Contains(w.Body.String(), "run ingestion first")
}

func (suite *httpTransportTestSuite) TestIngestDefaultsAndSearch() {
	w := suite.do(http.MethodPost, "/api/ingest", "")
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp ragblade.IngestResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(1, resp.Count)
	suite.Equal("Indexed the documents successfully.", resp.Message)

	w = suite.do(http.MethodGet, "/api/search?query="+url.QueryEscape("how many vacation days?")+"&limit=1", "")
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("Source: "+suite.policy+"\nContent: Employees get 20 days PTO.\n\n", w.Body.String())

	w = suite.do(http.MethodGet, "/api/retrieve?query=vacation&k=5", "")
	suite.Require().Equal(http.StatusOK, w.Code)

	var passages []ragblade.Passage
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &passages))
	suite.Len(passages, 1)
	suite.Equal(suite.policy, passages[0].Source)
}

func (suite *httpTransportTestSuite) TestIngestExplicitPaths() {
	body := `{"paths":["` + filepath.ToSlash(suite.policy) + `"]}`

	w := suite.do(http.MethodPost, "/api/ingest", body)
	suite.Equal(http.StatusOK, w.Code, w.Body.String())

	w = suite.do(http.MethodPost, "/api/ingest", `{"paths":["budget.xlsx"]}`)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodPost, "/api/ingest", `{"paths":`)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *httpTransportTestSuite) TestRetrieveEmptyQuery() {
	w := suite.do(http.MethodGet, "/api/retrieve", "")
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *httpTransportTestSuite) TestMCPToolCall() {
	w := suite.do(http.MethodPost, "/api/ingest", "")
	suite.Require().Equal(http.StatusOK, w.Code)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"search_company_policy","arguments":{"query":"vacation","limit":1}}}`
	w = suite.do(http.MethodPost, "/mcp/", body)
	suite.Require().Equal(http.StatusOK, w.Code)

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.False(resp.Result.IsError)
	suite.Require().Len(resp.Result.Content, 1)
	suite.Equal("Source: "+suite.policy+"\nContent: Employees get 20 days PTO.\n\n", resp.Result.Content[0].Text)
}

func (suite *httpTransportTestSuite) TestMCPProtocol() {
	w := suite.do(http.MethodPost, "/mcp/", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	suite.Equal(http.StatusAccepted, w.Code)

	w = suite.do(http.MethodPost, "/mcp/", `{"jsonrpc":"2.0","id":2,"method":"resources/list"}`)
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.do(http.MethodPost, "/mcp/", `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "search_company_policy")
}

func TestHTTPTransportTestSuite(t *testing.T) {
	suite.Run(t, new(httpTransportTestSuite))
}
