package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer builds a Server with routes wired but without the
// sqlite activity store or file watcher, the way NewServer would start
// them — handler tests exercise request validation and JSON shape, not
// the engine itself (that is internal/claude's job).
func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	s := &Server{
		router: gin.New(),
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer()
	w := doRequest(s, http.MethodGet, "/api/v1/health")

	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "claude-session-manager", resp.Service)
}

func TestLoadProjectSessionsHandlerRequiresProjectDir(t *testing.T) {
	s := newTestServer()
	w := doRequest(s, http.MethodGet, "/api/v1/sessions")

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "project_dir is required", resp.Error)
}

func TestLoadSessionMessagesHandlerRequiresSessionPath(t *testing.T) {
	s := newTestServer()
	w := doRequest(s, http.MethodGet, "/api/v1/sessions/messages")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchHandlerRequiresCorpusRootAndQuery(t *testing.T) {
	s := newTestServer()

	w := doRequest(s, http.MethodGet, "/api/v1/search")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/search?corpus_root=/tmp")
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "query parameter 'q' is required", resp.Error)
}

func TestSessionComparisonHandlerRequiresBothParams(t *testing.T) {
	s := newTestServer()

	w := doRequest(s, http.MethodGet, "/api/v1/stats/comparison?session_id=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/stats/comparison?project_dir=/tmp")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecodeProjectPathHandler(t *testing.T) {
	s := newTestServer()
	w := doRequest(s, http.MethodGet, "/api/v1/projects/decode?encoded=-tmp-does-not-exist")

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "path")
	assert.Contains(t, resp, "confirmed")
	assert.Contains(t, resp, "worktree")
}

func TestActivityHandlersAreNilSafeWithoutStore(t *testing.T) {
	s := newTestServer()

	w := doRequest(s, http.MethodGet, "/api/v1/activity/recent")
	require.Equal(t, http.StatusOK, w.Code)
	var recent ActivityFeedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recent))
	assert.Equal(t, 0, recent.Total)

	w = doRequest(s, http.MethodGet, "/api/v1/activity/live")
	require.Equal(t, http.StatusOK, w.Code)
	var live LiveSessionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &live))
	assert.Equal(t, 0, live.Total)
}

func TestQueryIntFallsBackOnMissingOrInvalid(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=notanumber", nil)

	assert.Equal(t, 50, queryInt(c, "limit", 50))

	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=7", nil)
	assert.Equal(t, 7, queryInt(c, "limit", 50))
}
