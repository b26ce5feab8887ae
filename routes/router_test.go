package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/folio/config"
	"github.com/cppla/folio/services"
	"github.com/cppla/folio/utils"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	prev := config.Get()
	t.Cleanup(func() { config.Set(prev) })

	c := prev
	c.App.GinMode = "test"
	c.App.GinPath = filepath.Join(t.TempDir(), "gin.log")
	c.App.JWTSecret = "router-secret"
	c.Admin.Usernames = []string{"root"}
	c.Media.Dir = t.TempDir()
	config.Set(c)
	utils.SetRedis(nil)

	// handlers reached here never touch the database
	return SetupRouter(c, nil, services.NewContentService(c.Sanitizer, c.Site))
}

func call(r http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, utils.JSONResponse) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp utils.JSONResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func token(t *testing.T, id uint, username string) string {
	t.Helper()
	tok, err := utils.GenerateToken(id, username, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestRouter_PublicEndpoints(t *testing.T) {
	r := newRouter(t)

	w, resp := call(r, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, w.Header().Get("X-Request-ID"))

	w, _ = call(r, http.MethodGet, "/api/v1/sanitize/policy", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = call(r, http.MethodGet, "/api/v1/settings", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = call(r, http.MethodGet, "/api/v1/embeds?url=https://vimeo.com/42", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = call(r, http.MethodGet, "/api/v1/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, resp.Code)
}

func TestRouter_MetricsExposeRequests(t *testing.T) {
	r := newRouter(t)
	call(r, http.MethodGet, "/health", "", "")

	w, _ := call(r, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "folio_http_requests_total")
}

func TestRouter_PreviewRequiresToken(t *testing.T) {
	r := newRouter(t)
	body := `{"markdown": "_hi_ <script>alert(1)</script>"}`

	w, resp := call(r, http.MethodPost, "/api/v1/sanitize/preview", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40101, resp.Code)

	w, resp = call(r, http.MethodPost, "/api/v1/sanitize/preview", token(t, 7, "alice"), body)
	require.Equal(t, http.StatusOK, w.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data["html"], "<em>hi</em>")
	assert.NotContains(t, data["html"], "<script")
}

func TestRouter_AdminRoutesRejectMembers(t *testing.T) {
	r := newRouter(t)
	member := token(t, 7, "alice")

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/posts"},
		{http.MethodPut, "/api/v1/posts/1"},
		{http.MethodDelete, "/api/v1/posts/1"},
		{http.MethodPost, "/api/v1/media"},
	} {
		w, resp := call(r, route.method, route.path, member, `{}`)
		assert.Equal(t, http.StatusForbidden, w.Code, route.path)
		assert.Equal(t, 40301, resp.Code, route.path)

		w, _ = call(r, route.method, route.path, "", `{}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
	}
}
