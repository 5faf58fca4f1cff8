package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/goassemble/internal/cache"
	"github.com/jonesrussell/goassemble/internal/config"
	"github.com/jonesrussell/goassemble/internal/gateway"
	"github.com/jonesrussell/goassemble/internal/logger"
)

const providerPage = `<html><body>
<!--$beginblock$news$--><a href="article.html">story</a><!--$endblock$news$-->
<!--$begintemplate$card$--><span><!--$beginparam$title$-->x<!--$endparam$title$--></span><!--$endtemplate$card$-->
</body></html>`

// testRouter wires a full server against a fake provider and returns the
// gin engine plus the query values the provider last saw.
func testRouter(t *testing.T) (*gin.Engine, map[string]string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	lastQuery := map[string]string{}
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range r.URL.Query() {
			lastQuery[k] = v[0]
		}
		switch r.URL.Path {
		case "/app/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(providerPage))
		case "/app/assets/style.css":
			w.Header().Set("Content-Type", "text/css")
			_, _ = w.Write([]byte("body{margin:0}"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(provider.Close)

	cfg := &config.Config{}
	cfg.Backend.BaseURL = provider.URL + "/app/"
	cfg.SetDefaults()

	log := logger.NewNop()
	gw, err := gateway.New(cfg, cache.NewMemoryStore(0), log, nil)
	require.NoError(t, err)

	handler := NewHandler(gw, log, "goassemble-test", "test")
	server := NewServer(cfg, handler, log)
	return server.Router(), lastQuery
}

func doRequest(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := testRouter(t)

	w := doRequest(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"service":"goassemble-test"`)
}

func TestBlockEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	t.Run("renders the named block", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/block/news?page=/page.html", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `<a href="/app/article.html">story</a>`, w.Body.String())
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	})

	t.Run("missing block renders empty body", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/block/weather?page=/page.html", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("page parameter is required", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/block/news", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTemplateEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	t.Run("fills the template", func(t *testing.T) {
		body := `{"page":"/page.html","name":"card","params":[{"name":"title","value":"Hello"}]}`
		w := doRequest(router, http.MethodPost, "/api/v1/template", body)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "<span>Hello</span>", w.Body.String())
	})

	t.Run("parameters apply in request order", func(t *testing.T) {
		body := `{"page":"/page.html","params":[{"name":"a","value":"1"},{"name":"b","value":"2"}]}`
		w := doRequest(router, http.MethodPost, "/api/v1/template", body)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("page field is required", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/template", `{"name":"card"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed json is rejected", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/template", `{`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestContentEndpoint(t *testing.T) {
	router, lastQuery := testRouter(t)

	t.Run("streams the resource through", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/content/assets/style.css", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "body{margin:0}", w.Body.String())
		assert.Equal(t, "text/css", w.Header().Get("Content-Type"))
	})

	t.Run("unknown resource maps to 404", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/content/assets/nope.css", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "resource not found")
	})

	t.Run("user and locale travel as credentials", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/content/assets/style.css?v=2&user=bob&locale=fr", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", lastQuery["v"])
		assert.Equal(t, "bob", lastQuery["user"])
		assert.Equal(t, "fr", lastQuery["locale"])
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	router, _ := testRouter(t)

	t.Run("assigns an id", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/health", "")
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("reuses a caller-supplied id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "fixed-id")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "fixed-id", w.Header().Get("X-Request-ID"))
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	w := doRequest(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
