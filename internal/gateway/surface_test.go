package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/goassemble/internal/cache"
	"github.com/jonesrussell/goassemble/internal/fragment"
)

const providerPage = `<html><body>
<!--$beginblock$news$--><ul><li><a href="article.html">story</a></li></ul><!--$endblock$news$-->
<!--$begintemplate$card$--><div><img src="img/icon.png"><!--$beginparam$title$-->t<!--$endparam$title$--></div><!--$endtemplate$card$-->
</body></html>`

func newSurfaceGateway(t *testing.T) *Gateway {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app/page.html" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(providerPage))
	}))
	t.Cleanup(server.Close)

	return newTestGateway(t, testConfig(server.URL+"/app/"), cache.NewMemoryStore(0))
}

func TestRenderBlock(t *testing.T) {
	gw := newSurfaceGateway(t)

	t.Run("extracts and rewrites the block", func(t *testing.T) {
		var out strings.Builder
		require.NoError(t, gw.RenderBlock(context.Background(), "/page.html", "news", nil, &out))
		assert.Equal(t, `<ul><li><a href="/app/article.html">story</a></li></ul>`, out.String())
	})

	t.Run("missing block renders empty", func(t *testing.T) {
		var out strings.Builder
		require.NoError(t, gw.RenderBlock(context.Background(), "/page.html", "weather", nil, &out))
		assert.Empty(t, out.String())
	})

	t.Run("missing page renders empty", func(t *testing.T) {
		var out strings.Builder
		require.NoError(t, gw.RenderBlock(context.Background(), "/nope.html", "news", nil, &out))
		assert.Empty(t, out.String())
	})
}

func TestRenderTemplate(t *testing.T) {
	gw := newSurfaceGateway(t)

	t.Run("fills parameters and rewrites urls", func(t *testing.T) {
		var out strings.Builder
		params := []fragment.Param{{Name: "title", Value: "Hello"}}
		require.NoError(t, gw.RenderTemplate(context.Background(), "/page.html", "card", params, nil, &out))
		assert.Equal(t, `<div><img src="/app/img/icon.png">Hello</div>`, out.String())
	})

	t.Run("missing template concatenates parameter values", func(t *testing.T) {
		var out strings.Builder
		params := []fragment.Param{
			{Name: "a", Value: "one"},
			{Name: "b", Value: "two"},
		}
		require.NoError(t, gw.RenderTemplate(context.Background(), "/page.html", "nope", params, nil, &out))
		assert.Equal(t, "onetwo", out.String())
	})
}
