package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/goassemble/internal/logger"
)

func newTestEngine() *Engine {
	return NewEngine(logger.NewNop())
}

func TestExtractBlock(t *testing.T) {
	page := `<html><body>
before
<!--$beginblock$news$--><ul><li>headline</li></ul><!--$endblock$news$-->
after
</body></html>`

	e := newTestEngine()

	t.Run("returns text between markers", func(t *testing.T) {
		assert.Equal(t, "<ul><li>headline</li></ul>", e.ExtractBlock(page, "news"))
	})

	t.Run("missing block degrades to empty string", func(t *testing.T) {
		assert.Empty(t, e.ExtractBlock(page, "weather"))
	})

	t.Run("missing end marker degrades to empty string", func(t *testing.T) {
		assert.Empty(t, e.ExtractBlock("<!--$beginblock$news$-->partial", "news"))
	})

	t.Run("end marker before begin marker degrades to empty string", func(t *testing.T) {
		assert.Empty(t, e.ExtractBlock("<!--$endblock$x$-->mid<!--$beginblock$x$-->", "x"))
	})
}

func TestExtractTemplate(t *testing.T) {
	page := `header
<!--$begintemplate$card$--><div class="card">body</div><!--$endtemplate$card$-->
footer`

	e := newTestEngine()

	assert.Equal(t, `<div class="card">body</div>`, e.ExtractTemplate(page, "card"))
	assert.Empty(t, e.ExtractTemplate(page, "missing"))
}

func TestFillTemplate(t *testing.T) {
	e := newTestEngine()

	t.Run("substitutes parameters markers included", func(t *testing.T) {
		page := `<!--$begintemplate$card$--><h1><!--$beginparam$title$-->default<!--$endparam$title$--></h1><!--$endtemplate$card$-->`
		out := e.FillTemplate(page, "card", []Param{{Name: "title", Value: "Hello"}})
		assert.Equal(t, "<h1>Hello</h1>", out)
	})

	t.Run("empty name selects the whole page", func(t *testing.T) {
		page := `<p><!--$beginparam$body$-->x<!--$endparam$body$--></p>`
		out := e.FillTemplate(page, "", []Param{{Name: "body", Value: "filled"}})
		assert.Equal(t, "<p>filled</p>", out)
	})

	t.Run("missing parameter markers are skipped", func(t *testing.T) {
		page := `<!--$begintemplate$t$-->static<!--$endtemplate$t$-->`
		out := e.FillTemplate(page, "t", []Param{{Name: "nope", Value: "v"}})
		assert.Equal(t, "static", out)
	})

	t.Run("parameters apply in order", func(t *testing.T) {
		// The first substitution produces the markers the second one consumes.
		page := `<!--$beginparam$outer$-->x<!--$endparam$outer$-->`
		params := []Param{
			{Name: "outer", Value: `<!--$beginparam$inner$-->y<!--$endparam$inner$-->`},
			{Name: "inner", Value: "done"},
		}
		assert.Equal(t, "done", e.FillTemplate(page, "", params))
	})

	t.Run("missing template concatenates parameter values", func(t *testing.T) {
		params := []Param{
			{Name: "a", Value: "one"},
			{Name: "b", Value: "two"},
			{Name: "c", Value: "three"},
		}
		assert.Equal(t, "onetwothree", e.FillTemplate("no markers here", "t", params))
	})

	t.Run("missing template with no parameters yields empty string", func(t *testing.T) {
		assert.Empty(t, e.FillTemplate("page", "t", nil))
	})

	t.Run("empty template with no parameters yields empty string", func(t *testing.T) {
		page := `<!--$begintemplate$t$--><!--$endtemplate$t$-->`
		assert.Empty(t, e.FillTemplate(page, "t", nil))
	})
}
