package gateway

import (
	"context"
	"errors"
	"io"

	"github.com/jonesrussell/goassemble/internal/fragment"
	"github.com/jonesrussell/goassemble/internal/logger"
	"github.com/jonesrussell/goassemble/internal/resource"
)

// RenderBlock retrieves page from the provider, extracts the named block,
// rewrites its resource URLs and writes the result to w. A missing page or
// block degrades to empty output.
func (g *Gateway) RenderBlock(ctx context.Context, page, name string, creds *Credentials, w io.Writer) error {
	content, err := g.fetchString(ctx, page, creds)
	if err != nil {
		return err
	}
	block := g.frag.ExtractBlock(content, name)
	block = g.rewriter.RewriteHTML(block, page, g.baseURL)

	g.countFragment("block")
	_, err = io.WriteString(w, block)
	return err
}

// RenderTemplate retrieves page, selects the named template (the whole page
// when name is empty), fills the parameters in order, rewrites resource URLs
// and writes the result to w.
func (g *Gateway) RenderTemplate(ctx context.Context, page, name string, params []fragment.Param, creds *Credentials, w io.Writer) error {
	content, err := g.fetchString(ctx, page, creds)
	if err != nil {
		return err
	}
	filled := g.frag.FillTemplate(content, name, params)
	filled = g.rewriter.RewriteHTML(filled, page, g.baseURL)

	g.countFragment("template")
	_, err = io.WriteString(w, filled)
	return err
}

// RenderResource streams the resource at relURL to sink unmodified, for
// binary passthrough. The caller maps ErrResourceNotFound to its own
// not-found representation.
func (g *Gateway) RenderResource(ctx context.Context, relURL string, creds *Credentials, sink resource.Sink) error {
	g.countFragment("resource")
	return g.Render(ctx, relURL, creds, sink)
}

// fetchString renders the page at relURL to a string. A page no source can
// supply degrades to the empty string; fragment callers then emit empty
// fragments rather than failing the surrounding page.
func (g *Gateway) fetchString(ctx context.Context, relURL string, creds *Credentials) (string, error) {
	sink := resource.NewStringSink()
	err := g.Render(ctx, relURL, creds, sink)
	if errors.Is(err, ErrResourceNotFound) {
		g.log.Error("page not found", logger.String("page", relURL))
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sink.String(), nil
}

func (g *Gateway) countFragment(kind string) {
	if g.metrics != nil {
		g.metrics.FragmentsServed.WithLabelValues(kind).Inc()
	}
}
