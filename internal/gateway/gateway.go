// Package gateway implements the fetch orchestrator: given a relative
// provider URL it produces rendered bytes by trying cache, backend HTTP and
// the local filesystem mirror, with single-flight stampede protection and
// stale-serving fallback when the backend is down.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonesrussell/goassemble/internal/cache"
	"github.com/jonesrussell/goassemble/internal/config"
	"github.com/jonesrussell/goassemble/internal/fragment"
	"github.com/jonesrussell/goassemble/internal/logger"
	"github.com/jonesrussell/goassemble/internal/resource"
	"github.com/jonesrussell/goassemble/internal/rewrite"
	"github.com/jonesrussell/goassemble/internal/telemetry"
)

// ErrResourceNotFound is returned when no source (cache, backend, local
// mirror) can supply the requested resource.
var ErrResourceNotFound = errors.New("resource not found")

// Credentials identify the end user on whose behalf a fragment is fetched.
// They are forwarded to the provider as opaque user/locale query parameters
// and take part in the cache key.
type Credentials struct {
	User   string
	Locale string
}

// Gateway retrieves content from a provider application.
type Gateway struct {
	baseURL      string
	localBase    string
	writeThrough bool
	maxCacheable int64

	cache    *cache.Coordinator
	client   *http.Client
	frag     *fragment.Engine
	rewriter *rewrite.Rewriter
	log      logger.Logger
	metrics  *telemetry.Metrics
}

// New wires a Gateway from configuration. store is the cache backend;
// metrics may be nil.
func New(cfg *config.Config, store cache.Store, log logger.Logger, metrics *telemetry.Metrics) (*Gateway, error) {
	mode, err := rewrite.ParseMode(cfg.Rewrite.Mode)
	if err != nil {
		return nil, err
	}
	rewriter, err := rewrite.New(mode, cfg.Rewrite.VisibleBaseURL, log)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: cfg.Backend.Timeout.Duration,
	}
	if cfg.Backend.MaxIdleConnsPerHost > 0 {
		client.Transport = &http.Transport{
			MaxIdleConnsPerHost: cfg.Backend.MaxIdleConnsPerHost,
		}
	}

	return &Gateway{
		baseURL:      cfg.Backend.BaseURL,
		localBase:    cfg.Local.BasePath,
		writeThrough: cfg.Local.WriteThrough,
		maxCacheable: cfg.Cache.MaxCacheableSize,
		cache:        cache.NewCoordinator(store, cfg.Cache.RefreshDelay.Duration, log),
		client:       client,
		frag:         fragment.NewEngine(log),
		rewriter:     rewriter,
		log:          log,
		metrics:      metrics,
	}, nil
}

// BaseURL returns the provider base URL.
func (g *Gateway) BaseURL() string { return g.baseURL }

// Render retrieves the resource at relURL and streams it to sink.
// It returns an error wrapping ErrResourceNotFound when no source can
// supply the resource.
func (g *Gateway) Render(ctx context.Context, relURL string, creds *Credentials, sink resource.Sink) error {
	start := time.Now()
	defer func() {
		if g.metrics != nil {
			g.metrics.FetchDuration.Observe(time.Since(start).Seconds())
		}
	}()

	key := g.backendURL(relURL, creds)
	entry, state := g.cache.Lookup(ctx, key)
	if g.metrics != nil {
		g.metrics.CacheLookups.WithLabelValues(state.String()).Inc()
	}

	if state == cache.Fresh {
		g.log.Debug("serving fresh cache entry", logger.String("key", key))
		return entryResource(entry).Render(sink)
	}

	// The key is locked from here on. Every exit that does not store a
	// refreshed entry must abandon the refresh or the key stays locked
	// forever.
	updated := false
	defer func() {
		if !updated {
			g.cache.Abandon(key)
		}
	}()

	res, fetchErr := g.fetchBackend(ctx, key)
	if res != nil {
		defer res.Release()

		capture := resource.NewCapture(g.maxCacheable)
		out := resource.NewMulti(sink, capture)
		if g.writeThrough && g.localBase != "" {
			out.Add(resource.NewFileSink(g.localPath(relURL)))
		}
		if err := res.Render(out); err != nil {
			return err
		}
		updated = g.cacheCapture(ctx, key, capture)
		return nil
	}
	if fetchErr != nil {
		g.log.Warn("backend fetch failed",
			logger.String("key", key),
			logger.Error(fetchErr),
		)
	}

	// Backend unavailable or resource gone: serve the stale copy if we have
	// one, leaving its timestamp untouched so the next request retries.
	if entry != nil {
		g.log.Info("serving stale cache entry", logger.String("key", key))
		return entryResource(entry).Render(sink)
	}

	if g.localBase != "" {
		file := resource.NewFile(g.localPath(relURL))
		if file.Exists() {
			g.log.Debug("serving local mirror", logger.String("path", file.Path()))
			capture := resource.NewCapture(g.maxCacheable)
			if err := file.Render(resource.NewMulti(sink, capture)); err != nil {
				return err
			}
			updated = g.cacheCapture(ctx, key, capture)
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrResourceNotFound, relURL)
}

// fetchBackend fetches the key from the provider. It returns (nil, nil) when
// the provider answers that the resource does not exist, releasing the
// transport handle, and (nil, err) on transport failure.
func (g *Gateway) fetchBackend(ctx context.Context, absURL string) (*resource.HTTP, error) {
	res, err := resource.FetchHTTP(ctx, g.client, absURL)
	if err != nil {
		g.countFetch(telemetry.ResultTransport)
		return nil, err
	}
	if !res.Exists() {
		res.Release()
		g.countFetch(telemetry.ResultNotFound)
		return nil, nil
	}
	g.countFetch(telemetry.ResultOK)
	return res, nil
}

// cacheCapture stores the captured render if it stayed under the cacheable
// size cap. Returns whether the cache was updated.
func (g *Gateway) cacheCapture(ctx context.Context, key string, capture *resource.Capture) bool {
	mem, ok := capture.Resource()
	if !ok {
		g.log.Debug("response too large to cache", logger.String("key", key))
		return false
	}
	g.cache.Put(ctx, key, &cache.Entry{
		Body:        mem.Bytes(),
		ContentType: mem.ContentType(),
	})
	return true
}

func (g *Gateway) countFetch(result string) {
	if g.metrics != nil {
		g.metrics.BackendFetches.WithLabelValues(result).Inc()
	}
}

func entryResource(entry *cache.Entry) *resource.Memory {
	return resource.NewMemory(entry.Body, entry.ContentType)
}
