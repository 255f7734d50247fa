// Package app builds the wikinet components described by a config.Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/latebit/wikinet/internal/article"
	"github.com/latebit/wikinet/internal/cache"
	"github.com/latebit/wikinet/internal/checkpoint"
	"github.com/latebit/wikinet/internal/config"
	"github.com/latebit/wikinet/internal/correlation"
	"github.com/latebit/wikinet/internal/events"
	"github.com/latebit/wikinet/internal/fetch"
	"github.com/latebit/wikinet/internal/metrics"
	"github.com/latebit/wikinet/internal/oracle"
	"github.com/latebit/wikinet/internal/ratelimit"
)

// DefaultOllamaModel is used when no oracle model is configured.
const DefaultOllamaModel = "nomic-embed-text"

// NewSource builds the configured article source behind the memoising
// cache. The returned func releases background resources.
func NewSource(c *config.Config, logger *slog.Logger) (*article.Cached, func(), error) {
	var (
		src       article.Source
		namespace string
		cleanup   = func() {}
	)

	switch c.Source.Kind {
	case "dir":
		d, err := article.NewDir(c.Source.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		// Local files are read directly; no disk cache.
		return article.NewCached(d, nil, d.Host(), logger), cleanup, nil
	default:
		limiter := ratelimit.New(c.Source.RequestsPerSecond, c.Source.Burst)
		client := fetch.NewClient(fetch.Options{
			Limiter:   limiter,
			UserAgent: c.Source.UserAgent,
		})
		w, err := article.NewWikipedia(article.WikipediaOptions{
			Language:      c.Source.Language,
			Endpoint:      c.Source.Endpoint,
			Namespace:     c.Source.Namespace,
			AllNamespaces: c.Source.AllNamespaces,
			Client:        client,
			Logger:        logger,
		})
		if err != nil {
			limiter.Stop()
			return nil, nil, err
		}
		src, namespace, cleanup = w, w.Host(), limiter.Stop
	}

	var disk *cache.Cache
	if c.Source.Cache {
		dir := c.Source.CacheDir
		if dir == "" {
			dir = cache.DefaultDir()
		}
		disk = cache.New(dir)
		disk.MaxAge, _ = c.CacheMaxAge()
	}
	return article.NewCached(src, disk, namespace, logger), cleanup, nil
}

// NewOracle returns the configured similarity oracle.
func NewOracle(c *config.Config) (oracle.Oracle, error) {
	switch c.Oracle.Kind {
	case "openai":
		e, err := oracle.NewOpenAIEmbedder(c.Oracle.APIKey, c.Oracle.URL, c.Oracle.Model)
		if err != nil {
			return nil, err
		}
		return oracle.NewEmbedding(e, c.Oracle.MaxInputChars), nil
	case "ollama":
		model := c.Oracle.Model
		if model == "" {
			model = DefaultOllamaModel
		}
		e := oracle.NewOllamaEmbedder(c.Oracle.URL, model, 0)
		return oracle.NewEmbedding(e, c.Oracle.MaxInputChars), nil
	case "lexical", "":
		return oracle.Lexical{}, nil
	default:
		return nil, fmt.Errorf("unknown oracle %q", c.Oracle.Kind)
	}
}

// NewStore opens the correlation store: badger when a path is configured,
// memory otherwise.
func NewStore(c *config.Config, logger *slog.Logger) (correlation.Store, error) {
	if c.Store.Path == "" {
		return correlation.NewMemoryStore(), nil
	}
	return correlation.OpenBadger(correlation.BadgerConfig{Path: c.Store.Path, Logger: logger})
}

// NewPublisher returns a NATS publisher, or a no-op one when no server is
// configured.
func NewPublisher(c *config.Config) (events.Publisher, error) {
	if c.Events.NATSURL == "" {
		return &events.NoopPublisher{}, nil
	}
	return events.NewNATSPublisher(c.Events.NATSURL)
}

// NewCheckpointer writes to the output file and, when configured, S3.
func NewCheckpointer(ctx context.Context, c *config.Config, logger *slog.Logger) (*checkpoint.Checkpointer, error) {
	format, err := checkpoint.ParseFormat(c.OutputFormat())
	if err != nil {
		return nil, err
	}
	dests := []checkpoint.Destination{&checkpoint.FileDestination{Path: c.Run.Output}}
	if c.Checkpoint.S3Bucket != "" {
		d, err := checkpoint.NewS3Destination(ctx, c.Checkpoint.S3Bucket, c.S3Key(), c.Checkpoint.S3Region, c.Checkpoint.S3Endpoint)
		if err != nil {
			return nil, err
		}
		dests = append(dests, d)
	}
	return checkpoint.New(format, logger, dests...), nil
}

// ServeMetrics exposes /metrics on addr until the returned func is called.
func ServeMetrics(addr string, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "err", err)
		}
	}()
	logger.Info("metrics listening", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
