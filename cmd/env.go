package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rate-map/internal/config"
	"github.com/sells-group/rate-map/internal/geocache"
	"github.com/sells-group/rate-map/internal/pipeline"
	"github.com/sells-group/rate-map/internal/source"
	"github.com/sells-group/rate-map/pkg/geocode"
)

// resolveEnv holds the cache, source client and pipeline needed by the
// resolve and serve commands.
type resolveEnv struct {
	Cache    *geocache.Cache
	Source   *source.Client
	Pipeline *pipeline.Pipeline
}

// Close releases the cache backend.
func (e *resolveEnv) Close() {
	if e.Cache != nil {
		if err := e.Cache.Close(); err != nil {
			zap.L().Warn("close geocode cache", zap.Error(err))
		}
	}
}

// initEnv validates cfg for mode and builds the environment. Callers should
// defer env.Close().
func initEnv(ctx context.Context, mode string) (*resolveEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	backend, err := openBackend(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	cache := geocache.New(backend)

	src := source.NewClient(cfg.Source.BaseURL, cfg.Source.RatesPath,
		source.WithToken(cfg.Source.Token),
		source.WithTimeout(time.Duration(cfg.Source.TimeoutSecs)*time.Second),
	)

	p := pipeline.New(cache, newGeocoder(cfg.Geocode), pipeline.WithConcurrency(cfg.Pipeline.Concurrency))

	zap.L().Debug("resolve environment ready",
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.String("geocode_provider", cfg.Geocode.Provider),
		zap.String("source", src.URL()),
	)

	return &resolveEnv{Cache: cache, Source: src, Pipeline: p}, nil
}

// openBackend opens the cache backend selected by cc.Driver.
func openBackend(ctx context.Context, cc config.CacheConfig) (geocache.Backend, error) {
	switch cc.Driver {
	case "memory":
		return geocache.NewMemoryBackend(), nil
	case "file":
		return geocache.NewFileBackend(cc.Path), nil
	case "sqlite":
		b, err := geocache.NewSQLiteBackend(ctx, cc.Path)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "postgres":
		b, err := geocache.NewPostgresBackend(ctx, cc.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "redis":
		b, err := geocache.NewRedisBackend(ctx, cc.RedisAddr, cc.RedisPrefix)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, eris.Errorf("unsupported cache driver: %s", cc.Driver)
	}
}

func newGeocoder(gc config.GeocodeConfig) geocode.Client {
	opts := []geocode.Option{
		geocode.WithProvider(gc.Provider),
		geocode.WithUserAgent(gc.UserAgent),
		geocode.WithGoogleAPIKey(gc.GoogleAPIKey),
		geocode.WithRateLimit(gc.RateLimit),
	}
	if gc.Provider == geocode.ProviderNominatim {
		opts = append(opts, geocode.WithBaseURL(gc.BaseURL))
	}
	if gc.TimeoutSecs > 0 {
		opts = append(opts, geocode.WithHTTPClient(&http.Client{Timeout: time.Duration(gc.TimeoutSecs) * time.Second}))
	}
	return geocode.NewClient(opts...)
}
