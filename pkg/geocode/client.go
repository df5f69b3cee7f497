// Package geocode resolves free-text place queries via Nominatim (default) or
// the Google Geocoding API.
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Provider names accepted by WithProvider.
const (
	ProviderNominatim = "nominatim"
	ProviderGoogle    = "google"
)

// Client geocodes free-text place queries.
type Client interface {
	// Geocode resolves a single query. A query with no match returns a Result
	// with Matched=false and a nil error.
	Geocode(ctx context.Context, query string) (*Result, error)
}

// Result holds the geocoding output for a query.
type Result struct {
	Latitude    float64
	Longitude   float64
	Source      string // "nominatim" or "google"
	DisplayName string
	Matched     bool
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithProvider selects the backend: ProviderNominatim or ProviderGoogle.
func WithProvider(name string) Option {
	return func(g *geocoder) {
		if name != "" {
			g.provider = name
		}
	}
}

// WithBaseURL overrides the Nominatim search endpoint.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.baseURL = u
		}
	}
}

// WithGoogleAPIKey sets the key used by the Google provider.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithUserAgent sets the User-Agent header. Nominatim rejects anonymous clients.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		if ua != "" {
			g.userAgent = ua
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit for provider calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

type geocoder struct {
	httpClient *http.Client
	provider   string
	baseURL    string
	googleKey  string
	userAgent  string
	limiter    *rate.Limiter
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		provider:   ProviderNominatim,
		baseURL:    nominatimSearchURL,
		userAgent:  "rate-map/1.0",
		limiter:    rate.NewLimiter(1, 1), // Nominatim usage policy: 1 req/s
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode normalizes the query and resolves it with the configured provider.
func (g *geocoder) Geocode(ctx context.Context, query string) (*Result, error) {
	query = NormalizeQuery(query)
	if query == "" {
		return &Result{Matched: false, Source: g.provider}, nil
	}

	switch g.provider {
	case ProviderNominatim:
		return g.geocodeNominatim(ctx, query)
	case ProviderGoogle:
		return g.geocodeGoogle(ctx, query)
	default:
		return nil, eris.Errorf("geocode: unknown provider %q", g.provider)
	}
}
