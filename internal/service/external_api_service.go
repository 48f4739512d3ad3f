package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/cache"
	"github.com/spec-kit/helpdesk-service/internal/config"
)

// Error codes returned by the external data proxy.
const (
	ExternalErrUnsupportedDriver   = "unsupported_driver"
	ExternalErrUpstreamUnavailable = "upstream_unavailable"
	ExternalErrUpstreamTimeout     = "upstream_timeout"
	ExternalErrUpstreamFailure     = "upstream_failure"
	ExternalErrUnexpected          = "unexpected_error"
)

const supportedExternalDriver = "weatherapi"

// retry once after a short pause for transient network errors
const upstreamRetryDelay = 150 * time.Millisecond

// HTTPDoer abstracts the outbound HTTP client. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ExternalMeta describes how an external data result was produced.
type ExternalMeta struct {
	Driver         string  `json:"driver"`
	CorrelationID  string  `json:"correlation_id"`
	UpstreamStatus *int    `json:"upstream_status"`
	Cached         bool    `json:"cached"`
	CachedAt       *string `json:"cached_at"`
	Fallback       bool    `json:"fallback,omitempty"`
}

// ExternalResult is the proxy's response contract. Error and Message are
// empty on success.
type ExternalResult struct {
	Data    json.RawMessage `json:"data"`
	Meta    ExternalMeta    `json:"meta"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ExternalAPIService proxies a third-party data provider with a cache-first
// safety net: upstream failures are classified and, when a cached entry
// exists, answered with stale data instead of an error-only response.
type ExternalAPIService struct {
	cfg    config.ExternalConfig
	cache  cache.Store
	client HTTPDoer
	logger *zap.Logger
}

// NewExternalAPIService constructs the proxy. A nil client gets a default
// http.Client with the configured timeout.
func NewExternalAPIService(cfg config.ExternalConfig, store cache.Store, client HTTPDoer, logger *zap.Logger) *ExternalAPIService {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout()}
	}
	return &ExternalAPIService{cfg: cfg, cache: store, client: client, logger: logger}
}

// CurrentWeather fetches current weather for a city from the configured
// provider, consulting the cache before and after the upstream call.
func (s *ExternalAPIService) CurrentWeather(ctx context.Context, city string) ExternalResult {
	correlationID := uuid.NewString()

	if s.cfg.Driver != supportedExternalDriver {
		return ExternalResult{
			Meta: ExternalMeta{
				Driver:        s.cfg.Driver,
				CorrelationID: correlationID,
			},
			Error:   ExternalErrUnsupportedDriver,
			Message: "The external API driver is not supported yet.",
		}
	}

	cacheKey := buildCacheKey(s.cfg.Driver, map[string]string{"endpoint": "current", "q": city})
	cached := s.getCached(ctx, cacheKey, city)

	payload, status, err := s.fetchUpstream(ctx, city)
	if err != nil {
		code, message := classifyUpstreamError(err)
		return s.fallbackOrError(cached, correlationID, nil, cacheKey, city, code, message)
	}
	if status < 200 || status >= 300 {
		return s.fallbackOrError(cached, correlationID, &status, cacheKey, city,
			ExternalErrUpstreamUnavailable,
			upstreamMessage{
				noCache:   "External weather service returned an error and no cached data available.",
				withCache: "External weather service returned an error; served cached data.",
			})
	}
	if !json.Valid(payload) {
		return s.fallbackOrError(cached, correlationID, &status, cacheKey, city,
			ExternalErrUnexpected,
			upstreamMessage{
				noCache:   "An unexpected error occurred accessing external weather service and no cached data available.",
				withCache: "An unexpected error occurred; served cached data.",
			})
	}

	s.storeCache(ctx, cacheKey, city, payload, correlationID)

	return ExternalResult{
		Data: payload,
		Meta: ExternalMeta{
			Driver:         s.cfg.Driver,
			CorrelationID:  correlationID,
			UpstreamStatus: &status,
			Cached:         false,
			CachedAt:       nil,
		},
	}
}

type upstreamMessage struct {
	noCache   string
	withCache string
}

func classifyUpstreamError(err error) (string, upstreamMessage) {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ExternalErrUpstreamTimeout, upstreamMessage{
			noCache:   "The external weather service timed out and no cached data available.",
			withCache: "The external weather service timed out; served cached data.",
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ExternalErrUpstreamFailure, upstreamMessage{
			noCache:   "Failed to communicate with external weather service and no cached data available.",
			withCache: "Failed to communicate with external weather service; served cached data.",
		}
	}
	return ExternalErrUnexpected, upstreamMessage{
		noCache:   "An unexpected error occurred accessing external weather service and no cached data available.",
		withCache: "An unexpected error occurred; served cached data.",
	}
}

func (s *ExternalAPIService) fetchUpstream(ctx context.Context, city string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout())
	defer cancel()

	payload, status, err := s.doRequest(ctx, city)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, 0, err
		case <-time.After(upstreamRetryDelay):
		}
		payload, status, err = s.doRequest(ctx, city)
	}
	return payload, status, err
}

func (s *ExternalAPIService) doRequest(ctx context.Context, city string) ([]byte, int, error) {
	endpoint := s.cfg.BaseURL + "/current.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	query := req.URL.Query()
	query.Set("q", city)
	query.Set("key", s.cfg.APIKey)
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// getCached is best-effort: a cache store failure is logged and treated as a
// miss, never surfaced as a request failure.
func (s *ExternalAPIService) getCached(ctx context.Context, cacheKey, city string) *cache.Entry {
	entry, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		s.logger.Warn("external.cache.get_failed",
			zap.String("key", cacheKey),
			zap.String("driver", s.cfg.Driver),
			zap.Error(err),
		)
		return nil
	}
	if entry == nil {
		s.logger.Info("external.weatherapi.cache.miss",
			zap.String("key", cacheKey),
			zap.String("city", city),
			zap.String("driver", s.cfg.Driver),
		)
		return nil
	}
	s.logger.Info("external.weatherapi.cache.hit",
		zap.String("key", cacheKey),
		zap.String("city", city),
		zap.String("driver", s.cfg.Driver),
	)
	return entry
}

// storeCache is best-effort as well.
func (s *ExternalAPIService) storeCache(ctx context.Context, cacheKey, city string, payload []byte, correlationID string) {
	ttl := time.Duration(s.cfg.CacheTTLSeconds) * time.Second
	if err := s.cache.Set(ctx, cacheKey, payload, ttl); err != nil {
		s.logger.Warn("external.cache.put_failed",
			zap.String("key", cacheKey),
			zap.String("driver", s.cfg.Driver),
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("external.weatherapi.cache.store",
		zap.String("key", cacheKey),
		zap.String("city", city),
		zap.String("driver", s.cfg.Driver),
		zap.String("correlation_id", correlationID),
	)
}

func (s *ExternalAPIService) fallbackOrError(cached *cache.Entry, correlationID string, upstreamStatus *int, cacheKey, city, code string, message upstreamMessage) ExternalResult {
	if cached != nil {
		s.logger.Info("external.weatherapi.cache.fallback."+code,
			zap.String("key", cacheKey),
			zap.String("city", city),
			zap.String("driver", s.cfg.Driver),
			zap.String("correlation_id", correlationID),
		)
		cachedAt := cached.StoredAt.Format(time.RFC3339)
		return ExternalResult{
			Data: cached.Payload,
			Meta: ExternalMeta{
				Driver:         s.cfg.Driver,
				CorrelationID:  correlationID,
				UpstreamStatus: upstreamStatus,
				Cached:         true,
				CachedAt:       &cachedAt,
				Fallback:       true,
			},
			Error:   code,
			Message: message.withCache,
		}
	}

	return ExternalResult{
		Data: nil,
		Meta: ExternalMeta{
			Driver:         s.cfg.Driver,
			CorrelationID:  correlationID,
			UpstreamStatus: upstreamStatus,
			Cached:         false,
			CachedAt:       nil,
		},
		Error:   code,
		Message: message.noCache,
	}
}

func buildCacheKey(driver string, params map[string]string) string {
	// map keys marshal in sorted order, so the key is deterministic for a
	// given parameter set.
	raw, _ := json.Marshal(params)
	sum := sha1.Sum(raw)
	return "external:" + driver + ":" + hex.EncodeToString(sum[:])
}
