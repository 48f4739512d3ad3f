package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/cache"
	"github.com/spec-kit/helpdesk-service/internal/config"
)

type fakeCacheStore struct {
	entries map[string]cache.Entry
	getErr  error
	setErr  error
	sets    int
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{entries: map[string]cache.Entry{}}
}

func (s *fakeCacheStore) Get(_ context.Context, key string) (*cache.Entry, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *fakeCacheStore) Set(_ context.Context, key string, payload json.RawMessage, _ time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.sets++
	s.entries[key] = cache.Entry{StoredAt: time.Now(), Payload: payload}
	return nil
}

type doResult struct {
	status int
	body   string
	err    error
}

type scriptedDoer struct {
	results []doResult
	calls   int
}

func (d *scriptedDoer) Do(*http.Request) (*http.Response, error) {
	idx := d.calls
	if idx >= len(d.results) {
		idx = len(d.results) - 1
	}
	d.calls++
	result := d.results[idx]
	if result.err != nil {
		return nil, result.err
	}
	return &http.Response{
		StatusCode: result.status,
		Body:       io.NopCloser(strings.NewReader(result.body)),
	}, nil
}

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "request timed out" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

func externalTestConfig() config.ExternalConfig {
	return config.ExternalConfig{
		Driver:          "weatherapi",
		BaseURL:         "https://api.weatherapi.test/v1",
		APIKey:          "test-key",
		TimeoutSeconds:  2,
		CacheTTLSeconds: 600,
	}
}

func TestExternalAPI_UnsupportedDriver(t *testing.T) {
	cfg := externalTestConfig()
	cfg.Driver = "openmeteo"
	doer := &scriptedDoer{results: []doResult{{status: 200, body: `{}`}}}
	svc := NewExternalAPIService(cfg, newFakeCacheStore(), doer, zap.NewNop())

	result := svc.CurrentWeather(context.Background(), "Berlin")

	assert.Equal(t, ExternalErrUnsupportedDriver, result.Error)
	assert.Equal(t, "The external API driver is not supported yet.", result.Message)
	assert.Equal(t, "openmeteo", result.Meta.Driver)
	assert.NotEmpty(t, result.Meta.CorrelationID)
	assert.Zero(t, doer.calls)
}

func TestExternalAPI_SuccessStoresCache(t *testing.T) {
	store := newFakeCacheStore()
	body := `{"current":{"temp_c":21.5}}`
	doer := &scriptedDoer{results: []doResult{{status: 200, body: body}}}
	svc := NewExternalAPIService(externalTestConfig(), store, doer, zap.NewNop())

	result := svc.CurrentWeather(context.Background(), "Berlin")

	assert.Empty(t, result.Error)
	assert.JSONEq(t, body, string(result.Data))
	assert.False(t, result.Meta.Cached)
	assert.Nil(t, result.Meta.CachedAt)
	require.NotNil(t, result.Meta.UpstreamStatus)
	assert.Equal(t, 200, *result.Meta.UpstreamStatus)
	assert.Equal(t, 1, store.sets)
}

func TestExternalAPI_TimeoutWithCacheServesFallback(t *testing.T) {
	store := newFakeCacheStore()
	body := `{"current":{"temp_c":18.0}}`
	doer := &scriptedDoer{results: []doResult{{status: 200, body: body}}}
	svc := NewExternalAPIService(externalTestConfig(), store, doer, zap.NewNop())

	// Prime the cache with a successful request.
	first := svc.CurrentWeather(context.Background(), "Berlin")
	require.Empty(t, first.Error)

	doer.results = []doResult{{err: timeoutNetError{}}}
	doer.calls = 0

	result := svc.CurrentWeather(context.Background(), "Berlin")

	assert.Equal(t, ExternalErrUpstreamTimeout, result.Error)
	assert.Equal(t, "The external weather service timed out; served cached data.", result.Message)
	assert.JSONEq(t, body, string(result.Data))
	assert.True(t, result.Meta.Cached)
	assert.True(t, result.Meta.Fallback)
	require.NotNil(t, result.Meta.CachedAt)
	assert.Nil(t, result.Meta.UpstreamStatus)
}

func TestExternalAPI_TimeoutWithoutCache(t *testing.T) {
	doer := &scriptedDoer{results: []doResult{{err: timeoutNetError{}}}}
	svc := NewExternalAPIService(externalTestConfig(), newFakeCacheStore(), doer, zap.NewNop())

	result := svc.CurrentWeather(context.Background(), "Berlin")

	assert.Equal(t, ExternalErrUpstreamTimeout, result.Error)
	assert.Equal(t, "The external weather service timed out and no cached data available.", result.Message)
	assert.Nil(t, result.Data)
	assert.False(t, result.Meta.Cached)
}

func TestExternalAPI_ConnectionFailureClassified(t *testing.T) {
	connErr := &url.Error{Op: "Get", URL: "https://api.weatherapi.test", Err: errors.New("connection refused")}
	doer := &scriptedDoer{results: []doResult{{err: connErr}}}
	svc := NewExternalAPIService(externalTestConfig(), newFakeCacheStore(), doer, zap.NewNop())

	result := svc.CurrentWeather(context.Background(), "Berlin")

	assert.Equal(t, ExternalErrUpstreamFailure, result.Error)
	assert.Equal(t, "Failed to communicate with external weather service and no cached data available.", result.Message)
	// One retry after the transient failure.
	assert.Equal(t, 2, doer.calls)
}

func TestExternalAPI_Non2xxIsUnavailable(t *testing.T) {
	doer := &scriptedDoer{results: []doResult{{status: 500, body: `{"error":"internal"}`}}}
	svc := NewExternalAPIService(externalTestConfig(), newFakeCacheStore(), doer, zap.NewNop())

	result := svc.CurrentWeather(context.Background(), "Berlin")

	assert.Equal(t, ExternalErrUpstreamUnavailable, result.Error)
	require.NotNil(t, result.Meta.UpstreamStatus)
	assert.Equal(t, 500, *result.Meta.UpstreamStatus)
}

func TestExternalAPI_InvalidBodyIsUnexpected(t *testing.T) {
	doer := &scriptedDoer{results: []doResult{{status: 200, body: `<html>not json</html>`}}}
	svc := NewExternalAPIService(externalTestConfig(), newFakeCacheStore(), doer, zap.NewNop())

	result := svc.CurrentWeather(context.Background(), "Berlin")

	assert.Equal(t, ExternalErrUnexpected, result.Error)
}

func TestExternalAPI_CacheGetErrorTreatedAsMiss(t *testing.T) {
	store := newFakeCacheStore()
	store.getErr = errors.New("redis down")
	body := `{"current":{"temp_c":12.0}}`
	doer := &scriptedDoer{results: []doResult{{status: 200, body: body}}}
	svc := NewExternalAPIService(externalTestConfig(), store, doer, zap.NewNop())

	result := svc.CurrentWeather(context.Background(), "Berlin")

	assert.Empty(t, result.Error)
	assert.JSONEq(t, body, string(result.Data))
}

func TestExternalAPI_CacheSetErrorDoesNotFailRequest(t *testing.T) {
	store := newFakeCacheStore()
	store.setErr = errors.New("redis down")
	body := `{"current":{"temp_c":12.0}}`
	doer := &scriptedDoer{results: []doResult{{status: 200, body: body}}}
	svc := NewExternalAPIService(externalTestConfig(), store, doer, zap.NewNop())

	result := svc.CurrentWeather(context.Background(), "Berlin")

	assert.Empty(t, result.Error)
	assert.False(t, result.Meta.Cached)
}
