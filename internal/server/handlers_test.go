package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerwell/fincollect/internal/app"
	"github.com/tickerwell/fincollect/internal/auth"
	"github.com/tickerwell/fincollect/internal/common"
	"github.com/tickerwell/fincollect/internal/models"
	"github.com/tickerwell/fincollect/internal/services/market"
)

// fakeMarketClient is a MarketDataClient double that records gateway calls.
type fakeMarketClient struct {
	dailyBars    []models.Bar
	intradayBars []models.Bar
	info         *models.TickerInfo
	err          error

	calls int
}

func (f *fakeMarketClient) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.dailyBars, nil
}

func (f *fakeMarketClient) GetIntradayBars(ctx context.Context, symbol string) ([]models.Bar, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.intradayBars, nil
}

func (f *fakeMarketClient) GetTickerInfo(ctx context.Context, symbol string) (*models.TickerInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.info != nil {
		return f.info, nil
	}
	return &models.TickerInfo{Name: symbol}, nil
}

func newTestServer(t *testing.T, client *fakeMarketClient) (*httptest.Server, *common.Config) {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Auth.ClientID = "test_client_id"
	cfg.Auth.ClientSecret = "test_client_secret"
	cfg.Auth.APIKey = "test_api_key"
	cfg.Auth.JWTSecret = "test-jwt-secret"
	cfg.Auth.JWTExpiryMinutes = 30

	logger := common.NewSilentLogger()
	a := &app.App{
		Config:       cfg,
		Logger:       logger,
		MarketClient: client,
		Auth:         auth.NewService(&cfg.Auth, logger),
		Market:       market.NewService(client, logger),
		StartupTime:  time.Now(),
	}

	ts := httptest.NewServer(NewServer(a).Handler())
	t.Cleanup(ts.Close)
	return ts, cfg
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, url string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func issueTestToken(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, ts.URL+"/token", map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	token, ok := body["access_token"].(string)
	require.True(t, ok, "expected access_token in response")
	return token
}

// recentBar returns an intraday bar stamped "now" so the freshness policy
// keeps it.
func recentBar(close float64) models.Bar {
	return models.Bar{
		Timestamp: time.Now(),
		Open:      close - 1,
		High:      close + 1,
		Low:       close - 2,
		Close:     close,
		Volume:    1000,
	}
}

// --- Token issuance ---

func TestToken_ValidCredentials(t *testing.T) {
	ts, _ := newTestServer(t, &fakeMarketClient{})

	resp := postJSON(t, ts.URL+"/token", map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])
}

func TestToken_InvalidCredentials(t *testing.T) {
	ts, _ := newTestServer(t, &fakeMarketClient{})

	cases := []map[string]string{
		{"client_id": "wrong_id", "client_secret": "test_client_secret"},
		{"client_id": "test_client_id", "client_secret": "wrong_secret"},
		{"client_id": "wrong_id", "client_secret": "wrong_secret"},
	}
	for _, c := range cases {
		resp := postJSON(t, ts.URL+"/token", c)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
		body := decodeBody(t, resp)
		assert.Contains(t, body["error"], "Invalid client credentials")
	}
}

func TestToken_MissingFields(t *testing.T) {
	ts, _ := newTestServer(t, &fakeMarketClient{})

	resp := postJSON(t, ts.URL+"/token", map[string]string{"client_id": "test_client_id"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func TestToken_MalformedBody(t *testing.T) {
	ts, _ := newTestServer(t, &fakeMarketClient{})

	resp, err := http.Post(ts.URL+"/token", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func TestToken_MethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, &fakeMarketClient{})

	resp := get(t, ts.URL+"/token", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

// --- API-key gated endpoint ---

func TestGetTicker_WithValidAPIKey(t *testing.T) {
	client := &fakeMarketClient{
		intradayBars: []models.Bar{recentBar(153.0)},
		info:         &models.TickerInfo{Name: "Apple Inc.", Currency: "USD"},
	}
	ts, _ := newTestServer(t, client)

	resp := get(t, ts.URL+"/ticker/AAPL", map[string]string{"X-API-Key": "test_api_key"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "AAPL", body["ticker"])
	assert.Equal(t, "US", body["country"])

	metadata := body["metadata"].(map[string]interface{})
	assert.Equal(t, "Yahoo Finance", metadata["data_source"])
	_, hasNote := metadata["note"]
	assert.False(t, hasNote, "US ticker should not carry a completeness note")

	prices := body["prices"].([]interface{})
	require.Len(t, prices, 1)
	price := prices[0].(map[string]interface{})
	assert.Equal(t, 153.0, price["close"])
}

func TestGetTicker_MissingAPIKey(t *testing.T) {
	client := &fakeMarketClient{}
	ts, _ := newTestServer(t, client)

	resp := get(t, ts.URL+"/ticker/AAPL", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "APIKey", resp.Header.Get("WWW-Authenticate"))
	body := decodeBody(t, resp)
	assert.Contains(t, body["error"], "Invalid API Key")
	assert.Zero(t, client.calls, "gateway must not be reached without auth")
}

func TestGetTicker_InvalidAPIKey(t *testing.T) {
	client := &fakeMarketClient{}
	ts, _ := newTestServer(t, client)

	for _, key := range []string{"wrong_key", "TEST_API_KEY", "test_api_key "} {
		resp := get(t, ts.URL+"/ticker/AAPL", map[string]string{"X-API-Key": key})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Zero(t, client.calls)
}

func TestGetTicker_BearerTokenDoesNotSatisfyAPIKeyGuard(t *testing.T) {
	ts, _ := newTestServer(t, &fakeMarketClient{})
	token := issueTestToken(t, ts)

	resp := get(t, ts.URL+"/ticker/AAPL", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["error"], "Invalid API Key")
}

func TestGetTicker_KoreanSuffixGetsNote(t *testing.T) {
	client := &fakeMarketClient{info: &models.TickerInfo{Name: "Samsung Electronics", Currency: "KRW"}}
	ts, _ := newTestServer(t, client)

	resp := get(t, ts.URL+"/ticker/005930.KS", map[string]string{"X-API-Key": "test_api_key"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "South Korea", body["country"])
	metadata := body["metadata"].(map[string]interface{})
	note, ok := metadata["note"].(string)
	require.True(t, ok, "expected completeness note")
	assert.Contains(t, note, "South Korea")
}

func TestGetTicker_CountryOverride(t *testing.T) {
	client := &fakeMarketClient{info: &models.TickerInfo{Name: "Apple Inc."}}
	ts, _ := newTestServer(t, client)

	resp := get(t, ts.URL+"/ticker/AAPL?country=Japan", map[string]string{"X-API-Key": "test_api_key"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Japan", body["country"])
	metadata := body["metadata"].(map[string]interface{})
	note, ok := metadata["note"].(string)
	require.True(t, ok, "override to non-US must attach the note")
	assert.Contains(t, note, "Japan")
}

func TestGetTicker_USCountryOverrideAttachesNote(t *testing.T) {
	client := &fakeMarketClient{info: &models.TickerInfo{Name: "Apple Inc."}}
	ts, _ := newTestServer(t, client)

	resp := get(t, ts.URL+"/ticker/AAPL?country=US", map[string]string{"X-API-Key": "test_api_key"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "US", body["country"])
	metadata := body["metadata"].(map[string]interface{})
	note, ok := metadata["note"].(string)
	require.True(t, ok, "explicit country override must attach the note even for US")
	assert.Contains(t, note, "US")
}

func TestGetTicker_MalformedDateQuery(t *testing.T) {
	client := &fakeMarketClient{}
	ts, _ := newTestServer(t, client)

	resp := get(t, ts.URL+"/ticker/AAPL?date=not-a-date", map[string]string{"X-API-Key": "test_api_key"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
	assert.Zero(t, client.calls, "malformed date must not reach the gateway")
}

func TestGetTicker_ProviderFailure(t *testing.T) {
	client := &fakeMarketClient{err: errors.New("upstream exploded")}
	ts, _ := newTestServer(t, client)

	resp := get(t, ts.URL+"/ticker/AAPL", map[string]string{"X-API-Key": "test_api_key"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, body["error"], "Error fetching data")
	assert.Contains(t, body["error"], "upstream exploded")
}

// --- Bearer gated endpoint ---

func TestGetTickerByDate_WithToken(t *testing.T) {
	client := &fakeMarketClient{
		dailyBars: []models.Bar{{
			Timestamp: time.Date(2023, 1, 3, 14, 30, 0, 0, time.UTC),
			Open:      150.0,
			High:      155.0,
			Low:       149.0,
			Close:     153.0,
			Volume:    1000000,
		}},
		info: &models.TickerInfo{Name: "Apple Inc.", Currency: "USD"},
	}
	ts, _ := newTestServer(t, client)
	token := issueTestToken(t, ts)

	resp := get(t, ts.URL+"/ticker/AAPL/date/2023-01-03", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "AAPL", body["ticker"])
	assert.Equal(t, "US", body["country"])

	prices := body["prices"].([]interface{})
	require.Len(t, prices, 1)
	price := prices[0].(map[string]interface{})
	assert.Equal(t, "2023-01-03", price["date"])
	assert.Equal(t, 153.0, price["close"])
}

func TestGetTickerByDate_WithoutToken(t *testing.T) {
	client := &fakeMarketClient{}
	ts, _ := newTestServer(t, client)

	resp := get(t, ts.URL+"/ticker/AAPL/date/2023-01-03", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
	resp.Body.Close()
	assert.Zero(t, client.calls)
}

func TestGetTickerByDate_InvalidToken(t *testing.T) {
	client := &fakeMarketClient{}
	ts, _ := newTestServer(t, client)

	resp := get(t, ts.URL+"/ticker/AAPL/date/2023-01-03", map[string]string{"Authorization": "Bearer invalid_token"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["error"], "Could not validate credentials")
	assert.Zero(t, client.calls)
}

func TestGetTickerByDate_APIKeyDoesNotSatisfyBearerGuard(t *testing.T) {
	client := &fakeMarketClient{}
	ts, _ := newTestServer(t, client)

	resp := get(t, ts.URL+"/ticker/AAPL/date/2023-01-03", map[string]string{"X-API-Key": "test_api_key"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
	assert.Zero(t, client.calls)
}

func TestGetTickerByDate_MalformedDate(t *testing.T) {
	client := &fakeMarketClient{}
	ts, _ := newTestServer(t, client)
	token := issueTestToken(t, ts)

	resp := get(t, ts.URL+"/ticker/AAPL/date/2023-13-45", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
	assert.Zero(t, client.calls, "malformed date must not reach the gateway")
}

func TestGetTickerByDate_CountryOverride(t *testing.T) {
	client := &fakeMarketClient{info: &models.TickerInfo{Name: "Samsung Electronics"}}
	ts, _ := newTestServer(t, client)
	token := issueTestToken(t, ts)

	resp := get(t, ts.URL+"/ticker/005930.KS/date/2023-01-03?country=South+Korea", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "South Korea", body["country"])
}

func TestGetTickerByDate_ExpiredToken(t *testing.T) {
	client := &fakeMarketClient{}
	ts, cfg := newTestServer(t, client)

	// Sign a token that expired an hour ago with the server's own secret.
	expired := auth.NewService(&common.AuthConfig{
		ClientID:         cfg.Auth.ClientID,
		ClientSecret:     cfg.Auth.ClientSecret,
		JWTSecret:        cfg.Auth.JWTSecret,
		JWTAlgorithm:     "HS256",
		JWTExpiryMinutes: -60,
	}, nil)
	token, err := expired.IssueToken(cfg.Auth.ClientID, cfg.Auth.ClientSecret)
	require.NoError(t, err)

	resp := get(t, ts.URL+"/ticker/AAPL/date/2023-01-03", map[string]string{"Authorization": "Bearer " + token.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
	assert.Zero(t, client.calls)
}

// --- System routes ---

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, &fakeMarketClient{})

	resp := get(t, ts.URL+"/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestVersion(t *testing.T) {
	ts, _ := newTestServer(t, &fakeMarketClient{})

	resp := get(t, ts.URL+"/api/version", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["version"])
}

func TestTickerRoute_MissingTicker(t *testing.T) {
	ts, _ := newTestServer(t, &fakeMarketClient{})

	resp := get(t, ts.URL+"/ticker/", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCorrelationIDHeader(t *testing.T) {
	ts, _ := newTestServer(t, &fakeMarketClient{})

	resp := get(t, ts.URL+"/api/health", nil)
	assert.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))
	resp.Body.Close()

	resp = get(t, ts.URL+"/api/health", map[string]string{"X-Request-ID": "abc123"})
	assert.Equal(t, "abc123", resp.Header.Get("X-Correlation-ID"))
	resp.Body.Close()
}
