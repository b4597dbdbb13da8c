package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stocklyzer/stocklyzer/pkg/models"
)

// DefaultBaseURL is the Alpha Vantage query endpoint.
const DefaultBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageConfig configures an AlphaVantage client.
type AlphaVantageConfig struct {
	APIKey  string
	BaseURL string        // defaults to DefaultBaseURL
	Timeout time.Duration // defaults to 30s
}

// AlphaVantage implements Provider using the Alpha Vantage
// TIME_SERIES_DAILY API.
type AlphaVantage struct {
	apiKey  string
	baseURL string
	client  *http.Client
	cache   *obsCache
	limiter *rateLimiter
}

// NewAlphaVantage creates a new Alpha Vantage data source. The free
// tier allows 5 requests per minute, which the built-in limiter
// enforces client-side.
func NewAlphaVantage(cfg AlphaVantageConfig) *AlphaVantage {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &AlphaVantage{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cache:   newObsCache(5 * time.Minute),
		limiter: newRateLimiter(5, time.Minute),
	}
}

// Name returns the data source name.
func (a *AlphaVantage) Name() string { return "Alpha Vantage" }

// DailyCloses fetches the TIME_SERIES_DAILY series for symbol and
// returns the most recent lookback closes, oldest first.
//
// The payload is a date-keyed object whose inner field names carry
// ordinal prefixes ("4. close"), so it is parsed with gjson rather
// than static structs.
func (a *AlphaVantage) DailyCloses(ctx context.Context, symbol string, lookback int) ([]models.PriceObservation, error) {
	cacheKey := fmt.Sprintf("daily:%s:%d", symbol, lookback)
	if cached, ok := a.cache.get(cacheKey); ok {
		return cached, nil
	}

	if err := a.limiter.wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", symbol)
	q.Set("apikey", a.apiKey)

	body, err := doGet(ctx, a.client, a.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("alphavantage daily %s: %w", symbol, err)
	}

	obs, err := parseDailySeries(body, symbol, lookback)
	if err != nil {
		return nil, err
	}

	a.cache.set(cacheKey, obs)
	return obs, nil
}

// parseDailySeries maps Alpha Vantage's in-band error shapes to
// sentinel errors and extracts the close series.
func parseDailySeries(body []byte, symbol string, lookback int) ([]models.PriceObservation, error) {
	// A "Note" or "Information" field means the free-tier quota ran out.
	if gjson.GetBytes(body, "Note").Exists() || gjson.GetBytes(body, "Information").Exists() {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, symbol)
	}
	if gjson.GetBytes(body, "Error Message").Exists() {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	series := gjson.GetBytes(body, "Time Series (Daily)")
	if !series.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	var obs []models.PriceObservation
	var parseErr error
	series.ForEach(func(key, value gjson.Result) bool {
		date, err := time.Parse("2006-01-02", key.String())
		if err != nil {
			parseErr = fmt.Errorf("alphavantage: bad date %q: %w", key.String(), err)
			return false
		}
		obs = append(obs, models.PriceObservation{
			Date:  date.UTC(),
			Close: value.Get(`4\. close`).Float(),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	sort.Slice(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })

	if lookback > 0 && len(obs) > lookback {
		obs = obs[len(obs)-lookback:]
	}
	return obs, nil
}
