// Package provider fetches historical price data from external
// market-data APIs. It defines the Provider interface the analysis
// layer consumes and a concrete Alpha Vantage implementation.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/stocklyzer/stocklyzer/pkg/models"
)

// Provider is the single capability the analysis layer needs: an
// ordered window of daily closes for a symbol. Implementations must
// return observations sorted ascending by date with no duplicates.
type Provider interface {
	// Name returns the human-readable name of this data source.
	Name() string

	// DailyCloses returns up to lookback of the most recent daily
	// closing prices for symbol, oldest first.
	DailyCloses(ctx context.Context, symbol string, lookback int) ([]models.PriceObservation, error)
}

// --- Sentinel errors ---

// ErrSymbolNotFound is returned when the source does not recognize
// the symbol.
var ErrSymbolNotFound = fmt.Errorf("symbol not found")

// ErrRateLimited is returned when the source rate-limits the request.
var ErrRateLimited = fmt.Errorf("rate limited by data source")

// HTTPError wraps a transport-level failure with its status code.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// --- Shared HTTP helper ---

// doGet performs a GET request and returns the full response body.
func doGet(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: HTTP 429", ErrRateLimited)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return io.ReadAll(resp.Body)
}

// --- In-memory response cache ---

type cacheEntry struct {
	obs       []models.PriceObservation
	expiresAt time.Time
}

// obsCache is a thread-safe TTL cache of fetched observation windows,
// keyed by symbol and lookback. Alpha Vantage's free tier allows very
// few requests per minute, so repeat lookups must not hit the wire.
type obsCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func newObsCache(ttl time.Duration) *obsCache {
	return &obsCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *obsCache) get(key string) ([]models.PriceObservation, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.obs, true
}

func (c *obsCache) set(key string, obs []models.PriceObservation) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{
		obs:       obs,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// --- Rate limiter ---

// rateLimiter provides simple token-bucket rate limiting.
type rateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// newRateLimiter creates a limiter that allows maxTokens requests per
// refillRate duration.
func newRateLimiter(maxTokens int, refillRate time.Duration) *rateLimiter {
	return &rateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// wait blocks until a token is available or the context is cancelled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()
		if rl.tokens > 0 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
			// Check again after a short sleep.
		}
	}
}

// refill adds tokens based on elapsed time. Must be called with mu held.
func (rl *rateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed >= rl.refillRate {
		periods := int(elapsed / rl.refillRate)
		rl.tokens += periods
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = rl.lastRefill.Add(time.Duration(periods) * rl.refillRate)
	}
}
