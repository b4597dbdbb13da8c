// Package analyze orchestrates a single analysis request: it
// validates the symbol, obtains price history from a provider, runs
// the metrics engine, and assembles the result.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/stocklyzer/stocklyzer/internal/metrics"
	"github.com/stocklyzer/stocklyzer/internal/provider"
	"github.com/stocklyzer/stocklyzer/pkg/models"
)

// --- Sentinel errors ---

// ErrInvalidSymbol is returned for malformed symbol input, before any
// network call is attempted.
var ErrInvalidSymbol = errors.New("invalid symbol")

// ErrTimeout is returned when the provider fetch exceeds the caller's
// time budget.
var ErrTimeout = errors.New("request timed out")

// symbolPattern accepts exchange tickers: alphanumeric plus dot, at
// most 10 characters.
var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9.]{1,10}$`)

// Options holds the plain numeric knobs of the analysis. Zero values
// fall back to defaults in NewService.
type Options struct {
	RiskFreeRate float64 // annual, e.g. 0.02
	Lookback     int     // trading days of history to request
	Benchmark    string  // benchmark symbol for beta
}

// Service runs analysis requests against a data provider. It holds no
// mutable state between calls; concurrent use is safe.
type Service struct {
	src  provider.Provider
	opts Options
}

// NewService creates a Service over the given provider. Unset options
// default to a 2% risk-free rate, a 100-day lookback, and SPY as the
// beta benchmark.
func NewService(src provider.Provider, opts Options) *Service {
	if opts.RiskFreeRate == 0 {
		opts.RiskFreeRate = 0.02
	}
	if opts.Lookback == 0 {
		opts.Lookback = 100
	}
	if opts.Benchmark == "" {
		opts.Benchmark = "SPY"
	}
	return &Service{src: src, opts: opts}
}

// Analyze computes XIRR, Sharpe ratio, and volatility for one symbol.
// Numeric fields are rounded to three decimal places.
func (s *Service) Analyze(ctx context.Context, symbol string) (*models.AnalysisResult, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	obs, err := s.src.DailyCloses(ctx, symbol, s.opts.Lookback)
	if err != nil {
		return nil, mapFetchErr(err, symbol)
	}

	return s.buildResult(symbol, obs)
}

// AnalyzeFull computes the base metrics plus benchmark-relative beta,
// CAGR, and maximum drawdown, and returns the price window used.
// Symbol and benchmark history are fetched concurrently. A failed
// benchmark fetch degrades beta to zero rather than failing the
// request.
func (s *Service) AnalyzeFull(ctx context.Context, symbol string) (*models.FullResult, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	var obs, benchObs []models.PriceObservation
	var benchErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		obs, err = s.src.DailyCloses(gctx, symbol, s.opts.Lookback)
		return err
	})
	g.Go(func() error {
		// Benchmark failures are recorded, not propagated: they must
		// not cancel the symbol fetch.
		benchObs, benchErr = s.src.DailyCloses(gctx, s.opts.Benchmark, s.opts.Lookback)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, mapFetchErr(err, symbol)
	}

	base, err := s.buildResult(symbol, obs)
	if err != nil {
		return nil, err
	}

	full := &models.FullResult{
		AnalysisResult: *base,
		Benchmark:      s.opts.Benchmark,
		Prices:         obs,
	}

	if benchErr != nil {
		log.Printf("analyze: benchmark %s unavailable, skipping beta: %v", s.opts.Benchmark, benchErr)
	} else if beta, err := metrics.Beta(obs, benchObs); err != nil {
		log.Printf("analyze: beta for %s: %v", symbol, err)
	} else {
		full.Beta = round3(beta)
	}

	if cagr, err := metrics.CAGR(obs); err == nil {
		full.CAGR = round3(cagr)
	}
	if dd, err := metrics.MaxDrawdown(obs); err == nil {
		full.MaxDrawdown = round3(dd)
	}

	return full, nil
}

// buildResult runs the three core metrics over one observation window.
func (s *Service) buildResult(symbol string, obs []models.PriceObservation) (*models.AnalysisResult, error) {
	xirr, err := metrics.XIRR(obs)
	if err != nil {
		return nil, fmt.Errorf("xirr %s: %w", symbol, err)
	}
	sharpe, err := metrics.SharpeRatio(obs, s.opts.RiskFreeRate)
	if err != nil {
		return nil, fmt.Errorf("sharpe %s: %w", symbol, err)
	}
	vol, err := metrics.Volatility(obs)
	if err != nil {
		return nil, fmt.Errorf("volatility %s: %w", symbol, err)
	}

	return &models.AnalysisResult{
		Symbol:     symbol,
		XIRR:       round3(xirr),
		Sharpe:     round3(sharpe),
		Volatility: round3(vol),
	}, nil
}

// normalizeSymbol validates and upper-cases the requested symbol.
func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.TrimSpace(symbol)
	if !symbolPattern.MatchString(symbol) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return strings.ToUpper(symbol), nil
}

// mapFetchErr converts context expiry into the service's timeout
// error; provider errors pass through unchanged so callers keep the
// not-found / rate-limit / transport distinction.
func mapFetchErr(err error, symbol string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: fetching %s", ErrTimeout, symbol)
	}
	return err
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
