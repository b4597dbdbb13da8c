// Package metrics computes summary performance statistics over a
// series of daily closing prices: XIRR, Sharpe ratio, annualized
// volatility, and benchmark-relative measures. All functions are pure
// and safe for concurrent callers.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/stocklyzer/stocklyzer/pkg/models"
)

// --- Sentinel errors ---

// ErrInsufficientData is returned when a series is too short for the
// requested metric.
var ErrInsufficientData = errors.New("not enough price history")

// ErrBadData is returned when the input series itself is invalid:
// a non-positive close, or dates out of order.
var ErrBadData = errors.New("invalid price data")

// ErrNoConvergence is returned when the XIRR root search cannot
// resolve a rate within its bracket and iteration budget.
var ErrNoConvergence = errors.New("rate did not converge")

// ════════════════════════════════════════════════════════════════════
// Sharpe Ratio (annualized)
// ════════════════════════════════════════════════════════════════════

// SharpeRatio returns the annualized excess return over riskFreeRate
// (annual, e.g. 0.02 for 2%) divided by annualized volatility.
// A zero-variance series has no risk-adjusted signal to report and
// saturates to exactly 0.0 rather than failing.
func SharpeRatio(obs []models.PriceObservation, riskFreeRate float64) (float64, error) {
	if err := validate(obs); err != nil {
		return 0, err
	}

	rets := returns(obs)
	ppy := periodsPerYear(obs)

	sd := stddev(rets)
	if sd == 0 {
		return 0, nil
	}

	annReturn := mean(rets) * ppy
	annVol := sd * math.Sqrt(ppy)

	return (annReturn - riskFreeRate) / annVol, nil
}

// ════════════════════════════════════════════════════════════════════
// Volatility (annualized, percent)
// ════════════════════════════════════════════════════════════════════

// Volatility returns the annualized standard deviation of period
// returns, as a percentage.
func Volatility(obs []models.PriceObservation) (float64, error) {
	if err := validate(obs); err != nil {
		return 0, err
	}

	rets := returns(obs)
	ppy := periodsPerYear(obs)

	return stddev(rets) * math.Sqrt(ppy) * 100, nil
}

// ════════════════════════════════════════════════════════════════════
// Beta (benchmark-relative)
// ════════════════════════════════════════════════════════════════════

// Beta returns the covariance of the series' returns with the
// benchmark's returns over the benchmark return variance, using only
// dates present in both series. A zero-variance benchmark saturates
// to 0.0.
func Beta(obs, benchmark []models.PriceObservation) (float64, error) {
	if err := validate(obs); err != nil {
		return 0, err
	}
	if err := validate(benchmark); err != nil {
		return 0, fmt.Errorf("benchmark: %w", err)
	}

	benchByDate := make(map[string]float64, len(benchmark))
	for _, p := range benchmark {
		benchByDate[p.Date.Format("2006-01-02")] = p.Close
	}

	var own, bench []float64
	for _, p := range obs {
		if bc, ok := benchByDate[p.Date.Format("2006-01-02")]; ok {
			own = append(own, p.Close)
			bench = append(bench, bc)
		}
	}
	if len(own) < 3 {
		return 0, fmt.Errorf("%w: %d overlapping dates with benchmark", ErrInsufficientData, len(own))
	}

	ownRets := priceReturns(own)
	benchRets := priceReturns(bench)

	benchVar := variance(benchRets)
	if benchVar == 0 {
		return 0, nil
	}

	return covariance(ownRets, benchRets) / benchVar, nil
}

// ════════════════════════════════════════════════════════════════════
// Maximum Drawdown (percent)
// ════════════════════════════════════════════════════════════════════

// MaxDrawdown returns the deepest peak-to-trough decline in the
// series, as a percentage of the peak. A monotonically rising series
// yields 0.
func MaxDrawdown(obs []models.PriceObservation) (float64, error) {
	if err := validate(obs); err != nil {
		return 0, err
	}

	peak := obs[0].Close
	maxDD := 0.0
	for _, p := range obs {
		if p.Close > peak {
			peak = p.Close
		}
		dd := (peak - p.Close) / peak * 100
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD, nil
}

// ════════════════════════════════════════════════════════════════════
// CAGR — Compound Annual Growth Rate (percent)
// ════════════════════════════════════════════════════════════════════

// CAGR returns the compound annual growth rate between the first and
// last observation, as a percentage.
func CAGR(obs []models.PriceObservation) (float64, error) {
	if err := validate(obs); err != nil {
		return 0, err
	}

	days := obs[len(obs)-1].Date.Sub(obs[0].Date).Hours() / 24
	if days <= 0 {
		return 0, fmt.Errorf("%w: non-positive elapsed time", ErrInsufficientData)
	}
	years := days / 365.25

	return (math.Pow(obs[len(obs)-1].Close/obs[0].Close, 1.0/years) - 1) * 100, nil
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

// validate checks the invariants every metric relies on: at least two
// points, strictly positive closes, strictly increasing dates.
func validate(obs []models.PriceObservation) error {
	if len(obs) < 2 {
		return fmt.Errorf("%w: %d observations", ErrInsufficientData, len(obs))
	}
	for i, p := range obs {
		if p.Close <= 0 {
			return fmt.Errorf("%w: non-positive close %.4f at %s", ErrBadData, p.Close, p.Date.Format("2006-01-02"))
		}
		if i > 0 && !obs[i-1].Date.Before(p.Date) {
			return fmt.Errorf("%w: dates not strictly increasing at %s", ErrBadData, p.Date.Format("2006-01-02"))
		}
	}
	return nil
}

// returns computes period-over-period fractional returns.
func returns(obs []models.PriceObservation) []float64 {
	rets := make([]float64, len(obs)-1)
	for i := 1; i < len(obs); i++ {
		rets[i-1] = (obs[i].Close - obs[i-1].Close) / obs[i-1].Close
	}
	return rets
}

// priceReturns is returns over a bare price slice.
func priceReturns(prices []float64) []float64 {
	rets := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		rets[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	return rets
}

// periodsPerYear infers the annualization factor from the median
// spacing between observations: daily data annualizes at 252 trading
// periods, weekly at 52, monthly at 12. Ambiguous spacing defaults
// to daily.
func periodsPerYear(obs []models.PriceObservation) float64 {
	gaps := make([]float64, 0, len(obs)-1)
	for i := 1; i < len(obs); i++ {
		gaps = append(gaps, obs[i].Date.Sub(obs[i-1].Date).Hours()/24)
	}
	sort.Float64s(gaps)

	med := gaps[len(gaps)/2]
	if len(gaps)%2 == 0 {
		med = (gaps[len(gaps)/2-1] + gaps[len(gaps)/2]) / 2
	}

	switch {
	case med <= 4:
		return 252
	case med <= 14:
		return 52
	case med <= 45:
		return 12
	default:
		return 252
	}
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// variance is the Bessel-corrected sample variance.
func variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	m := mean(data)
	sumSq := 0.0
	for _, v := range data {
		d := v - m
		sumSq += d * d
	}
	return sumSq / float64(len(data)-1)
}

func stddev(data []float64) float64 {
	return math.Sqrt(variance(data))
}

// covariance is the Bessel-corrected sample covariance of two
// equal-length series.
func covariance(a, b []float64) float64 {
	if len(a) < 2 || len(a) != len(b) {
		return 0
	}
	ma, mb := mean(a), mean(b)
	sum := 0.0
	for i := range a {
		sum += (a[i] - ma) * (b[i] - mb)
	}
	return sum / float64(len(a)-1)
}
