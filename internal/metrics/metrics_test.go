package metrics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stocklyzer/stocklyzer/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

var testBase = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// series builds observations spaced gapDays apart with the given closes.
func series(gapDays int, closes ...float64) []models.PriceObservation {
	obs := make([]models.PriceObservation, len(closes))
	for i, c := range closes {
		obs[i] = models.PriceObservation{
			Date:  testBase.AddDate(0, 0, i*gapDays),
			Close: c,
		}
	}
	return obs
}

// daily builds daily-spaced observations.
func daily(closes ...float64) []models.PriceObservation {
	return series(1, closes...)
}

// rampSeries generates n daily closes that rise for the first half
// and fall for the second half.
func rampSeries(n int, start float64) []models.PriceObservation {
	closes := make([]float64, n)
	price := start
	for i := 0; i < n; i++ {
		if i < n/2 {
			price *= 1.01
		} else {
			price *= 0.99
		}
		closes[i] = price
	}
	return daily(closes...)
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// ════════════════════════════════════════════════════════════════════
// Input validation (shared contract of all metrics)
// ════════════════════════════════════════════════════════════════════

func TestMetricsRejectShortSeries(t *testing.T) {
	for _, obs := range [][]models.PriceObservation{nil, daily(100)} {
		if _, err := XIRR(obs); !errors.Is(err, ErrInsufficientData) {
			t.Errorf("XIRR(%d obs): got %v, want ErrInsufficientData", len(obs), err)
		}
		if _, err := SharpeRatio(obs, 0.02); !errors.Is(err, ErrInsufficientData) {
			t.Errorf("SharpeRatio(%d obs): got %v, want ErrInsufficientData", len(obs), err)
		}
		if _, err := Volatility(obs); !errors.Is(err, ErrInsufficientData) {
			t.Errorf("Volatility(%d obs): got %v, want ErrInsufficientData", len(obs), err)
		}
	}
}

func TestMetricsRejectBadPrices(t *testing.T) {
	tests := []struct {
		name string
		obs  []models.PriceObservation
	}{
		{"zero close", daily(100, 0, 102)},
		{"negative close", daily(100, -5, 102)},
		{"duplicate date", []models.PriceObservation{
			{Date: testBase, Close: 100},
			{Date: testBase, Close: 101},
		}},
		{"dates out of order", []models.PriceObservation{
			{Date: testBase.AddDate(0, 0, 1), Close: 100},
			{Date: testBase, Close: 101},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := XIRR(tt.obs); !errors.Is(err, ErrBadData) {
				t.Errorf("XIRR: got %v, want ErrBadData", err)
			}
			if _, err := SharpeRatio(tt.obs, 0.02); !errors.Is(err, ErrBadData) {
				t.Errorf("SharpeRatio: got %v, want ErrBadData", err)
			}
			if _, err := Volatility(tt.obs); !errors.Is(err, ErrBadData) {
				t.Errorf("Volatility: got %v, want ErrBadData", err)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Sharpe Ratio
// ════════════════════════════════════════════════════════════════════

func TestSharpeRatioConstantSeriesIsZero(t *testing.T) {
	got, err := SharpeRatio(daily(100, 100, 100, 100, 100), 0.02)
	if err != nil {
		t.Fatalf("SharpeRatio: %v", err)
	}
	if got != 0 {
		t.Errorf("constant series: got %v, want exactly 0", got)
	}
}

func TestSharpeRatioSign(t *testing.T) {
	up, err := SharpeRatio(daily(100, 101, 102.2, 103, 104.5, 105.1), 0.02)
	if err != nil {
		t.Fatalf("SharpeRatio up: %v", err)
	}
	if up <= 0 {
		t.Errorf("rising series: got %v, want > 0", up)
	}

	down, err := SharpeRatio(daily(105.1, 104.5, 103, 102.2, 101, 100), 0.02)
	if err != nil {
		t.Fatalf("SharpeRatio down: %v", err)
	}
	if down >= 0 {
		t.Errorf("falling series: got %v, want < 0", down)
	}
}

func TestSharpeRatioKnownValue(t *testing.T) {
	// Alternate +2% / −1% daily returns: mean and stddev are exact.
	obs := daily(100, 102, 100.98, 103.0, 101.97)
	rets := returns(obs)

	m := mean(rets)
	sd := stddev(rets)
	want := (m*252 - 0.02) / (sd * math.Sqrt(252))

	got, err := SharpeRatio(obs, 0.02)
	if err != nil {
		t.Fatalf("SharpeRatio: %v", err)
	}
	if !almostEqual(got, want, 1e-12) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// ════════════════════════════════════════════════════════════════════
// Volatility
// ════════════════════════════════════════════════════════════════════

func TestVolatilityConstantSeriesIsZero(t *testing.T) {
	got, err := Volatility(daily(50, 50, 50, 50))
	if err != nil {
		t.Fatalf("Volatility: %v", err)
	}
	if got != 0 {
		t.Errorf("constant series: got %v, want exactly 0", got)
	}
}

func TestVolatilityFiniteNonNegative(t *testing.T) {
	obs := daily(100, 100.5, 101.2, 102, 102.8, 104, 105.5)
	got, err := Volatility(obs)
	if err != nil {
		t.Fatalf("Volatility: %v", err)
	}
	if math.IsNaN(got) || math.IsInf(got, 0) || got < 0 {
		t.Errorf("got %v, want finite and non-negative", got)
	}
}

func TestVolatilityAnnualizationScalesWithSpacing(t *testing.T) {
	closes := []float64{100, 102, 101, 103, 102.5, 104}

	dailyVol, err := Volatility(series(1, closes...))
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	weeklyVol, err := Volatility(series(7, closes...))
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}

	// Same returns, different periodicity: ratio must be √(252/52).
	wantRatio := math.Sqrt(252.0 / 52.0)
	if !almostEqual(dailyVol/weeklyVol, wantRatio, 1e-9) {
		t.Errorf("daily/weekly ratio: got %v, want %v", dailyVol/weeklyVol, wantRatio)
	}
}

func TestPeriodsPerYear(t *testing.T) {
	tests := []struct {
		name    string
		gapDays int
		want    float64
	}{
		{"daily", 1, 252},
		{"daily with weekends", 3, 252},
		{"weekly", 7, 52},
		{"monthly", 30, 12},
		{"ambiguous wide spacing", 90, 252},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := series(tt.gapDays, 100, 101, 102, 103)
			if got := periodsPerYear(obs); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Beta
// ════════════════════════════════════════════════════════════════════

func TestBetaAgainstSelfIsOne(t *testing.T) {
	obs := daily(100, 102, 101, 104, 103, 106)
	got, err := Beta(obs, obs)
	if err != nil {
		t.Fatalf("Beta: %v", err)
	}
	if !almostEqual(got, 1.0, 1e-9) {
		t.Errorf("beta vs self: got %v, want 1.0", got)
	}
}

func TestBetaScaledMoves(t *testing.T) {
	// The stock moves exactly twice the benchmark's return each day.
	bench := daily(100, 101, 100.5, 102, 101.2)
	stock := make([]models.PriceObservation, len(bench))
	price := 50.0
	stock[0] = models.PriceObservation{Date: bench[0].Date, Close: price}
	for i := 1; i < len(bench); i++ {
		r := (bench[i].Close - bench[i-1].Close) / bench[i-1].Close
		price *= 1 + 2*r
		stock[i] = models.PriceObservation{Date: bench[i].Date, Close: price}
	}

	got, err := Beta(stock, bench)
	if err != nil {
		t.Fatalf("Beta: %v", err)
	}
	if !almostEqual(got, 2.0, 1e-9) {
		t.Errorf("got %v, want 2.0", got)
	}
}

func TestBetaFlatBenchmarkIsZero(t *testing.T) {
	got, err := Beta(daily(100, 102, 101, 104), daily(50, 50, 50, 50))
	if err != nil {
		t.Fatalf("Beta: %v", err)
	}
	if got != 0 {
		t.Errorf("flat benchmark: got %v, want 0", got)
	}
}

func TestBetaNoOverlap(t *testing.T) {
	stock := daily(100, 101, 102, 103)
	bench := make([]models.PriceObservation, 4)
	for i := range bench {
		bench[i] = models.PriceObservation{
			Date:  testBase.AddDate(1, 0, i),
			Close: 100 + float64(i),
		}
	}

	if _, err := Beta(stock, bench); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("disjoint dates: got %v, want ErrInsufficientData", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Max Drawdown / CAGR
// ════════════════════════════════════════════════════════════════════

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name string
		obs  []models.PriceObservation
		want float64
	}{
		{"monotonic rise", daily(100, 101, 102, 103), 0},
		{"single dip", daily(100, 120, 90, 100), 25},
		{"constant", daily(100, 100, 100), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MaxDrawdown(tt.obs)
			if err != nil {
				t.Fatalf("MaxDrawdown: %v", err)
			}
			if !almostEqual(got, tt.want, 1e-9) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCAGROneYearTenPercent(t *testing.T) {
	obs := []models.PriceObservation{
		{Date: testBase, Close: 100},
		{Date: testBase.Add(time.Duration(365.25 * 24 * float64(time.Hour))), Close: 110},
	}
	got, err := CAGR(obs)
	if err != nil {
		t.Fatalf("CAGR: %v", err)
	}
	if !almostEqual(got, 10.0, 1e-6) {
		t.Errorf("got %v, want 10.0", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// Determinism
// ════════════════════════════════════════════════════════════════════

func TestMetricsIdempotent(t *testing.T) {
	obs := rampSeries(100, 150)

	x1, err := XIRR(obs)
	if err != nil {
		t.Fatalf("XIRR: %v", err)
	}
	s1, err := SharpeRatio(obs, 0.02)
	if err != nil {
		t.Fatalf("SharpeRatio: %v", err)
	}
	v1, err := Volatility(obs)
	if err != nil {
		t.Fatalf("Volatility: %v", err)
	}

	x2, _ := XIRR(obs)
	s2, _ := SharpeRatio(obs, 0.02)
	v2, _ := Volatility(obs)

	if x1 != x2 || s1 != s2 || v1 != v2 {
		t.Errorf("repeat calls differ: xirr %v/%v sharpe %v/%v vol %v/%v",
			x1, x2, s1, s2, v1, v2)
	}
}
