package metrics

import (
	"fmt"
	"math"

	"github.com/stocklyzer/stocklyzer/pkg/models"
)

// XIRR root search bounds and convergence policy. The bracket spans
// −99% to +1000% annualized; anything outside it is not a rate worth
// reporting for a price series.
const (
	xirrRateMin   = -0.99
	xirrRateMax   = 10.0
	xirrMaxIter   = 100
	xirrTolerance = 1e-6
)

// cashFlow is one dated flow of the synthetic two-event series XIRR
// is solved against.
type cashFlow struct {
	amount float64
	days   float64 // elapsed days from the first observation
}

// ════════════════════════════════════════════════════════════════════
// XIRR — Extended Internal Rate of Return (annualized, percent)
// ════════════════════════════════════════════════════════════════════

// XIRR returns the annualized rate implied by holding one unit of
// value from the first to the last observed price: an outflow of −1.0
// at the first date and an inflow of lastClose/firstClose at the last
// date. The rate r solves
//
//	NPV(r) = Σ amountᵢ / (1+r)^(daysᵢ/365) = 0
//
// by bisection over [−0.99, 10.0] with at most 100 iterations and a
// tolerance of |NPV(r)| < 1e-6. The result is a percentage.
func XIRR(obs []models.PriceObservation) (float64, error) {
	if err := validate(obs); err != nil {
		return 0, err
	}

	first, last := obs[0], obs[len(obs)-1]
	days := last.Date.Sub(first.Date).Hours() / 24
	if days <= 0 {
		return 0, fmt.Errorf("%w: non-positive elapsed time", ErrInsufficientData)
	}

	flows := []cashFlow{
		{amount: -1.0, days: 0},
		{amount: last.Close / first.Close, days: days},
	}

	rate, err := solveRate(flows)
	if err != nil {
		return 0, err
	}
	return rate * 100, nil
}

// npv discounts each flow back to the first date at the candidate
// rate using its exact fractional-year offset.
func npv(rate float64, flows []cashFlow) float64 {
	total := 0.0
	for _, f := range flows {
		total += f.amount / math.Pow(1+rate, f.days/365.0)
	}
	return total
}

// solveRate finds the root of npv by bisection. The bracket must
// straddle a sign change; a flat NPV across the bracket means no rate
// in range zeroes it.
func solveRate(flows []cashFlow) (float64, error) {
	lo, hi := xirrRateMin, xirrRateMax
	fLo, fHi := npv(lo, flows), npv(hi, flows)

	if math.Abs(fLo) < xirrTolerance {
		return lo, nil
	}
	if math.Abs(fHi) < xirrTolerance {
		return hi, nil
	}
	if fLo*fHi > 0 {
		return 0, fmt.Errorf("%w: no sign change in [%.2f, %.2f]", ErrNoConvergence, lo, hi)
	}

	for i := 0; i < xirrMaxIter; i++ {
		mid := (lo + hi) / 2
		fMid := npv(mid, flows)

		if math.Abs(fMid) < xirrTolerance {
			return mid, nil
		}

		if fLo*fMid < 0 {
			hi = mid
		} else {
			lo, fLo = mid, fMid
		}
	}

	return 0, fmt.Errorf("%w: %d iterations exhausted", ErrNoConvergence, xirrMaxIter)
}
