// Package models defines the core data structures used throughout Stocklyzer.
package models

import "time"

// PriceObservation is a single daily closing price for a symbol.
// Sequences of observations are ordered ascending by date with no
// duplicate dates; the close is strictly positive for valid data.
type PriceObservation struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// AnalysisResult is the summary produced for one symbol. Numeric
// fields are percentages except Sharpe, and are rounded to three
// decimal places for stable output.
type AnalysisResult struct {
	Symbol     string  `json:"symbol"`
	XIRR       float64 `json:"xirr"`
	Sharpe     float64 `json:"sharpe"`
	Volatility float64 `json:"volatility"`
}

// FullResult extends AnalysisResult with benchmark-relative and
// path-dependent statistics plus the price window used to compute
// them, for charting.
type FullResult struct {
	AnalysisResult

	Benchmark   string             `json:"benchmark"`
	Beta        float64            `json:"beta"`
	CAGR        float64            `json:"cagr"`
	MaxDrawdown float64            `json:"max_drawdown"`
	Prices      []PriceObservation `json:"prices"`
}
