// Stocklyzer — single-symbol stock performance analysis.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stocklyzer/stocklyzer/api"
	"github.com/stocklyzer/stocklyzer/internal/analyze"
	"github.com/stocklyzer/stocklyzer/internal/config"
	"github.com/stocklyzer/stocklyzer/internal/provider"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stocklyzer",
	Short: "Stocklyzer — XIRR, Sharpe ratio, and volatility for a stock symbol",
	Long: `Stocklyzer fetches recent daily closing prices for a stock symbol
from Alpha Vantage and computes three summary performance metrics:
annualized return (XIRR), risk-adjusted return (Sharpe ratio), and
annualized volatility.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
}

// newService wires the Alpha Vantage client and analysis service from
// the loaded config.
func newService() (*analyze.Service, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	src := provider.NewAlphaVantage(provider.AlphaVantageConfig{
		APIKey:  cfg.Provider.APIKey,
		BaseURL: cfg.Provider.BaseURL,
		Timeout: time.Duration(cfg.Provider.TimeoutSec) * time.Second,
	})

	return analyze.NewService(src, analyze.Options{
		RiskFreeRate: cfg.Analysis.RiskFreeRate,
		Lookback:     cfg.Analysis.Lookback,
		Benchmark:    cfg.Analysis.Benchmark,
	}), nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Stocklyzer %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [symbol]",
	Short: "Analyze a stock symbol",
	Long:  "Fetch recent price history for a symbol and print its XIRR, Sharpe ratio, and volatility.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		full, _ := cmd.Flags().GetBool("full")
		if full {
			res, err := svc.AnalyzeFull(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s (last %d trading days)\n", res.Symbol, cfg.Analysis.Lookback)
			fmt.Printf("  XIRR:          %8.3f %%\n", res.XIRR)
			fmt.Printf("  Sharpe:        %8.3f\n", res.Sharpe)
			fmt.Printf("  Volatility:    %8.3f %%\n", res.Volatility)
			fmt.Printf("  Beta (%s):    %8.3f\n", res.Benchmark, res.Beta)
			fmt.Printf("  CAGR:          %8.3f %%\n", res.CAGR)
			fmt.Printf("  Max drawdown:  %8.3f %%\n", res.MaxDrawdown)
			return nil
		}

		res, err := svc.Analyze(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s (last %d trading days)\n", res.Symbol, cfg.Analysis.Lookback)
		fmt.Printf("  XIRR:        %8.3f %%\n", res.XIRR)
		fmt.Printf("  Sharpe:      %8.3f\n", res.Sharpe)
		fmt.Printf("  Volatility:  %8.3f %%\n", res.Volatility)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Bool("full", false, "include beta, CAGR, and max drawdown")
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			// Missing credential is the one startup-fatal condition.
			return err
		}

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("Starting Stocklyzer API server on %s\n", addr)
		return api.NewServer(cfg, svc).ListenAndServe(addr)
	},
}
