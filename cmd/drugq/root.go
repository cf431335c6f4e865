package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	cfgpkg "github.com/Skufu/dosewise/internal/config"
	"github.com/Skufu/dosewise/internal/dataset"
	"github.com/Skufu/dosewise/internal/engine"
)

var (
	// Global flags
	cfgFile        string
	flagSource     string
	flagEps        float64
	flagMinSamples int

	// Loaded configuration
	cfg *cfgpkg.Config
)

var rootCmd = &cobra.Command{
	Use:   "drugq",
	Short: "Query the drug clustering engine from the command line",
	Long: `drugq loads a drug dataset, clusters it with DBSCAN and answers lookups:
the matched record, the drugs clustered with it and a suggested dosage limit.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "YAML config file (defaults and environment otherwise)")
	f.StringVar(&flagSource, "source", "", "dataset path: .csv, .tsv or a SQLite file (overrides config)")
	f.Float64Var(&flagEps, "eps", 0, "DBSCAN neighbourhood radius (overrides config)")
	f.IntVar(&flagMinSamples, "min-samples", 0, "DBSCAN core point threshold (overrides config)")
}

func loadConfig() error {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("source") && flagSource != "" {
		c.DatasetPath = flagSource
		c.EnableDB = false
	}
	if f.Changed("eps") {
		c.Eps = flagEps
	}
	if f.Changed("min-samples") {
		c.MinSamples = flagMinSamples
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	return nil
}

// buildEngine runs the full startup sequence against the configured source.
func buildEngine(ctx context.Context) (*engine.Engine, error) {
	opts := cfg.EngineOptions(cfg.Logger())
	if !cfg.EnableDB {
		return engine.Initialize(ctx, opts)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	defer pool.Close()

	store, err := dataset.LoadPostgres(ctx, pool, cfg.DatasetTable)
	if err != nil {
		return nil, err
	}
	return engine.New(ctx, store, opts)
}
