package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"EpiPulse/internal/di"
	"EpiPulse/internal/repository"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a case CSV into the ClickHouse cases table",
	Long: `Load daily case rows from a CSV file into ClickHouse so they can be
analyzed with data_source=clickhouse. Re-ingesting the same days replaces them.

Examples:
  epipulse ingest --config config/config.yaml --file owid-covid-data.csv --disease COVID-19`,
	RunE: runIngest,
}

var (
	ingestFile    string
	ingestDisease string
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "CSV file to load")
	ingestCmd.Flags().StringVar(&ingestDisease, "disease", "", "Disease label for files without a disease column")
	_ = ingestCmd.MarkFlagRequired("file")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.ClickHouse.Enabled {
		return errors.New("clickhouse is disabled; set clickhouse.enabled or CLICKHOUSE_HOST")
	}

	f, err := os.Open(ingestFile)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, stats, err := repository.ParseCases(f, repository.ReadOptions{
		Columns:      di.ColumnsFromConfig(cfg),
		FixedDisease: ingestDisease,
	})
	if err != nil {
		return fmt.Errorf("parse %s: %w", ingestFile, err)
	}
	if !stats.HasDisease {
		return errors.New("file has no disease column; pass --disease")
	}

	store, err := di.InitializeCaseStore(cfg)
	if err != nil {
		return fmt.Errorf("clickhouse initialization failed: %w", err)
	}

	n, err := store.StoreBatch(context.Background(), rows)
	if err != nil {
		return fmt.Errorf("store cases: %w", err)
	}
	// a shared cache would keep serving the old series to running servers
	if cfg.Cache.Enabled && cfg.Cache.Type != "memory" {
		c, err := di.ProvideCache(cfg)
		if err != nil {
			return fmt.Errorf("cache initialization failed: %w", err)
		}
		defer c.Close()
		cached := repository.NewCachedSource(store, c, cfg.Cache.SeriesTTL, cfg.Cache.ListTTL, nil)
		if err := cached.Invalidate(context.Background()); err != nil {
			return fmt.Errorf("invalidate cached series: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ingested %d rows (%d bad dates skipped, %d missing case counts)\n",
		n, stats.BadDates, stats.NaNCases)
	return nil
}
