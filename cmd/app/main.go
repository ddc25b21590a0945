package main

import (
	"fmt"
	"os"

	"EpiPulse/pkg/config"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "epipulse",
	Short: "Disease outbreak detection and forecasting",
	Long: `EpiPulse analyzes daily case counts for a country and disease: it flags
anomalous days, forecasts the coming weeks and summarizes the outbreak risk.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (defaults are used when empty)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
