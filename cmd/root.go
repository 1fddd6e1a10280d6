package cmd

import (
	"fmt"
	"log/slog"
	"os"

	cfgpkg "github.com/KaramelBytes/gdpscope-cli/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Overrides applied on top of the loaded configuration
	flagDataFile  string
	flagChartsDir string
	flagCharts    bool
	flagYear      int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "gdpscope",
	Short: "gdpscope: explore Eurostat GDP statistics from the command line",
	Long: `gdpscope downloads the Eurostat national accounts GDP table and runs rankings,
correlation, distribution and trend statistics, k-means clustering and isolation-forest
anomaly detection on it. Charts are written as PNG files with --charts.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.gdpscope/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagDataFile, "data", "", "local dataset file (overrides config data_file)")
	rootCmd.PersistentFlags().BoolVar(&flagCharts, "charts", false, "render PNG charts for the command's results")
	rootCmd.PersistentFlags().StringVar(&flagChartsDir, "charts-dir", "", "directory for rendered charts (overrides config charts_dir)")
	rootCmd.PersistentFlags().IntVar(&flagYear, "year", 0, "year for single-year views (default: current year minus year_offset)")
}

func loadConfig() {
	setupLogging(debug)
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: config subcommands can still report the problem
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("data") && flagDataFile != "" {
		cfg.DataFile = flagDataFile
	}
	if f.Changed("charts-dir") && flagChartsDir != "" {
		cfg.ChartsDir = flagChartsDir
	}
	slog.Debug("config loaded", "data_file", cfg.DataFile, "indicator", cfg.Indicator, "unit", cfg.Unit)
}

func setupLogging(debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	return cfg, nil
}
