package cmd

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/gdpscope-cli/internal/analysis"
	"github.com/spf13/cobra"
)

var trendGrowth bool

var trendCmd = &cobra.Command{
	Use:   "trend [geo]",
	Short: "Fit a linear GDP trend for one geography (default: config trend_geo)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		geo := s.cfg.TrendGeo
		if len(args) == 1 {
			geo = args[0]
		}
		rows := s.series().ForGeo(geo)
		t, err := analysis.FitTrend(rows)
		if err != nil {
			return fmt.Errorf("trend for %s: %w", geo, err)
		}
		fmt.Printf("✓ %s trend %d–%d (n=%d)\n", geo, t.FirstYear, t.LastYear, t.N)
		fmt.Printf("  slope: %.2f per year (stderr %.2f)\n", t.Slope, t.StdErr)
		fmt.Printf("  intercept: %.2f (stderr %.2f)\n", t.Intercept, t.InterceptError)
		fmt.Printf("  r: %.4f, R²: %.2f, p-value: %.4g\n", t.R, t.R2, t.PValue)

		growth := analysis.Growth(rows)
		if trendGrowth {
			fmt.Println("\nGrowth rate:")
			for _, g := range growth {
				if math.IsNaN(g.GrowthPct) {
					fmt.Printf("  %d  %14.1f        n/a\n", g.Year, g.Value)
					continue
				}
				fmt.Printf("  %d  %14.1f  %+8.2f%%\n", g.Year, g.Value, g.GrowthPct)
			}
		}
		if r := s.renderer(); r != nil {
			if _, err := s.emitChart(r.Trend(geo, rows, t)); err != nil {
				return err
			}
			if _, err := s.emitChart(r.Growth(geo, growth)); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trendCmd)
	trendCmd.Flags().BoolVar(&trendGrowth, "growth", true, "print the year-over-year growth rate table")
}
