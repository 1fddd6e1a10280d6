package cmd

import (
	"fmt"

	"github.com/KaramelBytes/gdpscope-cli/internal/analysis"
	"github.com/spf13/cobra"
)

var distTop int

var distributionCmd = &cobra.Command{
	Use:   "distribution [geos...]",
	Short: "Summarize each geography's GDP spread across years",
	Long: `Prints the box-plot summary (quartiles, range and 1.5·IQR outliers) of each
geography's yearly GDP. A narrow box means steady output; many points outside it
indicate a volatile economy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		geos := args
		if len(geos) == 0 {
			n := s.cfg.TopN
			if cmd.Flags().Changed("top") {
				n = distTop
			}
			if geos, err = s.topGeos(n); err != nil {
				return err
			}
		}
		series := s.series()
		boxes := analysis.Distribution(series, geos)
		if len(boxes) == 0 {
			return fmt.Errorf("no observations for %v", geos)
		}
		fmt.Printf("%-8s %6s %14s %14s %14s %14s %14s %8s %8s\n", "geo", "years", "min", "q1", "median", "q3", "max", "spread", "outliers")
		for _, b := range boxes {
			fmt.Printf("%-8s %6d %14.1f %14.1f %14.1f %14.1f %14.1f %8.3f %8d\n",
				b.Geo, b.Count, b.Min, b.Q1, b.Median, b.Q3, b.Max, b.Spread(), len(b.Outliers))
		}
		if r := s.renderer(); r != nil {
			if _, err := s.emitChart(r.Boxes(series, geos)); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(distributionCmd)
	distributionCmd.Flags().IntVar(&distTop, "top", 10, "summarize the N leading geographies of the analysis year")
}
