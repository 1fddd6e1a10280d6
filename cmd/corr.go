package cmd

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/gdpscope-cli/internal/analysis"
	"github.com/spf13/cobra"
)

var (
	corrTop   int
	corrPairs int
)

var corrCmd = &cobra.Command{
	Use:   "corr [geos...]",
	Short: "Correlate GDP series between geographies (default: the leading economies)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		geos := args
		if len(geos) == 0 {
			n := s.cfg.CorrTopN
			if cmd.Flags().Changed("top") {
				n = corrTop
			}
			if geos, err = s.topGeos(n); err != nil {
				return err
			}
		}
		p, err := s.panel(s.series().OnlyGeos(geos))
		if err != nil {
			return err
		}
		m := analysis.Correlate(p)
		printCorr(m)
		if pairs := m.TopPairs(corrPairs); len(pairs) > 0 {
			fmt.Println("\nStrongest pairs:")
			for _, pr := range pairs {
				fmt.Printf("  %s ~ %s: r=%.3f\n", pr.A, pr.B, pr.R)
			}
		}
		if r := s.renderer(); r != nil {
			if _, err := s.emitChart(r.Correlation(m)); err != nil {
				return err
			}
		}
		return nil
	},
}

func printCorr(m *analysis.CorrMatrix) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-8s", ""))
	for _, c := range m.Columns {
		b.WriteString(fmt.Sprintf("%8s", c))
	}
	fmt.Println(b.String())
	for i, c := range m.Columns {
		b.Reset()
		b.WriteString(fmt.Sprintf("%-8s", c))
		for _, v := range m.Values[i] {
			if math.IsNaN(v) {
				b.WriteString(fmt.Sprintf("%8s", "n/a"))
				continue
			}
			b.WriteString(fmt.Sprintf("%8.2f", v))
		}
		fmt.Println(b.String())
	}
}

func init() {
	rootCmd.AddCommand(corrCmd)
	corrCmd.Flags().IntVar(&corrTop, "top", 5, "correlate the N leading geographies of the analysis year")
	corrCmd.Flags().IntVar(&corrPairs, "pairs", 5, "number of strongest pairs to list")
}
