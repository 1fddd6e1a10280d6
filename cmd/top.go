package cmd

import (
	"fmt"

	"github.com/KaramelBytes/gdpscope-cli/internal/analysis"
	"github.com/spf13/cobra"
)

var topN int

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank geographies by GDP in the analysis year",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		n := s.cfg.TopN
		if cmd.Flags().Changed("limit") {
			n = topN
		}
		top := analysis.TopN(s.latest().Rows, n)
		if len(top) == 0 {
			return fmt.Errorf("no %s/%s observations for %d", s.cfg.Indicator, s.cfg.Unit, s.year())
		}
		fmt.Printf("\nTop %d GDP (%s) in %d:\n", len(top), s.cfg.Unit, s.year())
		for i, r := range top {
			fmt.Printf("%3d. %-10s %14.1f\n", i+1, r.Geo, r.Value)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(topCmd)
	topCmd.Flags().IntVarP(&topN, "limit", "n", analysis.DefaultTopN, "number of geographies to list")
}
