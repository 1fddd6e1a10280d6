package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/gdpscope-cli/internal/ml"
	"github.com/spf13/cobra"
)

var anomaliesVerbose bool

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Flag geographies with unusual year-over-year GDP changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		p, err := s.panel(s.series())
		if err != nil {
			return err
		}
		a, err := ml.DetectAnomalies(p, s.cfg.Forest())
		if err != nil {
			return err
		}
		out := a.Outliers()
		if len(out) == 0 {
			fmt.Println("Anomalous: none")
		} else {
			fmt.Printf("Anomalous: %s\n", strings.Join(out, ", "))
		}
		if anomaliesVerbose {
			fmt.Printf("\nthreshold %.4f\n", a.Threshold)
			for _, f := range a.Flags {
				mark := " "
				if f.Outlier {
					mark = "*"
				}
				fmt.Printf("%s %-8s %.4f\n", mark, f.Geo, f.Score)
			}
		}
		if r := s.renderer(); r != nil {
			if _, err := s.emitChart(r.Anomalies(a)); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(anomaliesCmd)
	anomaliesCmd.Flags().BoolVarP(&anomaliesVerbose, "verbose", "v", false, "print every geography's anomaly score")
}
