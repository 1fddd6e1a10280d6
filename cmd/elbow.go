package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/gdpscope-cli/internal/ml"
	"github.com/spf13/cobra"
)

var elbowMax int

var elbowCmd = &cobra.Command{
	Use:   "elbow",
	Short: "Estimate a cluster count from the k-means inertia curve",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		maxK := s.cfg.MaxClusters
		if cmd.Flags().Changed("max") {
			maxK = elbowMax
		}
		p, err := s.panel(s.series())
		if err != nil {
			return err
		}
		e, err := ml.Elbow(p, maxK, s.cfg.KMeans(0))
		if err != nil {
			return err
		}
		if len(e.Dropped) > 0 {
			s.warn(fmt.Sprintf("skipped geographies without any value: %s", strings.Join(e.Dropped, ", ")))
		}
		fmt.Println("k  inertia")
		for i, k := range e.K {
			fmt.Printf("%-2d %.4g\n", k, e.Inertia[i])
		}
		if k, ok := e.Optimal(); ok {
			fmt.Printf("✓ Optimal clusters: %d\n", k)
		} else {
			fmt.Println("Optimal clusters: none detected")
		}
		if r := s.renderer(); r != nil {
			if _, err := s.emitChart(r.Elbow(e)); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(elbowCmd)
	elbowCmd.Flags().IntVar(&elbowMax, "max", 10, "largest cluster count to try")
}
