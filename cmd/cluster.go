package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/gdpscope-cli/internal/ml"
	"github.com/spf13/cobra"
)

var clusterK int

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Group geographies by their GDP trajectories with k-means",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		k := s.cfg.Clusters
		if cmd.Flags().Changed("k") {
			k = clusterK
		}
		p, err := s.panel(s.series())
		if err != nil {
			return err
		}
		c, err := ml.Cluster(p, s.cfg.KMeans(k))
		if err != nil {
			var ide *ml.InsufficientDataError
			if errors.As(err, &ide) {
				return fmt.Errorf("clustering needs at least %d geographies with data, found %d", ide.Want, ide.Have)
			}
			return err
		}
		if len(c.Dropped) > 0 {
			s.warn(fmt.Sprintf("skipped geographies without any value: %s", strings.Join(c.Dropped, ", ")))
		}
		if d := c.Distinct(); d < c.K {
			s.warn(fmt.Sprintf("only %d distinct clusters found for k=%d: the geographies hold fewer than %d distinct trajectories", d, c.K, c.K))
		}
		fmt.Printf("✓ Clustered %d geographies into %d groups (inertia %.4g)\n", len(c.Assignments), c.Distinct(), c.Inertia)
		for i := 0; i < c.Distinct(); i++ {
			fmt.Printf("  cluster %d: %s\n", i, strings.Join(c.Members(i), ", "))
		}
		if r := s.renderer(); r != nil {
			if _, err := s.emitChart(r.Clusters(c)); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	clusterCmd.Flags().IntVarP(&clusterK, "k", "k", ml.DefaultKMeansOptions().K, "number of clusters")
}
