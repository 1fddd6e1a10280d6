package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/gdpscope-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set gdpscope configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("source_url: %s\n", cfg.SourceURL)
		fmt.Printf("data_file: %s\n", cfg.DataFile)
		if cfg.HTTPTimeoutSec > 0 {
			fmt.Printf("http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		}
		fmt.Printf("user_agent: %s\n", cfg.UserAgent)
		fmt.Printf("indicator: %s\n", cfg.Indicator)
		fmt.Printf("unit: %s\n", cfg.Unit)
		fmt.Printf("exclude_geos: %s\n", strings.Join(cfg.ExcludeGeos, ","))
		fmt.Printf("year_offset: %d\n", cfg.YearOffset)
		fmt.Printf("min_year: %d\n", cfg.MinYear)
		fmt.Printf("top_n: %d\n", cfg.TopN)
		fmt.Printf("corr_top_n: %d\n", cfg.CorrTopN)
		fmt.Printf("trend_geo: %s\n", cfg.TrendGeo)
		fmt.Printf("time_series_geos: %s\n", strings.Join(cfg.TimeSeriesGeos, ","))
		fmt.Printf("clusters: %d\n", cfg.Clusters)
		fmt.Printf("max_clusters: %d\n", cfg.MaxClusters)
		fmt.Printf("kmeans_restarts: %d\n", cfg.KMeansRestarts)
		fmt.Printf("kmeans_max_iter: %d\n", cfg.KMeansMaxIter)
		fmt.Printf("seed: %d\n", cfg.Seed)
		fmt.Printf("contamination: %.3f\n", cfg.Contamination)
		fmt.Printf("forest_trees: %d\n", cfg.ForestTrees)
		fmt.Printf("forest_max_samples: %d\n", cfg.ForestMaxSamples)
		fmt.Printf("charts_dir: %s\n", cfg.ChartsDir)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		// Start from the file rather than cfg so --data/--charts-dir overrides are not persisted.
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := setKey(c, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = c
		fmt.Println("Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "source_url":
		c.SourceURL = val
	case "data_file":
		c.DataFile = val
	case "user_agent":
		c.UserAgent = val
	case "indicator":
		c.Indicator = val
	case "unit":
		c.Unit = val
	case "trend_geo":
		c.TrendGeo = val
	case "charts_dir":
		c.ChartsDir = val
	case "exclude_geos":
		c.ExcludeGeos = splitList(val)
	case "time_series_geos":
		geos := splitList(val)
		if len(geos) == 0 {
			return fmt.Errorf("time_series_geos needs at least one geography")
		}
		c.TimeSeriesGeos = geos
	case "http_timeout_sec", "year_offset", "min_year", "top_n", "corr_top_n",
		"clusters", "max_clusters", "kmeans_restarts", "kmeans_max_iter",
		"forest_trees", "forest_max_samples":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*intField(c, key) = i
	case "seed":
		u, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed: %w", err)
		}
		c.Seed = u
	case "contamination":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 || f > 0.5 {
			return fmt.Errorf("invalid contamination: %v (must be in (0, 0.5])", val)
		}
		c.Contamination = f
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func intField(c *cfgpkg.Global, key string) *int {
	switch key {
	case "http_timeout_sec":
		return &c.HTTPTimeoutSec
	case "year_offset":
		return &c.YearOffset
	case "min_year":
		return &c.MinYear
	case "top_n":
		return &c.TopN
	case "corr_top_n":
		return &c.CorrTopN
	case "clusters":
		return &c.Clusters
	case "max_clusters":
		return &c.MaxClusters
	case "kmeans_restarts":
		return &c.KMeansRestarts
	case "kmeans_max_iter":
		return &c.KMeansMaxIter
	case "forest_trees":
		return &c.ForestTrees
	default:
		return &c.ForestMaxSamples
	}
}

// splitList parses a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
