package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/gdpscope-cli/internal/dataset"
	"github.com/KaramelBytes/gdpscope-cli/internal/eurostat"
	"github.com/KaramelBytes/gdpscope-cli/internal/ml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Source and local copy
	SourceURL      string `mapstructure:"source_url" yaml:"source_url"`
	DataFile       string `mapstructure:"data_file" yaml:"data_file"`
	HTTPTimeoutSec int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent"`

	// Filtering
	Indicator   string   `mapstructure:"indicator" yaml:"indicator"`
	Unit        string   `mapstructure:"unit" yaml:"unit"`
	ExcludeGeos []string `mapstructure:"exclude_geos" yaml:"exclude_geos"`
	YearOffset  int      `mapstructure:"year_offset" yaml:"year_offset"`
	MinYear     int      `mapstructure:"min_year" yaml:"min_year"`

	// Summaries
	TopN           int      `mapstructure:"top_n" yaml:"top_n"`
	CorrTopN       int      `mapstructure:"corr_top_n" yaml:"corr_top_n"`
	TrendGeo       string   `mapstructure:"trend_geo" yaml:"trend_geo"`
	TimeSeriesGeos []string `mapstructure:"time_series_geos" yaml:"time_series_geos"`

	// Models
	Clusters         int     `mapstructure:"clusters" yaml:"clusters"`
	MaxClusters      int     `mapstructure:"max_clusters" yaml:"max_clusters"`
	KMeansRestarts   int     `mapstructure:"kmeans_restarts" yaml:"kmeans_restarts"`
	KMeansMaxIter    int     `mapstructure:"kmeans_max_iter" yaml:"kmeans_max_iter"`
	Seed             uint64  `mapstructure:"seed" yaml:"seed"`
	Contamination    float64 `mapstructure:"contamination" yaml:"contamination"`
	ForestTrees      int     `mapstructure:"forest_trees" yaml:"forest_trees"`
	ForestMaxSamples int     `mapstructure:"forest_max_samples" yaml:"forest_max_samples"`

	// Output
	ChartsDir string `mapstructure:"charts_dir" yaml:"charts_dir"`
}

// AnalysisYear is the single year the ranking views look at: the current year minus
// the configured offset, since the latest national accounts lag publication.
func (c *Global) AnalysisYear(now time.Time) int {
	return now.Year() - c.YearOffset
}

// HTTPTimeout returns the fetch timeout; zero means no client-side timeout.
func (c *Global) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// Criteria returns the filter selecting the configured indicator and unit.
func (c *Global) Criteria() dataset.Criteria {
	return dataset.Criteria{
		Indicator: c.Indicator,
		Unit:      c.Unit,
		Exclude:   append([]string(nil), c.ExcludeGeos...),
		MinYear:   c.MinYear,
	}
}

// Fetch returns the download settings.
func (c *Global) Fetch() eurostat.Config {
	return eurostat.Config{URL: c.SourceURL, Timeout: c.HTTPTimeout(), UserAgent: c.UserAgent}
}

// KMeans returns clustering options for k clusters.
func (c *Global) KMeans(k int) ml.KMeansOptions {
	return ml.KMeansOptions{K: k, NInit: c.KMeansRestarts, MaxIter: c.KMeansMaxIter, Seed: c.Seed}
}

// Forest returns the anomaly detector options.
func (c *Global) Forest() ml.ForestOptions {
	return ml.ForestOptions{
		Trees:         c.ForestTrees,
		MaxSamples:    c.ForestMaxSamples,
		Contamination: c.Contamination,
		Seed:          c.Seed,
	}
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.gdpscope/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("GDPSCOPE")
	v.AutomaticEnv()

	v.SetDefault("source_url", eurostat.DefaultURL)
	v.SetDefault("data_file", "eurostat_gdp_data.csv")
	v.SetDefault("http_timeout_sec", 0)
	v.SetDefault("user_agent", "gdpscope/0.1")
	v.SetDefault("indicator", "B1GQ")
	v.SetDefault("unit", "CP_MEUR")
	v.SetDefault("exclude_geos", []string{"EU27_2020", "EA", "EA12", "EA19", "EA20"})
	v.SetDefault("year_offset", 2)
	v.SetDefault("min_year", 2000)
	v.SetDefault("top_n", 10)
	v.SetDefault("corr_top_n", 5)
	v.SetDefault("trend_geo", "HU")
	v.SetDefault("time_series_geos", []string{"HU", "AT", "DE", "FR"})
	v.SetDefault("clusters", 3)
	v.SetDefault("max_clusters", 10)
	v.SetDefault("kmeans_restarts", 10)
	v.SetDefault("kmeans_max_iter", 300)
	v.SetDefault("seed", 42)
	v.SetDefault("contamination", 0.05)
	v.SetDefault("forest_trees", 100)
	v.SetDefault("forest_max_samples", 256)
	v.SetDefault("charts_dir", "charts")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Contamination <= 0 || c.Contamination > 0.5 {
		return nil, fmt.Errorf("invalid contamination %.3f: must be in (0, 0.5]", c.Contamination)
	}
	return &c, nil
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".gdpscope"), nil
}
