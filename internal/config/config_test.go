package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/KaramelBytes/gdpscope-cli/internal/eurostat"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.SourceURL != eurostat.DefaultURL {
		t.Fatalf("source url = %q", c.SourceURL)
	}
	if c.Indicator != "B1GQ" || c.Unit != "CP_MEUR" {
		t.Fatalf("unexpected filter codes %q/%q", c.Indicator, c.Unit)
	}
	want := []string{"EU27_2020", "EA", "EA12", "EA19", "EA20"}
	if !reflect.DeepEqual(c.ExcludeGeos, want) {
		t.Fatalf("exclude geos = %v, want %v", c.ExcludeGeos, want)
	}
	if c.Seed != 42 || c.Clusters != 3 || c.MaxClusters != 10 || c.KMeansRestarts != 10 {
		t.Fatalf("unexpected model defaults: %+v", c)
	}
	if c.Contamination != 0.05 || c.ForestTrees != 100 || c.ForestMaxSamples != 256 {
		t.Fatalf("unexpected forest defaults: %+v", c)
	}
	if c.MinYear != 2000 || c.TopN != 10 || c.CorrTopN != 5 || c.TrendGeo != "HU" {
		t.Fatalf("unexpected summary defaults: %+v", c)
	}
	if c.HTTPTimeout() != 0 {
		t.Fatalf("expected no default timeout, got %v", c.HTTPTimeout())
	}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := c.AnalysisYear(now); got != 2024 {
		t.Fatalf("AnalysisYear = %d, want 2024", got)
	}
}

func TestSaveThenLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	p := filepath.Join(dir, "custom.yaml")

	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.Clusters = 5
	c.TrendGeo = "AT"
	c.ExcludeGeos = []string{"EA"}
	if err := Save(c, p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Clusters != 5 || got.TrendGeo != "AT" {
		t.Fatalf("values not persisted: %+v", got)
	}
	if !reflect.DeepEqual(got.ExcludeGeos, []string{"EA"}) {
		t.Fatalf("exclude geos not persisted: %v", got.ExcludeGeos)
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GDPSCOPE_CLUSTERS", "4")
	t.Setenv("GDPSCOPE_UNIT", "CLV10_MEUR")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Clusters != 4 {
		t.Fatalf("clusters = %d, want 4", c.Clusters)
	}
	if c.Unit != "CLV10_MEUR" {
		t.Fatalf("unit = %q", c.Unit)
	}
}

func TestLoadRejectsBadContamination(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GDPSCOPE_CONTAMINATION", "0.9")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for contamination above 0.5")
	}
}

func TestOptionBuilders(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	crit := c.Criteria()
	if crit.Indicator != "B1GQ" || crit.MinYear != 2000 || len(crit.Exclude) != 5 {
		t.Fatalf("criteria = %+v", crit)
	}
	crit.Exclude[0] = "XX"
	if c.ExcludeGeos[0] != "EU27_2020" {
		t.Fatal("Criteria must not alias the configured exclusions")
	}
	km := c.KMeans(4)
	if km.K != 4 || km.NInit != 10 || km.MaxIter != 300 || km.Seed != 42 {
		t.Fatalf("kmeans options = %+v", km)
	}
	if f := c.Forest(); f.Trees != 100 || f.MaxSamples != 256 || f.Contamination != 0.05 {
		t.Fatalf("forest options = %+v", f)
	}
	if fc := c.Fetch(); fc.URL != eurostat.DefaultURL || fc.Timeout != 0 {
		t.Fatalf("fetch config = %+v", fc)
	}
}
