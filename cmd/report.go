package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/gdpscope-cli/internal/analysis"
	"github.com/KaramelBytes/gdpscope-cli/internal/export"
	"github.com/KaramelBytes/gdpscope-cli/internal/ml"
	"github.com/KaramelBytes/gdpscope-cli/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	reportOutput string
	reportFormat string
	reportXLSX   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run every analysis and write a combined report",
	Long: `Runs the ranking, trend, growth, correlation, distribution, clustering, elbow and
anomaly stages in order. A stage that cannot run on the data is recorded in the
report notes and the remaining stages still run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(reportFormat)
		if format != "markdown" && format != "yaml" {
			return fmt.Errorf("invalid --format %q (use markdown or yaml)", reportFormat)
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		rep, wb, err := buildReport(s)
		if err != nil {
			return err
		}

		if reportXLSX != "" {
			if err := export.WriteXLSX(reportXLSX, wb); err != nil {
				return err
			}
			fmt.Printf("✓ Workbook written to %s\n", reportXLSX)
		}

		var out []byte
		if format == "yaml" {
			if out, err = yaml.Marshal(rep); err != nil {
				return fmt.Errorf("marshal report: %w", err)
			}
		} else {
			out = []byte(rep.Markdown())
		}
		if reportOutput == "" {
			fmt.Println()
			fmt.Print(string(out))
			return nil
		}
		if err := utils.SafeWriteFile(reportOutput, out); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("✓ Report written to %s (run %s)\n", reportOutput, rep.RunID)
		return nil
	},
}

// buildReport runs every stage against the session. Only a dataset with no usable
// observations at all is fatal.
func buildReport(s *session) (*analysis.Report, export.Workbook, error) {
	year := s.year()
	rep := analysis.NewReport(s.cfg.DataFile, s.cfg.Indicator, s.cfg.Unit, year)
	wb := export.Workbook{TopYear: year}
	r := s.renderer()
	chartOut := func(path string, err error) {
		p, err := s.emitChart(path, err)
		if err != nil {
			s.warn(fmt.Sprintf("chart: %v", err))
			return
		}
		if p != "" {
			rep.ChartFiles = append(rep.ChartFiles, p)
		}
	}

	latest := s.latest()
	rep.Top = analysis.TopN(latest.Rows, s.cfg.TopN)
	wb.Top = rep.Top
	if len(rep.Top) == 0 {
		s.warn(fmt.Sprintf("no observations for %d; ranking stages skipped", year))
	}

	series := s.series()
	p, err := s.panel(series)
	if err != nil {
		return nil, wb, err
	}
	wb.Panel = p.Fill()

	if r != nil {
		geos := s.cfg.TimeSeriesGeos
		chartOut(r.TimeSeries(series.OnlyGeos(geos), geos, s.cfg.Unit))
	}

	rep.TrendGeo = s.cfg.TrendGeo
	rows := series.ForGeo(s.cfg.TrendGeo)
	if t, err := analysis.FitTrend(rows); err != nil {
		s.warn(fmt.Sprintf("trend for %s: %v", s.cfg.TrendGeo, err))
	} else {
		rep.Trend = t
		rep.Growth = analysis.Growth(rows)
		wb.TrendGeo, wb.Trend, wb.Growth = s.cfg.TrendGeo, t, rep.Growth
		if r != nil {
			chartOut(r.Trend(s.cfg.TrendGeo, rows, t))
			chartOut(r.Growth(s.cfg.TrendGeo, rep.Growth))
		}
	}

	if len(rep.Top) > 0 {
		corrGeos := analysis.Geos(analysis.TopN(latest.Rows, s.cfg.CorrTopN))
		rep.Corr = analysis.Correlate(p.Select(corrGeos))
		rep.CorrTop = rep.Corr.TopPairs(5)
		wb.Corr = rep.Corr
		if r != nil {
			chartOut(r.Correlation(rep.Corr))
		}

		topGeos := analysis.Geos(rep.Top)
		rep.Boxes = analysis.Distribution(series, topGeos)
		if r != nil {
			chartOut(r.Boxes(series, topGeos))
		}
	}

	if c, err := ml.Cluster(p, s.cfg.KMeans(s.cfg.Clusters)); err != nil {
		s.warn(fmt.Sprintf("clustering: %v", err))
	} else {
		if d := c.Distinct(); d < c.K {
			s.warn(fmt.Sprintf("clustering: only %d distinct clusters found for k=%d", d, c.K))
		}
		rep.Clusters = c
		if r != nil {
			chartOut(r.Clusters(c))
		}
	}

	if e, err := ml.Elbow(p, s.cfg.MaxClusters, s.cfg.KMeans(0)); err != nil {
		s.warn(fmt.Sprintf("elbow: %v", err))
	} else {
		rep.Elbow = e
		if r != nil {
			chartOut(r.Elbow(e))
		}
	}

	if a, err := ml.DetectAnomalies(p, s.cfg.Forest()); err != nil {
		s.warn(fmt.Sprintf("anomalies: %v", err))
	} else {
		rep.Anomalies = a
		if r != nil {
			chartOut(r.Anomalies(a))
		}
	}

	rep.Notes = append(rep.Notes, s.notes...)
	return rep, wb, nil
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "write the report to a file instead of stdout")
	reportCmd.Flags().StringVar(&reportFormat, "format", "markdown", "report format: markdown or yaml")
	reportCmd.Flags().StringVar(&reportXLSX, "xlsx", "", "also export the tables to this .xlsx workbook")
}
