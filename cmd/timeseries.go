package cmd

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"
)

var timeseriesCmd = &cobra.Command{
	Use:   "timeseries [geos...]",
	Short: "Print GDP by year for selected geographies (default: config time_series_geos)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		geos := args
		if len(geos) == 0 {
			geos = s.cfg.TimeSeriesGeos
		}
		series := s.series().OnlyGeos(geos)
		p, err := s.panel(series)
		if err != nil {
			return err
		}
		p = p.Select(geos)
		if p.Cols() < len(geos) {
			s.warn(fmt.Sprintf("only %d of %d geographies have data: %s", p.Cols(), len(geos), strings.Join(p.Geos, ", ")))
		}

		var b strings.Builder
		b.WriteString(fmt.Sprintf("%-6s", "year"))
		for _, g := range p.Geos {
			b.WriteString(fmt.Sprintf("%14s", g))
		}
		fmt.Println(b.String())
		for i, y := range p.Years {
			b.Reset()
			b.WriteString(fmt.Sprintf("%-6d", y))
			for _, v := range p.Values[i] {
				if math.IsNaN(v) {
					b.WriteString(fmt.Sprintf("%14s", "-"))
					continue
				}
				b.WriteString(fmt.Sprintf("%14.1f", v))
			}
			fmt.Println(b.String())
		}
		if r := s.renderer(); r != nil {
			if _, err := s.emitChart(r.TimeSeries(series, p.Geos, s.cfg.Unit)); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(timeseriesCmd)
}
