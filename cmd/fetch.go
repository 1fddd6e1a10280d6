package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/gdpscope-cli/internal/dataset"
	"github.com/KaramelBytes/gdpscope-cli/internal/eurostat"
	"github.com/spf13/cobra"
)

var (
	fetchOutput  string
	fetchURL     string
	fetchTimeout int
	fetchQuiet   bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the Eurostat GDP table to the local data file",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		fc := c.Fetch()
		if fetchURL != "" {
			fc.URL = fetchURL
		}
		if cmd.Flags().Changed("timeout") && fetchTimeout >= 0 {
			c.HTTPTimeoutSec = fetchTimeout
			fc.Timeout = c.HTTPTimeout()
		}
		dest := c.DataFile
		if fetchOutput != "" {
			dest = fetchOutput
		}
		// The endpoint serves comma-separated text; other suffixes would pick the wrong reader on load.
		if ext := strings.ToLower(filepath.Ext(dest)); ext != ".csv" {
			return fmt.Errorf("fetch destination %s must end in .csv, got %q", dest, ext)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		res, err := eurostat.NewClient(fc).Fetch(ctx, dest)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Downloaded %d bytes (%d rows, %d columns) to %s\n", res.Bytes, res.Rows, len(res.Columns), res.Path)
		if fetchQuiet {
			return nil
		}
		fmt.Printf("Columns: %s\n", strings.Join(res.Columns, ", "))
		t, err := dataset.Load(res.Path)
		if err != nil {
			// The file is stored; only the summary is unavailable.
			fmt.Fprintf(os.Stderr, "⚠ Warning: summary unavailable: %v\n", err)
			return nil
		}
		fmt.Println()
		fmt.Println("OBS_VALUE summary:")
		fmt.Println(dataset.Describe(t).String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "destination file (default: config data_file)")
	fetchCmd.Flags().StringVar(&fetchURL, "url", "", "override the Eurostat endpoint")
	fetchCmd.Flags().IntVar(&fetchTimeout, "timeout", 0, "HTTP timeout in seconds (0 = none)")
	fetchCmd.Flags().BoolVarP(&fetchQuiet, "quiet", "q", false, "skip the post-download summary")
}
