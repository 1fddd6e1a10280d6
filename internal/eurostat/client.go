// Package eurostat downloads the national-accounts GDP table from the Eurostat SDMX
// dissemination API and stores it as a flat file.
package eurostat

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/KaramelBytes/gdpscope-cli/internal/utils"
)

// DefaultURL is the SDMX-CSV export of the nama_10_gdp dataflow.
const DefaultURL = "https://ec.europa.eu/eurostat/api/dissemination/sdmx/2.1/data/NAMA_10_GDP/?format=SDMX-CSV&compressed=false"

// Config configures a Client.
type Config struct {
	URL string
	// Timeout bounds the whole request; zero means no timeout.
	Timeout   time.Duration
	UserAgent string
}

// Client performs a single download of the dataset.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

// NewClient creates a client. An empty URL selects DefaultURL.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

// StatusError is returned when the API answers with anything but 200 OK.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("eurostat request failed: status %d (%s)", e.StatusCode, status)
}

// UnreachableError wraps transport failures such as DNS errors, refused connections
// and timeouts.
type UnreachableError struct {
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("eurostat endpoint unreachable at %s: %v", e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// FetchResult describes a completed download.
type FetchResult struct {
	Path    string
	Bytes   int
	Rows    int // data records, header excluded
	Columns []string
}

// Fetch downloads the dataset and writes the response body verbatim to dest,
// replacing any previous content. The body must parse as comma-separated text with a
// header row; otherwise nothing is written. No retries are attempted.
func (c *Client) Fetch(ctx context.Context, dest string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	slog.Debug("eurostat fetch", "url", c.cfg.URL, "timeout", c.cfg.Timeout)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UnreachableError{URL: c.cfg.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 8<<10))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, URL: c.cfg.URL}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	header, rows, err := validate(body)
	if err != nil {
		return nil, err
	}
	if err := utils.SafeWriteFile(dest, body); err != nil {
		return nil, fmt.Errorf("write %s: %w", dest, err)
	}
	slog.Debug("eurostat fetch stored", "path", dest, "bytes", len(body), "rows", rows)
	return &FetchResult{Path: dest, Bytes: len(body), Rows: rows, Columns: header}, nil
}

// validate checks that body is a header row followed by records of equal width.
func validate(body []byte) ([]string, int, error) {
	r := csv.NewReader(bytes.NewReader(body))
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, errors.New("eurostat response is empty")
		}
		return nil, 0, fmt.Errorf("parse response header: %w", err)
	}
	rows := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("parse response: %w", err)
		}
		rows++
	}
	return header, rows, nil
}
