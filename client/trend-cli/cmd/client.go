package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

type rankedTerm struct {
	Rank           int    `json:"rank"`
	Term           string `json:"term"`
	CoveredSeconds int64  `json:"covered_seconds"`
	Hits           int64  `json:"hits"`
	Duration       string `json:"duration"`
	Link           string `json:"link"`
}

type rankingResponse struct {
	Title string       `json:"title"`
	Items []rankedTerm `json:"items"`
}

type currentEntry struct {
	Position int    `json:"position"`
	Term     string `json:"term"`
}

type currentResponse struct {
	UpdatedAt *time.Time     `json:"updated_at"`
	Source    string         `json:"source"`
	Items     []currentEntry `json:"items"`
}

type sessionView struct {
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at"`
	Open     bool       `json:"open"`
}

type termResponse struct {
	Text            string        `json:"text"`
	OccurrenceCount int64         `json:"occurrence_count"`
	Sessions        []sessionView `json:"sessions"`
}

// getJSON fetches base+path with query and decodes a 200 response into out.
func getJSON(ctx context.Context, opts *options, path string, query url.Values, out interface{}) error {
	u, err := url.Parse(strings.TrimRight(opts.server, "/") + path)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	u.RawQuery = query.Encode()

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected HTTP %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
}
