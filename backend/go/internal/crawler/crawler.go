// Package crawler fetches the upstream trend page and extracts the ordered
// list of currently trending terms.
package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"

	"TrendWatch/backend/go/internal/config"

	"github.com/PuerkitoBio/goquery"
)

// Doer sends HTTP requests. *pkg/http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Crawler scrapes one snapshot per call.
type Crawler struct {
	client    Doer
	url       string
	selector  string
	userAgent string
	maxTerms  int
}

// New creates a Crawler from the crawler section of the config.
func New(client Doer, cfg config.CrawlerConfig) *Crawler {
	return &Crawler{
		client:    client,
		url:       cfg.URL,
		selector:  cfg.Selector,
		userAgent: cfg.UserAgent,
		maxTerms:  cfg.MaxTerms,
	}
}

// Fetch downloads the page and returns its trending terms in page order.
// An empty slice with a nil error means the page had no matching entries.
func (c *Crawler) Fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", c.url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch %s: unexpected status %d", c.url, resp.StatusCode)
	}
	return ExtractTerms(resp.Body, c.selector, c.maxTerms)
}

// ExtractTerms returns the trimmed text of every element matching selector,
// skipping blanks and purely numeric entries, without duplicates, capped at limit.
// A non-positive limit means no cap.
func ExtractTerms(r io.Reader, selector string, limit int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	terms := []string{}
	seen := make(map[string]struct{})
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" || isDigits(text) {
			return true
		}
		if _, dup := seen[text]; dup {
			return true
		}
		seen[text] = struct{}{}
		terms = append(terms, text)
		return limit <= 0 || len(terms) < limit
	})
	return terms, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
