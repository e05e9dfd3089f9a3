// Package ecfr fetches regulation text from the eCFR versioner API and
// extracts plain text from its XML representation.
package ecfr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrSourceUnavailable indicates the eCFR API could not be reached or
	// returned a non-success status. The caller decides whether to retry or
	// fall back to a cached snapshot.
	ErrSourceUnavailable = errors.New("ecfr: source unavailable")

	// ErrParseFailed indicates the retrieved payload could not be converted
	// into regulation text.
	ErrParseFailed = errors.New("ecfr: failed to parse regulation XML")
)

const defaultTimeout = 30 * time.Second

// Locator identifies a regulatory part at a point in time, e.g. Title 21
// Part 11 as of 2024-02-01.
type Locator struct {
	Title int    `json:"title"`
	Part  string `json:"part"`
	Date  string `json:"date"` // YYYY-MM-DD
}

func (l Locator) String() string {
	return fmt.Sprintf("title-%d part-%s @%s", l.Title, l.Part, l.Date)
}

// Client is an HTTP client for the eCFR versioner API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given eCFR base URL
// (e.g. "https://www.ecfr.gov"). A zero timeout falls back to 30s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchPartXML retrieves the raw XML for the located part.
func (c *Client) FetchPartXML(ctx context.Context, loc Locator) ([]byte, error) {
	url := fmt.Sprintf("%s/api/versioner/v1/full/%s/title-%d.xml?part=%s",
		c.baseURL, loc.Date, loc.Title, loc.Part)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d for %s", ErrSourceUnavailable, resp.StatusCode, loc)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrSourceUnavailable, err)
	}
	return body, nil
}

// FetchPart retrieves the located part and extracts its sections.
func (c *Client) FetchPart(ctx context.Context, loc Locator) ([]Section, error) {
	raw, err := c.FetchPartXML(ctx, loc)
	if err != nil {
		return nil, err
	}
	return ExtractSections(raw)
}
