package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/Domenick1991/bushcharter/internal/metrics"
)

// Source returns the latest raw report for an airport.
type Source interface {
	Fetch(ctx context.Context, airport string) (*domain.WeatherReport, error)
}

// Client reads raw METAR and TAF text from the aviationweather.gov data API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewClient(baseURL string, timeout time.Duration, maxRetries int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryDelay: 500 * time.Millisecond,
		logger:     logger,
		now:        time.Now,
	}
}

// Fetch gets the current METAR and the TAF for airport. A missing METAR is
// an error; a missing TAF is not.
func (c *Client) Fetch(ctx context.Context, airport string) (*domain.WeatherReport, error) {
	airport = strings.ToUpper(strings.TrimSpace(airport))
	if airport == "" {
		return nil, errors.New("airport code is required")
	}

	metar, err := c.fetchWithRetry(ctx, "metar", airport)
	if err != nil {
		metrics.WeatherFetches.WithLabelValues("http", "error").Inc()
		return nil, err
	}
	if metar == "" {
		metrics.WeatherFetches.WithLabelValues("http", "empty").Inc()
		return nil, fmt.Errorf("no metar published for %s", airport)
	}

	taf, err := c.fetchWithRetry(ctx, "taf", airport)
	if err != nil {
		c.logger.Warn("taf unavailable", "airport", airport, "error", err)
		taf = ""
	}

	metrics.WeatherFetches.WithLabelValues("http", "ok").Inc()
	return &domain.WeatherReport{
		Airport:   airport,
		METAR:     metar,
		TAF:       taf,
		FetchedAt: c.now(),
	}, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, product, airport string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying weather fetch", "product", product, "airport", airport, "attempt", attempt)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		body, err := c.fetchRaw(ctx, product, airport)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("fetch %s for %s: %w", product, airport, lastErr)
}

func (c *Client) fetchRaw(ctx context.Context, product, airport string) (string, error) {
	q := url.Values{}
	q.Set("ids", airport)
	q.Set("format", "raw")
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, product, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("User-Agent", "bushcharter/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return firstReport(string(body)), nil
}

// firstReport returns the first report in a raw response. TAFs span several
// lines, so continuation lines (indented) are folded into the report.
func firstReport(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	var parts []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if len(parts) > 0 {
				break
			}
			continue
		}
		indented := strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
		if len(parts) > 0 && !indented {
			break
		}
		parts = append(parts, strings.TrimSpace(line))
	}
	return strings.Join(parts, " ")
}

var _ Source = (*Client)(nil)
