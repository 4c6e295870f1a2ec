package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jaeyoon-dev/stockfeed/internal/quote"
)

// Fetch error taxonomy. Callers never retry here; the registry loop and the
// bulk collector simply try again on their next scheduled tick.
var (
	ErrTimeout               = errors.New("finnhub: request timed out")
	ErrRateLimited           = errors.New("finnhub: rate limited")
	ErrMalformedResponse     = errors.New("finnhub: malformed response")
	ErrTransport             = errors.New("finnhub: transport error")
	ErrUnsupportedInstrument = errors.New("finnhub: unsupported instrument")
)

const defaultBaseURL = "https://finnhub.io/api/v1"

// Client issues single-symbol quote requests against the Finnhub REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Finnhub client. timeout bounds every FetchQuote call.
func NewClient(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// SetBaseURL overrides the API endpoint, used by tests and self-hosted proxies.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

// FetchQuote performs one GET /quote call for the given symbol and parses
// the response. Exchange-prefixed symbols (e.g. "BINANCE:BTCUSDT") are real
// time streaming instruments and are rejected here rather than polled.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (quote.Quote, error) {
	if symbol == "" {
		return quote.Quote{}, fmt.Errorf("%w: empty symbol", ErrUnsupportedInstrument)
	}
	if strings.Contains(symbol, ":") {
		return quote.Quote{}, fmt.Errorf("%w: %s", ErrUnsupportedInstrument, symbol)
	}

	u := fmt.Sprintf("%s/quote?symbol=%s&token=%s", c.baseURL, url.QueryEscape(symbol), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return quote.Quote{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return quote.Quote{}, fmt.Errorf("%w: %s", ErrTimeout, symbol)
		}
		return quote.Quote{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return quote.Quote{}, fmt.Errorf("%w: %s", ErrRateLimited, symbol)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return quote.Quote{}, fmt.Errorf("%w: status %d for %s", ErrTransport, resp.StatusCode, symbol)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return quote.Quote{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	var qr quoteResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return quote.Quote{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if qr.Current == nil {
		return quote.Quote{}, fmt.Errorf("%w: missing price for %s", ErrMalformedResponse, symbol)
	}

	ts := qr.Timestamp * 1000
	if qr.Timestamp == 0 {
		ts = time.Now().UnixMilli()
	}

	return quote.Quote{
		Symbol:        symbol,
		Price:         *qr.Current,
		Change:        qr.Change,
		ChangePercent: qr.ChangePercent,
		High:          qr.High,
		Low:           qr.Low,
		Open:          qr.Open,
		PreviousClose: qr.PreviousClose,
		Volume:        qr.Volume,
		Timestamp:     ts,
	}, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
