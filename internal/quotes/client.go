// Package quotes fetches end-of-day market data for individual stock codes.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"stockdaily/pkg/logx"
)

// Quote is one end-of-day snapshot for a single code.
type Quote struct {
	Code      string  `json:"code"`
	Price     float64 `json:"price"`
	PrevClose float64 `json:"prev_close"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Volume    int64   `json:"volume"`
}

// ChangePct is the percentage move against the previous close.
func (q *Quote) ChangePct() float64 {
	if q.PrevClose == 0 {
		return 0
	}
	return (q.Price - q.PrevClose) / q.PrevClose * 100
}

// Client queries a quote endpoint with a shared rate limit so a batch of
// codes never hammers the source.
type Client struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func NewClient(quoteURL string, ratePerSec int, log logx.Logger) *Client {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		url:     quoteURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		log:     log,
	}
}

// Quote fetches one snapshot. The caller's context carries the deadline;
// there is no hidden global timeout.
func (c *Client) Quote(ctx context.Context, code string) (*Quote, error) {
	if c.url == "" {
		return nil, fmt.Errorf("quote url not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", code, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote %s: unexpected status %s", code, resp.Status)
	}

	var out Quote
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("quote %s: decode: %w", code, err)
	}
	if out.Code == "" {
		out.Code = code
	}
	return &out, nil
}
