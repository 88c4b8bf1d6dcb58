package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client calls the exchangerate-api.com v6 pair endpoint. Every request runs
// under a bounded timeout so a provider stall cannot block a listing view.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient constructs a provider client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type pairResponse struct {
	Result         string  `json:"result"`
	ErrorType      string  `json:"error-type"`
	ConversionRate float64 `json:"conversion_rate"`
}

// PairRate fetches the conversion rate for one unit of pair.From in pair.To.
func (c *Client) PairRate(ctx context.Context, pair Pair) (float64, error) {
	if c == nil {
		return 0, ErrConversionUnavailable
	}
	url := fmt.Sprintf("%s/%s/pair/%s/%s", c.baseURL, c.apiKey, pair.From, pair.To)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConversionUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConversionUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: provider status %d", ErrConversionUnavailable, resp.StatusCode)
	}
	var body pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", ErrConversionUnavailable, err)
	}
	if body.Result != "success" {
		return 0, fmt.Errorf("%w: provider error %q", ErrConversionUnavailable, body.ErrorType)
	}
	if body.ConversionRate <= 0 {
		return 0, fmt.Errorf("%w: non-positive rate", ErrConversionUnavailable)
	}
	return body.ConversionRate, nil
}
