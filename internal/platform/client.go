package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"golang.org/x/time/rate"
)

// ErrorDecoder turns a non-2xx response body into a classified error. It
// returns nil to fall back to FromStatus.
type ErrorDecoder func(op string, status int, body []byte) error

// Client is a small JSON-over-HTTP helper shared by adapters that talk to the
// platform APIs directly. It rate limits outgoing requests per adapter.
type Client struct {
	platform models.Platform
	http     *http.Client
	limiter  *rate.Limiter
	decode   ErrorDecoder
}

func NewClient(p models.Platform, httpClient *http.Client, rps float64, decode ErrorDecoder) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		platform: p,
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, 1),
		decode:   decode,
	}
}

// Do sends req and decodes a JSON response into out (which may be nil).
func (c *Client) Do(ctx context.Context, op string, req *http.Request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return Transient(c.platform, op, err)
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return FromTransport(c.platform, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transient(c.platform, op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if c.decode != nil {
			if err := c.decode(op, resp.StatusCode, body); err != nil {
				return err
			}
		}
		return FromStatus(c.platform, op, resp.StatusCode, fmt.Errorf("%s", truncate(body, 512)))
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return Permanent(c.platform, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
