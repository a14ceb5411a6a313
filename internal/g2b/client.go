// Package g2b implements the client for the public bid-notice (나라장터)
// open API: paged fetches over compact-timestamp inquiry windows, with the
// API's soft-error header handled on every page.
package g2b

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Operations per business-type category.
var opByBiz = map[string]string{
	"cnstwk": "getBidPblancListInfoCnstwk",
	"servc":  "getBidPblancListInfoServc",
	"thng":   "getBidPblancListInfoThng",
	"frgcpt": "getBidPblancListInfoFrgcpt",
}

// OperationFor resolves a business-type category to its list operation.
func OperationFor(biz string) (string, error) {
	op, ok := opByBiz[biz]
	if !ok {
		return "", eris.Errorf("g2b: invalid biz %q (valid: cnstwk, servc, thng, frgcpt)", biz)
	}
	return op, nil
}

// BizTypes returns the supported business-type categories.
func BizTypes() []string {
	return []string{"cnstwk", "servc", "thng", "frgcpt"}
}

// ErrRangeTooLarge signals result code 07: the inquiry window exceeds the
// API's limit. Recoverable — the caller shrinks the window and retries.
var ErrRangeTooLarge = eris.New("g2b: inquiry range too large (result code 07)")

// APIError is a non-success result code embedded in an HTTP 200 response.
type APIError struct {
	Code string
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("g2b: api error %s: %s", e.Code, e.Msg)
}

// TransportError is a non-2xx or non-JSON upstream response. Body is
// truncated for diagnostics.
type TransportError struct {
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("g2b: upstream status %d: %s", e.Status, e.Body)
}

// Options configures the Client.
type Options struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
	MaxRetries int
	RatePerSec int
}

// Client performs paged GETs against the bid-notice API.
type Client struct {
	http       *http.Client
	baseURL    string
	serviceKey string
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient creates a Client with the given options.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 5
	}
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:    opts.BaseURL,
		serviceKey: opts.ServiceKey,
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec),
		maxRetries: opts.MaxRetries,
	}
}

// PageRequest identifies one page of one operation within one window.
type PageRequest struct {
	Operation  string
	Window     Window
	PageNo     int
	NumRows    int
	InquiryDiv string
}

// FetchPage performs one GET and returns the decoded payload. The
// application-level header is checked here on every page: code 07 maps to
// ErrRangeTooLarge, any other non-success code to *APIError. Transport
// failures (non-2xx, non-JSON body) surface as *TransportError; 5xx and
// network errors are retried with backoff first.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) (*Payload, error) {
	q := url.Values{}
	q.Set("serviceKey", c.serviceKey)
	q.Set("pageNo", strconv.Itoa(req.PageNo))
	q.Set("numOfRows", strconv.Itoa(req.NumRows))
	q.Set("inqryDiv", req.InquiryDiv)
	q.Set("inqryBgnDt", req.Window.BeginStamp())
	q.Set("inqryEndDt", req.Window.EndStamp())
	q.Set("type", "json")

	rawURL := fmt.Sprintf("%s/%s?%s", c.baseURL, req.Operation, q.Encode())

	body, status, err := c.getWithRetry(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &TransportError{Status: status, Body: truncate(string(body), 2000)}
	}

	payload, err := ParsePayload(body)
	if err != nil {
		return nil, &TransportError{Status: status, Body: truncate(string(body), 2000)}
	}

	if !payload.Header.OK() {
		if payload.Header.ResultCode == ResultCodeRangeTooLarge {
			return nil, ErrRangeTooLarge
		}
		return nil, &APIError{Code: payload.Header.ResultCode, Msg: payload.Header.ResultMsg}
	}

	return payload, nil
}

func (c *Client) getWithRetry(ctx context.Context, rawURL string) ([]byte, int, error) {
	var lastErr error
	for attempt := range c.maxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, eris.Wrap(err, "g2b: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, 0, eris.Wrap(err, "g2b: create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			zap.L().Warn("g2b request failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			c.backoff(ctx, attempt)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = &TransportError{Status: resp.StatusCode, Body: truncate(string(body), 2000)}
			zap.L().Warn("g2b server error, retrying",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			c.backoff(ctx, attempt)
			continue
		}

		return body, resp.StatusCode, nil
	}
	return nil, 0, eris.Wrap(lastErr, "g2b: all retries exhausted")
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	base := time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
