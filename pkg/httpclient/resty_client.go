package httpclient

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "samvad-newsdesk/1.0 (+https://github.com/samvad-hq/samvad-newsdesk)"

// RestyClient is the production Client.
type RestyClient struct {
	client *resty.Client
}

// Option tweaks the underlying resty client.
type Option func(*resty.Client)

// WithRetries retries transport failures and 5xx responses up to n extra times.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *resty.Client) {
		if n <= 0 {
			return
		}
		c.SetRetryCount(n).
			SetRetryWaitTime(wait).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= 500
			})
	}
}

// WithUserAgent overrides the default User-Agent; per-request headers still win.
func WithUserAgent(ua string) Option {
	return func(c *resty.Client) {
		if ua != "" {
			c.SetHeader("User-Agent", ua)
		}
	}
}

// NewRestyClient returns a Client whose every request is bounded by timeout.
func NewRestyClient(timeout time.Duration, opts ...Option) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout, opts...)}
}

// NewRestyHTTPClient returns the underlying resty client for callers that send bodies.
func NewRestyHTTPClient(timeout time.Duration, opts ...Option) *resty.Client {
	return newRestyBaseClient(timeout, opts...)
}

func newRestyBaseClient(timeout time.Duration, opts ...Option) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	c.SetHeader("User-Agent", defaultUserAgent)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches url. Non-2xx answers are returned as responses, not errors.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// IsTimeout reports whether err came from a deadline or a network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// restyResponseAdapter exposes the parts of resty.Response adapters read.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }

func (r *restyResponseAdapter) ContentType() string {
	return MediaType(r.resp.Header().Get("Content-Type"))
}

// MediaType strips parameters from a Content-Type value.
func MediaType(raw string) string {
	if i := strings.IndexByte(raw, ';'); i >= 0 {
		raw = raw[:i]
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
