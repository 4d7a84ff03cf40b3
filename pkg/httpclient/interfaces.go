package httpclient

import "context"

// Response exposes what source adapters read from a fetched page.
type Response interface {
	Body() []byte
	StatusCode() int
	// ContentType is the media type without parameters, lower-cased; empty when absent.
	ContentType() string
}

// Client issues the GET requests behind listing and item fetches. Tests inject fakes.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}
