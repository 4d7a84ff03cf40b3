package sources

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/samvad-hq/samvad-newsdesk/pkg/httpclient"
)

// fakeResponse lets us stub the httpclient.Client interface.
type fakeResponse struct {
	body        []byte
	statusCode  int
	contentType string
}

func (f fakeResponse) Body() []byte        { return f.body }
func (f fakeResponse) StatusCode() int     { return f.statusCode }
func (f fakeResponse) ContentType() string { return f.contentType }

// fakeHTTPClient returns canned responses per URL to avoid network calls.
type fakeHTTPClient struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	errs      map[string]error
	calls     []string
	headers   []map[string]string
}

func (f *fakeHTTPClient) Get(_ context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	f.headers = append(f.headers, headers)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	resp, ok := f.responses[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return resp, nil
}

func okResponse(body string) fakeResponse {
	return fakeResponse{body: []byte(body), statusCode: http.StatusOK}
}
