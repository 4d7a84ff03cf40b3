package publishers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
	"github.com/samvad-hq/samvad-newsdesk/pkg/httpclient"
)

// Webhook headers set on every delivery, after the configured headers.
const (
	HeaderEvent     = "X-Newsdesk-Event"
	HeaderArticleID = "X-Newsdesk-Article-Id"
	HeaderSourceID  = "X-Newsdesk-Source"
)

const (
	webhookRetryWait  = 500 * time.Millisecond
	webhookSnippetLen = 512
)

// webhookPublisher delivers events as JSON to an HTTP endpoint. Transport
// failures and 5xx answers are retried when retries are configured; 4xx is final.
type webhookPublisher struct {
	id     string
	method string
	url    string
	client *resty.Client
	log    logger.Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q: http block missing", cfg.ID)
	}
	hc := cfg.HTTP
	client := httpclient.NewRestyHTTPClient(
		time.Duration(hc.TimeoutSeconds)*time.Second,
		httpclient.WithRetries(hc.Retries, webhookRetryWait),
	)
	client.SetHeaders(hc.Headers)
	client.SetHeader("Content-Type", "application/json")

	method := hc.Method
	if method == "" {
		method = httpDefaultMethod
	}
	return &webhookPublisher{
		id:     cfg.ID,
		method: method,
		url:    hc.URL,
		client: client,
		log:    logger.OrNop(log),
	}, nil
}

func (w *webhookPublisher) ID() string   { return w.id }
func (w *webhookPublisher) Type() string { return TypeHTTP }

func (w *webhookPublisher) Publish(ctx context.Context, evt Event) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader(HeaderEvent, evt.Type).
		SetHeader(HeaderArticleID, evt.Article.ID).
		SetHeader(HeaderSourceID, evt.SourceID).
		SetBody(evt).
		Execute(w.method, w.url)
	if err != nil {
		return fmt.Errorf("webhook %s %s: %w", w.method, w.url, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("webhook %s answered %d: %s", w.url, resp.StatusCode(), snippet(resp.Body()))
	}
	w.log.DebugObj("event delivered", "publisher_delivery", map[string]any{
		"publisher_id": w.id,
		"article_id":   evt.Article.ID,
		"status":       resp.StatusCode(),
		"attempts":     resp.Request.Attempt,
	})
	return nil
}

func snippet(body []byte) string {
	if len(body) > webhookSnippetLen {
		body = body[:webhookSnippetLen]
	}
	return strings.TrimSpace(string(body))
}
