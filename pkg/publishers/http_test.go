package publishers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
)

func webhookConfig(url string, retries int) PublisherConfig {
	return PublisherConfig{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPPublisherConfig{
			URL:            url,
			Headers:        map[string]string{"X-Test": "1"},
			TimeoutSeconds: 2,
			Retries:        retries,
		},
	}.normalize()
}

func TestHTTPPublisherSuccess(t *testing.T) {
	var received atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		for key, want := range map[string]string{
			"X-Test":        "1",
			"Content-Type":  "application/json",
			HeaderEvent:     EventTypeArticleIngested,
			HeaderArticleID: "a1",
			HeaderSourceID:  "bens_bites",
		} {
			if got := r.Header.Get(key); got != want {
				t.Errorf("header %s = %q, want %q", key, got, want)
			}
		}
		var evt Event
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil || evt.Article.ID != "a1" || evt.Type != EventTypeArticleIngested {
			t.Errorf("unexpected payload %+v err=%v", evt, err)
		}
		received.Store(true)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	pub, err := newHTTPPublisher(context.Background(), webhookConfig(srv.URL, 0), nil)
	if err != nil {
		t.Fatalf("newHTTPPublisher: %v", err)
	}

	evt := NewEvent(domain.Article{ID: "a1", Source: "bens_bites", SourceDisplay: "Ben's Bites"})
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !received.Load() {
		t.Fatalf("server did not receive request")
	}
}

func TestHTTPPublisherClientErrorIsFinal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	pub, err := newHTTPPublisher(context.Background(), webhookConfig(srv.URL, 2), nil)
	if err != nil {
		t.Fatalf("newHTTPPublisher: %v", err)
	}
	if err := pub.Publish(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error on 400 response")
	}
	if hits.Load() != 1 {
		t.Fatalf("4xx must not be retried, got %d requests", hits.Load())
	}
}

func TestHTTPPublisherRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pub, err := newHTTPPublisher(context.Background(), webhookConfig(srv.URL, 2), nil)
	if err != nil {
		t.Fatalf("newHTTPPublisher: %v", err)
	}
	if err := pub.Publish(context.Background(), NewEvent(domain.Article{ID: "a2"})); err != nil {
		t.Fatalf("Publish should succeed on third attempt: %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 requests, got %d", hits.Load())
	}
}
