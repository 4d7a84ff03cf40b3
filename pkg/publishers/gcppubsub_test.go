package publishers

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
)

func TestGCPPubSubPublisherPublishes(t *testing.T) {
	// in-memory Pub/Sub emulator
	server := pstest.NewServer()
	defer server.Close()
	t.Setenv("PUBSUB_EMULATOR_HOST", server.Addr)

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	defer client.Close()
	if _, err := client.CreateTopic(ctx, "articles"); err != nil {
		t.Fatalf("create topic: %v", err)
	}

	pub, err := newGCPPubSubPublisher(ctx, PublisherConfig{
		ID:        "pubsub",
		Type:      TypeGCPPubSub,
		GCPPubSub: &GCPPubSubPublisherConfig{ProjectID: "test-project", Topic: "articles"},
	}, nil)
	if err != nil {
		t.Fatalf("newGCPPubSubPublisher: %v", err)
	}
	defer pub.(*gcpPubSubPublisher).Close()

	if err := pub.Publish(ctx, NewEvent(domain.Article{ID: "a1", Source: "bens_bites"})); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msgs := server.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message on the emulator, got %d", len(msgs))
	}
	var evt Event
	if err := json.Unmarshal(msgs[0].Data, &evt); err != nil || evt.Article.ID != "a1" {
		t.Fatalf("unexpected payload %s err=%v", msgs[0].Data, err)
	}
	if msgs[0].Attributes[AttrSourceID] != "bens_bites" || msgs[0].Attributes[AttrEventType] != EventTypeArticleIngested {
		t.Fatalf("missing source_id attribute: %#v", msgs[0].Attributes)
	}
}
