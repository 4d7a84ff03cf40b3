package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
)

// EventTypeArticleIngested is the only event the newsdesk emits today.
const EventTypeArticleIngested = "article.ingested"

// Attribute keys carried next to the payload by transports that support them.
const (
	AttrEventType = "event_type"
	AttrSourceID  = "source_id"
	AttrArticleID = "article_id"
)

// Event announces one article newly ingested by a scrape run.
type Event struct {
	Type       string         `json:"type"`
	SourceID   string         `json:"source_id"`
	SourceName string         `json:"source_name"`
	Article    domain.Article `json:"article"`
	IngestedAt time.Time      `json:"ingested_at"`
}

// NewEvent constructs an Event for a freshly stored article.
func NewEvent(article domain.Article) Event {
	return Event{
		Type:       EventTypeArticleIngested,
		SourceID:   article.Source,
		SourceName: article.SourceDisplay,
		Article:    article,
		IngestedAt: time.Now().UTC(),
	}
}

// Attributes returns routing metadata; empty values are omitted.
func (e Event) Attributes() map[string]string {
	attrs := make(map[string]string, 3)
	for k, v := range map[string]string{
		AttrEventType: e.Type,
		AttrSourceID:  e.SourceID,
		AttrArticleID: e.Article.ID,
	} {
		if v != "" {
			attrs[k] = v
		}
	}
	return attrs
}
