package sources

import (
	"context"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
	"github.com/samvad-hq/samvad-newsdesk/pkg/httpclient"
)

// HTTPClient aliases the shared httpclient.Client interface for clarity within sources.
type HTTPClient = httpclient.Client

// Page is one downloaded listing document.
type Page struct {
	URL   string
	Label string
	Body  []byte
}

// Variant holds the parsing rules for one kind of source. New sources are added as
// variants; shared code never branches on a source id.
type Variant interface {
	Type() string
	FetchListing(ctx context.Context, client HTTPClient, src Source) ([]Page, error)
	ExtractItems(src Source, pages []Page) ([]domain.RawArticle, error)
}

// ItemEnricher follows an item's own page to fill missing fields.
type ItemEnricher interface {
	EnrichItem(ctx context.Context, client HTTPClient, src Source, item domain.RawArticle) (domain.RawArticle, error)
}

// Fetcher is what the scheduler drives: one source, one call, raw articles out.
type Fetcher interface {
	ID() string
	DisplayName() string
	Fetch(ctx context.Context) ([]domain.RawArticle, error)
}
