package sources

import (
	"context"
	"errors"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
	"github.com/samvad-hq/samvad-newsdesk/pkg/httpclient"
)

// Adapter binds a Source to its Variant and an HTTP client.
type Adapter struct {
	src      Source
	variant  Variant
	client   HTTPClient
	enricher ItemEnricher
	log      logger.Logger
}

// NewAdapter builds an Adapter. Enrichment runs only for sources with enrich set; a
// variant with its own EnrichItem wins over the OpenGraph default.
func NewAdapter(src Source, variant Variant, client HTTPClient, log logger.Logger) *Adapter {
	a := &Adapter{
		src:     src,
		variant: variant,
		client:  client,
		log:     logger.OrNop(log),
	}
	if src.Enrich {
		if e, ok := variant.(ItemEnricher); ok {
			a.enricher = e
		} else {
			a.enricher = NewOGEnricher()
		}
	}
	return a
}

func (a *Adapter) ID() string          { return a.src.ID }
func (a *Adapter) DisplayName() string { return a.src.Name }
func (a *Adapter) Source() Source      { return a.src }

// Fetch retrieves and parses the listing. Listing-level failures come back as
// *domain.SourceError; enrichment failures are logged and the item is kept as listed.
func (a *Adapter) Fetch(ctx context.Context) ([]domain.RawArticle, error) {
	pages, err := a.variant.FetchListing(ctx, a.client, a.src)
	if err != nil {
		return nil, classify(a.src.ID, domain.KindSourceUnreachable, "fetch listing", err)
	}

	items, err := a.variant.ExtractItems(a.src, pages)
	if err != nil {
		return nil, classify(a.src.ID, domain.KindParseFailure, "extract items", err)
	}
	if len(items) == 0 {
		return nil, domain.ParseFailure(a.src.ID, "listing yielded no items", nil)
	}

	if a.enricher != nil {
		items = a.enrich(ctx, items)
	}
	return items, nil
}

func (a *Adapter) enrich(ctx context.Context, items []domain.RawArticle) []domain.RawArticle {
	delay := a.src.RequestDelay()
	out := append([]domain.RawArticle(nil), items...)

	for i, item := range items {
		if ctx.Err() != nil {
			a.log.WarnObj("enrichment stopped", "enrich_abort", map[string]any{
				"source_id": a.src.ID,
				"remaining": len(items) - i,
				"error":     ctx.Err().Error(),
			})
			return out
		}

		enriched, err := a.enricher.EnrichItem(ctx, a.client, a.src, item)
		if err != nil {
			a.log.WarnObj("article enrichment failed", "enrich_error", map[string]any{
				"source_id": a.src.ID,
				"url":       item.URL,
				"error":     err.Error(),
			})
		} else {
			out[i] = enriched
		}

		if i < len(items)-1 {
			// A cancelled wait is reported by the ctx check above.
			_ = pause(ctx, delay)
		}
	}
	return out
}

// classify keeps an existing SourceError, marks timeouts unreachable, and wraps
// everything else with the given kind.
func classify(sourceID string, kind domain.SourceErrorKind, msg string, err error) error {
	var se *domain.SourceError
	if errors.As(err, &se) {
		return err
	}
	if httpclient.IsTimeout(err) {
		return domain.Unreachable(sourceID, msg+": timed out", err)
	}
	return &domain.SourceError{Source: sourceID, Kind: kind, Message: msg, Err: err}
}
