package publishers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
)

// Builder creates a Publisher from a validated config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error)

// Registry maps publisher types to builders. Register is meant for setup
// code; the map is not guarded for concurrent writes.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// DefaultRegistry knows every built-in publisher type.
func DefaultRegistry() *Registry {
	return NewRegistry().
		Register(TypeHTTP, newHTTPPublisher).
		Register(TypeSQS, newSQSPublisher).
		Register(TypeSNS, newSNSPublisher).
		Register(TypeGCPPubSub, newGCPPubSubPublisher)
}

// Register binds typ to builder, replacing any previous binding.
func (r *Registry) Register(typ string, builder Builder) *Registry {
	if typ = strings.ToLower(strings.TrimSpace(typ)); typ != "" && builder != nil {
		r.builders[typ] = builder
	}
	return r
}

// Build creates the publisher for one config entry.
func (r *Registry) Build(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	builder, ok := r.builders[strings.ToLower(cfg.Type)]
	if !ok {
		return nil, fmt.Errorf("publisher %q: no builder for type %q", cfg.ID, cfg.Type)
	}
	return builder(ctx, cfg, logger.OrNop(log))
}

// BuildAll builds every entry in order. Ids must be unique. When any entry
// fails, the publishers already built are closed before returning.
func BuildAll(ctx context.Context, reg *Registry, cfgs []PublisherConfig, log logger.Logger) ([]Publisher, error) {
	if reg == nil {
		return nil, errors.New("publisher registry is nil")
	}

	built := make([]Publisher, 0, len(cfgs))
	seen := make(map[string]struct{}, len(cfgs))
	fail := func(err error) ([]Publisher, error) {
		return nil, errors.Join(err, closeAll(built))
	}
	for _, cfg := range cfgs {
		if _, dup := seen[cfg.ID]; dup {
			return fail(fmt.Errorf("duplicate publisher id %q", cfg.ID))
		}
		seen[cfg.ID] = struct{}{}

		pub, err := reg.Build(ctx, cfg, log)
		if err != nil {
			return fail(err)
		}
		built = append(built, pub)
	}
	return built, nil
}
