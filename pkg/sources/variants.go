package sources

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
	"github.com/samvad-hq/samvad-newsdesk/pkg/httpclient"
)

const (
	TypeBensBites = "bens_bites"
	TypeRundown   = "rundown"
	TypeReddit    = "reddit_atom"
)

// VariantRegistry resolves the Variant for a source type.
type VariantRegistry struct {
	mu     sync.RWMutex
	byType map[string]Variant
}

// NewVariantRegistry registers the given variants by their Type.
func NewVariantRegistry(variants ...Variant) *VariantRegistry {
	reg := &VariantRegistry{byType: make(map[string]Variant)}
	for _, v := range variants {
		reg.Register(v)
	}
	return reg
}

// Register adds or replaces the variant for its type.
func (r *VariantRegistry) Register(v Variant) {
	if v == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(v.Type()))
	if key == "" {
		return
	}
	r.mu.Lock()
	r.byType[key] = v
	r.mu.Unlock()
}

// VariantFor selects the variant for the given source.
func (r *VariantRegistry) VariantFor(src Source) (Variant, error) {
	if r == nil {
		return nil, fmt.Errorf("variant registry is nil")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if v, ok := r.byType[strings.ToLower(src.Type)]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no variant registered for source %q (type %q)", src.ID, src.Type)
}

// DefaultHTTPClient returns the resty-backed client used for listing and item fetches.
func DefaultHTTPClient(timeout time.Duration) HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return httpclient.NewRestyClient(timeout)
}

// DefaultVariants wires up the known source variants.
func DefaultVariants(log logger.Logger) *VariantRegistry {
	return NewVariantRegistry(
		NewBensBitesVariant(),
		NewRundownVariant(),
		NewRedditVariant(log),
	)
}

// BuildAdapters resolves a variant for every enabled source.
func BuildAdapters(reg *Registry, variants *VariantRegistry, client HTTPClient, log logger.Logger) ([]*Adapter, error) {
	srcs := reg.Sources()
	adapters := make([]*Adapter, 0, len(srcs))
	for _, src := range srcs {
		v, err := variants.VariantFor(src)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, NewAdapter(src, v, client, log))
	}
	return adapters, nil
}
