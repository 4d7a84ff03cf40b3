package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Package sources loads the source registry and turns each entry into an Adapter.

// Source is one configured newsletter or site.
type Source struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Type           string         `json:"type" yaml:"type"`
	ListingURL     string         `json:"listing_url" yaml:"listing_url"`
	Enrich         bool           `json:"enrich" yaml:"enrich"`
	Disabled       bool           `json:"disabled" yaml:"disabled"`
	RequestDelayMs int            `json:"request_delay_ms" yaml:"request_delay_ms"`
	Config         map[string]any `json:"config" yaml:"config"`
}

type registryFile struct {
	Sources []Source `json:"sources" yaml:"sources"`
}

var defaultRequestDelayMs = 500

// Registry is an immutable, validated set of sources.
type Registry struct {
	sources []Source
	idx     map[string]Source
}

// LoadRegistry loads a source registry from a YAML or JSON file.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sources file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	reg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return NewRegistry(reg.Sources)
}

// NewRegistry validates entries and drops disabled ones.
func NewRegistry(entries []Source) (*Registry, error) {
	if len(entries) == 0 {
		return nil, errors.New("sources file contains no sources entries")
	}

	r := &Registry{idx: make(map[string]Source, len(entries))}
	for i := range entries {
		s := sanitizeSource(entries[i])
		if err := validateSource(s); err != nil {
			return nil, fmt.Errorf("source[%d]: %w", i, err)
		}
		if _, exists := r.idx[s.ID]; exists {
			return nil, fmt.Errorf("duplicate source id %q", s.ID)
		}
		r.idx[s.ID] = s
		if !s.Disabled {
			r.sources = append(r.sources, s)
		}
	}
	if len(r.sources) == 0 {
		return nil, errors.New("every configured source is disabled")
	}
	return r, nil
}

// Sources returns the enabled sources in file order.
func (r *Registry) Sources() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// ByID returns an enabled source.
func (r *Registry) ByID(id string) (Source, bool) {
	s, ok := r.idx[strings.TrimSpace(id)]
	if !ok || s.Disabled {
		return Source{}, false
	}
	return s, true
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("sources file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registryFile, error) {
	var reg registryFile
	if err := fn(data, &reg); err != nil {
		return registryFile{}, fmt.Errorf("decode %s sources: %w", name, err)
	}
	return reg, nil
}

func sanitizeSource(s Source) Source {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	s.ListingURL = strings.TrimSpace(s.ListingURL)

	if s.Config == nil {
		s.Config = map[string]any{}
	}
	if s.RequestDelayMs <= 0 {
		s.RequestDelayMs = defaultRequestDelayMs
	}
	if s.Name == "" {
		s.Name = s.ID
	}
	return s
}

func validateSource(s Source) error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Type == "" {
		return fmt.Errorf("type is required for source %q", s.ID)
	}
	if s.ListingURL == "" {
		return fmt.Errorf("listing_url is required for source %q", s.ID)
	}
	if !strings.HasPrefix(s.ListingURL, "http://") && !strings.HasPrefix(s.ListingURL, "https://") {
		return fmt.Errorf("listing_url for source %q must be absolute http(s)", s.ID)
	}
	return nil
}

// RequestDelay returns the pause between per-item enrichment fetches.
func (s Source) RequestDelay() time.Duration {
	if s.RequestDelayMs <= 0 {
		return time.Duration(defaultRequestDelayMs) * time.Millisecond
	}
	return time.Duration(s.RequestDelayMs) * time.Millisecond
}
