package sources

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return file
}

func TestLoadRegistryYAML(t *testing.T) {
	file := writeFile(t, "sources.yaml", `
sources:
  - id: bens_bites
    name: Ben's Bites
    type: bens_bites
    listing_url: https://www.bensbites.com/archive
    request_delay_ms: 750
  - id: reddit
    name: Reddit AI
    type: reddit_atom
    listing_url: https://www.reddit.com/r/{subreddit}/.rss
    config:
      subreddits: [artificial, LocalLLaMA]
      max_entries: 5
  - id: parked
    type: rundown
    listing_url: https://example.com
    disabled: true
`)

	reg, err := LoadRegistry(file)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if got := len(reg.Sources()); got != 2 {
		t.Fatalf("expected 2 enabled sources, got %d", got)
	}
	if _, ok := reg.ByID("parked"); ok {
		t.Fatalf("disabled source must not resolve")
	}

	bb, ok := reg.ByID("bens_bites")
	if !ok {
		t.Fatalf("expected bens_bites to be loaded")
	}
	if bb.RequestDelay() != 750*time.Millisecond {
		t.Fatalf("unexpected request delay: %v", bb.RequestDelay())
	}

	rd, _ := reg.ByID("reddit")
	subs := ConfigStrings(rd, ConfigSubredditsKey, nil)
	if len(subs) != 2 || subs[1] != "LocalLLaMA" {
		t.Fatalf("unexpected subreddits %#v", subs)
	}
	if ConfigInt(rd, ConfigMaxEntriesKey, 20) != 5 {
		t.Fatalf("expected max_entries override")
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	file := writeFile(t, "sources.json", `{"sources":[{"id":"the_rundown","type":"rundown","listing_url":"https://www.therundown.ai/"}]}`)
	reg, err := LoadRegistry(file)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	src, _ := reg.ByID("the_rundown")
	if src.Name != "the_rundown" {
		t.Fatalf("name should default to id, got %q", src.Name)
	}
}

func TestLoadRegistryRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"duplicate": `
sources:
  - {id: a, type: rundown, listing_url: https://a.example}
  - {id: a, type: rundown, listing_url: https://b.example}
`,
		"relative url": `
sources:
  - {id: a, type: rundown, listing_url: /archive}
`,
		"missing type": `
sources:
  - {id: a, listing_url: https://a.example}
`,
		"empty": `sources: []`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadRegistry(writeFile(t, "sources.yaml", content)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestHeadersFromConfig(t *testing.T) {
	h := Headers(Source{Config: map[string]any{
		ConfigUserAgentKey: "UA",
		ConfigAcceptKey:    " ",
	}})
	if h["User-Agent"] != "UA" {
		t.Fatalf("expected user agent header, got %#v", h)
	}
	if _, ok := h["Accept"]; ok {
		t.Fatalf("blank values must be skipped")
	}
}
