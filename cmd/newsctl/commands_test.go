package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSources = `sources:
  - id: bens_bites
    name: "Ben's Bites"
    type: bens_bites
    listing_url: https://www.bensbites.com/archive
  - id: the_rundown
    name: The Rundown AI
    type: rundown
    listing_url: https://www.therundown.ai/
`

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	if err := os.WriteFile(path, []byte(testSources), 0o600); err != nil {
		t.Fatalf("write sources: %v", err)
	}
	t.Setenv("SOURCES_FILE", path)
	t.Setenv("BBOLT_PATH", filepath.Join(dir, "newsdesk.db"))
	t.Setenv("CACHE_TYPE", "none")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSourcesCommandListsRegistry(t *testing.T) {
	setupEnv(t)
	out, err := execute(t, "sources")
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	for _, want := range []string{"bens_bites", "The Rundown AI", "https://www.therundown.ai/"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusCommandShowsNeverRun(t *testing.T) {
	setupEnv(t)
	out, err := execute(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.Count(out, "never_run") != 2 || !strings.Contains(out, "never") {
		t.Fatalf("expected both sources never run:\n%s", out)
	}
}

func TestDeleteArticleUnknownID(t *testing.T) {
	setupEnv(t)
	if _, err := execute(t, "delete-article", "0123456789abcdef"); err == nil {
		t.Fatalf("expected not found error")
	}
	if _, err := execute(t, "delete-article"); err == nil {
		t.Fatalf("expected argument error")
	}
}
