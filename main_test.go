package main

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/internal/cache"
)

func TestOutlineMarkdown(t *testing.T) {
	doc, err := guided.LoadDocument(strings.NewReader(`
title: Alice
guided:
  - role: [heading]
    text: Down the *Rabbit* Hole
  - text: Alice was beginning to get very tired.
  - role: [aside]
    text: A note.
  - role: [pagebreak]
`))
	if err != nil {
		t.Fatal(err)
	}

	md := outlineMarkdown(doc, false)
	for _, want := range []string{
		"# Alice\n",
		"## Down the \\*Rabbit\\* Hole\n",
		"\nAlice was beginning to get very tired.\n",
		"> A note.\n",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("outline is missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "pagebreak") {
		t.Errorf("nodes without text should be left out:\n%s", md)
	}

	if md := outlineMarkdown(doc, true); !strings.Contains(md, "> A note. *(aside)*") {
		t.Errorf("roles not shown:\n%s", md)
	}
}

func TestDocumentPatterns(t *testing.T) {
	patterns := documentPatterns()
	for _, want := range []string{"*.md", "*.xhtml", "*.pdf", "*.docx"} {
		if !slices.Contains(patterns, want) {
			t.Errorf("patterns %v are missing %s", patterns, want)
		}
	}
}

func TestValidateStyle(t *testing.T) {
	for _, style := range []string{"auto", "dark", "notty"} {
		if err := validateStyle(style); err != nil {
			t.Errorf("validateStyle(%q): %v", style, err)
		}
	}
	if err := validateStyle(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing style file")
	}
}

func TestEnsureConfigFile(t *testing.T) {
	saved := configFile
	t.Cleanup(func() { configFile = saved })

	configFile = filepath.Join(t.TempDir(), "nested", "readaloud.yml")
	if err := ensureConfigFile(); err != nil {
		t.Fatalf("ensureConfigFile: %v", err)
	}
	b, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != defaultConfig {
		t.Error("default config not written")
	}

	// An existing file is left alone.
	if err := os.WriteFile(configFile, []byte("log_level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ensureConfigFile(); err != nil {
		t.Fatalf("ensureConfigFile: %v", err)
	}
	if b, _ := os.ReadFile(configFile); string(b) != "log_level: debug\n" {
		t.Errorf("existing config overwritten: %q", b)
	}

	configFile = filepath.Join(t.TempDir(), "readaloud.toml")
	if err := ensureConfigFile(); err == nil {
		t.Error("expected an error for a toml file")
	}
}

func TestPrintCacheSummary(t *testing.T) {
	var buf bytes.Buffer
	printCacheSummary(&buf, cache.Summary{
		Dir:    "/tmp/speech",
		Memory: cache.Stats{Capacity: 1 << 20, Size: 2048, ItemCount: 2, Hits: 3, Misses: 1},
		Disk:   cache.Stats{Capacity: 1 << 30, ItemCount: 5, LastAccess: time.Now()},
	})

	out := buf.String()
	for _, want := range []string{"/tmp/speech", "memory", "2 items", "75% hits", "disk", "5 items"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary is missing %q:\n%s", want, out)
		}
	}
}
