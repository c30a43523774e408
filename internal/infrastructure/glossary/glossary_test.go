package glossary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadReadsAcronyms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glossary.yaml")
	content := "acronyms:\n  ICFR: internal control over financial reporting\n  RMM: \" risk of material misstatement \"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write glossary: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 || got["ICFR"] != "internal control over financial reporting" {
		t.Fatalf("unexpected glossary: %v", got)
	}
	if got["RMM"] != "risk of material misstatement" {
		t.Fatalf("expected trimmed full form, got %q", got["RMM"])
	}
}

func TestLoadEmptyPath(t *testing.T) {
	got, err := Load("  ")
	if err != nil || got != nil {
		t.Fatalf("expected no overrides, got %v err=%v", got, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"empty full form": "acronyms:\n  RMM: \"\"\n",
		"multi token":     "acronyms:\n  \"R M\": risk\n",
		"not a map":       "acronyms: [a, b]\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	got, err := Parse([]byte(strings.TrimSpace("# no overrides")))
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty glossary, got %v err=%v", got, err)
	}
}
