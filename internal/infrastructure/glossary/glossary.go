// Package glossary loads acronym overrides for query expansion from YAML:
//
//	acronyms:
//	  ICFR: internal control over financial reporting
//	  RMM: risk of material misstatement
package glossary

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxEntries = 1000

type file struct {
	Acronyms map[string]string `yaml:"acronyms"`
}

// Load reads acronym overrides from path. An empty path yields no overrides.
func Load(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (map[string]string, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse glossary: %w", err)
	}
	if len(f.Acronyms) > maxEntries {
		return nil, fmt.Errorf("glossary has %d acronyms (max %d)", len(f.Acronyms), maxEntries)
	}

	out := make(map[string]string, len(f.Acronyms))
	for acronym, full := range f.Acronyms {
		acronym = strings.TrimSpace(acronym)
		full = strings.TrimSpace(full)
		if acronym == "" || full == "" {
			return nil, fmt.Errorf("glossary entry %q: acronym and full form are required", acronym)
		}
		if strings.ContainsAny(acronym, " \t") {
			return nil, fmt.Errorf("glossary entry %q: acronym must be a single token", acronym)
		}
		out[acronym] = full
	}
	return out, nil
}
