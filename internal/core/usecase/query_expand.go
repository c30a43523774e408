package usecase

import (
	"regexp"
	"strings"
)

var queryTokenPattern = regexp.MustCompile(`\b[A-Za-z]+\b`)

// DefaultAcronyms maps audit acronyms to their full forms.
var DefaultAcronyms = map[string]string{
	"RA":    "risk assessment",
	"ToC":   "tests of controls",
	"RMM":   "risk of material misstatement",
	"ROMM":  "risk of material misstatement",
	"AM":    "application material",
	"AP":    "audit procedures",
	"TCWG":  "those charged with governance",
	"KAM":   "key audit matters",
	"LCE":   "less complex entities",
	"GCM":   "going concern matters",
	"SA":    "substantive analytical procedures",
	"IT":    "information technology",
	"ITGC":  "IT general controls",
	"PM":    "performance materiality",
	"FS":    "financial statements",
	"ISA":   "International Standard on Auditing",
	"IFAC":  "International Federation of Accountants",
	"IAASB": "International Auditing and Assurance Standards Board",
	"PCAOB": "Public Company Accounting Oversight Board",
}

// QueryExpander appends acronym full forms to a query. It is safe for concurrent use.
type QueryExpander struct {
	exact map[string]string
	upper map[string]string
}

// NewQueryExpander merges overrides on top of DefaultAcronyms.
func NewQueryExpander(overrides map[string]string) *QueryExpander {
	e := &QueryExpander{
		exact: make(map[string]string, len(DefaultAcronyms)+len(overrides)),
		upper: make(map[string]string, len(DefaultAcronyms)+len(overrides)),
	}
	for _, dict := range []map[string]string{DefaultAcronyms, overrides} {
		for acronym, full := range dict {
			acronym = strings.TrimSpace(acronym)
			full = strings.TrimSpace(full)
			if acronym == "" || full == "" {
				continue
			}
			e.exact[acronym] = full
			e.upper[strings.ToUpper(acronym)] = full
		}
	}
	return e
}

func (e *QueryExpander) lookup(token string) (string, bool) {
	if full, ok := e.exact[token]; ok {
		return full, true
	}
	full, ok := e.upper[strings.ToUpper(token)]
	return full, ok
}

// Expand returns the query followed by the full form of every recognised
// acronym not already present in it.
func (e *QueryExpander) Expand(query string) string {
	lowered := strings.ToLower(query)
	seen := make(map[string]struct{})
	expansions := make([]string, 0)
	for _, token := range queryTokenPattern.FindAllString(query, -1) {
		full, ok := e.lookup(token)
		if !ok {
			continue
		}
		key := strings.ToLower(full)
		if strings.Contains(lowered, key) {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		expansions = append(expansions, full)
	}
	if len(expansions) == 0 {
		return query
	}
	return query + " " + strings.Join(expansions, " ")
}

// Variants returns the original query and, when different, its expansion.
func (e *QueryExpander) Variants(query string) []string {
	expanded := e.Expand(query)
	if expanded == query {
		return []string{query}
	}
	return []string{query, expanded}
}
