package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	ParagraphIDPrefix = "ip_"
	SectionIDPrefix   = "gs_"
	StandardIDPrefix  = "is_"
)

// ReferenceHint lists the identifier formats accepted by lookups.
const ReferenceHint = "Try formats: '315.12', '315.12(a)', '315.12(a).A2', '315.A2', or a direct ID like 'ip_a1b2c3d4'."

var (
	standardPrefixPattern = regexp.MustCompile(`(?i)^ISA\s*`)
	paragraphRefPattern   = regexp.MustCompile(`^(\d{3})\.(\d+)(?:\(([a-z])\))?(?:\.A(\d+))?`)
	applicationRefPattern = regexp.MustCompile(`^(\d{3})\.A(\d+)`)
)

// ReferenceParts are the columns a paragraph reference decomposes into.
type ReferenceParts struct {
	StandardNumber string
	ParaNum        string
	SubParagraph   string
	ApplicationRef string
}

// Canonical rebuilds the composite paragraph_ref.
func (p ReferenceParts) Canonical() string {
	if p.ParaNum == "" {
		if p.ApplicationRef == "" {
			return p.StandardNumber
		}
		return p.StandardNumber + "." + p.ApplicationRef
	}
	return BuildParagraphRef(p.StandardNumber, p.ParaNum, p.SubParagraph, p.ApplicationRef)
}

// BuildParagraphRef composes references like 315.12(a).A2.
func BuildParagraphRef(standard, paraNum, sub, app string) string {
	var b strings.Builder
	b.WriteString(standard)
	b.WriteByte('.')
	b.WriteString(paraNum)
	if sub != "" {
		b.WriteByte('(')
		b.WriteString(sub)
		b.WriteByte(')')
	}
	if app != "" {
		b.WriteByte('.')
		b.WriteString(app)
	}
	return b.String()
}

// ParagraphID is the deterministic id ingestion assigns to a paragraph.
func ParagraphID(standard, ref string) string {
	return ParagraphIDPrefix + shortHash("ISA_"+standard+"|"+ref)
}

func StandardID(standard string) string {
	return StandardIDPrefix + shortHash("ISA_"+standard)
}

func shortHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:8]
}

// IsDirectID reports whether identifier is an internal paragraph or section id.
func IsDirectID(identifier string) bool {
	return strings.HasPrefix(identifier, ParagraphIDPrefix) || strings.HasPrefix(identifier, SectionIDPrefix)
}

func IsSectionID(identifier string) bool {
	return strings.HasPrefix(identifier, SectionIDPrefix)
}

// StripStandardPrefix removes a leading "ISA" token from a human reference.
func StripStandardPrefix(ref string) string {
	return strings.TrimSpace(standardPrefixPattern.ReplaceAllString(strings.TrimSpace(ref), ""))
}

// ParseParagraphRef splits "315.12(a).A2" style references.
func ParseParagraphRef(ref string) (ReferenceParts, bool) {
	m := paragraphRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return ReferenceParts{}, false
	}
	parts := ReferenceParts{
		StandardNumber: m[1],
		ParaNum:        m[2],
		SubParagraph:   m[3],
	}
	if m[4] != "" {
		parts.ApplicationRef = "A" + m[4]
	}
	return parts, true
}

// ParseApplicationRef matches application material references like "315.A2".
func ParseApplicationRef(ref string) (ReferenceParts, bool) {
	m := applicationRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return ReferenceParts{}, false
	}
	return ReferenceParts{StandardNumber: m[1], ApplicationRef: "A" + m[2]}, true
}
