package domain

import "strings"

// Paragraph is one numbered unit of a standard (requirement or application material).
type Paragraph struct {
	ID             string `json:"id"`
	StandardNumber string `json:"isa_number"`
	ParaNum        string `json:"para_num,omitempty"`
	SubParagraph   string `json:"sub_paragraph"`
	ApplicationRef string `json:"application_ref"`
	Ref            string `json:"paragraph_ref"`
	Content        string `json:"content"`
	PageNumber     int    `json:"page_number"`
	SourceDoc      string `json:"source_doc"`
}

// Section is a heading-delimited chunk of a guide document.
type Section struct {
	ID         string   `json:"id"`
	Heading    string   `json:"heading"`
	Content    string   `json:"content"`
	SourceDoc  string   `json:"source_doc"`
	References []string `json:"isa_references"`
}

type Standard struct {
	ID             string `json:"id"`
	Number         string `json:"isa_number"`
	Title          string `json:"title"`
	Version        string `json:"version"`
	EffectiveDate  string `json:"effective_date"`
	ParagraphCount int    `json:"paragraph_count"`
}

type Guide struct {
	SourceDoc    string `json:"source_doc"`
	SectionCount int    `json:"section_count"`
	FirstHeading string `json:"first_heading"`
}

type EdgeKind string

const (
	EdgeCites     EdgeKind = "cites"
	EdgeHop       EdgeKind = "hop_edge"
	EdgeMapsTo    EdgeKind = "maps_to"
	EdgeBelongsTo EdgeKind = "belongs_to"
)

type HopType string

const (
	HopSubParagraph HopType = "sub_paragraph"
	HopAppMaterial  HopType = "app_material"
	HopCrossRef     HopType = "cross_ref"
	HopStandardRef  HopType = "standard_ref"
)

// Weight returns the specificity weight ingestion assigns to edges of this type.
func (t HopType) Weight() float64 {
	switch t {
	case HopSubParagraph:
		return 0.95
	case HopCrossRef:
		return 0.90
	case HopAppMaterial:
		return 0.85
	default:
		return 0.60
	}
}

// ClassifyHopType derives the hop type from the referenced paragraph_ref.
func ClassifyHopType(ref string) HopType {
	if strings.Contains(ref, "(") {
		return HopSubParagraph
	}
	for _, part := range strings.Split(ref, ".") {
		if isApplicationPart(part) {
			return HopAppMaterial
		}
	}
	if strings.Contains(ref, ".") {
		return HopCrossRef
	}
	return HopStandardRef
}

func isApplicationPart(part string) bool {
	if len(part) < 2 || part[0] != 'A' {
		return false
	}
	for _, r := range part[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Edge is a directed edge of the reference graph.
type Edge struct {
	SrcID  string  `json:"src_id"`
	DstID  string  `json:"dst_id"`
	Weight float64 `json:"weight"`
	Type   HopType `json:"hop_type,omitempty"`
	Query  string  `json:"query,omitempty"`
}

// RelatedRecord is a neighbour of a paragraph reached by one direct edge.
type RelatedRecord struct {
	ID             string `json:"id"`
	Relation       string `json:"relation"`
	Ref            string `json:"paragraph_ref,omitempty"`
	StandardNumber string `json:"isa_number,omitempty"`
	Title          string `json:"title,omitempty"`
	CitationText   string `json:"citation_text,omitempty"`
	ContentPreview string `json:"content_preview,omitempty"`
}

// Preview truncates s to at most n runes.
func Preview(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
