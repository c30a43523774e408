package domain

import (
	"math"
	"strings"
)

type Tier int

const (
	TierGuide    Tier = 1
	TierStandard Tier = 2
)

// Weight is the authority weight applied in multi-tier ranking.
func (t Tier) Weight() float64 {
	if t == TierGuide {
		return 0.85
	}
	return 1.0
}

type SearchMode string

const (
	SearchHybrid  SearchMode = "hybrid"
	SearchKeyword SearchMode = "keyword"
	SearchVector  SearchMode = "vector"
)

// ParseSearchMode maps free-form input to a mode, defaulting to hybrid.
func ParseSearchMode(raw string) SearchMode {
	switch SearchMode(strings.ToLower(strings.TrimSpace(raw))) {
	case SearchKeyword:
		return SearchKeyword
	case SearchVector:
		return SearchVector
	default:
		return SearchHybrid
	}
}

const (
	PathKeyword = "keyword"
	PathVector  = "vector"
	PathHop     = "hop"
)

// Ranking holds the scoring fields shared by every result variant.
type Ranking struct {
	Confidence    float64  `json:"confidence"`
	RetrievalPath string   `json:"retrieval_path,omitempty"`
	RRFScore      float64  `json:"rrf_score,omitempty"`
	RerankScore   *float64 `json:"rerank_score,omitempty"`
	WeightedScore float64  `json:"weighted_score,omitempty"`
	Tier          Tier     `json:"tier"`
}

func (r *Ranking) Rank() *Ranking { return r }

// RankedResult is implemented by ParagraphResult, SectionResult and HopNode.
type RankedResult interface {
	ResultID() string
	ResultContent() string
	Rank() *Ranking
	Clone() RankedResult
}

type ParagraphResult struct {
	Paragraph
	Ranking
}

func (p *ParagraphResult) ResultID() string      { return p.ID }
func (p *ParagraphResult) ResultContent() string { return p.Content }

func (p *ParagraphResult) Clone() RankedResult {
	out := *p
	return &out
}

type SectionResult struct {
	Section
	Ranking
}

func (s *SectionResult) ResultID() string      { return s.ID }
func (s *SectionResult) ResultContent() string { return s.Content }

func (s *SectionResult) Clone() RankedResult {
	out := *s
	return &out
}

// NewParagraphResult wraps a paragraph in a tier 2 result.
func NewParagraphResult(p Paragraph, confidence float64, path string) *ParagraphResult {
	return &ParagraphResult{
		Paragraph: p,
		Ranking:   Ranking{Confidence: confidence, RetrievalPath: path, Tier: TierStandard},
	}
}

func NewSectionResult(s Section, confidence float64, path string) *SectionResult {
	return &SectionResult{
		Section: s,
		Ranking: Ranking{Confidence: confidence, RetrievalPath: path, Tier: TierGuide},
	}
}

// VectorConfidence maps a similarity distance (lower is closer) into (0,1].
func VectorConfidence(distance float64) float64 {
	if distance < 0 || math.IsNaN(distance) {
		distance = 0
	}
	return 1.0 / (1.0 + distance)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

type SearchRequest struct {
	Query  string
	Limit  int
	Filter string
	Mode   SearchMode
	Expand bool
	Rerank bool
}

type SearchResponse struct {
	Query         string         `json:"query"`
	ExpandedQuery string         `json:"expanded_query,omitempty"`
	Results       []RankedResult `json:"results"`
	TotalResults  int            `json:"total_results"`
	ModeUsed      SearchMode     `json:"search_type_used"`
	Warnings      []string       `json:"warnings"`
}

type MultiTierRequest struct {
	Query string
	Limit int
	Tiers []Tier
	Mode  SearchMode
}

type MultiTierResponse struct {
	Query        string         `json:"query"`
	Results      []RankedResult `json:"results"`
	TotalResults int            `json:"total_results"`
	ModeUsed     SearchMode     `json:"search_type_used"`
	TierCounts   map[Tier]int   `json:"tier_counts"`
	Warnings     []string       `json:"warnings"`
}

// RerankDocument is the minimal view a reranking capability scores.
type RerankDocument struct {
	ID    string
	Label string
	Text  string
}
