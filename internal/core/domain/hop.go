package domain

type HopRequest struct {
	SeedID     string
	MaxHops    int
	Decay      float64
	MinScore   float64
	MaxResults int
}

const (
	DefaultMaxHops      = 3
	DefaultGuideMaxHops = 2
	DefaultHopDecay     = 0.7
	DefaultHopMinScore  = 0.01
	DefaultHopResults   = 30
)

// NewHopRequest returns a request for seed carrying every default.
func NewHopRequest(seed string) HopRequest {
	return HopRequest{
		SeedID:     seed,
		MaxHops:    DefaultMaxHops,
		Decay:      DefaultHopDecay,
		MinScore:   DefaultHopMinScore,
		MaxResults: DefaultHopResults,
	}
}

// Normalize fills defaults for unset or out-of-range parameters. A zero
// Decay is a valid setting: nothing beyond the first hop keeps a score.
func (r HopRequest) Normalize() HopRequest {
	out := r
	if out.MaxHops <= 0 {
		out.MaxHops = DefaultMaxHops
	}
	if out.Decay < 0 || out.Decay > 1 {
		out.Decay = DefaultHopDecay
	}
	if out.MinScore < 0 {
		out.MinScore = DefaultHopMinScore
	}
	if out.MaxResults <= 0 {
		out.MaxResults = DefaultHopResults
	}
	return out
}

// HopNode is a paragraph reached by graph traversal.
type HopNode struct {
	ParagraphResult
	HopScore float64  `json:"hop_score"`
	HopDepth int      `json:"hop_depth"`
	HopPath  []string `json:"hop_path"`
	HopType  HopType  `json:"hop_type"`
}

func (n *HopNode) Clone() RankedResult {
	out := *n
	out.HopPath = append([]string(nil), n.HopPath...)
	return &out
}

type HopResponse struct {
	SeedID      string     `json:"seed_id"`
	Found       bool       `json:"found"`
	Connected   []*HopNode `json:"connected"`
	TotalFound  int        `json:"total_found"`
	MaxHopsUsed int        `json:"max_hops_used"`
	Error       string     `json:"error,omitempty"`
	Hint        string     `json:"hint,omitempty"`
	Warnings    []string   `json:"warnings,omitempty"`
}

type GuideHopResponse struct {
	GuideSection     *Section    `json:"guide_section"`
	Found            bool        `json:"found"`
	DirectReferences []Paragraph `json:"direct_references"`
	Connected        []*HopNode  `json:"connected"`
	TotalFound       int         `json:"total_found"`
	MaxHopsUsed      int         `json:"max_hops_used"`
	Error            string      `json:"error,omitempty"`
	Hint             string      `json:"hint,omitempty"`
	Warnings         []string    `json:"warnings,omitempty"`
}
