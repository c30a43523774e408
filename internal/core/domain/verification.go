package domain

const (
	EntityThreshold   = 0.80
	CitationThreshold = 0.75
	RelationThreshold = 0.70
)

type EntityDetail struct {
	Entity   string   `json:"entity"`
	Grounded bool     `json:"grounded"`
	FoundIn  []string `json:"found_in"`
	Reason   string   `json:"reason,omitempty"`
}

type EntityCheck struct {
	Score         float64        `json:"score"`
	Passed        bool           `json:"passed"`
	Details       []EntityDetail `json:"details"`
	TotalEntities int            `json:"total_entities"`
	GroundedCount int            `json:"grounded_count"`
	Warnings      []string       `json:"warnings,omitempty"`
}

type Citation struct {
	ParagraphID  string `json:"paragraph_id"`
	ParagraphRef string `json:"paragraph_ref"`
	Claim        string `json:"claim"`
}

type CitationDetail struct {
	ParagraphID     string  `json:"paragraph_id"`
	ParagraphRef    string  `json:"paragraph_ref,omitempty"`
	Claim           string  `json:"claim"`
	Exists          bool    `json:"exists"`
	SupportsClaim   bool    `json:"supports_claim"`
	TermOverlap     float64 `json:"term_overlap"`
	MatchingTerms   int     `json:"matching_terms"`
	TotalClaimTerms int     `json:"total_claim_terms"`
	Reason          string  `json:"reason,omitempty"`
}

type CitationCheck struct {
	Score          float64          `json:"score"`
	Passed         bool             `json:"passed"`
	Details        []CitationDetail `json:"details"`
	TotalCitations int              `json:"total_citations"`
	VerifiedCount  int              `json:"verified_count"`
	Warnings       []string         `json:"warnings,omitempty"`
}

type Relation struct {
	Source       string `json:"source_paragraph"`
	Target       string `json:"target_paragraph"`
	RelationType string `json:"relation_type"`
}

type RelationDetail struct {
	Source       string `json:"source"`
	SourceID     string `json:"source_id,omitempty"`
	Target       string `json:"target"`
	TargetID     string `json:"target_id,omitempty"`
	RelationType string `json:"relation_type"`
	Preserved    bool   `json:"preserved"`
	Evidence     string `json:"evidence,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type RelationCheck struct {
	Score          float64          `json:"score"`
	Passed         bool             `json:"passed"`
	Details        []RelationDetail `json:"details"`
	TotalRelations int              `json:"total_relations"`
	PreservedCount int              `json:"preserved_count"`
	Warnings       []string         `json:"warnings,omitempty"`
}

type ContradictionSide struct {
	ID      string `json:"id"`
	Ref     string `json:"ref"`
	Excerpt string `json:"excerpt"`
}

type Contradiction struct {
	First    ContradictionSide `json:"paragraph_1"`
	Second   ContradictionSide `json:"paragraph_2"`
	Pattern  string            `json:"pattern"`
	Severity string            `json:"severity"`
}

type ContradictionCheck struct {
	ContradictionCount int             `json:"contradiction_count"`
	Passed             bool            `json:"passed"`
	Details            []Contradiction `json:"details"`
	TotalPairsChecked  int             `json:"total_pairs_checked"`
	Warnings           []string        `json:"warnings,omitempty"`
}
