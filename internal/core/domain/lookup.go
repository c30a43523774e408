package domain

// Resolution is the outcome of resolving an id or human reference.
type Resolution struct {
	Identifier        string      `json:"identifier"`
	Found             bool        `json:"found"`
	Paragraph         *Paragraph  `json:"paragraph,omitempty"`
	Section           *Section    `json:"section,omitempty"`
	AdditionalMatches []Paragraph `json:"additional_matches,omitempty"`
	Error             string      `json:"error,omitempty"`
	Hint              string      `json:"hint,omitempty"`
}

// ID returns the resolved internal id or "".
func (r Resolution) ID() string {
	switch {
	case r.Paragraph != nil:
		return r.Paragraph.ID
	case r.Section != nil:
		return r.Section.ID
	default:
		return ""
	}
}

type ParagraphLookup struct {
	Resolution
	Related  []RelatedRecord `json:"related"`
	Warnings []string        `json:"warnings,omitempty"`
}

type StandardList struct {
	Standards      []Standard `json:"standards"`
	TotalStandards int        `json:"total_standards"`
	Error          string     `json:"error,omitempty"`
}

type GuideList struct {
	Guides      []Guide `json:"guides"`
	TotalGuides int     `json:"total_guides"`
	Error       string  `json:"error,omitempty"`
}

// TableCount is a row count for one store table.
type TableCount struct {
	RowCount int64  `json:"row_count"`
	Error    string `json:"error,omitempty"`
}

type StoreStatus struct {
	Connected bool                  `json:"connected"`
	Tables    map[string]TableCount `json:"tables"`
	Error     string                `json:"error,omitempty"`
}

type KBStatus struct {
	Store             StoreStatus `json:"store"`
	GraphBackend      string      `json:"graph_backend"`
	Vectors           StoreStatus `json:"vectors"`
	EmbedderAvailable bool        `json:"embedder_available"`
	RerankerAvailable bool        `json:"reranker_available"`
}

type TraceNode struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Label          string `json:"label,omitempty"`
	ContentPreview string `json:"content_preview,omitempty"`
	Error          string `json:"error,omitempty"`
}

type TraceHop struct {
	Depth         int     `json:"depth"`
	EdgeType      string  `json:"edge_type"`
	FromID        string  `json:"from_id"`
	ToID          string  `json:"to_id"`
	Weight        float64 `json:"weight,omitempty"`
	HopType       HopType `json:"hop_type,omitempty"`
	TargetLabel   string  `json:"target_label"`
	TargetPreview string  `json:"target_content_preview"`
}

type HopTrace struct {
	StartNode            TraceNode  `json:"start_node"`
	Hops                 []TraceHop `json:"hops"`
	TotalNodesDiscovered int        `json:"total_nodes_discovered"`
	MaxDepthReached      int        `json:"max_depth_reached"`
	Warnings             []string   `json:"warnings,omitempty"`
}

type DebugSearch struct {
	Query          string         `json:"query"`
	ExpandedQuery  string         `json:"expanded_query"`
	KeywordResults []RankedResult `json:"keyword_results"`
	VectorResults  []RankedResult `json:"vector_results"`
	RRFFused       []RankedResult `json:"rrf_fused"`
	Reranked       []RankedResult `json:"reranked"`
	Final          []RankedResult `json:"final"`
	Warnings       []string       `json:"warnings"`
}
