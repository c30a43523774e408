package toolkit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

type resultProbe struct {
	ID       string   `json:"id"`
	Heading  *string  `json:"heading"`
	HopScore *float64 `json:"hop_score"`
}

// decodeResults turns result objects produced by the search tools back into
// typed results. Guide sections are recognized by id prefix or a heading
// field, hop nodes by hop_score.
func decodeResults(items []json.RawMessage) ([]domain.RankedResult, error) {
	out := make([]domain.RankedResult, 0, len(items))
	for i, raw := range items {
		var probe resultProbe
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		result, err := decodeResult(raw, probe)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		out = append(out, result)
	}
	return out, nil
}

func decodeResult(raw json.RawMessage, probe resultProbe) (domain.RankedResult, error) {
	switch {
	case strings.HasPrefix(probe.ID, domain.SectionIDPrefix) || probe.Heading != nil:
		var s domain.SectionResult
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s.Tier == 0 {
			s.Tier = domain.TierGuide
		}
		return &s, nil
	case probe.HopScore != nil:
		var n domain.HopNode
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		if n.Tier == 0 {
			n.Tier = domain.TierStandard
		}
		return &n, nil
	default:
		var p domain.ParagraphResult
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.Tier == 0 {
			p.Tier = domain.TierStandard
		}
		return &p, nil
	}
}

func decodeRoles(raw map[string]string) map[string]domain.Role {
	out := make(map[string]domain.Role, len(raw))
	for id, role := range raw {
		out[id] = domain.ParseRole(strings.ToLower(strings.TrimSpace(role)))
	}
	return out
}
