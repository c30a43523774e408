package domain

type Role string

const (
	RolePrimary    Role = "primary"
	RoleSupporting Role = "supporting"
	RoleContext    Role = "context"
)

// Roles lists roles in presentation order.
var Roles = []Role{RolePrimary, RoleSupporting, RoleContext}

// ParseRole returns the role, falling back to primary for unknown input.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleSupporting:
		return RoleSupporting
	case RoleContext:
		return RoleContext
	default:
		return RolePrimary
	}
}

type ContextRequest struct {
	Results     []RankedResult
	Query       string
	MaxTokens   int
	Roles       map[string]Role
	GroupByRole bool
}

const DefaultContextTokens = 8000

type AssembledContext struct {
	XML                  string       `json:"xml"`
	IncludedCount        int          `json:"included_count"`
	ExcludedCount        int          `json:"excluded_count"`
	TotalTokensEstimated int          `json:"total_tokens_estimated"`
	RoleCounts           map[Role]int `json:"role_counts"`
}
