package domain

// ScoringRule is an operator-defined risk factor evaluated per account after
// the built-in factors. Expression is a CEL expression over the account's
// feature variables returning bool (triggered/not) or a numeric score in
// [0,1]. The rule contributes score*Weight to the account risk and appends
// Reason when it triggers.
type ScoringRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	Expression string  `json:"expression"`
	Weight     float64 `json:"weight"`
	Reason     string  `json:"reason"`

	Enabled bool `json:"enabled"`
}
