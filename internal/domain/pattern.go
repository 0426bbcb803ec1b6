package domain

// PatternType names a detected fraud pattern.
type PatternType string

const (
	// PatternLayering is rapid sequential fund movement through a chain of
	// accounts, the classic AML laundering signature.
	PatternLayering PatternType = "layering"

	// PatternMoneyMule is a fan-in topology: an account receiving from many
	// sources while sending to almost none.
	PatternMoneyMule PatternType = "money_mule"

	// PatternCircular is a closed transaction loop returning funds to their
	// origin.
	PatternCircular PatternType = "circular"
)

// FraudPattern is a candidate fraud pattern emitted by a detector.
// Members is never empty; the same account may appear in several patterns.
type FraudPattern struct {
	Type        PatternType `json:"type"`
	Confidence  float64     `json:"confidence"` // [0,1]
	Members     []string    `json:"members"`
	Description string      `json:"description"`
}

// Implicates reports whether the pattern includes the given account.
func (p *FraudPattern) Implicates(accountID string) bool {
	for _, m := range p.Members {
		if m == accountID {
			return true
		}
	}
	return false
}
