// Package domain defines the core interfaces and types for Talon.
package domain

import (
	"time"
)

// AccountType classifies the holder of an account.
type AccountType string

const (
	AccountPersonal     AccountType = "personal"
	AccountBusiness     AccountType = "business"
	AccountExchange     AccountType = "exchange"
	AccountMoneyService AccountType = "money_service"
	AccountUnknown      AccountType = "unknown"
)

// UnknownJurisdiction is the sentinel country code for accounts whose
// jurisdiction could not be established during onboarding.
const UnknownJurisdiction = "unknown-jurisdiction"

// Account is an account in the batch snapshot. Accounts are created once per
// batch from the caller's source of record and never mutated afterwards.
type Account struct {
	ID        string      `json:"id"`
	Type      AccountType `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`

	// Country is the ISO country code, or UnknownJurisdiction.
	Country string `json:"country"`

	// ExistingRiskScore carries a prior assessment in [0,1], if one exists.
	ExistingRiskScore *float64 `json:"existingRiskScore,omitempty"`
}

// AgeDays returns the account age in whole days relative to now.
func (a *Account) AgeDays(now time.Time) int {
	return int(now.Sub(a.CreatedAt).Hours() / 24)
}
