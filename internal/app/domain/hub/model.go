// Package hub defines the shared registry model: system fee configuration,
// capability roles, contract registrations and collateral whitelists.
package hub

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is a capability flag granted by an administrator.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOperator  Role = "operator"
	RoleEvaluator Role = "evaluator"
)

// SystemConfig is the global fee configuration consulted by the engines at
// call time. It is never cached by callers, so a change takes effect for all
// subsequent operations but never retroactively.
type SystemConfig struct {
	FeeWallet string
	FeeToken  string
	UpdatedAt time.Time
}

// FeeSchedule is the per-fee-token evaluation and minting fee pair.
type FeeSchedule struct {
	FeeToken      string
	EvaluationFee decimal.Decimal
	MintingFee    decimal.Decimal
	UpdatedAt     time.Time
}

// Registration maps a logical contract name to its current address.
type Registration struct {
	Name      string
	Address   string
	Artifact  string
	UpdatedAt time.Time
}

// WhitelistedCollateral marks a token contract acceptable as loan security.
type WhitelistedCollateral struct {
	TokenContract string
	Standard      string
	AddedAt       time.Time
}

// EvaluatorStatus records the outcome of an evaluator registry decision.
type EvaluatorStatus string

const (
	EvaluatorAccepted  EvaluatorStatus = "accepted"
	EvaluatorCancelled EvaluatorStatus = "cancelled"
)

// EvaluatorRecord is the audit trail entry for evaluator grant/revoke
// decisions.
type EvaluatorRecord struct {
	ID        string
	Account   string
	Status    EvaluatorStatus
	CreatedAt time.Time
}
