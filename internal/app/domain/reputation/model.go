// Package reputation defines the per-account reputation score model.
package reputation

import "time"

// Reason classifies an activity that earns reputation.
type Reason string

const (
	ReasonBorrowerCreateCollateral Reason = "borrower.create_collateral"
	ReasonBorrowerAcceptOffer      Reason = "borrower.accept_offer"
	ReasonLenderCreateOffer        Reason = "lender.create_offer"
	ReasonLenderOfferAccepted      Reason = "lender.offer_accepted"
	ReasonEvaluatorEvaluateAsset   Reason = "evaluator.evaluate_asset"
	ReasonEvaluatorMintNFT         Reason = "evaluator.mint_nft"
)

// Score is a per-account integer reputation score. It only ever increases
// under normal flow and is mutated solely by whitelisted callers.
type Score struct {
	Account   string
	Points    int64
	UpdatedAt time.Time
}

// Activity is one recorded reputation-earning event.
type Activity struct {
	ID        string
	Account   string
	Reason    Reason
	Caller    string
	CreatedAt time.Time
}
