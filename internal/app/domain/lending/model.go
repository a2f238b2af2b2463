// Package lending defines the collateralized lending domain model: pledged
// collateral, competing loan offers and the loan contract recorded when an
// offer is accepted.
package lending

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollateralStatus is the lifecycle status of pledged collateral.
type CollateralStatus string

const (
	CollateralStatusOpen      CollateralStatus = "open"
	CollateralStatusDoing     CollateralStatus = "doing"
	CollateralStatusCompleted CollateralStatus = "completed"
	CollateralStatusCancel    CollateralStatus = "cancel"
)

// DurationType qualifies a loan duration quantity.
type DurationType string

const (
	DurationWeek  DurationType = "week"
	DurationMonth DurationType = "month"
)

// Collateral is a pledged token held by the lending engine as loan security.
// Custody of the token belongs to the engine for exactly the open and doing
// states; it is released exactly once, to the owner on cancel or to the
// settlement path on completion.
type Collateral struct {
	ID                 string
	Owner              string
	TokenContract      string
	TokenID            string
	TokenStandard      string
	TokenQuantity      int64
	ExpectedLoanAmount decimal.Decimal
	LoanAsset          string
	DurationQty        int64
	DurationType       DurationType
	RepaymentCycleType DurationType
	Status             CollateralStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OfferStatus is the lifecycle status of a loan offer.
type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusCompleted OfferStatus = "completed"
	OfferStatusCancel    OfferStatus = "cancel"
)

// Offer is a lender's proposed loan terms against a specific collateral. No
// principal moves while an offer is pending; DurationDeadline is advisory.
type Offer struct {
	ID                 string
	CollateralID       string
	Lender             string
	RepaymentAsset     string
	LoanAmount         decimal.Decimal
	InterestRate       decimal.Decimal
	DurationDeadline   time.Time
	LoanDurationType   DurationType
	RepaymentCycleType DurationType
	Status             OfferStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Terms captures the agreed loan conditions at acceptance time.
type Terms struct {
	Borrower           string
	Lender             string
	LoanAsset          string
	LoanAmount         decimal.Decimal
	RepaymentAsset     string
	InterestRate       decimal.Decimal
	ExchangeRate       decimal.Decimal
	LoanDurationType   DurationType
	RepaymentCycleType DurationType
}

// LoanContract records the accepted offer for a collateral. Repayment and
// liquidation settle outside the lending engine.
type LoanContract struct {
	ID           string
	CollateralID string
	OfferID      string
	Terms        Terms
	CreatedAt    time.Time
}
