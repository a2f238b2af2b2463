// Package asset defines the appraisal-side domain model: asset requests,
// evaluation appointments and the resulting evaluations.
package asset

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollectionStandard identifies the token standard of the collection an asset
// will be minted into.
type CollectionStandard string

const (
	StandardNFT721  CollectionStandard = "nft-721"
	StandardNFT1155 CollectionStandard = "nft-1155"
)

// RequestStatus is the lifecycle status of an asset request.
type RequestStatus string

const (
	RequestStatusOpen      RequestStatus = "open"
	RequestStatusAppointed RequestStatus = "appointed"
	RequestStatusEvaluated RequestStatus = "evaluated"
	RequestStatusMinted    RequestStatus = "minted"
)

// Request is a customer's registration of an off-ledger asset pending
// appraisal. Requests are never deleted; terminal state is minted.
type Request struct {
	ID                 string
	Owner              string
	ContentID          string
	CollectionAddress  string
	CollectionStandard CollectionStandard
	DeclaredValue      decimal.Decimal
	FeeToken           string
	ExternalID         string
	Status             RequestStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AppointmentStatus is the lifecycle status of an appointment.
type AppointmentStatus string

const (
	AppointmentStatusOpen      AppointmentStatus = "open"
	AppointmentStatusAccepted  AppointmentStatus = "accepted"
	AppointmentStatusRejected  AppointmentStatus = "rejected"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusEvaluated AppointmentStatus = "evaluated"
)

// Appointment is a scheduled appraisal engagement between an asset owner and
// one evaluator. The evaluation fee is held in escrow while the appointment is
// live; ScheduledTime is advisory and never enforced by the engine.
type Appointment struct {
	ID            string
	AssetID       string
	AssetOwner    string
	Evaluator     string
	FeeToken      string
	EvaluationFee decimal.Decimal
	EscrowID      string
	ScheduledTime time.Time
	Status        AppointmentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the appointment still holds the evaluation fee.
func (a Appointment) Active() bool {
	return a.Status == AppointmentStatusOpen || a.Status == AppointmentStatusAccepted
}

// EvaluationStatus is the lifecycle status of an evaluation.
type EvaluationStatus string

const (
	EvaluationStatusEvaluated EvaluationStatus = "evaluated"
	EvaluationStatusAccepted  EvaluationStatus = "accepted"
	EvaluationStatusRejected  EvaluationStatus = "rejected"
	EvaluationStatusMinted    EvaluationStatus = "minted"
)

// Evaluation is an evaluator's appraisal result for one appointment. Exactly
// one evaluation exists per appointment; an asset may accumulate several
// evaluations before the owner accepts one.
type Evaluation struct {
	ID             string
	AssetID        string
	AppointmentID  string
	Evaluator      string
	AppraisedValue decimal.Decimal
	ContentID      string
	MintingFee     decimal.Decimal
	FeeToken       string
	ExternalID     string
	EscrowID       string
	Status         EvaluationStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
