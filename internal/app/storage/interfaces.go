package storage

import (
	"context"

	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/asset"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/hub"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/lending"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/reputation"
)

// HubStore persists registry state: contract registrations, roles, fee
// configuration and collateral whitelists.
type HubStore interface {
	SaveRegistration(ctx context.Context, reg hub.Registration) (hub.Registration, error)
	GetRegistration(ctx context.Context, name string) (hub.Registration, error)
	ListRegistrations(ctx context.Context) ([]hub.Registration, error)

	SaveSystemConfig(ctx context.Context, cfg hub.SystemConfig) (hub.SystemConfig, error)
	GetSystemConfig(ctx context.Context) (hub.SystemConfig, error)

	SaveFeeSchedule(ctx context.Context, schedule hub.FeeSchedule) (hub.FeeSchedule, error)
	GetFeeSchedule(ctx context.Context, feeToken string) (hub.FeeSchedule, error)

	GrantRole(ctx context.Context, role hub.Role, account string) error
	RevokeRole(ctx context.Context, role hub.Role, account string) error
	HasRole(ctx context.Context, role hub.Role, account string) (bool, error)

	SaveWhitelistedCollateral(ctx context.Context, entry hub.WhitelistedCollateral) error
	IsWhitelistedCollateral(ctx context.Context, tokenContract string) (bool, error)

	CreateEvaluatorRecord(ctx context.Context, rec hub.EvaluatorRecord) (hub.EvaluatorRecord, error)
	ListEvaluatorRecords(ctx context.Context, account string) ([]hub.EvaluatorRecord, error)
}

// AssetStore persists asset requests, appointments and evaluations, indexed
// so sibling cascades can enumerate by parent asset deterministically.
type AssetStore interface {
	CreateAssetRequest(ctx context.Context, req asset.Request) (asset.Request, error)
	UpdateAssetRequest(ctx context.Context, req asset.Request) (asset.Request, error)
	GetAssetRequest(ctx context.Context, id string) (asset.Request, error)
	ListAssetRequests(ctx context.Context, owner string) ([]asset.Request, error)

	CreateAppointment(ctx context.Context, apt asset.Appointment) (asset.Appointment, error)
	UpdateAppointment(ctx context.Context, apt asset.Appointment) (asset.Appointment, error)
	GetAppointment(ctx context.Context, id string) (asset.Appointment, error)
	ListAppointmentsByAsset(ctx context.Context, assetID string) ([]asset.Appointment, error)

	CreateEvaluation(ctx context.Context, eval asset.Evaluation) (asset.Evaluation, error)
	UpdateEvaluation(ctx context.Context, eval asset.Evaluation) (asset.Evaluation, error)
	GetEvaluation(ctx context.Context, id string) (asset.Evaluation, error)
	ListEvaluationsByAsset(ctx context.Context, assetID string) ([]asset.Evaluation, error)
}

// LendingStore persists collaterals, offers and recorded loan contracts.
type LendingStore interface {
	CreateCollateral(ctx context.Context, col lending.Collateral) (lending.Collateral, error)
	UpdateCollateral(ctx context.Context, col lending.Collateral) (lending.Collateral, error)
	GetCollateral(ctx context.Context, id string) (lending.Collateral, error)
	ListCollaterals(ctx context.Context, owner string) ([]lending.Collateral, error)

	CreateOffer(ctx context.Context, offer lending.Offer) (lending.Offer, error)
	UpdateOffer(ctx context.Context, offer lending.Offer) (lending.Offer, error)
	GetOffer(ctx context.Context, id string) (lending.Offer, error)
	ListOffersByCollateral(ctx context.Context, collateralID string) ([]lending.Offer, error)

	CreateLoanContract(ctx context.Context, lc lending.LoanContract) (lending.LoanContract, error)
	GetLoanContract(ctx context.Context, id string) (lending.LoanContract, error)
	ListLoanContracts(ctx context.Context, collateralID string) ([]lending.LoanContract, error)
}

// ReputationStore persists per-account scores and activity records.
type ReputationStore interface {
	GetScore(ctx context.Context, account string) (reputation.Score, error)
	SaveScore(ctx context.Context, score reputation.Score) (reputation.Score, error)
	CreateActivity(ctx context.Context, act reputation.Activity) (reputation.Activity, error)
	ListActivities(ctx context.Context, account string) ([]reputation.Activity, error)
}
