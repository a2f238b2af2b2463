// Package evaluation implements the asset appraisal engine: asset requests,
// evaluator appointments, evaluation results and NFT minting, with every fee
// passing through escrow.
package evaluation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/asset"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/hub"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/reputation"
	"github.com/DFY-Network/pawnshop_layer/internal/app/escrow"
	"github.com/DFY-Network/pawnshop_layer/internal/app/events"
	"github.com/DFY-Network/pawnshop_layer/internal/app/ledger"
	"github.com/DFY-Network/pawnshop_layer/internal/app/storage"
	"github.com/DFY-Network/pawnshop_layer/pkg/logger"
)

// CallerName identifies this engine to the reputation tracker.
const CallerName = "evaluation"

// Registry is the slice of the hub the engine consults at call time: role
// checks and fee configuration. Results are never cached.
type Registry interface {
	HasRole(ctx context.Context, role hub.Role, account string) (bool, error)
	SystemConfig(ctx context.Context) (hub.SystemConfig, error)
	FeeSchedule(ctx context.Context, feeToken string) (hub.FeeSchedule, error)
}

// ReputationRecorder records reputation-earning activity. May be nil.
type ReputationRecorder interface {
	RecordActivity(ctx context.Context, caller, account string, reason reputation.Reason) (reputation.Score, error)
}

// Service is the appraisal engine. All state-changing operations serialize
// through one mutex so transitions observe a single global order.
type Service struct {
	store      storage.AssetStore
	registry   Registry
	escrow     *escrow.Manager
	nft        ledger.NonFungible
	bus        *events.Bus
	reputation ReputationRecorder
	log        *logger.Logger

	mu sync.Mutex
}

// New constructs the appraisal engine. bus and rep may be nil.
func New(store storage.AssetStore, registry Registry, esc *escrow.Manager, nft ledger.NonFungible, bus *events.Bus, rep ReputationRecorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("evaluation")
	}
	return &Service{
		store:      store,
		registry:   registry,
		escrow:     esc,
		nft:        nft,
		bus:        bus,
		reputation: rep,
		log:        log,
	}
}

// CreateAssetRequest registers an off-ledger asset for appraisal.
func (s *Service) CreateAssetRequest(ctx context.Context, owner, contentID, collectionAddress string, standard asset.CollectionStandard, declaredValue decimal.Decimal, feeToken string) (asset.Request, error) {
	owner = strings.TrimSpace(owner)
	contentID = strings.TrimSpace(contentID)
	collectionAddress = strings.TrimSpace(collectionAddress)
	feeToken = strings.TrimSpace(feeToken)

	if owner == "" || contentID == "" {
		return asset.Request{}, fmt.Errorf("owner and content id are required")
	}
	if collectionAddress == "" {
		return asset.Request{}, fmt.Errorf("collection address is required")
	}
	if standard != asset.StandardNFT721 && standard != asset.StandardNFT1155 {
		return asset.Request{}, fmt.Errorf("unknown collection standard %q", standard)
	}
	if feeToken == "" {
		return asset.Request{}, fmt.Errorf("fee token is required")
	}
	if declaredValue.IsNegative() {
		return asset.Request{}, fmt.Errorf("declared value must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.store.CreateAssetRequest(ctx, asset.Request{
		Owner:              owner,
		ContentID:          contentID,
		CollectionAddress:  collectionAddress,
		CollectionStandard: standard,
		DeclaredValue:      declaredValue,
		FeeToken:           feeToken,
		Status:             asset.RequestStatusOpen,
	})
	if err != nil {
		return asset.Request{}, err
	}

	s.emit(events.Record{
		EntityKind: events.KindAssetRequest,
		EntityID:   req.ID,
		NewState:   string(req.Status),
		Actor:      owner,
	})
	s.log.WithField("asset_id", req.ID).WithField("owner", owner).Info("asset request created")
	return req, nil
}

// GetAssetRequest returns one asset request.
func (s *Service) GetAssetRequest(ctx context.Context, id string) (asset.Request, error) {
	return s.store.GetAssetRequest(ctx, id)
}

// ListAssetRequests lists requests, optionally filtered by owner.
func (s *Service) ListAssetRequests(ctx context.Context, owner string) ([]asset.Request, error) {
	return s.store.ListAssetRequests(ctx, owner)
}

// CreateAppointment books an evaluator for an asset and pulls the evaluation
// fee into escrow. The first appointment flips the asset to appointed. The
// fee amount is read from the schedule for the asset's fee token at call
// time.
func (s *Service) CreateAppointment(ctx context.Context, caller, assetID, evaluator string, scheduledTime time.Time) (asset.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.store.GetAssetRequest(ctx, assetID)
	if err != nil {
		return asset.Appointment{}, err
	}
	if !strings.EqualFold(caller, req.Owner) {
		return asset.Appointment{}, fmt.Errorf("%w: only the asset owner may book an appointment", hub.ErrUnauthorized)
	}
	if req.Status != asset.RequestStatusOpen && req.Status != asset.RequestStatusAppointed {
		return asset.Appointment{}, fmt.Errorf("%w: asset %s is %s", hub.ErrInvalidState, assetID, req.Status)
	}

	evaluator = strings.TrimSpace(evaluator)
	if err := s.requireEvaluator(ctx, evaluator); err != nil {
		return asset.Appointment{}, err
	}

	schedule, err := s.registry.FeeSchedule(ctx, req.FeeToken)
	if err != nil {
		return asset.Appointment{}, err
	}

	// Hold before write: a failed fee pull must leave no appointment row
	// behind. The appointment ID is fixed up front so the hold links to it.
	aptID := uuid.NewString()
	hold, err := s.escrow.Hold(ctx, req.Owner, req.FeeToken, schedule.EvaluationFee, string(events.KindAppointment), aptID)
	if err != nil {
		return asset.Appointment{}, err
	}

	apt, err := s.store.CreateAppointment(ctx, asset.Appointment{
		ID:            aptID,
		AssetID:       req.ID,
		AssetOwner:    req.Owner,
		Evaluator:     evaluator,
		FeeToken:      req.FeeToken,
		EvaluationFee: schedule.EvaluationFee,
		EscrowID:      hold.ID,
		ScheduledTime: scheduledTime,
		Status:        asset.AppointmentStatusOpen,
	})
	if err != nil {
		if _, rerr := s.escrow.Refund(ctx, hold.ID); rerr != nil {
			s.log.WithError(rerr).Warnf("refund fee hold %s after failed appointment write", hold.ID)
		}
		return asset.Appointment{}, err
	}

	if req.Status == asset.RequestStatusOpen {
		req.Status = asset.RequestStatusAppointed
		if _, err := s.store.UpdateAssetRequest(ctx, req); err != nil {
			return asset.Appointment{}, err
		}
		s.emit(events.Record{
			EntityKind: events.KindAssetRequest,
			EntityID:   req.ID,
			NewState:   string(req.Status),
			Actor:      caller,
		})
	}

	s.emit(events.Record{
		EntityKind: events.KindAppointment,
		EntityID:   apt.ID,
		NewState:   string(apt.Status),
		Actor:      caller,
		Amounts: []events.Amount{{
			Token: apt.FeeToken,
			Value: apt.EvaluationFee,
			From:  req.Owner,
			To:    s.escrow.Account(),
		}},
	})
	s.log.WithField("appointment_id", apt.ID).
		WithField("asset_id", req.ID).
		WithField("evaluator", evaluator).
		Info("appointment created")
	return apt, nil
}

// AcceptAppointment lets the appointed evaluator confirm the engagement.
func (s *Service) AcceptAppointment(ctx context.Context, caller, appointmentID string) (asset.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return asset.Appointment{}, err
	}
	if !strings.EqualFold(caller, apt.Evaluator) {
		return asset.Appointment{}, fmt.Errorf("%w: only the appointed evaluator may accept", hub.ErrUnauthorized)
	}
	if err := s.requireEvaluator(ctx, caller); err != nil {
		return asset.Appointment{}, err
	}
	if apt.Status != asset.AppointmentStatusOpen {
		return asset.Appointment{}, fmt.Errorf("%w: appointment %s is %s", hub.ErrInvalidState, appointmentID, apt.Status)
	}

	apt.Status = asset.AppointmentStatusAccepted
	apt, err = s.store.UpdateAppointment(ctx, apt)
	if err != nil {
		return asset.Appointment{}, err
	}

	s.emit(events.Record{
		EntityKind: events.KindAppointment,
		EntityID:   apt.ID,
		NewState:   string(apt.Status),
		Actor:      caller,
	})
	return apt, nil
}

// RejectAppointment lets the appointed evaluator decline. The evaluation fee
// is refunded and the asset falls back to open when no live appointment
// remains.
func (s *Service) RejectAppointment(ctx context.Context, caller, appointmentID string) (asset.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return asset.Appointment{}, err
	}
	if !strings.EqualFold(caller, apt.Evaluator) {
		return asset.Appointment{}, fmt.Errorf("%w: only the appointed evaluator may reject", hub.ErrUnauthorized)
	}
	return s.closeAppointment(ctx, apt, asset.AppointmentStatusRejected, caller)
}

// CancelAppointment lets the asset owner withdraw a live appointment, with
// refund.
func (s *Service) CancelAppointment(ctx context.Context, caller, appointmentID string) (asset.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return asset.Appointment{}, err
	}
	if !strings.EqualFold(caller, apt.AssetOwner) {
		return asset.Appointment{}, fmt.Errorf("%w: only the asset owner may cancel", hub.ErrUnauthorized)
	}
	return s.closeAppointment(ctx, apt, asset.AppointmentStatusCancelled, caller)
}

// closeAppointment refunds the held fee, moves the appointment to a terminal
// status and lets the asset fall back to open when nothing live remains.
// Callers hold s.mu.
func (s *Service) closeAppointment(ctx context.Context, apt asset.Appointment, status asset.AppointmentStatus, actor string) (asset.Appointment, error) {
	if !apt.Active() {
		return asset.Appointment{}, fmt.Errorf("%w: appointment %s is %s", hub.ErrInvalidState, apt.ID, apt.Status)
	}

	hold, err := s.escrow.Refund(ctx, apt.EscrowID)
	if err != nil {
		return asset.Appointment{}, err
	}

	apt.Status = status
	apt, err = s.store.UpdateAppointment(ctx, apt)
	if err != nil {
		return asset.Appointment{}, err
	}

	s.emit(events.Record{
		EntityKind: events.KindAppointment,
		EntityID:   apt.ID,
		NewState:   string(apt.Status),
		Actor:      actor,
		Amounts: []events.Amount{{
			Token: hold.Token,
			Value: hold.Amount,
			From:  s.escrow.Account(),
			To:    hold.Payer,
		}},
	})

	if err := s.settleAssetAfterClosure(ctx, apt.AssetID, actor); err != nil {
		return asset.Appointment{}, err
	}
	s.log.WithField("appointment_id", apt.ID).Infof("appointment %s", status)
	return apt, nil
}

// settleAssetAfterClosure moves an appointed asset back to open when it has
// no live appointment left.
func (s *Service) settleAssetAfterClosure(ctx context.Context, assetID, actor string) error {
	req, err := s.store.GetAssetRequest(ctx, assetID)
	if err != nil {
		return err
	}
	if req.Status != asset.RequestStatusAppointed {
		return nil
	}

	apts, err := s.store.ListAppointmentsByAsset(ctx, assetID)
	if err != nil {
		return err
	}
	live := lo.Filter(apts, func(a asset.Appointment, _ int) bool { return a.Active() })
	if len(live) > 0 {
		return nil
	}

	req.Status = asset.RequestStatusOpen
	if _, err := s.store.UpdateAssetRequest(ctx, req); err != nil {
		return err
	}
	s.emit(events.Record{
		EntityKind: events.KindAssetRequest,
		EntityID:   req.ID,
		NewState:   string(req.Status),
		Actor:      actor,
	})
	return nil
}

// EvaluateAsset records the evaluator's appraisal for an accepted
// appointment. The held evaluation fee is released to the evaluator; the
// minting fee for the eventual acceptance is fixed from the schedule now.
func (s *Service) EvaluateAsset(ctx context.Context, caller, appointmentID string, appraisedValue decimal.Decimal, contentID string) (asset.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return asset.Evaluation{}, err
	}
	if !strings.EqualFold(caller, apt.Evaluator) {
		return asset.Evaluation{}, fmt.Errorf("%w: only the appointed evaluator may evaluate", hub.ErrUnauthorized)
	}
	if err := s.requireEvaluator(ctx, caller); err != nil {
		return asset.Evaluation{}, err
	}
	if apt.Status != asset.AppointmentStatusAccepted {
		return asset.Evaluation{}, fmt.Errorf("%w: appointment %s is %s", hub.ErrInvalidState, appointmentID, apt.Status)
	}
	if appraisedValue.Sign() <= 0 {
		return asset.Evaluation{}, fmt.Errorf("appraised value must be positive")
	}

	schedule, err := s.registry.FeeSchedule(ctx, apt.FeeToken)
	if err != nil {
		return asset.Evaluation{}, err
	}

	hold, err := s.escrow.Release(ctx, apt.EscrowID, apt.Evaluator)
	if err != nil {
		return asset.Evaluation{}, err
	}

	apt.Status = asset.AppointmentStatusEvaluated
	apt, err = s.store.UpdateAppointment(ctx, apt)
	if err != nil {
		return asset.Evaluation{}, err
	}

	eval, err := s.store.CreateEvaluation(ctx, asset.Evaluation{
		AssetID:        apt.AssetID,
		AppointmentID:  apt.ID,
		Evaluator:      apt.Evaluator,
		AppraisedValue: appraisedValue,
		ContentID:      strings.TrimSpace(contentID),
		MintingFee:     schedule.MintingFee,
		FeeToken:       apt.FeeToken,
		Status:         asset.EvaluationStatusEvaluated,
	})
	if err != nil {
		return asset.Evaluation{}, err
	}

	req, err := s.store.GetAssetRequest(ctx, apt.AssetID)
	if err != nil {
		return asset.Evaluation{}, err
	}
	if req.Status != asset.RequestStatusEvaluated {
		req.Status = asset.RequestStatusEvaluated
		if _, err := s.store.UpdateAssetRequest(ctx, req); err != nil {
			return asset.Evaluation{}, err
		}
		s.emit(events.Record{
			EntityKind: events.KindAssetRequest,
			EntityID:   req.ID,
			NewState:   string(req.Status),
			Actor:      caller,
		})
	}

	s.emit(events.Record{
		EntityKind: events.KindEvaluation,
		EntityID:   eval.ID,
		NewState:   string(eval.Status),
		Actor:      caller,
		Amounts: []events.Amount{{
			Token: hold.Token,
			Value: hold.Amount,
			From:  s.escrow.Account(),
			To:    apt.Evaluator,
		}},
	})
	s.recordReputation(ctx, apt.Evaluator, reputation.ReasonEvaluatorEvaluateAsset)
	s.log.WithField("evaluation_id", eval.ID).
		WithField("asset_id", apt.AssetID).
		WithField("appraised_value", appraisedValue.String()).
		Info("asset evaluated")
	return eval, nil
}

// AcceptEvaluation lets the asset owner accept one appraisal. The minting fee
// is pulled into escrow, rival evaluations are rejected and remaining live
// appointments are cancelled with refunds, all in the same step.
func (s *Service) AcceptEvaluation(ctx context.Context, caller, evaluationID string) (asset.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eval, err := s.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return asset.Evaluation{}, err
	}
	req, err := s.store.GetAssetRequest(ctx, eval.AssetID)
	if err != nil {
		return asset.Evaluation{}, err
	}
	if !strings.EqualFold(caller, req.Owner) {
		return asset.Evaluation{}, fmt.Errorf("%w: only the asset owner may accept an evaluation", hub.ErrUnauthorized)
	}
	if eval.Status != asset.EvaluationStatusEvaluated {
		return asset.Evaluation{}, fmt.Errorf("%w: evaluation %s is %s", hub.ErrInvalidState, evaluationID, eval.Status)
	}

	hold, err := s.escrow.Hold(ctx, req.Owner, eval.FeeToken, eval.MintingFee, string(events.KindEvaluation), eval.ID)
	if err != nil {
		return asset.Evaluation{}, err
	}

	eval.EscrowID = hold.ID
	eval.Status = asset.EvaluationStatusAccepted
	eval, err = s.store.UpdateEvaluation(ctx, eval)
	if err != nil {
		return asset.Evaluation{}, err
	}

	s.emit(events.Record{
		EntityKind: events.KindEvaluation,
		EntityID:   eval.ID,
		NewState:   string(eval.Status),
		Actor:      caller,
		Amounts: []events.Amount{{
			Token: hold.Token,
			Value: hold.Amount,
			From:  req.Owner,
			To:    s.escrow.Account(),
		}},
	})

	if err := s.rejectRivals(ctx, eval, caller); err != nil {
		return asset.Evaluation{}, err
	}

	s.log.WithField("evaluation_id", eval.ID).WithField("asset_id", eval.AssetID).Info("evaluation accepted")
	return eval, nil
}

// rejectRivals fans the acceptance out: every sibling evaluation still in
// evaluated state is rejected and every live sibling appointment is cancelled
// with its fee refunded. Callers hold s.mu.
func (s *Service) rejectRivals(ctx context.Context, accepted asset.Evaluation, actor string) error {
	evals, err := s.store.ListEvaluationsByAsset(ctx, accepted.AssetID)
	if err != nil {
		return err
	}
	rivals := lo.Filter(evals, func(e asset.Evaluation, _ int) bool {
		return e.ID != accepted.ID && e.Status == asset.EvaluationStatusEvaluated
	})
	for _, rival := range rivals {
		rival.Status = asset.EvaluationStatusRejected
		if _, err := s.store.UpdateEvaluation(ctx, rival); err != nil {
			return err
		}
		s.emit(events.Record{
			EntityKind: events.KindEvaluation,
			EntityID:   rival.ID,
			NewState:   string(rival.Status),
			Actor:      actor,
		})
	}

	apts, err := s.store.ListAppointmentsByAsset(ctx, accepted.AssetID)
	if err != nil {
		return err
	}
	live := lo.Filter(apts, func(a asset.Appointment, _ int) bool { return a.Active() })
	for _, apt := range live {
		hold, err := s.escrow.Refund(ctx, apt.EscrowID)
		if err != nil {
			return err
		}
		apt.Status = asset.AppointmentStatusCancelled
		if _, err := s.store.UpdateAppointment(ctx, apt); err != nil {
			return err
		}
		s.emit(events.Record{
			EntityKind: events.KindAppointment,
			EntityID:   apt.ID,
			NewState:   string(apt.Status),
			Actor:      actor,
			Amounts: []events.Amount{{
				Token: hold.Token,
				Value: hold.Amount,
				From:  s.escrow.Account(),
				To:    hold.Payer,
			}},
		})
	}
	return nil
}

// RejectEvaluation lets the asset owner decline an appraisal. The asset falls
// back to open when no other appraisal or live appointment remains.
func (s *Service) RejectEvaluation(ctx context.Context, caller, evaluationID string) (asset.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eval, err := s.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return asset.Evaluation{}, err
	}
	req, err := s.store.GetAssetRequest(ctx, eval.AssetID)
	if err != nil {
		return asset.Evaluation{}, err
	}
	if !strings.EqualFold(caller, req.Owner) {
		return asset.Evaluation{}, fmt.Errorf("%w: only the asset owner may reject an evaluation", hub.ErrUnauthorized)
	}
	if eval.Status != asset.EvaluationStatusEvaluated {
		return asset.Evaluation{}, fmt.Errorf("%w: evaluation %s is %s", hub.ErrInvalidState, evaluationID, eval.Status)
	}

	eval.Status = asset.EvaluationStatusRejected
	eval, err = s.store.UpdateEvaluation(ctx, eval)
	if err != nil {
		return asset.Evaluation{}, err
	}
	s.emit(events.Record{
		EntityKind: events.KindEvaluation,
		EntityID:   eval.ID,
		NewState:   string(eval.Status),
		Actor:      caller,
	})

	if req.Status == asset.RequestStatusEvaluated {
		evals, err := s.store.ListEvaluationsByAsset(ctx, eval.AssetID)
		if err != nil {
			return asset.Evaluation{}, err
		}
		pendingAppraisals := lo.Filter(evals, func(e asset.Evaluation, _ int) bool {
			return e.Status == asset.EvaluationStatusEvaluated || e.Status == asset.EvaluationStatusAccepted
		})
		if len(pendingAppraisals) == 0 {
			apts, err := s.store.ListAppointmentsByAsset(ctx, eval.AssetID)
			if err != nil {
				return asset.Evaluation{}, err
			}
			live := lo.Filter(apts, func(a asset.Appointment, _ int) bool { return a.Active() })
			next := asset.RequestStatusOpen
			if len(live) > 0 {
				next = asset.RequestStatusAppointed
			}
			req.Status = next
			if _, err := s.store.UpdateAssetRequest(ctx, req); err != nil {
				return asset.Evaluation{}, err
			}
			s.emit(events.Record{
				EntityKind: events.KindAssetRequest,
				EntityID:   req.ID,
				NewState:   string(req.Status),
				Actor:      caller,
			})
		}
	}

	s.log.WithField("evaluation_id", eval.ID).Info("evaluation rejected")
	return eval, nil
}

// CreateNftToken mints the appraisal NFT for an accepted evaluation into the
// asset's collection, owned by the asset owner. The held minting fee settles
// to the hub fee wallet; the asset reaches its terminal minted state.
func (s *Service) CreateNftToken(ctx context.Context, caller, evaluationID, metadataRef string) (asset.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eval, err := s.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return asset.Evaluation{}, err
	}
	if !strings.EqualFold(caller, eval.Evaluator) {
		return asset.Evaluation{}, fmt.Errorf("%w: only the accepting evaluator may mint", hub.ErrUnauthorized)
	}
	if err := s.requireEvaluator(ctx, caller); err != nil {
		return asset.Evaluation{}, err
	}
	if eval.Status != asset.EvaluationStatusAccepted {
		return asset.Evaluation{}, fmt.Errorf("%w: evaluation %s is %s", hub.ErrInvalidState, evaluationID, eval.Status)
	}

	req, err := s.store.GetAssetRequest(ctx, eval.AssetID)
	if err != nil {
		return asset.Evaluation{}, err
	}

	cfg, err := s.registry.SystemConfig(ctx)
	if err != nil {
		return asset.Evaluation{}, err
	}

	if metadataRef = strings.TrimSpace(metadataRef); metadataRef == "" {
		metadataRef = eval.ContentID
	}
	tokenID, err := s.nft.Mint(ctx, req.CollectionAddress, req.Owner, metadataRef)
	if err != nil {
		return asset.Evaluation{}, err
	}

	hold, err := s.escrow.Release(ctx, eval.EscrowID, cfg.FeeWallet)
	if err != nil {
		return asset.Evaluation{}, err
	}

	eval.ExternalID = tokenID
	eval.Status = asset.EvaluationStatusMinted
	eval, err = s.store.UpdateEvaluation(ctx, eval)
	if err != nil {
		return asset.Evaluation{}, err
	}

	req.ExternalID = tokenID
	req.Status = asset.RequestStatusMinted
	if _, err := s.store.UpdateAssetRequest(ctx, req); err != nil {
		return asset.Evaluation{}, err
	}

	s.emit(events.Record{
		EntityKind: events.KindEvaluation,
		EntityID:   eval.ID,
		NewState:   string(eval.Status),
		Actor:      caller,
		Amounts: []events.Amount{{
			Token: hold.Token,
			Value: hold.Amount,
			From:  s.escrow.Account(),
			To:    cfg.FeeWallet,
		}},
	})
	s.emit(events.Record{
		EntityKind: events.KindAssetRequest,
		EntityID:   req.ID,
		NewState:   string(req.Status),
		Actor:      caller,
	})
	s.recordReputation(ctx, eval.Evaluator, reputation.ReasonEvaluatorMintNFT)
	s.log.WithField("evaluation_id", eval.ID).
		WithField("asset_id", req.ID).
		WithField("token_id", tokenID).
		Info("appraisal nft minted")
	return eval, nil
}

// GetAppointment returns one appointment.
func (s *Service) GetAppointment(ctx context.Context, id string) (asset.Appointment, error) {
	return s.store.GetAppointment(ctx, id)
}

// GetEvaluation returns one evaluation.
func (s *Service) GetEvaluation(ctx context.Context, id string) (asset.Evaluation, error) {
	return s.store.GetEvaluation(ctx, id)
}

// ListAppointments lists appointments for an asset.
func (s *Service) ListAppointments(ctx context.Context, assetID string) ([]asset.Appointment, error) {
	return s.store.ListAppointmentsByAsset(ctx, assetID)
}

// ListEvaluations lists evaluations for an asset.
func (s *Service) ListEvaluations(ctx context.Context, assetID string) ([]asset.Evaluation, error) {
	return s.store.ListEvaluationsByAsset(ctx, assetID)
}

// requireEvaluator confirms the account holds the evaluator capability at
// call time. Booking never freezes the role: a revoked evaluator cannot
// progress an appointment they already hold.
func (s *Service) requireEvaluator(ctx context.Context, account string) error {
	ok, err := s.registry.HasRole(ctx, hub.RoleEvaluator, account)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is not a registered evaluator", hub.ErrUnauthorized, account)
	}
	return nil
}

// recordReputation is best-effort: a reputation failure never unwinds a
// completed transition.
func (s *Service) recordReputation(ctx context.Context, account string, reason reputation.Reason) {
	if s.reputation == nil {
		return
	}
	if _, err := s.reputation.RecordActivity(ctx, CallerName, account, reason); err != nil {
		s.log.WithError(err).Warnf("record reputation %s for %s", reason, account)
	}
}

func (s *Service) emit(rec events.Record) {
	if s.bus != nil {
		s.bus.Emit(rec)
	}
}
