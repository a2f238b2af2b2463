// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/asset"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/hub"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/lending"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/reputation"
	"github.com/DFY-Network/pawnshop_layer/internal/app/storage"
)

// Store is the in-memory persistence layer.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	registrations    map[string]hub.Registration
	systemConfig     hub.SystemConfig
	hasSystemConfig  bool
	feeSchedules     map[string]hub.FeeSchedule
	roles            map[string]bool // role|account
	whitelist        map[string]hub.WhitelistedCollateral
	evaluatorRecords []hub.EvaluatorRecord

	assetRequests map[string]asset.Request
	appointments  map[string]asset.Appointment
	aptsByAsset   map[string][]string
	evaluations   map[string]asset.Evaluation
	evalsByAsset  map[string][]string

	collaterals   map[string]lending.Collateral
	offers        map[string]lending.Offer
	offersByCol   map[string][]string
	loanContracts map[string]lending.LoanContract

	scores     map[string]reputation.Score
	activities map[string][]reputation.Activity
}

var _ storage.HubStore = (*Store)(nil)
var _ storage.AssetStore = (*Store)(nil)
var _ storage.LendingStore = (*Store)(nil)
var _ storage.ReputationStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:        1,
		registrations: make(map[string]hub.Registration),
		feeSchedules:  make(map[string]hub.FeeSchedule),
		roles:         make(map[string]bool),
		whitelist:     make(map[string]hub.WhitelistedCollateral),
		assetRequests: make(map[string]asset.Request),
		appointments:  make(map[string]asset.Appointment),
		aptsByAsset:   make(map[string][]string),
		evaluations:   make(map[string]asset.Evaluation),
		evalsByAsset:  make(map[string][]string),
		collaterals:   make(map[string]lending.Collateral),
		offers:        make(map[string]lending.Offer),
		offersByCol:   make(map[string][]string),
		loanContracts: make(map[string]lending.LoanContract),
		scores:        make(map[string]reputation.Score),
		activities:    make(map[string][]reputation.Activity),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return strconv.FormatInt(id, 10)
}

func roleKey(role hub.Role, account string) string {
	return string(role) + "|" + strings.ToLower(account)
}

// HubStore implementation ------------------------------------------------------

func (s *Store) SaveRegistration(_ context.Context, reg hub.Registration) (hub.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg.UpdatedAt = time.Now().UTC()
	s.registrations[reg.Name] = reg
	return reg, nil
}

func (s *Store) GetRegistration(_ context.Context, name string) (hub.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.registrations[name]
	if !ok {
		return hub.Registration{}, fmt.Errorf("%w: registration %s", storage.ErrNotFound, name)
	}
	return reg, nil
}

func (s *Store) ListRegistrations(_ context.Context) ([]hub.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]hub.Registration, 0, len(s.registrations))
	for _, reg := range s.registrations {
		result = append(result, reg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) SaveSystemConfig(_ context.Context, cfg hub.SystemConfig) (hub.SystemConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg.UpdatedAt = time.Now().UTC()
	s.systemConfig = cfg
	s.hasSystemConfig = true
	return cfg, nil
}

func (s *Store) GetSystemConfig(_ context.Context) (hub.SystemConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasSystemConfig {
		return hub.SystemConfig{}, fmt.Errorf("%w: system config", storage.ErrNotFound)
	}
	return s.systemConfig, nil
}

func (s *Store) SaveFeeSchedule(_ context.Context, schedule hub.FeeSchedule) (hub.FeeSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule.UpdatedAt = time.Now().UTC()
	s.feeSchedules[strings.ToLower(schedule.FeeToken)] = schedule
	return schedule, nil
}

func (s *Store) GetFeeSchedule(_ context.Context, feeToken string) (hub.FeeSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedule, ok := s.feeSchedules[strings.ToLower(feeToken)]
	if !ok {
		return hub.FeeSchedule{}, fmt.Errorf("%w: fee schedule for token %s", storage.ErrNotFound, feeToken)
	}
	return schedule, nil
}

func (s *Store) GrantRole(_ context.Context, role hub.Role, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[roleKey(role, account)] = true
	return nil
}

func (s *Store) RevokeRole(_ context.Context, role hub.Role, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, roleKey(role, account))
	return nil
}

func (s *Store) HasRole(_ context.Context, role hub.Role, account string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles[roleKey(role, account)], nil
}

func (s *Store) SaveWhitelistedCollateral(_ context.Context, entry hub.WhitelistedCollateral) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}
	s.whitelist[strings.ToLower(entry.TokenContract)] = entry
	return nil
}

func (s *Store) IsWhitelistedCollateral(_ context.Context, tokenContract string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.whitelist[strings.ToLower(tokenContract)]
	return ok, nil
}

func (s *Store) CreateEvaluatorRecord(_ context.Context, rec hub.EvaluatorRecord) (hub.EvaluatorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	}
	rec.CreatedAt = time.Now().UTC()
	s.evaluatorRecords = append(s.evaluatorRecords, rec)
	return rec, nil
}

func (s *Store) ListEvaluatorRecords(_ context.Context, account string) ([]hub.EvaluatorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]hub.EvaluatorRecord, 0)
	for _, rec := range s.evaluatorRecords {
		if account == "" || strings.EqualFold(rec.Account, account) {
			result = append(result, rec)
		}
	}
	return result, nil
}

// AssetStore implementation ----------------------------------------------------

func (s *Store) CreateAssetRequest(_ context.Context, req asset.Request) (asset.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		req.ID = s.nextIDLocked()
	} else if _, exists := s.assetRequests[req.ID]; exists {
		return asset.Request{}, fmt.Errorf("asset request %s already exists", req.ID)
	}

	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	s.assetRequests[req.ID] = req
	return req, nil
}

func (s *Store) UpdateAssetRequest(_ context.Context, req asset.Request) (asset.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.assetRequests[req.ID]
	if !ok {
		return asset.Request{}, fmt.Errorf("%w: asset request %s", storage.ErrNotFound, req.ID)
	}

	req.CreatedAt = original.CreatedAt
	req.UpdatedAt = time.Now().UTC()

	s.assetRequests[req.ID] = req
	return req, nil
}

func (s *Store) GetAssetRequest(_ context.Context, id string) (asset.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.assetRequests[id]
	if !ok {
		return asset.Request{}, fmt.Errorf("%w: asset request %s", storage.ErrNotFound, id)
	}
	return req, nil
}

func (s *Store) ListAssetRequests(_ context.Context, owner string) ([]asset.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]asset.Request, 0)
	for _, req := range s.assetRequests {
		if owner == "" || strings.EqualFold(req.Owner, owner) {
			result = append(result, req)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) CreateAppointment(_ context.Context, apt asset.Appointment) (asset.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if apt.ID == "" {
		apt.ID = s.nextIDLocked()
	} else if _, exists := s.appointments[apt.ID]; exists {
		return asset.Appointment{}, fmt.Errorf("appointment %s already exists", apt.ID)
	}

	now := time.Now().UTC()
	apt.CreatedAt = now
	apt.UpdatedAt = now

	s.appointments[apt.ID] = apt
	s.aptsByAsset[apt.AssetID] = append(s.aptsByAsset[apt.AssetID], apt.ID)
	return apt, nil
}

func (s *Store) UpdateAppointment(_ context.Context, apt asset.Appointment) (asset.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.appointments[apt.ID]
	if !ok {
		return asset.Appointment{}, fmt.Errorf("%w: appointment %s", storage.ErrNotFound, apt.ID)
	}

	apt.CreatedAt = original.CreatedAt
	apt.UpdatedAt = time.Now().UTC()

	s.appointments[apt.ID] = apt
	return apt, nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (asset.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apt, ok := s.appointments[id]
	if !ok {
		return asset.Appointment{}, fmt.Errorf("%w: appointment %s", storage.ErrNotFound, id)
	}
	return apt, nil
}

func (s *Store) ListAppointmentsByAsset(_ context.Context, assetID string) ([]asset.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.aptsByAsset[assetID]
	result := make([]asset.Appointment, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.appointments[id])
	}
	return result, nil
}

func (s *Store) CreateEvaluation(_ context.Context, eval asset.Evaluation) (asset.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if eval.ID == "" {
		eval.ID = s.nextIDLocked()
	} else if _, exists := s.evaluations[eval.ID]; exists {
		return asset.Evaluation{}, fmt.Errorf("evaluation %s already exists", eval.ID)
	}

	now := time.Now().UTC()
	eval.CreatedAt = now
	eval.UpdatedAt = now

	s.evaluations[eval.ID] = eval
	s.evalsByAsset[eval.AssetID] = append(s.evalsByAsset[eval.AssetID], eval.ID)
	return eval, nil
}

func (s *Store) UpdateEvaluation(_ context.Context, eval asset.Evaluation) (asset.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.evaluations[eval.ID]
	if !ok {
		return asset.Evaluation{}, fmt.Errorf("%w: evaluation %s", storage.ErrNotFound, eval.ID)
	}

	eval.CreatedAt = original.CreatedAt
	eval.UpdatedAt = time.Now().UTC()

	s.evaluations[eval.ID] = eval
	return eval, nil
}

func (s *Store) GetEvaluation(_ context.Context, id string) (asset.Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eval, ok := s.evaluations[id]
	if !ok {
		return asset.Evaluation{}, fmt.Errorf("%w: evaluation %s", storage.ErrNotFound, id)
	}
	return eval, nil
}

func (s *Store) ListEvaluationsByAsset(_ context.Context, assetID string) ([]asset.Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.evalsByAsset[assetID]
	result := make([]asset.Evaluation, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.evaluations[id])
	}
	return result, nil
}

// LendingStore implementation --------------------------------------------------

func (s *Store) CreateCollateral(_ context.Context, col lending.Collateral) (lending.Collateral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col.ID == "" {
		col.ID = s.nextIDLocked()
	} else if _, exists := s.collaterals[col.ID]; exists {
		return lending.Collateral{}, fmt.Errorf("collateral %s already exists", col.ID)
	}

	now := time.Now().UTC()
	col.CreatedAt = now
	col.UpdatedAt = now

	s.collaterals[col.ID] = col
	return col, nil
}

func (s *Store) UpdateCollateral(_ context.Context, col lending.Collateral) (lending.Collateral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.collaterals[col.ID]
	if !ok {
		return lending.Collateral{}, fmt.Errorf("%w: collateral %s", storage.ErrNotFound, col.ID)
	}

	col.CreatedAt = original.CreatedAt
	col.UpdatedAt = time.Now().UTC()

	s.collaterals[col.ID] = col
	return col, nil
}

func (s *Store) GetCollateral(_ context.Context, id string) (lending.Collateral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collaterals[id]
	if !ok {
		return lending.Collateral{}, fmt.Errorf("%w: collateral %s", storage.ErrNotFound, id)
	}
	return col, nil
}

func (s *Store) ListCollaterals(_ context.Context, owner string) ([]lending.Collateral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]lending.Collateral, 0)
	for _, col := range s.collaterals {
		if owner == "" || strings.EqualFold(col.Owner, owner) {
			result = append(result, col)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) CreateOffer(_ context.Context, offer lending.Offer) (lending.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offer.ID == "" {
		offer.ID = s.nextIDLocked()
	} else if _, exists := s.offers[offer.ID]; exists {
		return lending.Offer{}, fmt.Errorf("offer %s already exists", offer.ID)
	}

	now := time.Now().UTC()
	offer.CreatedAt = now
	offer.UpdatedAt = now

	s.offers[offer.ID] = offer
	s.offersByCol[offer.CollateralID] = append(s.offersByCol[offer.CollateralID], offer.ID)
	return offer, nil
}

func (s *Store) UpdateOffer(_ context.Context, offer lending.Offer) (lending.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.offers[offer.ID]
	if !ok {
		return lending.Offer{}, fmt.Errorf("%w: offer %s", storage.ErrNotFound, offer.ID)
	}

	offer.CreatedAt = original.CreatedAt
	offer.UpdatedAt = time.Now().UTC()

	s.offers[offer.ID] = offer
	return offer, nil
}

func (s *Store) GetOffer(_ context.Context, id string) (lending.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offer, ok := s.offers[id]
	if !ok {
		return lending.Offer{}, fmt.Errorf("%w: offer %s", storage.ErrNotFound, id)
	}
	return offer, nil
}

func (s *Store) ListOffersByCollateral(_ context.Context, collateralID string) ([]lending.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.offersByCol[collateralID]
	result := make([]lending.Offer, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.offers[id])
	}
	return result, nil
}

func (s *Store) CreateLoanContract(_ context.Context, lc lending.LoanContract) (lending.LoanContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lc.ID == "" {
		lc.ID = s.nextIDLocked()
	} else if _, exists := s.loanContracts[lc.ID]; exists {
		return lending.LoanContract{}, fmt.Errorf("loan contract %s already exists", lc.ID)
	}

	lc.CreatedAt = time.Now().UTC()
	s.loanContracts[lc.ID] = lc
	return lc, nil
}

func (s *Store) GetLoanContract(_ context.Context, id string) (lending.LoanContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lc, ok := s.loanContracts[id]
	if !ok {
		return lending.LoanContract{}, fmt.Errorf("%w: loan contract %s", storage.ErrNotFound, id)
	}
	return lc, nil
}

func (s *Store) ListLoanContracts(_ context.Context, collateralID string) ([]lending.LoanContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]lending.LoanContract, 0)
	for _, lc := range s.loanContracts {
		if collateralID == "" || lc.CollateralID == collateralID {
			result = append(result, lc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ReputationStore implementation -----------------------------------------------

func (s *Store) GetScore(_ context.Context, account string) (reputation.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	score, ok := s.scores[strings.ToLower(account)]
	if !ok {
		return reputation.Score{Account: account}, nil
	}
	return score, nil
}

func (s *Store) SaveScore(_ context.Context, score reputation.Score) (reputation.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	score.UpdatedAt = time.Now().UTC()
	s.scores[strings.ToLower(score.Account)] = score
	return score, nil
}

func (s *Store) CreateActivity(_ context.Context, act reputation.Activity) (reputation.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if act.ID == "" {
		act.ID = s.nextIDLocked()
	}
	act.CreatedAt = time.Now().UTC()

	key := strings.ToLower(act.Account)
	s.activities[key] = append(s.activities[key], act)
	return act, nil
}

func (s *Store) ListActivities(_ context.Context, account string) ([]reputation.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acts := s.activities[strings.ToLower(account)]
	result := make([]reputation.Activity, len(acts))
	copy(result, acts)
	return result, nil
}
