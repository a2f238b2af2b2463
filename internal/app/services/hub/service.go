// Package hub implements the registry and access hub: contract registrations,
// system fee configuration, capability roles, collateral whitelists and the
// evaluator registry.
package hub

import (
	"context"
	"fmt"
	"strings"

	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/hub"
	"github.com/DFY-Network/pawnshop_layer/internal/app/events"
	"github.com/DFY-Network/pawnshop_layer/internal/app/storage"
	"github.com/DFY-Network/pawnshop_layer/pkg/logger"
)

// Authorizer answers role checks for the engines. The hub service implements
// it; tests substitute fakes.
type Authorizer interface {
	HasRole(ctx context.Context, role hub.Role, account string) (bool, error)
}

// Service manages the shared registry state consulted by every engine.
type Service struct {
	store storage.HubStore
	bus   *events.Bus
	log   *logger.Logger
}

var _ Authorizer = (*Service)(nil)

// New constructs a hub service. The bus may be nil when audit records are not
// wanted.
func New(store storage.HubStore, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("hub")
	}
	return &Service{store: store, bus: bus, log: log}
}

// Bootstrap grants the admin role to the given account. Intended for initial
// wiring only; later grants go through GrantRole.
func (s *Service) Bootstrap(ctx context.Context, admin string) error {
	admin = strings.TrimSpace(admin)
	if admin == "" {
		return fmt.Errorf("admin account is required")
	}
	return s.store.GrantRole(ctx, hub.RoleAdmin, admin)
}

// RegisterContract maps a logical name to an address. Re-registering a name
// overwrites the previous mapping.
func (s *Service) RegisterContract(ctx context.Context, caller, name, address, artifact string) (hub.Registration, error) {
	if err := s.requireRole(ctx, hub.RoleAdmin, caller); err != nil {
		return hub.Registration{}, err
	}
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	if name == "" || address == "" {
		return hub.Registration{}, fmt.Errorf("name and address are required")
	}

	reg, err := s.store.SaveRegistration(ctx, hub.Registration{
		Name:     name,
		Address:  address,
		Artifact: strings.TrimSpace(artifact),
	})
	if err != nil {
		return hub.Registration{}, err
	}
	s.log.WithField("name", name).WithField("address", address).Info("contract registered")
	return reg, nil
}

// ContractOf resolves a logical name to its current address.
func (s *Service) ContractOf(ctx context.Context, name string) (hub.Registration, error) {
	return s.store.GetRegistration(ctx, strings.TrimSpace(name))
}

// ListContracts returns every registration.
func (s *Service) ListContracts(ctx context.Context) ([]hub.Registration, error) {
	return s.store.ListRegistrations(ctx)
}

// SetFeeWallet updates the wallet terminal fees settle to. Takes effect for
// every subsequent operation; never retroactively.
func (s *Service) SetFeeWallet(ctx context.Context, caller, wallet string) (hub.SystemConfig, error) {
	if err := s.requireRole(ctx, hub.RoleAdmin, caller); err != nil {
		return hub.SystemConfig{}, err
	}
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return hub.SystemConfig{}, fmt.Errorf("fee wallet is required")
	}

	cfg, err := s.store.GetSystemConfig(ctx)
	if err != nil && !storage.IsNotFound(err) {
		return hub.SystemConfig{}, err
	}
	cfg.FeeWallet = wallet
	return s.store.SaveSystemConfig(ctx, cfg)
}

// SetFeeToken updates the default fee token.
func (s *Service) SetFeeToken(ctx context.Context, caller, token string) (hub.SystemConfig, error) {
	if err := s.requireRole(ctx, hub.RoleAdmin, caller); err != nil {
		return hub.SystemConfig{}, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return hub.SystemConfig{}, fmt.Errorf("fee token is required")
	}

	cfg, err := s.store.GetSystemConfig(ctx)
	if err != nil && !storage.IsNotFound(err) {
		return hub.SystemConfig{}, err
	}
	cfg.FeeToken = token
	return s.store.SaveSystemConfig(ctx, cfg)
}

// SystemConfig returns the current global fee configuration. Engines call
// this at operation time and never cache the result.
func (s *Service) SystemConfig(ctx context.Context) (hub.SystemConfig, error) {
	cfg, err := s.store.GetSystemConfig(ctx)
	if storage.IsNotFound(err) {
		return hub.SystemConfig{}, fmt.Errorf("%w: system config", hub.ErrConfigNotFound)
	}
	return cfg, err
}

// SetFeeSchedule installs or replaces the evaluation/minting fee pair for one
// fee token.
func (s *Service) SetFeeSchedule(ctx context.Context, caller string, schedule hub.FeeSchedule) (hub.FeeSchedule, error) {
	if err := s.requireRole(ctx, hub.RoleAdmin, caller); err != nil {
		return hub.FeeSchedule{}, err
	}
	schedule.FeeToken = strings.TrimSpace(schedule.FeeToken)
	if schedule.FeeToken == "" {
		return hub.FeeSchedule{}, fmt.Errorf("fee token is required")
	}
	if schedule.EvaluationFee.IsNegative() || schedule.MintingFee.IsNegative() {
		return hub.FeeSchedule{}, fmt.Errorf("fees must not be negative")
	}

	saved, err := s.store.SaveFeeSchedule(ctx, schedule)
	if err != nil {
		return hub.FeeSchedule{}, err
	}
	s.log.WithField("fee_token", saved.FeeToken).
		WithField("evaluation_fee", saved.EvaluationFee.String()).
		WithField("minting_fee", saved.MintingFee.String()).
		Info("fee schedule set")
	return saved, nil
}

// FeeSchedule returns the schedule for a fee token, or ErrConfigNotFound.
func (s *Service) FeeSchedule(ctx context.Context, feeToken string) (hub.FeeSchedule, error) {
	schedule, err := s.store.GetFeeSchedule(ctx, feeToken)
	if storage.IsNotFound(err) {
		return hub.FeeSchedule{}, fmt.Errorf("%w: fee schedule for %s", hub.ErrConfigNotFound, feeToken)
	}
	return schedule, err
}

// GrantRole grants a capability role. Re-granting is a no-op.
func (s *Service) GrantRole(ctx context.Context, caller string, role hub.Role, account string) error {
	if err := s.requireRole(ctx, hub.RoleAdmin, caller); err != nil {
		return err
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return fmt.Errorf("account is required")
	}
	if err := s.store.GrantRole(ctx, role, account); err != nil {
		return err
	}
	s.log.WithField("role", string(role)).WithField("account", account).Info("role granted")
	return nil
}

// RevokeRole removes a capability role. Revoking an absent role is a no-op.
func (s *Service) RevokeRole(ctx context.Context, caller string, role hub.Role, account string) error {
	if err := s.requireRole(ctx, hub.RoleAdmin, caller); err != nil {
		return err
	}
	if err := s.store.RevokeRole(ctx, role, strings.TrimSpace(account)); err != nil {
		return err
	}
	s.log.WithField("role", string(role)).WithField("account", account).Info("role revoked")
	return nil
}

// HasRole reports whether the account currently holds the role.
func (s *Service) HasRole(ctx context.Context, role hub.Role, account string) (bool, error) {
	return s.store.HasRole(ctx, role, account)
}

// WhitelistCollateral marks a token contract acceptable as loan security.
// Operators administer the lending-side whitelist alongside admins.
func (s *Service) WhitelistCollateral(ctx context.Context, caller, tokenContract, standard string) error {
	if err := s.requireAnyRole(ctx, caller, hub.RoleAdmin, hub.RoleOperator); err != nil {
		return err
	}
	tokenContract = strings.TrimSpace(tokenContract)
	if tokenContract == "" {
		return fmt.Errorf("token contract is required")
	}
	if err := s.store.SaveWhitelistedCollateral(ctx, hub.WhitelistedCollateral{
		TokenContract: tokenContract,
		Standard:      strings.TrimSpace(standard),
	}); err != nil {
		return err
	}
	s.log.WithField("token_contract", tokenContract).Info("collateral whitelisted")
	return nil
}

// IsWhitelistedCollateral reports whether a token contract may be pledged.
func (s *Service) IsWhitelistedCollateral(ctx context.Context, tokenContract string) (bool, error) {
	return s.store.IsWhitelistedCollateral(ctx, tokenContract)
}

// AcceptEvaluator grants the evaluator role and records the decision.
// Re-accepting an evaluator is idempotent at the role level; each call still
// appends a registry record.
func (s *Service) AcceptEvaluator(ctx context.Context, caller, account string) (hub.EvaluatorRecord, error) {
	if err := s.requireRole(ctx, hub.RoleAdmin, caller); err != nil {
		return hub.EvaluatorRecord{}, err
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return hub.EvaluatorRecord{}, fmt.Errorf("account is required")
	}

	if err := s.store.GrantRole(ctx, hub.RoleEvaluator, account); err != nil {
		return hub.EvaluatorRecord{}, err
	}
	rec, err := s.store.CreateEvaluatorRecord(ctx, hub.EvaluatorRecord{
		Account: account,
		Status:  hub.EvaluatorAccepted,
	})
	if err != nil {
		return hub.EvaluatorRecord{}, err
	}

	s.emit(events.Record{
		EntityKind: events.KindEvaluator,
		EntityID:   rec.ID,
		NewState:   string(hub.EvaluatorAccepted),
		Actor:      caller,
	})
	s.log.WithField("account", account).Info("evaluator accepted")
	return rec, nil
}

// RemoveEvaluator revokes the evaluator role and records the decision.
func (s *Service) RemoveEvaluator(ctx context.Context, caller, account string) (hub.EvaluatorRecord, error) {
	if err := s.requireRole(ctx, hub.RoleAdmin, caller); err != nil {
		return hub.EvaluatorRecord{}, err
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return hub.EvaluatorRecord{}, fmt.Errorf("account is required")
	}

	if err := s.store.RevokeRole(ctx, hub.RoleEvaluator, account); err != nil {
		return hub.EvaluatorRecord{}, err
	}
	rec, err := s.store.CreateEvaluatorRecord(ctx, hub.EvaluatorRecord{
		Account: account,
		Status:  hub.EvaluatorCancelled,
	})
	if err != nil {
		return hub.EvaluatorRecord{}, err
	}

	s.emit(events.Record{
		EntityKind: events.KindEvaluator,
		EntityID:   rec.ID,
		NewState:   string(hub.EvaluatorCancelled),
		Actor:      caller,
	})
	s.log.WithField("account", account).Info("evaluator removed")
	return rec, nil
}

// EvaluatorHistory lists registry decisions, optionally filtered by account.
func (s *Service) EvaluatorHistory(ctx context.Context, account string) ([]hub.EvaluatorRecord, error) {
	return s.store.ListEvaluatorRecords(ctx, account)
}

func (s *Service) requireRole(ctx context.Context, role hub.Role, account string) error {
	ok, err := s.store.HasRole(ctx, role, account)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s requires %s role", hub.ErrUnauthorized, account, role)
	}
	return nil
}

// requireAnyRole passes when the account holds at least one of the roles.
func (s *Service) requireAnyRole(ctx context.Context, account string, roles ...hub.Role) error {
	for _, role := range roles {
		ok, err := s.store.HasRole(ctx, role, account)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s requires one of %v", hub.ErrUnauthorized, account, roles)
}

func (s *Service) emit(rec events.Record) {
	if s.bus != nil {
		s.bus.Emit(rec)
	}
}
