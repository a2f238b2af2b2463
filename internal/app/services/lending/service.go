// Package lending implements the collateralized lending engine: pledged
// collateral custody, competing loan offers and the loan contract recorded at
// acceptance.
package lending

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/hub"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/lending"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/reputation"
	"github.com/DFY-Network/pawnshop_layer/internal/app/events"
	"github.com/DFY-Network/pawnshop_layer/internal/app/exchange"
	"github.com/DFY-Network/pawnshop_layer/internal/app/ledger"
	"github.com/DFY-Network/pawnshop_layer/internal/app/storage"
	"github.com/DFY-Network/pawnshop_layer/pkg/logger"
)

// CallerName identifies this engine to the reputation tracker.
const CallerName = "lending"

// Whitelist answers whether a token contract may be pledged. The hub service
// implements it.
type Whitelist interface {
	IsWhitelistedCollateral(ctx context.Context, tokenContract string) (bool, error)
}

// ReputationRecorder records reputation-earning activity. May be nil.
type ReputationRecorder interface {
	RecordActivity(ctx context.Context, caller, account string, reason reputation.Reason) (reputation.Score, error)
}

// Service is the lending engine. Custody of pledged tokens sits under the
// engine account on the non-fungible ledger for exactly the open and doing
// collateral states.
type Service struct {
	store      storage.LendingStore
	whitelist  Whitelist
	fungible   ledger.Fungible
	nft        ledger.NonFungible
	rates      exchange.RateSource
	bus        *events.Bus
	reputation ReputationRecorder
	account    string
	log        *logger.Logger

	mu sync.Mutex
}

// New constructs the lending engine. engineAccount is the custody account
// holding pledged tokens; bus and rep may be nil.
func New(store storage.LendingStore, whitelist Whitelist, fungible ledger.Fungible, nft ledger.NonFungible, rates exchange.RateSource, engineAccount string, bus *events.Bus, rep ReputationRecorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("lending")
	}
	return &Service{
		store:      store,
		whitelist:  whitelist,
		fungible:   fungible,
		nft:        nft,
		rates:      rates,
		bus:        bus,
		reputation: rep,
		account:    engineAccount,
		log:        log,
	}
}

// PutOnPawn pledges a whitelisted token as loan security. The token moves
// into engine custody and the collateral opens for offers.
func (s *Service) PutOnPawn(ctx context.Context, owner string, col lending.Collateral) (lending.Collateral, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return lending.Collateral{}, fmt.Errorf("owner is required")
	}
	col.TokenContract = strings.TrimSpace(col.TokenContract)
	col.TokenID = strings.TrimSpace(col.TokenID)
	if col.TokenContract == "" || col.TokenID == "" {
		return lending.Collateral{}, fmt.Errorf("token contract and token id are required")
	}
	if col.ExpectedLoanAmount.Sign() <= 0 {
		return lending.Collateral{}, fmt.Errorf("expected loan amount must be positive")
	}
	if strings.TrimSpace(col.LoanAsset) == "" {
		return lending.Collateral{}, fmt.Errorf("loan asset is required")
	}
	if col.DurationQty <= 0 {
		return lending.Collateral{}, fmt.Errorf("duration must be positive")
	}
	if col.DurationType != lending.DurationWeek && col.DurationType != lending.DurationMonth {
		return lending.Collateral{}, fmt.Errorf("unknown duration type %q", col.DurationType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.whitelist.IsWhitelistedCollateral(ctx, col.TokenContract)
	if err != nil {
		return lending.Collateral{}, err
	}
	if !ok {
		return lending.Collateral{}, fmt.Errorf("%w: token contract %s is not whitelisted", hub.ErrUnauthorized, col.TokenContract)
	}

	if err := s.nft.Transfer(ctx, col.TokenContract, owner, s.account, col.TokenID); err != nil {
		return lending.Collateral{}, fmt.Errorf("take custody of %s/%s: %w", col.TokenContract, col.TokenID, err)
	}

	col.Owner = owner
	col.Status = lending.CollateralStatusOpen
	col, err = s.store.CreateCollateral(ctx, col)
	if err != nil {
		// Custody was taken; hand the token back rather than strand it.
		if rerr := s.nft.Transfer(ctx, col.TokenContract, s.account, owner, col.TokenID); rerr != nil {
			s.log.WithError(rerr).Errorf("return custody of %s/%s after store failure", col.TokenContract, col.TokenID)
		}
		return lending.Collateral{}, err
	}

	s.emit(events.Record{
		EntityKind: events.KindCollateral,
		EntityID:   col.ID,
		NewState:   string(col.Status),
		Actor:      owner,
	})
	s.recordReputation(ctx, owner, reputation.ReasonBorrowerCreateCollateral)
	s.log.WithField("collateral_id", col.ID).
		WithField("owner", owner).
		WithField("token", col.TokenContract+"/"+col.TokenID).
		Info("collateral pledged")
	return col, nil
}

// CreateOffer proposes loan terms against an open collateral. One pending
// offer per lender per collateral; the collateral owner cannot lend to
// themselves. No principal moves yet.
func (s *Service) CreateOffer(ctx context.Context, lender string, offer lending.Offer) (lending.Offer, error) {
	lender = strings.TrimSpace(lender)
	if lender == "" {
		return lending.Offer{}, fmt.Errorf("lender is required")
	}
	if offer.LoanAmount.Sign() <= 0 {
		return lending.Offer{}, fmt.Errorf("loan amount must be positive")
	}
	if offer.InterestRate.IsNegative() {
		return lending.Offer{}, fmt.Errorf("interest rate must not be negative")
	}
	if strings.TrimSpace(offer.RepaymentAsset) == "" {
		return lending.Offer{}, fmt.Errorf("repayment asset is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.store.GetCollateral(ctx, offer.CollateralID)
	if err != nil {
		return lending.Offer{}, err
	}
	if col.Status != lending.CollateralStatusOpen {
		return lending.Offer{}, fmt.Errorf("%w: collateral %s is %s", hub.ErrInvalidState, col.ID, col.Status)
	}
	if strings.EqualFold(lender, col.Owner) {
		return lending.Offer{}, fmt.Errorf("%w: collateral owner cannot offer on own collateral", hub.ErrUnauthorized)
	}

	existing, err := s.store.ListOffersByCollateral(ctx, col.ID)
	if err != nil {
		return lending.Offer{}, err
	}
	dup := lo.ContainsBy(existing, func(o lending.Offer) bool {
		return o.Status == lending.OfferStatusPending && strings.EqualFold(o.Lender, lender)
	})
	if dup {
		return lending.Offer{}, fmt.Errorf("%w: lender %s already has a pending offer on collateral %s", hub.ErrInvalidState, lender, col.ID)
	}

	// The lender must be able to fund the offer at proposal time.
	balance, err := s.fungible.BalanceOf(ctx, col.LoanAsset, lender)
	if err != nil {
		return lending.Offer{}, err
	}
	if balance.LessThan(offer.LoanAmount) {
		return lending.Offer{}, fmt.Errorf("%w: lender %s holds %s %s, offer needs %s", ledger.ErrInsufficientBalance, lender, balance, col.LoanAsset, offer.LoanAmount)
	}

	offer.Lender = lender
	offer.Status = lending.OfferStatusPending
	offer, err = s.store.CreateOffer(ctx, offer)
	if err != nil {
		return lending.Offer{}, err
	}

	s.emit(events.Record{
		EntityKind: events.KindOffer,
		EntityID:   offer.ID,
		NewState:   string(offer.Status),
		Actor:      lender,
	})
	s.recordReputation(ctx, lender, reputation.ReasonLenderCreateOffer)
	s.log.WithField("offer_id", offer.ID).
		WithField("collateral_id", col.ID).
		WithField("lender", lender).
		Info("offer created")
	return offer, nil
}

// CancelOffer withdraws a pending offer. The lender may cancel their own
// offer; the collateral owner may cancel any offer on their collateral.
func (s *Service) CancelOffer(ctx context.Context, caller, offerID string) (lending.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return lending.Offer{}, err
	}
	col, err := s.store.GetCollateral(ctx, offer.CollateralID)
	if err != nil {
		return lending.Offer{}, err
	}
	if !strings.EqualFold(caller, offer.Lender) && !strings.EqualFold(caller, col.Owner) {
		return lending.Offer{}, fmt.Errorf("%w: only the lender or the collateral owner may cancel", hub.ErrUnauthorized)
	}
	if offer.Status != lending.OfferStatusPending {
		return lending.Offer{}, fmt.Errorf("%w: offer %s is %s", hub.ErrInvalidState, offerID, offer.Status)
	}

	offer.Status = lending.OfferStatusCancel
	offer, err = s.store.UpdateOffer(ctx, offer)
	if err != nil {
		return lending.Offer{}, err
	}

	s.emit(events.Record{
		EntityKind: events.KindOffer,
		EntityID:   offer.ID,
		NewState:   string(offer.Status),
		Actor:      caller,
	})
	s.log.WithField("offer_id", offer.ID).Info("offer cancelled")
	return offer, nil
}

// AcceptOffer lets the collateral owner take one pending offer. The principal
// moves lender to owner, the chosen offer is accepted, every sibling pending
// offer is cancelled, the collateral enters its loan and the agreed terms are
// recorded as a loan contract with the exchange rate captured now.
func (s *Service) AcceptOffer(ctx context.Context, caller, offerID string) (lending.LoanContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return lending.LoanContract{}, err
	}
	col, err := s.store.GetCollateral(ctx, offer.CollateralID)
	if err != nil {
		return lending.LoanContract{}, err
	}
	if !strings.EqualFold(caller, col.Owner) {
		return lending.LoanContract{}, fmt.Errorf("%w: only the collateral owner may accept an offer", hub.ErrUnauthorized)
	}
	if col.Status != lending.CollateralStatusOpen {
		return lending.LoanContract{}, fmt.Errorf("%w: collateral %s is %s", hub.ErrInvalidState, col.ID, col.Status)
	}
	if offer.Status != lending.OfferStatusPending {
		return lending.LoanContract{}, fmt.Errorf("%w: offer %s is %s", hub.ErrInvalidState, offerID, offer.Status)
	}

	rate, err := s.rates.Rate(ctx, col.LoanAsset, offer.RepaymentAsset)
	if err != nil {
		return lending.LoanContract{}, fmt.Errorf("exchange rate %s/%s: %w", col.LoanAsset, offer.RepaymentAsset, err)
	}

	// Principal moves first; every write after this must succeed or the
	// transfer is unwound.
	if err := s.fungible.TransferFrom(ctx, col.LoanAsset, s.account, offer.Lender, col.Owner, offer.LoanAmount); err != nil {
		return lending.LoanContract{}, fmt.Errorf("move principal from %s: %w", offer.Lender, err)
	}

	unwind := func() {
		if rerr := s.fungible.TransferFrom(ctx, col.LoanAsset, s.account, col.Owner, offer.Lender, offer.LoanAmount); rerr != nil {
			s.log.WithError(rerr).Errorf("unwind principal for offer %s", offer.ID)
		}
	}

	offer.Status = lending.OfferStatusAccepted
	if offer, err = s.store.UpdateOffer(ctx, offer); err != nil {
		unwind()
		return lending.LoanContract{}, err
	}

	col.Status = lending.CollateralStatusDoing
	if col, err = s.store.UpdateCollateral(ctx, col); err != nil {
		unwind()
		return lending.LoanContract{}, err
	}

	lc, err := s.store.CreateLoanContract(ctx, lending.LoanContract{
		CollateralID: col.ID,
		OfferID:      offer.ID,
		Terms: lending.Terms{
			Borrower:           col.Owner,
			Lender:             offer.Lender,
			LoanAsset:          col.LoanAsset,
			LoanAmount:         offer.LoanAmount,
			RepaymentAsset:     offer.RepaymentAsset,
			InterestRate:       offer.InterestRate,
			ExchangeRate:       rate,
			LoanDurationType:   offer.LoanDurationType,
			RepaymentCycleType: offer.RepaymentCycleType,
		},
	})
	if err != nil {
		unwind()
		return lending.LoanContract{}, err
	}

	siblings, err := s.store.ListOffersByCollateral(ctx, col.ID)
	if err != nil {
		return lending.LoanContract{}, err
	}
	pending := lo.Filter(siblings, func(o lending.Offer, _ int) bool {
		return o.Status == lending.OfferStatusPending
	})
	for _, sib := range pending {
		sib.Status = lending.OfferStatusCancel
		if _, err := s.store.UpdateOffer(ctx, sib); err != nil {
			return lending.LoanContract{}, err
		}
		s.emit(events.Record{
			EntityKind: events.KindOffer,
			EntityID:   sib.ID,
			NewState:   string(sib.Status),
			Actor:      caller,
		})
	}

	s.emit(events.Record{
		EntityKind: events.KindOffer,
		EntityID:   offer.ID,
		NewState:   string(offer.Status),
		Actor:      caller,
		Amounts: []events.Amount{{
			Token: col.LoanAsset,
			Value: offer.LoanAmount,
			From:  offer.Lender,
			To:    col.Owner,
		}},
	})
	s.emit(events.Record{
		EntityKind: events.KindCollateral,
		EntityID:   col.ID,
		NewState:   string(col.Status),
		Actor:      caller,
	})
	s.emit(events.Record{
		EntityKind: events.KindLoanContract,
		EntityID:   lc.ID,
		NewState:   "created",
		Actor:      caller,
	})

	s.recordReputation(ctx, col.Owner, reputation.ReasonBorrowerAcceptOffer)
	s.recordReputation(ctx, offer.Lender, reputation.ReasonLenderOfferAccepted)
	s.log.WithField("loan_contract_id", lc.ID).
		WithField("collateral_id", col.ID).
		WithField("offer_id", offer.ID).
		WithField("exchange_rate", rate.String()).
		Info("offer accepted")
	return lc, nil
}

// WithdrawCollateral returns an open collateral to its owner. Pending offers
// are cancelled and the collateral reaches its terminal cancel state; a
// second withdrawal fails precondition.
func (s *Service) WithdrawCollateral(ctx context.Context, caller, collateralID string) (lending.Collateral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.store.GetCollateral(ctx, collateralID)
	if err != nil {
		return lending.Collateral{}, err
	}
	if !strings.EqualFold(caller, col.Owner) {
		return lending.Collateral{}, fmt.Errorf("%w: only the collateral owner may withdraw", hub.ErrUnauthorized)
	}
	if col.Status != lending.CollateralStatusOpen {
		return lending.Collateral{}, fmt.Errorf("%w: collateral %s is %s", hub.ErrInvalidState, col.ID, col.Status)
	}

	if err := s.nft.Transfer(ctx, col.TokenContract, s.account, col.Owner, col.TokenID); err != nil {
		return lending.Collateral{}, fmt.Errorf("release custody of %s/%s: %w", col.TokenContract, col.TokenID, err)
	}

	col.Status = lending.CollateralStatusCancel
	if col, err = s.store.UpdateCollateral(ctx, col); err != nil {
		return lending.Collateral{}, err
	}

	offers, err := s.store.ListOffersByCollateral(ctx, col.ID)
	if err != nil {
		return lending.Collateral{}, err
	}
	pending := lo.Filter(offers, func(o lending.Offer, _ int) bool {
		return o.Status == lending.OfferStatusPending
	})
	for _, offer := range pending {
		offer.Status = lending.OfferStatusCancel
		if _, err := s.store.UpdateOffer(ctx, offer); err != nil {
			return lending.Collateral{}, err
		}
		s.emit(events.Record{
			EntityKind: events.KindOffer,
			EntityID:   offer.ID,
			NewState:   string(offer.Status),
			Actor:      caller,
		})
	}

	s.emit(events.Record{
		EntityKind: events.KindCollateral,
		EntityID:   col.ID,
		NewState:   string(col.Status),
		Actor:      caller,
	})
	s.log.WithField("collateral_id", col.ID).Info("collateral withdrawn")
	return col, nil
}

// GetCollateral returns one collateral.
func (s *Service) GetCollateral(ctx context.Context, id string) (lending.Collateral, error) {
	return s.store.GetCollateral(ctx, id)
}

// ListCollaterals lists collaterals, optionally filtered by owner.
func (s *Service) ListCollaterals(ctx context.Context, owner string) ([]lending.Collateral, error) {
	return s.store.ListCollaterals(ctx, owner)
}

// GetOffer returns one offer.
func (s *Service) GetOffer(ctx context.Context, id string) (lending.Offer, error) {
	return s.store.GetOffer(ctx, id)
}

// ListOffers lists offers for a collateral.
func (s *Service) ListOffers(ctx context.Context, collateralID string) ([]lending.Offer, error) {
	return s.store.ListOffersByCollateral(ctx, collateralID)
}

// GetLoanContract returns one recorded loan contract.
func (s *Service) GetLoanContract(ctx context.Context, id string) (lending.LoanContract, error) {
	return s.store.GetLoanContract(ctx, id)
}

// ListLoanContracts lists loan contracts, optionally filtered by collateral.
func (s *Service) ListLoanContracts(ctx context.Context, collateralID string) ([]lending.LoanContract, error) {
	return s.store.ListLoanContracts(ctx, collateralID)
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
