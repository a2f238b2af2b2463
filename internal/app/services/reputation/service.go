// Package reputation implements the per-account reputation tracker. Only
// whitelisted engine callers may record activity; scores never decrease under
// normal flow.
package reputation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/hub"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/reputation"
	"github.com/DFY-Network/pawnshop_layer/internal/app/events"
	"github.com/DFY-Network/pawnshop_layer/internal/app/storage"
	"github.com/DFY-Network/pawnshop_layer/pkg/logger"
)

// pointsFor maps activity reasons to the points they earn.
var pointsFor = map[reputation.Reason]int64{
	reputation.ReasonBorrowerCreateCollateral: 3,
	reputation.ReasonBorrowerAcceptOffer:      1,
	reputation.ReasonLenderCreateOffer:        2,
	reputation.ReasonLenderOfferAccepted:      3,
	reputation.ReasonEvaluatorEvaluateAsset:   2,
	reputation.ReasonEvaluatorMintNFT:         1,
}

// Service tracks reputation scores for borrowers, lenders and evaluators.
type Service struct {
	store storage.ReputationStore
	bus   *events.Bus
	log   *logger.Logger

	mu      sync.RWMutex
	callers map[string]bool
}

// New constructs a reputation service with an empty caller whitelist.
func New(store storage.ReputationStore, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reputation")
	}
	return &Service{
		store:   store,
		bus:     bus,
		log:     log,
		callers: make(map[string]bool),
	}
}

// AddWhitelistedCaller authorizes an engine name to record activity.
func (s *Service) AddWhitelistedCaller(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	s.mu.Lock()
	s.callers[strings.ToLower(name)] = true
	s.mu.Unlock()
	s.log.WithField("caller", name).Info("reputation caller whitelisted")
}

// RecordActivity awards the points for reason to account. The caller must
// have been whitelisted; unknown reasons earn nothing and fail.
func (s *Service) RecordActivity(ctx context.Context, caller, account string, reason reputation.Reason) (reputation.Score, error) {
	s.mu.RLock()
	allowed := s.callers[strings.ToLower(strings.TrimSpace(caller))]
	s.mu.RUnlock()
	if !allowed {
		return reputation.Score{}, fmt.Errorf("%w: caller %s may not record reputation", hub.ErrUnauthorized, caller)
	}

	account = strings.TrimSpace(account)
	if account == "" {
		return reputation.Score{}, fmt.Errorf("account is required")
	}
	points, ok := pointsFor[reason]
	if !ok {
		return reputation.Score{}, fmt.Errorf("unknown reputation reason %q", reason)
	}

	score, err := s.store.GetScore(ctx, account)
	if err != nil {
		return reputation.Score{}, err
	}
	score.Account = account
	score.Points += points

	score, err = s.store.SaveScore(ctx, score)
	if err != nil {
		return reputation.Score{}, err
	}
	if _, err := s.store.CreateActivity(ctx, reputation.Activity{
		Account: account,
		Reason:  reason,
		Caller:  caller,
	}); err != nil {
		return reputation.Score{}, err
	}

	if s.bus != nil {
		s.bus.Emit(events.Record{
			EntityKind: events.KindReputation,
			EntityID:   account,
			NewState:   string(reason),
			Actor:      caller,
		})
	}
	s.log.WithField("account", account).
		WithField("reason", string(reason)).
		WithField("points", score.Points).
		Debug("reputation recorded")
	return score, nil
}

// Score returns the current score for an account; accounts with no activity
// read as zero.
func (s *Service) Score(ctx context.Context, account string) (reputation.Score, error) {
	return s.store.GetScore(ctx, account)
}

// History lists recorded activities for an account.
func (s *Service) History(ctx context.Context, account string) ([]reputation.Activity, error) {
	return s.store.ListActivities(ctx, account)
}
