// Package escrow implements the single hold/release/refund primitive shared
// by every fee- or principal-moving operation. Centralizing the pattern keeps
// the conservation invariant in one place: each held amount leaves custody
// exactly once, either forward to a payee or back to the payer.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DFY-Network/pawnshop_layer/internal/app/ledger"
	"github.com/DFY-Network/pawnshop_layer/internal/app/metrics"
	"github.com/DFY-Network/pawnshop_layer/pkg/logger"
)

var (
	// ErrHoldNotFound is returned for an unknown hold identifier.
	ErrHoldNotFound = errors.New("escrow hold not found")
	// ErrAlreadySettled is returned when a hold has already been released or
	// refunded. A settled hold can never move value again.
	ErrAlreadySettled = errors.New("escrow hold already settled")
)

// HoldStatus is the settlement state of a hold.
type HoldStatus string

const (
	HoldStatusHeld     HoldStatus = "held"
	HoldStatusReleased HoldStatus = "released"
	HoldStatusRefunded HoldStatus = "refunded"
)

// Hold is one amount in engine custody, linked to the entity whose lifecycle
// controls it.
type Hold struct {
	ID         string
	Payer      string
	Token      string
	Amount     decimal.Decimal
	EntityKind string
	EntityID   string
	Status     HoldStatus
	Payee      string
	CreatedAt  time.Time
	SettledAt  time.Time
}

// Manager moves value into and out of engine custody through the fungible
// ledger and tracks every live hold.
type Manager struct {
	ledger  ledger.Fungible
	account string
	log     *logger.Logger

	mu    sync.Mutex
	holds map[string]Hold
}

// NewManager creates a manager whose custody balances live under the given
// engine account on the fungible ledger.
func NewManager(fungible ledger.Fungible, engineAccount string, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("escrow")
	}
	return &Manager{
		ledger:  fungible,
		account: engineAccount,
		log:     log,
		holds:   make(map[string]Hold),
	}
}

// Account returns the engine custody account.
func (m *Manager) Account() string { return m.account }

// Hold pulls amount of token from payer into engine custody and records the
// hold against the linked entity. The ledger transfer and the hold record
// succeed or fail together.
func (m *Manager) Hold(ctx context.Context, payer, token string, amount decimal.Decimal, entityKind, entityID string) (Hold, error) {
	if amount.Sign() <= 0 {
		return Hold{}, fmt.Errorf("hold amount must be positive, got %s", amount)
	}

	if err := m.ledger.TransferFrom(ctx, token, m.account, payer, m.account, amount); err != nil {
		return Hold{}, fmt.Errorf("pull %s %s from %s: %w", amount, token, payer, err)
	}

	hold := Hold{
		ID:         uuid.NewString(),
		Payer:      payer,
		Token:      token,
		Amount:     amount,
		EntityKind: entityKind,
		EntityID:   entityID,
		Status:     HoldStatusHeld,
		CreatedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	m.holds[hold.ID] = hold
	m.mu.Unlock()

	m.log.WithField("hold_id", hold.ID).
		WithField("entity", entityKind+"/"+entityID).
		WithField("amount", amount.String()).
		Debugf("held %s %s from %s", amount, token, payer)
	metrics.SetEscrowHeld(token, m.HeldBalance(token).InexactFloat64())
	return hold, nil
}

// Release forwards a held amount to payee. Fails precondition if the hold was
// already settled; never double-moves value.
func (m *Manager) Release(ctx context.Context, holdID, payee string) (Hold, error) {
	hold, err := m.settle(holdID, HoldStatusReleased, payee)
	if err != nil {
		return Hold{}, err
	}
	if err := m.ledger.Transfer(ctx, hold.Token, m.account, payee, hold.Amount); err != nil {
		m.revert(hold.ID)
		return Hold{}, fmt.Errorf("release hold %s: %w", holdID, err)
	}
	metrics.SetEscrowHeld(hold.Token, m.HeldBalance(hold.Token).InexactFloat64())
	return hold, nil
}

// Refund returns a held amount to its payer.
func (m *Manager) Refund(ctx context.Context, holdID string) (Hold, error) {
	hold, err := m.settle(holdID, HoldStatusRefunded, "")
	if err != nil {
		return Hold{}, err
	}
	if err := m.ledger.Transfer(ctx, hold.Token, m.account, hold.Payer, hold.Amount); err != nil {
		m.revert(hold.ID)
		return Hold{}, fmt.Errorf("refund hold %s: %w", holdID, err)
	}
	metrics.SetEscrowHeld(hold.Token, m.HeldBalance(hold.Token).InexactFloat64())
	return hold, nil
}

// settle flips the hold to a terminal status under the lock. The caller then
// performs the ledger transfer; revert undoes the flip if that fails.
func (m *Manager) settle(holdID string, status HoldStatus, payee string) (Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hold, ok := m.holds[holdID]
	if !ok {
		return Hold{}, fmt.Errorf("%w: %s", ErrHoldNotFound, holdID)
	}
	if hold.Status != HoldStatusHeld {
		return Hold{}, fmt.Errorf("%w: %s is %s", ErrAlreadySettled, holdID, hold.Status)
	}

	hold.Status = status
	hold.Payee = payee
	hold.SettledAt = time.Now().UTC()
	m.holds[holdID] = hold
	return hold, nil
}

func (m *Manager) revert(holdID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hold, ok := m.holds[holdID]
	if !ok {
		return
	}
	hold.Status = HoldStatusHeld
	hold.Payee = ""
	hold.SettledAt = time.Time{}
	m.holds[holdID] = hold
}

// Get returns a hold by identifier.
func (m *Manager) Get(holdID string) (Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hold, ok := m.holds[holdID]
	if !ok {
		return Hold{}, fmt.Errorf("%w: %s", ErrHoldNotFound, holdID)
	}
	return hold, nil
}

// HeldBalance sums the live holds for token. Once every entity tied to the
// token reaches a terminal status this reconciles to zero.
func (m *Manager) HeldBalance(token string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.Zero
	for _, hold := range m.holds {
		if hold.Token == token && hold.Status == HoldStatusHeld {
			total = total.Add(hold.Amount)
		}
	}
	return total
}
