package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryFungible is an in-memory fungible ledger with allowance semantics.
// It backs tests and local development; production deployments wire the real
// chain ledgers instead.
type MemoryFungible struct {
	mu         sync.Mutex
	balances   map[string]map[string]decimal.Decimal // token -> holder -> balance
	allowances map[string]map[string]decimal.Decimal // token -> holder|spender -> amount
}

// NewMemoryFungible creates an empty fungible ledger.
func NewMemoryFungible() *MemoryFungible {
	return &MemoryFungible{
		balances:   make(map[string]map[string]decimal.Decimal),
		allowances: make(map[string]map[string]decimal.Decimal),
	}
}

var _ Fungible = (*MemoryFungible)(nil)

// Mint credits amount of token to recipient.
func (m *MemoryFungible) Mint(_ context.Context, token, recipient string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(token, recipient, amount)
}

// Approve lets spender move up to amount of holder's token balance.
func (m *MemoryFungible) Approve(_ context.Context, token, holder, spender string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allowances[token] == nil {
		m.allowances[token] = make(map[string]decimal.Decimal)
	}
	m.allowances[token][holder+"|"+spender] = amount
}

func (m *MemoryFungible) TransferFrom(_ context.Context, token, spender, holder, recipient string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("negative amount %s", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := holder + "|" + spender
	allowance := m.allowances[token][key]
	if spender != holder && allowance.LessThan(amount) {
		return fmt.Errorf("%w: token %s holder %s spender %s", ErrInsufficientAllowance, token, holder, spender)
	}

	if err := m.debit(token, holder, amount); err != nil {
		return err
	}
	m.credit(token, recipient, amount)
	if spender != holder {
		m.allowances[token][key] = allowance.Sub(amount)
	}
	return nil
}

func (m *MemoryFungible) Transfer(_ context.Context, token, from, to string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("negative amount %s", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.debit(token, from, amount); err != nil {
		return err
	}
	m.credit(token, to, amount)
	return nil
}

func (m *MemoryFungible) BalanceOf(_ context.Context, token, holder string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[token][holder], nil
}

func (m *MemoryFungible) credit(token, holder string, amount decimal.Decimal) {
	if m.balances[token] == nil {
		m.balances[token] = make(map[string]decimal.Decimal)
	}
	m.balances[token][holder] = m.balances[token][holder].Add(amount)
}

func (m *MemoryFungible) debit(token, holder string, amount decimal.Decimal) error {
	balance := m.balances[token][holder]
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: token %s holder %s has %s, needs %s", ErrInsufficientBalance, token, holder, balance, amount)
	}
	m.balances[token][holder] = balance.Sub(amount)
	return nil
}

// MemoryNonFungible is an in-memory NFT ledger keyed by collection.
type MemoryNonFungible struct {
	mu        sync.Mutex
	nextID    int64
	owners    map[string]map[string]string // collection -> tokenID -> owner
	metadata  map[string]map[string]string // collection -> tokenID -> metadataRef
	operators map[string]map[string]bool   // collection -> owner|operator -> approved
}

// NewMemoryNonFungible creates an empty NFT ledger.
func NewMemoryNonFungible() *MemoryNonFungible {
	return &MemoryNonFungible{
		nextID:    1,
		owners:    make(map[string]map[string]string),
		metadata:  make(map[string]map[string]string),
		operators: make(map[string]map[string]bool),
	}
}

var _ NonFungible = (*MemoryNonFungible)(nil)

func (m *MemoryNonFungible) Mint(_ context.Context, collection, recipient, metadataRef string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := strconv.FormatInt(m.nextID, 10)
	m.nextID++

	if m.owners[collection] == nil {
		m.owners[collection] = make(map[string]string)
		m.metadata[collection] = make(map[string]string)
	}
	m.owners[collection][id] = recipient
	m.metadata[collection][id] = metadataRef
	return id, nil
}

// SetApprovalForAll lets operator move any of owner's tokens in collection.
func (m *MemoryNonFungible) SetApprovalForAll(_ context.Context, collection, owner, operator string, approved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.operators[collection] == nil {
		m.operators[collection] = make(map[string]bool)
	}
	m.operators[collection][owner+"|"+operator] = approved
}

func (m *MemoryNonFungible) Transfer(_ context.Context, collection, caller, recipient, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner, ok := m.owners[collection][tokenID]
	if !ok {
		return fmt.Errorf("%w: collection %s token %s", ErrUnknownToken, collection, tokenID)
	}
	if caller != owner && !m.operators[collection][owner+"|"+caller] {
		return fmt.Errorf("caller %s is neither owner nor operator of token %s", caller, tokenID)
	}
	m.owners[collection][tokenID] = recipient
	return nil
}

func (m *MemoryNonFungible) OwnerOf(_ context.Context, collection, tokenID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner, ok := m.owners[collection][tokenID]
	if !ok {
		return "", fmt.Errorf("%w: collection %s token %s", ErrUnknownToken, collection, tokenID)
	}
	return owner, nil
}
