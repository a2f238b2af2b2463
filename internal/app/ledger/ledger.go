// Package ledger declares the token ledger primitives the engines consume.
// The underlying ledgers are external collaborators: transfers are assumed
// atomic and truthful, and every call either fully applies or fails without
// effect.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientBalance is returned when the paying side cannot cover a
	// transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientAllowance is returned when a TransferFrom exceeds the
	// holder's approval for the spender.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrUnknownToken is returned for a token the ledger has never seen.
	ErrUnknownToken = errors.New("unknown token")
)

// Fungible is the fungible token primitive used for fees and loan principal.
type Fungible interface {
	// TransferFrom moves amount of token from holder to recipient using the
	// spender's allowance.
	TransferFrom(ctx context.Context, token, spender, holder, recipient string, amount decimal.Decimal) error

	// Transfer moves amount of token from the caller's own balance.
	Transfer(ctx context.Context, token, from, to string, amount decimal.Decimal) error

	// BalanceOf reports the holder's balance for token.
	BalanceOf(ctx context.Context, token, holder string) (decimal.Decimal, error)
}

// NonFungible is the NFT primitive used for minted appraisal records and
// pledged collateral.
type NonFungible interface {
	// Mint creates a new token in the collection, owned by recipient, and
	// returns its identifier.
	Mint(ctx context.Context, collection, recipient, metadataRef string) (string, error)

	// Transfer moves tokenID in collection from its current owner to
	// recipient. The caller must be the owner or an approved operator.
	Transfer(ctx context.Context, collection, caller, recipient, tokenID string) error

	// OwnerOf reports the current owner of tokenID in collection.
	OwnerOf(ctx context.Context, collection, tokenID string) (string, error)
}
