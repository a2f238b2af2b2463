package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFungibleTransferFromConsumesAllowance(t *testing.T) {
	ctx := context.Background()
	fun := NewMemoryFungible()
	fun.Mint(ctx, "DFY", "alice", decimal.NewFromInt(100))
	fun.Approve(ctx, "DFY", "alice", "engine", decimal.NewFromInt(30))

	if err := fun.TransferFrom(ctx, "DFY", "engine", "alice", "bob", decimal.NewFromInt(20)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}

	err := fun.TransferFrom(ctx, "DFY", "engine", "alice", "bob", decimal.NewFromInt(20))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("err = %v, want ErrInsufficientAllowance", err)
	}

	bal, _ := fun.BalanceOf(ctx, "DFY", "bob")
	if !bal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("bob balance = %s, want 20", bal)
	}
}

func TestFungibleSelfTransferNeedsNoAllowance(t *testing.T) {
	ctx := context.Background()
	fun := NewMemoryFungible()
	fun.Mint(ctx, "DFY", "alice", decimal.NewFromInt(10))

	if err := fun.TransferFrom(ctx, "DFY", "alice", "alice", "bob", decimal.NewFromInt(10)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
}

func TestFungibleTransferRejectsOverdraw(t *testing.T) {
	ctx := context.Background()
	fun := NewMemoryFungible()
	fun.Mint(ctx, "DFY", "alice", decimal.NewFromInt(5))

	err := fun.Transfer(ctx, "DFY", "alice", "bob", decimal.NewFromInt(6))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	bal, _ := fun.BalanceOf(ctx, "DFY", "alice")
	if !bal.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("alice balance = %s, want 5 after failed transfer", bal)
	}
}

func TestNonFungibleMintAndTransfer(t *testing.T) {
	ctx := context.Background()
	nft := NewMemoryNonFungible()

	id, err := nft.Mint(ctx, "collection", "alice", "ipfs://meta")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	owner, err := nft.OwnerOf(ctx, "collection", id)
	if err != nil || owner != "alice" {
		t.Fatalf("OwnerOf = %s, %v; want alice", owner, err)
	}

	if err := nft.Transfer(ctx, "collection", "bob", "carol", id); err == nil {
		t.Fatal("expected transfer by non-owner to fail")
	}

	if err := nft.Transfer(ctx, "collection", "alice", "bob", id); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	owner, _ = nft.OwnerOf(ctx, "collection", id)
	if owner != "bob" {
		t.Fatalf("owner = %s, want bob", owner)
	}
}

func TestNonFungibleOperatorTransfer(t *testing.T) {
	ctx := context.Background()
	nft := NewMemoryNonFungible()

	id, err := nft.Mint(ctx, "collection", "alice", "")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	nft.SetApprovalForAll(ctx, "collection", "alice", "engine", true)

	if err := nft.Transfer(ctx, "collection", "engine", "engine", id); err != nil {
		t.Fatalf("operator transfer: %v", err)
	}

	if _, err := nft.OwnerOf(ctx, "collection", "missing"); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("err = %v, want ErrUnknownToken", err)
	}
}
