package escrow

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/DFY-Network/pawnshop_layer/internal/app/ledger"
)

const (
	engine = "engine"
	token  = "DFY"
)

func newFixture(t *testing.T) (*Manager, *ledger.MemoryFungible) {
	t.Helper()
	fun := ledger.NewMemoryFungible()
	return NewManager(fun, engine, nil), fun
}

func fund(ctx context.Context, fun *ledger.MemoryFungible, account string, amount int64) {
	fun.Mint(ctx, token, account, decimal.NewFromInt(amount))
	fun.Approve(ctx, token, account, engine, decimal.NewFromInt(1_000_000))
}

func balance(t *testing.T, fun *ledger.MemoryFungible, account string) decimal.Decimal {
	t.Helper()
	bal, err := fun.BalanceOf(context.Background(), token, account)
	if err != nil {
		t.Fatalf("BalanceOf(%s): %v", account, err)
	}
	return bal
}

func TestHoldMovesValueIntoCustody(t *testing.T) {
	ctx := context.Background()
	mgr, fun := newFixture(t)
	fund(ctx, fun, "alice", 100)

	hold, err := mgr.Hold(ctx, "alice", token, decimal.NewFromInt(10), "appointment", "apt-1")
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if hold.Status != HoldStatusHeld {
		t.Fatalf("hold status = %s, want %s", hold.Status, HoldStatusHeld)
	}
	if got := balance(t, fun, "alice"); !got.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("payer balance = %s, want 90", got)
	}
	if got := balance(t, fun, engine); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("engine balance = %s, want 10", got)
	}
	if got := mgr.HeldBalance(token); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("held balance = %s, want 10", got)
	}
}

func TestHoldRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	mgr, fun := newFixture(t)
	fund(ctx, fun, "alice", 100)

	if _, err := mgr.Hold(ctx, "alice", token, decimal.Zero, "appointment", "apt-1"); err == nil {
		t.Fatal("expected error for zero amount")
	}
	if _, err := mgr.Hold(ctx, "alice", token, decimal.NewFromInt(-5), "appointment", "apt-1"); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestHoldFailsWithoutFunds(t *testing.T) {
	ctx := context.Background()
	mgr, fun := newFixture(t)
	fund(ctx, fun, "alice", 5)

	_, err := mgr.Hold(ctx, "alice", token, decimal.NewFromInt(10), "appointment", "apt-1")
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if got := mgr.HeldBalance(token); !got.IsZero() {
		t.Fatalf("held balance after failed hold = %s, want 0", got)
	}
}

func TestReleaseForwardsToPayee(t *testing.T) {
	ctx := context.Background()
	mgr, fun := newFixture(t)
	fund(ctx, fun, "alice", 100)

	hold, err := mgr.Hold(ctx, "alice", token, decimal.NewFromInt(10), "appointment", "apt-1")
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}

	released, err := mgr.Release(ctx, hold.ID, "bob")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released.Status != HoldStatusReleased || released.Payee != "bob" {
		t.Fatalf("released = %+v, want released to bob", released)
	}
	if got := balance(t, fun, "bob"); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("payee balance = %s, want 10", got)
	}
	if got := balance(t, fun, engine); !got.IsZero() {
		t.Fatalf("engine balance = %s, want 0", got)
	}
	if got := mgr.HeldBalance(token); !got.IsZero() {
		t.Fatalf("held balance = %s, want 0", got)
	}
}

func TestRefundReturnsToPayer(t *testing.T) {
	ctx := context.Background()
	mgr, fun := newFixture(t)
	fund(ctx, fun, "alice", 100)

	hold, err := mgr.Hold(ctx, "alice", token, decimal.NewFromInt(25), "offer", "off-1")
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}

	refunded, err := mgr.Refund(ctx, hold.ID)
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if refunded.Status != HoldStatusRefunded {
		t.Fatalf("status = %s, want refunded", refunded.Status)
	}
	if got := balance(t, fun, "alice"); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("payer balance = %s, want 100", got)
	}
}

func TestSettledHoldNeverMovesValueAgain(t *testing.T) {
	ctx := context.Background()
	mgr, fun := newFixture(t)
	fund(ctx, fun, "alice", 100)

	hold, err := mgr.Hold(ctx, "alice", token, decimal.NewFromInt(10), "appointment", "apt-1")
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if _, err := mgr.Release(ctx, hold.ID, "bob"); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if _, err := mgr.Release(ctx, hold.ID, "carol"); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("second release err = %v, want ErrAlreadySettled", err)
	}
	if _, err := mgr.Refund(ctx, hold.ID); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("refund after release err = %v, want ErrAlreadySettled", err)
	}
	if got := balance(t, fun, "bob"); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("payee balance = %s, want 10", got)
	}
}

func TestUnknownHold(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newFixture(t)

	if _, err := mgr.Release(ctx, "nope", "bob"); !errors.Is(err, ErrHoldNotFound) {
		t.Fatalf("err = %v, want ErrHoldNotFound", err)
	}
	if _, err := mgr.Get("nope"); !errors.Is(err, ErrHoldNotFound) {
		t.Fatalf("Get err = %v, want ErrHoldNotFound", err)
	}
}
