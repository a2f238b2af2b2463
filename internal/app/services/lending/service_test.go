package lending

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/hub"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/lending"
	"github.com/DFY-Network/pawnshop_layer/internal/app/events"
	"github.com/DFY-Network/pawnshop_layer/internal/app/exchange"
	"github.com/DFY-Network/pawnshop_layer/internal/app/ledger"
	hubsvc "github.com/DFY-Network/pawnshop_layer/internal/app/services/hub"
	reputationsvc "github.com/DFY-Network/pawnshop_layer/internal/app/services/reputation"
	"github.com/DFY-Network/pawnshop_layer/internal/app/storage/memory"
)

const (
	admin      = "admin"
	borrower   = "bob"
	lenderOne  = "lena"
	lenderTwo  = "luke"
	engine     = "engine"
	collection = "0xapes"
	loanAsset  = "DFY"
)

type fixture struct {
	svc *Service
	hub *hubsvc.Service
	rep *reputationsvc.Service
	fun *ledger.MemoryFungible
	nft *ledger.MemoryNonFungible
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	mem := memory.New()
	bus := events.NewBus(0)

	hubSvc := hubsvc.New(mem, bus, nil)
	if err := hubSvc.Bootstrap(ctx, admin); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := hubSvc.WhitelistCollateral(ctx, admin, collection, "nft-721"); err != nil {
		t.Fatalf("WhitelistCollateral: %v", err)
	}

	fun := ledger.NewMemoryFungible()
	for _, lender := range []string{lenderOne, lenderTwo} {
		fun.Mint(ctx, loanAsset, lender, decimal.NewFromInt(1000))
		fun.Approve(ctx, loanAsset, lender, engine, decimal.NewFromInt(1000))
	}

	nft := ledger.NewMemoryNonFungible()

	rates := exchange.NewStatic()
	rates.Set(loanAsset, "USDT", decimal.NewFromFloat(0.5))

	repSvc := reputationsvc.New(mem, bus, nil)
	repSvc.AddWhitelistedCaller(CallerName)

	return &fixture{
		svc: New(mem, hubSvc, fun, nft, rates, engine, bus, repSvc, nil),
		hub: hubSvc,
		rep: repSvc,
		fun: fun,
		nft: nft,
	}
}

// mintToken gives the borrower a pledgeable NFT and returns its id.
func (f *fixture) mintToken(t *testing.T) string {
	t.Helper()
	id, err := f.nft.Mint(context.Background(), collection, borrower, "")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return id
}

func (f *fixture) pledge(t *testing.T, tokenID string) lending.Collateral {
	t.Helper()
	col, err := f.svc.PutOnPawn(context.Background(), borrower, lending.Collateral{
		TokenContract:      collection,
		TokenID:            tokenID,
		TokenStandard:      "nft-721",
		TokenQuantity:      1,
		ExpectedLoanAmount: decimal.NewFromInt(100),
		LoanAsset:          loanAsset,
		DurationQty:        4,
		DurationType:       lending.DurationWeek,
		RepaymentCycleType: lending.DurationWeek,
	})
	if err != nil {
		t.Fatalf("PutOnPawn: %v", err)
	}
	return col
}

func (f *fixture) offer(t *testing.T, lender, collateralID string, amount int64) lending.Offer {
	t.Helper()
	offer, err := f.svc.CreateOffer(context.Background(), lender, lending.Offer{
		CollateralID:       collateralID,
		RepaymentAsset:     "USDT",
		LoanAmount:         decimal.NewFromInt(amount),
		InterestRate:       decimal.NewFromFloat(0.12),
		LoanDurationType:   lending.DurationWeek,
		RepaymentCycleType: lending.DurationWeek,
	})
	if err != nil {
		t.Fatalf("CreateOffer(%s): %v", lender, err)
	}
	return offer
}

func TestPutOnPawnTakesCustody(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokenID := f.mintToken(t)
	col := f.pledge(t, tokenID)

	if col.Status != lending.CollateralStatusOpen {
		t.Fatalf("status = %s, want open", col.Status)
	}
	owner, err := f.nft.OwnerOf(ctx, collection, tokenID)
	if err != nil || owner != engine {
		t.Fatalf("token owner = %s, %v; want engine custody", owner, err)
	}
}

func TestPutOnPawnRejectsUnlistedContract(t *testing.T) {
	f := newFixture(t)
	tokenID := f.mintToken(t)

	_, err := f.svc.PutOnPawn(context.Background(), borrower, lending.Collateral{
		TokenContract:      "0xunknown",
		TokenID:            tokenID,
		ExpectedLoanAmount: decimal.NewFromInt(100),
		LoanAsset:          loanAsset,
		DurationQty:        4,
		DurationType:       lending.DurationWeek,
	})
	if !errors.Is(err, hub.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestPutOnPawnValidation(t *testing.T) {
	f := newFixture(t)
	base := lending.Collateral{
		TokenContract:      collection,
		TokenID:            "1",
		ExpectedLoanAmount: decimal.NewFromInt(100),
		LoanAsset:          loanAsset,
		DurationQty:        4,
		DurationType:       lending.DurationWeek,
	}

	mutate := []struct {
		name string
		fn   func(c *lending.Collateral)
	}{
		{"zero amount", func(c *lending.Collateral) { c.ExpectedLoanAmount = decimal.Zero }},
		{"missing loan asset", func(c *lending.Collateral) { c.LoanAsset = "" }},
		{"zero duration", func(c *lending.Collateral) { c.DurationQty = 0 }},
		{"bad duration type", func(c *lending.Collateral) { c.DurationType = "day" }},
		{"missing token id", func(c *lending.Collateral) { c.TokenID = "" }},
	}
	for _, tc := range mutate {
		t.Run(tc.name, func(t *testing.T) {
			col := base
			tc.fn(&col)
			if _, err := f.svc.PutOnPawn(context.Background(), borrower, col); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateOfferRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	col := f.pledge(t, f.mintToken(t))

	// Owner cannot lend to themselves.
	_, err := f.svc.CreateOffer(ctx, borrower, lending.Offer{
		CollateralID:   col.ID,
		RepaymentAsset: "USDT",
		LoanAmount:     decimal.NewFromInt(100),
	})
	if !errors.Is(err, hub.ErrUnauthorized) {
		t.Fatalf("self-offer err = %v, want ErrUnauthorized", err)
	}

	// Underfunded lenders cannot offer.
	_, err = f.svc.CreateOffer(ctx, lenderOne, lending.Offer{
		CollateralID:   col.ID,
		RepaymentAsset: "USDT",
		LoanAmount:     decimal.NewFromInt(5000),
	})
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("underfunded err = %v, want ErrInsufficientBalance", err)
	}

	f.offer(t, lenderOne, col.ID, 100)

	// One pending offer per lender per collateral.
	_, err = f.svc.CreateOffer(ctx, lenderOne, lending.Offer{
		CollateralID:   col.ID,
		RepaymentAsset: "USDT",
		LoanAmount:     decimal.NewFromInt(120),
	})
	if !errors.Is(err, hub.ErrInvalidState) {
		t.Fatalf("duplicate err = %v, want ErrInvalidState", err)
	}
}

func TestAcceptOfferMovesPrincipalAndCancelsSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	col := f.pledge(t, f.mintToken(t))
	chosen := f.offer(t, lenderOne, col.ID, 100)
	rival := f.offer(t, lenderTwo, col.ID, 120)

	if _, err := f.svc.AcceptOffer(ctx, lenderTwo, chosen.ID); !errors.Is(err, hub.ErrUnauthorized) {
		t.Fatalf("accept by non-owner err = %v, want ErrUnauthorized", err)
	}

	lc, err := f.svc.AcceptOffer(ctx, borrower, chosen.ID)
	if err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}

	if lc.Terms.Borrower != borrower || lc.Terms.Lender != lenderOne {
		t.Fatalf("terms parties = %s/%s, want %s/%s", lc.Terms.Borrower, lc.Terms.Lender, borrower, lenderOne)
	}
	if !lc.Terms.LoanAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("loan amount = %s, want 100", lc.Terms.LoanAmount)
	}
	if !lc.Terms.ExchangeRate.Equal(decimal.NewFromFloat(0.5)) {
		t.Fatalf("exchange rate = %s, want 0.5 captured at acceptance", lc.Terms.ExchangeRate)
	}

	bal, _ := f.fun.BalanceOf(ctx, loanAsset, borrower)
	if !bal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("borrower balance = %s, want 100", bal)
	}
	bal, _ = f.fun.BalanceOf(ctx, loanAsset, lenderOne)
	if !bal.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("lender balance = %s, want 900", bal)
	}

	got, _ := f.svc.GetOffer(ctx, rival.ID)
	if got.Status != lending.OfferStatusCancel {
		t.Fatalf("rival status = %s, want cancel", got.Status)
	}
	updated, _ := f.svc.GetCollateral(ctx, col.ID)
	if updated.Status != lending.CollateralStatusDoing {
		t.Fatalf("collateral status = %s, want doing", updated.Status)
	}

	// The collateral is in a loan now; nothing else can touch it.
	if _, err := f.svc.AcceptOffer(ctx, borrower, rival.ID); !errors.Is(err, hub.ErrInvalidState) {
		t.Fatalf("accept on doing collateral err = %v, want ErrInvalidState", err)
	}
	if _, err := f.svc.WithdrawCollateral(ctx, borrower, col.ID); !errors.Is(err, hub.ErrInvalidState) {
		t.Fatalf("withdraw during loan err = %v, want ErrInvalidState", err)
	}

	borrowerScore, _ := f.rep.Score(ctx, borrower)
	if borrowerScore.Points != 4 {
		t.Fatalf("borrower points = %d, want 3 for pledging + 1 for accepting", borrowerScore.Points)
	}
	lenderScore, _ := f.rep.Score(ctx, lenderOne)
	if lenderScore.Points != 5 {
		t.Fatalf("lender points = %d, want 2 for offering + 3 for acceptance", lenderScore.Points)
	}
}

func TestAcceptOfferRequiresExchangeRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	col := f.pledge(t, f.mintToken(t))
	offer, err := f.svc.CreateOffer(ctx, lenderOne, lending.Offer{
		CollateralID:     col.ID,
		RepaymentAsset:   "EUR",
		LoanAmount:       decimal.NewFromInt(100),
		LoanDurationType: lending.DurationWeek,
	})
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}

	_, err = f.svc.AcceptOffer(ctx, borrower, offer.ID)
	if !errors.Is(err, exchange.ErrRateUnavailable) {
		t.Fatalf("err = %v, want ErrRateUnavailable", err)
	}

	// The failed acceptance must leave everything untouched.
	got, _ := f.svc.GetOffer(ctx, offer.ID)
	if got.Status != lending.OfferStatusPending {
		t.Fatalf("offer status = %s, want still pending", got.Status)
	}
	bal, _ := f.fun.BalanceOf(ctx, loanAsset, lenderOne)
	if !bal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("lender balance = %s, want untouched 1000", bal)
	}
}

func TestCancelOfferByLenderAndOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	col := f.pledge(t, f.mintToken(t))
	offerA := f.offer(t, lenderOne, col.ID, 100)
	offerB := f.offer(t, lenderTwo, col.ID, 110)

	if _, err := f.svc.CancelOffer(ctx, lenderTwo, offerA.ID); !errors.Is(err, hub.ErrUnauthorized) {
		t.Fatalf("cancel by stranger err = %v, want ErrUnauthorized", err)
	}

	cancelled, err := f.svc.CancelOffer(ctx, lenderOne, offerA.ID)
	if err != nil || cancelled.Status != lending.OfferStatusCancel {
		t.Fatalf("lender cancel = %+v, %v", cancelled, err)
	}
	cancelled, err = f.svc.CancelOffer(ctx, borrower, offerB.ID)
	if err != nil || cancelled.Status != lending.OfferStatusCancel {
		t.Fatalf("owner cancel = %+v, %v", cancelled, err)
	}

	if _, err := f.svc.CancelOffer(ctx, lenderOne, offerA.ID); !errors.Is(err, hub.ErrInvalidState) {
		t.Fatalf("double cancel err = %v, want ErrInvalidState", err)
	}
}

func TestWithdrawCollateralReturnsTokenOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokenID := f.mintToken(t)
	col := f.pledge(t, tokenID)
	pending := f.offer(t, lenderOne, col.ID, 100)

	if _, err := f.svc.WithdrawCollateral(ctx, lenderOne, col.ID); !errors.Is(err, hub.ErrUnauthorized) {
		t.Fatalf("withdraw by stranger err = %v, want ErrUnauthorized", err)
	}

	withdrawn, err := f.svc.WithdrawCollateral(ctx, borrower, col.ID)
	if err != nil {
		t.Fatalf("WithdrawCollateral: %v", err)
	}
	if withdrawn.Status != lending.CollateralStatusCancel {
		t.Fatalf("status = %s, want cancel", withdrawn.Status)
	}

	owner, _ := f.nft.OwnerOf(ctx, collection, tokenID)
	if owner != borrower {
		t.Fatalf("token owner = %s, want returned to borrower", owner)
	}
	got, _ := f.svc.GetOffer(ctx, pending.ID)
	if got.Status != lending.OfferStatusCancel {
		t.Fatalf("pending offer status = %s, want cancel", got.Status)
	}

	if _, err := f.svc.WithdrawCollateral(ctx, borrower, col.ID); !errors.Is(err, hub.ErrInvalidState) {
		t.Fatalf("second withdraw err = %v, want ErrInvalidState", err)
	}
}
