package hub

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	domain "github.com/DFY-Network/pawnshop_layer/internal/app/domain/hub"
	"github.com/DFY-Network/pawnshop_layer/internal/app/events"
	"github.com/DFY-Network/pawnshop_layer/internal/app/storage/memory"
)

const admin = "admin"

func newService(t *testing.T) *Service {
	t.Helper()
	svc := New(memory.New(), events.NewBus(0), nil)
	if err := svc.Bootstrap(context.Background(), admin); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return svc
}

func TestBootstrapGrantsAdmin(t *testing.T) {
	svc := newService(t)

	ok, err := svc.HasRole(context.Background(), domain.RoleAdmin, admin)
	if err != nil {
		t.Fatalf("HasRole: %v", err)
	}
	if !ok {
		t.Fatal("bootstrap account is not admin")
	}
}

func TestRegisterContractRequiresAdmin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.RegisterContract(ctx, "mallory", "lending", "0x1", "v1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}

	reg, err := svc.RegisterContract(ctx, admin, "lending", "0x1", "v1")
	if err != nil {
		t.Fatalf("RegisterContract: %v", err)
	}
	if reg.Name != "lending" || reg.Address != "0x1" {
		t.Fatalf("registration = %+v", reg)
	}

	// Re-registering replaces the address.
	if _, err := svc.RegisterContract(ctx, admin, "lending", "0x2", "v2"); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	got, err := svc.ContractOf(ctx, "lending")
	if err != nil {
		t.Fatalf("ContractOf: %v", err)
	}
	if got.Address != "0x2" {
		t.Fatalf("address = %s, want 0x2", got.Address)
	}
}

func TestSystemConfigLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.SystemConfig(ctx); !errors.Is(err, domain.ErrConfigNotFound) {
		t.Fatalf("empty config err = %v, want ErrConfigNotFound", err)
	}

	if _, err := svc.SetFeeWallet(ctx, admin, "treasury"); err != nil {
		t.Fatalf("SetFeeWallet: %v", err)
	}
	cfg, err := svc.SetFeeToken(ctx, admin, "DFY")
	if err != nil {
		t.Fatalf("SetFeeToken: %v", err)
	}
	if cfg.FeeWallet != "treasury" || cfg.FeeToken != "DFY" {
		t.Fatalf("config = %+v", cfg)
	}

	if _, err := svc.SetFeeWallet(ctx, "mallory", "evil"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestFeeScheduleRoundTrip(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.FeeSchedule(ctx, "DFY"); !errors.Is(err, domain.ErrConfigNotFound) {
		t.Fatalf("unset schedule err = %v, want ErrConfigNotFound", err)
	}

	if _, err := svc.SetFeeSchedule(ctx, admin, domain.FeeSchedule{
		FeeToken:      "DFY",
		EvaluationFee: decimal.NewFromInt(-1),
	}); err == nil {
		t.Fatal("expected error for negative fee")
	}

	if _, err := svc.SetFeeSchedule(ctx, admin, domain.FeeSchedule{
		FeeToken:      "DFY",
		EvaluationFee: decimal.NewFromInt(10),
		MintingFee:    decimal.NewFromInt(15),
	}); err != nil {
		t.Fatalf("SetFeeSchedule: %v", err)
	}

	got, err := svc.FeeSchedule(ctx, "DFY")
	if err != nil {
		t.Fatalf("FeeSchedule: %v", err)
	}
	if !got.EvaluationFee.Equal(decimal.NewFromInt(10)) || !got.MintingFee.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("schedule = %+v", got)
	}
}

func TestGrantAndRevokeRole(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if err := svc.GrantRole(ctx, "mallory", domain.RoleOperator, "mallory"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}

	if err := svc.GrantRole(ctx, admin, domain.RoleOperator, "olive"); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	ok, _ := svc.HasRole(ctx, domain.RoleOperator, "olive")
	if !ok {
		t.Fatal("role not granted")
	}

	if err := svc.RevokeRole(ctx, admin, domain.RoleOperator, "olive"); err != nil {
		t.Fatalf("RevokeRole: %v", err)
	}
	ok, _ = svc.HasRole(ctx, domain.RoleOperator, "olive")
	if ok {
		t.Fatal("role not revoked")
	}
}

func TestCollateralWhitelist(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	ok, err := svc.IsWhitelistedCollateral(ctx, "0xapes")
	if err != nil {
		t.Fatalf("IsWhitelistedCollateral: %v", err)
	}
	if ok {
		t.Fatal("unlisted contract reported whitelisted")
	}

	if err := svc.WhitelistCollateral(ctx, admin, "0xapes", "nft-721"); err != nil {
		t.Fatalf("WhitelistCollateral: %v", err)
	}
	ok, _ = svc.IsWhitelistedCollateral(ctx, "0xAPES")
	if !ok {
		t.Fatal("whitelist lookup is not case-insensitive")
	}
}

func TestOperatorManagesCollateralWhitelist(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if err := svc.WhitelistCollateral(ctx, "olive", "0xpunks", "nft-721"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("whitelist without role err = %v, want ErrUnauthorized", err)
	}

	if err := svc.GrantRole(ctx, admin, domain.RoleOperator, "olive"); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	if err := svc.WhitelistCollateral(ctx, "olive", "0xpunks", "nft-721"); err != nil {
		t.Fatalf("WhitelistCollateral by operator: %v", err)
	}
	ok, err := svc.IsWhitelistedCollateral(ctx, "0xpunks")
	if err != nil {
		t.Fatalf("IsWhitelistedCollateral: %v", err)
	}
	if !ok {
		t.Fatal("operator-whitelisted contract not listed")
	}
}

func TestEvaluatorRegistry(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	rec, err := svc.AcceptEvaluator(ctx, admin, "eve")
	if err != nil {
		t.Fatalf("AcceptEvaluator: %v", err)
	}
	if rec.Status != domain.EvaluatorAccepted {
		t.Fatalf("record status = %s, want accepted", rec.Status)
	}
	ok, _ := svc.HasRole(ctx, domain.RoleEvaluator, "eve")
	if !ok {
		t.Fatal("evaluator role not granted")
	}

	rec, err = svc.RemoveEvaluator(ctx, admin, "eve")
	if err != nil {
		t.Fatalf("RemoveEvaluator: %v", err)
	}
	if rec.Status != domain.EvaluatorCancelled {
		t.Fatalf("record status = %s, want cancelled", rec.Status)
	}
	ok, _ = svc.HasRole(ctx, domain.RoleEvaluator, "eve")
	if ok {
		t.Fatal("evaluator role not revoked")
	}

	history, err := svc.EvaluatorHistory(ctx, "eve")
	if err != nil {
		t.Fatalf("EvaluatorHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want accept and remove", len(history))
	}
}
