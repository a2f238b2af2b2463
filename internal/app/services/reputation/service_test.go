package reputation

import (
	"context"
	"errors"
	"testing"

	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/hub"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/reputation"
	"github.com/DFY-Network/pawnshop_layer/internal/app/events"
	"github.com/DFY-Network/pawnshop_layer/internal/app/storage/memory"
)

func TestRecordActivityRequiresWhitelistedCaller(t *testing.T) {
	svc := New(memory.New(), events.NewBus(0), nil)

	_, err := svc.RecordActivity(context.Background(), "rogue", "alice", reputation.ReasonLenderCreateOffer)
	if !errors.Is(err, hub.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestRecordActivityAccumulatesPoints(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), events.NewBus(0), nil)
	svc.AddWhitelistedCaller("lending")

	score, err := svc.RecordActivity(ctx, "lending", "alice", reputation.ReasonBorrowerCreateCollateral)
	if err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	if score.Points != 3 {
		t.Fatalf("points = %d, want 3", score.Points)
	}

	score, err = svc.RecordActivity(ctx, "LENDING", "alice", reputation.ReasonBorrowerAcceptOffer)
	if err != nil {
		t.Fatalf("caller lookup should be case-insensitive: %v", err)
	}
	if score.Points != 4 {
		t.Fatalf("points = %d, want 4", score.Points)
	}

	history, err := svc.History(ctx, "alice")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
}

func TestRecordActivityRejectsUnknownReason(t *testing.T) {
	svc := New(memory.New(), events.NewBus(0), nil)
	svc.AddWhitelistedCaller("lending")

	if _, err := svc.RecordActivity(context.Background(), "lending", "alice", "made.up"); err == nil {
		t.Fatal("expected error for unknown reason")
	}
}

func TestScoreReadsZeroForUnknownAccount(t *testing.T) {
	svc := New(memory.New(), events.NewBus(0), nil)

	score, err := svc.Score(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score.Points != 0 {
		t.Fatalf("points = %d, want 0", score.Points)
	}
}
