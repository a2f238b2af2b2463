package system

import (
	"context"
	"errors"
	"testing"
)

type recordingService struct {
	name     string
	log      *[]string
	startErr error
}

func (r *recordingService) Name() string { return r.name }

func (r *recordingService) Start(context.Context) error {
	*r.log = append(*r.log, "start "+r.name)
	return r.startErr
}

func (r *recordingService) Stop(context.Context) error {
	*r.log = append(*r.log, "stop "+r.name)
	return nil
}

func TestManagerStartsInOrderStopsInReverse(t *testing.T) {
	var order []string

	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&recordingService{name: name, log: &order}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestManagerStartFailureStopsStartedServices(t *testing.T) {
	var order []string
	boom := errors.New("boom")

	m := NewManager()
	if err := m.Register(&recordingService{name: "a", log: &order}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(&recordingService{name: "b", log: &order, startErr: boom}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err := m.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Start err = %v, want boom", err)
	}

	want := []string{"start a", "start b", "stop a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestManagerRejectsRegistrationAfterStart(t *testing.T) {
	m := NewManager()
	if err := m.Register(NoopService{ServiceName: "a"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Register(NoopService{ServiceName: "b"}); err == nil {
		t.Fatal("expected registration after start to fail")
	}
}

func TestManagerRejectsNilService(t *testing.T) {
	m := NewManager()
	if err := m.Register(nil); err == nil {
		t.Fatal("expected error for nil service")
	}
}
