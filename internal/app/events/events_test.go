package events

import "testing"

func TestBusRetainsBoundedRing(t *testing.T) {
	bus := NewBus(3)
	for i := 0; i < 5; i++ {
		bus.Emit(Record{EntityKind: KindOffer, EntityID: string(rune('a' + i))})
	}

	recent := bus.Recent()
	if len(recent) != 3 {
		t.Fatalf("len(recent) = %d, want 3", len(recent))
	}
	if recent[0].EntityID != "c" || recent[2].EntityID != "e" {
		t.Fatalf("ring = %v, want oldest c newest e", recent)
	}
}

func TestBusFillsTimestamp(t *testing.T) {
	bus := NewBus(0)
	bus.Emit(Record{EntityKind: KindCollateral, EntityID: "1", NewState: "open"})

	recent := bus.Recent()
	if len(recent) != 1 {
		t.Fatalf("len(recent) = %d, want 1", len(recent))
	}
	if recent[0].Timestamp.IsZero() {
		t.Fatal("timestamp not filled")
	}
}

func TestBusSubscribeAndUnsubscribe(t *testing.T) {
	bus := NewBus(0)

	var got []Record
	unsubscribe := bus.Subscribe(func(rec Record) {
		got = append(got, rec)
	})

	bus.Emit(Record{EntityKind: KindAppointment, EntityID: "1"})
	unsubscribe()
	bus.Emit(Record{EntityKind: KindAppointment, EntityID: "2"})

	if len(got) != 1 {
		t.Fatalf("handler saw %d records, want 1", len(got))
	}
	if got[0].EntityID != "1" {
		t.Fatalf("handler saw %s, want 1", got[0].EntityID)
	}
}
