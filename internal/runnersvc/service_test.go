package runnersvc

import (
	"log/slog"
	"os"
	"testing"
)

func newTestService() *Service {
	return New(nil, nil, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestInFlightTracking(t *testing.T) {
	t.Run("cancelAll invokes every registered cancel for the project", func(t *testing.T) {
		s := newTestService()
		var canceledA, canceledB bool
		s.register("proj", "a", func() { canceledA = true })
		s.register("proj", "b", func() { canceledB = true })

		s.cancelAll("proj")

		if !canceledA || !canceledB {
			t.Fatalf("expected both cancels invoked, got a=%v b=%v", canceledA, canceledB)
		}
		if len(s.inFlight["proj"]) != 0 {
			t.Fatalf("expected in-flight entries cleared for proj")
		}
	})

	t.Run("cancelAll leaves other projects untouched", func(t *testing.T) {
		s := newTestService()
		var canceledOther bool
		s.register("proj-a", "x", func() {})
		s.register("proj-b", "y", func() { canceledOther = true })

		s.cancelAll("proj-a")

		if canceledOther {
			t.Fatalf("expected proj-b's cancel not to be invoked")
		}
		if _, ok := s.inFlight["proj-b"]; !ok {
			t.Fatalf("expected proj-b still tracked")
		}
	})

	t.Run("unregister removes only the named token", func(t *testing.T) {
		s := newTestService()
		s.register("proj", "a", func() {})
		s.register("proj", "b", func() {})

		s.unregister("proj", "a")

		if _, ok := s.inFlight["proj"]["a"]; ok {
			t.Fatalf("expected token a removed")
		}
		if _, ok := s.inFlight["proj"]["b"]; !ok {
			t.Fatalf("expected token b to remain")
		}
	})

	t.Run("unregistering the last token drops the project entry", func(t *testing.T) {
		s := newTestService()
		s.register("proj", "a", func() {})
		s.unregister("proj", "a")

		if _, ok := s.inFlight["proj"]; ok {
			t.Fatalf("expected project entry removed once empty")
		}
	})
}
