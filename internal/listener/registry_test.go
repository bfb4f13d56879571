package listener

import "testing"

func TestRegistryReadyOnceAllSatisfied(t *testing.T) {
	r := NewRegistry()
	r.Require(Type{Transport: TCP})
	r.Require(Type{Transport: QUIC})

	if r.Ready() {
		t.Fatal("expected not ready before any satisfy")
	}

	if !r.Satisfy(Type{Transport: TCP}) {
		t.Fatal("expected Satisfy to report true for a required type")
	}
	if r.Ready() {
		t.Fatal("expected still not ready with one requirement left")
	}

	if !r.Satisfy(Type{Transport: QUIC}) {
		t.Fatal("expected Satisfy to report true for the second required type")
	}
	if !r.Ready() {
		t.Fatal("expected ready once all requirements satisfied")
	}
}

func TestSatisfyUnrequiredTypeReportsFalse(t *testing.T) {
	r := NewRegistry()
	r.Require(Type{Transport: TCP})

	if r.Satisfy(Type{Transport: WebSocket}) {
		t.Fatal("expected Satisfy to report false for a type never required")
	}
}

func TestDropRemovesRequirementWithoutAnAddress(t *testing.T) {
	r := NewRegistry()
	r.Require(Type{Transport: TCP})
	r.Require(Type{Transport: QUIC})

	r.Drop(Type{Transport: QUIC})

	if r.Ready() {
		t.Fatal("expected not ready, TCP still required")
	}
	r.Satisfy(Type{Transport: TCP})
	if !r.Ready() {
		t.Fatal("expected ready once the only remaining requirement is satisfied")
	}
}

func TestNoRequirementsStartsReady(t *testing.T) {
	r := NewRegistry()
	if !r.Ready() {
		t.Fatal("expected an empty registry to already be ready")
	}
}

func TestActiveTracksMarkedAddresses(t *testing.T) {
	r := NewRegistry()
	r.MarkActive("/ip4/0.0.0.0/tcp/4001")
	r.MarkActive("/ip4/0.0.0.0/tcp/4002")

	if len(r.Active()) != 2 {
		t.Fatalf("expected 2 active addresses, got %d", len(r.Active()))
	}

	r.ClearActive()
	if len(r.Active()) != 0 {
		t.Fatalf("expected 0 active addresses after clear, got %d", len(r.Active()))
	}
}
