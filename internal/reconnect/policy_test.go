package reconnect

import "testing"

func TestPolicyKinds(t *testing.T) {
	t.Run("never", func(t *testing.T) {
		p := NewNever()
		if p.Kind() != Never {
			t.Fatalf("expected Never, got %v", p.Kind())
		}
	})

	t.Run("always", func(t *testing.T) {
		p := NewAlways()
		if p.Kind() != Always {
			t.Fatalf("expected Always, got %v", p.Kind())
		}
	})

	t.Run("attempts carries max", func(t *testing.T) {
		p := NewAttempts(3)
		if p.Kind() != Attempts {
			t.Fatalf("expected Attempts, got %v", p.Kind())
		}
		if p.Max() != 3 {
			t.Fatalf("expected max=3, got %d", p.Max())
		}
	})

	t.Run("attempts zero is a valid boundary", func(t *testing.T) {
		p := NewAttempts(0)
		if p.Max() != 0 {
			t.Fatalf("expected max=0, got %d", p.Max())
		}
	})
}
