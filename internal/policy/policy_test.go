package policy

import "testing"

func TestNewUnknownPolicy(t *testing.T) {
	if _, err := New("genius", 1, 0); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestRandomBounds(t *testing.T) {
	p := NewRandom(2, 3.0, 1)
	for i := 0; i < 100; i++ {
		u := p.Action(nil)
		if len(u) != 2 {
			t.Fatalf("expected 2 controls, got %d", len(u))
		}
		for _, v := range u {
			if v < -3.0 || v > 3.0 {
				t.Fatalf("control %f out of bounds", v)
			}
		}
	}
}

func TestRandomSeeded(t *testing.T) {
	a := NewRandom(1, 1.0, 7)
	b := NewRandom(1, 1.0, 7)
	for i := 0; i < 10; i++ {
		if a.Action(nil)[0] != b.Action(nil)[0] {
			t.Fatal("same seed produced different sequences")
		}
	}
}

func TestZero(t *testing.T) {
	p := &Zero{Dim: 3}
	u := p.Action([]float64{1, 2})
	if len(u) != 3 {
		t.Fatalf("expected 3 controls, got %d", len(u))
	}
	for _, v := range u {
		if v != 0 {
			t.Errorf("expected zero control, got %f", v)
		}
	}
}

func TestPDDrivesTowardTarget(t *testing.T) {
	p := NewPD(2.0, 0.5, 0.0, 0, 1)

	// Positive error (obs below target) yields positive drive.
	u := p.Action([]float64{-1.0, 0})
	if u[0] <= 0 {
		t.Errorf("expected positive control below target, got %f", u[0])
	}

	// Velocity damps the response.
	damped := p.Action([]float64{-1.0, 2.0})
	if damped[0] >= u[0] {
		t.Errorf("expected damping to reduce control: %f >= %f", damped[0], u[0])
	}
}

func TestPDShortObservation(t *testing.T) {
	p := NewPD(1, 1, 0, 2, 3)
	u := p.Action([]float64{0.5})
	if len(u) != 1 || u[0] != 0 {
		t.Errorf("expected zero control for short observation, got %v", u)
	}
}
