package money

import "testing"

func TestRound2(t *testing.T) {
	checks := []struct {
		in   float64
		want float64
	}{
		{19.444, 19.44},
		{19.445000001, 19.45},
		{0.125, 0.13}, // 0.125 is exactly representable, rounds away from zero
		{-0.125, -0.13},
		{2.0, 2.0},
		{-19.444, -19.44},
		{10.0 / 3.0, 3.33},
	}
	for _, c := range checks {
		if got := Round2(c.in); got != c.want {
			t.Fatalf("Round2(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestGTE(t *testing.T) {
	if !GTE(19.44, 19.44) {
		t.Fatalf("equal amounts should satisfy GTE")
	}
	if !GTE(19.435, 19.44) {
		t.Fatalf("difference inside epsilon should satisfy GTE")
	}
	if GTE(19.00, 19.44) {
		t.Fatalf("short by 0.44 should not satisfy GTE")
	}
}

func TestEqual(t *testing.T) {
	if !Equal(0.1+0.2, 0.3) {
		t.Fatalf("expected float drift within epsilon to compare equal")
	}
	if Equal(1.00, 1.02) {
		t.Fatalf("expected 0.02 gap to compare unequal")
	}
}
