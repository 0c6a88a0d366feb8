package pid

import (
	"errors"
	"math"
	"testing"
	"time"
)

func mustNew(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New(%+v): %v", cfg, err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	cases := []struct {
		label string
		cfg   Config
	}{
		{"nan gain", Config{Kp: math.NaN(), OutMin: -1, OutMax: 1}},
		{"inf gain", Config{Kd: math.Inf(1), OutMin: -1, OutMax: 1}},
		{"inverted clamp", Config{Kp: 1, OutMin: 1, OutMax: -1}},
		{"empty clamp", Config{Kp: 1, OutMin: 5, OutMax: 5}},
	}
	for _, tc := range cases {
		if _, err := New(tc.cfg); err == nil {
			t.Errorf("%s: New succeeded, want error", tc.label)
		}
	}
}

// TestCompute_ProportionalOnly: with Kp=1 and no I or D term, the first
// output equals the error regardless of dt.
func TestCompute_ProportionalOnly(t *testing.T) {
	for _, dt := range []time.Duration{time.Millisecond, 20 * time.Millisecond, time.Second} {
		c := mustNew(t, Config{Kp: 1, OutMin: -100, OutMax: 100})
		out, err := c.Compute(10, 0, dt)
		if err != nil {
			t.Fatalf("Compute(dt=%v): %v", dt, err)
		}
		if out != 10 {
			t.Errorf("dt=%v: output = %v, want 10", dt, out)
		}
	}
}

func TestCompute_OutputClamped(t *testing.T) {
	c := mustNew(t, Config{Kp: 2, OutMin: -30, OutMax: 30})

	out, err := c.Compute(100, 0, 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if out != 30 {
		t.Errorf("output = %v, want clamp at 30", out)
	}

	out, err = c.Compute(-100, 0, 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if out != -30 {
		t.Errorf("output = %v, want clamp at -30", out)
	}
}

func TestCompute_NonPositiveDT(t *testing.T) {
	c := mustNew(t, Config{Kp: 1, OutMin: -1, OutMax: 1})
	if _, err := c.Compute(1, 0, 0); !errors.Is(err, ErrNonPositiveDT) {
		t.Errorf("dt=0: err = %v, want ErrNonPositiveDT", err)
	}
	if _, err := c.Compute(1, 0, -time.Millisecond); !errors.Is(err, ErrNonPositiveDT) {
		t.Errorf("dt<0: err = %v, want ErrNonPositiveDT", err)
	}
}

// TestCompute_AntiWindup: with a pure integral controller held at a large
// error, the accumulated term stops growing at the configured limit.
func TestCompute_AntiWindup(t *testing.T) {
	c := mustNew(t, Config{Ki: 1, IntegralLimit: 2, OutMin: -100, OutMax: 100})

	var out float64
	var err error
	for i := 0; i < 50; i++ {
		out, err = c.Compute(10, 0, 100*time.Millisecond)
		if err != nil {
			t.Fatal(err)
		}
	}
	if out != 2 {
		t.Errorf("saturated output = %v, want integral limit 2", out)
	}

	// After the error flips sign, the loop recovers from the limit
	// rather than from an unbounded accumulator.
	out, err = c.Compute(-10, 0, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if out != 1 {
		t.Errorf("first recovery output = %v, want 1", out)
	}
}

// TestCompute_NoDerivativeKick: the first sample after New or Reset has
// no error history, so Kd contributes nothing until the second sample.
func TestCompute_NoDerivativeKick(t *testing.T) {
	c := mustNew(t, Config{Kd: 1, OutMin: -1000, OutMax: 1000})
	dt := 100 * time.Millisecond

	out, err := c.Compute(50, 0, dt)
	if err != nil {
		t.Fatal(err)
	}
	if out != 0 {
		t.Errorf("first output = %v, want 0 (no derivative kick)", out)
	}

	// Error falls 50 -> 40 over 0.1s: derivative -100.
	out, err = c.Compute(50, 10, dt)
	if err != nil {
		t.Fatal(err)
	}
	if out != -100 {
		t.Errorf("second output = %v, want -100", out)
	}

	c.Reset()
	out, err = c.Compute(50, 10, dt)
	if err != nil {
		t.Fatal(err)
	}
	if out != 0 {
		t.Errorf("first output after Reset = %v, want 0", out)
	}
}

// TestReset_NoCarryover replays the same error sequence before and after
// a Reset and requires identical outputs, proving no state leaks through.
func TestReset_NoCarryover(t *testing.T) {
	c := mustNew(t, Config{Kp: 2, Ki: 0.5, Kd: 0.1, IntegralLimit: 10, OutMin: -100, OutMax: 100})
	dt := 20 * time.Millisecond
	seq := []float64{5, 3, -1, -4, 2, 0, 7}

	run := func() []float64 {
		outs := make([]float64, 0, len(seq))
		for _, e := range seq {
			out, err := c.Compute(e, 0, dt)
			if err != nil {
				t.Fatal(err)
			}
			outs = append(outs, out)
		}
		return outs
	}

	first := run()
	c.Reset()
	second := run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("output %d diverged after reset: %v vs %v", i, first[i], second[i])
		}
	}
}
