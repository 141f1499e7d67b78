package dsp

import "testing"

func settle(c *Cascade, x float64, n int) float64 {
	var y float64
	for i := 0; i < n; i++ {
		y = c.Process(x)
	}
	return y
}

func TestLPF_PassesDCUnity(t *testing.T) {
	c := NewCascade(CoeffsFor(LPF35Hz))
	y := settle(c, 1.0, 500)
	if diff := y - 1.0; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("expected low-pass DC gain of 1.0, got %v", y)
	}
}

func TestHPF_BlocksDC(t *testing.T) {
	c := NewCascade(CoeffsFor(HPF05Hz))
	y := settle(c, 1.0, 2000)
	if diff := y; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("expected high-pass to null out a DC input, got %v", y)
	}
}

func TestNotch_PassesDCUnity(t *testing.T) {
	c := NewCascade(CoeffsFor(Notch50Hz))
	y := settle(c, 1.0, 2000)
	if diff := y - 1.0; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("expected notch DC gain of 1.0, got %v", y)
	}
}

func TestCascade_BoundedForBoundedInput(t *testing.T) {
	c := NewCascade(CoeffsFor(AEEGBand))
	for i := 0; i < 5000; i++ {
		x := 1.0
		if i%2 == 0 {
			x = -1.0
		}
		y := c.Process(x)
		if y > 100 || y < -100 {
			t.Fatalf("cascade output diverged at sample %d: %v", i, y)
		}
	}
}

func TestCascade_ResetClearsState(t *testing.T) {
	c := NewCascade(CoeffsFor(LPF15Hz))
	settle(c, 1.0, 50)
	c.Reset()
	y := c.Process(0)
	if y != 0 {
		t.Errorf("expected zero output from a freshly reset cascade fed zero, got %v", y)
	}
}
