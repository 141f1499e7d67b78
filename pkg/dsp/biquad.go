// Package dsp implements the deterministic filter chains of spec.md §4.4:
// causal Notch/HPF/LPF cascades for live display and zero-phase filtfilt
// for playback, built from fixed, compile-time coefficient tables of
// second-order sections in Direct Form II Transposed. Coefficients are
// never recomputed from design formulas at runtime — doing so would make
// filter response drift across builds.
package dsp

// Biquad is one second-order section in Direct Form II Transposed:
//
//	y[n]  = b0*x[n] + z1
//	z1'   = b1*x[n] - a1*y[n] + z2
//	z2'   = b2*x[n] - a2*y[n]
//
// All coefficients and delay-line state are double precision; using
// single precision here would be a defect per spec.md §4.4.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
	z1, z2     float64
}

// Process filters one sample through this section.
func (bq *Biquad) Process(x float64) float64 {
	y := bq.B0*x + bq.z1
	bq.z1 = bq.B1*x - bq.A1*y + bq.z2
	bq.z2 = bq.B2*x - bq.A2*y
	return y
}

// Reset clears the delay line, used on construction and on gap recovery.
func (bq *Biquad) Reset() {
	bq.z1 = 0
	bq.z2 = 0
}

// Cascade is an ordered chain of SOS sections forming one logical filter
// (e.g. one notch, or the two sections of a 4th-order Butterworth LPF).
// Each channel owns its own Cascade instance; cascades are never shared
// across channels or streams (spec.md §4.4 "Per-channel state").
type Cascade struct {
	Sections []Biquad
}

// NewCascade copies the given coefficient table into a fresh, zero-state
// cascade.
func NewCascade(coeffs []SOSCoeffs) *Cascade {
	c := &Cascade{Sections: make([]Biquad, len(coeffs))}
	for i, co := range coeffs {
		c.Sections[i] = Biquad{B0: co.B0, B1: co.B1, B2: co.B2, A1: co.A1, A2: co.A2}
	}
	return c
}

// Process runs x through every section in series.
func (c *Cascade) Process(x float64) float64 {
	y := x
	for i := range c.Sections {
		y = c.Sections[i].Process(y)
	}
	return y
}

// Reset clears every section's delay line.
func (c *Cascade) Reset() {
	for i := range c.Sections {
		c.Sections[i].Reset()
	}
}

// SOSCoeffs is one second-order section's fixed coefficients.
type SOSCoeffs struct {
	B0, B1, B2 float64
	A1, A2     float64
}
