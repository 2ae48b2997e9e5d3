package govna

import (
	"fmt"
	"math/cmplx"
	"strings"
	"time"
)

// MaxSweepPoints caps a single sweep. Matches the largest point count
// the supported hardware accepts.
const MaxSweepPoints = 10001

// SweepConfig describes one frequency sweep: start and stop in Hz and
// the number of measurement points.
type SweepConfig struct {
	Start  float64
	Stop   float64
	Points int
}

// Validate checks the sweep invariant: 0 < Start < Stop and
// 1 <= Points <= MaxSweepPoints.
func (c SweepConfig) Validate() error {
	if c.Start <= 0 || c.Start >= c.Stop {
		return fmt.Errorf("%w: sweep requires 0 < start < stop, got start=%g stop=%g",
			ErrValidation, c.Start, c.Stop)
	}
	if c.Points < 1 || c.Points > MaxSweepPoints {
		return fmt.Errorf("%w: sweep points must be between 1 and %d, got %d",
			ErrValidation, MaxSweepPoints, c.Points)
	}
	return nil
}

// step returns the frequency spacing of the sweep, 0 for a single
// point.
func (c SweepConfig) step() float64 {
	if c.Points <= 1 {
		return 0
	}
	return (c.Stop - c.Start) / float64(c.Points-1)
}

// VNAData holds one acquisition: parallel slices of frequency, S11 and
// S21, in ascending frequency order.
type VNAData struct {
	Frequencies []float64
	S11, S21    []complex128
}

// ToTouchstone renders the measurement as Touchstone (.s2p) text:
// frequency in Hz, S-parameters as real/imaginary pairs, 50 Ohm
// reference.
func (d *VNAData) ToTouchstone() string {
	var sb strings.Builder
	sb.WriteString("! PyVNA Data Export\n")
	sb.WriteString("! Date: " + time.Now().UTC().Format(time.RFC3339) + "\n")
	sb.WriteString("# Hz S RI R 50\n")
	for i := range d.Frequencies {
		sb.WriteString(fmt.Sprintf("%.6f %.6f %.6f %.6f %.6f\n",
			d.Frequencies[i],
			real(d.S11[i]), imag(d.S11[i]),
			real(d.S21[i]), imag(d.S21[i])))
	}
	return sb.String()
}

// CalculateVSWR derives the voltage standing-wave ratio per point from
// S11. Reflection magnitudes at or above 1 are clamped to 9999.
func (d *VNAData) CalculateVSWR() []float64 {
	vswr := make([]float64, len(d.S11))
	for i, s11 := range d.S11 {
		gamma := cmplx.Abs(s11)
		if gamma >= 1.0 {
			vswr[i] = 9999.0
		} else {
			vswr[i] = (1 + gamma) / (1 - gamma)
		}
	}
	return vswr
}

func cloneFloat64Slice(src []float64) []float64 {
	if src == nil {
		return nil
	}
	dst := make([]float64, len(src))
	copy(dst, src)
	return dst
}

func cloneComplexSlice(src []complex128) []complex128 {
	if src == nil {
		return nil
	}
	dst := make([]complex128, len(src))
	copy(dst, src)
	return dst
}
