// SOL (short-open-load) calibration: one-port three-term error model.
package govna

import (
	"context"
	"fmt"
	"math"
	"time"
)

// frequencyTolerance is the absolute per-point tolerance, in Hz, when
// comparing frequency grids.
const frequencyTolerance = 1e-3

type CalibrationMethod string

const (
	CalibrationMethodSOL CalibrationMethod = "SOL"
)

type CalibrationStandard string

const (
	CalibrationStandardOpen  CalibrationStandard = "open"
	CalibrationStandardShort CalibrationStandard = "short"
	CalibrationStandardLoad  CalibrationStandard = "load"
	CalibrationStandardThru  CalibrationStandard = "thru"
)

// CalibrationStep names the standard an operator must connect for one
// measurement of the plan.
type CalibrationStep struct {
	Standard CalibrationStandard
}

// CalibrationPlan is the input to AcquireCalibration: the sweep to run
// and the ordered standards to measure.
type CalibrationPlan struct {
	Name  string
	Sweep SweepConfig
	Steps []CalibrationStep
}

// CalibrationPrompt is invoked before each acquisition step, e.g. to
// instruct an operator to connect the standard. Returning an error
// aborts the acquisition.
type CalibrationPrompt func(ctx context.Context, standard CalibrationStandard) error

// CalibrationMeasurement is one sweep taken against a known standard.
type CalibrationMeasurement struct {
	Frequencies []float64
	S11         []complex128
	S21         []complex128
}

// CalibrationErrorTerms holds the three per-point coefficients of the
// one-port error model: directivity (e00), source match (e11) and
// reflection tracking (e10e32).
type CalibrationErrorTerms struct {
	Directivity        []complex128
	SourceMatch        []complex128
	ReflectionTracking []complex128
}

// CalibrationProfile couples the raw standard measurements with the
// error terms computed from them. Once computed it is treated as
// immutable.
type CalibrationProfile struct {
	Name        string
	Method      CalibrationMethod
	CreatedAt   time.Time
	Sweep       SweepConfig
	Frequencies []float64
	Standards   map[CalibrationStandard]CalibrationMeasurement
	ErrorTerms  CalibrationErrorTerms
}

// computeErrorTerms derives e00, e11 and e10e32 per frequency point
// from the open, short and load measurements and stores them, together
// with the load grid, on the profile.
func (p *CalibrationProfile) computeErrorTerms() error {
	openMeas, okOpen := p.Standards[CalibrationStandardOpen]
	shortMeas, okShort := p.Standards[CalibrationStandardShort]
	loadMeas, okLoad := p.Standards[CalibrationStandardLoad]
	if !(okOpen && okShort && okLoad) {
		return fmt.Errorf("%w: SOL requires open, short and load measurements", ErrValidation)
	}
	if len(loadMeas.S11) == 0 {
		return fmt.Errorf("%w: calibration measurements are empty", ErrValidation)
	}
	if !frequenciesMatch(loadMeas.Frequencies, openMeas.Frequencies) ||
		!frequenciesMatch(loadMeas.Frequencies, shortMeas.Frequencies) {
		return fmt.Errorf("%w: calibration standards use mismatched frequency grids", ErrValidation)
	}

	count := len(loadMeas.S11)
	directivity := make([]complex128, count)
	sourceMatch := make([]complex128, count)
	tracking := make([]complex128, count)

	for i := 0; i < count; i++ {
		e00 := loadMeas.S11[i]
		lo := openMeas.S11[i] - e00
		ls := shortMeas.S11[i] - e00
		denom := lo - ls
		if denom == 0 {
			return fmt.Errorf("%w: zero denominator computing error terms at %.3f Hz",
				ErrCalibrationMath, loadMeas.Frequencies[i])
		}
		e10e32 := (lo + ls) / denom
		e11 := -ls * (1 + e10e32)

		directivity[i] = e00
		sourceMatch[i] = e11
		tracking[i] = e10e32
	}

	p.Frequencies = cloneFloat64Slice(loadMeas.Frequencies)
	p.ErrorTerms = CalibrationErrorTerms{
		Directivity:        directivity,
		SourceMatch:        sourceMatch,
		ReflectionTracking: tracking,
	}
	return nil
}

// Validate checks structural integrity: a non-empty frequency grid,
// error-term slices matching the grid and, for SOL, the presence of
// the open, short and load measurements.
func (p *CalibrationProfile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: calibration profile is nil", ErrValidation)
	}
	if len(p.Frequencies) == 0 {
		return fmt.Errorf("%w: calibration profile contains no frequency grid", ErrValidation)
	}
	if len(p.ErrorTerms.Directivity) != len(p.Frequencies) ||
		len(p.ErrorTerms.SourceMatch) != len(p.Frequencies) ||
		len(p.ErrorTerms.ReflectionTracking) != len(p.Frequencies) {
		return fmt.Errorf("%w: error terms do not match the frequency grid", ErrValidation)
	}
	if p.Method == CalibrationMethodSOL {
		for _, required := range []CalibrationStandard{
			CalibrationStandardOpen,
			CalibrationStandardShort,
			CalibrationStandardLoad,
		} {
			if _, ok := p.Standards[required]; !ok {
				return fmt.Errorf("%w: missing calibration measurement for %s", ErrValidation, required)
			}
		}
	}
	return nil
}

// Apply corrects the S11 of a measurement with the profile's error
// terms and returns a new measurement; the input is never mutated. S21
// passes through unmodified, this model carries no transmission
// correction.
func (p *CalibrationProfile) Apply(data VNAData) (VNAData, error) {
	if !frequenciesMatch(data.Frequencies, p.Frequencies) {
		return VNAData{}, fmt.Errorf("%w: measurement frequency grid does not match calibration", ErrValidation)
	}

	calibrated := VNAData{
		Frequencies: cloneFloat64Slice(data.Frequencies),
		S11:         make([]complex128, len(data.S11)),
		S21:         cloneComplexSlice(data.S21),
	}
	for i, measured := range data.S11 {
		e00 := p.ErrorTerms.Directivity[i]
		e11 := p.ErrorTerms.SourceMatch[i]
		tracking := p.ErrorTerms.ReflectionTracking[i]

		numerator := measured - e00
		denominator := e11 + tracking*(measured-e00)
		if denominator == 0 {
			return VNAData{}, fmt.Errorf("%w: zero denominator applying calibration at %.3f Hz",
				ErrCalibrationMath, data.Frequencies[i])
		}
		calibrated.S11[i] = numerator / denominator
	}
	return calibrated, nil
}

func frequenciesMatch(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > frequencyTolerance {
			return false
		}
	}
	return true
}
