package govna

import (
	"math/cmplx"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeTermModel synthesizes what a device with the given error terms
// would report for a device under test with true reflection gamma:
//
//	measured = e00 + gamma*e11 / (1 - gamma*tracking)
//
// which is exactly the relation Apply inverts.
type threeTermModel struct {
	frequencies []float64
	e00         []complex128
	e11         []complex128
	tracking    []complex128
}

func newThreeTermModel(points int) *threeTermModel {
	m := &threeTermModel{
		frequencies: make([]float64, points),
		e00:         make([]complex128, points),
		e11:         make([]complex128, points),
		tracking:    make([]complex128, points),
	}
	for i := 0; i < points; i++ {
		m.frequencies[i] = 1e6 + 1e6*float64(i)
		m.e00[i] = complex(0.05+0.001*float64(i), -0.02)
		m.e11[i] = complex(0.8, 0.1)
		m.tracking[i] = complex(0.3, -0.05)
	}
	return m
}

func (m *threeTermModel) measure(gamma complex128) VNAData {
	data := VNAData{
		Frequencies: cloneFloat64Slice(m.frequencies),
		S11:         make([]complex128, len(m.frequencies)),
		S21:         make([]complex128, len(m.frequencies)),
	}
	for i := range m.frequencies {
		data.S11[i] = m.e00[i] + gamma*m.e11[i]/(1-gamma*m.tracking[i])
	}
	return data
}

func (m *threeTermModel) profile(t *testing.T) *CalibrationProfile {
	t.Helper()
	profile := &CalibrationProfile{
		Name:      "bench",
		Method:    CalibrationMethodSOL,
		CreatedAt: time.Now().UTC(),
		Standards: map[CalibrationStandard]CalibrationMeasurement{
			CalibrationStandardOpen:  measurementOf(m.measure(1)),
			CalibrationStandardShort: measurementOf(m.measure(-1)),
			CalibrationStandardLoad:  measurementOf(m.measure(0)),
		},
	}
	require.NoError(t, profile.computeErrorTerms())
	require.NoError(t, profile.Validate())
	return profile
}

func measurementOf(d VNAData) CalibrationMeasurement {
	return CalibrationMeasurement{Frequencies: d.Frequencies, S11: d.S11, S21: d.S21}
}

func TestCalibrationRoundTrip(t *testing.T) {
	model := newThreeTermModel(21)
	profile := model.profile(t)

	// The computed terms must recover the synthetic ones.
	for i := range model.frequencies {
		assert.InDelta(t, 0, cmplx.Abs(profile.ErrorTerms.Directivity[i]-model.e00[i]), 1e-9)
		assert.InDelta(t, 0, cmplx.Abs(profile.ErrorTerms.SourceMatch[i]-model.e11[i]), 1e-9)
		assert.InDelta(t, 0, cmplx.Abs(profile.ErrorTerms.ReflectionTracking[i]-model.tracking[i]), 1e-9)
	}

	// Applying the profile to an unknown DUT recovers its reflection
	// coefficient within 1e-6 relative error.
	gamma := complex(0.3, -0.4)
	corrected, err := profile.Apply(model.measure(gamma))
	require.NoError(t, err)
	for i := range corrected.S11 {
		relErr := cmplx.Abs(corrected.S11[i]-gamma) / cmplx.Abs(gamma)
		assert.Less(t, relErr, 1e-6)
	}
}

func TestComputeErrorTermsMissingStandard(t *testing.T) {
	model := newThreeTermModel(3)
	profile := &CalibrationProfile{
		Method: CalibrationMethodSOL,
		Standards: map[CalibrationStandard]CalibrationMeasurement{
			CalibrationStandardOpen: measurementOf(model.measure(1)),
			CalibrationStandardLoad: measurementOf(model.measure(0)),
		},
	}
	err := profile.computeErrorTerms()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "open, short and load")
}

func TestComputeErrorTermsEmptyMeasurement(t *testing.T) {
	profile := &CalibrationProfile{
		Method: CalibrationMethodSOL,
		Standards: map[CalibrationStandard]CalibrationMeasurement{
			CalibrationStandardOpen:  {},
			CalibrationStandardShort: {},
			CalibrationStandardLoad:  {},
		},
	}
	assert.ErrorIs(t, profile.computeErrorTerms(), ErrValidation)
}

func TestComputeErrorTermsMismatchedGrids(t *testing.T) {
	model := newThreeTermModel(3)
	shifted := measurementOf(model.measure(1))
	shifted.Frequencies = cloneFloat64Slice(shifted.Frequencies)
	shifted.Frequencies[1] += 1 // beyond the 1e-3 Hz tolerance

	profile := &CalibrationProfile{
		Method: CalibrationMethodSOL,
		Standards: map[CalibrationStandard]CalibrationMeasurement{
			CalibrationStandardOpen:  shifted,
			CalibrationStandardShort: measurementOf(model.measure(-1)),
			CalibrationStandardLoad:  measurementOf(model.measure(0)),
		},
	}
	err := profile.computeErrorTerms()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "mismatched frequency grids")
}

func TestComputeErrorTermsZeroDenominator(t *testing.T) {
	// Open and short responding identically makes lo - ls vanish.
	same := CalibrationMeasurement{
		Frequencies: []float64{1e6},
		S11:         []complex128{complex(0.5, 0)},
		S21:         []complex128{0},
	}
	profile := &CalibrationProfile{
		Method: CalibrationMethodSOL,
		Standards: map[CalibrationStandard]CalibrationMeasurement{
			CalibrationStandardOpen:  same,
			CalibrationStandardShort: same,
			CalibrationStandardLoad: {
				Frequencies: []float64{1e6},
				S11:         []complex128{0},
				S21:         []complex128{0},
			},
		},
	}
	err := profile.computeErrorTerms()
	require.ErrorIs(t, err, ErrCalibrationMath)
	assert.Contains(t, err.Error(), "1000000.000 Hz")
}

func TestProfileValidate(t *testing.T) {
	model := newThreeTermModel(5)

	t.Run("missing standard after computation", func(t *testing.T) {
		profile := model.profile(t)
		delete(profile.Standards, CalibrationStandardShort)
		err := profile.Validate()
		require.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "short")
	})

	t.Run("error term length mismatch", func(t *testing.T) {
		profile := model.profile(t)
		profile.ErrorTerms.SourceMatch = profile.ErrorTerms.SourceMatch[:3]
		assert.ErrorIs(t, profile.Validate(), ErrValidation)
	})

	t.Run("empty frequency grid", func(t *testing.T) {
		profile := &CalibrationProfile{Method: CalibrationMethodSOL}
		assert.ErrorIs(t, profile.Validate(), ErrValidation)
	})
}

func TestApplyGridMismatch(t *testing.T) {
	model := newThreeTermModel(5)
	profile := model.profile(t)

	data := model.measure(0.2)
	data.Frequencies[2] += 0.5 // past tolerance

	_, err := profile.Apply(data)
	assert.ErrorIs(t, err, ErrValidation)

	short := model.measure(0.2)
	short.Frequencies = short.Frequencies[:4]
	short.S11 = short.S11[:4]
	short.S21 = short.S21[:4]
	_, err = profile.Apply(short)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	model := newThreeTermModel(4)
	profile := model.profile(t)

	data := model.measure(0.25)
	original := cloneComplexSlice(data.S11)

	corrected, err := profile.Apply(data)
	require.NoError(t, err)
	assert.Equal(t, original, data.S11, "input measurement must not change")
	assert.Equal(t, data.S21, corrected.S21, "S21 passes through unmodified")
}
