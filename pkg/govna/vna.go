package govna

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// VNA couples one identified driver with an optional calibration
// profile. All driver I/O is serialized behind the handle's mutex;
// independent handles never share a lock, so distinct ports proceed
// fully concurrently.
type VNA struct {
	driver      Driver
	mu          sync.Mutex
	calibration *CalibrationProfile
	closed      bool
}

func NewVNA(driver Driver) *VNA {
	return &VNA{driver: driver}
}

// SetSweep validates the configuration and commits it to the device.
// Malformed input never reaches the wire.
func (v *VNA) SetSweep(config SweepConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.driver.SetSweep(config)
}

// GetData performs one sweep. If a calibration profile is loaded the
// result is corrected by it; the profile is snapshotted under the
// lock, so a profile swapped in afterward does not affect an in-flight
// call, and the correction itself runs outside the lock.
func (v *VNA) GetData() (VNAData, error) {
	v.mu.Lock()
	data, err := v.driver.Scan()
	calibration := v.calibration
	v.mu.Unlock()
	if err != nil {
		return VNAData{}, err
	}
	if calibration == nil {
		return data, nil
	}
	return calibration.Apply(data)
}

// LoadCalibration validates the profile and installs it as the
// handle's active profile, replacing any previous one wholesale.
func (v *VNA) LoadCalibration(profile *CalibrationProfile) error {
	if profile == nil {
		return fmt.Errorf("%w: calibration profile is nil", ErrValidation)
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	v.calibration = profile
	v.mu.Unlock()
	return nil
}

// ClearCalibration drops the active profile, if any.
func (v *VNA) ClearCalibration() {
	v.mu.Lock()
	v.calibration = nil
	v.mu.Unlock()
}

// ApplyCalibration corrects an arbitrary measurement with the active
// profile.
func (v *VNA) ApplyCalibration(data VNAData) (VNAData, error) {
	v.mu.Lock()
	calibration := v.calibration
	v.mu.Unlock()
	if calibration == nil {
		return VNAData{}, fmt.Errorf("%w: no calibration profile loaded", ErrValidation)
	}
	return calibration.Apply(data)
}

// AcquireCalibration walks the plan's steps in order, scanning once
// per standard, then computes the SOL error terms, installs the
// resulting profile and returns it. Cancellation via ctx is honored
// between steps only, never inside a scan. prompt, when non-nil, is
// invoked before each scan so an operator can connect the standard.
//
// On any failure the handle's previously loaded profile is left
// untouched.
func (v *VNA) AcquireCalibration(ctx context.Context, plan CalibrationPlan, prompt CalibrationPrompt) (*CalibrationProfile, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("%w: calibration plan contains no steps", ErrValidation)
	}
	if err := plan.Sweep.Validate(); err != nil {
		return nil, err
	}

	if err := v.SetSweep(plan.Sweep); err != nil {
		return nil, err
	}

	profile := &CalibrationProfile{
		Name:      plan.Name,
		Method:    CalibrationMethodSOL,
		CreatedAt: time.Now().UTC(),
		Sweep:     plan.Sweep,
		Standards: make(map[CalibrationStandard]CalibrationMeasurement),
	}

	for _, step := range plan.Steps {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		default:
		}

		if prompt != nil {
			if err := prompt(ctx, step.Standard); err != nil {
				return nil, fmt.Errorf("calibration prompt for %s: %w", step.Standard, err)
			}
		}

		v.mu.Lock()
		data, err := v.scanLocked()
		v.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("measuring %s standard: %w", step.Standard, err)
		}

		profile.Standards[step.Standard] = CalibrationMeasurement{
			Frequencies: cloneFloat64Slice(data.Frequencies),
			S11:         cloneComplexSlice(data.S11),
			S21:         cloneComplexSlice(data.S21),
		}
	}

	if err := profile.computeErrorTerms(); err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.calibration = profile
	v.mu.Unlock()
	return profile, nil
}

// scanLocked runs one sweep. Callers must hold v.mu; acquisition uses
// it directly so the handle needs no reentrant lock.
func (v *VNA) scanLocked() (VNAData, error) {
	return v.driver.Scan()
}

// Close releases the underlying driver and transport. Idempotent.
func (v *VNA) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	return v.driver.Close()
}
