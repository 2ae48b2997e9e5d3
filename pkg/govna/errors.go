package govna

import "errors"

// Error taxonomy. Every failure the package returns wraps exactly one
// of these sentinels, so callers can classify with errors.Is and still
// read the detail from the message.
var (
	// ErrPort marks transport open/read/write failures.
	ErrPort = errors.New("port error")

	// ErrProtocol marks failed identification, unsupported hardware
	// variants and malformed or short device responses.
	ErrProtocol = errors.New("protocol error")

	// ErrValidation marks invalid sweep configurations and invalid or
	// incomplete calibration profiles. Validation always happens
	// before any I/O.
	ErrValidation = errors.New("validation error")

	// ErrCalibrationMath marks a zero denominator while computing or
	// applying calibration error terms.
	ErrCalibrationMath = errors.New("calibration math error")

	// ErrCancelled is returned when calibration acquisition is stopped
	// between steps.
	ErrCancelled = errors.New("calibration cancelled")

	// ErrUnidentifiedDevice is returned by the driver factory when no
	// protocol variant recognizes the device.
	ErrUnidentifiedDevice = errors.New("unidentified device")
)
