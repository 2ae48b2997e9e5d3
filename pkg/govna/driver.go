// Package govna provides the core API for talking to NanoVNA devices:
// protocol drivers, a concurrency-safe device pool and an SOL
// calibration engine.
package govna

import (
	"fmt"

	"github.com/momentics/govna/internal/util"
)

// Driver is the capability contract every device protocol implements.
// A driver is bound to exactly one open transport and owns its
// lifetime.
type Driver interface {
	Identify() (string, error)
	SetSweep(config SweepConfig) error
	Scan() (VNAData, error)
	Close() error
}

// driverFactory probes an opened transport for a supported device. The
// order is fixed: the V1 text protocol first, then the V2 binary
// protocol. The first driver whose Identify succeeds is returned and
// later candidates are never tried.
//
// A failed identify can leave half-consumed framing on the wire, so
// the transport is resynchronized before the next candidate runs: the
// V2 constructor writes the binary protocol's 8-zero-byte reset
// preamble, which the device's command parser treats as NOPs.
func driverFactory(port util.SerialPortInterface) (Driver, error) {
	v1 := NewV1Driver(port)
	if _, err := v1.Identify(); err == nil {
		return v1, nil
	}

	v2 := NewV2Driver(port)
	if _, err := v2.Identify(); err == nil {
		return v2, nil
	}

	return nil, fmt.Errorf("%w: no supported protocol variant answered", ErrUnidentifiedDevice)
}
