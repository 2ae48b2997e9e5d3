// Driver for the NanoVNA V1 family (newline-terminated text protocol).
package govna

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/momentics/govna/internal/util"
)

const identifyTimeout = 500 * time.Millisecond

// V1Driver speaks the legacy ASCII command protocol: "version",
// "sweep start stop points", "data".
type V1Driver struct {
	port   util.SerialPortInterface
	config SweepConfig
}

func NewV1Driver(port util.SerialPortInterface) *V1Driver {
	return &V1Driver{port: port}
}

// Identify sends "version" under a bounded read timeout and accepts
// any response containing "nanovna" (case-insensitive). The previous
// timeout is restored on every exit path.
func (d *V1Driver) Identify() (string, error) {
	d.port.SetReadTimeout(identifyTimeout)
	defer d.port.SetReadTimeout(0)

	if _, err := d.port.Write([]byte("version\n")); err != nil {
		return "", fmt.Errorf("%w: v1: writing version command: %v", ErrPort, err)
	}
	line, err := d.port.ReadLine()
	if err != nil {
		return "", fmt.Errorf("%w: v1: reading version response: %v", ErrPort, err)
	}
	if len(line) == 0 {
		return "", fmt.Errorf("%w: v1: no response to version command", ErrProtocol)
	}
	response := string(line)
	if strings.Contains(strings.ToLower(response), "nanovna") {
		return strings.TrimSpace(response), nil
	}
	return "", fmt.Errorf("%w: v1: device did not identify as NanoVNA", ErrProtocol)
}

// SetSweep stores the configuration and commits it to the device with
// start/stop truncated to integer Hz.
func (d *V1Driver) SetSweep(config SweepConfig) error {
	d.config = config
	cmd := fmt.Sprintf("sweep %d %d %d\n", int(config.Start), int(config.Stop), config.Points)
	if _, err := d.port.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("%w: v1: writing sweep command: %v", ErrPort, err)
	}
	return nil
}

// Scan requests one sweep and reads exactly config.Points data lines.
// On any failure no partial data is returned.
func (d *V1Driver) Scan() (VNAData, error) {
	if _, err := d.port.Write([]byte("data\n")); err != nil {
		return VNAData{}, fmt.Errorf("%w: v1: writing data command: %v", ErrPort, err)
	}
	return d.readData()
}

func (d *V1Driver) Close() error {
	return d.port.Close()
}

func (d *V1Driver) readData() (VNAData, error) {
	data := VNAData{
		Frequencies: make([]float64, 0, d.config.Points),
		S11:         make([]complex128, 0, d.config.Points),
		S21:         make([]complex128, 0, d.config.Points),
	}
	for i := 0; i < d.config.Points; i++ {
		line, err := d.port.ReadLine()
		if err != nil {
			return VNAData{}, fmt.Errorf("%w: v1: reading data line %d: %v", ErrPort, i+1, err)
		}
		if len(line) == 0 {
			return VNAData{}, fmt.Errorf("%w: v1: expected %d data lines, received %d",
				ErrProtocol, d.config.Points, i)
		}
		parts := strings.Fields(string(line))
		if len(parts) < 5 {
			return VNAData{}, fmt.Errorf("%w: v1: line %d contained %d fields, expected 5",
				ErrProtocol, i+1, len(parts))
		}
		fields := make([]float64, 5)
		for j := 0; j < 5; j++ {
			v, err := strconv.ParseFloat(parts[j], 64)
			if err != nil {
				return VNAData{}, fmt.Errorf("%w: v1: parsing field %d on line %d: %v",
					ErrProtocol, j+1, i+1, err)
			}
			fields[j] = v
		}
		data.Frequencies = append(data.Frequencies, fields[0])
		data.S11 = append(data.S11, complex(fields[1], fields[2]))
		data.S21 = append(data.S21, complex(fields[3], fields[4]))
	}
	return data, nil
}
