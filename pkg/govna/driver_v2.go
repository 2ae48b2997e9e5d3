// Driver for the NanoVNA V2/LiteVNA family (little-endian register and
// FIFO binary protocol).
package govna

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/momentics/govna/internal/util"
)

const (
	opNOP      byte = 0x00
	opREAD     byte = 0x10
	opWRITE2   byte = 0x21
	opWRITE4   byte = 0x22
	opREADFIFO byte = 0x18

	addrSweepStart    byte = 0x00
	addrSweepStep     byte = 0x10
	addrSweepPoints   byte = 0x20
	addrValsFIFO      byte = 0x30
	addrDeviceVariant byte = 0xf0
)

// fifoRecordSize is the wire size of one measurement point: four
// float32 pairs for S11, S12, S21, S22.
const fifoRecordSize = 32

// V2Driver speaks the binary register protocol.
type V2Driver struct {
	port   util.SerialPortInterface
	config SweepConfig
}

func NewV2Driver(port util.SerialPortInterface) *V2Driver {
	d := &V2Driver{port: port}
	d.resetProtocol()
	return d
}

// resetProtocol writes eight zero opcodes to resynchronize the
// device's command parser, whatever state a previous exchange left it
// in.
func (d *V2Driver) resetProtocol() {
	d.port.Write(make([]byte, 8))
}

// Identify reads the device-variant register under a bounded timeout.
// Variants 2 and 4 are the supported hardware generations.
func (d *V2Driver) Identify() (string, error) {
	d.resetProtocol()
	d.port.SetReadTimeout(identifyTimeout)
	defer d.port.SetReadTimeout(0)

	if _, err := d.port.Write([]byte{opREAD, addrDeviceVariant}); err != nil {
		return "", fmt.Errorf("%w: v2: writing variant read: %v", ErrPort, err)
	}
	buf, err := d.readExact(1)
	if err != nil {
		return "", err
	}
	if buf[0] == 2 || buf[0] == 4 {
		return fmt.Sprintf("NanoVNA_V2 (Variant %d)", buf[0]), nil
	}
	return "", fmt.Errorf("%w: v2: unsupported device variant %d", ErrProtocol, buf[0])
}

// SetSweep commits start frequency, step and point count to the sweep
// registers. Start and step go out as 8-byte IEEE-754 doubles, the
// point count as a 16-bit unsigned integer.
func (d *V2Driver) SetSweep(config SweepConfig) error {
	d.config = config
	if err := d.writeRegFloat64(addrSweepStart, config.Start); err != nil {
		return err
	}
	if err := d.writeRegFloat64(addrSweepStep, config.step()); err != nil {
		return err
	}
	return d.writeReg16(addrSweepPoints, uint16(config.Points))
}

// Scan drains the values FIFO: exactly points*32 bytes, collected
// across as many reads as the transport needs. A sweep must have been
// configured first; that is checked before any I/O.
func (d *V2Driver) Scan() (VNAData, error) {
	if d.config.Points <= 0 {
		return VNAData{}, fmt.Errorf("%w: v2: sweep not configured", ErrValidation)
	}
	if _, err := d.port.Write([]byte{opREADFIFO, addrValsFIFO, 0x00}); err != nil {
		return VNAData{}, fmt.Errorf("%w: v2: writing FIFO read: %v", ErrPort, err)
	}
	raw, err := d.readExact(d.config.Points * fifoRecordSize)
	if err != nil {
		return VNAData{}, err
	}
	return d.parseBinaryData(raw)
}

func (d *V2Driver) Close() error { return d.port.Close() }

func (d *V2Driver) parseBinaryData(buf []byte) (VNAData, error) {
	if len(buf)%fifoRecordSize != 0 {
		return VNAData{}, fmt.Errorf("%w: v2: response length %d is not a multiple of %d",
			ErrProtocol, len(buf), fifoRecordSize)
	}
	points := len(buf) / fifoRecordSize
	if points != d.config.Points {
		return VNAData{}, fmt.Errorf("%w: v2: device returned %d points, expected %d",
			ErrProtocol, points, d.config.Points)
	}

	data := VNAData{
		Frequencies: make([]float64, points),
		S11:         make([]complex128, points),
		S21:         make([]complex128, points),
	}
	step := d.config.step()
	for i := 0; i < points; i++ {
		offset := i * fifoRecordSize
		// The device does not transmit frequency; it is synthesized
		// from the configured sweep.
		data.Frequencies[i] = d.config.Start + step*float64(i)
		s11Re := math.Float32frombits(binary.LittleEndian.Uint32(buf[offset : offset+4]))
		s11Im := math.Float32frombits(binary.LittleEndian.Uint32(buf[offset+4 : offset+8]))
		s21Re := math.Float32frombits(binary.LittleEndian.Uint32(buf[offset+16 : offset+20]))
		s21Im := math.Float32frombits(binary.LittleEndian.Uint32(buf[offset+20 : offset+24]))
		data.S11[i] = complex(float64(s11Re), float64(s11Im))
		data.S21[i] = complex(float64(s21Re), float64(s21Im))
	}
	return data, nil
}

// readExact loops reads until size bytes are collected. An empty read
// means the transport timed out mid-frame; that is a short-read
// protocol failure, reported with the byte counts.
func (d *V2Driver) readExact(size int) ([]byte, error) {
	buf := make([]byte, 0, size)
	chunk := make([]byte, size)
	for len(buf) < size {
		n, err := d.port.Read(chunk[:size-len(buf)])
		if err != nil {
			return nil, fmt.Errorf("%w: v2: reading response: %v", ErrPort, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: v2: short read, received %d of %d bytes",
				ErrProtocol, len(buf), size)
		}
		buf = append(buf, chunk[:n]...)
	}
	return buf, nil
}

func (d *V2Driver) writeRegFloat64(addr byte, val float64) error {
	buf := make([]byte, 10)
	buf[0] = opWRITE4 + 2 // 8-byte register write
	buf[1] = addr
	binary.LittleEndian.PutUint64(buf[2:], math.Float64bits(val))
	if _, err := d.port.Write(buf); err != nil {
		return fmt.Errorf("%w: v2: writing register 0x%02x: %v", ErrPort, addr, err)
	}
	return nil
}

func (d *V2Driver) writeReg16(addr byte, val uint16) error {
	buf := make([]byte, 4)
	buf[0] = opWRITE2
	buf[1] = addr
	binary.LittleEndian.PutUint16(buf[2:], val)
	if _, err := d.port.Write(buf); err != nil {
		return fmt.Errorf("%w: v2: writing register 0x%02x: %v", ErrPort, addr, err)
	}
	return nil
}
