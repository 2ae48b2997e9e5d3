package govna

import (
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/momentics/govna/internal/util"
)

const defaultBaudRate = 115200

// PortOpener opens the byte transport for a port identifier. The pool
// takes it as a dependency so the physical serial layer stays outside
// the core.
type PortOpener func(path string) (util.SerialPortInterface, error)

// DefaultPortOpener opens a real serial port at the given baud rate.
func DefaultPortOpener(baudRate int) PortOpener {
	return func(path string) (util.SerialPortInterface, error) {
		return util.OpenPort(path, &serial.Mode{BaudRate: baudRate})
	}
}

// VNAPool maps port identifiers to live device handles. A port is
// opened and identified at most once regardless of how many callers
// race on it; on any failure the map is left unchanged and the caller
// may retry later.
type VNAPool struct {
	devices  map[string]*VNA
	mu       sync.RWMutex
	openPort PortOpener
}

// NewVNAPool creates a pool that opens real serial ports at the
// default baud rate.
func NewVNAPool() *VNAPool {
	return NewVNAPoolWithOpener(DefaultPortOpener(defaultBaudRate))
}

// NewVNAPoolWithOpener creates a pool with a custom transport opener.
func NewVNAPoolWithOpener(opener PortOpener) *VNAPool {
	return &VNAPool{
		devices:  make(map[string]*VNA),
		openPort: opener,
	}
}

// Get returns the handle for portPath, opening and identifying the
// device on first access. Warm lookups take only the read lock; the
// write lock covers recheck, open, identify and insert as one critical
// section, so concurrent first accesses cannot double-open.
func (p *VNAPool) Get(portPath string) (*VNA, error) {
	p.mu.RLock()
	if vna, exists := p.devices[portPath]; exists {
		p.mu.RUnlock()
		return vna, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if vna, exists := p.devices[portPath]; exists {
		return vna, nil
	}

	port, err := p.openPort(portPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrPort, portPath, err)
	}

	driver, err := driverFactory(port)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("identifying device on %s: %w", portPath, err)
	}

	vna := NewVNA(driver)
	p.devices[portPath] = vna
	return vna, nil
}

// Close closes and removes a single handle. Closing an unknown port is
// a no-op.
func (p *VNAPool) Close(portPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	vna, exists := p.devices[portPath]
	if !exists {
		return nil
	}
	delete(p.devices, portPath)
	return vna.Close()
}

// CloseAll closes every handle and clears the pool.
func (p *VNAPool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, vna := range p.devices {
		vna.Close()
	}
	p.devices = make(map[string]*VNA)
}
