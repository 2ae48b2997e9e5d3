package govna

import (
	"bytes"
	"sync"
	"time"
)

// mockSerialPort simulates a device on the other end of the transport.
// Replies can be preloaded with setReadData or scripted to appear in
// response to specific commands, the way the real hardware behaves.
type mockSerialPort struct {
	mu       sync.Mutex
	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	// Scripted replies, disabled when zero-valued.
	versionReply string // queued when "version\n" is written
	variant      byte   // queued when the variant register is read
	dataReply    []byte // queued when "data\n" is written
	fifoReply    []byte // queued when the values FIFO is read

	timeouts []time.Duration
	closed   bool
}

func (m *mockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeBuf.Write(p)

	if m.versionReply != "" && bytes.Contains(p, []byte("version\n")) {
		m.readBuf.WriteString(m.versionReply)
	}
	if m.variant != 0 && len(p) == 2 && p[0] == opREAD && p[1] == addrDeviceVariant {
		m.readBuf.WriteByte(m.variant)
	}
	if m.dataReply != nil && bytes.Equal(p, []byte("data\n")) {
		m.readBuf.Write(m.dataReply)
	}
	if m.fifoReply != nil && len(p) == 3 && p[0] == opREADFIFO && p[1] == addrValsFIFO {
		m.readBuf.Write(m.fifoReply)
	}
	return len(p), nil
}

// Read pops whatever is buffered; an empty buffer reads as a timeout.
func (m *mockSerialPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readBuf.Len() == 0 {
		return 0, nil
	}
	return m.readBuf.Read(p)
}

func (m *mockSerialPort) ReadLine() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var line []byte
	for m.readBuf.Len() > 0 {
		b, _ := m.readBuf.ReadByte()
		line = append(line, b)
		if b == '\n' {
			break
		}
	}
	return line, nil
}

func (m *mockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSerialPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts = append(m.timeouts, t)
	return nil
}

func (m *mockSerialPort) setReadData(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.Write(data)
}

func (m *mockSerialPort) written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.writeBuf.Bytes()...)
}
