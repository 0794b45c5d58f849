package pixel

import (
	"fmt"
	"os"
	"sync"
)

// MemoryDriver keeps the last written frame in memory. It stands in for
// real hardware in tests and on machines without a strip attached.
type MemoryDriver struct {
	mu     sync.Mutex
	frame  []byte
	writes int
	closed bool
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{}
}

func (d *MemoryDriver) Write(rgb []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrSinkClosed
	}
	d.frame = append(d.frame[:0], rgb...)
	d.writes++
	return nil
}

func (d *MemoryDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Frame returns a copy of the last frame written.
func (d *MemoryDriver) Frame() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]byte, len(d.frame))
	copy(out, d.frame)
	return out
}

func (d *MemoryDriver) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// DeviceDriver writes raw frames to a character device or FIFO, e.g. the
// serial bridge of a microcontroller that clocks out the strip. Each frame
// is written in one call.
type DeviceDriver struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func OpenDevice(path string) (*DeviceDriver, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %s: %w", path, err)
	}
	return &DeviceDriver{path: path, f: f}, nil
}

func (d *DeviceDriver) Write(rgb []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.f == nil {
		return ErrSinkClosed
	}
	if _, err := d.f.WriteAt(rgb, 0); err != nil {
		// character devices do not support offsets
		if _, err := d.f.Write(rgb); err != nil {
			return fmt.Errorf("write to %s: %w", d.path, err)
		}
	}
	return nil
}

func (d *DeviceDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
