package pixel

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrPixelOutOfRange = errors.New("pixel index out of range")
	ErrSinkClosed      = errors.New("pixel sink closed")
)

type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

var Black = RGB{}

// Sink is what extensions draw into during a render pass.
type Sink interface {
	SetPixel(index int, c RGB) error
	Flush() error
	Len() int
	Pixels() []RGB
}

// Driver abstracts the physical or simulated LED output.
type Driver interface {
	// Write pushes a frame to the output. len(rgb) is always 3*N.
	Write(rgb []byte) error
	Close() error
}

// Strip is a fixed capacity pixel buffer in front of a Driver. Nothing
// reaches the driver until Flush is called.
type Strip struct {
	mu     sync.Mutex
	pixels []RGB
	dirty  bool
	closed bool
	driver Driver
}

// NewStrip creates a strip holding capacity pixels, all black.
func NewStrip(capacity int, driver Driver) *Strip {
	if capacity < 0 {
		capacity = 0
	}
	return &Strip{
		pixels: make([]RGB, capacity),
		driver: driver,
	}
}

func (s *Strip) SetPixel(index int, c RGB) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.pixels) {
		return fmt.Errorf("%w: %d (capacity %d)", ErrPixelOutOfRange, index, len(s.pixels))
	}
	if s.pixels[index] != c {
		s.pixels[index] = c
		s.dirty = true
	}
	return nil
}

// Fill sets every pixel to c.
func (s *Strip) Fill(c RGB) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.pixels {
		if s.pixels[i] != c {
			s.pixels[i] = c
			s.dirty = true
		}
	}
}

// Flush pushes the buffer to the driver. It is a no-op when nothing
// changed since the last successful flush.
func (s *Strip) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if !s.dirty {
		return nil
	}

	frame := make([]byte, 0, 3*len(s.pixels))
	for _, p := range s.pixels {
		frame = append(frame, p.R, p.G, p.B)
	}
	if err := s.driver.Write(frame); err != nil {
		return fmt.Errorf("failed to flush pixels: %w", err)
	}
	s.dirty = false
	return nil
}

func (s *Strip) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pixels)
}

// Pixels returns a copy of the current buffer.
func (s *Strip) Pixels() []RGB {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RGB, len(s.pixels))
	copy(out, s.pixels)
	return out
}

// Close blanks the output and releases the driver.
func (s *Strip) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	blank := make([]byte, 3*len(s.pixels))
	if err := s.driver.Write(blank); err != nil {
		s.driver.Close()
		return fmt.Errorf("failed to blank strip: %w", err)
	}
	return s.driver.Close()
}
