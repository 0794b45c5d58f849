// Package mirror extends the picture on screen onto the wall. It samples
// the edges of a captured frame, which some other process keeps writing
// to the "source" image file.
package mirror

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
	"time"

	"aurora/pkg/extension"
	"aurora/pkg/pixel"
)

const ID = "mirror"

var ErrNoSource = errors.New("no video source configured")

type Mirror struct {
	extension.Base
	source string
	depth  float64

	// frame is also read by TakeScreenshot outside the render pass
	frameMu sync.RWMutex
	frame   image.Image
	modTime time.Time
}

// New reads the "source" image path and "depth", the fraction of the frame
// sampled inwards from each edge.
func New(sink pixel.Sink, cfg extension.Config) (extension.Extension, error) {
	depth, err := cfg.Float("depth", 0.1)
	if err != nil {
		return nil, err
	}
	if depth <= 0 || depth > 0.5 {
		return nil, fmt.Errorf("depth %v out of range (0, 0.5]", depth)
	}
	m := &Mirror{source: cfg.String("source", ""), depth: depth}
	m.Init(sink, cfg)
	m.SetNeedsVideo(true)
	return m, nil
}

func (m *Mirror) Metadata() extension.Metadata {
	return extension.Metadata{
		Name:        "Screen Mirror",
		Author:      "Aurora",
		Description: "Matches the LEDs to the colours at the edges of the screen",
	}
}

func (m *Mirror) Setup() error {
	if m.source == "" {
		return ErrNoSource
	}
	m.setFrame(nil, time.Time{})
	m.ResetFrames()
	_, err := m.capture()
	return err
}

func (m *Mirror) Teardown() error {
	m.setFrame(nil, time.Time{})
	return m.Blank()
}

func (m *Mirror) setFrame(img image.Image, modTime time.Time) {
	m.frameMu.Lock()
	defer m.frameMu.Unlock()
	m.frame, m.modTime = img, modTime
}

func (m *Mirror) lastFrame() (image.Image, time.Time) {
	m.frameMu.RLock()
	defer m.frameMu.RUnlock()
	return m.frame, m.modTime
}

// capture reloads the source when it changed since the last read.
func (m *Mirror) capture() (image.Image, error) {
	info, err := os.Stat(m.source)
	if err != nil {
		return nil, fmt.Errorf("failed to read video source: %w", err)
	}
	if frame, modTime := m.lastFrame(); frame != nil && info.ModTime().Equal(modTime) {
		return frame, nil
	}

	f, err := os.Open(m.source)
	if err != nil {
		return nil, fmt.Errorf("failed to read video source: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", m.source, err)
	}
	b := img.Bounds()
	m.setFrame(img, info.ModTime())
	m.SetFrameSize(b.Dx(), b.Dy())
	return img, nil
}

func (m *Mirror) Visualise() error {
	img, err := m.capture()
	if err != nil {
		return err
	}
	for _, seg := range m.Geometry().Segments() {
		for n := 0; n < seg.Count; n++ {
			c := average(img, region(img.Bounds(), seg.Edge, n, seg.Count, m.depth))
			if err := m.Sink.SetPixel(seg.Start+n, c); err != nil {
				return err
			}
		}
	}
	m.MarkFrame()
	return nil
}

// TakeScreenshot writes the last captured frame.
func (m *Mirror) TakeScreenshot(path string) error {
	frame, _ := m.lastFrame()
	if frame == nil {
		return m.Base.TakeScreenshot(path)
	}
	return extension.WritePNG(path, frame)
}

// region is the part of the frame behind LED n of count on edge, following
// the clockwise strip layout.
func region(b image.Rectangle, edge extension.Edge, n, count int, depth float64) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	bandX := max(1, int(float64(w)*depth))
	bandY := max(1, int(float64(h)*depth))
	span := func(length, i int) (int, int) {
		lo := length * i / count
		hi := max(lo+1, length*(i+1)/count)
		return lo, min(hi, length)
	}

	var r image.Rectangle
	switch edge {
	case extension.EdgeLeft:
		y0, y1 := span(h, count-1-n)
		r = image.Rect(0, y0, bandX, y1)
	case extension.EdgeTop:
		x0, x1 := span(w, n)
		r = image.Rect(x0, 0, x1, bandY)
	case extension.EdgeRight:
		y0, y1 := span(h, n)
		r = image.Rect(w-bandX, y0, w, y1)
	case extension.EdgeBottom:
		x0, x1 := span(w, count-1-n)
		r = image.Rect(x0, h-bandY, x1, h)
	}
	return r.Add(b.Min)
}

func average(img image.Image, r image.Rectangle) pixel.RGB {
	var sr, sg, sb, n uint64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			sr += uint64(cr >> 8)
			sg += uint64(cg >> 8)
			sb += uint64(cb >> 8)
			n++
		}
	}
	if n == 0 {
		return pixel.Black
	}
	return pixel.RGB{R: uint8(sr / n), G: uint8(sg / n), B: uint8(sb / n)}
}
