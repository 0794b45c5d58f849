package extension

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"time"

	"aurora/pkg/pixel"
)

const fpsWindow = 30

// Base carries the bookkeeping every extension needs: geometry, the rolling
// frame rate and the screenshot helpers. Extensions embed it.
type Base struct {
	Sink   pixel.Sink
	Logger Logger

	mu          sync.RWMutex
	geometry    Geometry
	needsVideo  bool
	frameWidth  int
	frameHeight int

	lastFrame time.Time
	intervals [fpsWindow]time.Duration
	filled    int
	next      int
	now       func() time.Time
}

// Init binds the base to the sink and the constructor config.
func (b *Base) Init(sink pixel.Sink, cfg Config) {
	b.Sink = sink
	b.Logger = cfg.Logger
	b.geometry = cfg.Geometry
	b.frameWidth = 1
	b.frameHeight = 1
	b.now = time.Now
}

func (b *Base) Geometry() Geometry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.geometry
}

func (b *Base) SetGeometry(g Geometry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.geometry = g
}

func (b *Base) SetNeedsVideo(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.needsVideo = v
}

func (b *Base) SetFrameSize(w, h int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frameWidth, b.frameHeight = w, h
}

// MarkFrame records the end of a render pass for the frame rate average.
func (b *Base) MarkFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()
	if !b.lastFrame.IsZero() {
		b.intervals[b.next] = now.Sub(b.lastFrame)
		b.next = (b.next + 1) % fpsWindow
		if b.filled < fpsWindow {
			b.filled++
		}
	}
	b.lastFrame = now
}

// ResetFrames clears the frame rate history, e.g. after a teardown.
func (b *Base) ResetFrames() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFrame = time.Time{}
	b.filled = 0
	b.next = 0
}

func (b *Base) clock() time.Time {
	if b.now == nil {
		return time.Now()
	}
	return b.now()
}

func (b *Base) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var fps float64
	var total time.Duration
	for i := 0; i < b.filled; i++ {
		total += b.intervals[i]
	}
	if total > 0 {
		fps = float64(b.filled) / total.Seconds()
	}

	return Stats{
		FPS:         fps,
		Geometry:    b.geometry,
		NeedsVideo:  b.needsVideo,
		FrameWidth:  b.frameWidth,
		FrameHeight: b.frameHeight,
	}
}

// Blank turns every pixel off and flushes.
func (b *Base) Blank() error {
	for i := 0; i < b.Sink.Len(); i++ {
		if err := b.Sink.SetPixel(i, pixel.Black); err != nil {
			return err
		}
	}
	return b.Sink.Flush()
}

// TakeScreenshot writes a 1x1 placeholder. Extensions with a video source
// override it.
func (b *Base) TakeScreenshot(path string) error {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	return writePNG(path, img)
}

const previewCell = 10

// MakePixelFrame renders the strip as it sits around the screen edges.
func (b *Base) MakePixelFrame(path string) error {
	g := b.Geometry()
	pixels := b.Sink.Pixels()

	cols := max(g.Top, g.Bottom) + 2
	rows := max(g.Left, g.Right) + 2
	img := image.NewRGBA(image.Rect(0, 0, cols*previewCell, rows*previewCell))

	at := func(i int) color.RGBA {
		if i < 0 || i >= len(pixels) {
			return color.RGBA{A: 255}
		}
		p := pixels[i]
		return color.RGBA{R: p.R, G: p.G, B: p.B, A: 255}
	}

	for _, seg := range g.Segments() {
		for n := 0; n < seg.Count; n++ {
			var x, y int
			switch seg.Edge {
			case EdgeLeft:
				x, y = 0, rows-2-n
			case EdgeTop:
				x, y = 1+n, 0
			case EdgeRight:
				x, y = cols-1, 1+n
			case EdgeBottom:
				x, y = cols-2-n, rows-1
			}
			fillCell(img, x, y, at(seg.Start+n))
		}
	}
	return writePNG(path, img)
}

func fillCell(img *image.RGBA, cx, cy int, c color.RGBA) {
	for y := cy * previewCell; y < (cy+1)*previewCell; y++ {
		for x := cx * previewCell; x < (cx+1)*previewCell; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func writePNG(path string, img image.Image) error {
	if path == "" {
		return fmt.Errorf("no output path configured")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// WritePNG is exported for extensions that render their own screenshot.
func WritePNG(path string, img image.Image) error {
	return writePNG(path, img)
}
