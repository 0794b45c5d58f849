package extensions

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"aurora/pkg/extension"
	"aurora/pkg/extensions/mirror"
	"aurora/pkg/extensions/rainbow"
	"aurora/pkg/extensions/solid"
	"aurora/pkg/messages"
	"aurora/pkg/pixel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newConfig(id string, g extension.Geometry, opts map[string]interface{}) extension.Config {
	return extension.Config{SourceID: id, Geometry: g, Options: opts, Logger: testLogger()}
}

func TestRegisterAll_ListsOnlyPublicExtensions(t *testing.T) {
	msgs := messages.NewLog()
	reg := extension.NewRegistry(pixel.NewStrip(8, pixel.NewMemoryDriver()),
		extension.StaticProvider{IDs: IDs()}, testLogger(), msgs)
	require.NoError(t, RegisterAll(reg))

	catalog, err := reg.Discover("")
	require.NoError(t, err)

	var ids []string
	for _, d := range catalog.List() {
		ids = append(ids, d.SourceID)
	}
	assert.Equal(t, []string{"rainbow", "solid", "mirror"}, ids)
	assert.Empty(t, msgs.Drain())

	_, err = reg.Construct(extension.ConfigureID)
	assert.NoError(t, err)
	assert.ErrorIs(t, RegisterAll(reg), extension.ErrAlreadyRegistered)
}

func TestRainbow_FillsGeometry(t *testing.T) {
	strip := pixel.NewStrip(16, pixel.NewMemoryDriver())
	ext, err := rainbow.New(strip, newConfig("rainbow", extension.Geometry{Left: 2, Top: 2, Right: 2, Bottom: 2}, nil))
	require.NoError(t, err)

	require.NoError(t, ext.Setup())
	require.NoError(t, ext.Visualise())

	px := strip.Pixels()
	assert.Equal(t, pixel.RGB{R: 255}, px[0])
	assert.NotEqual(t, px[0], px[4])
	assert.Equal(t, pixel.Black, px[8])

	require.NoError(t, ext.Teardown())
	assert.Equal(t, pixel.Black, strip.Pixels()[0])
}

func TestRainbow_RejectsBadSpeed(t *testing.T) {
	_, err := rainbow.New(pixel.NewStrip(1, pixel.NewMemoryDriver()),
		newConfig("rainbow", extension.Geometry{}, map[string]interface{}{"speed": "fast"}))
	assert.Error(t, err)
}

func TestHSV(t *testing.T) {
	assert.Equal(t, pixel.RGB{R: 255}, rainbow.HSV(0, 1, 1))
	assert.Equal(t, pixel.RGB{G: 255}, rainbow.HSV(120, 1, 1))
	assert.Equal(t, pixel.RGB{B: 255}, rainbow.HSV(240, 1, 1))
	assert.Equal(t, pixel.RGB{R: 255, G: 255, B: 255}, rainbow.HSV(42, 0, 1))
}

func TestSolid(t *testing.T) {
	strip := pixel.NewStrip(4, pixel.NewMemoryDriver())
	ext, err := solid.New(strip, newConfig("solid", extension.Geometry{Left: 3},
		map[string]interface{}{"colour": "#FF8000", "brightness": 0.5}))
	require.NoError(t, err)

	require.NoError(t, ext.Visualise())
	px := strip.Pixels()
	assert.Equal(t, pixel.RGB{R: 127, G: 64}, px[2])
	assert.Equal(t, pixel.Black, px[3])

	_, err = solid.New(strip, newConfig("solid", extension.Geometry{}, map[string]interface{}{"colour": "orange"}))
	assert.Error(t, err)
}

func TestConfigureWizard_MarksEdges(t *testing.T) {
	strip := pixel.NewStrip(10, pixel.NewMemoryDriver())
	reg := extension.NewRegistry(strip, extension.StaticProvider{}, testLogger(), messages.NewLog())
	require.NoError(t, RegisterAll(reg))
	reg.SetGeometrySource(func() extension.Geometry {
		return extension.Geometry{Left: 2, Top: 2, Right: 2, Bottom: 2}
	})

	ext, err := reg.Construct(extension.ConfigureID)
	require.NoError(t, err)
	require.NoError(t, ext.Setup())
	require.NoError(t, ext.Visualise())

	px := strip.Pixels()
	white := pixel.RGB{R: 255, G: 255, B: 255}
	assert.Equal(t, white, px[0])
	assert.Equal(t, pixel.RGB{R: 255}, px[1])
	assert.Equal(t, white, px[2])
	assert.Equal(t, pixel.RGB{G: 255}, px[3])
	assert.Equal(t, pixel.Black, px[8])
}

func writeFrame(t *testing.T, path string) {
	t.Helper()
	// left half red, right half blue, top rows green
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= 20 {
				c = color.RGBA{B: 255, A: 255}
			}
			if y < 4 {
				c = color.RGBA{G: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestMirror_SamplesEdges(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "frame.png")
	writeFrame(t, source)

	strip := pixel.NewStrip(8, pixel.NewMemoryDriver())
	g := extension.Geometry{Left: 2, Top: 2, Right: 2, Bottom: 2}
	ext, err := mirror.New(strip, newConfig("mirror", g, map[string]interface{}{"source": source}))
	require.NoError(t, err)

	require.NoError(t, ext.Setup())
	require.NoError(t, ext.Visualise())

	stats := ext.Stats()
	assert.True(t, stats.NeedsVideo)
	assert.Equal(t, 40, stats.FrameWidth)
	assert.Equal(t, 20, stats.FrameHeight)

	px := strip.Pixels()
	assert.Equal(t, pixel.RGB{R: 255}, px[0], "left edge, bottom half")
	assert.Equal(t, pixel.RGB{G: 255}, px[2], "top edge, left half")
	assert.Equal(t, pixel.RGB{B: 255}, px[5], "right edge, bottom half")
	assert.Equal(t, pixel.RGB{B: 255}, px[6], "bottom edge, right half")
	assert.Equal(t, pixel.RGB{R: 255}, px[7], "bottom edge, left half")

	shot := filepath.Join(dir, "shot.png")
	require.NoError(t, ext.TakeScreenshot(shot))
	f, err := os.Open(shot)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
}

func TestMirror_SetupWithoutSource(t *testing.T) {
	ext, err := mirror.New(pixel.NewStrip(1, pixel.NewMemoryDriver()), newConfig("mirror", extension.Geometry{}, nil))
	require.NoError(t, err)
	assert.ErrorIs(t, ext.Setup(), mirror.ErrNoSource)
}
