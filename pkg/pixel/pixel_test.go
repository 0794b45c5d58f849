package pixel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPixelBounds(t *testing.T) {
	s := NewStrip(3, NewMemoryDriver())

	require.NoError(t, s.SetPixel(0, RGB{R: 1}))
	require.NoError(t, s.SetPixel(2, RGB{B: 9}))
	assert.ErrorIs(t, s.SetPixel(3, RGB{}), ErrPixelOutOfRange)
	assert.ErrorIs(t, s.SetPixel(-1, RGB{}), ErrPixelOutOfRange)

	assert.Equal(t, []RGB{{R: 1}, {}, {B: 9}}, s.Pixels())
}

func TestFlushOnlyWritesChanges(t *testing.T) {
	d := NewMemoryDriver()
	s := NewStrip(2, d)

	require.NoError(t, s.Flush())
	assert.Equal(t, 0, d.Writes(), "untouched strip should not be written")

	require.NoError(t, s.SetPixel(1, RGB{R: 10, G: 20, B: 30}))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Flush())
	assert.Equal(t, 1, d.Writes())
	assert.Equal(t, []byte{0, 0, 0, 10, 20, 30}, d.Frame())

	// same colour again does not mark the strip dirty
	require.NoError(t, s.SetPixel(1, RGB{R: 10, G: 20, B: 30}))
	require.NoError(t, s.Flush())
	assert.Equal(t, 1, d.Writes())
}

func TestFillAndClose(t *testing.T) {
	d := NewMemoryDriver()
	s := NewStrip(2, d)
	s.Fill(RGB{G: 255})
	require.NoError(t, s.Flush())
	assert.Equal(t, []byte{0, 255, 0, 0, 255, 0}, d.Frame())

	require.NoError(t, s.Close())
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0}, d.Frame())
	assert.ErrorIs(t, s.Flush(), ErrSinkClosed)
}

func TestDeviceDriverWritesFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strip.bin")
	d, err := OpenDevice(path)
	require.NoError(t, err)

	s := NewStrip(1, d)
	require.NoError(t, s.SetPixel(0, RGB{R: 1, G: 2, B: 3}))
	require.NoError(t, s.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	require.NoError(t, d.Close())
}
