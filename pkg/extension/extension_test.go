package extension

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aurora/pkg/messages"
	"aurora/pkg/pixel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtension struct {
	Base
	name string
}

func (s *stubExtension) Metadata() Metadata {
	return Metadata{Name: s.name, Author: "tests", Description: "stub"}
}
func (s *stubExtension) Setup() error     { return nil }
func (s *stubExtension) Teardown() error  { return nil }
func (s *stubExtension) Visualise() error { return nil }

func stubFactory(name string) Factory {
	return func(sink pixel.Sink, cfg Config) (Extension, error) {
		e := &stubExtension{name: name}
		e.Init(sink, cfg)
		return e, nil
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeManifests(t *testing.T, ids ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, id := range ids {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".yaml"), []byte("options: {}\n"), 0o644))
	}
	return dir
}

func newTestRegistry(t *testing.T) (*Registry, *messages.Log) {
	t.Helper()
	msgs := messages.NewLog()
	reg := NewRegistry(pixel.NewStrip(10, pixel.NewMemoryDriver()), DirProvider{}, testLogger(), msgs)
	return reg, msgs
}

func TestDiscoverSkipsFailingCandidate(t *testing.T) {
	reg, msgs := newTestRegistry(t)
	require.NoError(t, reg.Register("alpha", stubFactory("Alpha")))
	require.NoError(t, reg.Register("beta", stubFactory("Beta")))
	require.NoError(t, reg.Register("broken", func(pixel.Sink, Config) (Extension, error) {
		return nil, errors.New("missing colour table")
	}))

	catalog, err := reg.Discover(writeManifests(t, "alpha", "broken", "beta"))
	require.NoError(t, err)

	assert.Equal(t, 2, catalog.Len())
	_, ok := catalog.Get("broken")
	assert.False(t, ok)
	alpha, ok := catalog.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "Alpha", alpha.Name)

	got := msgs.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, "Could not load extension broken: missing colour table", got[0])
}

func TestDiscoverRecoversConstructorPanic(t *testing.T) {
	reg, msgs := newTestRegistry(t)
	require.NoError(t, reg.Register("alpha", stubFactory("Alpha")))
	require.NoError(t, reg.Register("crashy", func(pixel.Sink, Config) (Extension, error) {
		panic("nil map")
	}))

	catalog, err := reg.Discover(writeManifests(t, "alpha", "crashy"))
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.Len())
	assert.Len(t, msgs.Drain(), 1)
}

type badMetadataExtension struct {
	stubExtension
}

func (b *badMetadataExtension) Metadata() Metadata {
	panic("metadata table not loaded")
}

func TestDiscoverRecoversMetadataPanic(t *testing.T) {
	reg, msgs := newTestRegistry(t)
	require.NoError(t, reg.Register("alpha", stubFactory("Alpha")))
	require.NoError(t, reg.Register("bad", func(sink pixel.Sink, cfg Config) (Extension, error) {
		e := &badMetadataExtension{}
		e.Init(sink, cfg)
		return e, nil
	}))
	require.NoError(t, reg.Register("beta", stubFactory("Beta")))

	var catalog *Catalog
	require.NotPanics(t, func() {
		var err error
		catalog, err = reg.Discover(writeManifests(t, "alpha", "bad", "beta"))
		require.NoError(t, err)
	})
	assert.Equal(t, 2, catalog.Len())
	_, ok := catalog.Get("bad")
	assert.False(t, ok)

	got := msgs.Drain()
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "Could not load extension bad")
	assert.Contains(t, got[0], "metadata table not loaded")
}

func TestDiscoverExcludesReservedAndUnderscore(t *testing.T) {
	reg, msgs := newTestRegistry(t)
	require.NoError(t, reg.Register(ConfigureID, stubFactory("Configure")))
	require.NoError(t, reg.Register(ExampleID, stubFactory("Example")))
	require.NoError(t, reg.Register("alpha", stubFactory("Alpha")))

	catalog, err := reg.Discover(writeManifests(t, ConfigureID, ExampleID, "alpha", "__init"))
	require.NoError(t, err)

	ids := []string{}
	for _, d := range catalog.List() {
		ids = append(ids, d.SourceID)
	}
	assert.Equal(t, []string{"alpha"}, ids)
	assert.Empty(t, msgs.Drain())
}

func TestDiscoverUnknownSourceIsReported(t *testing.T) {
	reg, msgs := newTestRegistry(t)

	catalog, err := reg.Discover(writeManifests(t, "ghost"))
	require.NoError(t, err)
	assert.Equal(t, 0, catalog.Len())
	assert.Equal(t, []string{"Could not load extension ghost: extension not found: ghost"}, msgs.Drain())
}

func TestDiscoverMissingDirectory(t *testing.T) {
	reg, msgs := newTestRegistry(t)
	_, err := reg.Discover(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Len(t, msgs.Drain(), 1)
}

func TestManifestOptionsReachConstructor(t *testing.T) {
	reg, _ := newTestRegistry(t)
	var seen Config
	require.NoError(t, reg.Register("solid", func(sink pixel.Sink, cfg Config) (Extension, error) {
		seen = cfg
		return stubFactory("Solid")(sink, cfg)
	}))
	reg.SetGeometrySource(func() Geometry { return Geometry{Left: 2, Top: 3} })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "solid.yaml"),
		[]byte("options:\n  colour: \"#ff0000\"\n"), 0o644))
	_, err := reg.Discover(dir)
	require.NoError(t, err)

	_, err = reg.Construct("solid")
	require.NoError(t, err)
	assert.Equal(t, "solid", seen.SourceID)
	assert.Equal(t, "#ff0000", seen.Options["colour"])
	assert.Equal(t, 5, seen.Geometry.Total())
}

func TestRegisterDuplicate(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.Register("alpha", stubFactory("Alpha")))
	assert.ErrorIs(t, reg.Register("alpha", stubFactory("Alpha")), ErrAlreadyRegistered)
	assert.Equal(t, []string{"alpha"}, reg.Sources())
}

func TestConstructUnknown(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Construct("nope")
	assert.ErrorIs(t, err, ErrExtensionNotFound)
}

func TestConstructNilInstance(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.Register("empty", func(pixel.Sink, Config) (Extension, error) {
		return nil, nil
	}))
	_, err := reg.Construct("empty")
	assert.ErrorIs(t, err, ErrNilExtension)
}

func TestStaticProvider(t *testing.T) {
	msgs := messages.NewLog()
	reg := NewRegistry(pixel.NewStrip(1, pixel.NewMemoryDriver()),
		StaticProvider{IDs: []string{"beta", "alpha"}}, testLogger(), msgs)
	require.NoError(t, reg.Register("alpha", stubFactory("Alpha")))
	require.NoError(t, reg.Register("beta", stubFactory("Beta")))

	catalog, err := reg.Discover("")
	require.NoError(t, err)
	list := catalog.List()
	require.Len(t, list, 2)
	assert.Equal(t, "beta", list[0].SourceID, "enumeration order is kept")
}

func TestGeometrySegments(t *testing.T) {
	g := Geometry{Left: 2, Right: 3, Top: 4, Bottom: 1}
	assert.Equal(t, 10, g.Total())
	assert.Equal(t, []Segment{
		{Edge: EdgeLeft, Start: 0, Count: 2},
		{Edge: EdgeTop, Start: 2, Count: 4},
		{Edge: EdgeRight, Start: 6, Count: 3},
		{Edge: EdgeBottom, Start: 9, Count: 1},
	}, g.Segments())
}

func TestBaseRollingFPS(t *testing.T) {
	var b Base
	b.Init(pixel.NewStrip(1, pixel.NewMemoryDriver()), Config{})

	clock := time.Unix(0, 0)
	b.now = func() time.Time { return clock }

	assert.Zero(t, b.Stats().FPS)
	for i := 0; i < 5; i++ {
		b.MarkFrame()
		clock = clock.Add(20 * time.Millisecond)
	}
	assert.InDelta(t, 50.0, b.Stats().FPS, 0.001)

	b.ResetFrames()
	assert.Zero(t, b.Stats().FPS)
}

func TestBaseWritesPixelFrame(t *testing.T) {
	strip := pixel.NewStrip(4, pixel.NewMemoryDriver())
	var b Base
	b.Init(strip, Config{Geometry: Geometry{Left: 1, Right: 1, Top: 1, Bottom: 1}})
	require.NoError(t, strip.SetPixel(0, pixel.RGB{R: 255}))

	path := filepath.Join(t.TempDir(), "pixels.png")
	require.NoError(t, b.MakePixelFrame(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	shot := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, b.TakeScreenshot(shot))
	assert.Error(t, b.TakeScreenshot(""))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "SetupDone", StateSetupDone.String())
	assert.Equal(t, "TornDown", StateTornDown.String())
}
