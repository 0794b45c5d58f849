package extension

import (
	"aurora/pkg/pixel"
)

// State tracks one extension instance through its lifecycle. Only the
// lifecycle coordinator moves an instance between states.
type State int

const (
	StateUnloaded State = iota
	StateConstructed
	StateSetupDone
	StateTornDown
)

func (s State) String() string {
	return [...]string{
		"Unloaded",
		"Constructed",
		"SetupDone",
		"TornDown",
	}[s]
}

// Metadata is the static information an extension reports about itself.
type Metadata struct {
	Name        string `json:"name" yaml:"name"`
	Author      string `json:"author" yaml:"author"`
	Description string `json:"description" yaml:"description"`
}

// Descriptor describes a discoverable extension. Descriptors are rebuilt on
// every discovery pass.
type Descriptor struct {
	SourceID    string `json:"source_id"`
	Name        string `json:"name"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

func NewDescriptor(sourceID string, md Metadata) Descriptor {
	return Descriptor{
		SourceID:    sourceID,
		Name:        md.Name,
		Author:      md.Author,
		Description: md.Description,
	}
}

// Stats is the runtime state an extension exposes for reporting.
type Stats struct {
	FPS         float64  `json:"fps"`
	Geometry    Geometry `json:"geometry"`
	NeedsVideo  bool     `json:"needs_video"`
	FrameWidth  int      `json:"frame_width"`
	FrameHeight int      `json:"frame_height"`
}

// Extension is implemented by every visualisation. Any hook may fail; the
// caller records the failure and keeps its previous state.
type Extension interface {
	Metadata() Metadata

	// Setup prepares the extension for rendering. It is called again after
	// geometry changes so buffers can be resized.
	Setup() error
	Teardown() error

	// Visualise performs one render pass into the pixel sink.
	Visualise() error

	TakeScreenshot(path string) error
	MakePixelFrame(path string) error

	Stats() Stats
	SetGeometry(g Geometry)
}

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Config is handed to an extension constructor. It carries everything an
// extension may read about its environment.
type Config struct {
	SourceID string
	Geometry Geometry
	Options  map[string]interface{}
	Logger   Logger
}

// Factory builds a fresh extension bound to sink.
type Factory func(sink pixel.Sink, cfg Config) (Extension, error)
