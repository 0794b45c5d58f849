package extension

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"aurora/pkg/extension/sandbox"
	"aurora/pkg/messages"
	"aurora/pkg/pixel"
)

var (
	ErrExtensionNotFound = errors.New("extension not found")
	ErrAlreadyRegistered = errors.New("extension already registered")
	ErrNilExtension      = errors.New("constructor returned no extension")
)

// Reserved source ids. They can be constructed but are never listed.
const (
	ConfigureID = "configure"
	ExampleID   = "example"
)

var reserved = map[string]bool{
	ConfigureID: true,
	ExampleID:   true,
}

func IsReserved(sourceID string) bool {
	return reserved[sourceID]
}

// Registry maps source ids to compiled-in constructors and runs discovery
// passes over a SourceProvider.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	options   map[string]map[string]interface{}
	sink      pixel.Sink
	provider  SourceProvider
	geometry  func() Geometry
	logger    Logger
	messages  *messages.Log
}

// NewRegistry creates a registry whose extensions draw into sink.
func NewRegistry(sink pixel.Sink, provider SourceProvider, logger Logger, msgs *messages.Log) *Registry {
	if provider == nil {
		provider = DirProvider{}
	}
	return &Registry{
		factories: make(map[string]Factory),
		options:   make(map[string]map[string]interface{}),
		sink:      sink,
		provider:  provider,
		geometry:  func() Geometry { return Geometry{} },
		logger:    logger,
		messages:  msgs,
	}
}

func (r *Registry) Register(sourceID string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[sourceID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, sourceID)
	}
	r.factories[sourceID] = factory
	r.logger.Debug("extension registered", "extension", sourceID)
	return nil
}

// SetGeometrySource sets where constructors get their initial geometry from.
func (r *Registry) SetGeometrySource(fn func() Geometry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.geometry = fn
}

// Sources returns every registered source id, sorted.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Construct builds a fresh instance of sourceID. Construction is not a
// lifecycle transition; the instance is left in StateConstructed.
func (r *Registry) Construct(sourceID string) (Extension, error) {
	r.mu.RLock()
	factory, exists := r.factories[sourceID]
	opts := r.options[sourceID]
	geometry := r.geometry
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrExtensionNotFound, sourceID)
	}
	return r.build(sourceID, factory, opts, geometry())
}

func (r *Registry) build(sourceID string, factory Factory, opts map[string]interface{},
	g Geometry) (Extension, error) {
	cfg := Config{
		SourceID: sourceID,
		Geometry: g,
		Options:  copyOptions(opts),
		Logger:   r.logger,
	}

	var ext Extension
	sb := sandbox.NewSandbox(sourceID, sandbox.DefaultLimits(), nil)
	err := sb.Execute("construct", func() error {
		var err error
		ext, err = factory(r.sink, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	if ext == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilExtension, sourceID)
	}
	return ext, nil
}

// Discover enumerates candidates under dir and builds a descriptor for each
// one that constructs cleanly. A failing candidate is skipped and reported
// to the message log; only a failure to enumerate at all is returned.
func (r *Registry) Discover(dir string) (*Catalog, error) {
	catalog := NewCatalog()

	candidates, err := r.provider.Candidates(dir)
	if err != nil {
		r.messages.Addf("Could not read extensions from %s: %v", dir, err)
		r.logger.Error("failed to enumerate extensions", "dir", dir, "error", err)
		return catalog, fmt.Errorf("failed to enumerate extensions: %w", err)
	}

	for _, candidate := range candidates {
		if IsReserved(candidate.ID) {
			continue
		}

		desc, err := r.describe(candidate)
		if err != nil {
			r.messages.Addf("Could not load extension %s: %v", candidate.ID, err)
			r.logger.Warn("failed to load extension", "extension", candidate.ID, "error", err)
			continue
		}
		catalog.add(desc)
		r.logger.Debug("extension discovered", "extension", candidate.ID, "name", desc.Name)
	}

	r.logger.Info("extensions discovered", "dir", dir, "count", catalog.Len())
	return catalog, nil
}

func (r *Registry) describe(candidate Candidate) (Descriptor, error) {
	if candidate.Err != nil {
		return Descriptor{}, candidate.Err
	}

	r.mu.Lock()
	factory, exists := r.factories[candidate.ID]
	if candidate.Options != nil {
		r.options[candidate.ID] = candidate.Options
	}
	geometry := r.geometry
	r.mu.Unlock()

	if !exists {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrExtensionNotFound, candidate.ID)
	}

	// the instance only exists to read its metadata
	ext, err := r.build(candidate.ID, factory, candidate.Options, geometry())
	if err != nil {
		return Descriptor{}, err
	}
	var md Metadata
	sb := sandbox.NewSandbox(candidate.ID, sandbox.DefaultLimits(), nil)
	if err := sb.Execute("metadata", func() error {
		md = ext.Metadata()
		return nil
	}); err != nil {
		return Descriptor{}, err
	}
	return NewDescriptor(candidate.ID, md), nil
}

func copyOptions(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Catalog is the result of one discovery pass, in enumeration order.
type Catalog struct {
	order []string
	byID  map[string]Descriptor
}

func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]Descriptor)}
}

func (c *Catalog) add(d Descriptor) {
	if _, exists := c.byID[d.SourceID]; !exists {
		c.order = append(c.order, d.SourceID)
	}
	c.byID[d.SourceID] = d
}

func (c *Catalog) Get(sourceID string) (Descriptor, bool) {
	d, ok := c.byID[sourceID]
	return d, ok
}

func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.order)
}
