package lifecycle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"aurora/pkg/config"
	"aurora/pkg/extension"
	"aurora/pkg/extension/sandbox"
	"aurora/pkg/messages"
	"aurora/pkg/pixel"
)

// Store is the part of the config store the coordinator reads and writes.
// *config.Store satisfies it.
type Store interface {
	GetBool(section, key string) (bool, error)
	GetInt(section, key string) (int, error)
	GetString(section, key string) (string, error)
	GetDuration(section, key string) (time.Duration, error)
	Set(section, key string, value interface{}) error
	Save() error
	Reload() error
}

type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// GeometryInput is raw geometry as submitted by a user. An empty field is
// left unchanged.
type GeometryInput struct {
	Left   string `json:"left"`
	Right  string `json:"right"`
	Top    string `json:"top"`
	Bottom string `json:"bottom"`
	Save   bool   `json:"save"`
}

type RuntimeStats struct {
	Extension      string  `json:"extension"`
	State          string  `json:"state"`
	Enabled        bool    `json:"enabled"`
	Started        bool    `json:"started"`
	FPS            float64 `json:"fps"`
	Left           int     `json:"left"`
	Right          int     `json:"right"`
	Top            int     `json:"top"`
	Bottom         int     `json:"bottom"`
	Total          int     `json:"total"`
	NeedsVideo     bool    `json:"needs_video"`
	FrameWidth     int     `json:"frame_width"`
	FrameHeight    int     `json:"frame_height"`
	Renders        uint64  `json:"renders"`
	RenderFailures uint64  `json:"render_failures"`
	LastRenderErr  string  `json:"last_render_error,omitempty"`
	HookCalls      int64   `json:"hook_calls"`
	HookFailures   int64   `json:"hook_failures"`
	LastHookError  string  `json:"last_hook_error,omitempty"`
}

// Coordinator owns the active extension. Lifecycle operations serialize on
// mu and, before touching the active instance, wait until no render pass is
// in flight and then hold exclusivity until they are done. A render pass
// never starts while exclusivity is held.
type Coordinator struct {
	mu sync.Mutex

	renderMu   sync.Mutex
	renderDone *sync.Cond
	rendering  bool
	exclusive  bool
	closed     bool

	// guarded by renderMu; written only while exclusive
	current   extension.Extension
	desc      extension.Descriptor
	state     extension.State
	hooks     *sandbox.Sandbox
	enabled   bool
	geometry  extension.Geometry
	warnAfter time.Duration

	catalogMu sync.RWMutex
	catalog   *extension.Catalog

	renders        atomic.Uint64
	renderFailures atomic.Uint64
	lastRenderErr  *Error // guarded by renderMu

	store    Store
	registry *extension.Registry
	sink     pixel.Sink
	messages *messages.Log
	logger   Logger
}

func NewCoordinator(store Store, registry *extension.Registry, sink pixel.Sink,
	msgs *messages.Log, logger Logger) *Coordinator {
	c := &Coordinator{
		catalog:  extension.NewCatalog(),
		store:    store,
		registry: registry,
		sink:     sink,
		messages: msgs,
		logger:   logger,
	}
	c.renderDone = sync.NewCond(&c.renderMu)
	registry.SetGeometrySource(c.Geometry)
	return c
}

// Bootstrap reads the stored settings, discovers extensions and selects the
// persisted one.
func (c *Coordinator) Bootstrap() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	enabled, err := c.loadSettings("bootstrap")
	if err != nil {
		return err
	}
	c.setEnabledFlag(enabled)
	// the persisted extension is constructed directly, so an unreadable
	// directory only leaves the list empty
	_ = c.refresh("bootstrap")

	id, err := c.store.GetString(config.SectionExtensions, config.KeyCurrentExtension)
	if err != nil {
		return c.fail(&Error{Kind: KindPersistence, Op: "bootstrap", Err: err})
	}
	return c.swap("bootstrap", id)
}

// loadSettings reads geometry and hook limits from the store and returns
// the stored enabled flag for the caller to apply.
func (c *Coordinator) loadSettings(op string) (bool, error) {
	enabled, err := c.store.GetBool(config.SectionGeneral, config.KeyEnabled)
	if err != nil {
		return false, c.fail(&Error{Kind: KindPersistence, Op: op, Err: err})
	}
	warnAfter, err := c.store.GetDuration(config.SectionGeneral, config.KeyHookWarnAfter)
	if err != nil {
		return false, c.fail(&Error{Kind: KindPersistence, Op: op, Err: err})
	}
	var g extension.Geometry
	for _, f := range []struct {
		key string
		dst *int
	}{
		{config.KeyPixelsLeft, &g.Left},
		{config.KeyPixelsRight, &g.Right},
		{config.KeyPixelsTop, &g.Top},
		{config.KeyPixelsBottom, &g.Bottom},
	} {
		if *f.dst, err = c.store.GetInt(config.SectionAurora, f.key); err != nil {
			return false, c.fail(&Error{Kind: KindPersistence, Op: op, Err: err})
		}
	}

	c.renderMu.Lock()
	c.geometry = g
	c.warnAfter = warnAfter
	c.renderMu.Unlock()
	return enabled, nil
}

// ExtensionList returns the descriptors from the last discovery pass.
func (c *Coordinator) ExtensionList() []extension.Descriptor {
	c.catalogMu.RLock()
	defer c.catalogMu.RUnlock()
	return c.catalog.List()
}

// RefreshExtensions runs a new discovery pass and returns its result. When
// the directory cannot be enumerated the list is empty and the error is of
// KindDiscovery.
func (c *Coordinator) RefreshExtensions() ([]extension.Descriptor, error) {
	err := c.refresh("refresh")
	return c.ExtensionList(), err
}

func (c *Coordinator) refresh(op string) error {
	dir, err := c.store.GetString(config.SectionExtensions, config.KeyDirectory)
	if err != nil {
		return c.fail(&Error{Kind: KindPersistence, Op: op, Err: err})
	}
	catalog, err := c.registry.Discover(dir)
	c.catalogMu.Lock()
	c.catalog = catalog
	c.catalogMu.Unlock()
	if err != nil {
		return c.fail(&Error{Kind: KindDiscovery, Op: op, Err: err})
	}
	return nil
}

func (c *Coordinator) CurrentDescriptor() (extension.Descriptor, bool) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	return c.desc, c.current != nil
}

// Messages returns the pending diagnostics and clears them.
func (c *Coordinator) Messages() []string {
	return c.messages.Drain()
}

func (c *Coordinator) Enabled() bool {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	return c.enabled
}

func (c *Coordinator) Geometry() extension.Geometry {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	return c.geometry
}

// State reports the lifecycle state of the active instance.
func (c *Coordinator) State() extension.State {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	if c.current == nil {
		return extension.StateUnloaded
	}
	return c.state
}

// SelectExtension swaps the active extension for a fresh instance of
// sourceID and persists the choice. Reserved ids are rejected.
func (c *Coordinator) SelectExtension(sourceID string) error {
	if extension.IsReserved(sourceID) {
		return &Error{Kind: KindValidation, Op: "select", SourceID: sourceID, Err: ErrReservedExtension}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.swap("select", sourceID)
}

// swap must be called with mu held.
func (c *Coordinator) swap(op, sourceID string) error {
	ext, err := c.registry.Construct(sourceID)
	var desc extension.Descriptor
	if err == nil {
		desc, err = c.describe(sourceID, ext)
	}
	if err != nil {
		c.messages.Addf("Could not load extension %s: %v", sourceID, err)
		return c.fail(&Error{Kind: KindConstruction, Op: op, SourceID: sourceID, Err: err})
	}
	hooks := c.newSandbox(sourceID)

	c.acquire()
	defer c.release()

	c.renderMu.Lock()
	prev, prevDesc, prevHooks, prevState := c.current, c.desc, c.hooks, c.state
	c.renderMu.Unlock()

	wasRunning := prev != nil && prevState == extension.StateSetupDone
	if wasRunning {
		if err := prevHooks.Execute("teardown", prev.Teardown); err != nil {
			c.messages.Addf("Error in teardown: %v", err)
			c.logger.Warn("teardown failed", "extension", prevDesc.SourceID, "error", err)
		}
		prevState = extension.StateTornDown
	}

	c.install(ext, desc, hooks, extension.StateConstructed)
	if err := hooks.Execute("setup", ext.Setup); err != nil {
		c.messages.Addf("Could not set up extension %s: %v", sourceID, err)
		c.rollback(prev, prevDesc, prevHooks, prevState, wasRunning)
		return c.fail(&Error{Kind: KindHook, Op: op, SourceID: sourceID, Err: err})
	}
	c.setState(extension.StateSetupDone)
	c.logger.Info("extension selected", "extension", sourceID, "previous", prevDesc.SourceID)

	if sourceID == extension.ConfigureID {
		return nil
	}
	return c.persist(op, sourceID, setting{config.SectionExtensions, config.KeyCurrentExtension, sourceID})
}

func (c *Coordinator) describe(sourceID string, ext extension.Extension) (extension.Descriptor, error) {
	var md extension.Metadata
	err := sandbox.NewSandbox(sourceID, sandbox.DefaultLimits(), nil).Execute("metadata", func() error {
		md = ext.Metadata()
		return nil
	})
	return extension.NewDescriptor(sourceID, md), err
}

// rollback reinstates the previous instance after a failed setup, setting
// it up again if it was running before the swap.
func (c *Coordinator) rollback(prev extension.Extension, desc extension.Descriptor,
	hooks *sandbox.Sandbox, state extension.State, restart bool) {
	c.install(prev, desc, hooks, state)
	if prev == nil || !restart {
		return
	}
	if err := hooks.Execute("setup", prev.Setup); err != nil {
		c.messages.Addf("Could not restore extension %s: %v", desc.SourceID, err)
		c.logger.Error("rollback failed", "extension", desc.SourceID, "error", err)
		return
	}
	c.setState(extension.StateSetupDone)
	c.logger.Warn("restored previous extension", "extension", desc.SourceID)
}

// SetEnabled tears the active instance down or sets it up again and
// persists the flag. The instance itself is kept.
func (c *Coordinator) SetEnabled(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.applyEnabled("set-enabled", on); err != nil {
		return err
	}
	return c.persist("set-enabled", "", setting{config.SectionGeneral, config.KeyEnabled, on})
}

// applyEnabled must be called with mu held.
func (c *Coordinator) applyEnabled(op string, on bool) error {
	c.acquire()
	defer c.release()

	c.renderMu.Lock()
	ext, desc, hooks, state := c.current, c.desc, c.hooks, c.state
	c.renderMu.Unlock()

	switch {
	case ext == nil:
	case !on && state == extension.StateSetupDone:
		if err := hooks.Execute("teardown", ext.Teardown); err != nil {
			c.messages.Addf("Error in teardown: %v", err)
			c.logger.Warn("teardown failed", "extension", desc.SourceID, "error", err)
		}
		c.setState(extension.StateTornDown)
	case on && state != extension.StateSetupDone:
		if err := hooks.Execute("setup", ext.Setup); err != nil {
			c.messages.Addf("Could not set up extension %s: %v", desc.SourceID, err)
			return c.fail(&Error{Kind: KindHook, Op: op, SourceID: desc.SourceID, Err: err})
		}
		c.setState(extension.StateSetupDone)
	}
	c.setEnabledFlag(on)
	c.logger.Info("render loop toggled", "enabled", on, "extension", desc.SourceID)
	return nil
}

// ReconfigureGeometry applies the fields of in that parse, sets the active
// instance up again and renders one pass. Fields that fail to parse are
// reported in the returned error's Details without blocking the others.
func (c *Coordinator) ReconfigureGeometry(in GeometryInput) (extension.Geometry, error) {
	const op = "reconfigure-geometry"

	c.mu.Lock()
	defer c.mu.Unlock()

	c.renderMu.Lock()
	ext, desc, hooks, g := c.current, c.desc, c.hooks, c.geometry
	c.renderMu.Unlock()
	prev := g

	if ext == nil {
		return g, c.fail(&Error{Kind: KindNoActive, Op: op, Err: ErrNoActiveExtension})
	}

	var details []string
	for _, f := range []struct {
		name  string
		value string
		dst   *int
	}{
		{"left", in.Left, &g.Left},
		{"right", in.Right, &g.Right},
		{"top", in.Top, &g.Top},
		{"bottom", in.Bottom, &g.Bottom},
	} {
		if f.value == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(f.value))
		if err != nil || n < 0 {
			msg := fmt.Sprintf("Invalid pixel count for %s: %q", f.name, f.value)
			c.messages.Add(msg)
			details = append(details, msg)
			continue
		}
		*f.dst = n
	}

	if total := g.Total(); total > c.sink.Len() {
		msg := fmt.Sprintf("Total pixel count %d exceeds strip capacity %d", total, c.sink.Len())
		c.messages.Add(msg)
		return c.Geometry(), c.fail(&Error{Kind: KindValidation, Op: op, Details: []string{msg}, Err: ErrInvalidInput})
	}

	c.acquire()
	ext.SetGeometry(g)
	c.renderMu.Lock()
	c.geometry = g
	c.renderMu.Unlock()

	err := hooks.Execute("setup", ext.Setup)
	if err != nil {
		c.messages.Addf("Could not set up extension %s: %v", desc.SourceID, err)
		c.restoreGeometry(ext, desc, hooks, prev)
		c.release()
		return prev, c.fail(&Error{Kind: KindHook, Op: op, SourceID: desc.SourceID, Err: err})
	}
	c.setState(extension.StateSetupDone)
	c.renderLocked(ext, hooks)
	c.release()

	if in.Save {
		if err := c.persist(op, desc.SourceID,
			setting{config.SectionAurora, config.KeyPixelsLeft, g.Left},
			setting{config.SectionAurora, config.KeyPixelsRight, g.Right},
			setting{config.SectionAurora, config.KeyPixelsTop, g.Top},
			setting{config.SectionAurora, config.KeyPixelsBottom, g.Bottom},
			setting{config.SectionAurora, config.KeyPixelsTotal, g.Total()},
			setting{config.SectionGeneral, config.KeyConfigured, true},
		); err != nil {
			return g, err
		}
		c.messages.Add("Saved config!")
	}

	if len(details) > 0 {
		return g, c.fail(&Error{Kind: KindValidation, Op: op, Details: details, Err: ErrInvalidInput})
	}
	return g, nil
}

// restoreGeometry puts the previous geometry back after a failed setup.
// The lifecycle state is left as it was, so a running instance keeps
// rendering. It must be called with exclusivity held.
func (c *Coordinator) restoreGeometry(ext extension.Extension, desc extension.Descriptor,
	hooks *sandbox.Sandbox, prev extension.Geometry) {
	ext.SetGeometry(prev)
	c.renderMu.Lock()
	c.geometry = prev
	state := c.state
	c.renderMu.Unlock()

	if state != extension.StateSetupDone {
		return
	}
	if err := hooks.Execute("setup", ext.Setup); err != nil {
		c.messages.Addf("Could not restore extension %s: %v", desc.SourceID, err)
		c.logger.Warn("setup with previous geometry failed", "extension", desc.SourceID, "error", err)
	}
}

// CaptureArtifacts asks the active instance to write its screenshot and
// pixel preview to the configured paths.
func (c *Coordinator) CaptureArtifacts() error {
	const op = "capture"

	c.mu.Lock()
	defer c.mu.Unlock()

	c.renderMu.Lock()
	ext, desc, hooks := c.current, c.desc, c.hooks
	c.renderMu.Unlock()

	if ext == nil {
		return c.fail(&Error{Kind: KindNoActive, Op: op, Err: ErrNoActiveExtension})
	}

	screenshot, pixels, err := c.ArtifactPaths()
	if err != nil {
		return c.fail(&Error{Kind: KindPersistence, Op: op, Err: err})
	}

	var errs []error
	if err := hooks.Execute("screenshot", func() error { return ext.TakeScreenshot(screenshot) }); err != nil {
		c.messages.Addf("Could not take screenshot: %v", err)
		errs = append(errs, err)
	}
	if err := hooks.Execute("pixel-frame", func() error { return ext.MakePixelFrame(pixels) }); err != nil {
		c.messages.Addf("Could not make pixel frame: %v", err)
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return c.fail(&Error{Kind: KindHook, Op: op, SourceID: desc.SourceID, Err: errors.Join(errs...)})
	}
	return nil
}

// ArtifactPaths returns the configured screenshot and pixel preview paths.
func (c *Coordinator) ArtifactPaths() (screenshot, pixels string, err error) {
	screenshot, err = c.store.GetString(config.SectionGeneral, config.KeyScreenshotPath)
	if err != nil {
		return "", "", err
	}
	pixels, err = c.store.GetString(config.SectionGeneral, config.KeyPixelImagePath)
	if err != nil {
		return "", "", err
	}
	return screenshot, pixels, nil
}

// EnterConfigureMode switches to the configuration wizard without
// persisting it and renders a single pass so the strip shows the layout.
// The wizard is never driven by the render loop.
func (c *Coordinator) EnterConfigureMode() (extension.Geometry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasEnabled := c.Enabled()
	c.setEnabledFlag(true)
	if err := c.swap("configure", extension.ConfigureID); err != nil {
		c.setEnabledFlag(wasEnabled)
		return c.Geometry(), err
	}

	c.acquire()
	c.renderMu.Lock()
	ext, hooks := c.current, c.hooks
	c.renderMu.Unlock()
	c.renderLocked(ext, hooks)
	c.release()

	return c.Geometry(), nil
}

// Reload re-reads the config store and applies what changed. The wizard is
// replaced by the persisted extension.
func (c *Coordinator) Reload() error {
	const op = "reload"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Reload(); err != nil {
		c.messages.Addf("Could not reload config: %v", err)
		return c.fail(&Error{Kind: KindPersistence, Op: op, Err: err})
	}

	enabled, err := c.loadSettings(op)
	if err != nil {
		return err
	}

	id, err := c.store.GetString(config.SectionExtensions, config.KeyCurrentExtension)
	if err != nil {
		return c.fail(&Error{Kind: KindPersistence, Op: op, Err: err})
	}
	if current, ok := c.CurrentDescriptor(); !ok || current.SourceID != id {
		if err := c.swap(op, id); err != nil {
			return err
		}
	}
	return c.applyEnabled(op, enabled)
}

// Shutdown tears the active instance down and blanks the strip. The render
// loop never runs a pass afterwards.
func (c *Coordinator) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.acquire()
	defer c.release()

	c.renderMu.Lock()
	c.closed = true
	ext, desc, hooks, state := c.current, c.desc, c.hooks, c.state
	c.renderMu.Unlock()

	var errs []error
	if ext != nil && state == extension.StateSetupDone {
		if err := hooks.Execute("teardown", ext.Teardown); err != nil {
			c.logger.Warn("teardown failed", "extension", desc.SourceID, "error", err)
			errs = append(errs, err)
		}
		c.setState(extension.StateTornDown)
	}

	for i := 0; i < c.sink.Len(); i++ {
		if err := c.sink.SetPixel(i, pixel.Black); err != nil {
			errs = append(errs, err)
			break
		}
	}
	if err := c.sink.Flush(); err != nil {
		errs = append(errs, err)
	}
	c.logger.Info("coordinator shut down", "extension", desc.SourceID)
	return errors.Join(errs...)
}

// RenderOnce runs one render pass if rendering is enabled, the active
// instance is started and no lifecycle operation holds exclusivity. Only
// one pass runs at a time. It reports whether a pass completed without
// error.
func (c *Coordinator) RenderOnce() bool {
	c.renderMu.Lock()
	if !c.enabled || c.closed || c.exclusive || c.rendering || !c.startedLocked() {
		c.renderMu.Unlock()
		return false
	}
	c.rendering = true
	ext, desc, hooks := c.current, c.desc, c.hooks
	c.renderMu.Unlock()

	err := c.visualise(ext, desc.SourceID, hooks)

	c.renderMu.Lock()
	c.rendering = false
	c.renderDone.Broadcast()
	c.renderMu.Unlock()

	return err == nil
}

func (c *Coordinator) startedLocked() bool {
	return c.current != nil && c.state == extension.StateSetupDone && c.desc.SourceID != extension.ConfigureID
}

func (c *Coordinator) visualise(ext extension.Extension, sourceID string, hooks *sandbox.Sandbox) error {
	err := hooks.Execute("visualise", ext.Visualise)
	c.renders.Add(1)
	if err == nil {
		return nil
	}
	c.renderFailures.Add(1)
	c.messages.Addf("Error in visualise: %v", err)
	c.logger.Debug("render pass failed", "extension", sourceID, "error", err)

	rerr := &Error{Kind: KindRender, Op: "render", SourceID: sourceID, Err: err}
	c.renderMu.Lock()
	c.lastRenderErr = rerr
	c.renderMu.Unlock()
	return rerr
}

// LastRenderError returns the most recent failed render pass as a
// KindRender error, or nil if no pass has failed.
func (c *Coordinator) LastRenderError() error {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	if c.lastRenderErr == nil {
		return nil
	}
	return c.lastRenderErr
}

// renderLocked runs a pass on behalf of a lifecycle operation that holds
// exclusivity, then flushes the sink.
func (c *Coordinator) renderLocked(ext extension.Extension, hooks *sandbox.Sandbox) {
	if ext == nil {
		return
	}
	c.renderMu.Lock()
	sourceID := c.desc.SourceID
	c.renderMu.Unlock()
	if err := c.visualise(ext, sourceID, hooks); err != nil {
		return
	}
	if err := c.sink.Flush(); err != nil {
		c.messages.Addf("Could not flush pixels: %v", err)
	}
}

func (c *Coordinator) RuntimeStats() RuntimeStats {
	c.renderMu.Lock()
	ext, desc, state, enabled, started, g := c.current, c.desc, c.state, c.enabled, c.startedLocked(), c.geometry
	hooks, lastRender := c.hooks, c.lastRenderErr
	c.renderMu.Unlock()

	out := RuntimeStats{
		Extension:      desc.SourceID,
		State:          extension.StateUnloaded.String(),
		Enabled:        enabled,
		Started:        started,
		Left:           g.Left,
		Right:          g.Right,
		Top:            g.Top,
		Bottom:         g.Bottom,
		Total:          g.Total(),
		Renders:        c.renders.Load(),
		RenderFailures: c.renderFailures.Load(),
	}
	if lastRender != nil {
		out.LastRenderErr = lastRender.Error()
	}
	if ext == nil {
		return out
	}
	out.State = state.String()
	if hooks != nil {
		var lastHook error
		out.HookCalls, out.HookFailures, lastHook = hooks.Stats()
		if lastHook != nil {
			out.LastHookError = lastHook.Error()
		}
	}

	stats := ext.Stats()
	out.FPS = stats.FPS
	out.Left, out.Right = stats.Geometry.Left, stats.Geometry.Right
	out.Top, out.Bottom = stats.Geometry.Top, stats.Geometry.Bottom
	out.Total = stats.Geometry.Total()
	out.NeedsVideo = stats.NeedsVideo
	out.FrameWidth, out.FrameHeight = stats.FrameWidth, stats.FrameHeight
	return out
}

// acquire waits for an in-flight render pass and takes exclusivity. It must
// be called with mu held.
func (c *Coordinator) acquire() {
	c.renderMu.Lock()
	for c.rendering {
		c.renderDone.Wait()
	}
	c.exclusive = true
	c.renderMu.Unlock()
}

func (c *Coordinator) release() {
	c.renderMu.Lock()
	c.exclusive = false
	c.renderMu.Unlock()
}

func (c *Coordinator) install(ext extension.Extension, desc extension.Descriptor,
	hooks *sandbox.Sandbox, state extension.State) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	c.current, c.desc, c.hooks, c.state = ext, desc, hooks, state
}

func (c *Coordinator) setState(state extension.State) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	c.state = state
}

func (c *Coordinator) setEnabledFlag(on bool) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	c.enabled = on
}

func (c *Coordinator) newSandbox(sourceID string) *sandbox.Sandbox {
	c.renderMu.Lock()
	limits := sandbox.Limits{WarnAfter: c.warnAfter}
	c.renderMu.Unlock()

	return sandbox.NewSandbox(sourceID, limits, func(owner, hook string, elapsed time.Duration) {
		c.messages.Addf("Extension %s: %s is taking longer than %v", owner, hook, limits.WarnAfter)
		c.logger.Warn("slow extension hook", "extension", owner, "hook", hook, "elapsed", elapsed)
	})
}

type setting struct {
	section string
	key     string
	value   interface{}
}

func (c *Coordinator) persist(op, sourceID string, settings ...setting) error {
	for _, s := range settings {
		if err := c.store.Set(s.section, s.key, s.value); err != nil {
			c.messages.Addf("Could not save config: %v", err)
			return c.fail(&Error{Kind: KindPersistence, Op: op, SourceID: sourceID, Err: err})
		}
	}
	if err := c.store.Save(); err != nil {
		c.messages.Addf("Could not save config: %v", err)
		return c.fail(&Error{Kind: KindPersistence, Op: op, SourceID: sourceID, Err: err})
	}
	return nil
}

func (c *Coordinator) fail(err *Error) error {
	c.logger.Error("lifecycle operation failed", "op", err.Op, "extension", err.SourceID,
		"kind", err.Kind.String(), "error", err.Err, "details", err.Details)
	return err
}
