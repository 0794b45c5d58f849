package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"aurora/pkg/auth/middleware"
	"aurora/pkg/extension"
	"aurora/pkg/lifecycle"
)

const (
	APIVersion     = "v1"
	DefaultAddress = "127.0.0.1:8080"
)

// Controller is the part of the lifecycle coordinator the API drives.
type Controller interface {
	ExtensionList() []extension.Descriptor
	RefreshExtensions() ([]extension.Descriptor, error)
	CurrentDescriptor() (extension.Descriptor, bool)
	Messages() []string
	Enabled() bool
	SelectExtension(sourceID string) error
	SetEnabled(on bool) error
	ReconfigureGeometry(in lifecycle.GeometryInput) (extension.Geometry, error)
	Geometry() extension.Geometry
	CaptureArtifacts() error
	ArtifactPaths() (screenshot, pixels string, err error)
	EnterConfigureMode() (extension.Geometry, error)
	Reload() error
	RuntimeStats() lifecycle.RuntimeStats
}

// ServerOptions configures the HTTP server. Auth is optional; when nil
// every route is open.
type ServerOptions struct {
	Addr              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	Logger            *slog.Logger
	Auth              *middleware.AuthMiddleware
}

// Server hosts the control API of the daemon.
type Server struct {
	http   *http.Server
	ctrl   Controller
	logger *slog.Logger
	opts   ServerOptions
}

// NewServer constructs a server bound to ctrl. It does not listen until
// Start is called.
func NewServer(ctrl Controller, opts ServerOptions) *Server {
	if ctrl == nil {
		panic("api.NewServer: controller is nil")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddress
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 2 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		ctrl:   ctrl,
		logger: opts.Logger,
		opts:   opts,
	}

	prefix := "/" + APIVersion
	mux.HandleFunc(prefix+"/healthz", s.handleHealthz)
	mux.Handle(prefix+"/extensions", s.protect("extensions", s.handleExtensions))
	mux.Handle(prefix+"/extensions/current", s.protect("extensions", s.handleCurrent))
	mux.Handle(prefix+"/messages", s.protect("messages", s.handleMessages))
	mux.Handle(prefix+"/config", s.protect("config", s.handleConfig))
	mux.Handle(prefix+"/geometry", s.protect("geometry", s.handleGeometry))
	mux.Handle(prefix+"/configure", s.protect("geometry", s.handleConfigure))
	mux.Handle(prefix+"/capture", s.protect("artifacts", s.handleCapture))
	mux.Handle(prefix+"/artifacts/screenshot", s.protect("artifacts", s.handleScreenshot))
	mux.Handle(prefix+"/artifacts/pixels", s.protect("artifacts", s.handlePixels))
	mux.Handle(prefix+"/stats", s.protect("stats", s.handleStats))
	mux.Handle(prefix+"/reload", s.protect("config", s.handleReload))

	var handler http.Handler = mux
	if opts.Auth != nil {
		handler = opts.Auth.Middleware(handler)
	}

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           withBasicMiddleware(handler, opts.Logger),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(opts.Logger.Handler(), slog.LevelError),
		BaseContext: func(l net.Listener) context.Context {
			return context.Background()
		},
	}
	return s
}

// Handler returns the full handler chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start begins serving in a background goroutine and returns immediately.
func (s *Server) Start() {
	go func() {
		s.logger.Info("api listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server failed", "error", err)
		}
	}()
}

// Stop gracefully shuts down the server, waiting up to ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	timeout := s.opts.ShutdownTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.http.Shutdown(ctx)
}

// protect requires resource:read for GET and resource:write otherwise.
func (s *Server) protect(resource string, h http.HandlerFunc) http.Handler {
	if s.opts.Auth == nil {
		return h
	}
	read := s.opts.Auth.RequirePermission(resource, "read")(h)
	write := s.opts.Auth.RequirePermission(resource, "write")(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			read.ServeHTTP(w, r)
			return
		}
		write.ServeHTTP(w, r)
	})
}

// handleHealthz is the liveness endpoint. It never requires a token.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": TimeNow().UTC().Format(time.RFC3339),
	})
}

// handleExtensions lists selectable extensions.
// Method: GET
// Query: refresh=true runs a discovery pass first
// Response (200): ExtensionsResponse
// Errors:
//   - 500 when the extensions directory cannot be read
func (s *Server) handleExtensions(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	var list []extension.Descriptor
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		var err error
		if list, err = s.ctrl.RefreshExtensions(); err != nil {
			s.writeLifecycleError(w, err)
			return
		}
	} else {
		list = s.ctrl.ExtensionList()
	}
	if list == nil {
		list = []extension.Descriptor{}
	}
	resp := ExtensionsResponse{Extensions: list}
	if current, ok := s.ctrl.CurrentDescriptor(); ok {
		resp.Current = &current
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCurrent reads or switches the active extension.
// Method: GET, POST
// Request (POST): SelectRequest
// Response (200): CurrentResponse
// Errors:
//   - 404 when nothing is active (GET) or the source id is unknown (POST)
//   - 400 for reserved ids or malformed JSON
//   - 422 when the extension cannot be constructed
//   - 500 when setup or persisting the selection fails
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		current, ok := s.ctrl.CurrentDescriptor()
		if !ok {
			writeError(w, http.StatusNotFound, lifecycle.ErrNoActiveExtension.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, CurrentResponse{Current: current})
	case http.MethodPost:
		var req SelectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.SourceID == "" {
			writeError(w, http.StatusBadRequest, "source_id is required", nil)
			return
		}
		if err := s.ctrl.SelectExtension(req.SourceID); err != nil {
			s.writeLifecycleError(w, err)
			return
		}
		current, _ := s.ctrl.CurrentDescriptor()
		writeJSON(w, http.StatusOK, CurrentResponse{Current: current})
	default:
		methodNotAllowed(w)
	}
}

// handleMessages returns pending messages and clears them.
// Method: GET
// Response (200): MessagesResponse
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	msgs := s.ctrl.Messages()
	if msgs == nil {
		msgs = []string{}
	}
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: msgs})
}

// handleConfig reads or changes the enabled flag.
// Method: GET, POST
// Request (POST): ConfigView
// Response (200): ConfigView
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, ConfigView{Enabled: s.ctrl.Enabled()})
	case http.MethodPost:
		var req ConfigView
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := s.ctrl.SetEnabled(req.Enabled); err != nil {
			s.writeLifecycleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ConfigView{Enabled: s.ctrl.Enabled()})
	default:
		methodNotAllowed(w)
	}
}

// handleGeometry reads or reconfigures the edge pixel counts.
// Method: GET, POST
// Request (POST): GeometryRequest; empty fields are left unchanged
// Response (200): GeometryResponse
// Errors:
//   - 400 with per-field details; valid fields are still applied
//   - 409 when no extension is active
func (s *Server) handleGeometry(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, GeometryResponse{Geometry: fromGeometry(s.ctrl.Geometry())})
	case http.MethodPost:
		var req GeometryRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		g, err := s.ctrl.ReconfigureGeometry(lifecycle.GeometryInput{
			Left:   req.Left,
			Right:  req.Right,
			Top:    req.Top,
			Bottom: req.Bottom,
			Save:   req.Save,
		})
		if err != nil {
			s.writeLifecycleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, GeometryResponse{Geometry: fromGeometry(g)})
	default:
		methodNotAllowed(w)
	}
}

// handleConfigure switches to the layout wizard and renders it once.
// Method: POST
// Response (200): GeometryResponse
func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	g, err := s.ctrl.EnterConfigureMode()
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GeometryResponse{Geometry: fromGeometry(g)})
}

// handleCapture writes the screenshot and pixel preview of the active
// extension.
// Method: POST
// Response (200): StatusResponse
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.ctrl.CaptureArtifacts(); err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleScreenshot serves the last screenshot. A placeholder is served
// when rendering is off, the extension has no video input or the frame is
// a single pixel.
// Method: GET
// Response (200): image/png
func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	stats := s.ctrl.RuntimeStats()
	if !stats.Enabled || !stats.NeedsVideo || (stats.FrameWidth <= 1 && stats.FrameHeight <= 1) {
		writePNG(w, placeholderPNG)
		return
	}
	path, _, err := s.ctrl.ArtifactPaths()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	s.serveArtifact(w, path)
}

// handlePixels serves the last pixel preview.
// Method: GET
// Response (200): image/png
// Errors:
//   - 404 when no preview has been captured yet
func (s *Server) handlePixels(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	_, path, err := s.ctrl.ArtifactPaths()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	s.serveArtifact(w, path)
}

func (s *Server) serveArtifact(w http.ResponseWriter, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "artifact not captured yet", nil)
			return
		}
		s.logger.Error("failed to read artifact", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read artifact", nil)
		return
	}
	writePNG(w, data)
}

// handleStats returns the runtime snapshot.
// Method: GET
// Response (200): lifecycle.RuntimeStats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.RuntimeStats())
}

// handleReload re-reads the config file.
// Method: POST
// Response (200): StatusResponse
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.ctrl.Reload(); err != nil {
		s.writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (s *Server) writeLifecycleError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	var details []string
	var lerr *lifecycle.Error
	if errors.As(err, &lerr) {
		details = lerr.Details
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error(), details)
}

// statusFor maps a lifecycle failure to an HTTP status.
func statusFor(err error) int {
	switch lifecycle.KindOf(err) {
	case lifecycle.KindValidation:
		return http.StatusBadRequest
	case lifecycle.KindConstruction:
		if errors.Is(err, extension.ErrExtensionNotFound) {
			return http.StatusNotFound
		}
		return http.StatusUnprocessableEntity
	case lifecycle.KindNoActive:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// withBasicMiddleware sets the JSON content type and logs each request.
func withBasicMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := TimeNow()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(rec, r)
		logger.Debug("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	methodNotAllowed(w)
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
}

// decodeJSON rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), nil)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string, details []string) {
	writeJSON(w, status, APIError{
		Error:     msg,
		Details:   details,
		Timestamp: TimeNow().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

var placeholderPNG = func() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()
