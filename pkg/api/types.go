package api

import (
	"time"

	"aurora/pkg/extension"
)

// JSON types of the control API, kept apart from the lifecycle types so
// the wire format does not follow internal changes.

type ExtensionsResponse struct {
	Extensions []extension.Descriptor `json:"extensions"`
	Current    *extension.Descriptor  `json:"current"`
}

type SelectRequest struct {
	SourceID string `json:"source_id"`
}

type CurrentResponse struct {
	Current extension.Descriptor `json:"current"`
}

type MessagesResponse struct {
	Messages []string `json:"messages"`
}

type ConfigView struct {
	Enabled bool `json:"enabled"`
}

type GeometryRequest struct {
	Left   string `json:"left"`
	Right  string `json:"right"`
	Top    string `json:"top"`
	Bottom string `json:"bottom"`
	Save   bool   `json:"save"`
}

type GeometryView struct {
	Left   int `json:"left"`
	Right  int `json:"right"`
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Total  int `json:"total"`
}

func fromGeometry(g extension.Geometry) GeometryView {
	return GeometryView{Left: g.Left, Right: g.Right, Top: g.Top, Bottom: g.Bottom, Total: g.Total()}
}

type GeometryResponse struct {
	Geometry GeometryView `json:"geometry"`
	Details  []string     `json:"details,omitempty"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// APIError is the body of every error response.
type APIError struct {
	Error     string   `json:"error"`
	Details   []string `json:"details,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// TimeNow is overridden in tests.
var TimeNow = func() time.Time { return time.Now() }
