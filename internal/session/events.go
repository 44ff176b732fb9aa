package session

import (
	"github.com/ironsheep/surface-preview-mcp/internal/placement"
	"github.com/ironsheep/surface-preview-mcp/internal/surface"
)

// RendererEventKind names an event emitted by the 3D overlay renderer.
type RendererEventKind string

const (
	RendererLoad     RendererEventKind = "load"
	RendererError    RendererEventKind = "error"
	RendererARStatus RendererEventKind = "ar-status"
)

// ARStatus is the device AR session state reported by the renderer.
type ARStatus string

const (
	ARNotPresenting  ARStatus = "not-presenting"
	ARSessionStarted ARStatus = "session-started"
	ARFailed         ARStatus = "failed"
)

// Valid reports whether s is a known AR status.
func (s ARStatus) Valid() bool {
	switch s {
	case ARNotPresenting, ARSessionStarted, ARFailed:
		return true
	}
	return false
}

// RendererEvent is one event from the renderer collaborator.
type RendererEvent struct {
	Kind     RendererEventKind `json:"kind"`
	ARStatus ARStatus          `json:"ar_status,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// SignalKind names a UI signal published by a session.
type SignalKind string

const (
	SignalAnalysisStarted SignalKind = "analysis-started"
	SignalSuggestionReady SignalKind = "suggestion-ready"
	SignalImageError      SignalKind = "image-error"
	SignalModelLoaded     SignalKind = "model-loaded"
	SignalModelError      SignalKind = "model-error"
	SignalARStatus        SignalKind = "ar-status"
)

// Signal is a state change hosts may react to.
type Signal struct {
	Kind       SignalKind          `json:"kind"`
	Generation uint64              `json:"generation,omitempty"`
	Suggestion *surface.Suggestion `json:"suggestion,omitempty"`
	Status     surface.Status      `json:"status,omitempty"`
	ARStatus   ARStatus            `json:"ar_status,omitempty"`
	Message    string              `json:"message,omitempty"`
}

// RenderView is everything the opaque renderer and its surrounding UI consume.
type RenderView struct {
	SessionID         string          `json:"session_id"`
	ModelURI          string          `json:"model_uri"`
	State             placement.State `json:"state"`
	Generation        uint64          `json:"generation"`
	Loading           bool            `json:"loading"`
	ModelError        string          `json:"model_error,omitempty"`
	ImageError        string          `json:"image_error,omitempty"`
	Analyzing         bool            `json:"analyzing"`
	ARStatus          ARStatus        `json:"ar_status"`
	ARActive          bool            `json:"ar_active"`
	SuggestionVisible bool            `json:"suggestion_visible"`
}
