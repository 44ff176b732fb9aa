package placement

import (
	"math"

	"github.com/ironsheep/surface-preview-mcp/internal/surface"
)

// Manual zoom bounds and step.
const (
	MinZoomScale = 0.2
	MaxZoomScale = 3.0
	ZoomStep     = 0.2
)

// Phase is the controller's high-level state.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseSuggested      Phase = "suggested"
	PhaseUserOverridden Phase = "user-overridden"
)

// Vec is a position in percent of the viewport.
type Vec = surface.Vec

// Pointer is a pointer location in viewport pixels.
type Pointer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is a snapshot of the overlay placement.
type State struct {
	Position          Vec     `json:"position"`
	Scale             float64 `json:"scale"`
	Dragging          bool    `json:"dragging"`
	Phase             Phase   `json:"phase"`
	SuggestionVisible bool    `json:"suggestion_visible"`
}

// Controller owns the overlay position and scale. Every mutation clamps its
// result, so State never reports an out-of-range value.
//
// Controller is not safe for concurrent use; the owning session serializes
// access.
type Controller struct {
	state      State
	resetScale float64

	pending     *surface.Suggestion
	lastPointer Pointer
	viewportW   float64
	viewportH   float64
}

// New creates a controller centered at (50,50) with the given initial scale.
// resetScale is the scale Reset returns to.
func New(initialScale, resetScale float64) *Controller {
	return &Controller{
		state: State{
			Position: Vec{X: 50, Y: 50},
			Scale:    initialScale,
			Phase:    PhaseIdle,
		},
		resetScale: resetScale,
	}
}

// State returns a copy of the current placement.
func (c *Controller) State() State {
	return c.state
}

// Pending returns the offered suggestion, if any.
func (c *Controller) Pending() (surface.Suggestion, bool) {
	if c.pending == nil {
		return surface.Suggestion{}, false
	}
	return *c.pending, true
}

// SetViewport records the viewport size in pixels used to convert drag deltas.
func (c *Controller) SetViewport(width, height float64) {
	c.viewportW = width
	c.viewportH = height
}

// Offer records s as the pending suggestion and makes it visible without
// moving the overlay.
func (c *Controller) Offer(s surface.Suggestion) {
	c.pending = &s
	c.state.SuggestionVisible = true
}

// Withdraw drops any pending suggestion.
func (c *Controller) Withdraw() {
	c.pending = nil
	c.state.SuggestionVisible = false
}

// ApplySuggestion moves the overlay to s and hides the suggestion prompt.
func (c *Controller) ApplySuggestion(s surface.Suggestion) {
	c.state.Position = clampPosition(s.Position)
	c.state.Scale = clamp(s.Scale, surface.MinSuggestScale, surface.MaxSuggestScale)
	c.state.Phase = PhaseSuggested
	c.state.SuggestionVisible = false
}

// AcceptPending applies the offered suggestion and consumes it, so each offer
// applies at most once. It reports false when nothing is pending.
func (c *Controller) AcceptPending() bool {
	if c.pending == nil {
		return false
	}
	c.ApplySuggestion(*c.pending)
	c.pending = nil
	return true
}

// BeginDrag starts a drag at pointer p.
func (c *Controller) BeginDrag(p Pointer) {
	c.state.Dragging = true
	c.lastPointer = p
}

// UpdateDrag moves the overlay by the pointer movement since the previous
// update, converted to percent of the viewport. It is ignored when no drag is
// active or the viewport has no size.
func (c *Controller) UpdateDrag(p Pointer) {
	if !c.state.Dragging || c.viewportW <= 0 || c.viewportH <= 0 {
		return
	}

	dx := (p.X - c.lastPointer.X) / c.viewportW * 100
	dy := (p.Y - c.lastPointer.Y) / c.viewportH * 100
	c.lastPointer = p

	c.state.Position = clampPosition(Vec{
		X: c.state.Position.X + dx,
		Y: c.state.Position.Y + dy,
	})
	c.state.Phase = PhaseUserOverridden
}

// EndDrag finishes the active drag.
func (c *Controller) EndDrag() {
	c.state.Dragging = false
}

// ZoomIn grows the overlay by one step, up to MaxZoomScale.
func (c *Controller) ZoomIn() {
	c.state.Scale = math.Min(MaxZoomScale, c.state.Scale+ZoomStep)
	c.state.Phase = PhaseUserOverridden
}

// ZoomOut shrinks the overlay by one step, down to MinZoomScale.
func (c *Controller) ZoomOut() {
	c.state.Scale = math.Max(MinZoomScale, c.state.Scale-ZoomStep)
	c.state.Phase = PhaseUserOverridden
}

// Reset centers the overlay at the reset scale, ends any drag and hides the
// suggestion prompt. The pending suggestion itself is kept so it can still be
// applied.
func (c *Controller) Reset() {
	c.state = State{
		Position: Vec{X: 50, Y: 50},
		Scale:    c.resetScale,
		Phase:    PhaseIdle,
	}
}

func clampPosition(p Vec) Vec {
	return Vec{X: clamp(p.X, 0, 100), Y: clamp(p.Y, 0, 100)}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
