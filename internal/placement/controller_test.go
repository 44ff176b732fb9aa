package placement

import (
	"math"
	"testing"

	"github.com/ironsheep/surface-preview-mcp/internal/surface"
)

func newTestController() *Controller {
	c := New(3, 1)
	c.SetViewport(1000, 800)
	return c
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNew_InitialState(t *testing.T) {
	s := newTestController().State()

	if s.Position != (Vec{X: 50, Y: 50}) {
		t.Errorf("position: got %+v, want (50,50)", s.Position)
	}
	if s.Scale != 3 {
		t.Errorf("scale: got %v, want 3", s.Scale)
	}
	if s.Phase != PhaseIdle || s.Dragging || s.SuggestionVisible {
		t.Errorf("unexpected initial state %+v", s)
	}
}

func TestOfferAndAccept(t *testing.T) {
	c := newTestController()
	if c.AcceptPending() {
		t.Fatal("AcceptPending with nothing offered should report false")
	}

	c.Offer(surface.Suggestion{Position: Vec{X: 30, Y: 60}, Scale: 3.2})
	s := c.State()
	if !s.SuggestionVisible {
		t.Error("offered suggestion should be visible")
	}
	if s.Position != (Vec{X: 50, Y: 50}) || s.Phase != PhaseIdle {
		t.Error("Offer should not move the overlay")
	}

	if !c.AcceptPending() {
		t.Fatal("AcceptPending should apply the offer")
	}
	s = c.State()
	if s.Position != (Vec{X: 30, Y: 60}) || s.Scale != 3.2 {
		t.Errorf("applied: got %+v", s)
	}
	if s.Phase != PhaseSuggested || s.SuggestionVisible {
		t.Errorf("after apply: phase %s visible %v", s.Phase, s.SuggestionVisible)
	}

	if _, ok := c.Pending(); ok {
		t.Error("an accepted suggestion should no longer be pending")
	}
	c.BeginDrag(Pointer{X: 0, Y: 0})
	c.UpdateDrag(Pointer{X: 100, Y: 0})
	c.EndDrag()
	moved := c.State()
	if c.AcceptPending() {
		t.Error("second AcceptPending should report false")
	}
	if c.State() != moved {
		t.Error("second AcceptPending should not move the overlay")
	}
}

func TestApplySuggestion_Clamps(t *testing.T) {
	tests := []struct {
		name      string
		in        surface.Suggestion
		wantPos   Vec
		wantScale float64
	}{
		{"in range", surface.Suggestion{Position: Vec{X: 40, Y: 60}, Scale: 2}, Vec{X: 40, Y: 60}, 2},
		{"scale too small", surface.Suggestion{Position: Vec{X: 40, Y: 60}, Scale: 0.5}, Vec{X: 40, Y: 60}, 1.5},
		{"scale too large", surface.Suggestion{Position: Vec{X: 40, Y: 60}, Scale: 9}, Vec{X: 40, Y: 60}, 5},
		{"position out of range", surface.Suggestion{Position: Vec{X: -10, Y: 140}, Scale: 2}, Vec{X: 0, Y: 100}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController()
			c.ApplySuggestion(tt.in)
			s := c.State()
			if s.Position != tt.wantPos || s.Scale != tt.wantScale {
				t.Errorf("got %+v/%v, want %+v/%v", s.Position, s.Scale, tt.wantPos, tt.wantScale)
			}
		})
	}
}

func TestDrag_ConvertsDeltaToPercent(t *testing.T) {
	c := newTestController()

	c.BeginDrag(Pointer{X: 100, Y: 100})
	c.UpdateDrag(Pointer{X: 200, Y: 180})
	s := c.State()

	if !approxEqual(s.Position.X, 60) || !approxEqual(s.Position.Y, 60) {
		t.Errorf("after first move: got %+v, want (60,60)", s.Position)
	}
	if !s.Dragging || s.Phase != PhaseUserOverridden {
		t.Errorf("dragging %v phase %s", s.Dragging, s.Phase)
	}

	// Deltas are relative to the previous update, not the drag start.
	c.UpdateDrag(Pointer{X: 150, Y: 180})
	if got := c.State().Position; !approxEqual(got.X, 55) || !approxEqual(got.Y, 60) {
		t.Errorf("after second move: got %+v, want (55,60)", got)
	}

	c.EndDrag()
	if c.State().Dragging {
		t.Error("EndDrag should clear dragging")
	}
}

func TestDrag_PinnedAtBoundaries(t *testing.T) {
	c := newTestController()

	c.BeginDrag(Pointer{X: 500, Y: 400})
	c.UpdateDrag(Pointer{X: 5000, Y: -4000})
	s := c.State()
	if s.Position != (Vec{X: 100, Y: 0}) {
		t.Errorf("got %+v, want (100,0)", s.Position)
	}

	// Moving back starts from the pinned value, not the overshoot.
	c.UpdateDrag(Pointer{X: 4900, Y: -3920})
	s = c.State()
	if !approxEqual(s.Position.X, 90) || !approxEqual(s.Position.Y, 10) {
		t.Errorf("got %+v, want (90,10)", s.Position)
	}
}

func TestDrag_IgnoredWithoutDragOrViewport(t *testing.T) {
	c := newTestController()
	c.UpdateDrag(Pointer{X: 900, Y: 900})
	if c.State().Position != (Vec{X: 50, Y: 50}) || c.State().Phase != PhaseIdle {
		t.Error("update without BeginDrag should be ignored")
	}

	z := New(3, 1)
	z.BeginDrag(Pointer{})
	z.UpdateDrag(Pointer{X: 100, Y: 100})
	if z.State().Position != (Vec{X: 50, Y: 50}) {
		t.Error("update with zero viewport should be ignored")
	}
}

func TestZoom_Bounds(t *testing.T) {
	c := newTestController()

	for i := 0; i < 20; i++ {
		c.ZoomIn()
	}
	if c.State().Scale != MaxZoomScale {
		t.Errorf("zoom in: got %v, want %v", c.State().Scale, MaxZoomScale)
	}

	for i := 0; i < 30; i++ {
		c.ZoomOut()
	}
	if c.State().Scale != MinZoomScale {
		t.Errorf("zoom out: got %v, want %v", c.State().Scale, MinZoomScale)
	}
	if c.State().Phase != PhaseUserOverridden {
		t.Errorf("phase: got %s", c.State().Phase)
	}

	c.ZoomIn()
	if !approxEqual(c.State().Scale, 0.4) {
		t.Errorf("one step in: got %v, want 0.4", c.State().Scale)
	}
}

func TestZoom_FromSuggestedScaleAboveManualRange(t *testing.T) {
	c := newTestController()
	c.ApplySuggestion(surface.Suggestion{Position: Vec{X: 50, Y: 50}, Scale: 4.5})

	c.ZoomIn()
	if c.State().Scale != MaxZoomScale {
		t.Errorf("zoom in from 4.5: got %v, want %v", c.State().Scale, MaxZoomScale)
	}

	c.ApplySuggestion(surface.Suggestion{Position: Vec{X: 50, Y: 50}, Scale: 4.5})
	c.ZoomOut()
	if !approxEqual(c.State().Scale, 4.3) {
		t.Errorf("zoom out from 4.5: got %v, want 4.3", c.State().Scale)
	}
}

func TestReset_Idempotent(t *testing.T) {
	c := newTestController()
	c.Offer(surface.Suggestion{Position: Vec{X: 30, Y: 60}, Scale: 3})
	c.AcceptPending()
	c.BeginDrag(Pointer{X: 0, Y: 0})
	c.UpdateDrag(Pointer{X: 100, Y: 100})
	c.ZoomIn()

	c.Reset()
	first := c.State()
	c.Reset()
	second := c.State()

	want := State{Position: Vec{X: 50, Y: 50}, Scale: 1, Phase: PhaseIdle}
	if first != want {
		t.Errorf("first reset: got %+v, want %+v", first, want)
	}
	if second != first {
		t.Errorf("second reset changed state: %+v", second)
	}
}

func TestDragRightThenReset(t *testing.T) {
	c := newTestController()

	c.BeginDrag(Pointer{X: 300, Y: 300})
	c.UpdateDrag(Pointer{X: 500, Y: 300})
	c.EndDrag()
	if !approxEqual(c.State().Position.X, 70) {
		t.Fatalf("drag 20%% right: got %v, want 70", c.State().Position.X)
	}

	c.Reset()
	if c.State().Position != (Vec{X: 50, Y: 50}) {
		t.Errorf("after reset: got %+v, want exactly (50,50)", c.State().Position)
	}
}

func TestReset_HidesButKeepsPending(t *testing.T) {
	c := newTestController()
	c.Offer(surface.Suggestion{Position: Vec{X: 30, Y: 60}, Scale: 3})

	c.Reset()
	if c.State().SuggestionVisible {
		t.Error("reset should hide the suggestion prompt")
	}
	if _, ok := c.Pending(); !ok {
		t.Error("reset should keep the pending suggestion")
	}
	if !c.AcceptPending() {
		t.Error("the kept suggestion should still apply after reset")
	}
	c.Offer(surface.Suggestion{Position: Vec{X: 30, Y: 60}, Scale: 3})

	c.Withdraw()
	if _, ok := c.Pending(); ok {
		t.Error("Withdraw should drop the pending suggestion")
	}
}

func TestState_ReturnsCopy(t *testing.T) {
	c := newTestController()
	s := c.State()
	s.Position.X = 99
	if c.State().Position.X != 50 {
		t.Error("mutating the snapshot changed the controller")
	}
}
