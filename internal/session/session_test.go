package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/surface-preview-mcp/internal/config"
	perrors "github.com/ironsheep/surface-preview-mcp/internal/errors"
	"github.com/ironsheep/surface-preview-mcp/internal/features"
	"github.com/ironsheep/surface-preview-mcp/internal/imaging"
	"github.com/ironsheep/surface-preview-mcp/internal/logger"
	"github.com/ironsheep/surface-preview-mcp/internal/normalize"
	"github.com/ironsheep/surface-preview-mcp/internal/placement"
	"github.com/ironsheep/surface-preview-mcp/internal/surface"
)

type analyzerFunc func(ctx context.Context, r *imaging.Raster) surface.Outcome

func (f analyzerFunc) Analyze(ctx context.Context, r *imaging.Raster) surface.Outcome {
	return f(ctx, r)
}

// recordingNormalizer wraps a real normalizer and remembers every handle.
type recordingNormalizer struct {
	*normalize.Normalizer

	mu      sync.Mutex
	handles []*normalize.Handle
}

func (r *recordingNormalizer) Normalize(ctx context.Context, src normalize.Source) (*normalize.Handle, error) {
	h, err := r.Normalizer.Normalize(ctx, src)
	if h != nil {
		r.mu.Lock()
		r.handles = append(r.handles, h)
		r.mu.Unlock()
	}
	return h, err
}

func (r *recordingNormalizer) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, h := range r.handles {
		out = append(out, h.Path())
	}
	return out
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestSession(t *testing.T, analyzer Analyzer) (*Session, *recordingNormalizer) {
	t.Helper()
	cfg := config.Default()
	cfg.Normalizer.TempDir = t.TempDir()

	norm := &recordingNormalizer{Normalizer: normalize.New(cfg.Normalizer, nil)}
	s := New(cfg, "https://cdn.example.com/chair.glb", Deps{Normalizer: norm, Analyzer: analyzer})
	s.SetViewport(1000, 800)
	t.Cleanup(s.Close)
	return s, norm
}

func waitSettled(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func fixedOutcome(x, y, scale float64) surface.Outcome {
	return surface.Success(surface.Analysis{
		Suggestion: surface.Suggestion{Position: surface.Vec{X: x, Y: y}, Scale: scale},
	}, nil)
}

func TestNew_InitialView(t *testing.T) {
	s, _ := newTestSession(t, analyzerFunc(func(context.Context, *imaging.Raster) surface.Outcome {
		return fixedOutcome(50, 50, 2.5)
	}))

	v := s.View()
	if v.SessionID == "" || v.SessionID != s.ID() {
		t.Errorf("session id: got %q", v.SessionID)
	}
	if v.ModelURI != "https://cdn.example.com/chair.glb" {
		t.Errorf("model uri: got %q", v.ModelURI)
	}
	if !v.Loading || v.Analyzing || v.ARStatus != ARNotPresenting {
		t.Errorf("unexpected initial view %+v", v)
	}
	if v.State.Scale != 3 || v.State.Position != (surface.Vec{X: 50, Y: 50}) {
		t.Errorf("initial placement: got %+v", v.State)
	}

	// Nothing to wait for yet.
	waitSettled(t, s)
}

func TestSetBackground_OffersSuggestion(t *testing.T) {
	s, norm := newTestSession(t, analyzerFunc(func(context.Context, *imaging.Raster) surface.Outcome {
		return fixedOutcome(40, 60, 3.5)
	}))

	gen, err := s.SetBackground(context.Background(), normalize.Source{Data: testPNG(t, 16, 16), Name: "room.png"})
	if err != nil {
		t.Fatalf("SetBackground: %v", err)
	}
	if gen != 1 {
		t.Errorf("generation: got %d, want 1", gen)
	}
	waitSettled(t, s)

	v := s.View()
	if v.Analyzing || v.ImageError != "" {
		t.Errorf("after settle: %+v", v)
	}
	if !v.SuggestionVisible {
		t.Error("suggestion should be offered")
	}
	if v.State.Position != (surface.Vec{X: 50, Y: 50}) {
		t.Error("offering must not move the overlay")
	}
	if _, r, ok := s.Analysis(); !ok || r == nil || r.Width != 16 {
		t.Error("analyzed raster should be kept")
	}

	if !s.ApplySuggestion() {
		t.Fatal("ApplySuggestion should succeed")
	}
	v = s.View()
	if v.State.Position != (surface.Vec{X: 40, Y: 60}) || v.State.Scale != 3.5 || v.SuggestionVisible {
		t.Errorf("after apply: %+v", v)
	}
	if s.ApplySuggestion() {
		t.Error("a suggestion applies once per offer")
	}

	for _, p := range norm.paths() {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("temp file %s not released", p)
		}
	}
}

func TestSetBackground_SupersededResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	s, norm := newTestSession(t, analyzerFunc(func(ctx context.Context, r *imaging.Raster) surface.Outcome {
		if r.Width == 10 {
			<-release
			return fixedOutcome(21, 31, 4)
		}
		return fixedOutcome(70, 65, 2)
	}))

	if _, err := s.SetBackground(context.Background(), normalize.Source{Data: testPNG(t, 10, 10)}); err != nil {
		t.Fatalf("first SetBackground: %v", err)
	}
	gen, err := s.SetBackground(context.Background(), normalize.Source{Data: testPNG(t, 20, 20)})
	if err != nil {
		t.Fatalf("second SetBackground: %v", err)
	}
	if gen != 2 {
		t.Errorf("generation: got %d, want 2", gen)
	}
	waitSettled(t, s)

	close(release)
	s.runs.Wait()

	out, ok := s.Outcome()
	if !ok {
		t.Fatal("expected an outcome")
	}
	if out.Suggestion.Position != (surface.Vec{X: 70, Y: 65}) {
		t.Errorf("stale result applied: got %+v", out.Suggestion)
	}
	if _, r, _ := s.Analysis(); r == nil || r.Width != 20 {
		t.Errorf("background should be the 20px image, got %+v", r)
	}

	// The first run may stop before normalizing once it is superseded.
	paths := norm.paths()
	if len(paths) == 0 {
		t.Fatal("expected at least one normalized handle")
	}
	for _, p := range paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("temp file %s not released", p)
		}
	}
}

func TestSetBackground_InteractionWhileAnalyzing(t *testing.T) {
	release := make(chan struct{})
	s, _ := newTestSession(t, analyzerFunc(func(context.Context, *imaging.Raster) surface.Outcome {
		<-release
		return fixedOutcome(50, 50, 2.5)
	}))

	if _, err := s.SetBackground(context.Background(), normalize.Source{Data: testPNG(t, 8, 8)}); err != nil {
		t.Fatalf("SetBackground: %v", err)
	}

	s.BeginDrag(placement.Pointer{X: 100, Y: 100})
	st := s.UpdateDrag(placement.Pointer{X: 300, Y: 100})
	s.EndDrag()
	if st.Position.X != 70 {
		t.Errorf("drag during analysis: got %+v", st.Position)
	}
	if st = s.ZoomOut(); math.Abs(st.Scale-2.8) > 1e-9 {
		t.Errorf("zoom during analysis: got %v", st.Scale)
	}
	if !s.View().Analyzing {
		t.Error("analysis should still be pending")
	}

	close(release)
	waitSettled(t, s)

	// The arriving suggestion is offered, not forced onto the manual placement.
	v := s.View()
	if v.State.Position.X != 70 || !v.SuggestionVisible {
		t.Errorf("after settle: %+v", v)
	}
}

func TestSetBackground_DetectionUnavailable(t *testing.T) {
	lib := features.NewLibrary(func() (features.Primitive, error) {
		return nil, errors.New("tracking library failed to load")
	})
	s, _ := newTestSession(t, features.NewDetector(lib, config.Default().Detector))

	if _, err := s.SetBackground(context.Background(), normalize.Source{Data: testPNG(t, 32, 24)}); err != nil {
		t.Fatalf("SetBackground: %v", err)
	}
	waitSettled(t, s)

	out, ok := s.Outcome()
	if !ok {
		t.Fatal("expected an outcome")
	}
	if out.Status != surface.StatusUnavailable || out.Suggestion != surface.DefaultSuggestion() {
		t.Errorf("outcome: got %+v", out)
	}
	v := s.View()
	if v.ImageError != "" {
		t.Errorf("no banner expected, got %q", v.ImageError)
	}
	if !v.SuggestionVisible {
		t.Error("default suggestion should be offered")
	}
}

// failingNormalizer rejects every upload with err.
type failingNormalizer struct{ err error }

func (f failingNormalizer) Normalize(context.Context, normalize.Source) (*normalize.Handle, error) {
	return nil, f.err
}

func (f failingNormalizer) DecodeRaster(*normalize.Handle) (*imaging.Raster, error) {
	return nil, f.err
}

func TestSetBackground_NormalizeFailureFallsBack(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
	}{
		{"recoverable", perrors.ConversionFailed("no codec", nil), "warning"},
		{"unexpected", errors.New("disk full"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger.SetOutput(&buf)
			defer logger.SetOutput(os.Stderr)
			prev := logger.Logger.GetLevel()
			logger.Logger.SetLevel(logrus.InfoLevel)
			defer logger.Logger.SetLevel(prev)

			s := New(config.Default(), "chair.glb", Deps{Normalizer: failingNormalizer{err: tt.err}})
			defer s.Close()

			if _, err := s.SetBackground(context.Background(), normalize.Source{Data: []byte{1}}); err != nil {
				t.Fatalf("SetBackground: %v", err)
			}
			waitSettled(t, s)

			out, r, ok := s.Analysis()
			if !ok || r != nil {
				t.Fatalf("expected an outcome without a raster, got ok=%v raster=%v", ok, r)
			}
			if out.Status != surface.StatusUnavailable || out.Suggestion != surface.DefaultSuggestion() {
				t.Errorf("outcome: got %+v", out)
			}
			if v := s.View(); v.ImageError != "" || !v.SuggestionVisible {
				t.Errorf("view: got %+v", v)
			}
			if !strings.Contains(buf.String(), `"level":"`+tt.wantLevel+`"`) {
				t.Errorf("expected a %s log line, got %s", tt.wantLevel, buf.String())
			}
		})
	}
}

func TestSetBackground_DecodeFailureShowsBanner(t *testing.T) {
	called := false
	s, norm := newTestSession(t, analyzerFunc(func(context.Context, *imaging.Raster) surface.Outcome {
		called = true
		return fixedOutcome(50, 50, 2.5)
	}))
	sub := s.Subscribe()

	if _, err := s.SetBackground(context.Background(), normalize.Source{Data: []byte("not an image at all")}); err != nil {
		t.Fatalf("SetBackground: %v", err)
	}
	waitSettled(t, s)

	if called {
		t.Error("analyzer should not run for an undecodable image")
	}
	v := s.View()
	if v.ImageError == "" {
		t.Error("expected an image error banner")
	}
	if v.SuggestionVisible {
		t.Error("no suggestion should be offered")
	}
	if _, ok := s.Outcome(); ok {
		t.Error("no outcome expected")
	}
	for _, p := range norm.paths() {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("temp file %s not released", p)
		}
	}

	if sig := <-sub; sig.Kind != SignalAnalysisStarted {
		t.Errorf("first signal: got %s", sig.Kind)
	}
	if sig := <-sub; sig.Kind != SignalImageError {
		t.Errorf("second signal: got %s", sig.Kind)
	}

	// A new image clears the banner.
	if _, err := s.SetBackground(context.Background(), normalize.Source{Data: testPNG(t, 4, 4)}); err != nil {
		t.Fatalf("SetBackground: %v", err)
	}
	waitSettled(t, s)
	if s.View().ImageError != "" {
		t.Error("banner should clear for a decodable image")
	}
}

func TestSubscribe_SuggestionReady(t *testing.T) {
	s, _ := newTestSession(t, analyzerFunc(func(context.Context, *imaging.Raster) surface.Outcome {
		return fixedOutcome(30, 40, 2)
	}))
	sub := s.Subscribe()

	gen, _ := s.SetBackground(context.Background(), normalize.Source{Data: testPNG(t, 4, 4)})
	waitSettled(t, s)

	<-sub
	sig := <-sub
	if sig.Kind != SignalSuggestionReady || sig.Generation != gen {
		t.Fatalf("signal: got %+v", sig)
	}
	if sig.Suggestion == nil || sig.Suggestion.Position != (surface.Vec{X: 30, Y: 40}) {
		t.Errorf("signal suggestion: got %+v", sig.Suggestion)
	}
	if sig.Status != surface.StatusSuccess {
		t.Errorf("signal status: got %s", sig.Status)
	}
}

func TestHandleRendererEvent_LoadAndError(t *testing.T) {
	s, _ := newTestSession(t, nil)
	s.ZoomIn()
	before := s.View().State

	if err := s.HandleRendererEvent(RendererEvent{Kind: RendererLoad}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.View().Loading {
		t.Error("load should clear loading")
	}

	if err := s.HandleRendererEvent(RendererEvent{Kind: RendererError}); err != nil {
		t.Fatalf("error: %v", err)
	}
	v := s.View()
	if v.ModelError == "" || v.Loading {
		t.Errorf("after error: %+v", v)
	}
	if v.State != before {
		t.Error("renderer events must not change placement")
	}

	err := s.HandleRendererEvent(RendererEvent{Kind: "resize"})
	if !perrors.Is(err, perrors.KindInvalidInput) {
		t.Errorf("unknown kind: got %v", err)
	}
}

func TestHandleRendererEvent_ARExclusivity(t *testing.T) {
	s, _ := newTestSession(t, nil)

	steps := []struct {
		status ARStatus
		want   ARStatus
	}{
		{ARSessionStarted, ARSessionStarted},
		{ARFailed, ARSessionStarted},
		{ARNotPresenting, ARNotPresenting},
		{ARFailed, ARFailed},
		{ARSessionStarted, ARFailed},
		{ARNotPresenting, ARNotPresenting},
		{ARSessionStarted, ARSessionStarted},
	}

	for i, step := range steps {
		if err := s.HandleRendererEvent(RendererEvent{Kind: RendererARStatus, ARStatus: step.status}); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got := s.View().ARStatus; got != step.want {
			t.Errorf("step %d (%s): got %s, want %s", i, step.status, got, step.want)
		}
	}
	if !s.View().ARActive {
		t.Error("session-started should mark AR active")
	}

	err := s.HandleRendererEvent(RendererEvent{Kind: RendererARStatus, ARStatus: "presenting"})
	if !perrors.Is(err, perrors.KindInvalidInput) {
		t.Errorf("unknown ar status: got %v", err)
	}
}

func TestReset_ThroughSession(t *testing.T) {
	s, _ := newTestSession(t, nil)

	s.BeginDrag(placement.Pointer{X: 0, Y: 0})
	s.UpdateDrag(placement.Pointer{X: 200, Y: 0})
	s.EndDrag()

	st := s.Reset()
	if st.Position != (surface.Vec{X: 50, Y: 50}) || st.Scale != 1 || st.Phase != placement.PhaseIdle {
		t.Errorf("reset: got %+v", st)
	}
}

func TestAnalysis_OutcomeMatchesRaster(t *testing.T) {
	release := make(chan struct{})
	s, _ := newTestSession(t, analyzerFunc(func(ctx context.Context, r *imaging.Raster) surface.Outcome {
		if r.Width == 30 {
			<-release
		}
		return fixedOutcome(float64(r.Width), 50, 2)
	}))

	if _, _, ok := s.Analysis(); ok {
		t.Error("no analysis expected before a background is set")
	}

	if _, err := s.SetBackground(context.Background(), normalize.Source{Data: testPNG(t, 24, 12)}); err != nil {
		t.Fatalf("SetBackground: %v", err)
	}
	waitSettled(t, s)

	out, r, ok := s.Analysis()
	if !ok || r == nil {
		t.Fatal("expected an analysis")
	}
	if out.Suggestion.Position.X != float64(r.Width) {
		t.Errorf("outcome for width %v paired with raster of width %d", out.Suggestion.Position.X, r.Width)
	}

	// While the next image is analyzed neither half of the old pair is visible.
	if _, err := s.SetBackground(context.Background(), normalize.Source{Data: testPNG(t, 30, 20)}); err != nil {
		t.Fatalf("SetBackground: %v", err)
	}
	if _, r, ok := s.Analysis(); ok || r != nil {
		t.Errorf("stale analysis visible during a new run: ok=%v raster=%v", ok, r)
	}

	close(release)
	waitSettled(t, s)
	out, r, ok = s.Analysis()
	if !ok || r == nil || r.Width != 30 || out.Suggestion.Position.X != 30 {
		t.Errorf("after second settle: outcome %+v raster %+v", out.Suggestion, r)
	}
}

// blockingNormalizer holds DecodeRaster until release is closed.
type blockingNormalizer struct {
	*recordingNormalizer
	entered chan struct{}
	release chan struct{}
}

func (b *blockingNormalizer) DecodeRaster(h *normalize.Handle) (*imaging.Raster, error) {
	close(b.entered)
	<-b.release
	return b.recordingNormalizer.DecodeRaster(h)
}

func TestClose_WaitsForInFlightRun(t *testing.T) {
	cfg := config.Default()
	cfg.Normalizer.TempDir = t.TempDir()

	norm := &blockingNormalizer{
		recordingNormalizer: &recordingNormalizer{Normalizer: normalize.New(cfg.Normalizer, nil)},
		entered:             make(chan struct{}),
		release:             make(chan struct{}),
	}
	var once sync.Once
	unblock := func() { once.Do(func() { close(norm.release) }) }

	s := New(cfg, "chair.glb", Deps{Normalizer: norm, Analyzer: analyzerFunc(func(context.Context, *imaging.Raster) surface.Outcome {
		return fixedOutcome(50, 50, 2.5)
	})})
	t.Cleanup(s.Close)
	t.Cleanup(unblock)

	if _, err := s.SetBackground(context.Background(), normalize.Source{Data: testPNG(t, 6, 6)}); err != nil {
		t.Fatalf("SetBackground: %v", err)
	}
	select {
	case <-norm.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("run never reached DecodeRaster")
	}

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a run still held its temp file")
	case <-time.After(50 * time.Millisecond):
	}

	unblock()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after the run finished")
	}

	paths := norm.paths()
	if len(paths) != 1 {
		t.Fatalf("handles: got %d, want 1", len(paths))
	}
	if _, err := os.Stat(paths[0]); !os.IsNotExist(err) {
		t.Errorf("temp file %s still exists after Close", paths[0])
	}
	if _, ok := s.Outcome(); ok {
		t.Error("a closed session should discard the late result")
	}
}

func TestClose(t *testing.T) {
	s, _ := newTestSession(t, nil)
	sub := s.Subscribe()

	s.Close()
	s.Close()

	if _, ok := <-sub; ok {
		t.Error("subscriber channel should be closed")
	}
	if _, ok := <-s.Subscribe(); ok {
		t.Error("subscribing after close should yield a closed channel")
	}
	_, err := s.SetBackground(context.Background(), normalize.Source{Data: testPNG(t, 2, 2)})
	if !perrors.Is(err, perrors.KindNotFound) {
		t.Errorf("SetBackground after close: got %v", err)
	}
}
