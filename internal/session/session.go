package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/surface-preview-mcp/internal/config"
	perrors "github.com/ironsheep/surface-preview-mcp/internal/errors"
	"github.com/ironsheep/surface-preview-mcp/internal/imaging"
	"github.com/ironsheep/surface-preview-mcp/internal/logger"
	"github.com/ironsheep/surface-preview-mcp/internal/normalize"
	"github.com/ironsheep/surface-preview-mcp/internal/placement"
	"github.com/ironsheep/surface-preview-mcp/internal/surface"
)

const subscriberBuffer = 32

// Normalizer prepares uploads for decoding.
type Normalizer interface {
	Normalize(ctx context.Context, src normalize.Source) (*normalize.Handle, error)
	DecodeRaster(h *normalize.Handle) (*imaging.Raster, error)
}

// Analyzer turns a raster into a placement outcome. It never fails.
type Analyzer interface {
	Analyze(ctx context.Context, r *imaging.Raster) surface.Outcome
}

// Deps are the pipeline stages a session drives.
type Deps struct {
	Normalizer Normalizer
	Analyzer   Analyzer
}

// Session coordinates one overlay preview: the placement controller, the
// background analysis pipeline and the renderer's status events.
//
// Each SetBackground call starts a new image generation. Work for older
// generations is cancelled and its results are discarded on arrival.
type Session struct {
	id       string
	modelURI string
	deps     Deps
	timeout  time.Duration
	log      *logrus.Entry

	mu          sync.Mutex
	ctrl        *placement.Controller
	generation  uint64
	cancel      context.CancelFunc
	done        chan struct{}
	analyzing   bool
	loading     bool
	modelError  string
	imageError  string
	arStatus    ARStatus
	outcome     *surface.Outcome
	background  *imaging.Raster
	subscribers []chan Signal
	closed      bool

	runs sync.WaitGroup
}

// New creates a session for modelURI.
func New(cfg *config.Config, modelURI string, deps Deps) *Session {
	id := uuid.NewString()
	done := make(chan struct{})
	close(done)

	return &Session{
		id:       id,
		modelURI: modelURI,
		deps:     deps,
		timeout:  cfg.Session.AnalysisTimeout(),
		log:      logger.WithField("session", id),
		ctrl:     placement.New(cfg.Placement.InitialScale, cfg.Placement.ResetScale),
		done:     done,
		loading:  true,
		arStatus: ARNotPresenting,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetViewport records the viewport size used for drag conversion.
func (s *Session) SetViewport(width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.SetViewport(width, height)
}

// SetBackground starts analysis of a new background image and returns its
// generation. Any analysis still running for a previous image is cancelled.
//
// ctx only bounds the call itself; the analysis runs until it settles, is
// superseded, or the session is closed.
func (s *Session) SetBackground(ctx context.Context, src normalize.Source) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, perrors.NotFound("session is closed", nil)
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.generation++
	gen := s.generation

	var runCtx context.Context
	var cancel context.CancelFunc
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(context.Background(), s.timeout)
	} else {
		runCtx, cancel = context.WithCancel(context.Background())
	}
	s.cancel = cancel
	s.done = make(chan struct{})
	s.analyzing = true
	s.imageError = ""
	s.outcome = nil
	s.background = nil
	s.ctrl.Withdraw()

	s.log.WithFields(logrus.Fields{"generation": gen, "name": src.Name, "bytes": len(src.Data)}).Info("background image changed")
	s.publishLocked(Signal{Kind: SignalAnalysisStarted, Generation: gen})

	s.runs.Add(1)
	go s.run(runCtx, cancel, gen, src, s.done)

	return gen, nil
}

// run executes the pipeline for one generation.
func (s *Session) run(ctx context.Context, cancel context.CancelFunc, gen uint64, src normalize.Source, done chan struct{}) {
	defer s.runs.Done()
	defer close(done)
	defer cancel()

	h, err := s.deps.Normalizer.Normalize(ctx, src)
	if err != nil {
		s.settle(ctx, gen, nil, nil, err)
		return
	}
	raster, err := s.deps.Normalizer.DecodeRaster(h)
	if rerr := h.Release(); rerr != nil {
		s.log.WithError(rerr).Warn("failed to release normalized image")
	}
	if err != nil {
		s.settle(ctx, gen, nil, nil, err)
		return
	}

	outcome := s.deps.Analyzer.Analyze(ctx, raster)
	s.settle(ctx, gen, &outcome, raster, nil)
}

// settle applies the result of generation gen if it is still current.
func (s *Session) settle(ctx context.Context, gen uint64, outcome *surface.Outcome, raster *imaging.Raster, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.log.WithField("generation", gen)
	if s.closed || gen != s.generation {
		entry.Debug("discarding superseded analysis")
		return
	}

	s.analyzing = false

	if err != nil {
		if isImageError(err) {
			s.imageError = "Failed to load image"
			entry.WithError(err).Warn("background image could not be decoded")
			s.publishLocked(Signal{Kind: SignalImageError, Generation: gen, Message: s.imageError})
			return
		}
		fallback := surface.Unavailable(err)
		outcome = &fallback
		switch {
		case perrors.IsRecoverable(err), ctx.Err() != nil:
			entry.WithError(err).Warn("image normalization failed, using default placement")
		default:
			entry.WithError(err).Error("unexpected pipeline failure, using default placement")
		}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) && outcome.Status == surface.StatusUnavailable {
		entry.Warn("analysis timed out, using default placement")
	}

	s.outcome = outcome
	s.background = raster
	s.ctrl.Offer(outcome.Suggestion)

	suggestion := outcome.Suggestion
	entry.WithFields(logrus.Fields{
		"status":     outcome.Status,
		"x":          suggestion.Position.X,
		"y":          suggestion.Position.Y,
		"scale":      suggestion.Scale,
		"candidates": len(outcome.Candidates),
	}).Info("placement suggestion ready")
	s.publishLocked(Signal{Kind: SignalSuggestionReady, Generation: gen, Suggestion: &suggestion, Status: outcome.Status})
}

func isImageError(err error) bool {
	return perrors.Is(err, perrors.KindImageDecodeFailed) || perrors.Is(err, perrors.KindInvalidInput)
}

// Wait blocks until the current generation's analysis settles or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outcome returns the outcome applied for the current generation, if any.
func (s *Session) Outcome() (surface.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return surface.Outcome{}, false
	}
	return *s.outcome, true
}

// Analysis returns the outcome and the raster it was computed from for the
// current generation, read together so both belong to the same image. The
// raster is nil when the outcome did not come from a decoded image.
func (s *Session) Analysis() (surface.Outcome, *imaging.Raster, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return surface.Outcome{}, nil, false
	}
	return *s.outcome, s.background, true
}

// ApplySuggestion applies the pending suggestion once. It reports false when
// no suggestion is on offer for the current image or it was already applied.
func (s *Session) ApplySuggestion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.AcceptPending()
}

// BeginDrag starts a drag gesture.
func (s *Session) BeginDrag(p placement.Pointer) placement.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.BeginDrag(p)
	return s.ctrl.State()
}

// UpdateDrag moves the overlay with the pointer.
func (s *Session) UpdateDrag(p placement.Pointer) placement.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.UpdateDrag(p)
	return s.ctrl.State()
}

// EndDrag ends a drag gesture.
func (s *Session) EndDrag() placement.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.EndDrag()
	return s.ctrl.State()
}

// ZoomIn enlarges the overlay by one step.
func (s *Session) ZoomIn() placement.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.ZoomIn()
	return s.ctrl.State()
}

// ZoomOut shrinks the overlay by one step.
func (s *Session) ZoomOut() placement.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.ZoomOut()
	return s.ctrl.State()
}

// Reset returns the overlay to its centered default.
func (s *Session) Reset() placement.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.Reset()
	return s.ctrl.State()
}

// HandleRendererEvent folds a renderer event into the session's UI state.
// Placement is never changed by renderer events.
func (s *Session) HandleRendererEvent(ev RendererEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case RendererLoad:
		s.loading = false
		s.modelError = ""
		s.publishLocked(Signal{Kind: SignalModelLoaded})

	case RendererError:
		s.loading = false
		s.modelError = ev.Message
		if s.modelError == "" {
			s.modelError = "Failed to load 3D model"
		}
		s.log.WithField("message", ev.Message).Warn("renderer reported an error")
		s.publishLocked(Signal{Kind: SignalModelError, Message: s.modelError})

	case RendererARStatus:
		if !ev.ARStatus.Valid() {
			return perrors.InvalidInput(fmt.Sprintf("unknown ar status %q", ev.ARStatus), nil)
		}
		if conflictingAR(s.arStatus, ev.ARStatus) {
			s.log.WithFields(logrus.Fields{"current": s.arStatus, "incoming": ev.ARStatus}).Debug("ignoring ar status until not-presenting")
			return nil
		}
		s.arStatus = ev.ARStatus
		if ev.ARStatus == ARFailed {
			s.log.Warn("AR session failed to start")
		}
		s.publishLocked(Signal{Kind: SignalARStatus, ARStatus: ev.ARStatus})

	default:
		return perrors.InvalidInput(fmt.Sprintf("unknown renderer event %q", ev.Kind), nil)
	}
	return nil
}

// conflictingAR reports whether next contradicts current: failed and
// session-started exclude each other until not-presenting is seen.
func conflictingAR(current, next ARStatus) bool {
	return (current == ARSessionStarted && next == ARFailed) ||
		(current == ARFailed && next == ARSessionStarted)
}

// View returns a snapshot for rendering.
func (s *Session) View() RenderView {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.ctrl.State()
	return RenderView{
		SessionID:         s.id,
		ModelURI:          s.modelURI,
		State:             state,
		Generation:        s.generation,
		Loading:           s.loading,
		ModelError:        s.modelError,
		ImageError:        s.imageError,
		Analyzing:         s.analyzing,
		ARStatus:          s.arStatus,
		ARActive:          s.arStatus == ARSessionStarted,
		SuggestionVisible: state.SuggestionVisible,
	}
}

// Subscribe returns a channel of signals. Slow subscribers miss signals
// rather than blocking the session. The channel is closed by Close.
func (s *Session) Subscribe() <-chan Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Signal, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Session) publishLocked(sig Signal) {
	for _, ch := range s.subscribers {
		select {
		case ch <- sig:
		default:
			s.log.WithField("signal", sig.Kind).Debug("subscriber full, dropping signal")
		}
	}
}

// Close cancels in-flight analysis, waits for it to release its resources,
// and closes subscriber channels. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.runs.Wait()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	subscribers := s.subscribers
	s.subscribers = nil
	s.analyzing = false
	s.mu.Unlock()

	for _, ch := range subscribers {
		close(ch)
	}

	// Runs settle under s.mu, so this must not hold the lock.
	s.runs.Wait()
	s.log.Debug("session closed")
}
