package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	perrors "github.com/ironsheep/surface-preview-mcp/internal/errors"
	"github.com/ironsheep/surface-preview-mcp/internal/imaging"
	"github.com/ironsheep/surface-preview-mcp/internal/logger"
	"github.com/ironsheep/surface-preview-mcp/internal/normalize"
	"github.com/ironsheep/surface-preview-mcp/internal/placement"
	"github.com/ironsheep/surface-preview-mcp/internal/session"
	"github.com/ironsheep/surface-preview-mcp/internal/surface"
)

const defaultWaitTimeout = 5 * time.Second

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "preview_open", "placement_zoom").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// toolErrorData is attached to failed tool calls so clients can branch on
// the error kind.
type toolErrorData struct {
	Kind   perrors.Kind `json:"kind,omitempty"`
	Detail string       `json:"detail"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", toolErrorData{Detail: err.Error()})
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		logger.WithError(err).WithField("tool", params.Name).Debug("tool call failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", toolErrorData{
			Kind:   perrors.KindOf(err),
			Detail: err.Error(),
		})
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Session lifecycle
	case "preview_open":
		return s.handlePreviewOpen(ctx, args)
	case "preview_set_background":
		return s.handlePreviewSetBackground(ctx, args)
	case "preview_wait":
		return s.handlePreviewWait(ctx, args)
	case "preview_view":
		return s.handlePreviewView(args)
	case "preview_close":
		return s.handlePreviewClose(args)

	// Placement gestures
	case "placement_apply_suggestion":
		return s.handlePlacementApplySuggestion(args)
	case "placement_drag":
		return s.handlePlacementDrag(args)
	case "placement_zoom":
		return s.handlePlacementZoom(args)
	case "placement_reset":
		return s.handlePlacementReset(args)

	// Renderer
	case "renderer_event":
		return s.handleRendererEvent(args)

	// Analysis
	case "surface_analyze":
		return s.handleSurfaceAnalyze(ctx, args)
	case "surface_overlay":
		return s.handleSurfaceOverlay(ctx, args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	default:
		return nil, perrors.NotFound(fmt.Sprintf("unknown tool: %s", name), nil)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return perrors.InvalidInput("missing arguments", nil)
	}
	if err := json.Unmarshal(args, v); err != nil {
		return perrors.InvalidInput("invalid arguments", err)
	}
	return nil
}

func (s *Server) lookup(id string) (*session.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, perrors.NotFound(fmt.Sprintf("no preview session %q", id), nil)
	}
	return sess, nil
}

// readSource loads an image file as an upload.
func readSource(path, mimeType string) (normalize.Source, error) {
	if path == "" {
		return normalize.Source{}, perrors.InvalidInput("image_path is required", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return normalize.Source{}, perrors.NotFound(fmt.Sprintf("failed to read image %s", path), err)
	}
	return normalize.Source{Data: data, DeclaredType: mimeType, Name: filepath.Base(path)}, nil
}

// === Session Lifecycle Handlers ===

type previewOpenArgs struct {
	ModelURI       string  `json:"model_uri"`
	ViewportWidth  float64 `json:"viewport_width"`
	ViewportHeight float64 `json:"viewport_height"`
	ImagePath      string  `json:"image_path,omitempty"`
	MimeType       string  `json:"mime_type,omitempty"`
}

type previewOpenResult struct {
	SessionID  string             `json:"session_id"`
	Generation uint64             `json:"generation"`
	View       session.RenderView `json:"view"`
}

func (s *Server) handlePreviewOpen(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a previewOpenArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.ModelURI == "" {
		return nil, perrors.InvalidInput("model_uri is required", nil)
	}

	var src normalize.Source
	if a.ImagePath != "" {
		var err error
		if src, err = readSource(a.ImagePath, a.MimeType); err != nil {
			return nil, err
		}
	}

	sess := session.New(s.cfg, a.ModelURI, session.Deps{Normalizer: s.normalizer, Analyzer: s.detector})
	sess.SetViewport(a.ViewportWidth, a.ViewportHeight)

	var gen uint64
	if a.ImagePath != "" {
		var err error
		if gen, err = sess.SetBackground(ctx, src); err != nil {
			sess.Close()
			return nil, err
		}
	}
	s.addSession(sess)

	return &previewOpenResult{SessionID: sess.ID(), Generation: gen, View: sess.View()}, nil
}

type previewSetBackgroundArgs struct {
	SessionID string `json:"session_id"`
	ImagePath string `json:"image_path"`
	MimeType  string `json:"mime_type,omitempty"`
}

func (s *Server) handlePreviewSetBackground(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a previewSetBackgroundArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.lookup(a.SessionID)
	if err != nil {
		return nil, err
	}
	src, err := readSource(a.ImagePath, a.MimeType)
	if err != nil {
		return nil, err
	}

	gen, err := sess.SetBackground(ctx, src)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"session_id": a.SessionID,
		"generation": gen,
	}, nil
}

type previewWaitArgs struct {
	SessionID string `json:"session_id"`
	TimeoutMs int    `json:"timeout_ms"`
}

// OutcomeSummary is the client-facing form of an analysis outcome.
type OutcomeSummary struct {
	Status     surface.Status      `json:"status"`
	Suggestion surface.Suggestion  `json:"suggestion"`
	Candidates []surface.Candidate `json:"candidates,omitempty"`
	Points     int                 `json:"points"`
	Reason     string              `json:"reason,omitempty"`
}

func summarize(o surface.Outcome) *OutcomeSummary {
	sum := &OutcomeSummary{
		Status:     o.Status,
		Suggestion: o.Suggestion,
		Candidates: o.Candidates,
		Points:     len(o.Points),
	}
	if o.Reason != nil {
		sum.Reason = o.Reason.Error()
	}
	return sum
}

type previewWaitResult struct {
	Settled bool               `json:"settled"`
	View    session.RenderView `json:"view"`
	Outcome *OutcomeSummary    `json:"outcome,omitempty"`
}

func (s *Server) handlePreviewWait(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a previewWaitArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.lookup(a.SessionID)
	if err != nil {
		return nil, err
	}

	timeout := defaultWaitTimeout
	if a.TimeoutMs > 0 {
		timeout = time.Duration(a.TimeoutMs) * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := &previewWaitResult{Settled: sess.Wait(waitCtx) == nil}
	result.View = sess.View()
	if out, ok := sess.Outcome(); ok {
		result.Outcome = summarize(out)
	}
	return result, nil
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handlePreviewView(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.lookup(a.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.View(), nil
}

func (s *Server) handlePreviewClose(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, ok := s.removeSession(a.SessionID)
	if !ok {
		return nil, perrors.NotFound(fmt.Sprintf("no preview session %q", a.SessionID), nil)
	}
	sess.Close()

	return map[string]interface{}{
		"session_id": a.SessionID,
		"closed":     true,
	}, nil
}

// === Placement Gesture Handlers ===

type placementResult struct {
	Applied *bool           `json:"applied,omitempty"`
	State   placement.State `json:"state"`
}

func (s *Server) handlePlacementApplySuggestion(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.lookup(a.SessionID)
	if err != nil {
		return nil, err
	}
	applied := sess.ApplySuggestion()
	return &placementResult{Applied: &applied, State: sess.View().State}, nil
}

type placementDragArgs struct {
	SessionID string  `json:"session_id"`
	Phase     string  `json:"phase"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

func (s *Server) handlePlacementDrag(args json.RawMessage) (interface{}, error) {
	var a placementDragArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.lookup(a.SessionID)
	if err != nil {
		return nil, err
	}

	p := placement.Pointer{X: a.X, Y: a.Y}
	var st placement.State
	switch a.Phase {
	case "begin":
		st = sess.BeginDrag(p)
	case "move":
		st = sess.UpdateDrag(p)
	case "end":
		st = sess.EndDrag()
	default:
		return nil, perrors.InvalidInput(fmt.Sprintf("invalid drag phase %q (must be begin, move or end)", a.Phase), nil)
	}
	return &placementResult{State: st}, nil
}

type placementZoomArgs struct {
	SessionID string `json:"session_id"`
	Direction string `json:"direction"`
}

func (s *Server) handlePlacementZoom(args json.RawMessage) (interface{}, error) {
	var a placementZoomArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.lookup(a.SessionID)
	if err != nil {
		return nil, err
	}

	switch a.Direction {
	case "in":
		return &placementResult{State: sess.ZoomIn()}, nil
	case "out":
		return &placementResult{State: sess.ZoomOut()}, nil
	default:
		return nil, perrors.InvalidInput(fmt.Sprintf("invalid zoom direction %q (must be in or out)", a.Direction), nil)
	}
}

func (s *Server) handlePlacementReset(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.lookup(a.SessionID)
	if err != nil {
		return nil, err
	}
	return &placementResult{State: sess.Reset()}, nil
}

// === Renderer Handlers ===

type rendererEventArgs struct {
	SessionID string `json:"session_id"`
	session.RendererEvent
}

func (s *Server) handleRendererEvent(args json.RawMessage) (interface{}, error) {
	var a rendererEventArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.lookup(a.SessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.HandleRendererEvent(a.RendererEvent); err != nil {
		return nil, err
	}
	return sess.View(), nil
}

// === Analysis Handlers ===

type surfaceAnalyzeArgs struct {
	Path     string `json:"path"`
	MimeType string `json:"mime_type,omitempty"`
}

type surfaceAnalyzeResult struct {
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	MimeType    string          `json:"mime_type"`
	Converted   bool            `json:"converted"`
	Outcome     *OutcomeSummary `json:"outcome"`
	AspectRatio float64         `json:"aspect_ratio"`
}

// handleSurfaceAnalyze runs the normalize, decode and analyze pipeline once on
// a file, outside any session.
func (s *Server) handleSurfaceAnalyze(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a surfaceAnalyzeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	src, err := readSource(a.Path, a.MimeType)
	if err != nil {
		return nil, err
	}

	h, err := s.normalizer.Normalize(ctx, src)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	raster, err := s.normalizer.DecodeRaster(h)
	if err != nil {
		return nil, err
	}

	outcome := s.detector.Analyze(ctx, raster)
	return &surfaceAnalyzeResult{
		Width:       raster.Width,
		Height:      raster.Height,
		MimeType:    h.MimeType(),
		Converted:   h.Converted(),
		Outcome:     summarize(outcome),
		AspectRatio: raster.AspectRatio(),
	}, nil
}

type surfaceOverlayArgs struct {
	SessionID string `json:"session_id,omitempty"`
	Path      string `json:"path,omitempty"`
	GridColor string `json:"grid_color,omitempty"`
}

// handleSurfaceOverlay renders the analysis grid for a session's current
// background, or for an image file analyzed on the spot.
func (s *Server) handleSurfaceOverlay(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a surfaceOverlayArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.GridColor == "" {
		a.GridColor = "#FFFFFFA0"
	}

	switch {
	case a.SessionID != "":
		sess, err := s.lookup(a.SessionID)
		if err != nil {
			return nil, err
		}
		outcome, raster, ok := sess.Analysis()
		if !ok {
			return nil, perrors.NotFound("no analysis available for this session yet", nil)
		}
		if raster == nil {
			return nil, perrors.NotFound("session has no analyzed background", nil)
		}
		return imaging.RenderSurfaceOverlay(raster.Image(), outcome.Candidates, outcome.Suggestion, a.GridColor)

	case a.Path != "":
		img, err := s.cache.Load(a.Path)
		if err != nil {
			return nil, perrors.ImageDecodeFailed(fmt.Sprintf("failed to load %s", a.Path), err)
		}
		raster := imaging.FromImage(img)
		outcome := s.detector.Analyze(ctx, raster)
		return imaging.RenderSurfaceOverlay(img, outcome.Candidates, outcome.Suggestion, a.GridColor)

	default:
		return nil, perrors.InvalidInput("either session_id or path is required", nil)
	}
}

type imageDimensionsArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageDimensionsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	dims, err := imaging.GetDimensions(s.cache, a.Path)
	if err != nil {
		return nil, perrors.ImageDecodeFailed(fmt.Sprintf("failed to load %s", a.Path), err)
	}
	return dims, nil
}
