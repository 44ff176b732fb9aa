package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/surface-preview-mcp/internal/config"
	"github.com/ironsheep/surface-preview-mcp/internal/features"
	"github.com/ironsheep/surface-preview-mcp/internal/imaging"
	"github.com/ironsheep/surface-preview-mcp/internal/logger"
	"github.com/ironsheep/surface-preview-mcp/internal/normalize"
	"github.com/ironsheep/surface-preview-mcp/internal/session"
	"github.com/ironsheep/surface-preview-mcp/internal/version"
)

// Server handles MCP protocol communication
type Server struct {
	cfg        *config.Config
	cache      *imaging.ImageCache
	normalizer *normalize.Normalizer
	detector   *features.Detector

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance using cfg. A nil cfg selects the
// defaults.
func New(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{
		cfg:        cfg,
		cache:      imaging.NewImageCache(),
		normalizer: normalize.New(cfg.Normalizer, nil),
		detector:   features.NewDetector(features.DefaultLibrary(), cfg.Detector),
		sessions:   make(map[string]*session.Session),
	}
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	return s.Serve(context.Background(), os.Stdin, os.Stdout)
}

// Serve processes newline-delimited requests from r until EOF or ctx ends.
// All open sessions are closed on return.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	defer s.Close()

	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			logger.WithError(err).Warn("failed to parse request")
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				logger.WithError(err).Error("failed to encode response")
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	logger.WithField("method", req.Method).Debug("request received")

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "surface-preview-mcp",
				"version": version.Version,
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}

func (s *Server) addSession(sess *session.Session) {
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
}

func (s *Server) removeSession(id string) (*session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	return sess, ok
}

// Close closes every open session, waiting for their analyses to release
// temporary files, and empties the image cache.
func (s *Server) Close() {
	s.mu.Lock()
	open := s.sessions
	s.sessions = make(map[string]*session.Session)
	s.mu.Unlock()

	for _, sess := range open {
		sess.Close()
	}

	logger.WithFields(logrus.Fields{
		"sessions":      len(open),
		"cached_images": s.cache.Len(),
	}).Debug("server closed")
	s.cache.Clear()
}
