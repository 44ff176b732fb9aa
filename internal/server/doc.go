// Package server implements the MCP (Model Context Protocol) server that hosts
// overlay preview sessions.
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Session lifecycle:
//   - preview_open: Create a session for a 3D model, optionally with a photo
//   - preview_set_background: Replace the photo and restart analysis
//   - preview_wait: Wait for analysis to settle
//   - preview_view: Current render view
//   - preview_close: Close the session
//
// Placement:
//   - placement_apply_suggestion, placement_drag, placement_zoom, placement_reset
//
// Renderer:
//   - renderer_event: Forward load, error and ar-status events
//
// Analysis:
//   - surface_analyze: One-shot analysis of an image file
//   - surface_overlay: Analysis grid rendered over the photo
//   - image_dimensions: Width and height of an image file
//
// # Image Caching
//
// Image files named by path are decoded once and cached for the life of the
// server. Session overlays render straight from the session's analyzed raster,
// read together with its outcome so both belong to the same background.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: {"kind": <error kind>, "detail": <error string>}
//
// Analysis failures are not tool errors. A session whose detector is
// unavailable still settles with the default suggestion.
package server
