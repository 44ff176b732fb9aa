package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session identifier returned by preview_open",
	}
}

func sessionOnlySchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": sessionIDProperty(),
		},
		"required": []string{"session_id"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Session lifecycle
		{
			Name:        "preview_open",
			Description: "Open a preview session for a 3D product model. Optionally sets a background photo and starts surface analysis in the background. Returns the session id and initial render view.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"model_uri": map[string]interface{}{
						"type":        "string",
						"description": "URI of the 3D model to overlay",
					},
					"viewport_width": map[string]interface{}{
						"type":        "number",
						"description": "Width of the preview viewport in pixels, used to convert drags to percent",
					},
					"viewport_height": map[string]interface{}{
						"type":        "number",
						"description": "Height of the preview viewport in pixels",
					},
					"image_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional absolute path to the background photo",
					},
					"mime_type": map[string]interface{}{
						"type":        "string",
						"description": "Optional declared MIME type of the photo (e.g., image/heic)",
					},
				},
				"required": []string{"model_uri", "viewport_width", "viewport_height"},
			},
		},
		{
			Name:        "preview_set_background",
			Description: "Replace the background photo of a session. Any analysis still running for the previous photo is cancelled and its result discarded.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty(),
					"image_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the background photo (JPEG, PNG, WebP, GIF, BMP, TIFF or HEIC)",
					},
					"mime_type": map[string]interface{}{
						"type":        "string",
						"description": "Optional declared MIME type, used when content sniffing is inconclusive",
					},
				},
				"required": []string{"session_id", "image_path"},
			},
		},
		{
			Name:        "preview_wait",
			Description: "Wait for the current background analysis to settle and return the render view with the analysis outcome.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty(),
					"timeout_ms": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum time to wait in milliseconds. Default 5000",
						"default":     5000,
					},
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "preview_view",
			Description: "Return the current render view: overlay position and scale, loading and error banners, AR status and whether a suggestion is on offer.",
			InputSchema: sessionOnlySchema(),
		},
		{
			Name:        "preview_close",
			Description: "Close a preview session, cancelling any in-flight analysis.",
			InputSchema: sessionOnlySchema(),
		},

		// Placement gestures
		{
			Name:        "placement_apply_suggestion",
			Description: "Move the overlay to the suggested surface position and scale. Reports applied=false when nothing is on offer.",
			InputSchema: sessionOnlySchema(),
		},
		{
			Name:        "placement_drag",
			Description: "Drag the overlay. Send phase=begin at pointer down, phase=move for each pointer move and phase=end at pointer up. Pointer coordinates are viewport pixels.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty(),
					"phase": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"begin", "move", "end"},
						"description": "Gesture phase",
					},
					"x": map[string]interface{}{
						"type":        "number",
						"description": "Pointer X in viewport pixels",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Pointer Y in viewport pixels",
					},
				},
				"required": []string{"session_id", "phase"},
			},
		},
		{
			Name:        "placement_zoom",
			Description: "Grow or shrink the overlay by one step (0.2). Manual zoom is limited to 0.2 through 3.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty(),
					"direction": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"in", "out"},
						"description": "Zoom direction",
					},
				},
				"required": []string{"session_id", "direction"},
			},
		},
		{
			Name:        "placement_reset",
			Description: "Return the overlay to the center of the viewport at scale 1.",
			InputSchema: sessionOnlySchema(),
		},

		// Renderer
		{
			Name:        "renderer_event",
			Description: "Forward an event from the 3D renderer: load, error, or ar-status with one of not-presenting, session-started, failed.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty(),
					"kind": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"load", "error", "ar-status"},
						"description": "Renderer event kind",
					},
					"ar_status": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"not-presenting", "session-started", "failed"},
						"description": "AR status, required for ar-status events",
					},
					"message": map[string]interface{}{
						"type":        "string",
						"description": "Optional error message for error events",
					},
				},
				"required": []string{"session_id", "kind"},
			},
		},

		// Analysis
		{
			Name:        "surface_analyze",
			Description: "Run surface analysis once on an image file without a session. Returns the candidate cells, the suggested placement and whether detection was available.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"mime_type": map[string]interface{}{
						"type":        "string",
						"description": "Optional declared MIME type",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "surface_overlay",
			Description: "Render the 8x8 analysis grid over a photo as base64 PNG. Candidate cells are tinted from red (low confidence) to green (high) and the suggested position is marked. Uses a session's last analysis, or analyzes an image file directly.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty(),
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to an image file, used when no session_id is given",
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid line color as hex (e.g., '#FFFFFF' or '#FFFFFFA0'). Default '#FFFFFFA0'",
						"default":     "#FFFFFFA0",
					},
				},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}
