package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the screenshot file",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Pipeline
		{
			Name:        "chat_extract",
			Description: "Extract text from a chat screenshot. Returns raw and normalized text, extracted phones, emails, URLs and amounts, plus the detected regions and per-region fragments.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"languages": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Language hints for the OCR engine, e.g. [\"en\", \"ur\"]. Defaults to the configured languages.",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "chat_detect_regions",
			Description: "Find message regions in reading order without running OCR. Optionally returns the screenshot with numbered boxes drawn on it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"annotate": map[string]interface{}{
						"type":        "boolean",
						"description": "Include a base64 PNG with each region outlined and numbered",
						"default":     false,
					},
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Outline color as #RRGGBB",
						"default":     "#FF0000",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "chat_prepare_region",
			Description: "Return a region of the screenshot preprocessed exactly as the OCR engine receives it (grayscale, denoised, binarized, upscaled).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty(),
					"x":      map[string]interface{}{"type": "integer", "description": "Left edge"},
					"y":      map[string]interface{}{"type": "integer", "description": "Top edge"},
					"width":  map[string]interface{}{"type": "integer", "description": "Region width"},
					"height": map[string]interface{}{"type": "integer", "description": "Region height"},
					"upscale": map[string]interface{}{
						"type":        "number",
						"description": "Upscale factor (1.0 to 8.0). Defaults to the configured factor.",
					},
				},
				"required": []string{"path", "x", "y", "width", "height"},
			},
		},
		{
			Name:        "text_normalize",
			Description: "Normalize OCR text: fold Arabic presentation forms, map Arabic-Indic digits to ASCII and collapse whitespace. Reports the dominant script.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Text to normalize",
					},
				},
				"required": []string{"text"},
			},
		},

		// Image Information
		{
			Name:        "image_load",
			Description: "Load a screenshot and return its dimensions, format and color depth.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dominant_colors",
			Description: "Extract the most common colors and the border background, useful to tell light-mode from dark-mode captures.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"count": map[string]interface{}{
						"type":        "integer",
						"description": "Number of colors to return",
						"default":     5,
					},
				},
				"required": []string{"path"},
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
