package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/effect"

	"github.com/ironsheep/chatscan/internal/detection"
	"github.com/ironsheep/chatscan/internal/imaging"
	"github.com/ironsheep/chatscan/internal/script"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "chat_extract", "image_load").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
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
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn().Str("tool", params.Name).Err(err).Msg("Tool execution failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
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
	// Pipeline
	case "chat_extract":
		return s.handleChatExtract(ctx, args)
	case "chat_detect_regions":
		return s.handleChatDetectRegions(args)
	case "chat_prepare_region":
		return s.handleChatPrepareRegion(args)
	case "text_normalize":
		return s.handleTextNormalize(args)

	// Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dominant_colors":
		return s.handleImageDominantColors(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
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
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Pipeline Handlers ===

type chatExtractArgs struct {
	Path      string   `json:"path"`
	Languages []string `json:"languages"`
}

func (s *Server) handleChatExtract(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a chatExtractArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	extractor := s.extractor
	if len(a.Languages) > 0 {
		if extractor, err = extractor.WithLanguages(a.Languages); err != nil {
			return nil, err
		}
	}
	return extractor.Analyze(ctx, img)
}

type chatDetectRegionsArgs struct {
	Path     string `json:"path"`
	Annotate bool   `json:"annotate"`
	Color    string `json:"color"`
}

// DetectRegionsResult is the chat_detect_regions payload.
type DetectRegionsResult struct {
	Regions    []detection.Region     `json:"regions"`
	Count      int                    `json:"count"`
	Background imaging.Background     `json:"background"`
	Annotated  *imaging.PreviewResult `json:"annotated,omitempty"`
}

func (s *Server) handleChatDetectRegions(args json.RawMessage) (interface{}, error) {
	var a chatDetectRegionsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	regions, err := s.detector.Detect(img)
	if err != nil {
		return nil, err
	}
	if regions == nil {
		regions = []detection.Region{}
	}

	result := &DetectRegionsResult{
		Regions:    regions,
		Count:      len(regions),
		Background: imaging.EstimateBackground(img),
	}

	if a.Annotate {
		boxes := make([]image.Rectangle, len(regions))
		for i, r := range regions {
			boxes[i] = r.Rect()
		}
		if a.Color == "" {
			a.Color = imaging.DefaultOutlineColor
		}
		preview, err := imaging.Preview(imaging.Annotate(img, boxes, a.Color))
		if err != nil {
			return nil, err
		}
		result.Annotated = preview
	}
	return result, nil
}

type chatPrepareRegionArgs struct {
	Path    string  `json:"path"`
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Upscale float64 `json:"upscale"`
}

// handleChatPrepareRegion returns the region exactly as the engine would
// receive it, dark-mode inversion included.
func (s *Server) handleChatPrepareRegion(args json.RawMessage) (interface{}, error) {
	var a chatPrepareRegionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Width <= 0 || a.Height <= 0 {
		return nil, fmt.Errorf("width and height must be positive, got %dx%d", a.Width, a.Height)
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	opts := s.prepare
	if a.Upscale != 0 {
		opts.UpscaleFactor = a.Upscale
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var source image.Image = img
	if imaging.EstimateBackground(img).Dark {
		source = effect.Invert(img)
	}

	b := img.Bounds()
	rect := image.Rect(a.X, a.Y, a.X+a.Width, a.Y+a.Height).Add(b.Min)
	crop, err := imaging.Crop(source, rect)
	if err != nil {
		return nil, err
	}
	prepared, err := imaging.Prepare(crop, opts)
	if err != nil {
		return nil, err
	}
	return imaging.Preview(prepared)
}

type textNormalizeArgs struct {
	Text string `json:"text"`
}

// NormalizeResult is the text_normalize payload.
type NormalizeResult struct {
	CleanText string `json:"clean_text"`
	Script    string `json:"script"`
}

func (s *Server) handleTextNormalize(args json.RawMessage) (interface{}, error) {
	var a textNormalizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	clean := script.Normalize(a.Text)
	return &NormalizeResult{
		CleanText: clean,
		Script:    script.Dominant(clean),
	}, nil
}

// === Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

type imageDominantColorsArgs struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

func (s *Server) handleImageDominantColors(args json.RawMessage) (interface{}, error) {
	var a imageDominantColorsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Count == 0 {
		a.Count = 5
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"colors":     imaging.DominantColors(img, a.Count, img.Bounds()),
		"background": imaging.EstimateBackground(img),
	}, nil
}
