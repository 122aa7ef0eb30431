package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/chatscan/internal/extract"
	"github.com/ironsheep/chatscan/internal/ocr"
)

// writeImage saves img as a PNG in a temp dir and returns its path.
func writeImage(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// createTestImageFile creates a solid test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return writeImage(t, img)
}

// createChatImageFile draws two messages, one below the other.
func createChatImageFile(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for _, m := range []struct {
		y    int
		text string
	}{{20, "Hello world"}, {100, "Call me now"}} {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.Black),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(10, m.y+basicfont.Face7x13.Ascent),
		}
		d.DrawString(m.text)
	}
	return writeImage(t, img)
}

// callTool runs a tools/call request and decodes the JSON text result into v.
func callTool(t *testing.T, s *Server, name string, args interface{}, v interface{}) {
	t.Helper()
	resp := callToolRaw(t, s, name, args)
	if resp.Error != nil {
		t.Fatalf("%s: unexpected error: %+v", name, resp.Error)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("%s: result should be a map", name)
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("%s: content should hold one item", name)
	}
	if content[0]["type"] != "text" {
		t.Errorf("%s: content type: got %v, want text", name, content[0]["type"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("%s: decode result: %v", name, err)
	}
}

func callToolRaw(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

func TestHandleToolsCall_ChatExtract(t *testing.T) {
	s := newTestServer(t, echoEngine("Pay Rs. 500 to ٠٣٠٠ 1234567"))
	path := createChatImageFile(t)

	var report extract.Report
	callTool(t, s, "chat_extract", map[string]interface{}{"path": path}, &report)

	if len(report.Regions) != 2 {
		t.Fatalf("regions: got %d, want 2", len(report.Regions))
	}
	if report.Fallback {
		t.Error("fallback should be false when regions are found")
	}
	if report.Result == nil {
		t.Fatal("result is nil")
	}
	if want := "Pay Rs. 500 to ٠٣٠٠ 1234567\nPay Rs. 500 to ٠٣٠٠ 1234567"; report.Result.RawText != want {
		t.Errorf("raw_text: got %q, want %q", report.Result.RawText, want)
	}
	if want := "Pay Rs. 500 to 0300 1234567 Pay Rs. 500 to 0300 1234567"; report.Result.CleanText != want {
		t.Errorf("clean_text: got %q, want %q", report.Result.CleanText, want)
	}
	if phones := report.Result.ExtractedFields[extract.FieldPhones]; len(phones) != 1 || phones[0] != "03001234567" {
		t.Errorf("phones: got %v, want [03001234567]", phones)
	}
	if amounts := report.Result.ExtractedFields[extract.FieldAmounts]; len(amounts) != 1 {
		t.Errorf("amounts: got %v, want one entry", amounts)
	}
}

func TestHandleToolsCall_ChatExtract_Languages(t *testing.T) {
	var got []string
	engine := ocr.Func(func(_ context.Context, _ image.Image, languages []string) (ocr.Result, error) {
		got = languages
		return ocr.Result{Text: "x"}, nil
	})
	s := newTestServer(t, engine)
	path := createTestImageFile(t, 40, 30, color.White)

	var report extract.Report
	callTool(t, s, "chat_extract", map[string]interface{}{"path": path, "languages": []string{"ar"}}, &report)

	if len(got) != 1 || got[0] != "ar" {
		t.Errorf("languages: got %v, want [ar]", got)
	}
	if !report.Fallback {
		t.Error("a blank image should fall back to the whole frame")
	}
}

func TestHandleToolsCall_ChatDetectRegions(t *testing.T) {
	s := newTestServer(t, echoEngine(""))
	path := createChatImageFile(t)

	var result DetectRegionsResult
	callTool(t, s, "chat_detect_regions", map[string]interface{}{"path": path}, &result)

	if result.Count != 2 || len(result.Regions) != 2 {
		t.Fatalf("count: got %d (%d regions), want 2", result.Count, len(result.Regions))
	}
	if result.Regions[0].Y >= result.Regions[1].Y {
		t.Errorf("regions out of reading order: %+v", result.Regions)
	}
	if result.Background.Dark {
		t.Error("white background reported as dark")
	}
	if result.Annotated != nil {
		t.Error("annotated preview should only be returned on request")
	}
}

func TestHandleToolsCall_ChatDetectRegions_Annotate(t *testing.T) {
	s := newTestServer(t, echoEngine(""))
	path := createChatImageFile(t)

	var result DetectRegionsResult
	callTool(t, s, "chat_detect_regions", map[string]interface{}{"path": path, "annotate": true, "color": "#00FF00"}, &result)

	if result.Annotated == nil {
		t.Fatal("expected an annotated preview")
	}
	if result.Annotated.Width != 300 || result.Annotated.Height != 200 {
		t.Errorf("preview size: got %dx%d, want 300x200", result.Annotated.Width, result.Annotated.Height)
	}

	data, err := base64.StdEncoding.DecodeString(result.Annotated.ImageBase64)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	img, err := png.Decode(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	r := result.Regions[0]
	got := color.RGBAModel.Convert(img.At(r.X+r.Width-1, r.Y+r.Height-1)).(color.RGBA)
	if got != (color.RGBA{0, 0xFF, 0, 0xFF}) {
		t.Errorf("region corner should carry the outline color, got %v", got)
	}
}

func TestHandleToolsCall_ChatDetectRegions_Blank(t *testing.T) {
	s := newTestServer(t, echoEngine(""))
	path := createTestImageFile(t, 50, 50, color.White)

	var result map[string]interface{}
	callTool(t, s, "chat_detect_regions", map[string]interface{}{"path": path}, &result)

	regions, ok := result["regions"].([]interface{})
	if !ok {
		t.Fatalf("regions should be an empty array, got %v", result["regions"])
	}
	if len(regions) != 0 {
		t.Errorf("regions: got %d, want 0", len(regions))
	}
}

func TestHandleToolsCall_ChatPrepareRegion(t *testing.T) {
	tests := []struct {
		name       string
		args       map[string]interface{}
		wantWidth  int
		wantHeight int
	}{
		{"default upscale", map[string]interface{}{"x": 10, "y": 10, "width": 40, "height": 20}, 80, 40},
		{"custom upscale", map[string]interface{}{"x": 10, "y": 10, "width": 40, "height": 20, "upscale": 3}, 120, 60},
		{"clamped to bounds", map[string]interface{}{"x": 80, "y": 50, "width": 100, "height": 100}, 40, 20},
	}

	s := newTestServer(t, echoEngine(""))
	path := createTestImageFile(t, 100, 60, color.White)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["path"] = path
			var preview struct {
				Width       int    `json:"width"`
				Height      int    `json:"height"`
				MimeType    string `json:"mime_type"`
				ImageBase64 string `json:"image_base64"`
			}
			callTool(t, s, "chat_prepare_region", tt.args, &preview)

			if preview.Width != tt.wantWidth || preview.Height != tt.wantHeight {
				t.Errorf("size: got %dx%d, want %dx%d", preview.Width, preview.Height, tt.wantWidth, tt.wantHeight)
			}
			if preview.MimeType != "image/png" {
				t.Errorf("mime_type: got %s", preview.MimeType)
			}
			if preview.ImageBase64 == "" {
				t.Error("image_base64 is empty")
			}
		})
	}
}

func TestHandleToolsCall_ChatPrepareRegion_DarkModeIsInverted(t *testing.T) {
	s := newTestServer(t, echoEngine(""))
	img := image.NewRGBA(image.Rect(0, 0, 60, 40))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 0x12, G: 0x1b, B: 0x22, A: 0xff}), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, 4+basicfont.Face7x13.Ascent),
	}
	d.DrawString("Hi")
	path := writeImage(t, img)

	var preview struct {
		ImageBase64 string `json:"image_base64"`
	}
	callTool(t, s, "chat_prepare_region", map[string]interface{}{"path": path, "x": 0, "y": 0, "width": 30, "height": 24}, &preview)

	data, err := base64.StdEncoding.DecodeString(preview.ImageBase64)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	decoded, err := png.Decode(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	gray := color.GrayModel.Convert(decoded.At(0, 0)).(color.Gray)
	if gray.Y != 0xFF {
		t.Errorf("dark background should arrive as white, got %d", gray.Y)
	}
}

func TestHandleToolsCall_ChatPrepareRegion_Errors(t *testing.T) {
	s := newTestServer(t, echoEngine(""))
	path := createTestImageFile(t, 100, 60, color.White)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"zero width", map[string]interface{}{"path": path, "x": 0, "y": 0, "width": 0, "height": 10}},
		{"outside image", map[string]interface{}{"path": path, "x": 500, "y": 500, "width": 10, "height": 10}},
		{"upscale too large", map[string]interface{}{"path": path, "x": 0, "y": 0, "width": 10, "height": 10, "upscale": 20}},
		{"upscale below one", map[string]interface{}{"path": path, "x": 0, "y": 0, "width": 10, "height": 10, "upscale": 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callToolRaw(t, s, "chat_prepare_region", tt.args)
			if resp.Error == nil {
				t.Fatal("expected an error")
			}
			if resp.Error.Code != -32000 {
				t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
			}
		})
	}
}

func TestHandleToolsCall_TextNormalize(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantClean  string
		wantScript string
	}{
		{"arabic digits", "رابطہ ٠٣٠٠ ١٢٣٤٥٦٧", "رابطہ 0300 1234567", "arabic"},
		{"latin whitespace", "  hello \t\n world  ", "hello world", "latin"},
		{"empty", "", "", "unknown"},
	}

	s := newTestServer(t, echoEngine(""))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result NormalizeResult
			callTool(t, s, "text_normalize", map[string]interface{}{"text": tt.text}, &result)
			if result.CleanText != tt.wantClean {
				t.Errorf("clean_text: got %q, want %q", result.CleanText, tt.wantClean)
			}
			if result.Script != tt.wantScript {
				t.Errorf("script: got %q, want %q", result.Script, tt.wantScript)
			}
		})
	}
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := newTestServer(t, echoEngine(""))
	path := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	var info struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
	}
	callTool(t, s, "image_load", map[string]interface{}{"path": path}, &info)

	if info.Width != 100 || info.Height != 80 {
		t.Errorf("size: got %dx%d, want 100x80", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("format: got %s, want png", info.Format)
	}
}

func TestHandleToolsCall_ImageDominantColors(t *testing.T) {
	s := newTestServer(t, echoEngine(""))
	path := createTestImageFile(t, 30, 30, color.RGBA{0, 0, 255, 255})

	var result struct {
		Colors []struct {
			Hex string `json:"hex"`
		} `json:"colors"`
		Background struct {
			Hex string `json:"hex"`
		} `json:"background"`
	}
	callTool(t, s, "image_dominant_colors", map[string]interface{}{"path": path, "count": 3}, &result)

	if len(result.Colors) != 1 {
		t.Fatalf("colors: got %d, want 1 for a solid image", len(result.Colors))
	}
	if result.Colors[0].Hex != result.Background.Hex {
		t.Errorf("dominant %s should match background %s", result.Colors[0].Hex, result.Background.Hex)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := newTestServer(t, echoEngine(""))

	for _, name := range []string{"chat_extract", "chat_detect_regions", "image_load", "image_dominant_colors"} {
		t.Run(name, func(t *testing.T) {
			resp := callToolRaw(t, s, name, map[string]interface{}{"path": "/nonexistent/path/image.png"})
			if resp.Error == nil {
				t.Fatal("Expected error for non-existent file")
			}
			if resp.Error.Code != -32000 {
				t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
			}
		})
	}
}

func TestHandleToolsCall_UndecodableFile(t *testing.T) {
	s := newTestServer(t, echoEngine(""))
	path := filepath.Join(t.TempDir(), "notes.png")
	if err := os.WriteFile(path, []byte("plain text, not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	resp := callToolRaw(t, s, "chat_extract", map[string]interface{}{"path": path})
	if resp.Error == nil {
		t.Fatal("expected an error")
	}
	data, _ := resp.Error.Data.(string)
	if !strings.Contains(data, "UNSUPPORTED_IMAGE") {
		t.Errorf("error data should name the category, got %q", data)
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := newTestServer(t, echoEngine(""))
	resp := callToolRaw(t, s, "nonexistent_tool", map[string]interface{}{})

	if resp.Error == nil {
		t.Fatal("Expected error for invalid tool")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t, echoEngine(""))
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})

	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := newTestServer(t, echoEngine(""))
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if _, err := s.executeTool(context.Background(), tool.Name, json.RawMessage(`{invalid`)); err == nil {
				t.Error("expected error for invalid JSON arguments")
			}
		})
	}
}
