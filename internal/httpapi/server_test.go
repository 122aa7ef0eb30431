package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/chatscan/internal/cache"
	"github.com/ironsheep/chatscan/internal/config"
	"github.com/ironsheep/chatscan/internal/detection"
	"github.com/ironsheep/chatscan/internal/extract"
	"github.com/ironsheep/chatscan/internal/faults"
	"github.com/ironsheep/chatscan/internal/forward"
	"github.com/ironsheep/chatscan/internal/imaging"
	"github.com/ironsheep/chatscan/internal/ocr"
	"github.com/ironsheep/chatscan/internal/observability"
)

// noRegions forces the whole-image fallback so every request makes one
// engine call.
type noRegions struct{}

func (noRegions) Detect(image.Image) ([]detection.Region, error) { return nil, nil }

// twoRegions splits the 40x20 test image into a short top strip and a taller
// bottom strip. With the 2x upscale they reach the engine 16 and 20 px high.
type twoRegions struct{}

func (twoRegions) Detect(image.Image) ([]detection.Region, error) {
	return []detection.Region{
		{X: 0, Y: 0, Width: 40, Height: 8},
		{X: 0, Y: 10, Width: 40, Height: 10},
	}, nil
}

// countingEngine answers every call with text and counts the calls.
func countingEngine(text string, calls *atomic.Int32) ocr.Engine {
	return ocr.Func(func(context.Context, image.Image, []string) (ocr.Result, error) {
		calls.Add(1)
		return ocr.Result{Text: text}, nil
	})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.White)
		}
	}
	data, err := imaging.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func newTestServer(t *testing.T, engine ocr.Engine, mutate func(*config.ServerConfig, *Deps)) *Server {
	t.Helper()
	return newTestServerWithDetector(t, engine, noRegions{}, mutate)
}

func newTestServerWithDetector(t *testing.T, engine ocr.Engine, detector extract.RegionDetector, mutate func(*config.ServerConfig, *Deps)) *Server {
	t.Helper()
	cfg := config.Default().Server
	cfg.RatePerMinute = 0
	deps := Deps{Version: "test"}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	opts := extract.DefaultOptions()
	opts.RegionDetector = detector
	opts.Metrics = deps.Metrics
	extractor, err := extract.New(engine, opts)
	require.NoError(t, err)
	deps.Extractor = extractor

	s, err := NewServer(cfg, deps)
	require.NoError(t, err)
	return s
}

func postImage(t *testing.T, s *Server, path string, data []byte) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "image/png")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestExtract_RawBody(t *testing.T) {
	var calls atomic.Int32
	s := newTestServer(t, countingEngine("Call ٠٣٠٠ 1234567", &calls), nil)

	resp := postImage(t, s, "/v1/extract", pngBytes(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	headerID := resp.Header.Get("X-Request-ID")

	var body ExtractResponse
	decodeBody(t, resp, &body)

	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, headerID, body.RequestID)
	assert.False(t, body.Cached)
	require.NotNil(t, body.Result)
	assert.Equal(t, "Call ٠٣٠٠ 1234567", body.Result.RawText)
	assert.Equal(t, "Call 0300 1234567", body.Result.CleanText)
	assert.Equal(t, []string{"03001234567"}, body.Result.ExtractedFields["phones"])
	assert.Equal(t, int32(1), calls.Load())
}

func TestExtract_Multipart(t *testing.T) {
	var calls atomic.Int32
	s := newTestServer(t, countingEngine("hello", &calls), nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "shot.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/extract", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ExtractResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "hello", body.Result.CleanText)
}

func TestExtract_BadRequests(t *testing.T) {
	var calls atomic.Int32
	s := newTestServer(t, countingEngine("x", &calls), nil)

	t.Run("multipart without image field", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("note", "no file"))
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/v1/extract", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		resp, err := s.App().Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body map[string]interface{}
		decodeBody(t, resp, &body)
		assert.Contains(t, body["error"], `"image"`)
		assert.EqualValues(t, 400, body["code"])
	})

	t.Run("empty body", func(t *testing.T) {
		resp := postImage(t, s, "/v1/extract", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("undecodable body", func(t *testing.T) {
		resp := postImage(t, s, "/v1/extract", []byte("definitely not a png"))
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

		var body map[string]interface{}
		decodeBody(t, resp, &body)
		assert.Equal(t, string(faults.CodeUnsupportedImage), body["fault"])
		assert.EqualValues(t, 415, body["code"])
	})

	assert.Zero(t, calls.Load())
}

func TestExtract_CachesResults(t *testing.T) {
	var calls atomic.Int32
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	store := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	s := newTestServer(t, countingEngine("cached text", &calls), func(_ *config.ServerConfig, d *Deps) {
		d.Cache = cache.NewResultCache(store, "test:", time.Minute, metrics)
		d.Metrics = metrics
	})

	data := pngBytes(t)

	var first, second ExtractResponse
	decodeBody(t, postImage(t, s, "/v1/extract", data), &first)
	decodeBody(t, postImage(t, s, "/v1/extract", data), &second)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Result, second.Result)
	assert.NotEqual(t, first.RequestID, second.RequestID)
	assert.Equal(t, int32(1), calls.Load())
}

func newMemoryCache(t *testing.T) *cache.ResultCache {
	t.Helper()
	store := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	return cache.NewResultCache(store, "test:", time.Minute, nil)
}

func TestExtract_EngineUnavailable(t *testing.T) {
	var forwarded atomic.Int32
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded.Add(1)
	}))
	defer downstream.Close()

	fcfg := forward.DefaultConfig()
	fcfg.URL = downstream.URL
	client, err := forward.NewClient(fcfg)
	require.NoError(t, err)

	engine := ocr.Unavailable{Engine: ocr.EngineNone, Reason: "ocr is disabled by configuration"}
	s := newTestServerWithDetector(t, engine, twoRegions{}, func(_ *config.ServerConfig, d *Deps) {
		d.Cache = newMemoryCache(t)
		d.Forwarder = client
	})

	for i := 0; i < 2; i++ {
		resp := postImage(t, s, "/v1/extract?forward=true", pngBytes(t))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "request %d", i)

		var body map[string]interface{}
		decodeBody(t, resp, &body)
		assert.Equal(t, string(faults.CodeEngineUnavailable), body["fault"])
		assert.EqualValues(t, 503, body["code"])
		assert.Contains(t, body["error"], "all 2 regions failed")
		assert.NotContains(t, body, "result")
	}
	assert.Zero(t, forwarded.Load())
}

func TestExtract_FailedRecognitionIsNotCached(t *testing.T) {
	var calls atomic.Int32
	var failing atomic.Bool
	failing.Store(true)
	engine := ocr.Func(func(context.Context, image.Image, []string) (ocr.Result, error) {
		calls.Add(1)
		if failing.Load() {
			return ocr.Result{}, errors.New("engine crashed")
		}
		return ocr.Result{Text: "recovered"}, nil
	})
	s := newTestServer(t, engine, func(_ *config.ServerConfig, d *Deps) {
		d.Cache = newMemoryCache(t)
	})
	data := pngBytes(t)

	resp := postImage(t, s, "/v1/extract", data)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var failed ExtractResponse
	decodeBody(t, resp, &failed)
	assert.False(t, failed.Cached)
	assert.Equal(t, 1, failed.FailedRegions)
	assert.Empty(t, failed.Result.RawText)

	failing.Store(false)

	var recovered ExtractResponse
	decodeBody(t, postImage(t, s, "/v1/extract", data), &recovered)
	assert.False(t, recovered.Cached)
	assert.Zero(t, recovered.FailedRegions)
	assert.Equal(t, "recovered", recovered.Result.RawText)
	assert.Equal(t, int32(2), calls.Load())

	var cached ExtractResponse
	decodeBody(t, postImage(t, s, "/v1/extract", data), &cached)
	assert.True(t, cached.Cached)
	assert.Equal(t, "recovered", cached.Result.RawText)
	assert.Equal(t, int32(2), calls.Load())
}

func TestExtract_PartialFailure(t *testing.T) {
	var calls atomic.Int32
	engine := ocr.Func(func(_ context.Context, img image.Image, _ []string) (ocr.Result, error) {
		calls.Add(1)
		if img.Bounds().Dy() == 16 {
			return ocr.Result{}, errors.New("unreadable strip")
		}
		return ocr.Result{Text: "Call 0300 1234567"}, nil
	})
	s := newTestServerWithDetector(t, engine, twoRegions{}, func(_ *config.ServerConfig, d *Deps) {
		d.Cache = newMemoryCache(t)
	})
	data := pngBytes(t)

	for i := 0; i < 2; i++ {
		resp := postImage(t, s, "/v1/extract", data)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body ExtractResponse
		decodeBody(t, resp, &body)
		assert.False(t, body.Cached, "request %d", i)
		assert.Equal(t, 1, body.FailedRegions)
		assert.Equal(t, "Call 0300 1234567", body.Result.CleanText)
		assert.Equal(t, []string{"03001234567"}, body.Result.ExtractedFields["phones"])
	}
	assert.Equal(t, int32(4), calls.Load())
}

func TestExtract_Forward(t *testing.T) {
	var forwarded atomic.Int32
	var record forward.Record
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded.Add(1)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&record))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"verdict":"safe"}`))
	}))
	defer downstream.Close()

	fcfg := forward.DefaultConfig()
	fcfg.URL = downstream.URL
	client, err := forward.NewClient(fcfg)
	require.NoError(t, err)

	var calls atomic.Int32
	s := newTestServer(t, countingEngine("hi there", &calls), func(_ *config.ServerConfig, d *Deps) {
		d.Forwarder = client
	})

	var plain ExtractResponse
	decodeBody(t, postImage(t, s, "/v1/extract", pngBytes(t)), &plain)
	assert.Nil(t, plain.Forward)
	assert.Zero(t, forwarded.Load())

	var body ExtractResponse
	decodeBody(t, postImage(t, s, "/v1/extract?forward=true", pngBytes(t)), &body)
	assert.JSONEq(t, `{"verdict":"safe"}`, string(body.Forward))
	assert.Empty(t, body.ForwardError)
	assert.Equal(t, int32(1), forwarded.Load())
	assert.Equal(t, body.RequestID, record.RequestID)
	assert.Equal(t, "hi there", record.Payload.CleanText)
}

func TestExtract_ForwardFailureKeepsResult(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer downstream.Close()

	fcfg := forward.DefaultConfig()
	fcfg.URL = downstream.URL
	client, err := forward.NewClient(fcfg)
	require.NoError(t, err)

	var calls atomic.Int32
	s := newTestServer(t, countingEngine("still here", &calls), func(_ *config.ServerConfig, d *Deps) {
		d.Forwarder = client
	})

	resp := postImage(t, s, "/v1/extract?forward=true", pngBytes(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ExtractResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "still here", body.Result.CleanText)
	assert.Contains(t, body.ForwardError, "HTTP 503")
}

func TestExtract_RateLimited(t *testing.T) {
	var calls atomic.Int32
	s := newTestServer(t, countingEngine("x", &calls), func(c *config.ServerConfig, _ *Deps) {
		c.RatePerMinute = 1
	})

	first := postImage(t, s, "/v1/extract", pngBytes(t))
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := postImage(t, s, "/v1/extract", pngBytes(t))
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)

	var body map[string]interface{}
	decodeBody(t, second, &body)
	assert.Equal(t, "Rate limit exceeded", body["error"])
	assert.EqualValues(t, 60, body["retry_after"])

	// Health checks are not limited.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	var calls atomic.Int32
	s := newTestServer(t, countingEngine("x", &calls), nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "chatscan", resp.Header.Get("Server"))

	var body HealthResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, HealthResponse{Status: "ok", Engine: "func", Version: "test"}, body)
}

func TestMetricsEndpoint(t *testing.T) {
	var calls atomic.Int32
	reg := prometheus.NewRegistry()
	s := newTestServer(t, countingEngine("x", &calls), func(_ *config.ServerConfig, d *Deps) {
		d.Metrics = observability.NewMetrics(reg)
		d.Gatherer = reg
	})

	postImage(t, s, "/v1/extract", pngBytes(t))

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, `chatscan_extractions_total{outcome="ok"} 1`)
	assert.Contains(t, text, `chatscan_fallback_total 1`)
	assert.Contains(t, text, `chatscan_http_requests_total{method="POST",path="/v1/extract",status="2xx"} 1`)
}

func TestMetricsEndpoint_DisabledWithoutGatherer(t *testing.T) {
	var calls atomic.Int32
	s := newTestServer(t, countingEngine("x", &calls), nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]interface{}
	decodeBody(t, resp, &body)
	assert.Equal(t, "Cannot GET /metrics", body["error"])
	assert.EqualValues(t, 404, body["code"])
}

func TestNewServer_RequiresExtractor(t *testing.T) {
	s, err := NewServer(config.Default().Server, Deps{})
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{faults.InvalidConfiguration("bad"), http.StatusBadRequest},
		{faults.UnsupportedImage(errors.New("garbage")), http.StatusUnsupportedMediaType},
		{faults.EngineUnavailable("tesseract", errors.New("missing")), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
