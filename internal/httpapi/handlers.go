package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/chatscan/internal/cache"
	"github.com/ironsheep/chatscan/internal/extract"
	"github.com/ironsheep/chatscan/internal/faults"
)

// formField is the multipart field carrying the screenshot.
const formField = "image"

// ExtractResponse is the body of a successful POST /v1/extract.
// FailedRegions above zero marks Result as partial.
type ExtractResponse struct {
	RequestID     string          `json:"request_id"`
	Cached        bool            `json:"cached"`
	Result        *extract.Result `json:"result"`
	FailedRegions int             `json:"failed_regions"`
	Forward       json.RawMessage `json:"forward,omitempty"`
	ForwardError  string          `json:"forward_error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Engine  string `json:"engine"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Engine:  s.extractor.Engine().Name(),
		Version: s.version,
	})
}

// handleExtract accepts a screenshot as a multipart "image" field or as the
// raw request body. Pass ?forward=true to post the result downstream.
func (s *Server) handleExtract(c *fiber.Ctx) error {
	requestID, _ := c.Locals("requestid").(string)
	logger := log.With().Str("request_id", requestID).Logger()

	data, err := readImage(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.WriteTimeout)
	defer cancel()

	key := ""
	if s.cache != nil {
		key = cache.Key(data, s.extractor.Fingerprint())
	}
	resp := ExtractResponse{RequestID: requestID}

	if key != "" {
		result, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			logger.Warn().Err(err).Msg("Result cache lookup failed")
		}
		if ok {
			resp.Cached = true
			resp.Result = result
		}
	}

	if resp.Result == nil {
		report, err := s.extractor.AnalyzeBytes(ctx, data)
		if err != nil {
			return s.fail(c, err)
		}
		resp.Result = report.Result
		resp.FailedRegions = report.FailedRegions

		// Partial results are not cached so a transient engine fault is
		// retried on the next request.
		if key != "" && report.FailedRegions == 0 {
			if err := s.cache.Set(ctx, key, report.Result); err != nil {
				logger.Warn().Err(err).Msg("Result cache store failed")
			}
		}
	}

	if s.forwarder != nil && c.QueryBool("forward") {
		body, err := s.forwarder.Send(ctx, requestID, resp.Result)
		if err != nil {
			logger.Warn().Err(err).Msg("Forwarding result failed")
			resp.ForwardError = err.Error()
		} else {
			resp.Forward = body
		}
	}

	logger.Info().
		Bool("cached", resp.Cached).
		Int("failed_regions", resp.FailedRegions).
		Int("clean_length", len(resp.Result.CleanText)).
		Msg("Extraction served")

	return c.JSON(resp)
}

// readImage returns the uploaded screenshot bytes.
func readImage(c *fiber.Ctx) ([]byte, error) {
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		header, err := c.FormFile(formField)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("multipart field %q is required", formField))
		}
		f, err := header.Open()
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "unable to open uploaded image")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "unable to read uploaded image")
		}
		return data, nil
	}

	body := c.Body()
	if len(body) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "request body is empty")
	}
	return append([]byte(nil), body...), nil
}

// fail writes an extraction error with the status its category maps to.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("Extraction failed")
	}
	body := fiber.Map{
		"error": err.Error(),
		"code":  status,
	}
	if fault := faults.CodeOf(err); fault != "" {
		body["fault"] = fault
	}
	return c.Status(status).JSON(body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, faults.ErrInvalidConfiguration):
		return fiber.StatusBadRequest
	case errors.Is(err, faults.ErrUnsupportedImage):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, faults.ErrEngineUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
