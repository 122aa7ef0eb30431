// Package forward posts ExtractionResults to a downstream forwarding
// service.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ironsheep/chatscan/internal/extract"
	"github.com/ironsheep/chatscan/internal/faults"
)

// Defaults for Config.
const (
	DefaultMemberID      = 2
	DefaultTimeout       = 30 * time.Second
	DefaultRatePerSecond = 2.0
	DefaultBurst         = 4
)

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 512

// maxResponseBody bounds how much of a response is read.
const maxResponseBody = 1 << 20

// Config configures the forward client. An empty URL disables forwarding.
type Config struct {
	URL           string        `json:"url" mapstructure:"url"`
	MemberID      int           `json:"member_id" mapstructure:"member_id"`
	APIKey        string        `json:"-" mapstructure:"api_key"`
	Timeout       time.Duration `json:"timeout" mapstructure:"timeout"`
	RatePerSecond float64       `json:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int           `json:"burst" mapstructure:"burst"`
}

// DefaultConfig returns a disabled client configuration with the default
// limits filled in.
func DefaultConfig() Config {
	return Config{
		MemberID:      DefaultMemberID,
		Timeout:       DefaultTimeout,
		RatePerSecond: DefaultRatePerSecond,
		Burst:         DefaultBurst,
	}
}

// Enabled reports whether a target URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// Validate rejects unusable limits and non-HTTP targets.
func (c Config) Validate() error {
	if c.URL != "" && !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return faults.InvalidConfiguration("forward.url must be an http(s) URL, got %q", c.URL)
	}
	if c.Timeout <= 0 {
		return faults.InvalidConfiguration("forward.timeout must be positive, got %v", c.Timeout)
	}
	if c.RatePerSecond <= 0 {
		return faults.InvalidConfiguration("forward.rate_per_second must be positive, got %v", c.RatePerSecond)
	}
	if c.Burst < 1 {
		return faults.InvalidConfiguration("forward.burst must be >= 1, got %d", c.Burst)
	}
	return nil
}

// Record is the body posted for every result.
type Record struct {
	MemberID  int             `json:"member_id"`
	RequestID string          `json:"request_id"`
	APIKey    string          `json:"api_key,omitempty"`
	Payload   *extract.Result `json:"payload"`
}

// Client posts Records to the forwarding service, throttled to
// Config.RatePerSecond. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient validates cfg and returns a client for it.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return nil, faults.InvalidConfiguration("forward.url is required")
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
	}, nil
}

// Send posts result under requestID, generating one when empty. It returns
// the service's JSON response body.
func (c *Client) Send(ctx context.Context, requestID string, result *extract.Result) (json.RawMessage, error) {
	if result == nil {
		return nil, fmt.Errorf("nothing to forward")
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	body, err := json.Marshal(Record{
		MemberID:  c.cfg.MemberID,
		RequestID: requestID,
		APIKey:    c.cfg.APIKey,
		Payload:   result,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("forward rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "chatscan-forward/1.0")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, excerpt(respBody))
	}
	if len(respBody) > maxResponseBody {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxResponseBody)
	}

	log.Debug().
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Msg("Forwarded extraction result")

	if len(bytes.TrimSpace(respBody)) == 0 || !json.Valid(respBody) {
		return nil, nil
	}
	return json.RawMessage(respBody), nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
