package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sdengine/internal/domain"
)

// ErrUnavailable marks a network-level failure reaching the generator.
var ErrUnavailable = errors.New("upstream unavailable")

// ErrRejected marks a response in which the generator refused or failed the
// request.
var ErrRejected = errors.New("upstream rejected request")

// Result is the artifact payload of a finished generation: base64-encoded
// images plus the generator's opaque info blob.
type Result struct {
	Images []string        `json:"images"`
	Info   json.RawMessage `json:"info"`
}

// Client talks to an Automatic1111-style generation server.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates an upstream client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) apiURL(path string) string {
	return c.baseURL + "/sdapi/v1" + path
}

// Ping checks that the generator answers its options endpoint.
func (c *Client) Ping(ctx context.Context) error {
	var ignored json.RawMessage
	return c.getJSON(ctx, "/options", &ignored)
}

// Generate submits a specification and blocks until the generator finishes.
// The generator serializes work internally, so one call corresponds to one
// busy slot on its side.
func (c *Client) Generate(ctx context.Context, spec *domain.GenerationSpec) (*Result, error) {
	payload := payloadFromSpec(spec)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal generation payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("/txt2img"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Msg("upstream: generation refused")
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, truncate(respBody, 512))
	}
	if readErr != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, readErr)
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrRejected, err)
	}
	if len(result.Images) == 0 {
		return nil, fmt.Errorf("%w: response carried no images", ErrRejected)
	}
	return &result, nil
}

type progressResponse struct {
	Progress    float64 `json:"progress"`
	EtaRelative float64 `json:"eta_relative"`
}

// Progress reads the generator's current progress fraction. The endpoint is
// global on the generator side, not job-scoped.
func (c *Client) Progress(ctx context.Context) (float64, error) {
	var pr progressResponse
	if err := c.getJSON(ctx, "/progress", &pr); err != nil {
		return 0, err
	}
	if pr.Progress < 0 {
		return 0, nil
	}
	if pr.Progress > 1 {
		return 1, nil
	}
	return pr.Progress, nil
}

// Interrupt asks the generator to abort its current work. Best effort.
func (c *Client) Interrupt(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("/interrupt"), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: interrupt status %d", ErrRejected, resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL(path), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s status %d", ErrRejected, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrRejected, path, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
