// Package matcher is the HTTP client for the remote propensity-score
// matching service. Client implements core.Matcher.
package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/JonMunkholm/psm/internal/core"
)

const (
	// DefaultBaseURL is where the matching service listens in development.
	DefaultBaseURL = "http://localhost:8000"
	// DefaultTimeout is the HTTP client timeout.
	DefaultTimeout = 60 * time.Second
	// DefaultUserAgent identifies this client to the matcher.
	DefaultUserAgent = "psm-client/1.0"
	// MatchPath is the matching endpoint.
	MatchPath = "/api/psm"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 * 1024
)

// Client sends cohort files to the matching service.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// WithBaseURL sets the matcher base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit limits outbound requests to rps per second with the given
// burst. A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the logger for request events
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a matcher client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the configured matcher base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Match posts both cohort files and decodes the matched control rows.
//
// Every failure is returned as a *core.ServiceError: StatusCode is set for
// non-2xx responses (with Detail when the body carries one) and is 0 for
// transport and decoding failures.
func (c *Client) Match(ctx context.Context, req core.MatchRequest) (core.MatchResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return core.MatchResult{}, &core.ServiceError{Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	body, contentType, err := encodeRequest(req)
	if err != nil {
		return core.MatchResult{}, &core.ServiceError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+MatchPath, body)
	if err != nil {
		return core.MatchResult{}, &core.ServiceError{Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return core.MatchResult{}, &core.ServiceError{Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	c.logger.Debug("matcher responded",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.MatchResult{}, decodeError(resp)
	}

	return decodeResult(resp.Body)
}

// encodeRequest builds the multipart body: file parts "experiment" and
// "control" carrying the original file names, plus an optional "columns"
// field holding a JSON array.
func encodeRequest(req core.MatchRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	parts := []struct {
		field string
		file  core.SourceFile
	}{
		{string(core.SlotExperiment), req.Experiment},
		{string(core.SlotControl), req.Control},
	}
	for _, p := range parts {
		name := p.file.Name
		if name == "" {
			name = p.field + ".csv"
		}
		fw, err := w.CreateFormFile(p.field, name)
		if err != nil {
			return nil, "", fmt.Errorf("create %s part: %w", p.field, err)
		}
		if _, err := fw.Write(p.file.Data); err != nil {
			return nil, "", fmt.Errorf("write %s part: %w", p.field, err)
		}
	}

	if len(req.Columns) > 0 {
		cols, err := json.Marshal(req.Columns)
		if err != nil {
			return nil, "", fmt.Errorf("encode columns: %w", err)
		}
		if err := w.WriteField("columns", string(cols)); err != nil {
			return nil, "", fmt.Errorf("write columns field: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// errorBody is the failure payload of the matching service.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// decodeError turns a non-2xx response into a *core.ServiceError.
// detail may be a string or, for validation failures, a structured value;
// anything other than a non-empty string leaves Detail empty.
func decodeError(resp *http.Response) error {
	se := &core.ServiceError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		se.Err = fmt.Errorf("read error response: %w", err)
		return se
	}

	var body errorBody
	if json.Unmarshal(raw, &body) == nil && len(body.Detail) > 0 {
		var detail string
		if json.Unmarshal(body.Detail, &detail) == nil {
			se.Detail = strings.TrimSpace(detail)
		}
	}
	return se
}

// decodeResult decodes a success body. Numbers keep their literal text.
func decodeResult(r io.Reader) (core.MatchResult, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var result core.MatchResult
	if err := dec.Decode(&result); err != nil {
		return core.MatchResult{}, &core.ServiceError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if result.Columns == nil {
		return core.MatchResult{}, &core.ServiceError{Err: errors.New("decode response: missing columns")}
	}
	return result, nil
}
