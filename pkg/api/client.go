package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AndrewKorobchuk/tsd/pkg/logger"
	"github.com/AndrewKorobchuk/tsd/prometheus"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const apiPrefix = "api/v1/"

// Config describes how to reach the backend
type Config struct {
	// BaseURL is the full server URL ending in "/"
	BaseURL string
	APIKey  string
	// Timeout of zero keeps the transport default
	Timeout time.Duration
}

// Client is the REST client set for the backend. A Client is immutable;
// build a new one when the connection settings change.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a new backend client
func NewClient(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	baseURL := cfg.BaseURL
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// BaseURL returns the server URL the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListParams are the paging and filtering parameters shared by directory endpoints
type ListParams struct {
	Skip       int
	Limit      int
	ActiveOnly bool
	Search     string
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(p.Skip))
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	q.Set("active_only", strconv.FormatBool(p.ActiveOnly))
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	return q
}

// MessageResponse is the acknowledgement returned by action endpoints
type MessageResponse struct {
	Message string `json:"message"`
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	token  string
	body   interface{}
	form   url.Values
}

// do sends req and decodes the response into out. A nil out accepts any body.
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	start := time.Now()
	status := "error"
	defer func() {
		prometheus.ObserveRemoteCall(req.op, status, time.Since(start))
	}()

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	log := logger.FromCtx(ctx, c.log).With(zap.String("op", req.op), zap.String("method", req.method))
	log.Debug("Calling backend", zap.String("url", httpReq.URL.String()))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Warn("Backend request failed", zap.Error(err))
		return &TransportError{Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: req.op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := newHTTPError(req.op, resp.StatusCode, body)
		log.Warn("Backend returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("detail", httpErr.Detail))
		return httpErr
	}

	if out == nil {
		return nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%s: %w", req.op, ErrEmptyBody)
	}

	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", req.op, err)
	}

	return nil
}

func (c *Client) newRequest(ctx context.Context, req request) (*http.Request, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%s: backend URL is empty", req.op)
	}

	target := c.baseURL + apiPrefix + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var (
		reader      io.Reader
		contentType string
	)
	switch {
	case req.form != nil:
		reader = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.body != nil:
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", req.op, err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", req.op, err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	return httpReq, nil
}

func pathID(id int64) string {
	return strconv.FormatInt(id, 10)
}
