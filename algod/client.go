// Package algod compiles TEAL through an algod node's compile endpoint and
// provides caching and metered wrappers around any beaker.Compiler.
package algod

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	beaker "github.com/branched-services/go-beaker"
)

// TokenHeader carries the algod API token.
const TokenHeader = "X-Algo-API-Token"

const compilePath = "/v2/teal/compile"

// ErrMalformedResponse indicates a 2xx response that could not be decoded.
var ErrMalformedResponse = errors.New("algod: malformed compile response")

// APIError is a non-2xx response from algod.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("algod: status %d: %s", e.StatusCode, e.Message)
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     log.Logger
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		httpClient: http.DefaultClient,
		timeout:    30 * time.Second,
		logger:     log.Root(),
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) {
		if c != nil {
			cfg.httpClient = c
		}
	}
}

// WithTimeout bounds each compile request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) {
		cfg.timeout = d
	}
}

// WithLogger sets the request logger.
func WithLogger(l log.Logger) Option {
	return func(cfg *clientConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// Client is a beaker.Compiler backed by algod.
type Client struct {
	baseURL string
	token   string
	cfg     *clientConfig
}

var _ beaker.Compiler = (*Client)(nil)

// New creates a client for the algod node at baseURL.
func New(baseURL, token string, opts ...Option) *Client {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		cfg:     cfg,
	}
}

type compileResponse struct {
	Hash      string          `json:"hash"`
	Result    string          `json:"result"`
	SourceMap json.RawMessage `json:"sourcemap"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Compile posts source to the compile endpoint with source maps enabled.
func (c *Client) Compile(ctx context.Context, source string) (*beaker.CompileResult, error) {
	if c.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+compilePath+"?sourcemap=true", strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("algod: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	if c.token != "" {
		req.Header.Set(TokenHeader, c.token)
	}

	start := time.Now()
	resp, err := c.cfg.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("algod: compile request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("algod: read response: %w", err)
	}
	c.cfg.logger.Trace("Compiled TEAL", "status", resp.StatusCode, "bytes", len(source), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, body)
	}
	return decodeCompileResponse(body)
}

func newAPIError(status int, body []byte) *APIError {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Message != "" {
		return &APIError{StatusCode: status, Message: er.Message}
	}
	msg := string(bytes.TrimSpace(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}

func decodeCompileResponse(body []byte) (*beaker.CompileResult, error) {
	var cr compileResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	bin, err := base64.StdEncoding.DecodeString(cr.Result)
	if err != nil {
		return nil, fmt.Errorf("%w: result: %v", ErrMalformedResponse, err)
	}
	if len(bin) == 0 {
		return nil, fmt.Errorf("%w: empty result", ErrMalformedResponse)
	}

	var sm *beaker.SourceMap
	if len(cr.SourceMap) > 0 && string(cr.SourceMap) != "null" {
		if sm, err = beaker.DecodeSourceMap(cr.SourceMap); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	return &beaker.CompileResult{Binary: bin, Hash: cr.Hash, SourceMap: sm}, nil
}
