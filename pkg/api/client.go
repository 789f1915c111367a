package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rubiojr/aurorax/pkg/config"
	"github.com/rubiojr/aurorax/pkg/log"
	"github.com/rubiojr/aurorax/pkg/version"
	"golang.org/x/time/rate"
)

const (
	APIKeyHeader    = "x-aurorax-api-key"
	RequestIDHeader = "x-request-id"
)

// Request describes a single API call.
type Request struct {
	Method  string
	URL     string
	Params  url.Values
	Body    any
	Headers map[string]string

	// NullResponse marks calls that are answered with a bare status code
	// (submissions, deletions). 200/201/202/204 are accepted without a body.
	NullResponse bool
}

func (r *Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.URL)
}

// Response is the structured result of a successful call.
type Response struct {
	StatusCode int
	Header     http.Header
	Data       json.RawMessage
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("decoding response: empty body")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Transport executes API requests. *Client is the production implementation.
type Transport interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

type Options struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	Headers           map[string]string
	RequestsPerSecond float64
	Burst             int

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client talks to one AuroraX deployment. It holds no per-job state and is
// safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	headers map[string]string
	http    *http.Client
	limiter *rate.Limiter
	log     *log.Logger
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = config.DefaultAPITimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultAPIBaseURL
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[strings.ToLower(k)] = v
	}

	c := &Client{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		headers: headers,
		http:    httpClient,
		log:     log.ForService("api"),
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

// NewClientFromConfig builds a client from the loaded configuration file.
func NewClientFromConfig(cfg *config.Config) *Client {
	return NewClient(Options{
		BaseURL:           cfg.APIBaseURL,
		APIKey:            cfg.APIKey,
		Timeout:           cfg.APITimeout.Duration,
		Headers:           cfg.Headers,
		RequestsPerSecond: cfg.MaxRequestsPerSecond,
		Burst:             cfg.Burst,
	})
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL joins a path suffix such as "api/v1/conjunctions/search" to the base URL.
func (c *Client) URL(suffix string) string {
	return c.baseURL + "/" + strings.TrimLeft(suffix, "/")
}

// HasAPIKey reports whether requests carry an API key.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// Execute performs req and classifies the outcome. Connection failures and
// timeouts are returned as-is; HTTP failures are returned as *Error.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	requestID := httpReq.Header.Get(RequestIDHeader)
	c.log.Debugf("%s (request id %s)", req, requestID)

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response body: %w", req, err)
	}
	c.log.Debugf("%s -> %d (%d bytes, %s)", req, resp.StatusCode, len(body), time.Since(started).Round(time.Millisecond))

	if err := checkStatus(resp, body); err != nil {
		return nil, err
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header}
	if req.NullResponse {
		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		default:
			out.Data = body
		}
		return out, nil
	}

	if !isJSON(resp.Header) {
		return nil, &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if len(body) == 0 {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "no response received"}
	}
	out.Data = body
	return out, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target := req.URL
	if len(req.Params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request %s %s: %w", method, req.URL, err)
	}

	httpReq.Header.Set("user-agent", version.UserAgent())
	httpReq.Header.Set("accept", "application/json")
	if body != nil {
		httpReq.Header.Set("content-type", "application/json")
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if c.apiKey != "" {
		httpReq.Header.Set(APIKeyHeader, c.apiKey)
	}
	if httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return httpReq, nil
}

type errorBody struct {
	ErrorCode    string     `json:"error_code"`
	ErrorMessage string     `json:"error_message"`
	Error        *errorBody `json:"error"`
}

func checkStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &Error{StatusCode: resp.StatusCode, Body: body}
	if isJSON(resp.Header) && len(body) > 0 {
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			// data endpoints nest the error object under "error"
			if eb.ErrorCode == "" && eb.Error != nil {
				eb = *eb.Error
			}
			apiErr.Code = eb.ErrorCode
			apiErr.Message = eb.ErrorMessage
		}
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if apiErr.Message == "" {
			apiErr.Message = "unauthorized"
		}
	case http.StatusNotFound:
		if apiErr.Message == "" {
			apiErr.Message = "not found"
		}
	case http.StatusBadGateway:
		apiErr.Message = "API inaccessible, bad gateway"
	case http.StatusInternalServerError:
		if apiErr.Message == "" && len(body) > 0 {
			apiErr.Message = strings.TrimSpace(string(body))
		}
	}
	return apiErr
}

func isJSON(h http.Header) bool {
	return strings.HasPrefix(strings.ToLower(h.Get("Content-Type")), "application/json")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
