package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	defaultBaseURL      = "http://localhost:5000"
	defaultProgressPath = "/api/user/progress"
	defaultTimeout      = 15 * time.Second
)

// TokenSource supplies the bearer token for outgoing requests. An empty
// token means the request is sent without Authorization.
type TokenSource interface {
	Token() string
}

// Client issues requests to the backend. It never retries.
type Client struct {
	http         *resty.Client
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	tokens       TokenSource
	progressPath string
	metrics      *Metrics
	schemas      schemaSet
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTokenSource attaches the session token to requests.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithProgressPath overrides the progress endpoint path. Backend builds have
// exposed both /api/user/progress and /api/users/progress.
func WithProgressPath(path string) Option {
	return func(c *Client) {
		c.progressPath = path
	}
}

// WithMetrics records request metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a backend client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:      baseURL,
		timeout:      defaultTimeout,
		progressPath: defaultProgressPath,
		schemas:      mustCompileSchemas(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient != nil {
		c.http = resty.NewWithClient(c.httpClient)
	} else {
		c.http = resty.New()
	}
	c.http.
		SetBaseURL(c.baseURL).
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)

	return c
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a token and user.
func (c *Client) Login(ctx context.Context, creds Credentials) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, opLogin, http.MethodPost, "/api/auth/login", nil, creds, &out)
	return out, err
}

// Register creates an account and returns its token and user.
func (c *Client) Register(ctx context.Context, reg Registration) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, opRegister, http.MethodPost, "/api/auth/register", nil, reg, &out)
	return out, err
}

// LearningPaths lists all learning paths.
func (c *Client) LearningPaths(ctx context.Context) ([]LearningPath, error) {
	var out []LearningPath
	err := c.do(ctx, opPaths, http.MethodGet, "/api/learning/paths", nil, nil, &out)
	return out, err
}

// Module fetches one module with its quiz questions.
func (c *Client) Module(ctx context.Context, id ID) (Module, error) {
	var out Module
	err := c.do(ctx, opModule, http.MethodGet, "/api/learning/modules/{id}",
		map[string]string{"id": id.String()}, nil, &out)
	return out, err
}

// SubmitQuiz sends the ordered answers for grading.
func (c *Client) SubmitQuiz(ctx context.Context, sub QuizSubmission) (QuizResult, error) {
	var out QuizResult
	err := c.do(ctx, opQuiz, http.MethodPost, "/api/learning/quiz", nil, sub, &out)
	return out, err
}

// Investments lists investment opportunities.
func (c *Client) Investments(ctx context.Context) ([]Investment, error) {
	var out []Investment
	err := c.do(ctx, opInvestments, http.MethodGet, "/api/investments", nil, nil, &out)
	return out, err
}

// Investment fetches one investment listing.
func (c *Client) Investment(ctx context.Context, id ID) (Investment, error) {
	var out Investment
	err := c.do(ctx, opInvestment, http.MethodGet, "/api/investments/{id}",
		map[string]string{"id": id.String()}, nil, &out)
	return out, err
}

// Progress fetches the current user's aggregated progress.
func (c *Client) Progress(ctx context.Context) (UserProgress, error) {
	var out UserProgress
	err := c.do(ctx, opProgress, http.MethodGet, c.progressPath, nil, nil, &out)
	return out, err
}

// UpdatePassword changes the current user's password.
func (c *Client) UpdatePassword(ctx context.Context, change PasswordChange) error {
	return c.do(ctx, opUpdatePassword, http.MethodPut, "/api/user/profile", nil, change, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, pathParams map[string]string, body, out any) (err error) {
	start := time.Now()
	defer func() { c.metrics.observe(op, err, time.Since(start)) }()

	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
	if pathParams != nil {
		req.SetPathParams(pathParams)
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.SetAuthToken(tok)
		}
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, reqErr := req.Execute(method, path)
	if reqErr != nil {
		slog.Debug("backend request failed", "op", op, "error", reqErr)
		return transportError(op, reqErr)
	}

	status := resp.StatusCode()
	if !resp.IsSuccess() {
		slog.Debug("backend returned error", "op", op, "status", status)
		return statusError(op, status, resp.Body())
	}

	if out == nil {
		return nil
	}
	raw := resp.Body()
	if err := c.schemas.validate(op, raw); err != nil {
		return &Error{Kind: KindMalformed, Op: op, Status: status, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindMalformed, Op: op, Status: status, Err: err}
	}
	return nil
}
