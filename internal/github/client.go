package github

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dl-alexandre/ghmirror/internal/logging"
	mirror "github.com/dl-alexandre/ghmirror/internal/sync"
	"github.com/dl-alexandre/ghmirror/internal/utils"
	"github.com/dl-alexandre/ghmirror/pkg/version"
	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"golang.org/x/oauth2"
)

var repositoryPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// UserAgent identifies ghmirror to the GitHub API
var UserAgent = fmt.Sprintf("ghmirror/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH)

// Client wraps the GitHub REST API with retry logic and request shaping
type Client struct {
	http       *req.Client
	tokens     oauth2.TokenSource
	maxRetries int
	retryDelay time.Duration
	logger     logging.Logger
}

// ClientOptions configures a Client
type ClientOptions struct {
	BaseURL    string
	Token      string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	Logger     logging.Logger
}

// APIError is the error body GitHub returns with non-2xx responses
type APIError struct {
	StatusCode       int    `json:"-"`
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a new GitHub API client
func NewClient(opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = utils.GitHubAPIBase
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Duration(utils.DefaultRetryDelayMs) * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = utils.DefaultRequestTimeout
	}

	c := &Client{
		tokens:     oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     logger,
	}

	c.http = req.C().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetUserAgent(UserAgent).
		SetTimeout(opts.Timeout).
		SetCommonHeader("Accept", utils.GitHubMediaType).
		SetCommonHeader("X-GitHub-Api-Version", utils.GitHubAPIVersion).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal).
		SetCommonRetryCount(opts.MaxRetries).
		SetCommonRetryInterval(func(resp *req.Response, attempt int) time.Duration {
			return calculateBackoff(c.retryDelay, attempt-1, resp)
		}).
		SetCommonRetryCondition(isRetryable).
		AddCommonRetryHook(func(resp *req.Response, err error) {
			fields := []logging.Field{logging.F("maxRetries", c.maxRetries)}
			if resp != nil && resp.Response != nil {
				fields = append(fields, logging.F("status", resp.GetStatusCode()))
			}
			if err != nil {
				fields = append(fields, logging.F("error", err))
			}
			c.logger.Warn("Retrying GitHub request", fields...)
		}).
		OnBeforeRequest(func(_ *req.Client, r *req.Request) error {
			token, err := c.accessToken()
			if err != nil {
				return err
			}
			if token != "" {
				r.SetBearerAuthToken(token)
			}
			return nil
		})

	return c
}

// ValidateRepository checks the owner/name form
func ValidateRepository(repo string) error {
	if !repositoryPattern.MatchString(repo) || strings.Contains(repo, "..") {
		return fmt.Errorf("invalid repository %q (expected owner/name)", repo)
	}
	return nil
}

// escapeRef escapes each segment of a ref while keeping slashes in branch names
func escapeRef(ref string) string {
	parts := strings.Split(ref, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (c *Client) accessToken() (string, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (c *Client) newRequest(ctx context.Context) *req.Request {
	return c.http.R().SetContext(ctx)
}

// isRetryable checks if a response or transport error is worth retrying
func isRetryable(resp *req.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil || resp.Response == nil {
		return false
	}
	switch resp.GetStatusCode() {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	case http.StatusForbidden:
		return resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.Header.Get("Retry-After") != ""
	}
	return false
}

// calculateBackoff calculates the retry delay with exponential backoff
func calculateBackoff(baseDelay time.Duration, attempt int, resp *req.Response) time.Duration {
	maxDelay := time.Duration(utils.MaxRetryDelayMs) * time.Millisecond
	if attempt < 0 {
		attempt = 0
	}

	// Honor Retry-After when GitHub sends one
	if resp != nil && resp.Response != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				delay := time.Duration(seconds) * time.Second
				if delay > maxDelay {
					return maxDelay
				}
				return delay
			}
		}
	}

	// Exponential backoff: base * 2^attempt
	delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}

	// Add jitter (±25% of delay)
	jitterRange := delay / 4
	if jitterRange > 0 {
		jitter := time.Duration(rand.Int63n(int64(jitterRange*2))) - jitterRange
		delay += jitter
	}

	if delay < 0 {
		delay = baseDelay
	}
	return delay
}

// classifyResponse converts a failed request into a FetchError
func classifyResponse(resp *req.Response, err error, what string) error {
	if err != nil {
		return &mirror.FetchError{Reason: mirror.FetchNetwork, Err: fmt.Errorf("%s: %w", what, err)}
	}
	if !resp.IsErrorState() {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.GetStatusCode()}
	if body := resp.Bytes(); len(body) > 0 {
		_ = json.Unmarshal(body, apiErr)
	}

	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return &mirror.FetchError{Reason: mirror.FetchAuth, Err: fmt.Errorf("%s: authentication failed, check the token: %w", what, apiErr)}
	case http.StatusForbidden:
		return &mirror.FetchError{Reason: mirror.FetchForbidden, Err: fmt.Errorf("%s: %w", what, apiErr)}
	case http.StatusNotFound:
		return &mirror.FetchError{Reason: mirror.FetchNotFound, Err: fmt.Errorf("%s: not found (private repositories need a token): %w", what, apiErr)}
	}
	if apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests {
		return &mirror.FetchError{Reason: mirror.FetchNetwork, Err: fmt.Errorf("%s: %w", what, apiErr)}
	}
	return &mirror.FetchError{Reason: mirror.FetchInvalid, Err: fmt.Errorf("%s: %w", what, apiErr)}
}
