package voipms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sipwatch/sipwatch/pkg/metrics"
	"github.com/sipwatch/sipwatch/pkg/version"
)

const (
	DefaultURL     = "https://voip.ms/api/v1/rest.php"
	DefaultTimeout = 30 * time.Second

	MethodGetRegistrationStatus = "getRegistrationStatus"
	MethodSendSMS               = "sendSMS"

	statusSuccess = "success"
)

type Client struct {
	baseURL   string
	username  string
	password  string
	timeout   time.Duration
	limiter   *rate.Limiter
	userAgent string
	http      *resty.Client
	log       *zap.SugaredLogger
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:   DefaultURL,
		timeout:   DefaultTimeout,
		userAgent: version.UserAgent(),
		http:      resty.New(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.username == "" || c.password == "" {
		return nil, errors.New("api username and password are required")
	}
	c.http.SetHeader("Accept", "application/json")
	c.http.SetHeader("User-Agent", c.userAgent)
	if c.log != nil {
		c.http.SetLogger(c.log)
	}
	return c, nil
}

func WithURL(raw string) Option {
	return func(c *Client) error {
		if raw == "" {
			return errors.New("api url is required")
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid api url: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("invalid api url %q: scheme must be http or https", raw)
		}
		c.baseURL = raw
		return nil
	}
}

func WithCredentials(username, password string) Option {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithTimeout bounds each request. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("timeout must not be negative, got %s", d)
		}
		c.timeout = d
		return nil
	}
}

// WithRateLimit paces requests to rps per second. Zero means unlimited.
func WithRateLimit(rps float64) Option {
	return func(c *Client) error {
		if rps < 0 {
			return fmt.Errorf("requests per second must not be negative, got %v", rps)
		}
		if rps == 0 {
			c.limiter = nil
			return nil
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		c.log = log
		return nil
	}
}

// GetRegistrationStatus fetches the registration state of one SIP account.
func (c *Client) GetRegistrationStatus(ctx context.Context, account string) (RegistrationStatus, error) {
	if strings.TrimSpace(account) == "" {
		return RegistrationStatus{}, errors.New("account is required")
	}
	raw, err := c.call(ctx, MethodGetRegistrationStatus, map[string]string{"account": account})
	if err != nil {
		return RegistrationStatus{}, fmt.Errorf("registration status for account %s: %w", account, err)
	}
	return RegistrationStatus{Account: account, Raw: raw}, nil
}

// call performs one GET and returns the decoded JSON object. Parameters are
// built per call so concurrent callers never share a query map.
func (c *Client) call(ctx context.Context, method string, extra map[string]string) (map[string]any, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := map[string]string{
		"api_username": c.username,
		"api_password": c.password,
		"method":       method,
	}
	for k, v := range extra {
		params[k] = v
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(c.baseURL)
	if err != nil {
		metrics.APIRequests.WithLabelValues(method, "transport_error").Inc()
		return nil, err
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		metrics.APIRequests.WithLabelValues(method, "http_error").Inc()
		return nil, decodeError(resp)
	}

	var out map[string]any
	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		metrics.APIRequests.WithLabelValues(method, "decode_error").Inc()
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if out == nil {
		metrics.APIRequests.WithLabelValues(method, "decode_error").Inc()
		return nil, fmt.Errorf("failed to decode %s response: expected a JSON object", method)
	}

	if status, ok := out["status"]; ok {
		if s := fmt.Sprint(status); s != statusSuccess {
			metrics.APIRequests.WithLabelValues(method, "api_error").Inc()
			return nil, &APIError{Method: method, Status: s}
		}
	}

	metrics.APIRequests.WithLabelValues(method, "success").Inc()
	return out, nil
}

func decodeError(resp *resty.Response) error {
	msg := strings.TrimSpace(string(resp.Body()))
	if msg == "" {
		msg = resp.Status()
	}
	return &HTTPError{StatusCode: resp.StatusCode(), Message: msg}
}
