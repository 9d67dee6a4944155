// Package discord is the request transport for the backend. It scopes the
// credential to trusted hosts, follows redirects itself so that scoping is
// re-evaluated on every hop, and honors 429 cooldowns through a gate shared
// by every caller of one Client.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"chanarchive/pkg/config"
	"chanarchive/pkg/errors"
	"chanarchive/pkg/logger"
	"chanarchive/pkg/metrics"
	"chanarchive/pkg/ratelimit"
)

const (
	// GenericUserAgent is sent to hosts outside the safe domain set
	GenericUserAgent = "Mozilla/5.0"

	defaultMaxRedirects        = 5
	defaultMaxRateLimitRetries = 5
	defaultRetryAfterPadding   = time.Second
	// used when a 429 carries neither a body nor a Retry-After header
	fallbackRetryAfter = time.Second
	maxErrorBody       = 64 << 10
)

// Request describes one GET. Referer overrides the credential headers for
// trusted hosts only; Range is sent to every host.
type Request struct {
	URL     string
	Referer string
	Range   string
}

// Client performs credential-scoped GETs against the backend
type Client struct {
	httpClient *http.Client
	credential Credential
	domains    DomainSet
	endpoints  Endpoints

	cooldown *ratelimit.Cooldown
	pacer    ratelimit.Limiter

	maxRedirects        int
	maxRateLimitRetries int
	retryAfterPadding   time.Duration

	logger  logger.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Automatic redirects are disabled
// on a copy of it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		cp.CheckRedirect = noFollow
		c.httpClient = &cp
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

func WithDomains(d DomainSet) Option {
	return func(c *Client) { c.domains = d }
}

func WithEndpoints(e Endpoints) Option {
	return func(c *Client) { c.endpoints = e }
}

// WithCooldown shares a cooldown gate between clients using one credential
func WithCooldown(cd *ratelimit.Cooldown) Option {
	return func(c *Client) { c.cooldown = cd }
}

// WithLimiter paces requests in addition to the cooldown gate
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.pacer = l }
}

func WithMaxRedirects(n int) Option {
	return func(c *Client) { c.maxRedirects = n }
}

func WithMaxRateLimitRetries(n int) Option {
	return func(c *Client) { c.maxRateLimitRetries = n }
}

// WithRetryAfterPadding sets the margin added to every 429 retry_after
func WithRetryAfterPadding(d time.Duration) Option {
	return func(c *Client) { c.retryAfterPadding = d }
}

// defaultHTTPClient limits the wait for response headers, never the body
func defaultHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 60 * time.Second
	return &http.Client{Transport: transport, CheckRedirect: noFollow}
}

// NewClient creates a Client for cred
func NewClient(cred Credential, opts ...Option) *Client {
	c := &Client{
		httpClient:          defaultHTTPClient(),
		credential:          cred,
		domains:             DefaultDomains(),
		endpoints:           DefaultEndpoints(),
		cooldown:            ratelimit.NewCooldown(),
		maxRedirects:        defaultMaxRedirects,
		maxRateLimitRetries: defaultMaxRateLimitRetries,
		retryAfterPadding:   defaultRetryAfterPadding,
		logger:              logger.GetLogger(),
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig wires a Client from the application configuration
func NewFromConfig(cfg *config.Config, log logger.Logger, m *metrics.Collector) (*Client, error) {
	hc, err := NewHTTPClient(cfg.Network)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithHTTPClient(hc),
		WithLogger(log),
		WithMetrics(m),
		WithDomains(NewDomainSet(cfg.Discord.SafeDomains...)),
		WithEndpoints(Endpoints{Base: cfg.Discord.APIBase, Version: cfg.Discord.APIVersion}),
		WithMaxRedirects(cfg.RateLimit.MaxRedirects),
		WithMaxRateLimitRetries(cfg.RateLimit.MaxRateLimitRetries),
		WithRetryAfterPadding(cfg.RateLimit.RetryAfterPadding),
	}
	if bucket := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute); bucket != nil {
		opts = append(opts, WithLimiter(bucket))
	}

	return NewClient(NewCredential(cfg.Discord.Token, cfg.Discord.UserAgent), opts...), nil
}

// Endpoints returns the URL builder bound to this client
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Cooldown returns the shared 429 gate
func (c *Client) Cooldown() *ratelimit.Cooldown {
	return c.cooldown
}

// Send performs the GET, following redirects and waiting out 429s. The
// returned response always has a 2xx status and an open body the caller
// must close. Every failure is a typed *errors.Error.
func (c *Client) Send(ctx context.Context, r Request) (*http.Response, error) {
	target, err := url.Parse(r.URL)
	if err != nil || target.Host == "" {
		return nil, errors.New(errors.ErrorTypeNetwork, 0, "invalid request URL %q", r.URL)
	}

	redirects, rateLimited := 0, 0
	for {
		if err := c.waitTurn(ctx); err != nil {
			return nil, errors.Wrap(errors.ErrorTypeNetwork, err, "waiting for rate limit")
		}

		resp, err := c.roundTrip(ctx, target, r)
		if err != nil {
			return nil, err
		}

		switch code := resp.StatusCode; {
		case code >= 200 && code < 300:
			return resp, nil

		case code == http.StatusTooManyRequests:
			wait := retryAfter(resp)
			rateLimited++
			c.metrics.ObserveRateLimited()
			if rateLimited > c.maxRateLimitRetries {
				return nil, errors.New(errors.ErrorTypeRateLimit, code,
					"still rate limited by %s after %d retries", target.Host, c.maxRateLimitRetries)
			}
			c.cooldown.CoolDown(c.now().Add(wait + c.retryAfterPadding))
			logger.LogRateLimit(c.logger, target.Host, wait, rateLimited)

		case code >= 300 && code < 400:
			location := resp.Header.Get("Location")
			discard(resp)
			if location == "" {
				return nil, errors.New(errors.ErrorTypeRedirect, code, "redirect from %s without Location", target.Host)
			}
			next, err := target.Parse(location)
			if err != nil {
				return nil, errors.Wrap(errors.ErrorTypeRedirect, err, "invalid redirect Location")
			}
			redirects++
			if redirects > c.maxRedirects {
				return nil, errors.New(errors.ErrorTypeRedirect, code, "more than %d redirects", c.maxRedirects)
			}
			c.metrics.ObserveRedirect()
			c.logger.DebugWithFields("following redirect", map[string]interface{}{
				"from": target.Host,
				"to":   next.Host,
			})
			target = next

		default:
			discard(resp)
			return nil, errors.New(errors.ErrorTypeHTTPStatus, code, "unexpected status from %s", target.Host)
		}
	}
}

// waitTurn holds a request behind the shared cooldown, then the pacer
func (c *Client) waitTurn(ctx context.Context) error {
	return ratelimit.Chain{c.cooldown, c.pacer}.Wait(ctx)
}

func (c *Client) roundTrip(ctx context.Context, target *url.URL, r Request) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeNetwork, err, "failed to create request")
	}
	req.Header = c.headersFor(target.Host, r)

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(0)
		c.logger.WarnWithFields("request failed", map[string]interface{}{
			"host":  target.Host,
			"error": err.Error(),
		})
		return nil, errors.Wrap(errors.ErrorTypeNetwork, err, "GET "+target.Host)
	}

	c.metrics.ObserveRequest(resp.StatusCode)
	logger.LogRequest(c.logger, http.MethodGet, target.Host, resp.StatusCode, c.now().Sub(start))
	return resp, nil
}

// headersFor builds a fresh header set for one hop
func (c *Client) headersFor(host string, r Request) http.Header {
	var h http.Header
	if c.domains.IsSafe(host) {
		h = c.credential.Headers()
		if r.Referer != "" {
			h.Set("Referer", r.Referer)
		}
	} else {
		c.metrics.ObserveCredentialWithheld()
		h = make(http.Header, 3)
		h.Set("User-Agent", GenericUserAgent)
		h.Set("Referer", WebOrigin+"/")
	}
	if r.Range != "" {
		h.Set("Range", r.Range)
	}
	return h
}

type rateLimitBody struct {
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// retryAfter reads the cooldown from the 429 response itself: the JSON body
// first, then the Retry-After header. The body is consumed and closed.
func retryAfter(resp *http.Response) time.Duration {
	defer resp.Body.Close()

	var body rateLimitBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(data, &body); err == nil && body.RetryAfter > 0 {
		return seconds(body.RetryAfter)
	}
	if v, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && v > 0 {
		return seconds(v)
	}
	return fallbackRetryAfter
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Ceil(s * float64(time.Second)))
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

// GetJSON sends r and decodes the JSON body into target
func (c *Client) GetJSON(ctx context.Context, r Request, target interface{}) error {
	resp, err := c.Send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeNetwork, err, "failed to read response body")
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          r.URL,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}
	return nil
}
