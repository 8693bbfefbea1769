// Package remote fetches service documents from a CAM directory server.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/camgen/internal/schema"
)

// DefaultServer is used when no server is configured.
const DefaultServer = "https://cam-api.com/api"

const servicePath = "/v1/service/getServiceByUuidAndVersion"

// StatusError is returned when the server answers with a non-2xx HTTP status
// or an envelope whose status is not 200.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote: status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to one directory server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option { return func(c *Client) { c.token = strings.TrimSpace(token) } }

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }

// WithRetry sets the attempt count and the first backoff delay.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) { c.maxRetries, c.backoff = attempts, backoff }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// New returns a client for baseURL, or DefaultServer when baseURL is empty.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultServer
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid server URL %q", baseURL)
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		maxRetries: 3,
		backoff:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c.logger = c.logger.With("component", "remote")
	return c, nil
}

// BaseURL returns the server the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

type envelope struct {
	Status  int       `yaml:"status"`
	Message string    `yaml:"message"`
	Service yaml.Node `yaml:"service"`
}

// GetService fetches the service uuid at version ("latest" or x.y.z).
func (c *Client) GetService(ctx context.Context, uuid, version string) (*schema.ServiceSchema, error) {
	if strings.TrimSpace(uuid) == "" {
		return nil, errors.New("remote: service uuid is required")
	}
	if version == "" {
		version = LatestVersion
	}
	q := url.Values{}
	q.Set("service_uuid", uuid)
	q.Set("version", version)
	endpoint := c.baseURL + servicePath + "?" + q.Encode()

	c.logger.Debug("fetching service", slog.String("uuid", uuid), slog.String("version", version))
	body, err := schema.Fetch(ctx, c.httpClient, c.maxRetries, c.backoff, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		return req, nil
	})
	if err != nil {
		var herr *schema.HTTPError
		if errors.As(err, &herr) {
			return nil, &StatusError{StatusCode: herr.StatusCode, Message: envelopeMessage([]byte(herr.Body))}
		}
		return nil, fmt.Errorf("remote: fetch service %s@%s: %w", uuid, version, err)
	}

	var env envelope
	if err := yaml.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("remote: decode response: %w", err)
	}
	if env.Status != http.StatusOK {
		msg := env.Message
		if msg == "" {
			msg = "failed to get service info"
		}
		return nil, &StatusError{StatusCode: env.Status, Message: msg}
	}
	if env.Service.Kind == 0 {
		return nil, fmt.Errorf("remote: response carries no service")
	}
	raw, err := yaml.Marshal(&env.Service)
	if err != nil {
		return nil, fmt.Errorf("remote: re-encode service: %w", err)
	}
	svc, err := schema.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	if svc.UUID == "" {
		svc.UUID = uuid
	}
	if svc.Version == "" {
		svc.Version = version
	}
	c.logger.Info("fetched service",
		slog.String("uuid", svc.UUID),
		slog.String("version", svc.Version),
		slog.Int("operations", len(svc.Operations)))
	return svc, nil
}

// envelopeMessage pulls "message" out of an error body when it is one.
func envelopeMessage(body []byte) string {
	var env struct {
		Message string `yaml:"message"`
	}
	if err := yaml.Unmarshal(body, &env); err == nil && env.Message != "" {
		return env.Message
	}
	return string(body)
}
