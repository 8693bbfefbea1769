package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	openapi2 "github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
	ConversionError ErrorCode = "ConversionError"
)

// SourceError is a structured error with optional location and JSON Pointer.
type SourceError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SourceError) Error() string { return e.Message }
func (e *SourceError) Unwrap() error { return e.Cause }

// Format identifies the kind of document found at an input.
type Format int

const (
	FormatUnknown Format = iota
	FormatService
	FormatOpenAPI3
	FormatSwagger2
)

func (f Format) String() string {
	switch f {
	case FormatService:
		return "service"
	case FormatOpenAPI3:
		return "openapi3"
	case FormatSwagger2:
		return "swagger2"
	}
	return "unknown"
}

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// AllowFileRefs controls whether file:// refs are allowed for external references.
	// Local file roots always allow them.
	AllowFileRefs bool
	// Import filters applied when the input is an OpenAPI document.
	Import []ImportOption
	Logger *slog.Logger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithLogger(l *slog.Logger) Option { return func(s *Settings) { s.Logger = l } }

// WithImportOptions passes filters through to FromOpenAPI.
func WithImportOptions(opts ...ImportOption) Option {
	return func(s *Settings) { s.Import = append(s.Import, opts...) }
}

// Load reads a service document or an OpenAPI/Swagger document and returns
// the service it describes. Swagger v2.0 is converted to v3 via kin-openapi
// openapi2conv before import.
//
// input may be a filesystem path or an http/https URL. file:// URLs are blocked.
func Load(ctx context.Context, input string, opts ...Option) (*ServiceSchema, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SourceError{Code: InputError, Message: "schema: input is empty"}
	}

	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.Logger == nil {
		settings.Logger = DefaultSettings().Logger
	}

	u, uerr := url.Parse(input)
	isURL := uerr == nil && u.Scheme != "" && u.Host != ""

	var (
		raw        []byte
		location   string
		rootIsFile bool
	)
	if isURL {
		scheme := strings.ToLower(u.Scheme)
		if scheme == "file" {
			return nil, &SourceError{Code: InputError, Message: "schema: file:// URLs are blocked", Location: input}
		}
		if scheme != "http" && scheme != "https" {
			return nil, &SourceError{Code: InputError, Message: fmt.Sprintf("schema: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}
		body, err := fetchWithRetry(ctx, input, settings)
		if err != nil {
			return nil, &SourceError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
		}
		raw, location = body, input
	} else {
		abs, err := filepath.Abs(input)
		if err != nil {
			return nil, &SourceError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
		}
		body, err := os.ReadFile(abs)
		if err != nil {
			return nil, &SourceError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
		}
		raw, location, rootIsFile = body, abs, true
	}

	format, err := DetectFormat(raw)
	if err != nil {
		return nil, &SourceError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}
	settings.Logger.Debug("loaded input", "location", location, "format", format.String(), "bytes", len(raw))

	switch format {
	case FormatService:
		svc, err := Decode(raw)
		if err != nil {
			return nil, &SourceError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
		}
		return Filter(svc, settings.Import...), nil
	case FormatOpenAPI3:
		loader := newLoader(settings, rootIsFile)
		var doc *openapi3.T
		if rootIsFile {
			doc, err = loader.LoadFromFile(location)
		} else {
			doc, err = loader.LoadFromURI(u)
		}
		if err != nil {
			return nil, mapValidateOrParseErr(err, location)
		}
		if err := validateDoc(ctx, doc, settings.Logger); err != nil {
			return nil, mapValidateOrParseErr(err, location)
		}
		return FromOpenAPI(doc, settings.Import...), nil
	case FormatSwagger2:
		if fixed, changed, _ := preprocessV2ForCompatibility(raw); changed {
			settings.Logger.Debug("merged multiple v2 body parameters", "location", location)
			raw = fixed
		}
		doc, err := convertV2ToV3(raw)
		if err != nil {
			return nil, &SourceError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: location, Cause: err}
		}
		loader := newLoader(settings, rootIsFile)
		if err := loader.ResolveRefsIn(doc, nil); err != nil {
			settings.Logger.Warn("failed to resolve refs after conversion", "location", location, "error", err)
		}
		if err := validateDoc(ctx, doc, settings.Logger); err != nil {
			return nil, mapValidateOrParseErr(err, location)
		}
		return FromOpenAPI(doc, settings.Import...), nil
	default:
		return nil, &SourceError{Code: ParseError, Message: "schema: unrecognized document (expected a service document, 'openapi: 3.x' or 'swagger: 2.0')", Location: location}
	}
}

func validateDoc(ctx context.Context, doc *openapi3.T, logger *slog.Logger) error {
	err := doc.Validate(ctx)
	if err == nil {
		return nil
	}
	if canProceedDespiteValidation(err) {
		logger.Warn("proceeding despite validation error", "error", err)
		return nil
	}
	return err
}

func newLoader(settings Settings, rootIsFile bool) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	client := &http.Client{Timeout: settings.HTTPTimeout}
	allowFile := settings.AllowFileRefs || rootIsFile
	loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !allowFile {
				return nil, fmt.Errorf("blocked file ref: %s", uri.String())
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(path)
		case "http", "https":
			req, err := http.NewRequest(http.MethodGet, uri.String(), nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
			}
			return io.ReadAll(resp.Body)
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

// DetectFormat sniffs the top-level keys of a JSON or YAML document.
func DetectFormat(data []byte) (Format, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return FormatUnknown, fmt.Errorf("parse input: %w", err)
	}
	if v, ok := root["openapi"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return FormatOpenAPI3, nil
		}
		return FormatUnknown, fmt.Errorf("schema: unsupported openapi version %v", v)
	}
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return FormatSwagger2, nil
		}
		return FormatUnknown, fmt.Errorf("schema: unsupported swagger version %v", v)
	}
	for _, key := range []string{"apis", "service", "method", "path", "request_params_by_location", "response_params_by_status_code", "request_params", "response_params"} {
		if _, ok := root[key]; ok {
			return FormatService, nil
		}
	}
	return FormatUnknown, nil
}

func convertV2ToV3(data []byte) (*openapi3.T, error) {
	// openapi2.T only carries JSON tags, so route YAML input through JSON.
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	js, err := json.Marshal(stringKeys(generic))
	if err != nil {
		return nil, err
	}
	var v2 openapi2.T
	if err := json.Unmarshal(js, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
	client := &http.Client{Timeout: settings.HTTPTimeout}
	return Fetch(ctx, client, settings.MaxRetries, settings.BackoffBase, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	})
}

// HTTPError reports a non-2xx response. Body is truncated to 1 KiB.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Fetch performs a request built by newReq, retrying transient failures
// (network errors, 5xx and 429) with exponential backoff. The body of the
// first 2xx response is returned; other statuses yield *HTTPError.
func Fetch(ctx context.Context, client *http.Client, maxRetries int, backoff time.Duration, newReq func(context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := maxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		req, err := newReq(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, rerr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case resp.StatusCode < 300 && rerr == nil:
				return body, nil
			case rerr != nil:
				lastErr = rerr
			default:
				if len(body) > 1024 {
					body = body[:1024]
				}
				herr := &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
				if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return nil, herr
				}
				lastErr = herr
			}
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}

func mapValidateOrParseErr(err error, location string) error {
	pointer := extractJSONPointer(err)
	code := ValidationError
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "parse") || strings.Contains(lower, "invalid character") {
		code = ParseError
	}
	return &SourceError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	if me, ok := err.(openapi3.MultiError); ok {
		if len(me) > 0 {
			return extractJSONPointer(me[0])
		}
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}

// canProceedDespiteValidation returns true for validation errors where a
// best-effort import can still proceed, such as unresolved $ref entries.
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unresolved ref")
}
