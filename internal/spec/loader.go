package spec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// AllowFileRefs controls whether file:// refs are allowed for external references.
	// Automatically allowed when the root input is a local file.
	AllowFileRefs bool
	// Headers are sent with every HTTP request made while loading.
	Headers map[string]string
	// Upgrade converts Swagger 2.0 input to OpenAPI 3. When false, 2.0 input is rejected.
	Upgrade bool
	// Strict fails on validation errors instead of logging them.
	Strict bool
	Logger *slog.Logger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
		Upgrade:     true,
		Logger:      slog.New(slog.DiscardHandler),
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option  { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option            { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option    { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithHeaders(h map[string]string) Option { return func(s *Settings) { s.Headers = h } }
func WithUpgrade(upgrade bool) Option        { return func(s *Settings) { s.Upgrade = upgrade } }
func WithStrict(strict bool) Option          { return func(s *Settings) { s.Strict = strict } }

func WithLogger(l *slog.Logger) Option {
	return func(s *Settings) {
		if l != nil {
			s.Logger = l
		}
	}
}

// Load reads an OpenAPI v3 or Swagger v2.0 document from a filesystem path or
// an http/https URL and returns it as a Document. Swagger input is converted
// with kin-openapi openapi2conv. External references are bundled into the
// document so every pointer in the result is local.
//
// file:// URLs are blocked.
func Load(ctx context.Context, input string, opts ...Option) (*Document, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}

	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	raw, location, rootIsFile, err := readInput(ctx, input, settings)
	if err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse spec: %v", err), Location: location.String(), Cause: err}
	}
	if len(root.Content) == 0 {
		return nil, &SpecError{Code: ParseError, Message: "spec: document is empty", Location: location.String()}
	}
	version, err := detectSpecVersion(&root)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location.String(), Cause: err}
	}

	switch version {
	case 3:
		return loadV3(ctx, &root, raw, location, rootIsFile, settings)
	case 2:
		if !settings.Upgrade {
			return nil, &SpecError{Code: ConversionError, Message: "spec: swagger 2.0 input requires upgrade", Location: location.String()}
		}
		return loadV2(ctx, &root, location, settings)
	default:
		return nil, &SpecError{Code: ParseError, Message: "spec: unknown or unsupported OpenAPI/Swagger version", Location: location.String()}
	}
}

func readInput(ctx context.Context, input string, settings Settings) ([]byte, *url.URL, bool, error) {
	u, uerr := url.Parse(input)
	isURL := uerr == nil && u.Scheme != "" && (u.Host != "" || strings.EqualFold(u.Scheme, "file"))
	if isURL {
		scheme := strings.ToLower(u.Scheme)
		if scheme == "file" {
			return nil, nil, false, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
		}
		if scheme != "http" && scheme != "https" {
			return nil, nil, false, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}
		raw, err := fetchWithRetry(ctx, input, settings)
		if err != nil {
			return nil, nil, false, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
		}
		return raw, u, false, nil
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, nil, false, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, nil, false, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	return raw, &url.URL{Path: filepath.ToSlash(abs)}, true, nil
}

func loadV3(ctx context.Context, root *yaml.Node, raw []byte, location *url.URL, rootIsFile bool, settings Settings) (*Document, error) {
	loader := newLoader(settings, rootIsFile)
	kdoc, err := loader.LoadFromDataWithPath(raw, location)
	if err != nil {
		return nil, mapValidateOrParseErr(err, location.String())
	}
	if err := validate(ctx, kdoc, location.String(), settings); err != nil {
		return nil, err
	}

	if !hasExternalRefs(root) {
		doc, err := fromNode(root)
		if err != nil {
			return nil, withLocation(err, location.String())
		}
		return doc, nil
	}

	settings.Logger.Debug("bundling external references", "location", location.String())
	kdoc.InternalizeRefs(ctx, nil)
	bundled, err := kdoc.MarshalJSON()
	if err != nil {
		return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("bundle document: %v", err), Location: location.String(), Cause: err}
	}
	doc, err := Parse(bundled)
	if err != nil {
		return nil, withLocation(err, location.String())
	}
	reorderPaths(doc, root)
	return doc, nil
}

func loadV2(ctx context.Context, root *yaml.Node, location *url.URL, settings Settings) (*Document, error) {
	tree := v2Tree(root.Content[0])
	if upgradeCompat(tree) {
		settings.Logger.Debug("rewrote swagger 2.0 body parameters before conversion", "location", location.String())
	}
	v3doc, err := convertV2ToV3(tree)
	if err != nil {
		return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: location.String(), Cause: err}
	}
	if err := validate(ctx, v3doc, location.String(), settings); err != nil {
		return nil, err
	}
	data, err := v3doc.MarshalJSON()
	if err != nil {
		return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("encode converted document: %v", err), Location: location.String(), Cause: err}
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, withLocation(err, location.String())
	}
	reorderPaths(doc, root)
	return doc, nil
}

func validate(ctx context.Context, doc *openapi3.T, location string, settings Settings) error {
	err := doc.Validate(ctx, openapi3.DisableExamplesValidation())
	if err == nil {
		return nil
	}
	if settings.Strict && !canProceedDespiteValidation(err) {
		return mapValidateOrParseErr(err, location)
	}
	settings.Logger.Warn("document failed validation, continuing", "location", location, "pointer", extractJSONPointer(err), "error", err)
	return nil
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
			return os.ReadFile(filepath.FromSlash(path))
		case "http", "https":
			req, err := http.NewRequest(http.MethodGet, uri.String(), nil)
			if err != nil {
				return nil, err
			}
			setHeaders(req, settings.Headers)
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

// detectSpecVersion returns 3 for OpenAPI v3, 2 for Swagger v2, else error.
func detectSpecVersion(root *yaml.Node) (int, error) {
	if s := strings.TrimSpace(text(get(root.Content[0], "openapi"))); strings.HasPrefix(s, "3.") {
		return 3, nil
	}
	if s := strings.TrimSpace(text(get(root.Content[0], "swagger"))); strings.HasPrefix(s, "2.") {
		return 2, nil
	}
	return 0, fmt.Errorf("spec: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

// hasExternalRefs reports whether any $ref points outside the document.
func hasExternalRefs(n *yaml.Node) bool {
	if n == nil {
		return false
	}
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == "$ref" && n.Content[i+1].Kind == yaml.ScalarNode && !strings.HasPrefix(n.Content[i+1].Value, "#") {
				return true
			}
		}
	}
	for _, c := range n.Content {
		if hasExternalRefs(c) {
			return true
		}
	}
	return false
}

// reorderPaths restores source path order after a round trip through
// kin-openapi, whose maps marshal with sorted keys.
func reorderPaths(doc *Document, root *yaml.Node) {
	rank := make(map[string]int)
	pairs(get(root.Content[0], "paths"), func(path string, _ *yaml.Node) { rank[path] = len(rank) })
	ordered := make([]*PathItem, 0, len(doc.Paths))
	var rest []*PathItem
	for _, p := range doc.Paths {
		if _, ok := rank[p.Path]; ok {
			ordered = append(ordered, p)
		} else {
			rest = append(rest, p)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return rank[ordered[i].Path] < rank[ordered[j].Path] })
	doc.Paths = append(ordered, rest...)
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
	client := &http.Client{Timeout: settings.HTTPTimeout}
	var lastErr error
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		body, retry, err := fetchOnce(ctx, client, rawURL, settings.Headers)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		settings.Logger.Debug("fetch failed, retrying", "url", rawURL, "attempt", i+1, "error", err)
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

// fetchOnce performs a single GET. retry reports whether the failure is transient.
func fetchOnce(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	setHeaders(req, headers)
	resp, err := client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		return body, false, err
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("transient http error %d", resp.StatusCode)
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return nil, false, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

func setHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

func withLocation(err error, location string) error {
	var se *SpecError
	if errors.As(err, &se) && se.Location == "" {
		se.Location = location
	}
	return err
}

func mapValidateOrParseErr(err error, location string) error {
	pointer := extractJSONPointer(err)
	code := ValidationError
	// Heuristics: some loader errors are parse errors.
	if msg := strings.ToLower(err.Error()); strings.Contains(msg, "parse") || strings.Contains(msg, "invalid character") || strings.Contains(msg, "unmarshal") {
		code = ParseError
	}
	return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	var me openapi3.MultiError
	if errors.As(err, &me) && len(me) > 0 {
		return extractJSONPointer(me[0])
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
// best-effort build can still proceed (e.g., unresolved $ref entries).
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unresolved ref") || strings.Contains(s, "found unresolved ref")
}
