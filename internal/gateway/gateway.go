// Package gateway is the single HTTP entry point to the membership backend.
// It attaches the stored credential to every request, lets response
// transforms harvest rotated tokens, and classifies failures. A 401 clears
// the session and navigates to the login route before the error is returned.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"member-portal/internal/common/errors"
	commonhttp "member-portal/internal/common/http"
	"member-portal/internal/common/logger"
	"member-portal/internal/common/metrics"
	"member-portal/internal/common/observability"
	"member-portal/internal/session"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultLoginRoute = "/login"

	// UploadField is the multipart field every upload is sent under.
	UploadField = "file"

	RequestIDHeader = "X-Request-ID"
)

// RequestOptions is the optional bag of query parameters and headers.
type RequestOptions struct {
	Query   url.Values
	Headers http.Header
}

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v interface{}) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return errors.NewDecodeError(io.ErrUnexpectedEOF)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.NewDecodeError(err)
	}
	return nil
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	LoginRoute string

	Credentials *session.Credentials
	Navigator   Navigator
	Logger      logger.Logger

	// Optional overrides.
	Transport      http.RoundTripper
	Transforms     []ResponseTransform
	Classifier     Classifier
	OnUnauthorized UnauthorizedEffect
	Observability  *observability.Observability
}

type Gateway struct {
	baseURL        string
	client         *commonhttp.Client
	creds          *session.Credentials
	transforms     []ResponseTransform
	classify       Classifier
	onUnauthorized UnauthorizedEffect
	logger         logger.Logger
	obs            *observability.Observability
}

func New(opts Options) (*Gateway, error) {
	if opts.Credentials == nil {
		return nil, fmt.Errorf("credentials are required")
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.LoginRoute == "" {
		opts.LoginRoute = DefaultLoginRoute
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	log := opts.Logger.Named("gateway")

	g := &Gateway{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		creds:          opts.Credentials,
		transforms:     opts.Transforms,
		classify:       opts.Classifier,
		onUnauthorized: opts.OnUnauthorized,
		logger:         log,
		obs:            opts.Observability,
	}
	if opts.Transport != nil {
		g.client = commonhttp.NewClientWithTransport(opts.Timeout, opts.UserAgent, opts.Transport)
	} else {
		g.client = commonhttp.NewClient(opts.Timeout, opts.UserAgent)
	}
	if g.transforms == nil {
		g.transforms = []ResponseTransform{HarvestToken(opts.Credentials, log)}
	}
	if g.classify == nil {
		g.classify = Classify
	}
	if g.onUnauthorized == nil {
		g.onUnauthorized = ClearAndNavigate(opts.Credentials, opts.Navigator, opts.LoginRoute)
	}
	return g, nil
}

func (g *Gateway) Credentials() *session.Credentials { return g.creds }

func (g *Gateway) Get(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return g.send(ctx, http.MethodGet, path, nil, opts)
}

func (g *Gateway) Post(ctx context.Context, path string, body interface{}, opts *RequestOptions) (*Response, error) {
	return g.send(ctx, http.MethodPost, path, body, opts)
}

func (g *Gateway) Put(ctx context.Context, path string, body interface{}, opts *RequestOptions) (*Response, error) {
	return g.send(ctx, http.MethodPut, path, body, opts)
}

func (g *Gateway) Patch(ctx context.Context, path string, body interface{}, opts *RequestOptions) (*Response, error) {
	return g.send(ctx, http.MethodPatch, path, body, opts)
}

func (g *Gateway) Delete(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return g.send(ctx, http.MethodDelete, path, nil, opts)
}

// UploadFile sends r as a single multipart part named "file".
func (g *Gateway) UploadFile(ctx context.Context, path, filename string, r io.Reader) (*Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(UploadField, filename)
	if err != nil {
		return nil, errors.NewRequestInvalidError(err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, errors.NewRequestInvalidError(err)
	}
	if err := mw.Close(); err != nil {
		return nil, errors.NewRequestInvalidError(err)
	}
	return g.do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), nil)
}

func (g *Gateway) send(ctx context.Context, method, path string, body interface{}, opts *RequestOptions) (*Response, error) {
	if body == nil {
		return g.do(ctx, method, path, nil, "", opts)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errors.NewRequestInvalidError(err)
	}
	return g.do(ctx, method, path, bytes.NewReader(raw), "application/json", opts)
}

func (g *Gateway) resolve(path string, query url.Values) string {
	target := g.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) == 0 {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + query.Encode()
}

func (g *Gateway) do(ctx context.Context, method, path string, body io.Reader, contentType string, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	requestID := uuid.NewString()
	ctx, span := g.obs.StartSpan(ctx, "gateway."+strings.ToLower(method),
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.String("request.id", requestID),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, g.resolve(path, opts.Query), body)
	if err != nil {
		return nil, errors.NewRequestInvalidError(err)
	}
	for k, vs := range opts.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	// The stored credential goes out verbatim. No credential is not an error.
	tok, err := g.creds.Token(ctx)
	if err != nil {
		g.logger.Warn("Failed to read credential, sending unauthenticated", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if tok != "" {
		req.Header.Set("Authorization", tok)
	}

	start := time.Now()
	httpResp, err := g.client.Do(ctx, req)
	elapsed := time.Since(start)
	metrics.GatewayRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())

	if err != nil {
		classified := g.classify(nil, err)
		metrics.GatewayRequests.WithLabelValues(method, outcome(0, classified)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "no response")
		g.logger.Warn("Backend request failed without response", map[string]interface{}{
			"method":    method,
			"path":      path,
			"requestId": requestID,
			"timeout":   commonhttp.IsTimeout(err),
			"error":     err.Error(),
		})
		return nil, classified
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		classified := g.classify(nil, err)
		metrics.GatewayRequests.WithLabelValues(method, outcome(0, classified)).Inc()
		span.RecordError(err)
		return nil, classified
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: raw}
	for _, transform := range g.transforms {
		resp = transform(ctx, resp)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	metrics.GatewayRequests.WithLabelValues(method, outcome(resp.StatusCode, nil)).Inc()
	g.logger.Debug("Backend request completed", map[string]interface{}{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"requestId":  requestID,
		"durationMs": elapsed.Milliseconds(),
	})

	classified := g.classify(resp, nil)
	if classified == nil {
		return resp, nil
	}
	span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized {
		metrics.GatewayUnauthorized.Inc()
		if err := g.onUnauthorized(ctx); err != nil {
			g.logger.Error("Failed to clear session after 401", map[string]interface{}{
				"error": err.Error(),
			})
		}
		g.logger.Info("Session rejected by backend, signed out", map[string]interface{}{
			"path":      path,
			"requestId": requestID,
		})
	}
	return resp, classified
}
