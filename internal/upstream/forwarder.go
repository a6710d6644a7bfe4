// Package upstream delivers normalized leads to the CRM webhook.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/lead-intake-gateway/internal/config"
	"github.com/wolfman30/lead-intake-gateway/pkg/logging"
)

var tracer = otel.Tracer("leadgateway.internal.upstream")

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 7 * time.Second

// SecretHeader carries the shared secret the upstream checks.
const SecretHeader = "x-ss-secret"

const (
	msgMisconfigured = "Server misconfigured"
	msgTimeout       = "Upstream timeout"
	msgError         = "Upstream error"
	msgRejected      = "Upstream rejected submission"
)

// Error is returned by Forward. Status is the HTTP status the gateway should
// answer with and Message is safe to show to the caller.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream: %d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream: %d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Resolver finds the destination for a lead type.
type Resolver interface {
	Destination(leadType string) (config.Destination, error)
}

// Observer records delivery outcomes. *metrics.LeadMetrics satisfies it.
type Observer interface {
	ObserveUpstream(leadType string, status int, seconds float64)
}

// Forwarder posts payloads upstream, one attempt each.
type Forwarder struct {
	resolver   Resolver
	siteURL    string
	timeout    time.Duration
	httpClient *http.Client
	observer   Observer
	logger     *logging.Logger
}

// Option customizes a Forwarder.
type Option func(*Forwarder)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Forwarder) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) {
		if c != nil {
			f.httpClient = c
		}
	}
}

// WithObserver attaches an outcome observer.
func WithObserver(o Observer) Option {
	return func(f *Forwarder) {
		f.observer = o
	}
}

// NewForwarder builds a forwarder. siteURL is sent as the origin header.
func NewForwarder(resolver Resolver, siteURL string, logger *logging.Logger, opts ...Option) *Forwarder {
	if resolver == nil {
		panic("upstream: resolver required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	f := &Forwarder{
		resolver: resolver,
		siteURL:  siteURL,
		timeout:  DefaultTimeout,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type upstreamReply struct {
	OK    *bool  `json:"ok"`
	Error string `json:"error"`
}

// Forward delivers payload for leadType. It never retries; the returned
// error is always an *Error.
func (f *Forwarder) Forward(ctx context.Context, leadType string, payload any) error {
	ctx, span := tracer.Start(ctx, "upstream.forward")
	defer span.End()
	span.SetAttributes(attribute.String("lead.type", leadType))

	start := time.Now()
	status, err := f.forward(ctx, leadType, payload)
	if f.observer != nil {
		f.observer.ObserveUpstream(leadType, status, time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Message)
		return err
	}
	return nil
}

// forward returns the upstream's HTTP status (0 when none was received)
// alongside the outcome.
func (f *Forwarder) forward(ctx context.Context, leadType string, payload any) (int, *Error) {
	dest, err := f.resolver.Destination(leadType)
	if err != nil {
		return 0, &Error{Status: http.StatusInternalServerError, Message: msgMisconfigured, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, &Error{Status: http.StatusInternalServerError, Message: msgMisconfigured, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.URL, bytes.NewReader(body))
	if err != nil {
		return 0, &Error{Status: http.StatusInternalServerError, Message: msgMisconfigured, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, dest.Secret)
	if f.siteURL != "" {
		req.Header.Set("Origin", f.siteURL)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return resp.StatusCode, transportError(ctx, err)
	}

	var reply upstreamReply
	_ = json.Unmarshal(raw, &reply)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && reply.OK != nil && *reply.OK {
		f.logger.FromContext(ctx).Info("lead forwarded", "lead_type", leadType, "status", resp.StatusCode)
		return resp.StatusCode, nil
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusBadGateway
	}
	message := reply.Error
	if message == "" {
		message = msgRejected
	}
	return resp.StatusCode, &Error{
		Status:  status,
		Message: message,
		Err:     fmt.Errorf("upstream replied %d", resp.StatusCode),
	}
}

func transportError(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Status: http.StatusGatewayTimeout, Message: msgTimeout, Err: err}
	}
	return &Error{Status: http.StatusBadGateway, Message: msgError, Err: err}
}
