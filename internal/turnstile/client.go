// Package turnstile verifies Cloudflare Turnstile challenge tokens.
package turnstile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/lead-intake-gateway/pkg/logging"
)

var tracer = otel.Tracer("leadgateway.internal.turnstile")

// DefaultVerifyURL is Cloudflare's siteverify endpoint.
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// ErrMissingSecret is wrapped by the error returned when no secret is configured.
var ErrMissingSecret = errors.New("turnstile: TURNSTILE_SECRET_KEY is not set")

// Kind classifies a verification failure.
type Kind int

const (
	// KindRejected means the service answered and said the token is bad.
	KindRejected Kind = iota
	// KindUnavailable covers transport errors, non-2xx replies and bodies
	// that are not the expected JSON.
	KindUnavailable
	// KindMisconfigured means the gateway has no secret to verify with.
	KindMisconfigured
)

// Error is the single error type Verify returns. Message is safe to show to
// the caller; Err holds detail for logs.
type Error struct {
	Kind    Kind
	Message string
	Codes   []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("turnstile: %s: %v", e.Message, e.Err)
	}
	return "turnstile: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

type siteverifyResponse struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
	Action      string   `json:"action"`
}

// Client calls the siteverify endpoint. It makes exactly one attempt per
// token.
type Client struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds a client. A zero timeout leaves the request bounded only
// by the caller's context.
func NewClient(secret, verifyURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	return &Client{
		secret:    strings.TrimSpace(secret),
		verifyURL: verifyURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Verify checks token with the service. remoteIP is optional.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) error {
	ctx, span := tracer.Start(ctx, "turnstile.verify")
	defer span.End()

	err := c.verify(ctx, token, remoteIP)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification failed")
	}
	return err
}

func (c *Client) verify(ctx context.Context, token, remoteIP string) error {
	if c.secret == "" {
		return &Error{Kind: KindMisconfigured, Message: "Server misconfigured", Err: ErrMissingSecret}
	}

	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &Error{Kind: KindMisconfigured, Message: "Server misconfigured", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindUnavailable, Message: "Bot verification unavailable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	if err != nil {
		return &Error{Kind: KindUnavailable, Message: "Bot verification unavailable", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Kind:    KindUnavailable,
			Message: "Bot verification unavailable",
			Err:     fmt.Errorf("siteverify status %d", resp.StatusCode),
		}
	}

	var parsed siteverifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &Error{Kind: KindUnavailable, Message: "Bot verification returned an invalid response", Err: err}
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Bool("turnstile.success", parsed.Success),
		attribute.String("turnstile.hostname", parsed.Hostname),
	)
	if !parsed.Success {
		msg := "Bot verification failed"
		if len(parsed.ErrorCodes) > 0 {
			msg += ": " + strings.Join(parsed.ErrorCodes, ",")
		}
		return &Error{Kind: KindRejected, Message: msg, Codes: parsed.ErrorCodes}
	}

	c.logger.Debug("turnstile token verified", "hostname", parsed.Hostname, "action", parsed.Action)
	return nil
}
