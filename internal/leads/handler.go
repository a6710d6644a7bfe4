package leads

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/lead-intake-gateway/internal/config"
	"github.com/wolfman30/lead-intake-gateway/internal/http/response"
	"github.com/wolfman30/lead-intake-gateway/internal/observability/metrics"
	"github.com/wolfman30/lead-intake-gateway/internal/turnstile"
	"github.com/wolfman30/lead-intake-gateway/internal/upstream"
	"github.com/wolfman30/lead-intake-gateway/pkg/logging"
)

// MaxBodyBytes caps the size of a submission body.
const MaxBodyBytes = 64 << 10

// Verifier checks a bot-verification token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Forwarder delivers a normalized payload upstream.
type Forwarder interface {
	Forward(ctx context.Context, leadType string, payload any) error
}

// Handler runs the intake pipeline: parse, honeypot, validate, verify,
// normalize, forward. Each step short-circuits the rest on failure.
type Handler struct {
	validator *Validator
	verifier  Verifier
	forwarder Forwarder
	metrics   *metrics.LeadMetrics
	logger    *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(validator *Validator, verifier Verifier, forwarder Forwarder, m *metrics.LeadMetrics, logger *logging.Logger) *Handler {
	if validator == nil {
		validator = NewValidator()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		validator: validator,
		verifier:  verifier,
		forwarder: forwarder,
		metrics:   m,
		logger:    logger,
	}
}

// SubmitLead handles POST /api/lead for every lead type.
func (h *Handler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "")
}

// SubmitFeedback handles the legacy POST /api/feedback, which only accepts
// feedback submissions.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, TypeFeedback)
}

// Preflight answers OPTIONS. CORS headers are set by the origin guard.
func Preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, only Type) {
	start := time.Now()
	ctx := r.Context()
	log := h.logger.FromContext(ctx)

	var leadType, outcome string
	defer func() {
		h.metrics.ObserveSubmission(leadType, outcome, time.Since(start).Seconds())
	}()

	fields, err := DecodeObject(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		outcome = "invalid_json"
		log.Info("rejected malformed body", "error", err)
		response.Error(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if t, ok := discriminator(fields); ok && newSubmission(t) != nil {
		leadType = string(t)
	}

	if trap, hit := DetectHoneypot(fields); hit {
		// Answer exactly like a success so bots learn nothing.
		outcome = "spam"
		log.Info("honeypot triggered, discarding submission", "field", trap, "lead_type", leadType)
		response.OK(w)
		return
	}

	var (
		lead Submission
		verr *ValidationError
	)
	if only != "" {
		lead, verr = h.validator.ValidateOnly(fields, only)
	} else {
		lead, verr = h.validator.Validate(fields)
	}
	if verr != nil {
		outcome = "invalid"
		log.Info("submission failed validation", "lead_type", leadType, "fields", fieldNames(verr.FieldErrors))
		response.Invalid(w, verr.Message, verr.FieldErrors)
		return
	}
	leadType = string(lead.LeadType())

	if err := h.verifier.Verify(ctx, lead.Base().CFToken, ClientIP(r)); err != nil {
		status, message, result := h.verificationFailure(log, err)
		outcome = "bot_" + result
		response.Error(w, status, message)
		return
	}
	h.metrics.ObserveVerification("success")

	payload, err := BuildPayload(lead)
	if err != nil {
		outcome = "error"
		log.Error("failed to build upstream payload", "lead_type", leadType, "error", err)
		response.Error(w, http.StatusInternalServerError, msgInternal)
		return
	}

	if err := h.forwarder.Forward(ctx, leadType, payload); err != nil {
		status, message, result := h.forwardFailure(log, leadType, err)
		outcome = result
		response.Error(w, status, message)
		return
	}

	outcome = "success"
	log.Info("lead accepted", "lead_type", leadType)
	response.OK(w)
}

func (h *Handler) verificationFailure(log *logging.Logger, err error) (int, string, string) {
	var vErr *turnstile.Error
	if !errors.As(err, &vErr) {
		h.metrics.ObserveVerification("error")
		log.Warn("bot verification failed", "error", err)
		return http.StatusBadRequest, "Bot verification failed", "error"
	}

	switch vErr.Kind {
	case turnstile.KindMisconfigured:
		h.metrics.ObserveVerification("misconfigured")
		log.Error("bot verification misconfigured", "missing", "TURNSTILE_SECRET_KEY", "error", err)
		return http.StatusInternalServerError, msgMisconfigured, "misconfigured"
	case turnstile.KindUnavailable:
		h.metrics.ObserveVerification("unavailable")
		log.Warn("bot verification unavailable", "error", err)
		return http.StatusBadRequest, vErr.Message, "unavailable"
	default:
		h.metrics.ObserveVerification("rejected")
		log.Info("bot verification rejected", "codes", vErr.Codes)
		return http.StatusBadRequest, vErr.Message, "rejected"
	}
}

func (h *Handler) forwardFailure(log *logging.Logger, leadType string, err error) (int, string, string) {
	var misconfigured *config.MisconfiguredError
	if errors.As(err, &misconfigured) {
		log.Error("upstream destination not configured", "lead_type", leadType, "missing", misconfigured.Missing)
		return http.StatusInternalServerError, msgMisconfigured, "misconfigured"
	}

	var fErr *upstream.Error
	if errors.As(err, &fErr) {
		log.Warn("upstream delivery failed", "lead_type", leadType, "status", fErr.Status, "error", err)
		if fErr.Status == http.StatusGatewayTimeout {
			return fErr.Status, fErr.Message, "upstream_timeout"
		}
		return fErr.Status, fErr.Message, "upstream_error"
	}

	log.Error("upstream delivery failed", "lead_type", leadType, "error", err)
	return http.StatusBadGateway, "Upstream error", "upstream_error"
}

// ClientIP prefers Cloudflare's connecting-IP header, then the first
// X-Forwarded-For hop, then the connection address.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func fieldNames(fieldErrors map[string][]string) []string {
	names := make([]string, 0, len(fieldErrors))
	for name := range fieldErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
