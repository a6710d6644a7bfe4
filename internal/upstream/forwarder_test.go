package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lead-intake-gateway/internal/config"
	"github.com/wolfman30/lead-intake-gateway/pkg/logging"
)

type captured struct {
	header http.Header
	body   map[string]any
}

func newUpstream(t *testing.T, status int, reply string) (*httptest.Server, *int32, chan captured) {
	t.Helper()
	var calls int32
	seen := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		select {
		case seen <- captured{header: r.Header.Clone(), body: body}:
		default:
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, seen
}

func sharedConfig(url string) *config.Config {
	return &config.Config{LeadEndpointURL: url, LeadForwardSecret: "shared-secret"}
}

func forwardErr(t *testing.T, err error) *Error {
	t.Helper()
	var fErr *Error
	require.True(t, errors.As(err, &fErr), "expected *upstream.Error, got %v", err)
	return fErr
}

type recordingObserver struct {
	leadType string
	status   int
	calls    int
}

func (r *recordingObserver) ObserveUpstream(leadType string, status int, _ float64) {
	r.leadType = leadType
	r.status = status
	r.calls++
}

func TestForwardSuccess(t *testing.T) {
	srv, calls, seen := newUpstream(t, http.StatusOK, `{"ok":true}`)
	obs := &recordingObserver{}
	f := NewForwarder(sharedConfig(srv.URL), "https://www.example.com", logging.New("error"), WithObserver(obs))

	err := f.Forward(context.Background(), config.LeadTypeFeedback, map[string]any{"type": "feedback", "rating": "3"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	got := <-seen
	assert.Equal(t, "shared-secret", got.header.Get(SecretHeader))
	assert.Equal(t, "https://www.example.com", got.header.Get("Origin"))
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
	assert.Equal(t, "3", got.body["rating"])

	assert.Equal(t, 1, obs.calls)
	assert.Equal(t, config.LeadTypeFeedback, obs.leadType)
	assert.Equal(t, http.StatusOK, obs.status)
}

func TestForwardMisconfiguredMakesNoRequest(t *testing.T) {
	srv, calls, _ := newUpstream(t, http.StatusOK, `{"ok":true}`)
	cfg := &config.Config{FinancingEndpointURL: srv.URL, FinancingForwardSecret: "s"}
	f := NewForwarder(cfg, "", logging.New("error"))

	err := f.Forward(context.Background(), config.LeadTypeContact, map[string]any{})
	fErr := forwardErr(t, err)
	assert.Equal(t, http.StatusInternalServerError, fErr.Status)
	assert.Equal(t, "Server misconfigured", fErr.Message)

	var misconfigured *config.MisconfiguredError
	assert.ErrorAs(t, err, &misconfigured)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestForwardTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewForwarder(sharedConfig(srv.URL), "", logging.New("error"), WithTimeout(50*time.Millisecond))
	start := time.Now()
	fErr := forwardErr(t, f.Forward(context.Background(), config.LeadTypeFeedback, map[string]any{}))
	assert.Equal(t, http.StatusGatewayTimeout, fErr.Status)
	assert.Equal(t, "Upstream timeout", fErr.Message)
	assert.Less(t, time.Since(start), time.Second)
}

func TestForwardDefaultTimeout(t *testing.T) {
	f := NewForwarder(&config.Config{}, "", nil)
	assert.Equal(t, 7*time.Second, f.timeout)
	assert.Equal(t, DefaultTimeout, f.timeout)
}

func TestForwardNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := NewForwarder(sharedConfig(url), "", logging.New("error"))
	fErr := forwardErr(t, f.Forward(context.Background(), config.LeadTypeFeedback, map[string]any{}))
	assert.Equal(t, http.StatusBadGateway, fErr.Status)
	assert.Equal(t, "Upstream error", fErr.Message)
}

func TestForwardRejections(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		reply      string
		wantStatus int
		wantMsg    string
	}{
		{"non-2xx with error", http.StatusUnprocessableEntity, `{"ok":false,"error":"bad phone"}`, http.StatusUnprocessableEntity, "bad phone"},
		{"non-2xx without body", http.StatusServiceUnavailable, `gateway down`, http.StatusServiceUnavailable, "Upstream rejected submission"},
		{"2xx with ok false", http.StatusOK, `{"ok":false,"error":"duplicate"}`, http.StatusOK, "duplicate"},
		{"2xx without ok flag", http.StatusOK, `{"received":true}`, http.StatusOK, "Upstream rejected submission"},
		{"2xx non-json", http.StatusAccepted, `accepted`, http.StatusAccepted, "Upstream rejected submission"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls, _ := newUpstream(t, tt.status, tt.reply)
			f := NewForwarder(sharedConfig(srv.URL), "", logging.New("error"))

			fErr := forwardErr(t, f.Forward(context.Background(), config.LeadTypeFinancing, map[string]any{}))
			assert.Equal(t, tt.wantStatus, fErr.Status)
			assert.Equal(t, tt.wantMsg, fErr.Message)
			assert.Equal(t, int32(1), atomic.LoadInt32(calls), "single attempt expected")
		})
	}
}

func TestForwardHonorsCallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewForwarder(sharedConfig(srv.URL), "", logging.New("error"))
	fErr := forwardErr(t, f.Forward(ctx, config.LeadTypeFeedback, map[string]any{}))
	assert.Equal(t, http.StatusBadGateway, fErr.Status)
}
