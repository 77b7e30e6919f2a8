package lead

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiblelegal/lead-capture/internal/identity"
	"github.com/visiblelegal/lead-capture/internal/pkg/dispatch"
	"github.com/visiblelegal/lead-capture/internal/tracking"
)

type fakeTracker struct {
	mu    sync.Mutex
	calls []tracking.Identity
}

func (f *fakeTracker) SendLead(_ context.Context, _ tracking.Visitor, id tracking.Identity) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return "evt-test-1"
}

func (f *fakeTracker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestFlow(t *testing.T, backend http.HandlerFunc) (*Flow, *fakeTracker) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	tracker := &fakeTracker{}
	flow := NewFlow(
		FlowConfig{EndpointURL: srv.URL, ContactEmail: "support@visiblelegal.co.uk"},
		dispatch.New(nil),
		tracker,
		identity.NewNormalizer("44", "0"),
	)
	return flow, tracker
}

func validInput() FormInput {
	return FormInput{
		FullName:       "  Jane Doe ",
		Email:          "jane@example.com",
		Phone:          "07911 123456",
		ClaimType:      "IVA",
		IVARef:         "IVA-42",
		Notes:          "please call after 5",
		ContactConsent: true,
		MarketingOptIn: false,
		UTMSource:      "fb",
		UTMMedium:      "cpc",
		UTMCampaign:    "spring",
		UTMTerm:        "iva",
		UTMContent:     "ad1",
		SourceURL:      "https://visiblelegal.co.uk/?utm_source=fb",
		UserAgent:      "test-agent/1.0",
	}
}

func TestSubmitSuccess(t *testing.T) {
	var got Payload
	flow, tracker := newTestFlow(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	res := flow.Submit(context.Background(), tracking.Visitor{ID: "v1"}, validInput())

	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Empty(t, res.Message)
	assert.Equal(t, "evt-test-1", res.EventID)

	assert.Equal(t, "Jane Doe", got.FullName)
	assert.Equal(t, "jane@example.com", got.Email)
	assert.Equal(t, "07911 123456", got.PhoneRaw)
	assert.Equal(t, "07911123456", got.PhoneDigits)
	assert.Equal(t, "+447911123456", got.PhoneE164)
	assert.Equal(t, "IVA", got.ClaimType)
	assert.Equal(t, "IVA-42", got.IVARef)
	assert.True(t, got.ContactConsent)
	assert.False(t, got.MarketingOptIn)
	assert.Equal(t, "fb", got.UTMSource)
	assert.Equal(t, "https://visiblelegal.co.uk/?utm_source=fb", got.SourceURL)
	assert.Equal(t, "test-agent/1.0", got.UserAgent)

	// Client timestamp is ISO-8601.
	_, err := time.Parse(time.RFC3339, got.ConsentTimestamp)
	assert.NoError(t, err)

	// Success triggers exactly one tracking call with hashed matching keys.
	require.Equal(t, 1, tracker.count())
	assert.Equal(t, identity.HashSHA256("jane@example.com"), tracker.calls[0].EmailHash)
	assert.Equal(t, identity.HashSHA256("447911123456"), tracker.calls[0].PhoneHash)
}

func TestSubmitFailureSurfacesRetryGuidance(t *testing.T) {
	flow, tracker := newTestFlow(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	res := flow.Submit(context.Background(), tracking.Visitor{ID: "v1"}, validInput())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Message, "support@visiblelegal.co.uk")
	assert.Empty(t, res.EventID)

	// Failure never triggers tracking.
	assert.Equal(t, 0, tracker.count())
}

func TestSubmitHoneypotDropsSilently(t *testing.T) {
	var posts atomic.Int32
	flow, tracker := newTestFlow(t, func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	in := validInput()
	in.Honeypot = "gotcha"
	res := flow.Submit(context.Background(), tracking.Visitor{ID: "v1"}, in)

	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Empty(t, res.Message, "no visible error on honeypot")
	assert.Equal(t, int32(0), posts.Load(), "zero network calls")
	assert.Equal(t, 0, tracker.count())
}

func TestSubmitDoubleSubmitGuard(t *testing.T) {
	var posts atomic.Int32
	release := make(chan struct{})
	arrived := make(chan struct{})

	flow, _ := newTestFlow(t, func(w http.ResponseWriter, r *http.Request) {
		if posts.Add(1) == 1 {
			close(arrived)
		}
		<-release
		w.WriteHeader(http.StatusOK)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	var first Result
	go func() {
		defer wg.Done()
		first = flow.Submit(context.Background(), tracking.Visitor{ID: "v1"}, validInput())
	}()

	// Second submit while the first is pending: rejected without a POST.
	<-arrived
	second := flow.Submit(context.Background(), tracking.Visitor{ID: "v1"}, validInput())
	assert.Equal(t, OutcomeBusy, second.Outcome)

	close(release)
	wg.Wait()

	assert.Equal(t, OutcomeConfirmed, first.Outcome)
	assert.Equal(t, int32(1), posts.Load(), "exactly one POST for the pair of submits")

	// Once idle again, the next submit goes through.
	third := flow.Submit(context.Background(), tracking.Visitor{ID: "v1"}, validInput())
	assert.Equal(t, OutcomeConfirmed, third.Outcome)
}

func TestSubmitGuardIsPerVisitor(t *testing.T) {
	var posts atomic.Int32
	release := make(chan struct{})
	arrived := make(chan struct{})

	flow, _ := newTestFlow(t, func(w http.ResponseWriter, r *http.Request) {
		// Hold only the first visitor's POST open.
		if posts.Add(1) == 1 {
			close(arrived)
			<-release
		}
		w.WriteHeader(http.StatusOK)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	var first Result
	go func() {
		defer wg.Done()
		first = flow.Submit(context.Background(), tracking.Visitor{ID: "v1"}, validInput())
	}()

	// A different visitor submitting while the first is pending is an
	// independent submission, not a double-click.
	<-arrived
	other := flow.Submit(context.Background(), tracking.Visitor{ID: "v2"}, validInput())
	assert.Equal(t, OutcomeConfirmed, other.Outcome, "unrelated visitor must not be rejected as busy")

	close(release)
	wg.Wait()

	assert.Equal(t, OutcomeConfirmed, first.Outcome)
	assert.Equal(t, int32(2), posts.Load(), "one POST per visitor")
}

func TestSubmitMissingEndpointFails(t *testing.T) {
	flow := NewFlow(
		FlowConfig{ContactEmail: "support@visiblelegal.co.uk"},
		dispatch.New(nil),
		nil,
		identity.NewNormalizer("44", "0"),
	)

	res := flow.Submit(context.Background(), tracking.Visitor{ID: "v1"}, validInput())
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Message, "support@visiblelegal.co.uk")
}

func TestBuildPayloadPhoneConsistency(t *testing.T) {
	norm := identity.NewNormalizer("44", "0")

	tests := []struct {
		phone      string
		wantDigits string
		wantE164   string
	}{
		{"07911 123456", "07911123456", "+447911123456"},
		{"+44 7911 123456", "447911123456", "+44 7911 123456"},
		{"447911123456", "447911123456", "+447911123456"},
		{"", "", ""},
	}

	for _, tt := range tests {
		in := validInput()
		in.Phone = tt.phone
		p := buildPayload(in, norm, time.Now())
		assert.Equal(t, strings.TrimSpace(tt.phone), p.PhoneRaw, "phone %q", tt.phone)
		assert.Equal(t, tt.wantDigits, p.PhoneDigits, "phone %q", tt.phone)
		assert.Equal(t, tt.wantE164, p.PhoneE164, "phone %q", tt.phone)
	}
}

func TestSubmitUnnormalizableIdentityOmitsFields(t *testing.T) {
	flow, tracker := newTestFlow(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	in := validInput()
	in.Email = "not-an-email"
	in.Phone = "123"
	res := flow.Submit(context.Background(), tracking.Visitor{ID: "v1"}, in)

	// The submission still succeeds; the matching keys are just absent.
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	require.Equal(t, 1, tracker.count())
	assert.Empty(t, tracker.calls[0].EmailHash)
	assert.Empty(t, tracker.calls[0].PhoneHash)
}
