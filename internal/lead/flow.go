package lead

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/visiblelegal/lead-capture/internal/identity"
	"github.com/visiblelegal/lead-capture/internal/pkg/dispatch"
	"github.com/visiblelegal/lead-capture/internal/pkg/logger"
	"github.com/visiblelegal/lead-capture/internal/tracking"
)

// Outcome is the user-visible result of one submit attempt.
type Outcome string

const (
	// OutcomeConfirmed means the backend accepted the lead; the form
	// resets and the confirmation message shows.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeFailed means the backend rejected the lead or transport
	// failed; the retry-guidance error shows.
	OutcomeFailed Outcome = "failed"
	// OutcomeIgnored means the honeypot tripped; the submission is
	// silently abandoned with no visible state change.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeBusy means a submit was already in flight; the re-entrant
	// attempt is rejected without a second POST.
	OutcomeBusy Outcome = "busy"
)

// Result reports one submit attempt back to the UI shell.
type Result struct {
	Outcome Outcome `json:"outcome"`
	// Message is the retry-guidance error copy on failure, empty otherwise.
	Message string `json:"message,omitempty"`
	// EventID is the tracking dedup token minted on success, when consent
	// allowed tracking. Opaque.
	EventID string `json:"event_id,omitempty"`
}

// Tracker is the gateway surface the flow needs: one consent-gated Lead
// report per successful submission.
type Tracker interface {
	SendLead(ctx context.Context, v tracking.Visitor, id tracking.Identity) string
}

// FlowConfig holds the flow's endpoint and error copy.
type FlowConfig struct {
	// EndpointURL receives the enriched payload.
	EndpointURL string
	// ContactEmail is named in the failure message as the manual
	// fallback channel.
	ContactEmail string
}

// Flow sequences one lead submission: guard, assemble, POST, then report.
// State per attempt is idle → submitting → idle; a re-entrant submit from
// the same visitor while one is in flight is rejected to guard against
// double POSTs. The guard is keyed by visitor so concurrent submissions
// from different visitors never collide.
type Flow struct {
	cfg        FlowConfig
	dispatcher *dispatch.Dispatcher
	tracker    Tracker
	norm       *identity.Normalizer

	mu       sync.Mutex
	inflight map[string]struct{}
	now      func() time.Time
}

// NewFlow builds the submission flow.
func NewFlow(cfg FlowConfig, dispatcher *dispatch.Dispatcher, tracker Tracker, norm *identity.Normalizer) *Flow {
	return &Flow{
		cfg:        cfg,
		dispatcher: dispatcher,
		tracker:    tracker,
		norm:       norm,
		inflight:   make(map[string]struct{}),
		now:        time.Now,
	}
}

// Submit runs one submission attempt for the given visitor. The backend
// POST is awaited; everything downstream of success is fire-and-forget.
func (f *Flow) Submit(ctx context.Context, v tracking.Visitor, in FormInput) Result {
	// Reject re-entrant submits while this visitor's is pending.
	if !f.beginSubmit(v.ID) {
		logger.Debug("submit rejected, already in flight", "visitor", v.ID)
		return Result{Outcome: OutcomeBusy}
	}
	defer f.endSubmit(v.ID)

	// A filled honeypot means a bot: abandon silently.
	if strings.TrimSpace(in.Honeypot) != "" {
		logger.Info("honeypot tripped, submission dropped", "visitor", v.ID)
		return Result{Outcome: OutcomeIgnored}
	}

	if f.cfg.EndpointURL == "" {
		logger.Error("lead endpoint not configured")
		return Result{Outcome: OutcomeFailed, Message: f.failureMessage()}
	}

	payload := buildPayload(in, f.norm, f.now())

	if err := f.dispatcher.Post(ctx, f.cfg.EndpointURL, payload); err != nil {
		logger.Warn("lead submission failed", "visitor", v.ID, "error", err.Error())
		leadSubmissions.WithLabelValues("failed").Inc()
		return Result{Outcome: OutcomeFailed, Message: f.failureMessage()}
	}

	leadSubmissions.WithLabelValues("confirmed").Inc()
	logger.Info("lead submitted", "visitor", v.ID, "email", payload.Email, "claim_type", payload.ClaimType)

	eventID := f.trackLead(ctx, v, in)
	return Result{Outcome: OutcomeConfirmed, EventID: eventID}
}

// trackLead reports the submission through the tracking gateway with the
// hashed matching keys. Normalization failures just omit the field; the
// lead itself already succeeded.
func (f *Flow) trackLead(ctx context.Context, v tracking.Visitor, in FormInput) string {
	if f.tracker == nil {
		return ""
	}

	var id tracking.Identity
	if em, ok := identity.NormalizeEmail(in.Email); ok {
		id.EmailHash = identity.HashSHA256(em)
	}
	if ph, ok := f.norm.NormalizePhone(in.Phone); ok {
		id.PhoneHash = identity.HashSHA256(ph)
	}
	return f.tracker.SendLead(ctx, v, id)
}

// beginSubmit marks a submission in flight for the visitor. Returns false
// if one is already pending under the same visitor ID.
func (f *Flow) beginSubmit(visitorID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.inflight[visitorID]; busy {
		return false
	}
	f.inflight[visitorID] = struct{}{}
	return true
}

func (f *Flow) endSubmit(visitorID string) {
	f.mu.Lock()
	delete(f.inflight, visitorID)
	f.mu.Unlock()
}

func (f *Flow) failureMessage() string {
	return fmt.Sprintf("Sorry, we couldn't submit your details. Please try again in a minute or email %s.", f.cfg.ContactEmail)
}

func trim(s string) string { return strings.TrimSpace(s) }
