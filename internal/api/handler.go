// Package api exposes the tracking/consent core to the UI shell through a
// small JSON surface: consent boot/choice, lead submission, view tracking,
// and the generic intake relays. The shell owns all DOM concerns; these
// endpoints are its only entry points into the core.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/visiblelegal/lead-capture/internal/consent"
	"github.com/visiblelegal/lead-capture/internal/lead"
	"github.com/visiblelegal/lead-capture/internal/pkg/httputil"
	"github.com/visiblelegal/lead-capture/internal/tracking"
)

// visitorCookie identifies the browser across requests. The ad-platform
// cookies are read when present and forwarded, never written.
const (
	visitorCookie = "vlm_vid"
	fbpCookie     = "_fbp"
	fbcCookie     = "_fbc"
)

// Handler wires the core into HTTP.
type Handler struct {
	consent *consent.Controller
	flow    *lead.Flow
	gateway *tracking.Gateway
}

// NewHandler creates the API handler.
func NewHandler(consentCtrl *consent.Controller, flow *lead.Flow, gateway *tracking.Gateway) *Handler {
	return &Handler{consent: consentCtrl, flow: flow, gateway: gateway}
}

// Routes returns the chi router for the API surface.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/api/consent", h.HandleConsentBoot)
	r.Post("/api/consent", h.HandleConsentChoice)
	r.Post("/api/leads", h.HandleLeadSubmit)
	r.Post("/api/views", h.HandleTrackView)
	r.Post("/api/intake/{kind}", h.HandleIntake)
	r.Get("/healthz", h.HandleHealth)
	return r
}

// HandleConsentBoot resolves the visitor's consent state on page load and
// tells the shell whether to show the prompt. The page path rides in the
// `path` query parameter so the cookie-policy page can suppress it.
func (h *Handler) HandleConsentBoot(w http.ResponseWriter, r *http.Request) {
	visitorID := h.ensureVisitor(w, r)
	res := h.consent.Boot(r.Context(), visitorID, r.URL.Query().Get("path"))
	httputil.OK(w, res)
}

// consentChoiceRequest is the consent action body.
type consentChoiceRequest struct {
	Action string `json:"action"` // accept | reject | manage
}

// HandleConsentChoice applies an explicit accept/reject, or re-shows the
// prompt on manage without touching the stored decision.
func (h *Handler) HandleConsentChoice(w http.ResponseWriter, r *http.Request) {
	visitorID := h.ensureVisitor(w, r)

	var req consentChoiceRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	switch req.Action {
	case "accept":
		if err := h.consent.Accept(r.Context(), visitorID); err != nil {
			httputil.InternalError(w, err)
			return
		}
		httputil.OK(w, consent.BootResult{Decision: consent.Accepted})
	case "reject":
		if err := h.consent.Reject(r.Context(), visitorID); err != nil {
			httputil.InternalError(w, err)
			return
		}
		httputil.OK(w, consent.BootResult{Decision: consent.Rejected})
	case "manage":
		httputil.OK(w, h.consent.Manage(r.Context(), visitorID))
	default:
		httputil.BadRequest(w, "unknown consent action: "+req.Action)
	}
}

// HandleLeadSubmit runs the submission flow and maps its outcome onto
// HTTP: confirmed and ignored both read as 200 (a tripped honeypot is
// indistinguishable from success to the caller), busy is 429, and a
// backend failure is 502 with the retry-guidance message.
func (h *Handler) HandleLeadSubmit(w http.ResponseWriter, r *http.Request) {
	visitorID := h.ensureVisitor(w, r)

	var in lead.FormInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	if in.UserAgent == "" {
		in.UserAgent = r.UserAgent()
	}

	res := h.flow.Submit(r.Context(), h.visitor(r, visitorID, in.SourceURL, in.UserAgent), in)

	switch res.Outcome {
	case lead.OutcomeConfirmed, lead.OutcomeIgnored:
		httputil.OK(w, res)
	case lead.OutcomeBusy:
		httputil.Error(w, http.StatusTooManyRequests, "submission already in progress")
	default:
		httputil.JSON(w, http.StatusBadGateway, res)
	}
}

// trackViewRequest carries the page the view happened on.
type trackViewRequest struct {
	PageURL string `json:"page_url"`
}

// HandleTrackView fires the consent-gated ViewContent event for claim
// checker pages. Always 202: tracking is fire-and-forget.
func (h *Handler) HandleTrackView(w http.ResponseWriter, r *http.Request) {
	visitorID := h.ensureVisitor(w, r)

	var req trackViewRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	h.gateway.TrackView(r.Context(), h.visitor(r, visitorID, req.PageURL, r.UserAgent()))
	w.WriteHeader(http.StatusAccepted)
}

// HandleIntake forwards a caller-defined JSON payload to the named intake
// webhook, best-effort. Always 202 for known kinds.
func (h *Handler) HandleIntake(w http.ResponseWriter, r *http.Request) {
	kind := tracking.IntakeKind(chi.URLParam(r, "kind"))
	switch kind {
	case tracking.IntakeIVACapture, tracking.IntakeGeneralQuery:
	default:
		httputil.NotFound(w, "unknown intake kind: "+string(kind))
		return
	}

	var payload json.RawMessage
	if !httputil.Decode(w, r, &payload) {
		return
	}

	h.gateway.RelayIntake(kind, payload)
	w.WriteHeader(http.StatusAccepted)
}

// HandleHealth is the liveness probe.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// ensureVisitor returns the visitor ID, minting and setting the cookie on
// first contact.
func (h *Handler) ensureVisitor(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(visitorCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   60 * 60 * 24 * 365,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// visitor assembles the tracking view of the request.
func (h *Handler) visitor(r *http.Request, visitorID, pageURL, userAgent string) tracking.Visitor {
	v := tracking.Visitor{ID: visitorID, PageURL: pageURL, UserAgent: userAgent}
	if v.PageURL == "" {
		v.PageURL = r.Referer()
	}
	if c, err := r.Cookie(fbpCookie); err == nil {
		v.FBP = c.Value
	}
	if c, err := r.Cookie(fbcCookie); err == nil {
		v.FBC = c.Value
	}
	return v
}
