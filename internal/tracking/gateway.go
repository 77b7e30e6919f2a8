package tracking

import (
	"context"
	"time"

	"github.com/visiblelegal/lead-capture/internal/consent"
	"github.com/visiblelegal/lead-capture/internal/identity"
	"github.com/visiblelegal/lead-capture/internal/pkg/dispatch"
	"github.com/visiblelegal/lead-capture/internal/pkg/logger"
)

// IntakeKind names one of the generic intake webhooks.
type IntakeKind string

const (
	IntakeIVACapture   IntakeKind = "iva-capture"
	IntakeGeneralQuery IntakeKind = "general-query"
)

// GatewayConfig holds the gateway's endpoints and event labels.
type GatewayConfig struct {
	// ConversionsURL is the server-side conversions relay webhook.
	ConversionsURL string
	// IntakeURLs maps the generic intake webhooks by kind.
	IntakeURLs map[IntakeKind]string
	// LeadCustomData labels the Lead event on both channels.
	LeadCustomData CustomData
	// ViewCustomData labels the ViewContent event.
	ViewCustomData CustomData
	Debug          bool
}

// Gateway wraps the pixel and the conversions relay behind the consent
// decision. Every outbound call observes one consent snapshot; SendLead
// checks once and then drives both channels, so a concurrent consent
// change can never split the pair.
type Gateway struct {
	decisions  consent.Store
	pixel      *PixelClient
	dispatcher *dispatch.Dispatcher
	cfg        GatewayConfig
	newEventID func() string
}

// NewGateway builds the gateway. newEventID may be nil, in which case
// identity.NewEventID is used.
func NewGateway(decisions consent.Store, pixel *PixelClient, dispatcher *dispatch.Dispatcher, cfg GatewayConfig) *Gateway {
	return &Gateway{
		decisions:  decisions,
		pixel:      pixel,
		dispatcher: dispatcher,
		cfg:        cfg,
		newEventID: identity.NewEventID,
	}
}

// TrackEvent fires a named pixel event if the visitor's consent is
// accepted; otherwise it is a silent skip (not an error).
func (g *Gateway) TrackEvent(ctx context.Context, v Visitor, name string, custom CustomData, eventID string) {
	if !g.decisions.Get(ctx, v.ID).Granted() {
		logger.Debug("tracking skipped, no consent", "event", name, "visitor", v.ID)
		eventsSkipped.WithLabelValues("consent").Inc()
		return
	}
	if g.pixel == nil || g.pixel.pixelID == "" {
		logger.Warn("tracking skipped, no pixel configured", "event", name)
		eventsSkipped.WithLabelValues("config").Inc()
		return
	}
	g.pixel.Track(v, name, custom, eventID)
	eventsSent.WithLabelValues("pixel", name).Inc()
	if g.cfg.Debug {
		logger.Debug("pixel event tracked", "event", name, "event_id", eventID)
	}
}

// TrackView reports a consent-gated ViewContent event for the claim-checker
// pages. No server-side relay: views dedup fine on the pixel alone.
func (g *Gateway) TrackView(ctx context.Context, v Visitor) {
	g.TrackEvent(ctx, v, "ViewContent", g.cfg.ViewCustomData, "")
}

// RelayServerEvent delivers one event record to the conversions webhook,
// carrying the shared event ID, the visitor's browser-origin identifiers,
// and any supplied matching keys. Delivery is best-effort and detached
// from ctx's lifetime; failures never surface to the caller.
func (g *Gateway) RelayServerEvent(ctx context.Context, webhookURL, name, eventID string, v Visitor, id Identity, custom CustomData) {
	if webhookURL == "" {
		logger.Warn("conversions relay skipped, no webhook configured", "event", name)
		eventsSkipped.WithLabelValues("config").Inc()
		return
	}
	envelope := newServerEnvelope(name, eventID, time.Now().UTC(), v, id, custom)
	g.dispatcher.PostDetached(webhookURL, envelope)
	eventsSent.WithLabelValues("relay", name).Inc()
	relayDeliveries.WithLabelValues("conversions").Inc()
}

// SendLead reports one Lead under a freshly minted event ID: the pixel
// event and the server relay both carry that same ID so the platform
// deduplicates them into one conversion. Consent is checked exactly once
// at the top — both channels observe the same snapshot, so a racing
// consent change cannot fire one channel without the other.
func (g *Gateway) SendLead(ctx context.Context, v Visitor, id Identity) string {
	if !g.decisions.Get(ctx, v.ID).Granted() {
		logger.Debug("lead tracking skipped, no consent", "visitor", v.ID)
		eventsSkipped.WithLabelValues("consent").Inc()
		return ""
	}

	eventID := g.newEventID()

	if g.pixel != nil && g.pixel.pixelID != "" {
		g.pixel.Track(v, "Lead", g.cfg.LeadCustomData, eventID)
		eventsSent.WithLabelValues("pixel", "Lead").Inc()
	} else {
		logger.Warn("lead pixel skipped, no pixel configured")
		eventsSkipped.WithLabelValues("config").Inc()
	}

	g.RelayServerEvent(ctx, g.cfg.ConversionsURL, "Lead", eventID, v, id, g.cfg.LeadCustomData)

	if g.cfg.Debug {
		logger.Debug("lead event sent", "event_id", eventID)
	}
	return eventID
}

// RelayIntake forwards a caller-defined payload to one of the generic
// intake webhooks, best-effort. Unknown or unconfigured kinds are logged
// and skipped, never fatal.
func (g *Gateway) RelayIntake(kind IntakeKind, payload any) {
	url := g.cfg.IntakeURLs[kind]
	if url == "" {
		logger.Warn("intake relay skipped, no webhook configured", "kind", string(kind))
		eventsSkipped.WithLabelValues("config").Inc()
		return
	}
	g.dispatcher.PostDetached(url, payload)
	relayDeliveries.WithLabelValues(string(kind)).Inc()
}
