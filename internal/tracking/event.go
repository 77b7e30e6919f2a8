// Package tracking mediates every outbound analytics/advertising call
// through the visitor's consent decision. One logical business event (a
// lead submission, a content view) is reported through two independent
// channels — the browser-side pixel and the server-side conversions relay —
// under a single shared event ID so the receiving platform can deduplicate.
package tracking

import "time"

// Visitor carries the browser-origin identifiers attached to tracking
// calls: the ad-platform first/last-touch cookies when present, the page
// the event happened on, and the user agent.
type Visitor struct {
	ID        string
	PageURL   string
	UserAgent string
	FBP       string // _fbp browser cookie, if present
	FBC       string // _fbc click cookie, if present
}

// CustomData labels an event with its category/name pair.
type CustomData struct {
	ContentCategory string `json:"content_category"`
	ContentName     string `json:"content_name"`
}

// Identity carries the hashed matching keys for the server-side channel.
// Absent fields are omitted rather than sent empty.
type Identity struct {
	EmailHash string
	PhoneHash string
}

// serverUserData is the conversions-API user_data object.
type serverUserData struct {
	FBP             string `json:"fbp,omitempty"`
	FBC             string `json:"fbc,omitempty"`
	ClientUserAgent string `json:"client_user_agent"`
	Em              string `json:"em,omitempty"`
	Ph              string `json:"ph,omitempty"`
}

// serverEvent is one event record in the conversions-API envelope.
type serverEvent struct {
	EventName      string         `json:"event_name"`
	EventTime      int64          `json:"event_time"`
	ActionSource   string         `json:"action_source"`
	EventID        string         `json:"event_id"`
	EventSourceURL string         `json:"event_source_url"`
	UserData       serverUserData `json:"user_data"`
	CustomData     CustomData     `json:"custom_data"`
}

// serverEnvelope is the webhook body: `{ "data": [ ...events ] }`.
type serverEnvelope struct {
	Data []serverEvent `json:"data"`
}

// newServerEnvelope builds the conversions-API payload for one event.
func newServerEnvelope(name, eventID string, at time.Time, v Visitor, id Identity, custom CustomData) serverEnvelope {
	return serverEnvelope{
		Data: []serverEvent{{
			EventName:      name,
			EventTime:      at.Unix(),
			ActionSource:   "website",
			EventID:        eventID,
			EventSourceURL: v.PageURL,
			UserData: serverUserData{
				FBP:             v.FBP,
				FBC:             v.FBC,
				ClientUserAgent: v.UserAgent,
				Em:              id.EmailHash,
				Ph:              id.PhoneHash,
			},
			CustomData: custom,
		}},
	}
}
