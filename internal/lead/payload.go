// Package lead implements the lead-capture submission flow: payload
// assembly from raw form values, the double-submit and honeypot guards,
// delivery to the backend, and the post-success tracking trigger.
package lead

import (
	"time"

	"github.com/visiblelegal/lead-capture/internal/identity"
)

// FormInput is the raw form-control state at submit time, as entered by
// the visitor. Honeypot carries the hidden bot-trap field.
type FormInput struct {
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	ClaimType      string `json:"claimType"`
	IVARef         string `json:"ivaRef"`
	Notes          string `json:"notes"`
	ContactConsent bool   `json:"contactConsent"`
	MarketingOptIn bool   `json:"marketingOptIn"`
	Honeypot       string `json:"_honey"`

	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	UTMTerm     string `json:"utm_term"`
	UTMContent  string `json:"utm_content"`
	SourceURL   string `json:"source_url"`
	UserAgent   string `json:"userAgent"`
}

// Payload is the enriched submission record posted to the backend.
// Immutable once built; the phone fields are always internally consistent:
// PhoneDigits is the digit-only reduction of PhoneRaw and PhoneE164 the
// best-effort international form of the same input.
type Payload struct {
	FullName         string `json:"fullName"`
	Email            string `json:"email"`
	PhoneRaw         string `json:"phoneRaw"`
	PhoneDigits      string `json:"phoneDigits"`
	PhoneE164        string `json:"phoneE164"`
	ClaimType        string `json:"claimType"`
	IVARef           string `json:"ivaRef"`
	Notes            string `json:"notes"`
	ContactConsent   bool   `json:"contactConsent"`
	MarketingOptIn   bool   `json:"marketingOptIn"`
	ConsentTimestamp string `json:"consentTimestamp"`
	UTMSource        string `json:"utm_source"`
	UTMMedium        string `json:"utm_medium"`
	UTMCampaign      string `json:"utm_campaign"`
	UTMTerm          string `json:"utm_term"`
	UTMContent       string `json:"utm_content"`
	SourceURL        string `json:"source_url"`
	UserAgent        string `json:"userAgent"`
}

// buildPayload assembles the enriched payload from raw form values at
// submit time.
func buildPayload(in FormInput, norm *identity.Normalizer, now time.Time) Payload {
	return Payload{
		FullName:         trim(in.FullName),
		Email:            trim(in.Email),
		PhoneRaw:         trim(in.Phone),
		PhoneDigits:      identity.Digits(in.Phone),
		PhoneE164:        norm.E164(in.Phone),
		ClaimType:        in.ClaimType,
		IVARef:           trim(in.IVARef),
		Notes:            trim(in.Notes),
		ContactConsent:   in.ContactConsent,
		MarketingOptIn:   in.MarketingOptIn,
		ConsentTimestamp: now.UTC().Format(time.RFC3339),
		UTMSource:        in.UTMSource,
		UTMMedium:        in.UTMMedium,
		UTMCampaign:      in.UTMCampaign,
		UTMTerm:          in.UTMTerm,
		UTMContent:       in.UTMContent,
		SourceURL:        in.SourceURL,
		UserAgent:        in.UserAgent,
	}
}
