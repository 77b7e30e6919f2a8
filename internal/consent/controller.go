package consent

import (
	"context"
	"strings"

	"github.com/visiblelegal/lead-capture/internal/pkg/logger"
)

// Prompt is the narrow interface the controller uses to drive the consent
// banner in the UI shell. A nil Prompt degrades every show/hide to a no-op
// with a diagnostic, never a failure.
type Prompt interface {
	Show(visitorID string)
	Hide(visitorID string)
}

// Controller is the consent state machine. It owns the three transitions a
// visitor can make (accept, reject, manage) and the boot decision of
// whether the prompt appears.
type Controller struct {
	store          Store
	signal         AnalyticsSignal
	prompt         Prompt
	measurementID  string
	cookiePagePath string
	debug          bool
}

// ControllerOpts configures a Controller.
type ControllerOpts struct {
	Store  Store
	Signal AnalyticsSignal
	// Prompt may be nil when the UI shell drives the banner itself from
	// BootResult.
	Prompt        Prompt
	MeasurementID string
	// CookiePagePath is the policy page that suppresses automatic
	// prompting even when the decision is unset.
	CookiePagePath string
	Debug          bool
}

// NewController builds the state machine.
func NewController(opts ControllerOpts) *Controller {
	return &Controller{
		store:          opts.Store,
		signal:         opts.Signal,
		prompt:         opts.Prompt,
		measurementID:  opts.MeasurementID,
		cookiePagePath: opts.CookiePagePath,
		debug:          opts.Debug,
	}
}

// BootResult tells the UI shell what to do on page load.
type BootResult struct {
	Decision   Decision `json:"decision"`
	ShowPrompt bool     `json:"show_prompt"`
}

// Decision returns the visitor's current consent state, re-read from
// storage.
func (c *Controller) Decision(ctx context.Context, visitorID string) Decision {
	return c.store.Get(ctx, visitorID)
}

// Boot applies the persisted decision on page load: emit the analytics
// consent signal, and decide whether the prompt shows. An unset decision
// shows the prompt, except on the cookie-policy page, where a visitor who
// is actively reading the policy is not interrupted; there the prompt only
// appears via an explicit Manage.
func (c *Controller) Boot(ctx context.Context, visitorID, pagePath string) BootResult {
	d := c.store.Get(ctx, visitorID)

	switch d {
	case Accepted:
		c.signal.ConsentUpdate(true)
		c.signal.Configure(c.measurementID, c.debug)
		c.hidePrompt(visitorID)
		return BootResult{Decision: d, ShowPrompt: false}
	case Rejected:
		c.signal.ConsentUpdate(false)
		c.hidePrompt(visitorID)
		return BootResult{Decision: d, ShowPrompt: false}
	default:
		if c.isCookiePage(pagePath) {
			logger.Debug("consent unset on policy page, prompt suppressed", "visitor", visitorID, "path", pagePath)
			c.hidePrompt(visitorID)
			return BootResult{Decision: d, ShowPrompt: false}
		}
		c.showPrompt(visitorID)
		return BootResult{Decision: d, ShowPrompt: true}
	}
}

// Accept records an explicit acceptance, grants the analytics signal,
// emits the measurement configuration, and hides the prompt.
func (c *Controller) Accept(ctx context.Context, visitorID string) error {
	if err := c.store.Set(ctx, visitorID, Accepted); err != nil {
		return err
	}
	c.signal.ConsentUpdate(true)
	c.signal.Configure(c.measurementID, c.debug)
	c.hidePrompt(visitorID)
	logger.Info("consent accepted", "visitor", visitorID)
	return nil
}

// Reject records an explicit rejection, denies the analytics signal, and
// hides the prompt.
func (c *Controller) Reject(ctx context.Context, visitorID string) error {
	if err := c.store.Set(ctx, visitorID, Rejected); err != nil {
		return err
	}
	c.signal.ConsentUpdate(false)
	c.hidePrompt(visitorID)
	logger.Info("consent rejected", "visitor", visitorID)
	return nil
}

// Manage re-shows the prompt without touching the stored decision. The
// previous choice stays in force until the visitor records a new one.
func (c *Controller) Manage(ctx context.Context, visitorID string) BootResult {
	d := c.store.Get(ctx, visitorID)
	c.showPrompt(visitorID)
	return BootResult{Decision: d, ShowPrompt: true}
}

func (c *Controller) isCookiePage(pagePath string) bool {
	if c.cookiePagePath == "" || pagePath == "" {
		return false
	}
	trimmed := strings.TrimSuffix(c.cookiePagePath, "/")
	return strings.Contains(pagePath, c.cookiePagePath) || pagePath == trimmed
}

func (c *Controller) showPrompt(visitorID string) {
	if c.prompt == nil {
		logger.Debug("no prompt bound, show skipped", "visitor", visitorID)
		return
	}
	c.prompt.Show(visitorID)
}

func (c *Controller) hidePrompt(visitorID string) {
	if c.prompt == nil {
		return
	}
	c.prompt.Hide(visitorID)
}
