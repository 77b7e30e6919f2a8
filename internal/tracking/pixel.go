package tracking

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/visiblelegal/lead-capture/internal/pkg/dispatch"
	"github.com/visiblelegal/lead-capture/internal/pkg/logger"
)

// PixelClient fires events against the advertising pixel endpoint. Load
// state is tracked per visitor: EnsureLoaded initializes the pixel
// (init + PageView) once for each visitor, and later calls for the same
// visitor are no-ops.
type PixelClient struct {
	pixelID string
	baseURL string
	client  dispatch.HTTPDoer
	timeout time.Duration

	mu     sync.Mutex
	loaded map[string]bool
}

// NewPixelClient creates a pixel client. If client is nil, a default
// http.Client with a 5s timeout is used.
func NewPixelClient(pixelID, baseURL string, client dispatch.HTTPDoer) *PixelClient {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &PixelClient{
		pixelID: pixelID,
		baseURL: baseURL,
		client:  client,
		timeout: 5 * time.Second,
		loaded:  make(map[string]bool),
	}
}

// Loaded reports whether the pixel has been initialized for the visitor.
func (p *PixelClient) Loaded(visitorID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded[visitorID]
}

// EnsureLoaded initializes the pixel once per visitor: the visitor's first
// call fires the implicit PageView, subsequent calls are no-ops. Callers
// are responsible for the consent gate; this client never checks it.
func (p *PixelClient) EnsureLoaded(v Visitor) {
	p.mu.Lock()
	if p.loaded[v.ID] {
		p.mu.Unlock()
		return
	}
	p.loaded[v.ID] = true
	p.mu.Unlock()

	p.fire(v, "PageView", CustomData{}, "")
	logger.Debug("pixel loaded", "pixel_id", p.pixelID, "visitor", v.ID)
}

// Track fires a named pixel event, attaching eventID for cross-channel
// deduplication when provided. Transport failures are logged and swallowed.
func (p *PixelClient) Track(v Visitor, name string, custom CustomData, eventID string) {
	p.EnsureLoaded(v)
	p.fire(v, name, custom, eventID)
}

// fire issues one pixel call. The pixel endpoint accepts events as a GET
// with query parameters.
func (p *PixelClient) fire(v Visitor, name string, custom CustomData, eventID string) {
	q := url.Values{}
	q.Set("id", p.pixelID)
	q.Set("ev", name)
	if eventID != "" {
		q.Set("eid", eventID)
	}
	if v.PageURL != "" {
		q.Set("dl", v.PageURL)
	}
	if custom.ContentCategory != "" {
		q.Set("cd[content_category]", custom.ContentCategory)
	}
	if custom.ContentName != "" {
		q.Set("cd[content_name]", custom.ContentName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/tr?"+q.Encode(), nil)
	if err != nil {
		logger.Warn("pixel request build failed", "event", name, "error", err.Error())
		return
	}
	if v.UserAgent != "" {
		req.Header.Set("User-Agent", v.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Warn("pixel call failed", "event", name, "error", err.Error())
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
