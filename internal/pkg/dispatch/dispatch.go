// Package dispatch provides best-effort JSON delivery for tracking and
// webhook relays. Deliveries are single-attempt with no retry or backoff:
// a lost tracking event is an accepted bounded data-loss window, never an
// error surfaced to the caller.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/visiblelegal/lead-capture/internal/pkg/logger"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and test doubles satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher posts JSON payloads to webhook endpoints.
type Dispatcher struct {
	client  HTTPDoer
	timeout time.Duration

	wg sync.WaitGroup
}

// New creates a Dispatcher. If client is nil, a default http.Client with a
// 10s timeout is used.
func New(client HTTPDoer) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Dispatcher{client: client, timeout: 10 * time.Second}
}

// Post sends payload as JSON to url and waits for the response. A non-2xx
// status or transport error is returned to the caller; the body is drained
// for connection reuse either way.
func (d *Dispatcher) Post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return &DeliveryError{URL: url, Err: err}
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{URL: url, StatusCode: resp.StatusCode}
	}
	return nil
}

// PostDetached sends payload as JSON to url without tying delivery to the
// caller's lifetime: the request runs on its own timeout context, so it
// survives the end of the initiating operation (the keepalive delivery
// mode). Failures are logged and swallowed; there is no delivery
// confirmation and no retry.
func (d *Dispatcher) PostDetached(url string, payload any) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.Post(ctx, url, payload); err != nil {
			logger.Warn("best-effort delivery failed", "url", url, "error", err.Error())
		}
	}()
}

// Wait blocks until all detached deliveries have completed. Used at
// shutdown and in tests; normal operation never waits.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
