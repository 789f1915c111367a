package search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rubiojr/aurorax/pkg/api"
	"github.com/rubiojr/aurorax/pkg/log"
	"github.com/rubiojr/aurorax/pkg/progress"
)

// Poller fetches request status documents, once or until a terminal
// condition. It keeps no per-request state, so one Poller can drive many
// requests from different goroutines.
type Poller struct {
	Transport     api.Transport
	Interval      time.Duration
	FirstInterval time.Duration
	Notifier      progress.Notifier
}

// Status performs a single status fetch. Unknown requests yield an error
// matching ErrNotFound.
func (p *Poller) Status(ctx context.Context, statusURL string) (*StatusDocument, error) {
	res, err := p.Transport.Execute(ctx, &api.Request{Method: http.MethodGet, URL: statusURL})
	if err != nil {
		return nil, fmt.Errorf("fetching status: %w", err)
	}
	var doc StatusDocument
	if err := res.Decode(&doc); err != nil {
		return nil, fmt.Errorf("fetching status: %w", err)
	}
	return &doc, nil
}

// Logs returns the complete server log of a request.
func (p *Poller) Logs(ctx context.Context, statusURL string) ([]LogEntry, error) {
	doc, err := p.Status(ctx, statusURL)
	if err != nil {
		return nil, err
	}
	return doc.Logs, nil
}

// WaitForData fetches the status until data is available or the error
// condition is set, sleeping between fetches. It only gives up early when
// ctx is done, in which case the server-side request keeps running.
func (p *Poller) WaitForData(ctx context.Context, statusURL string) (*StatusDocument, error) {
	return p.Watch(ctx, statusURL, progress.PhaseWaiting, nil)
}

// Watch is WaitForData with a callback receiving every fetched document,
// so a caller can keep its own snapshot current while the loop runs.
func (p *Poller) Watch(ctx context.Context, statusURL string, phase progress.Phase, onStatus func(*StatusDocument)) (*StatusDocument, error) {
	l := log.ForService("poller")
	id := RequestIDFromURL(statusURL)

	for attempt := 1; ; attempt++ {
		doc, err := p.Status(ctx, statusURL)
		if err != nil {
			return nil, err
		}
		if onStatus != nil {
			onStatus(doc)
		}
		l.Debugf("request %s poll #%d: data=%t error_condition=%t logs=%d",
			id, attempt, doc.HasData(), doc.SearchResult.ErrorCondition, len(doc.Logs))
		p.notify(progress.Event{RequestID: id, Phase: phase, Attempt: attempt, Message: doc.LastLog()})

		if doc.Terminal() {
			return doc, nil
		}
		if err := sleepCtx(ctx, p.delay(attempt)); err != nil {
			return nil, fmt.Errorf("waiting for request %s: %w", id, err)
		}
	}
}

// Cancel asks the server to abandon the request. With block set it then
// polls until the request reports data or its error condition, whichever
// comes first; a request that completes before the cancellation lands is
// returned as-is and is not an error. Without block the returned document
// is nil.
func (p *Poller) Cancel(ctx context.Context, statusURL string, block bool, onStatus func(*StatusDocument)) (*StatusDocument, error) {
	if err := p.RequestCancel(ctx, statusURL); err != nil {
		return nil, err
	}
	if !block {
		return nil, nil
	}
	return p.awaitCancel(ctx, statusURL, onStatus)
}

// RequestCancel sends the DELETE for a request and returns once the server
// accepted it.
func (p *Poller) RequestCancel(ctx context.Context, statusURL string) error {
	_, err := p.Transport.Execute(ctx, &api.Request{Method: http.MethodDelete, URL: statusURL, NullResponse: true})
	if err != nil {
		return fmt.Errorf("cancelling request: %w", err)
	}
	log.ForService("poller").Debugf("cancellation of request %s accepted", RequestIDFromURL(statusURL))
	return nil
}

func (p *Poller) awaitCancel(ctx context.Context, statusURL string, onStatus func(*StatusDocument)) (*StatusDocument, error) {
	doc, err := p.Watch(ctx, statusURL, progress.PhaseCancelling, onStatus)
	if err != nil {
		return nil, err
	}
	p.notify(progress.Event{RequestID: RequestIDFromURL(statusURL), Phase: progress.PhaseCancelled, Message: doc.LastLog()})
	return doc, nil
}

func (p *Poller) delay(attempt int) time.Duration {
	if attempt == 1 && p.FirstInterval > 0 {
		return p.FirstInterval
	}
	if p.Interval <= 0 {
		return DefaultPollInterval
	}
	return p.Interval
}

func (p *Poller) notify(e progress.Event) {
	if p.Notifier == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	p.Notifier.Notify(e)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
