package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rubiojr/aurorax/pkg/api"
	"github.com/rubiojr/aurorax/pkg/log"
	"github.com/rubiojr/aurorax/pkg/progress"
)

// JobOptions tweak a single job.
type JobOptions struct {
	// ResponseFormat is a field-selection document. When set, results are
	// returned untyped through RawData instead of Data.
	ResponseFormat any
}

// Job is the handle of one search request. It is driven by a single
// goroutine; accessors may be called concurrently from others and return
// snapshots.
type Job[T any] struct {
	client         *Client
	domain         Domain[T]
	query          json.RawMessage
	responseFormat any
	log            *log.Logger

	mu              sync.RWMutex
	state           State
	id              string
	requestURL      string
	dataURL         string
	cancelRequested bool
	submitting      bool
	status          *StatusDocument
	data            []T
	raw             []map[string]any
}

// NewJob builds an unsubmitted handle. The query document is produced and
// validated here, before anything is sent.
func NewJob[T any](c *Client, d Domain[T], q QueryBuilder, opts JobOptions) (*Job[T], error) {
	doc, err := q.QueryDocument()
	if err != nil {
		return nil, fmt.Errorf("building %s query: %w", d.Name, err)
	}
	if !json.Valid(doc) {
		return nil, &ValidationError{Message: "query document is not valid JSON"}
	}
	if d.Validate != nil {
		if err := d.Validate(doc); err != nil {
			return nil, err
		}
	}
	return &Job[T]{
		client:         c,
		domain:         d,
		query:          append(json.RawMessage(nil), doc...),
		responseFormat: opts.ResponseFormat,
		log:            log.ForService("search:" + d.Name),
		state:          Unsubmitted,
	}, nil
}

// Resume returns a handle for a request submitted earlier, e.g. by another
// process. Its query is filled in from the first status fetch.
func Resume[T any](c *Client, d Domain[T], requestID string, opts JobOptions) *Job[T] {
	return &Job[T]{
		client:         c,
		domain:         d,
		responseFormat: opts.ResponseFormat,
		log:            log.ForService("search:" + d.Name),
		state:          Submitted,
		id:             requestID,
		requestURL:     c.url(d.RequestPath(requestID)),
	}
}

// Resubmit returns a new unsubmitted handle carrying the same query.
func (j *Job[T]) Resubmit() (*Job[T], error) {
	q := j.Query()
	if len(q) == 0 {
		return nil, &ValidationError{Message: "query unknown, fetch the status first"}
	}
	return NewJob(j.client, j.domain, RawQuery(q), JobOptions{ResponseFormat: j.responseFormat})
}

func (j *Job[T]) String() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return fmt.Sprintf("%sSearch(state=%s, request_id=%q)", j.domain.Name, j.state, j.id)
}

// Domain returns the job's domain descriptor.
func (j *Job[T]) Domain() Domain[T] { return j.domain }

func (j *Job[T]) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// ID is the server-assigned request id, "" before submission.
func (j *Job[T]) ID() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.id
}

func (j *Job[T]) RequestURL() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.requestURL
}

// DataURL is set once the job is Completed.
func (j *Job[T]) DataURL() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.dataURL
}

// Query returns a copy of the submitted query document.
func (j *Job[T]) Query() json.RawMessage {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append(json.RawMessage(nil), j.query...)
}

// LastStatus returns a copy of the last fetched status document, or nil.
func (j *Job[T]) LastStatus() *StatusDocument {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status.clone()
}

// Summary returns the metrics of the last fetched status document.
func (j *Job[T]) Summary() Summary {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return summarize(j.status)
}

// Logs returns the server log from the last status fetch.
func (j *Job[T]) Logs() []LogEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.status == nil {
		return nil
	}
	return append([]LogEntry(nil), j.status.Logs...)
}

// Data returns the typed results retrieved by GetData.
func (j *Job[T]) Data() []T {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]T(nil), j.data...)
}

// RawData returns the untyped results retrieved with a response format.
func (j *Job[T]) RawData() []map[string]any {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]map[string]any(nil), j.raw...)
}

// Submit posts the query. The server must answer 202 Accepted with a
// Location header whose last segment is the request id. Anything else
// moves the job to Errored; resubmitting requires a new handle.
func (j *Job[T]) Submit(ctx context.Context) error {
	j.mu.Lock()
	if j.state != Unsubmitted {
		st := j.state
		j.mu.Unlock()
		return fmt.Errorf("submit: job already %s", st)
	}
	if j.submitting {
		j.mu.Unlock()
		return errors.New("submit: already in progress")
	}
	j.submitting = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.submitting = false
		j.mu.Unlock()
	}()

	res, err := j.client.transport.Execute(ctx, &api.Request{
		Method:       http.MethodPost,
		URL:          j.client.url(j.domain.SearchPath()),
		Body:         j.query,
		NullResponse: true,
	})
	if err != nil {
		j.transition(evSubmitRejected)
		if api.IsHTTPError(err) {
			var apiErr *api.Error
			errors.As(err, &apiErr)
			return &SubmissionError{StatusCode: apiErr.StatusCode, Err: err}
		}
		return err
	}

	location := res.Header.Get("Location")
	if res.StatusCode != http.StatusAccepted || location == "" {
		j.transition(evSubmitRejected)
		return &SubmissionError{StatusCode: res.StatusCode}
	}

	j.mu.Lock()
	j.requestURL = location
	j.id = RequestIDFromURL(location)
	j.state = nextState(j.state, evSubmitAccepted)
	id := j.id
	j.mu.Unlock()

	j.log.Infof("request %s submitted", id)
	j.client.notifier.Notify(progress.Event{Domain: j.domain.Name, RequestID: id, Phase: progress.PhaseSubmitted})
	return nil
}

// FetchStatus performs one status fetch and applies it to the handle.
func (j *Job[T]) FetchStatus(ctx context.Context) (*StatusDocument, error) {
	statusURL, err := j.statusURL()
	if err != nil {
		return nil, err
	}
	doc, err := j.client.Poller().Status(ctx, statusURL)
	if err != nil {
		return nil, err
	}
	j.ApplyStatus(doc)
	return doc, nil
}

// CheckForData fetches the status and reports whether results are available.
func (j *Job[T]) CheckForData(ctx context.Context) (bool, error) {
	if _, err := j.FetchStatus(ctx); err != nil {
		return false, err
	}
	return j.State() == Completed, nil
}

// ApplyStatus updates the handle from a status document fetched elsewhere.
// Logs are replaced, never merged. Terminal states are never left.
func (j *Job[T]) ApplyStatus(doc *StatusDocument) {
	if doc == nil {
		return
	}
	snapshot := doc.clone()

	j.mu.Lock()
	defer j.mu.Unlock()

	j.status = snapshot
	if len(j.query) == 0 && len(snapshot.SearchRequest.Query) > 0 {
		j.query = append(json.RawMessage(nil), snapshot.SearchRequest.Query...)
	}

	prev := j.state
	switch {
	case snapshot.HasData():
		j.state = nextState(j.state, evDataAvailable)
	case snapshot.SearchResult.ErrorCondition && j.cancelRequested:
		j.state = nextState(j.state, evCancelAcknowledged)
	case snapshot.SearchResult.ErrorCondition:
		j.state = nextState(j.state, evErrorCondition)
	}
	if j.state == Completed && prev != Completed {
		j.dataURL = j.resolveDataURL(*snapshot.SearchResult.DataURI)
	}
	if j.state != prev {
		j.log.Debugf("request %s: %s -> %s", j.id, prev, j.state)
	}
}

// resolveDataURL prefers an absolute data_uri and otherwise derives the
// data endpoint from the request URL.
func (j *Job[T]) resolveDataURL(dataURI string) string {
	if strings.HasPrefix(dataURI, "http://") || strings.HasPrefix(dataURI, "https://") {
		return dataURI
	}
	return strings.TrimRight(j.requestURL, "/") + "/data"
}

// Wait blocks until the request completes, errors or is cancelled, polling
// with the client's intervals. ctx bounds the wait without touching the
// server-side request.
func (j *Job[T]) Wait(ctx context.Context) error {
	if st := j.State(); st.Terminal() {
		return nil
	}
	statusURL, err := j.statusURL()
	if err != nil {
		return err
	}
	_, err = j.client.Poller().Watch(ctx, statusURL, progress.PhaseWaiting, j.ApplyStatus)
	if err != nil {
		return err
	}
	j.client.notifier.Notify(progress.Event{
		Domain:    j.domain.Name,
		RequestID: j.ID(),
		Phase:     progress.PhaseCompleted,
		Message:   j.State().String(),
	})
	return nil
}

// CancelResult reports the outcome of Cancel.
type CancelResult struct {
	// State is the handle state after the call. A blocking cancel that lost
	// the race against completion reports Completed.
	State State
	// Status is the final status document of a blocking cancel, nil otherwise.
	Status *StatusDocument
}

// Cancel asks the server to abandon the request. The DELETE is always
// sent, even for terminal jobs, and the server may reject it. With block
// set, Cancel polls until the server reports data or its error condition.
func (j *Job[T]) Cancel(ctx context.Context, block bool) (*CancelResult, error) {
	statusURL, err := j.statusURL()
	if err != nil {
		return nil, err
	}

	poller := j.client.Poller()
	if err := poller.RequestCancel(ctx, statusURL); err != nil {
		return nil, err
	}

	// only an accepted DELETE turns a later error condition into Cancelled
	j.mu.Lock()
	if !j.state.Terminal() {
		j.cancelRequested = true
	}
	j.mu.Unlock()

	if !block {
		return &CancelResult{State: j.State()}, nil
	}
	doc, err := poller.awaitCancel(ctx, statusURL, j.ApplyStatus)
	if err != nil {
		return nil, err
	}
	return &CancelResult{State: j.State(), Status: doc}, nil
}

// GetData downloads the results of a Completed job. Typed records land in
// Data; with a response format the untyped documents land in RawData.
func (j *Job[T]) GetData(ctx context.Context) error {
	j.mu.RLock()
	state, dataURL, id := j.state, j.dataURL, j.id
	j.mu.RUnlock()
	if state != Completed {
		return fmt.Errorf("request %q is %s: %w", id, state, ErrNotCompleted)
	}

	j.client.notifier.Notify(progress.Event{Domain: j.domain.Name, RequestID: id, Phase: progress.PhaseRetrieving})
	retriever := j.client.Retriever()

	if j.responseFormat != nil {
		raw, err := retriever.Raw(ctx, dataURL, j.responseFormat)
		if err != nil {
			return err
		}
		j.mu.Lock()
		j.raw = raw
		j.mu.Unlock()
		j.retrieved(id, len(raw))
		return nil
	}

	records, err := retriever.Records(ctx, dataURL, j.domain.Fields)
	if err != nil {
		return err
	}
	data := make([]T, 0, len(records))
	for i, rec := range records {
		item, err := j.domain.Decode(rec)
		if err != nil {
			return fmt.Errorf("decoding %s result %d: %w", j.domain.Name, i, err)
		}
		data = append(data, item)
	}
	j.mu.Lock()
	j.data = data
	j.mu.Unlock()
	j.retrieved(id, len(data))
	return nil
}

func (j *Job[T]) retrieved(id string, n int) {
	j.log.Debugf("request %s: retrieved %d records", id, n)
	j.client.notifier.Notify(progress.Event{
		Domain:    j.domain.Name,
		RequestID: id,
		Phase:     progress.PhaseRetrieved,
		Message:   fmt.Sprintf("%d records", n),
	})
}

// Describe asks the server for an SQL-like rendering of the query.
func (j *Job[T]) Describe(ctx context.Context) (string, error) {
	return Describe(ctx, j.client, j.domain, RawQuery(j.Query()))
}

func (j *Job[T]) statusURL() (string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.id == "" {
		return "", ErrNotSubmitted
	}
	return j.client.url(j.domain.RequestPath(j.id)), nil
}

func (j *Job[T]) transition(ev event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = nextState(j.state, ev)
}

// Describe renders any query of domain d as the server's SQL-like string
// without submitting it.
func Describe[T any](ctx context.Context, c *Client, d Domain[T], q QueryBuilder) (string, error) {
	doc, err := q.QueryDocument()
	if err != nil {
		return "", err
	}
	res, err := c.transport.Execute(ctx, &api.Request{
		Method: http.MethodPost,
		URL:    c.url(d.DescribePath()),
		Body:   doc,
	})
	if err != nil {
		return "", fmt.Errorf("describing %s query: %w", d.Name, err)
	}
	var out string
	if err := res.Decode(&out); err != nil {
		return "", fmt.Errorf("describing %s query: %w", d.Name, err)
	}
	return out, nil
}
