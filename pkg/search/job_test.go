package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rubiojr/aurorax/pkg/api"
	"github.com/rubiojr/aurorax/pkg/apitest"
	"github.com/rubiojr/aurorax/pkg/progress"
)

var testDomain = Domain[Record]{
	Name:         "ephemeris",
	DescribeName: "ephemeris",
	Fields:       BaseFields,
	Decode:       func(r Record) (Record, error) { return r, nil },
}

const testQuery = `{"data_sources":{"programs":["swarm"]},"start":"2020-01-01T00:00:00","end":"2020-01-01T23:59:59"}`

func newTestClient(t *testing.T, srv *apitest.Server, opts ...Option) *Client {
	t.Helper()
	transport := api.NewClient(api.Options{BaseURL: srv.URL, APIKey: "test-key"})
	base := []Option{WithPollInterval(5 * time.Millisecond), WithFirstPollInterval(time.Millisecond)}
	return NewClient(transport, srv.URL, append(base, opts...)...)
}

func newTestJob(t *testing.T, c *Client, opts JobOptions) *Job[Record] {
	t.Helper()
	job, err := NewJob(c, testDomain, RawQuery(testQuery), opts)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return job
}

func submitted(t *testing.T, srv *apitest.Server, script apitest.Script, opts ...Option) (*Job[Record], *Client) {
	t.Helper()
	srv.NextScript = func(string, json.RawMessage) apitest.Script { return script }
	c := newTestClient(t, srv, opts...)
	job := newTestJob(t, c, JobOptions{})
	if err := job.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return job, c
}

func TestSubmit(t *testing.T) {
	srv := apitest.New(t)
	job, _ := submitted(t, srv, apitest.Script{CompleteAfter: 2})

	if job.State() != Submitted {
		t.Errorf("state = %s, want submitted", job.State())
	}
	if job.ID() == "" {
		t.Fatal("empty request id")
	}
	if _, ok := srv.Request(job.ID()); !ok {
		t.Errorf("server does not know request %s", job.ID())
	}
	if job.RequestURL() != srv.RequestURL("ephemeris", job.ID()) {
		t.Errorf("request url = %s", job.RequestURL())
	}

	calls := srv.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if !strings.HasPrefix(calls[0].UserAgent, "go-aurorax/") {
		t.Errorf("user agent = %q", calls[0].UserAgent)
	}
	if calls[0].APIKey != "test-key" || calls[0].RequestID == "" {
		t.Errorf("headers not set: %+v", calls[0])
	}

	if err := job.Submit(context.Background()); err == nil {
		t.Error("second submit on the same handle should fail")
	}
}

func TestSubmitRejected(t *testing.T) {
	srv := apitest.New(t)
	srv.SubmitStatus = http.StatusBadRequest
	job := newTestJob(t, newTestClient(t, srv), JobOptions{})

	err := job.Submit(context.Background())
	if !errors.Is(err, ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
	var subErr *SubmissionError
	if !errors.As(err, &subErr) || subErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status code not carried: %v", err)
	}
	if job.State() != Errored {
		t.Errorf("state = %s, want errored", job.State())
	}
	if err := job.Submit(context.Background()); err == nil {
		t.Error("errored handle accepted a resubmission")
	}

	again, err := job.Resubmit()
	if err != nil {
		t.Fatalf("Resubmit: %v", err)
	}
	if again.State() != Unsubmitted || string(again.Query()) != testQuery {
		t.Errorf("resubmitted handle = %s, query %s", again, again.Query())
	}
}

func TestSubmitWithoutLocation(t *testing.T) {
	srv := apitest.New(t)
	srv.OmitLocation = true
	job := newTestJob(t, newTestClient(t, srv), JobOptions{})

	if err := job.Submit(context.Background()); !errors.Is(err, ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
	if job.State() != Errored {
		t.Errorf("state = %s", job.State())
	}
}

func TestValidationBeforeNetwork(t *testing.T) {
	srv := apitest.New(t)
	d := testDomain
	d.Validate = func(json.RawMessage) error { return &ValidationError{Message: "nope"} }

	if _, err := NewJob(newTestClient(t, srv), d, RawQuery(testQuery), JobOptions{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := NewJob(newTestClient(t, srv), testDomain, RawQuery(`{"broken"`), JobOptions{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for malformed JSON, got %v", err)
	}
	if n := len(srv.Calls()); n != 0 {
		t.Errorf("%d calls reached the server", n)
	}
}

func TestWaitPollsUntilData(t *testing.T) {
	srv := apitest.New(t)
	job, _ := submitted(t, srv, apitest.Script{
		CompleteAfter: 3,
		Results:       []map[string]any{{"epoch": "2020-01-01T00:00:00"}},
	})

	if err := job.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n := srv.CountCalls(http.MethodGet, "/api/v1/ephemeris/requests/"); n != 3 {
		t.Errorf("status fetched %d times, want 3", n)
	}
	if job.State() != Completed {
		t.Errorf("state = %s", job.State())
	}
	if job.DataURL() != job.RequestURL()+"/data" {
		t.Errorf("data url = %s", job.DataURL())
	}
	// Logs are the last document's, not an accumulation across polls.
	if got := len(job.Logs()); got != 4 {
		t.Errorf("got %d log entries, want 4", got)
	}
	if s := job.Summary(); s.ResultCount != 1 || s.QueryDurationMs == 0 {
		t.Errorf("summary = %+v", s)
	}

	if err := job.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if n := srv.CountCalls(http.MethodGet, "/api/v1/ephemeris/requests/"); n != 3 {
		t.Errorf("Wait on a terminal job polled again")
	}
}

func TestWaitBeforeSubmit(t *testing.T) {
	srv := apitest.New(t)
	job := newTestJob(t, newTestClient(t, srv), JobOptions{})
	if err := job.Wait(context.Background()); !errors.Is(err, ErrNotSubmitted) {
		t.Errorf("expected ErrNotSubmitted, got %v", err)
	}
	if _, err := job.Cancel(context.Background(), false); !errors.Is(err, ErrNotSubmitted) {
		t.Errorf("expected ErrNotSubmitted, got %v", err)
	}
}

func TestWaitErrorCondition(t *testing.T) {
	srv := apitest.New(t)
	job, _ := submitted(t, srv, apitest.Script{CompleteAfter: 2, Fail: true})

	if err := job.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if job.State() != Errored {
		t.Errorf("state = %s, want errored", job.State())
	}
	if !job.Summary().ErrorCondition {
		t.Error("summary should carry the error condition")
	}
	if err := job.GetData(context.Background()); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("GetData on errored job: %v", err)
	}
}

func TestWaitContextCancelled(t *testing.T) {
	srv := apitest.New(t)
	job, _ := submitted(t, srv, apitest.Script{CompleteAfter: 1 << 20})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := job.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if job.State() != Submitted {
		t.Errorf("state = %s, want submitted", job.State())
	}
	if n := srv.CountCalls(http.MethodDelete, "/"); n != 0 {
		t.Errorf("abandoning a wait must not cancel server-side, got %d DELETEs", n)
	}
}

func TestApplyStatus(t *testing.T) {
	c := NewClient(nil, "http://localhost")
	job := Resume(c, testDomain, "abc", JobOptions{})

	pending := &StatusDocument{Logs: []LogEntry{{Message: "a"}, {Message: "b"}, {Message: "c"}}}
	job.ApplyStatus(pending)
	job.ApplyStatus(pending)
	if job.State() != Submitted || len(job.Logs()) != 3 {
		t.Errorf("applying the same document twice changed the handle: %s, %d logs", job.State(), len(job.Logs()))
	}

	uri := "data"
	done := &StatusDocument{SearchResult: ResultInfo{DataURI: &uri}, Logs: []LogEntry{{Message: "done"}}}
	job.ApplyStatus(done)
	if job.State() != Completed {
		t.Fatalf("state = %s", job.State())
	}
	if logs := job.Logs(); len(logs) != 1 || logs[0].Message != "done" {
		t.Errorf("logs not replaced: %+v", logs)
	}
	if job.DataURL() != "http://localhost/api/v1/ephemeris/requests/abc/data" {
		t.Errorf("data url = %s", job.DataURL())
	}

	job.ApplyStatus(&StatusDocument{SearchResult: ResultInfo{ErrorCondition: true}})
	if job.State() != Completed {
		t.Errorf("terminal state left: %s", job.State())
	}

	if st := job.LastStatus(); !st.SearchResult.ErrorCondition {
		t.Errorf("last status should still be recorded, got %+v", st.SearchResult)
	}
}

func TestAbsoluteDataURI(t *testing.T) {
	job := Resume(NewClient(nil, "http://localhost"), testDomain, "abc", JobOptions{})
	uri := "https://cdn.example.org/results/abc.json"
	job.ApplyStatus(&StatusDocument{SearchResult: ResultInfo{DataURI: &uri}})
	if job.DataURL() != uri {
		t.Errorf("data url = %s", job.DataURL())
	}
}

func TestCancelBlocking(t *testing.T) {
	srv := apitest.New(t)
	job, _ := submitted(t, srv, apitest.Script{CompleteAfter: 1 << 20})

	res, err := job.Cancel(context.Background(), true)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if res.State != Cancelled || job.State() != Cancelled {
		t.Errorf("state = %s / %s, want cancelled", res.State, job.State())
	}
	if res.Status == nil || !res.Status.SearchResult.ErrorCondition {
		t.Errorf("final status = %+v", res.Status)
	}
	if n := srv.CountCalls(http.MethodDelete, "/api/v1/ephemeris/requests/"); n != 1 {
		t.Errorf("%d DELETEs, want 1", n)
	}
}

func TestCancelNonBlocking(t *testing.T) {
	srv := apitest.New(t)
	job, _ := submitted(t, srv, apitest.Script{CompleteAfter: 1 << 20})

	res, err := job.Cancel(context.Background(), false)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if res.State != Submitted || res.Status != nil {
		t.Errorf("non-blocking cancel = %+v", res)
	}
	req, _ := srv.Request(job.ID())
	if !req.Cancelled {
		t.Error("server did not receive the cancellation")
	}
	if n := srv.CountCalls(http.MethodGet, "/"); n != 0 {
		t.Errorf("non-blocking cancel polled %d times", n)
	}

	if err := job.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if job.State() != Cancelled {
		t.Errorf("state after wait = %s, want cancelled", job.State())
	}
}

func TestCancelLosesRace(t *testing.T) {
	srv := apitest.New(t)
	job, _ := submitted(t, srv, apitest.Script{
		CompleteAfter: 1,
		IgnoreCancel:  true,
		Results:       []map[string]any{{"epoch": "2020-01-01T00:00:00"}},
	})

	res, err := job.Cancel(context.Background(), true)
	if err != nil {
		t.Fatalf("a cancel that loses the race is not an error: %v", err)
	}
	if res.State != Completed {
		t.Errorf("state = %s, want completed", res.State)
	}
	if err := job.GetData(context.Background()); err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if len(job.Data()) != 1 {
		t.Errorf("data = %v", job.Data())
	}
}

func TestCancelTerminalStillSends(t *testing.T) {
	srv := apitest.New(t)
	job, _ := submitted(t, srv, apitest.Script{CompleteAfter: 1})
	if err := job.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := job.Cancel(context.Background(), false); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if n := srv.CountCalls(http.MethodDelete, "/"); n != 1 {
		t.Errorf("%d DELETEs, want 1", n)
	}
	if job.State() != Completed {
		t.Errorf("state = %s", job.State())
	}
}

func TestCancelFailedDeleteKeepsErrorCondition(t *testing.T) {
	tr := &scriptedTransport{responses: []any{errors.New("connection reset by peer"), failedDoc}}
	c := NewClient(tr, "http://x")
	job := Resume(c, testDomain, "abc", JobOptions{})

	if _, err := job.Cancel(context.Background(), false); err == nil {
		t.Fatal("expected the failed DELETE to be reported")
	}
	if job.State() != Submitted {
		t.Fatalf("state after failed cancel = %s", job.State())
	}
	if _, err := job.FetchStatus(context.Background()); err != nil {
		t.Fatal(err)
	}
	if job.State() != Errored {
		t.Errorf("state = %s, want errored", job.State())
	}
}

// gatedTransport holds every request until release is closed.
type gatedTransport struct {
	entered chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (g *gatedTransport) Execute(ctx context.Context, req *api.Request) (*api.Response, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.entered <- struct{}{}
	<-g.release
	h := http.Header{}
	h.Set("Location", "http://x/api/v1/ephemeris/requests/abc")
	return &api.Response{StatusCode: http.StatusAccepted, Header: h}, nil
}

func TestSubmitConcurrentCallsPostOnce(t *testing.T) {
	tr := &gatedTransport{entered: make(chan struct{}, 2), release: make(chan struct{})}
	job := newTestJob(t, NewClient(tr, "http://x"), JobOptions{})

	first := make(chan error, 1)
	go func() { first <- job.Submit(context.Background()) }()
	<-tr.entered

	if err := job.Submit(context.Background()); err == nil {
		t.Error("second Submit during an in-flight POST succeeded")
	}
	close(tr.release)
	if err := <-first; err != nil {
		t.Fatalf("Submit: %v", err)
	}

	tr.mu.Lock()
	calls := tr.calls
	tr.mu.Unlock()
	if calls != 1 {
		t.Errorf("%d POSTs, want 1", calls)
	}
	if job.ID() != "abc" || job.State() != Submitted {
		t.Errorf("job = %s", job)
	}
	if err := job.Submit(context.Background()); err == nil {
		t.Error("resubmitting a submitted job succeeded")
	}
}

func TestFetchStatusIdempotent(t *testing.T) {
	tr := &scriptedTransport{responses: []any{pendingDoc}}
	job := Resume(NewClient(tr, "http://x"), testDomain, "abc", JobOptions{})

	first, err := job.FetchStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	before := job.LastStatus()
	second, err := job.FetchStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("status changed between fetches:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(before, job.LastStatus()) {
		t.Errorf("last status changed: %+v -> %+v", before, job.LastStatus())
	}
	if job.State() != Submitted {
		t.Errorf("state = %s", job.State())
	}
}

func TestGetData(t *testing.T) {
	srv := apitest.New(t)
	job, _ := submitted(t, srv, apitest.Script{
		CompleteAfter: 1,
		Results: []map[string]any{
			{"epoch": "2020-01-01T00:00:00", "location_geo": map[string]any{"lat": 51.0, "lon": -114.0}},
			{"epoch": "2020-01-01T00:01:00", "location_geo": map[string]any{"lat": nil, "lon": nil}},
		},
	})

	if err := job.GetData(context.Background()); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("GetData before completion: %v", err)
	}
	if err := job.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := job.GetData(context.Background()); err != nil {
		t.Fatalf("GetData: %v", err)
	}

	data := job.Data()
	if len(data) != 2 {
		t.Fatalf("got %d records", len(data))
	}
	if !data[1].Time("epoch").Equal(time.Date(2020, 1, 1, 0, 1, 0, 0, time.UTC)) {
		t.Errorf("epoch = %v", data[1]["epoch"])
	}
	if l := data[0].Location("location_geo"); l == nil || l.Lat != 51 {
		t.Errorf("location = %v", l)
	}
	if data[1].Location("location_geo") != nil {
		t.Errorf("null location should be nil")
	}
}

func TestGetDataErrors(t *testing.T) {
	tests := []struct {
		name   string
		script apitest.Script
		code   string
	}{
		{"error object", apitest.Script{DataError: &apitest.ErrorBody{ErrorCode: "EXPIRED", ErrorMessage: "result file removed"}}, "EXPIRED"},
		{"not found", apitest.Script{Expired: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apitest.New(t)
			tt.script.CompleteAfter = 1
			job, _ := submitted(t, srv, tt.script)
			if err := job.Wait(context.Background()); err != nil {
				t.Fatal(err)
			}

			err := job.GetData(context.Background())
			if !errors.Is(err, ErrDataRetrieval) {
				t.Fatalf("expected data retrieval error, got %v", err)
			}
			var drErr *DataRetrievalError
			if !errors.As(err, &drErr) || drErr.Code != tt.code {
				t.Errorf("error = %#v", err)
			}
			if job.State() != Completed {
				t.Errorf("a retrieval failure must not change the state, got %s", job.State())
			}
		})
	}
}

func TestGetDataResponseFormat(t *testing.T) {
	srv := apitest.New(t)
	srv.NextScript = func(string, json.RawMessage) apitest.Script {
		return apitest.Script{CompleteAfter: 1, Results: []map[string]any{
			{"epoch": "2020-01-01T00:00:00", "nbtrace": map[string]any{"lat": 1.0, "lon": 2.0}},
		}}
	}
	c := newTestClient(t, srv)
	job := newTestJob(t, c, JobOptions{ResponseFormat: map[string]any{"epoch": true}})
	if err := job.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := job.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := job.GetData(context.Background()); err != nil {
		t.Fatalf("GetData: %v", err)
	}

	raw := job.RawData()
	if len(raw) != 1 || raw[0]["epoch"] != "2020-01-01T00:00:00" {
		t.Errorf("raw data = %v", raw)
	}
	if _, ok := raw[0]["nbtrace"]; ok {
		t.Error("response format was not applied")
	}
	if len(job.Data()) != 0 {
		t.Error("typed data should stay empty with a response format")
	}
	if n := srv.CountCalls(http.MethodPost, "/api/v1/ephemeris/requests/"); n != 1 {
		t.Errorf("expected one POST to the data URL, got %d", n)
	}
}

func TestStatusNotFound(t *testing.T) {
	srv := apitest.New(t)
	job := Resume(newTestClient(t, srv), testDomain, "missing", JobOptions{})
	if _, err := job.FetchStatus(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMaintenance(t *testing.T) {
	srv := apitest.New(t)
	srv.Maintenance = true
	job := Resume(newTestClient(t, srv), testDomain, "abc", JobOptions{})
	if _, err := job.FetchStatus(context.Background()); !errors.Is(err, ErrMaintenance) {
		t.Errorf("expected ErrMaintenance, got %v", err)
	}
}

func TestResume(t *testing.T) {
	srv := apitest.New(t)
	id := srv.AddRequest("ephemeris", json.RawMessage(testQuery), apitest.Script{CompleteAfter: 2})

	job := Resume(newTestClient(t, srv), testDomain, id, JobOptions{})
	if job.State() != Submitted {
		t.Errorf("resumed state = %s", job.State())
	}
	done, err := job.CheckForData(context.Background())
	if err != nil || done {
		t.Fatalf("CheckForData = %t, %v", done, err)
	}
	if string(job.Query()) != testQuery {
		t.Errorf("query not recovered from status: %s", job.Query())
	}
	done, err = job.CheckForData(context.Background())
	if err != nil || !done {
		t.Fatalf("CheckForData = %t, %v", done, err)
	}
}

func TestDescribe(t *testing.T) {
	srv := apitest.New(t)
	job := newTestJob(t, newTestClient(t, srv), JobOptions{})
	desc, err := job.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if desc != "Find ephemeris WHERE data_sources AND end AND start" {
		t.Errorf("describe = %q", desc)
	}
	if job.State() != Unsubmitted {
		t.Error("describe must not submit")
	}
}

func TestRun(t *testing.T) {
	srv := apitest.New(t)
	srv.NextScript = func(string, json.RawMessage) apitest.Script {
		return apitest.Script{CompleteAfter: 2, Results: []map[string]any{{"epoch": "2020-01-01T00:00:00"}}}
	}
	c := newTestClient(t, srv)

	job, err := Run(context.Background(), c, testDomain, RawQuery(testQuery), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.State() != Completed || len(job.Data()) != 1 {
		t.Errorf("job = %s with %d records", job, len(job.Data()))
	}

	job, err = Run(context.Background(), c, testDomain, RawQuery(testQuery), RunOptions{ReturnImmediately: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.State() != Submitted {
		t.Errorf("ReturnImmediately state = %s", job.State())
	}
}

func TestRunFailed(t *testing.T) {
	srv := apitest.New(t)
	srv.NextScript = func(string, json.RawMessage) apitest.Script {
		return apitest.Script{CompleteAfter: 1, Fail: true}
	}
	job, err := Run(context.Background(), newTestClient(t, srv), testDomain, RawQuery(testQuery), RunOptions{})
	if !errors.Is(err, ErrSearchFailed) {
		t.Fatalf("expected search failed, got %v", err)
	}
	var sfErr *SearchFailedError
	if !errors.As(err, &sfErr) || sfErr.Summary != "search failed: query timed out" || sfErr.RequestID != job.ID() {
		t.Errorf("error = %#v", err)
	}
	if n := srv.CountCalls(http.MethodGet, "/api/v1/ephemeris/requests/"+job.ID()+"/data"); n != 0 {
		t.Error("data fetched for a failed search")
	}
}

func TestWaitAll(t *testing.T) {
	srv := apitest.New(t)
	var jobs []Waiter
	var handles []*Job[Record]
	for i := 1; i <= 4; i++ {
		job, _ := submitted(t, srv, apitest.Script{CompleteAfter: i})
		jobs = append(jobs, job)
		handles = append(handles, job)
	}

	if err := WaitAll(context.Background(), 2, jobs...); err != nil {
		t.Fatalf("WaitAll: %v", err)
	}
	for _, h := range handles {
		if h.State() != Completed {
			t.Errorf("%s not completed", h)
		}
	}

	missing := Resume(newTestClient(t, srv), testDomain, "missing", JobOptions{})
	pending, _ := submitted(t, srv, apitest.Script{CompleteAfter: 1 << 20})
	if err := WaitAll(context.Background(), 0, pending, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected the not-found error to surface, got %v", err)
	}
}

func TestConcurrentReaders(t *testing.T) {
	srv := apitest.New(t)
	job, _ := submitted(t, srv, apitest.Script{CompleteAfter: 5})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = job.State()
					_ = job.Logs()
					_ = job.Summary()
					_ = job.LastStatus()
				}
			}
		}()
	}

	err := job.Wait(context.Background())
	close(stop)
	wg.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestProgressEvents(t *testing.T) {
	srv := apitest.New(t)
	var mu sync.Mutex
	var phases []progress.Phase
	rec := progress.NotifierFunc(func(e progress.Event) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, e.Phase)
	})

	job, _ := submitted(t, srv, apitest.Script{CompleteAfter: 2}, WithNotifier(rec))
	if err := job.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []progress.Phase{progress.PhaseSubmitted, progress.PhaseWaiting, progress.PhaseWaiting, progress.PhaseCompleted}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phase %d = %s, want %s", i, phases[i], want[i])
		}
	}
}
