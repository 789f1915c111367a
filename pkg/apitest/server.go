// Package apitest runs an in-process fake of the AuroraX search API for
// tests. Requests are scripted: each one completes, fails or honours a
// cancellation after a configurable number of status fetches.
package apitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Domains served by the fake.
var Domains = []string{"conjunctions", "ephemeris", "data_products"}

// Script controls how one search request behaves.
type Script struct {
	// CompleteAfter is the status fetch (1-based) that first reports a
	// terminal state. Zero or one means the first fetch is terminal.
	CompleteAfter int

	// Fail finishes the request with its error condition set.
	Fail bool

	// IgnoreCancel lets the request complete even when cancelled.
	IgnoreCancel bool

	// Results is served from the data endpoint.
	Results []map[string]any

	// DataError makes the data endpoint answer with an error object.
	DataError *ErrorBody

	// Expired makes the data endpoint answer 404.
	Expired bool
}

// ErrorBody is the API's error object.
type ErrorBody struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Request is the fake's record of one search request.
type Request struct {
	ID          string
	Domain      string
	Query       json.RawMessage
	Script      Script
	Requested   time.Time
	StatusCalls int
	Cancelled   bool
	Deleted     bool
	IPAddress   string
}

// Call is one HTTP request received by the fake.
type Call struct {
	Method    string
	Path      string
	Query     string
	UserAgent string
	APIKey    string
	RequestID string
	Body      []byte
}

// Server is the fake API. Configure the exported fields before issuing
// requests; they are read under the server lock.
type Server struct {
	*httptest.Server

	// NextScript is applied to submissions. Nil means complete on the
	// second fetch with no results.
	NextScript func(domain string, query json.RawMessage) Script

	// SubmitStatus overrides the submission response status when non-zero.
	SubmitStatus int

	// OmitLocation drops the Location header from accepted submissions.
	OmitLocation bool

	// AdminKey is required by the admin endpoints. Empty rejects every
	// admin call with 401.
	AdminKey string

	// Maintenance answers every call with 503 maintenance mode.
	Maintenance bool

	mu       sync.Mutex
	requests map[string]*Request
	order    []string
	calls    []Call
}

// New starts a fake server closed at test cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{requests: make(map[string]*Request)}
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// RegisterRoutes wires the API endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/{domain}/search", s.handleSubmit)
	mux.HandleFunc("GET /api/v1/{domain}/requests/{id}", s.handleStatus)
	mux.HandleFunc("DELETE /api/v1/{domain}/requests/{id}", s.handleCancel)
	mux.HandleFunc("GET /api/v1/{domain}/requests/{id}/data", s.handleData)
	mux.HandleFunc("POST /api/v1/{domain}/requests/{id}/data", s.handleData)
	mux.HandleFunc("POST /api/v1/utils/describe/query/{name}", s.handleDescribe)
	mux.HandleFunc("GET /api/v1/utils/admin/search_requests", s.handleAdminList)
	mux.HandleFunc("DELETE /api/v1/utils/admin/search_requests/{id}", s.handleAdminDelete)
}

// AddRequest registers a request as if it had been submitted earlier and
// returns its id.
func (s *Server) AddRequest(domain string, query json.RawMessage, script Script) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(domain, query, script, "127.0.0.1").ID
}

func (s *Server) addLocked(domain string, query json.RawMessage, script Script, ip string) *Request {
	req := &Request{
		ID:        uuid.NewString(),
		Domain:    domain,
		Query:     append(json.RawMessage(nil), query...),
		Script:    script,
		Requested: time.Now().UTC(),
		IPAddress: ip,
	}
	s.requests[req.ID] = req
	s.order = append(s.order, req.ID)
	return req
}

// Request returns a copy of the request with the given id.
func (s *Server) Request(id string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// Calls returns the calls received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CountCalls counts calls with the given method whose path has prefix.
func (s *Server) CountCalls(method, prefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// RequestURL is the status URL of request id.
func (s *Server) RequestURL(domain, id string) string {
	return fmt.Sprintf("%s/api/v1/%s/requests/%s", s.URL, domain, id)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			UserAgent: r.Header.Get("User-Agent"),
			APIKey:    r.Header.Get("x-aurorax-api-key"),
			RequestID: r.Header.Get("x-request-id"),
			Body:      body,
		})
		maintenance := s.Maintenance
		s.mu.Unlock()

		if maintenance {
			writeError(w, http.StatusServiceUnavailable, "MAINTENANCE", "API is currently in maintenance mode")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{ErrorCode: code, ErrorMessage: message})
}
