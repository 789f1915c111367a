package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
)

const epochLayout = "2006-01-02T15:04:05"

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*Request, bool) {
	domain, id := r.PathValue("domain"), r.PathValue("id")
	req, ok := s.requests[id]
	if !ok || req.Domain != domain || req.Deleted {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("search request %s not found", id))
		return nil, false
	}
	return req, true
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	if !slices.Contains(Domains, domain) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown search type")
		return
	}

	var query json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SubmitStatus != 0 && s.SubmitStatus != http.StatusAccepted {
		writeError(w, s.SubmitStatus, "REJECTED", "search rejected")
		return
	}

	script := Script{CompleteAfter: 2}
	if s.NextScript != nil {
		script = s.NextScript(domain, query)
	}
	req := s.addLocked(domain, query, script, r.RemoteAddr)
	if !s.OmitLocation {
		w.Header().Set("Location", s.RequestURL(domain, req.ID))
	}
	w.WriteHeader(http.StatusAccepted)
}

type statusDoc struct {
	SearchRequest struct {
		RequestID   string          `json:"request_id"`
		RequestType string          `json:"request_type"`
		Requested   string          `json:"requested"`
		Query       json.RawMessage `json:"query"`
	} `json:"search_request"`
	SearchResult struct {
		DataURI            *string `json:"data_uri"`
		ErrorCondition     bool    `json:"error_condition"`
		CompletedTimestamp *string `json:"completed_timestamp"`
		QueryDuration      *int64  `json:"query_duration"`
		FileSize           *int64  `json:"file_size"`
		ResultCount        *int64  `json:"result_count"`
	} `json:"search_result"`
	Logs []logEntry `json:"logs"`
}

type logEntry struct {
	Level     string `json:"level"`
	Summary   string `json:"summary"`
	Timestamp string `json:"timestamp"`
}

// terminal reports the request outcome after its latest status fetch:
// "", "completed", "failed" or "cancelled".
func (req *Request) terminal() string {
	switch {
	case req.Cancelled && !req.Script.IgnoreCancel:
		return "cancelled"
	case req.StatusCalls < req.Script.CompleteAfter:
		return ""
	case req.Script.Fail:
		return "failed"
	default:
		return "completed"
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.lookup(w, r)
	if !ok {
		return
	}
	req.StatusCalls++
	writeJSON(w, http.StatusOK, s.statusLocked(req))
}

func (s *Server) statusLocked(req *Request) statusDoc {
	var doc statusDoc
	doc.SearchRequest.RequestID = req.ID
	doc.SearchRequest.RequestType = req.Domain
	doc.SearchRequest.Requested = req.Requested.Format(epochLayout)
	doc.SearchRequest.Query = req.Query

	ts := req.Requested.Format(epochLayout)
	doc.Logs = []logEntry{{Level: "info", Summary: "search request received", Timestamp: ts}}
	for i := 1; i < req.StatusCalls; i++ {
		doc.Logs = append(doc.Logs, logEntry{Level: "debug", Summary: fmt.Sprintf("search in progress (%d)", i), Timestamp: ts})
	}

	end := time.Now().UTC().Format(epochLayout)
	switch req.terminal() {
	case "completed":
		uri := s.RequestURL(req.Domain, req.ID) + "/data"
		count := int64(len(req.Script.Results))
		size, duration := count*512, int64(1500)
		doc.SearchResult.DataURI = &uri
		doc.SearchResult.CompletedTimestamp = &end
		doc.SearchResult.ResultCount = &count
		doc.SearchResult.FileSize = &size
		doc.SearchResult.QueryDuration = &duration
		doc.Logs = append(doc.Logs, logEntry{Level: "info", Summary: fmt.Sprintf("search completed, found %d results", count), Timestamp: end})
	case "failed":
		doc.SearchResult.ErrorCondition = true
		doc.SearchResult.CompletedTimestamp = &end
		doc.Logs = append(doc.Logs, logEntry{Level: "error", Summary: "search failed: query timed out", Timestamp: end})
	case "cancelled":
		doc.SearchResult.ErrorCondition = true
		doc.SearchResult.CompletedTimestamp = &end
		doc.Logs = append(doc.Logs, logEntry{Level: "info", Summary: "search cancelled by user", Timestamp: end})
	}
	return doc
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if req.terminal() == "" {
		req.Cancelled = true
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.lookup(w, r)
	if !ok {
		return
	}
	switch {
	case req.Script.Expired:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "result file not found")
		return
	case req.Script.DataError != nil:
		writeJSON(w, http.StatusOK, map[string]any{"error": req.Script.DataError})
		return
	}

	results := req.Script.Results
	if results == nil {
		results = []map[string]any{}
	}
	if r.Method == http.MethodPost {
		var format map[string]any
		if err := json.NewDecoder(r.Body).Decode(&format); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "invalid response format")
			return
		}
		results = project(results, format)
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": results})
}

// project keeps the top-level fields whose response format value is true
// or an object.
func project(results []map[string]any, format map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, item := range results {
		kept := make(map[string]any)
		for k, v := range item {
			switch f := format[k].(type) {
			case bool:
				if f {
					kept[k] = v
				}
			case map[string]any:
				kept[k] = v
			}
		}
		out = append(out, kept)
	}
	return out
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var query map[string]any
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	writeJSON(w, http.StatusOK, fmt.Sprintf("Find %s WHERE %s", r.PathValue("name"), strings.Join(keys, " AND ")))
}

type summary struct {
	RequestID        string `json:"request_id"`
	SearchType       string `json:"search_type"`
	Active           bool   `json:"active"`
	IPAddress        string `json:"ip_address"`
	Requested        string `json:"requested"`
	ResultFileExists bool   `json:"result_file_exists"`
	ResultCount      *int64 `json:"result_count"`
	QueryDuration    *int64 `json:"query_duration"`
	FileSize         *int64 `json:"file_size"`
	ErrorCondition   bool   `json:"error_condition"`
}

var searchTypes = map[string]string{
	"conjunctions":  "conjunction",
	"ephemeris":     "ephemeris",
	"data_products": "data_product",
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if s.AdminKey == "" || r.Header.Get("x-aurorax-api-key") != s.AdminKey {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "administrator API key required")
		return false
	}
	return true
}

func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authorized(w, r) {
		return
	}
	wantType := r.URL.Query().Get("search_type")

	out := []summary{}
	for _, id := range s.order {
		req := s.requests[id]
		if req.Deleted {
			continue
		}
		st := searchTypes[req.Domain]
		if wantType != "" && st != wantType {
			continue
		}
		doc := s.statusLocked(req)
		out = append(out, summary{
			RequestID:        req.ID,
			SearchType:       st,
			Active:           req.terminal() == "",
			IPAddress:        req.IPAddress,
			Requested:        req.Requested.Format(epochLayout),
			ResultFileExists: doc.SearchResult.DataURI != nil && !req.Script.Expired,
			ResultCount:      doc.SearchResult.ResultCount,
			QueryDuration:    doc.SearchResult.QueryDuration,
			FileSize:         doc.SearchResult.FileSize,
			ErrorCondition:   doc.SearchResult.ErrorCondition,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authorized(w, r) {
		return
	}
	req, ok := s.requests[r.PathValue("id")]
	if !ok || req.Deleted {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "search request not found")
		return
	}
	req.Deleted = true
	w.WriteHeader(http.StatusOK)
}
