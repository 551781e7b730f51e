// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package apitest provides an in-memory AuroraX API server for tests. It
// accepts searches, advances them to completion after a configurable
// number of status polls, serves paginated results, and records uploads.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pdiddy/aurorax-go/pkg/types"
)

// Search kinds as they appear in API paths.
var kinds = map[string]bool{"ephemeris": true, "conjunctions": true, "data_products": true}

// Request is the server-side state of one search.
type Request struct {
	ID         string
	Kind       string
	Query      json.RawMessage
	Polls      int
	ReadyAfter int
	Fail       bool
	Cancelled  bool
	Results    []json.RawMessage
}

// Server is a fake AuroraX deployment backed by httptest.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests map[string]*Request
	results  map[string]func(query json.RawMessage) []json.RawMessage
	failures []int
	calls    map[string]int

	// ReadyAfter is the number of status polls before a new request
	// completes.
	ReadyAfter int

	// APIKey, when set, is required on uploads.
	APIKey string

	// Sources is the data-source catalogue served by /data_sources. Keys
	// ending in _metadata_schema are only served in full records.
	Sources []map[string]any

	// Availability maps a data source identifier to its record count per
	// day ("2006-01-02"), served by /availability.
	Availability map[int]map[string]int

	// Uploads holds uploaded ephemeris records keyed by data source
	// identifier.
	Uploads map[int][]json.RawMessage

	// IgnorePaging makes the data endpoint return every record regardless
	// of offset and limit.
	IgnorePaging bool

	// IgnoreOffset makes the data endpoint honour limit but always start
	// at the first record.
	IgnoreOffset bool

	// OmitResultCount leaves result_count out of status documents.
	OmitResultCount bool
}

// New starts a Server and closes it when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		requests:   make(map[string]*Request),
		results:    make(map[string]func(json.RawMessage) []json.RawMessage),
		calls:      make(map[string]int),
		Uploads:    make(map[int][]json.RawMessage),
		ReadyAfter: 1,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.countAndFail)

	r.Post("/api/v1/utils/describe/query/conjunction", s.describe)

	r.Get("/api/v1/data_sources", s.listSources)
	r.Post("/api/v1/data_sources/search", s.searchSources)
	r.Get("/api/v1/data_sources/{identifier}", s.getSource)
	r.Get("/api/v1/availability/{kind}", s.availability)
	r.Post("/api/v1/data_sources/{identifier}/ephemeris", s.upload)

	r.Post("/api/v1/{kind}/search", s.submit)
	r.Get("/api/v1/{kind}/requests/{id}", s.status)
	r.Delete("/api/v1/{kind}/requests/{id}", s.cancel)
	r.Get("/api/v1/{kind}/requests/{id}/data", s.data)
	r.Post("/api/v1/{kind}/requests/{id}/data", s.data)
	return r
}

// SetResults installs a generator producing the result records for
// searches of kind ("ephemeris", "conjunctions", "data_products").
func (s *Server) SetResults(kind string, fn func(query json.RawMessage) []json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[kind] = fn
}

// FailNext makes the next len(codes) requests answer with the given
// status codes, in order.
func (s *Server) FailNext(codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, codes...)
}

// Calls returns how many requests hit method and path. Path is the chi
// route pattern, e.g. "/api/v1/{kind}/requests/{id}".
func (s *Server) Calls(method, pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+pattern]
}

// Request returns the state of a submitted search.
func (s *Server) Request(id string) *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id]
}

// FailRequest marks a submitted search as failed on the server side.
func (s *Server) FailRequest(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req := s.requests[id]; req != nil {
		req.Fail = true
	}
}

// AddRequest registers a search directly, bypassing submission.
func (s *Server) AddRequest(req *Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
}

func (s *Server) countAndFail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var code int
		if len(s.failures) > 0 {
			code, s.failures = s.failures[0], s.failures[1:]
		}
		s.mu.Unlock()

		if code != 0 {
			writeError(w, code, "INJECTED", "injected failure")
			return
		}
		next.ServeHTTP(w, r)

		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			s.mu.Lock()
			s.calls[r.Method+" "+rctx.RoutePattern()]++
			s.mu.Unlock()
		}
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if !kinds[kind] {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown search kind")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "request body must be JSON")
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	req := &Request{ID: id, Kind: kind, Query: body, ReadyAfter: s.ReadyAfter}
	if fn := s.results[kind]; fn != nil {
		req.Results = fn(body)
	}
	s.requests[id] = req
	s.mu.Unlock()

	w.Header().Set("Location", fmt.Sprintf("/api/v1/%s/requests/%s", kind, id))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *Request {
	s.mu.Lock()
	req := s.requests[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if req == nil || req.Kind != chi.URLParam(r, "kind") {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "request ID not found")
		return nil
	}
	return req
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	req := s.lookup(w, r)
	if req == nil {
		return
	}

	s.mu.Lock()
	req.Polls++
	doc := map[string]any{
		"search_request": map[string]any{
			"request_id":   req.ID,
			"request_type": req.Kind,
			"query":        json.RawMessage(req.Query),
		},
	}
	result := map[string]any{"data_uri": nil, "error_condition": false}
	var logs []types.LogEntry
	now := time.Now().UTC().Format("2006-01-02T15:04:05")
	if req.Polls > 1 || req.ReadyAfter <= 1 {
		logs = append(logs, types.LogEntry{Level: "info", Summary: "search started", Timestamp: now})
	}
	switch {
	case req.Cancelled || req.Fail:
		result["error_condition"] = true
		logs = append(logs, types.LogEntry{Level: "error", Summary: "search failed", Timestamp: now})
	case req.Polls >= req.ReadyAfter:
		result["data_uri"] = fmt.Sprintf("/api/v1/%s/requests/%s/data", req.Kind, req.ID)
		if !s.OmitResultCount {
			result["result_count"] = len(req.Results)
		}
		result["file_size"] = len(req.Results) * 256
		result["completed_timestamp"] = now
		logs = append(logs, types.LogEntry{Level: "info", Summary: "search completed", Timestamp: now})
	}
	doc["search_result"] = result
	doc["logs"] = logs
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	req := s.lookup(w, r)
	if req == nil {
		return
	}
	s.mu.Lock()
	req.Cancelled = true
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) data(w http.ResponseWriter, r *http.Request) {
	req := s.lookup(w, r)
	if req == nil {
		return
	}
	s.mu.Lock()
	results := req.Results
	ignore, ignoreOffset := s.IgnorePaging, s.IgnoreOffset
	s.mu.Unlock()

	if r.Method == http.MethodGet && !ignore {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if ignoreOffset {
			offset = 0
		}
		if offset > len(results) {
			offset = len(results)
		}
		end := len(results)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		results = results[offset:end]
	}
	if results == nil {
		results = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": results})
}

func (s *Server) describe(w http.ResponseWriter, r *http.Request) {
	var q map[string]any
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "query must be JSON")
		return
	}
	var blocks []string
	for _, key := range []string{"ground", "space", "events"} {
		list, _ := q[key].([]any)
		for i := range list {
			blocks = append(blocks, fmt.Sprintf("%s%d", key, i+1))
		}
	}
	writeJSON(w, http.StatusOK, fmt.Sprintf("Find conjunctions of type %v between %s from %v to %v",
		q["conjunction_types"], strings.Join(blocks, " and "), q["start"], q["end"]))
}

func matchesParams(src map[string]any, params url.Values) bool {
	for _, key := range []string{"program", "platform", "instrument_type", "source_type", "owner"} {
		if v := params.Get(key); v != "" && fmt.Sprint(src[key]) != v {
			return false
		}
	}
	return true
}

// basicRecord drops the schema keys of a data source document.
func basicRecord(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		if !strings.HasSuffix(k, "_metadata_schema") {
			out[k] = v
		}
	}
	return out
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	var out []map[string]any
	s.mu.Lock()
	for _, src := range s.Sources {
		if matchesParams(src, params) {
			out = append(out, basicRecord(src))
		}
	}
	s.mu.Unlock()
	if out == nil {
		out = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) searchSources(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Programs        []string `json:"programs"`
		Platforms       []string `json:"platforms"`
		InstrumentTypes []string `json:"instrument_types"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "body must be JSON")
		return
	}
	in := func(list []string, v any) bool {
		if len(list) == 0 {
			return true
		}
		for _, item := range list {
			if item == fmt.Sprint(v) {
				return true
			}
		}
		return false
	}
	out := []map[string]any{}
	s.mu.Lock()
	for _, src := range s.Sources {
		if in(body.Programs, src["program"]) && in(body.Platforms, src["platform"]) && in(body.InstrumentTypes, src["instrument_type"]) {
			out = append(out, basicRecord(src))
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identifier")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, src := range s.Sources {
		if fmt.Sprint(src["identifier"]) == id {
			if r.URL.Query().Get("format") != "full_record" {
				src = basicRecord(src)
			}
			writeJSON(w, http.StatusOK, src)
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "data source not found")
}

func (s *Server) availability(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if kind != "ephemeris" && kind != "data_products" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown availability kind")
		return
	}
	params := r.URL.Query()
	start, end := params.Get("start"), params.Get("end")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "start and end are required")
		return
	}

	out := []map[string]any{}
	s.mu.Lock()
	for _, src := range s.Sources {
		if !matchesParams(src, params) {
			continue
		}
		id, _ := src["identifier"].(int)
		counts := map[string]int{}
		for day, n := range s.Availability[id] {
			if day >= start && day <= end {
				counts[day] = n
			}
		}
		doc := map[string]any{"data_source": basicRecord(src)}
		doc["available_"+kind] = counts
		out = append(out, doc)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if s.APIKey != "" && r.Header.Get("x-aurorax-api-key") != s.APIKey {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid API key")
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "identifier"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "identifier must be an integer")
		return
	}
	var records []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "body must be a JSON list")
		return
	}
	s.mu.Lock()
	s.Uploads[id] = append(s.Uploads[id], records...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"uploaded": len(records)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, map[string]string{"error_code": errCode, "error_message": msg})
}
