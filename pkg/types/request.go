// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the AuroraX client:
// configuration, the request status document returned by the API, job
// status ordering, and the error taxonomy.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JobStatus is the client-side lifecycle state of an asynchronous search
// request. States only move forward: pending, running, then one of the
// terminal states completed or failed.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Rank orders statuses for monotonic updates. Unknown values rank lowest.
func (s JobStatus) Rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusRunning:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	default:
		return 0
	}
}

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Advance returns the status that results from observing next after s.
// Regressions and changes to a terminal status are ignored; the second
// return value reports whether next was accepted.
func (s JobStatus) Advance(next JobStatus) (JobStatus, bool) {
	if s.Terminal() {
		return s, s == next
	}
	if next.Rank() < s.Rank() || next.Rank() == 0 {
		return s, false
	}
	return next, true
}

// ParseJobStatus converts a stored status string back into a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(strings.ToLower(strings.TrimSpace(s)))
	if st.Rank() == 0 {
		return "", fmt.Errorf("unknown job status %q", s)
	}
	return st, nil
}

// RequestStatus is the status document served at a request URL.
type RequestStatus struct {
	SearchRequest SearchRequestInfo `json:"search_request"`
	SearchResult  SearchResultInfo  `json:"search_result"`
	Logs          []LogEntry        `json:"logs"`
}

// SearchRequestInfo describes the submitted search.
type SearchRequestInfo struct {
	RequestID   string          `json:"request_id"`
	RequestType string          `json:"request_type,omitempty"`
	Requested   string          `json:"requested,omitempty"`
	Query       json.RawMessage `json:"query,omitempty"`
}

// SearchResultInfo describes the outcome of the search. DataURI stays nil
// until the result data is ready.
type SearchResultInfo struct {
	DataURI            *string `json:"data_uri"`
	FileSize           int64   `json:"file_size,omitempty"`
	ResultCount        int     `json:"result_count,omitempty"`
	CompletedTimestamp string  `json:"completed_timestamp,omitempty"`
	ErrorCondition     bool    `json:"error_condition"`
}

// LogEntry is one message emitted by the API while processing a request.
type LogEntry struct {
	Level     string `json:"level"`
	Summary   string `json:"summary"`
	Timestamp string `json:"timestamp"`
}

// JobStatus derives the client-side status from the document.
func (r RequestStatus) JobStatus() JobStatus {
	switch {
	case r.SearchResult.DataURI != nil && *r.SearchResult.DataURI != "":
		return StatusCompleted
	case r.SearchResult.ErrorCondition:
		return StatusFailed
	case len(r.Logs) > 0:
		return StatusRunning
	default:
		return StatusPending
	}
}

// FilterLogs returns the entries at the given level ("debug", "info",
// "warn", "error"). An empty level returns all entries.
func FilterLogs(logs []LogEntry, level string) []LogEntry {
	if level == "" {
		return logs
	}
	var out []LogEntry
	for _, l := range logs {
		if strings.EqualFold(l.Level, level) {
			out = append(out, l)
		}
	}
	return out
}
