// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_Advance(t *testing.T) {
	tests := []struct {
		from, next JobStatus
		want       JobStatus
		ok         bool
	}{
		{"", StatusPending, StatusPending, true},
		{"", StatusCompleted, StatusCompleted, true},
		{StatusPending, StatusRunning, StatusRunning, true},
		{StatusPending, StatusPending, StatusPending, true},
		{StatusRunning, StatusPending, StatusRunning, false},
		{StatusRunning, StatusFailed, StatusFailed, true},
		{StatusCompleted, StatusRunning, StatusCompleted, false},
		{StatusCompleted, StatusFailed, StatusCompleted, false},
		{StatusFailed, StatusFailed, StatusFailed, true},
		{StatusPending, "bogus", StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.next), func(t *testing.T) {
			got, ok := tt.from.Advance(tt.next)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestParseJobStatus(t *testing.T) {
	st, err := ParseJobStatus(" Running ")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, st)

	_, err = ParseJobStatus("queued")
	assert.Error(t, err)
}

func TestRequestStatus_JobStatus(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want JobStatus
	}{
		{"pending", `{"search_request":{"request_id":"a"},"search_result":{"data_uri":null},"logs":[]}`, StatusPending},
		{"running", `{"search_result":{"data_uri":null},"logs":[{"level":"info","summary":"started","timestamp":"t"}]}`, StatusRunning},
		{"completed", `{"search_result":{"data_uri":"/data","result_count":4},"logs":[]}`, StatusCompleted},
		{"failed", `{"search_result":{"data_uri":null,"error_condition":true},"logs":[{"level":"error","summary":"boom"}]}`, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rs RequestStatus
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &rs))
			assert.Equal(t, tt.want, rs.JobStatus())
		})
	}
}

func TestFilterLogs(t *testing.T) {
	logs := []LogEntry{
		{Level: "info", Summary: "a"},
		{Level: "ERROR", Summary: "b"},
		{Level: "info", Summary: "c"},
	}
	assert.Len(t, FilterLogs(logs, ""), 3)
	assert.Equal(t, []LogEntry{{Level: "ERROR", Summary: "b"}}, FilterLogs(logs, "error"))
	assert.Empty(t, FilterLogs(logs, "debug"))
}

func TestErrorCategories(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", Invalid("start", "must precede end"), ErrValidation},
		{"network", &NetworkError{Method: "GET", URL: "u", Attempts: 3, Err: cause}, ErrNetwork},
		{"auth", &RemoteError{StatusCode: 401}, ErrAuthentication},
		{"remote", &RemoteError{StatusCode: 500}, ErrRemote},
		{"timeout", &TimeoutError{RequestID: "x", LastStatus: StatusRunning}, ErrTimeout},
		{"parse", &ParseError{Index: 2, Field: "epoch", Err: cause}, ErrParse},
	}
	all := []error{ErrValidation, ErrNetwork, ErrAuthentication, ErrRemote, ErrTimeout, ErrParse}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range all {
				assert.Equal(t, s == tt.sentinel, errors.Is(tt.err, s), "sentinel %v", s)
			}
		})
	}
	assert.ErrorIs(t, &NetworkError{Err: cause}, cause)
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", &RemoteError{StatusCode: 404})))
}

func TestConfigDefaults(t *testing.T) {
	c := ClientConfig{}.WithDefaults()
	assert.Equal(t, ProductionBaseURL, c.BaseURL)
	assert.Equal(t, 3, c.MaxRetries)

	p := PollConfig{Interval: time.Minute}.WithDefaults()
	assert.Equal(t, time.Minute, p.MaxInterval)
}
