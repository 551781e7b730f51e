// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/aurorax-go/internal/api"
	"github.com/pdiddy/aurorax-go/internal/apitest"
	"github.com/pdiddy/aurorax-go/internal/httputil"
	"github.com/pdiddy/aurorax-go/internal/poll"
	"github.com/pdiddy/aurorax-go/internal/records"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

var fastPoll = poll.Options{Interval: time.Millisecond, Timeout: 5 * time.Second}

const dataPattern = "/api/v1/{kind}/requests/{id}/data"

func newClient(srv *apitest.Server) *api.Client {
	return api.New(types.ClientConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
}

func numberedResults(n int) func(json.RawMessage) []json.RawMessage {
	return func(json.RawMessage) []json.RawMessage {
		out := make([]json.RawMessage, n)
		for i := range out {
			out[i] = json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))
		}
		return out
	}
}

func TestEphemerisSearch_EndToEnd(t *testing.T) {
	srv := apitest.New(t)
	srv.ReadyAfter = 3
	srv.SetResults("ephemeris", apitest.EphemerisQueryResults(6*time.Hour))
	client := newClient(srv)
	ctx := context.Background()

	c := EphemerisCriteria{Start: day0, End: day1, Platforms: []string{"gillam"}}
	req, err := Submit(ctx, client, c)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, req.Status)
	_, err = uuid.Parse(req.ID)
	require.NoError(t, err)

	status, err := req.Wait(ctx, fastPoll, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, status)
	assert.Equal(t, types.StatusCompleted, req.Status)
	assert.Equal(t, 5, req.ResultCount)
	assert.NotEmpty(t, req.Logs)

	recs, rep, err := req.Ephemeris(ctx, 0, records.SkipMalformed)
	require.NoError(t, err)
	assert.Zero(t, rep.Total())
	require.Len(t, recs, 5)
	for _, e := range recs {
		assert.Equal(t, "gillam", e.DataSource.Platform)
		assert.False(t, e.Epoch.Before(day0), e.Epoch)
		assert.False(t, e.Epoch.After(day1), e.Epoch)
	}

	sent := srv.Request(req.ID)
	require.NotNil(t, sent)
	q, _ := c.Query()
	assert.JSONEq(t, string(q), string(sent.Query))
}

func TestSubmit_ValidatesBeforeIO(t *testing.T) {
	srv := apitest.New(t)
	_, err := Submit(context.Background(), newClient(srv), EphemerisCriteria{Start: day1, End: day0, Platforms: []string{"gillam"}})
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, 0, srv.Calls(http.MethodPost, "/api/v1/{kind}/search"))
}

func TestResults_Paging(t *testing.T) {
	srv := apitest.New(t)
	srv.SetResults("conjunctions", numberedResults(25))
	client := newClient(srv)
	ctx := context.Background()

	req, err := Submit(ctx, client, ConjunctionCriteria{
		Start: day0, End: day1,
		Ground: []Block{{Programs: []string{"themis-asi"}}},
		Space:  []Block{{Programs: []string{"swarm"}}},
	})
	require.NoError(t, err)
	_, err = req.Wait(ctx, fastPoll, nil)
	require.NoError(t, err)

	all, err := req.Results(ctx, 10, nil)
	require.NoError(t, err)
	require.Len(t, all, 25)
	for i, raw := range all {
		assert.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i), string(raw))
	}
	assert.Equal(t, 3, srv.Calls(http.MethodGet, dataPattern))
}

func TestResults_StopsAtResultCount(t *testing.T) {
	srv := apitest.New(t)
	srv.SetResults("ephemeris", numberedResults(20))
	client := newClient(srv)
	ctx := context.Background()

	req, err := Submit(ctx, client, EphemerisCriteria{Start: day0, End: day1, Programs: []string{"swarm"}})
	require.NoError(t, err)
	_, err = req.Wait(ctx, fastPoll, nil)
	require.NoError(t, err)

	all, err := req.Results(ctx, 10, nil)
	require.NoError(t, err)
	assert.Len(t, all, 20)
	assert.Equal(t, 2, srv.Calls(http.MethodGet, dataPattern))
}

func TestResults_ServerIgnoresPaging(t *testing.T) {
	srv := apitest.New(t)
	srv.IgnorePaging = true
	srv.SetResults("ephemeris", numberedResults(25))
	client := newClient(srv)
	ctx := context.Background()

	req, err := Submit(ctx, client, EphemerisCriteria{Start: day0, End: day1, Programs: []string{"swarm"}})
	require.NoError(t, err)
	_, err = req.Wait(ctx, fastPoll, nil)
	require.NoError(t, err)

	all, err := req.Results(ctx, 10, nil)
	require.NoError(t, err)
	assert.Len(t, all, 25)
	assert.Equal(t, 1, srv.Calls(http.MethodGet, dataPattern))
}

func TestResults_ServerIgnoresOffset(t *testing.T) {
	for _, omitCount := range []bool{true, false} {
		t.Run(fmt.Sprintf("omit count %v", omitCount), func(t *testing.T) {
			srv := apitest.New(t)
			srv.IgnoreOffset = true
			srv.OmitResultCount = omitCount
			srv.SetResults("ephemeris", numberedResults(25))
			client := newClient(srv)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			req, err := Submit(ctx, client, EphemerisCriteria{Start: day0, End: day1, Programs: []string{"swarm"}})
			require.NoError(t, err)
			_, err = req.Wait(ctx, fastPoll, nil)
			require.NoError(t, err)

			all, err := req.Results(ctx, 10, nil)
			require.NoError(t, err)
			require.Len(t, all, 25)
			for i, raw := range all {
				assert.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i), string(raw))
			}
			assert.Equal(t, 3, srv.Calls(http.MethodGet, dataPattern), "two paged calls, then one unpaged")
		})
	}
}

func TestResults_ResponseFormat(t *testing.T) {
	srv := apitest.New(t)
	srv.SetResults("data_products", numberedResults(4))
	client := newClient(srv)
	ctx := context.Background()

	req, err := Submit(ctx, client, DataProductCriteria{Start: day0, End: day1, Programs: []string{"trex"}})
	require.NoError(t, err)
	_, err = req.Wait(ctx, fastPoll, nil)
	require.NoError(t, err)

	all, err := req.Results(ctx, 1, map[string]any{"url": true})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, 1, srv.Calls(http.MethodPost, dataPattern))
	assert.Equal(t, 0, srv.Calls(http.MethodGet, dataPattern))
}

func TestResults_NotReady(t *testing.T) {
	srv := apitest.New(t)
	srv.ReadyAfter = 100
	client := newClient(srv)
	ctx := context.Background()

	req, err := Submit(ctx, client, EphemerisCriteria{Start: day0, End: day1, Programs: []string{"swarm"}})
	require.NoError(t, err)

	_, err = req.Results(ctx, 10, nil)
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, 0, srv.Calls(http.MethodGet, dataPattern))
}

func TestFailedRequest(t *testing.T) {
	srv := apitest.New(t)
	client := newClient(srv)
	ctx := context.Background()

	id := uuid.NewString()
	srv.AddRequest(&apitest.Request{ID: id, Kind: "ephemeris", Query: json.RawMessage(`{}`), ReadyAfter: 1, Fail: true})

	req, err := Attach(client, KindEphemeris, id)
	require.NoError(t, err)
	status, err := req.Wait(ctx, fastPoll, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, status)

	assert.ErrorIs(t, req.Err(), types.ErrRemote)
	assert.Contains(t, req.Err().Error(), "search failed")

	_, err = req.Results(ctx, 10, nil)
	assert.ErrorIs(t, err, types.ErrRemote)
}

func TestWait_Timeout(t *testing.T) {
	srv := apitest.New(t)
	srv.ReadyAfter = 1000
	client := newClient(srv)
	ctx := context.Background()

	req, err := Submit(ctx, client, EphemerisCriteria{Start: day0, End: day1, Programs: []string{"swarm"}})
	require.NoError(t, err)

	timeout := 100 * time.Millisecond
	start := time.Now()
	_, err = req.Wait(ctx, poll.Options{Interval: 10 * time.Millisecond, Timeout: timeout}, nil)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.Less(t, time.Since(start), timeout+200*time.Millisecond)
	assert.Equal(t, types.StatusRunning, req.Status)
}

func TestStatusIsMonotonic(t *testing.T) {
	srv := apitest.New(t)
	srv.ReadyAfter = 2
	client := newClient(srv)
	ctx := context.Background()

	req, err := Submit(ctx, client, EphemerisCriteria{Start: day0, End: day1, Programs: []string{"swarm"}})
	require.NoError(t, err)
	_, err = req.Wait(ctx, fastPoll, nil)
	require.NoError(t, err)

	// The server now reports failure, but completed is terminal.
	srv.FailRequest(req.ID)
	require.NoError(t, req.UpdateStatus(ctx))
	assert.Equal(t, types.StatusCompleted, req.Status)
	assert.Empty(t, types.FilterLogs(req.Logs, "error"), "logs of a discarded status are not adopted")
	assert.NoError(t, req.Err())
}

func TestAttach(t *testing.T) {
	srv := apitest.New(t)
	client := newClient(srv)

	_, err := Attach(client, KindConjunctions, "not-a-uuid")
	assert.ErrorIs(t, err, types.ErrValidation)

	id := uuid.NewString()
	req, err := Attach(client, KindConjunctions, id)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/api/v1/conjunctions/requests/"+id, req.URL)

	err = req.UpdateStatus(context.Background())
	assert.True(t, types.IsNotFound(err))
}

func TestCancel(t *testing.T) {
	srv := apitest.New(t)
	srv.ReadyAfter = 1000
	client := newClient(srv)
	ctx := context.Background()

	req, err := Submit(ctx, client, EphemerisCriteria{Start: day0, End: day1, Programs: []string{"swarm"}})
	require.NoError(t, err)

	require.NoError(t, req.Cancel(ctx, true, fastPoll, nil))
	assert.Equal(t, types.StatusFailed, req.Status)
	assert.True(t, srv.Request(req.ID).Cancelled)
}

func TestResubmit(t *testing.T) {
	srv := apitest.New(t)
	client := newClient(srv)
	ctx := context.Background()

	c := ConjunctionCriteria{
		Start: day0, End: day1,
		Ground:   []Block{{Platforms: []string{"gillam"}}},
		Space:    []Block{{Programs: []string{"swarm"}}},
		Distance: 250,
	}
	first, err := Submit(ctx, client, c)
	require.NoError(t, err)

	attached, err := Attach(client, KindConjunctions, first.ID)
	require.NoError(t, err)
	second, err := attached.Resubmit(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.JSONEq(t, string(srv.Request(first.ID).Query), string(srv.Request(second.ID).Query))
}

func TestKindMismatch(t *testing.T) {
	srv := apitest.New(t)
	req, err := Attach(newClient(srv), KindEphemeris, uuid.NewString())
	require.NoError(t, err)
	_, _, err = req.Conjunctions(context.Background(), 0, records.SkipMalformed)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestDescribe(t *testing.T) {
	srv := apitest.New(t)
	out, err := Describe(context.Background(), newClient(srv), ConjunctionCriteria{
		Start: day0, End: day1,
		Ground: []Block{{Programs: []string{"themis-asi"}}},
		Space:  []Block{{Programs: []string{"swarm"}}},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "ground1 and space1")
	assert.Contains(t, out, "2020-01-01T00:00:00")
}
