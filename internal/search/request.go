// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/aurorax-go/internal/api"
	"github.com/pdiddy/aurorax-go/internal/poll"
	"github.com/pdiddy/aurorax-go/internal/records"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

// DefaultPageSize is the number of records fetched per result page.
const DefaultPageSize = 10000

// Request is one submitted search. Only UpdateStatus (directly or through
// Wait) changes its status fields. A Request must not be used from
// several goroutines at once.
type Request struct {
	client *api.Client

	Kind        Kind
	ID          string
	URL         string
	Query       json.RawMessage
	Status      types.JobStatus
	DataURL     string
	Logs        []types.LogEntry
	ResultCount int
	FileSize    int64
}

// Submit validates c, submits it and returns the pending request.
func Submit(ctx context.Context, client *api.Client, c Criteria) (*Request, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	q, err := c.Query()
	if err != nil {
		return nil, err
	}
	return SubmitQuery(ctx, client, c.Kind(), q)
}

// SubmitQuery submits a raw query document without client-side
// validation. It backs resubmission of queries read from the API.
func SubmitQuery(ctx context.Context, client *api.Client, kind Kind, query json.RawMessage) (*Request, error) {
	reqURL, err := client.Submit(ctx, kind.searchPath(), query)
	if err != nil {
		return nil, fmt.Errorf("submitting %s search: %w", kind, err)
	}
	id := path.Base(strings.TrimRight(reqURL, "/"))
	if _, err := uuid.Parse(id); err != nil {
		return nil, &types.ParseError{Index: -1, Field: "Location", Err: fmt.Errorf("request ID %q: %w", id, err)}
	}
	return &Request{
		client: client,
		Kind:   kind,
		ID:     id,
		URL:    reqURL,
		Query:  query,
		Status: types.StatusPending,
	}, nil
}

// Attach returns a Request for a search submitted earlier, identified by
// its request ID. The status is unknown until UpdateStatus is called.
func Attach(client *api.Client, kind Kind, id string) (*Request, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, types.Invalid("request_id", "%q is not a UUID", id)
	}
	return &Request{
		client: client,
		Kind:   kind,
		ID:     id,
		URL:    client.RequestURL(kind.requestPath(), id),
	}, nil
}

// UpdateStatus fetches the request's status document and applies it.
// The status only moves forward; an observed regression is ignored along
// with the logs that came with it.
func (r *Request) UpdateStatus(ctx context.Context) error {
	_, err := r.update(ctx)
	return err
}

func (r *Request) update(ctx context.Context) (types.JobStatus, error) {
	st, err := r.client.GetStatus(ctx, r.URL)
	if err != nil {
		return "", fmt.Errorf("getting status of request %s: %w", r.ID, err)
	}
	observed := st.JobStatus()
	next, ok := r.Status.Advance(observed)
	r.Status = next
	if ok {
		r.Logs = st.Logs
	}
	if uri := st.SearchResult.DataURI; uri != nil && *uri != "" {
		r.DataURL = r.client.URL(*uri)
	}
	if st.SearchResult.ResultCount > 0 {
		r.ResultCount = st.SearchResult.ResultCount
	}
	if st.SearchResult.FileSize > 0 {
		r.FileSize = st.SearchResult.FileSize
	}
	if len(r.Query) == 0 && len(st.SearchRequest.Query) > 0 {
		r.Query = st.SearchRequest.Query
	}
	return observed, nil
}

// RequestID and Check make Request a poll.Checker.
func (r *Request) RequestID() string { return r.ID }

// Check reports the status the API returned, before monotonic clamping.
func (r *Request) Check(ctx context.Context) (types.JobStatus, error) {
	return r.update(ctx)
}

// Wait polls until the request completes or fails.
func (r *Request) Wait(ctx context.Context, opts poll.Options, log *zap.Logger) (types.JobStatus, error) {
	if r.Status.Terminal() {
		return r.Status, nil
	}
	return poll.Wait(ctx, r, opts, log)
}

// Err describes a failed request using its error-level log messages. It
// returns nil unless the status is failed.
func (r *Request) Err() error {
	if r.Status != types.StatusFailed {
		return nil
	}
	var msgs []string
	for _, l := range types.FilterLogs(r.Logs, "error") {
		msgs = append(msgs, l.Summary)
	}
	if len(msgs) == 0 {
		msgs = append(msgs, "no error details in request logs")
	}
	return fmt.Errorf("%s request %s failed: %s: %w", r.Kind, r.ID, strings.Join(msgs, "; "), types.ErrRemote)
}

// ready refreshes the status once if needed and checks that data can be
// fetched.
func (r *Request) ready(ctx context.Context) error {
	if r.Status != types.StatusCompleted || r.DataURL == "" {
		if err := r.UpdateStatus(ctx); err != nil {
			return err
		}
	}
	if err := r.Err(); err != nil {
		return err
	}
	if r.Status != types.StatusCompleted || r.DataURL == "" {
		return types.Invalid("request", "request %s is %s; wait for it to complete before fetching data", r.ID, r.Status)
	}
	return nil
}

// Results fetches every raw result record. Without a response format the
// records are read in pages of pageSize until a short page or the reported
// result count ends the walk. A server that ignores the offset answers
// every page with the same records; once that is seen the whole set is
// fetched in one unpaged call. With a response format the whole set is
// fetched at once.
func (r *Request) Results(ctx context.Context, pageSize int, responseFormat map[string]any) ([]json.RawMessage, error) {
	if err := r.ready(ctx); err != nil {
		return nil, err
	}
	if responseFormat != nil {
		recs, err := r.client.GetResults(ctx, r.DataURL, api.Page{}, responseFormat)
		if err != nil {
			return nil, fmt.Errorf("fetching data for request %s: %w", r.ID, err)
		}
		return recs, nil
	}

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var all, prev []json.RawMessage
	for offset := 0; ; offset += pageSize {
		page, err := r.client.GetResults(ctx, r.DataURL, api.Page{Offset: offset, Limit: pageSize}, nil)
		if err != nil {
			return nil, fmt.Errorf("fetching data for request %s at offset %d: %w", r.ID, offset, err)
		}
		if len(page) > pageSize {
			// Server ignored paging and sent everything.
			return page, nil
		}
		if offset > 0 && samePage(prev, page) {
			r.client.Logger().Warn("data endpoint ignores offset, fetching unpaged",
				zap.String("request_id", r.ID), zap.Int("offset", offset))
			recs, err := r.client.GetResults(ctx, r.DataURL, api.Page{}, nil)
			if err != nil {
				return nil, fmt.Errorf("fetching data for request %s: %w", r.ID, err)
			}
			return recs, nil
		}
		prev = page
		all = append(all, page...)
		if len(page) < pageSize || (r.ResultCount > 0 && len(all) >= r.ResultCount) {
			return all, nil
		}
	}
}

func samePage(a, b []json.RawMessage) bool {
	return len(a) > 0 && slices.EqualFunc(a, b, func(x, y json.RawMessage) bool { return bytes.Equal(x, y) })
}

// Ephemeris fetches and parses ephemeris results.
func (r *Request) Ephemeris(ctx context.Context, pageSize int, policy records.Policy) ([]records.Ephemeris, records.Report, error) {
	if err := r.expect(KindEphemeris); err != nil {
		return nil, records.Report{}, err
	}
	raw, err := r.Results(ctx, pageSize, nil)
	if err != nil {
		return nil, records.Report{}, err
	}
	return records.ParseEphemerisPage(raw, policy)
}

// Conjunctions fetches and parses conjunction results.
func (r *Request) Conjunctions(ctx context.Context, pageSize int, policy records.Policy) ([]records.Conjunction, records.Report, error) {
	if err := r.expect(KindConjunctions); err != nil {
		return nil, records.Report{}, err
	}
	raw, err := r.Results(ctx, pageSize, nil)
	if err != nil {
		return nil, records.Report{}, err
	}
	return records.ParseConjunctionPage(raw, policy)
}

// DataProducts fetches and parses data product results.
func (r *Request) DataProducts(ctx context.Context, pageSize int, policy records.Policy) ([]records.DataProduct, records.Report, error) {
	if err := r.expect(KindDataProducts); err != nil {
		return nil, records.Report{}, err
	}
	raw, err := r.Results(ctx, pageSize, nil)
	if err != nil {
		return nil, records.Report{}, err
	}
	return records.ParseDataProductPage(raw, policy)
}

func (r *Request) expect(k Kind) error {
	if r.Kind != k {
		return types.Invalid("kind", "request %s is a %s search, not %s", r.ID, r.Kind, k)
	}
	return nil
}

// Cancel asks the API to cancel the request. With wait set it then polls
// until the API reports the request as failed or completed.
func (r *Request) Cancel(ctx context.Context, wait bool, opts poll.Options, log *zap.Logger) error {
	if err := r.client.Cancel(ctx, r.URL); err != nil {
		return fmt.Errorf("cancelling request %s: %w", r.ID, err)
	}
	if !wait {
		return nil
	}
	_, err := poll.Wait(ctx, r, opts, log)
	return err
}

// Criteria rebuilds typed criteria from the request's query. The query is
// fetched from the status document if it is not yet known.
func (r *Request) Criteria(ctx context.Context) (Criteria, error) {
	if len(r.Query) == 0 {
		if err := r.UpdateStatus(ctx); err != nil {
			return nil, err
		}
	}
	if len(r.Query) == 0 {
		return nil, &types.ParseError{Index: -1, Field: "query", Err: errors.New("status document has no query")}
	}
	return ParseQuery(r.Kind, r.Query)
}

// Resubmit submits the request's query again as a new search.
func (r *Request) Resubmit(ctx context.Context) (*Request, error) {
	c, err := r.Criteria(ctx)
	if err != nil {
		return nil, err
	}
	return Submit(ctx, r.client, c)
}

// ParseQuery rebuilds criteria of the given kind from a query document.
func ParseQuery(kind Kind, data json.RawMessage) (Criteria, error) {
	switch kind {
	case KindEphemeris:
		return ParseEphemerisQuery(data)
	case KindConjunctions:
		return ParseConjunctionQuery(data)
	case KindDataProducts:
		return ParseDataProductQuery(data)
	}
	return nil, types.Invalid("kind", "unknown search kind %q", kind)
}
