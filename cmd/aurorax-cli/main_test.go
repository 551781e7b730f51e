// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/aurorax-go/internal/apitest"
	"github.com/pdiddy/aurorax-go/internal/httputil"
	"github.com/pdiddy/aurorax-go/internal/search"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

// cli runs commands against one fake API and one history database.
type cli struct {
	t       *testing.T
	srv     *apitest.Server
	history string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	secretsDir = t.TempDir()
	t.Setenv("AURORAX_API_KEY", "")
	return &cli{
		t:       t,
		srv:     apitest.New(t),
		history: filepath.Join(t.TempDir(), "history.db"),
	}
}

// run executes the root command with args and returns what it printed to
// stdout.
func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--base-url", c.srv.URL, "--history", c.history}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag to its default so commands do not see
// values left over from an earlier run.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const gillamQuery = `
start: "2020-01-01T00:00:00"
end: "2020-01-02T00:00:00"
data_sources:
  programs: [themis-asi]
  platforms: [gillam]
`

func TestVersion(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("version")
	require.NoError(t, err)
	assert.Equal(t, "aurorax-cli dev\n", out)
}

func TestEphemerisSearch(t *testing.T) {
	c := newCLI(t)
	c.srv.ReadyAfter = 2
	c.srv.SetResults("ephemeris", apitest.EphemerisQueryResults(6*time.Hour))
	query := writeFile(t, "gillam.yaml", gillamQuery)

	out, err := c.run("ephemeris", "search", query, "--poll-interval", "5ms", "--json")
	require.NoError(t, err)

	var recs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 5)
	for _, r := range recs {
		epoch := r["epoch"].(string)
		assert.GreaterOrEqual(t, epoch, "2020-01-01T00:00:00")
		assert.LessOrEqual(t, epoch, "2020-01-02T00:00:00")
	}

	out, err = c.run("requests", "list", "--format", "json")
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "ephemeris", entries[0]["kind"])
	assert.Equal(t, "completed", entries[0]["status"])
	assert.EqualValues(t, 5, entries[0]["result_count"])
}

func TestEphemerisSearch_Table(t *testing.T) {
	c := newCLI(t)
	c.srv.SetResults("ephemeris", apitest.EphemerisQueryResults(12*time.Hour))
	query := writeFile(t, "gillam.yaml", gillamQuery)

	out, err := c.run("ephemeris", "search", query, "--poll-interval", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Epoch")
	assert.Contains(t, out, "gillam")
	assert.Contains(t, out, "3 records")
}

func TestEphemerisSearch_Outfile(t *testing.T) {
	c := newCLI(t)
	c.srv.SetResults("ephemeris", apitest.EphemerisQueryResults(12*time.Hour))
	query := writeFile(t, "gillam.yaml", gillamQuery)
	outfile := filepath.Join(t.TempDir(), "out.json")

	out, err := c.run("ephemeris", "search", query, "--poll-interval", "1ms", "--outfile", outfile)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(outfile)
	require.NoError(t, err)
	var recs []map[string]any
	require.NoError(t, json.Unmarshal(data, &recs))
	assert.Len(t, recs, 3)
}

func TestSearch_InvalidQueryFile(t *testing.T) {
	c := newCLI(t)
	query := writeFile(t, "bad.json", `{"start": "2020-01-02T00:00:00", "end": "2020-01-01T00:00:00", "data_sources": {"platforms": ["gillam"]}}`)

	_, err := c.run("ephemeris", "search", query)
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, 0, c.srv.Calls("POST", "/api/v1/{kind}/search"))
}

func TestSearch_FailedRequest(t *testing.T) {
	c := newCLI(t)
	c.srv.ReadyAfter = 100
	query := writeFile(t, "gillam.yaml", gillamQuery)

	out, err := c.run("ephemeris", "search", query, "--no-wait")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	c.srv.FailRequest(id)

	_, err = c.run("ephemeris", "get-data", id)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRemote)
	assert.Contains(t, err.Error(), "search failed")
}

func TestSearch_Timeout(t *testing.T) {
	c := newCLI(t)
	c.srv.ReadyAfter = 1000
	query := writeFile(t, "gillam.yaml", gillamQuery)

	_, err := c.run("ephemeris", "search", query, "--poll-interval", "5ms", "--timeout", "40ms")
	assert.ErrorIs(t, err, types.ErrTimeout)
}

func TestRequestCommands(t *testing.T) {
	c := newCLI(t)
	c.srv.SetResults("ephemeris", apitest.EphemerisQueryResults(6*time.Hour))
	query := writeFile(t, "gillam.yaml", gillamQuery)

	out, err := c.run("ephemeris", "search", query, "--no-wait")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.Len(t, id, 36)

	out, err = c.run("ephemeris", "get-status", id, "--show-logs", "--show-query")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:       completed")
	assert.Contains(t, out, "Results:      5")
	assert.Contains(t, out, "search completed")
	assert.Contains(t, out, `"gillam"`)

	out, err = c.run("ephemeris", "get-logs", id, "--level", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "INFO")

	out, err = c.run("ephemeris", "get-logs", id, "--level", "error")
	require.NoError(t, err)
	assert.Equal(t, "No logs found.\n", out)

	out, err = c.run("ephemeris", "get-query", id, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "- gillam")
	reloaded, err := search.ReadQueryFile(writeFile(t, "query.yaml", out))
	require.NoError(t, err)
	assert.JSONEq(t, string(c.srv.Request(id).Query), string(reloaded))

	out, err = c.run("ephemeris", "get-data", id, "--json", "--page-size", "2")
	require.NoError(t, err)
	var recs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	assert.Len(t, recs, 5)
	assert.Equal(t, 3, c.srv.Calls("GET", "/api/v1/{kind}/requests/{id}/data"))

	out, err = c.run("ephemeris", "search-resubmit", id)
	require.NoError(t, err)
	next := strings.TrimSpace(out)
	assert.NotEqual(t, id, next)
	require.NotNil(t, c.srv.Request(next))
	assert.JSONEq(t, string(c.srv.Request(id).Query), string(c.srv.Request(next).Query))
}

func TestRequestCommands_WrongKind(t *testing.T) {
	c := newCLI(t)
	query := writeFile(t, "gillam.yaml", gillamQuery)

	out, err := c.run("ephemeris", "search", query, "--no-wait")
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	_, err = c.run("conjunctions", "get-status", id)
	assert.True(t, types.IsNotFound(err), "got %v", err)
}

func TestRequestCommands_InvalidID(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("data-products", "get-status", "not-a-uuid")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestCancel(t *testing.T) {
	c := newCLI(t)
	c.srv.ReadyAfter = 100
	query := writeFile(t, "gillam.yaml", gillamQuery)

	out, err := c.run("ephemeris", "search", query, "--no-wait")
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	out, err = c.run("ephemeris", "cancel", id, "--wait", "--poll-interval", "1ms")
	require.NoError(t, err)
	assert.Equal(t, "Request "+id+" is failed\n", out)
	assert.True(t, c.srv.Request(id).Cancelled)
}

func TestSearchTemplate(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("conjunctions", "search-template", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "conjunction_types:")
	assert.Contains(t, out, "ground:")

	path := filepath.Join(t.TempDir(), "template.yaml")
	_, err = c.run("conjunctions", "search-template", "--outfile", path)
	require.NoError(t, err)

	out, err = c.run("conjunctions", "describe", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Find conjunctions of type")
	assert.Contains(t, out, "ground1")
}

func TestDataProductsTemplateRoundTrip(t *testing.T) {
	c := newCLI(t)
	path := filepath.Join(t.TempDir(), "template.json")
	_, err := c.run("data-products", "search-template", "--outfile", path)
	require.NoError(t, err)

	out, err := c.run("data-products", "search", path, "--no-wait")
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	out, err = c.run("data-products", "get-data", id)
	require.NoError(t, err)
	assert.Equal(t, "No results found.\n", out)
}

func testSources() []map[string]any {
	return []map[string]any{
		apitest.DataSource(1, "themis-asi", "gillam", "panchromatic ASI", "ground"),
		apitest.DataSource(2, "swarm", "swarma", "footprint", "leo"),
		apitest.DataSource(3, "themis-asi", "fort_smith", "panchromatic ASI", "ground"),
	}
}

func TestSources(t *testing.T) {
	c := newCLI(t)
	c.srv.Sources = testSources()

	out, err := c.run("sources", "list", "--program", "themis-asi", "--order", "platform")
	require.NoError(t, err)
	assert.Contains(t, out, "2 data sources")
	assert.Less(t, strings.Index(out, "fort_smith"), strings.Index(out, "gillam"))

	out, err = c.run("sources", "search", "--platform", "gillam,swarma", "--json")
	require.NoError(t, err)
	var list []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list, 2)

	out, err = c.run("sources", "get", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "swarma")

	out, err = c.run("sources", "get", "--program", "themis-asi", "--platform", "gillam", "--instrument-type", "panchromatic ASI", "--show-owner")
	require.NoError(t, err)
	assert.Contains(t, out, "aurorax@example.org")

	_, err = c.run("sources", "get", "99")
	assert.True(t, types.IsNotFound(err), "got %v", err)

	_, err = c.run("sources", "list", "--source-type", "blimp")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestSourcesSchemaAndAvailability(t *testing.T) {
	c := newCLI(t)
	c.srv.Sources = testSources()
	c.srv.Sources[1]["ephemeris_metadata_schema"] = []map[string]any{
		{"field_name": "nbtrace_region", "description": "Region of the north B-trace", "data_type": "string",
			"allowed_values": []string{"north polar cap", "north auroral oval"}},
	}
	c.srv.Availability = map[int]map[string]int{2: {"2019-01-01": 1440, "2019-01-03": 60}}

	out, err := c.run("sources", "schema", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "nbtrace_region")
	assert.Contains(t, out, "allowed: north polar cap, north auroral oval")

	out, err = c.run("sources", "schema", "--program", "swarm", "--platform", "swarma", "--instrument-type", "footprint", "--json")
	require.NoError(t, err)
	var fields []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &fields))
	require.Len(t, fields, 1)
	assert.Equal(t, "string", fields[0]["data_type"])

	out, err = c.run("sources", "schema", "2", "--data-products")
	require.NoError(t, err)
	assert.Equal(t, "No metadata schema found.\n", out)

	out, err = c.run("sources", "availability", "--start", "2019-01-01", "--end", "2019-01-10", "--program", "swarm")
	require.NoError(t, err)
	assert.Contains(t, out, "2019-01-01..2019-01-03")
	assert.Contains(t, out, "1500")

	out, err = c.run("sources", "availability", "--start", "2019-01-01", "--end", "2019-01-10", "--data-products", "--json")
	require.NoError(t, err)
	var avail []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &avail))
	assert.Len(t, avail, 3)

	_, err = c.run("sources", "availability", "--start", "2019-01-10", "--end", "2019-01-01")
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = c.run("sources", "availability", "--start", "Jan 1")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func uploadFile(t *testing.T, identifier int) string {
	t.Helper()
	epoch := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := []json.RawMessage{
		apitest.EphemerisRecord(identifier, "themis-asi", "gillam", epoch),
		apitest.EphemerisRecord(identifier, "themis-asi", "gillam", epoch.Add(time.Minute)),
	}
	data, err := json.Marshal(recs)
	require.NoError(t, err)
	return writeFile(t, "records.json", string(data))
}

func TestEphemerisUpload(t *testing.T) {
	c := newCLI(t)
	c.srv.Sources = testSources()
	c.srv.APIKey = "secret"
	t.Setenv("AURORAX_API_KEY", "secret")

	out, err := c.run("ephemeris", "upload", "1", uploadFile(t, 1))
	require.NoError(t, err)
	assert.Equal(t, "Uploaded 2 records to data source 1\n", out)
	assert.Len(t, c.srv.Uploads[1], 2)
}

func TestEphemerisUpload_KeyFromSecrets(t *testing.T) {
	c := newCLI(t)
	c.srv.Sources = testSources()
	c.srv.APIKey = "from-file"
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, "aurorax-api-key"), []byte("from-file\n"), 0o600))

	_, err := c.run("ephemeris", "upload", "1", uploadFile(t, 1), "--check-source=false")
	require.NoError(t, err)
	assert.Len(t, c.srv.Uploads[1], 2)
}

func TestEphemerisUpload_RequiresKey(t *testing.T) {
	c := newCLI(t)
	c.srv.Sources = testSources()

	_, err := c.run("ephemeris", "upload", "1", uploadFile(t, 1))
	assert.ErrorIs(t, err, types.ErrAuthentication)
	assert.Empty(t, c.srv.Uploads)
}

func TestEphemerisUpload_WrongSource(t *testing.T) {
	c := newCLI(t)
	c.srv.Sources = testSources()
	t.Setenv("AURORAX_API_KEY", "secret")

	_, err := c.run("ephemeris", "upload", "2", uploadFile(t, 1))
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Empty(t, c.srv.Uploads)
}

func TestRequestsRefresh(t *testing.T) {
	c := newCLI(t)
	c.srv.ReadyAfter = 2
	query := writeFile(t, "gillam.yaml", gillamQuery)

	var ids []string
	for range 3 {
		out, err := c.run("ephemeris", "search", query, "--no-wait")
		require.NoError(t, err)
		ids = append(ids, strings.TrimSpace(out))
	}

	// First check: every request is still pending.
	out, err := c.run("requests", "refresh")
	require.NoError(t, err)
	for _, id := range ids {
		assert.Contains(t, out, id)
	}
	assert.NotContains(t, out, "completed")

	out, err = c.run("requests", "refresh")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "completed *"))

	out, err = c.run("requests", "list", "--status", "completed")
	require.NoError(t, err)
	for _, id := range ids {
		assert.Contains(t, out, id)
	}

	out, err = c.run("requests", "refresh")
	require.NoError(t, err)
	assert.Equal(t, "No unfinished requests.\n", out)
}

func TestRequestsList_Filters(t *testing.T) {
	c := newCLI(t)
	query := writeFile(t, "gillam.yaml", gillamQuery)
	_, err := c.run("ephemeris", "search", query, "--no-wait")
	require.NoError(t, err)

	out, err := c.run("requests", "list", "--kind", "conjunctions")
	require.NoError(t, err)
	assert.Equal(t, "No requests recorded.\n", out)

	out, err = c.run("requests", "list", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "kind: ephemeris")

	_, err = c.run("requests", "list", "--format", "xml")
	assert.Error(t, err)
}

func TestNoHistory(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("--no-history", "requests", "list")
	assert.ErrorIs(t, err, types.ErrValidation)

	query := writeFile(t, "gillam.yaml", gillamQuery)
	_, err = c.run("--no-history", "ephemeris", "search", query, "--no-wait")
	require.NoError(t, err)
	_, statErr := os.Stat(c.history)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStats(t *testing.T) {
	c := newCLI(t)
	c.srv.Sources = testSources()

	var errOut bytes.Buffer
	resetFlags(rootCmd)
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"--base-url", c.srv.URL, "--history", c.history, "--stats", "sources", "list"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, errOut.String(), `aurorax_client_requests_total{code="200",method="get"} 1`)
}
