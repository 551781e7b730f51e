// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/aurorax-go/internal/history"
	"github.com/pdiddy/aurorax-go/internal/records"
	"github.com/pdiddy/aurorax-go/internal/search"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

// Search groups, one per search kind. Each carries the same request
// subcommands; kind-specific extras are added in their own files.
var (
	conjunctionsCmd = newSearchGroup(search.KindConjunctions, "conjunctions",
		"Search for conjunctions between ground and space instruments")
	ephemerisCmd = newSearchGroup(search.KindEphemeris, "ephemeris",
		"Search ephemeris records of AuroraX data sources")
	dataProductsCmd = newSearchGroup(search.KindDataProducts, "data-products",
		"Search data products such as keograms and montages")
)

func init() {
	rootCmd.AddCommand(conjunctionsCmd, ephemerisCmd, dataProductsCmd)
}

// newSearchGroup builds the command group for one search kind.
func newSearchGroup(kind search.Kind, use, short string) *cobra.Command {
	group := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

Searches run asynchronously on the API. search submits a query file and
waits for the result; the get-* commands inspect a request by its ID.`,
	}

	searchCmd := &cobra.Command{
		Use:   "search <query-file>",
		Short: "Submit a search and print its results",
		Long: `Search reads criteria from a JSON or YAML query file, submits the search,
waits for it to complete and prints the results. With --no-wait only the
request ID is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, kind, args[0])
		},
	}
	addWaitFlags(searchCmd)
	addDataFlags(searchCmd)
	searchCmd.Flags().Bool("no-wait", false, "print the request ID and exit without waiting")

	statusCmd := &cobra.Command{
		Use:   "get-status <request-id>",
		Short: "Print the status of a search request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGetStatus(cmd, kind, args[0])
		},
	}
	statusCmd.Flags().Bool("show-logs", false, "also print the request logs")
	statusCmd.Flags().Bool("show-query", false, "also print the request query")

	logsCmd := &cobra.Command{
		Use:   "get-logs <request-id>",
		Short: "Print the logs of a search request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGetLogs(cmd, kind, args[0])
		},
	}
	logsCmd.Flags().String("level", "", "only show logs at this level (debug, info, warn, error)")

	queryCmd := &cobra.Command{
		Use:   "get-query <request-id>",
		Short: "Print the query of a search request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGetQuery(cmd, kind, args[0])
		},
	}
	queryCmd.Flags().String("format", "json", "output format: json or yaml")
	queryCmd.Flags().String("outfile", "", "write the query to this file instead of stdout")

	dataCmd := &cobra.Command{
		Use:   "get-data <request-id>",
		Short: "Print the results of a completed search request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGetData(cmd, kind, args[0])
		},
	}
	addDataFlags(dataCmd)

	resubmitCmd := &cobra.Command{
		Use:   "search-resubmit <request-id>",
		Short: "Submit the query of an earlier request again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResubmit(cmd, kind, args[0])
		},
	}

	templateCmd := &cobra.Command{
		Use:   "search-template",
		Short: "Print an example query file",
		Long: `Search-template prints an example query that can be edited and passed to
search. With --outfile the format follows the file extension.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplate(cmd, kind)
		},
	}
	templateCmd.Flags().String("format", "json", "output format: json or yaml")
	templateCmd.Flags().String("outfile", "", "write the template to this file instead of stdout")

	cancelCmd := &cobra.Command{
		Use:   "cancel <request-id>",
		Short: "Cancel a running search request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(cmd, kind, args[0])
		},
	}
	cancelCmd.Flags().Bool("wait", false, "wait until the API reports the request as finished")
	addWaitFlags(cancelCmd)

	group.AddCommand(searchCmd, statusCmd, logsCmd, queryCmd, dataCmd, resubmitCmd, templateCmd, cancelCmd)
	return group
}

func addWaitFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("poll-interval", 0, "minimum delay between status checks (default 1s)")
	cmd.Flags().Duration("timeout", 0, "give up waiting after this long (default: no limit)")
}

func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().String("outfile", "", "write results as JSON to this file")
	cmd.Flags().Bool("json", false, "print results as JSON instead of a table")
	cmd.Flags().Int("page-size", 0, "records fetched per result page (default 10000)")
	cmd.Flags().Bool("abort-on-malformed", false, "fail on the first malformed record instead of skipping it")
}

// pollOptions overlays the command's wait flags on the configured
// polling settings.
func pollOptions(cmd *cobra.Command) types.PollConfig {
	opts := cfg.Poll
	if d, _ := cmd.Flags().GetDuration("poll-interval"); d > 0 {
		opts.Interval = d
		if opts.MaxInterval < d {
			opts.MaxInterval = d
		}
	}
	if d, _ := cmd.Flags().GetDuration("timeout"); d > 0 {
		opts.Timeout = d
	}
	return opts.WithDefaults()
}

func attach(kind search.Kind, id string) (*search.Request, error) {
	return search.Attach(client, kind, id)
}

// --- search ---

func runSearch(cmd *cobra.Command, kind search.Kind, path string) error {
	ctx := cmd.Context()
	criteria, err := search.LoadCriteria(path, kind)
	if err != nil {
		return err
	}

	req, err := search.Submit(ctx, client, criteria)
	if err != nil {
		return err
	}
	logger.Info("search submitted", zap.String("kind", string(kind)), zap.String("request_id", req.ID))
	recordRequest(ctx, req)

	if noWait, _ := cmd.Flags().GetBool("no-wait"); noWait {
		fmt.Fprintln(cmd.OutOrStdout(), req.ID)
		return nil
	}

	_, err = req.Wait(ctx, pollOptions(cmd), logger)
	recordRequest(ctx, req)
	if err != nil {
		return err
	}
	if err := req.Err(); err != nil {
		return err
	}
	return writeData(cmd, req)
}

// --- get-status ---

func runGetStatus(cmd *cobra.Command, kind search.Kind, id string) error {
	ctx := cmd.Context()
	req, err := attach(kind, id)
	if err != nil {
		return err
	}
	if err := req.UpdateStatus(ctx); err != nil {
		return err
	}
	recordRequest(ctx, req)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Request ID:   %s\n", req.ID)
	fmt.Fprintf(w, "Kind:         %s\n", req.Kind)
	fmt.Fprintf(w, "Status:       %s\n", req.Status)
	if req.Status == types.StatusCompleted {
		fmt.Fprintf(w, "Results:      %d\n", req.ResultCount)
		fmt.Fprintf(w, "File size:    %d bytes\n", req.FileSize)
		fmt.Fprintf(w, "Data URL:     %s\n", req.DataURL)
	}
	if err := req.Err(); err != nil {
		fmt.Fprintf(w, "Error:        %v\n", err)
	}

	if show, _ := cmd.Flags().GetBool("show-logs"); show {
		fmt.Fprintln(w)
		writeLogs(w, req.Logs)
	}
	if show, _ := cmd.Flags().GetBool("show-query"); show && len(req.Query) > 0 {
		data, err := search.FormatQuery(req.Query, false)
		if err != nil {
			return err
		}
		fmt.Fprintln(w)
		w.Write(data)
	}
	return nil
}

// --- get-logs ---

func runGetLogs(cmd *cobra.Command, kind search.Kind, id string) error {
	req, err := attach(kind, id)
	if err != nil {
		return err
	}
	if err := req.UpdateStatus(cmd.Context()); err != nil {
		return err
	}
	level, _ := cmd.Flags().GetString("level")
	writeLogs(cmd.OutOrStdout(), types.FilterLogs(req.Logs, level))
	return nil
}

func writeLogs(w io.Writer, logs []types.LogEntry) {
	if len(logs) == 0 {
		fmt.Fprintln(w, "No logs found.")
		return
	}
	for _, l := range logs {
		fmt.Fprintf(w, "%-26s  %-5s  %s\n", l.Timestamp, strings.ToUpper(l.Level), l.Summary)
	}
}

// --- get-query ---

func runGetQuery(cmd *cobra.Command, kind search.Kind, id string) error {
	req, err := attach(kind, id)
	if err != nil {
		return err
	}
	// Rebuilding criteria checks that the stored query is well formed.
	c, err := req.Criteria(cmd.Context())
	if err != nil {
		return err
	}
	query, err := c.Query()
	if err != nil {
		return err
	}
	return writeQuery(cmd, query)
}

func writeQuery(cmd *cobra.Command, query []byte) error {
	if outfile, _ := cmd.Flags().GetString("outfile"); outfile != "" {
		if err := search.WriteQueryFile(outfile, query); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outfile)
		return nil
	}
	format, _ := cmd.Flags().GetString("format")
	var asYAML bool
	switch format {
	case "json", "":
	case "yaml", "yml":
		asYAML = true
	default:
		return fmt.Errorf("unsupported format %q: use json or yaml", format)
	}
	data, err := search.FormatQuery(query, asYAML)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// --- get-data ---

func runGetData(cmd *cobra.Command, kind search.Kind, id string) error {
	req, err := attach(kind, id)
	if err != nil {
		return err
	}
	if err := req.UpdateStatus(cmd.Context()); err != nil {
		return err
	}
	recordRequest(cmd.Context(), req)
	return writeData(cmd, req)
}

// writeData fetches, parses and prints the results of a completed
// request according to the command's data flags.
func writeData(cmd *cobra.Command, req *search.Request) error {
	ctx := cmd.Context()
	pageSize, _ := cmd.Flags().GetInt("page-size")
	if pageSize <= 0 {
		pageSize = cfg.Results.PageSize
	}
	policy := records.SkipMalformed
	if abort, _ := cmd.Flags().GetBool("abort-on-malformed"); abort {
		policy = records.AbortOnMalformed
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	outfile, _ := cmd.Flags().GetString("outfile")

	var (
		report   records.Report
		toJSON   func(io.Writer) error
		toTable  func(io.Writer)
		fetchErr error
	)
	switch req.Kind {
	case search.KindEphemeris:
		var recs []records.Ephemeris
		recs, report, fetchErr = req.Ephemeris(ctx, pageSize, policy)
		toJSON = func(w io.Writer) error { return records.FormatJSON(recs, w) }
		toTable = func(w io.Writer) { records.FormatEphemerisTable(recs, w) }
	case search.KindConjunctions:
		var recs []records.Conjunction
		recs, report, fetchErr = req.Conjunctions(ctx, pageSize, policy)
		toJSON = func(w io.Writer) error { return records.FormatJSON(recs, w) }
		toTable = func(w io.Writer) { records.FormatConjunctionTable(recs, w) }
	case search.KindDataProducts:
		var recs []records.DataProduct
		recs, report, fetchErr = req.DataProducts(ctx, pageSize, policy)
		toJSON = func(w io.Writer) error { return records.FormatJSON(recs, w) }
		toTable = func(w io.Writer) { records.FormatDataProductTable(recs, w) }
	default:
		return types.Invalid("kind", "unknown search kind %q", req.Kind)
	}
	if fetchErr != nil {
		return fetchErr
	}
	for _, skipped := range report.Skipped {
		logger.Warn("skipped malformed record", zap.Error(skipped))
	}
	if n := report.Total(); n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %d malformed record(s)\n", n)
	}

	if outfile != "" {
		f, err := os.Create(outfile)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outfile, err)
		}
		defer f.Close()
		if err := toJSON(f); err != nil {
			return fmt.Errorf("writing %s: %w", outfile, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outfile)
		return nil
	}
	if asJSON {
		return toJSON(cmd.OutOrStdout())
	}
	toTable(cmd.OutOrStdout())
	return nil
}

// --- search-resubmit ---

func runResubmit(cmd *cobra.Command, kind search.Kind, id string) error {
	ctx := cmd.Context()
	req, err := attach(kind, id)
	if err != nil {
		return err
	}
	next, err := req.Resubmit(ctx)
	if err != nil {
		return err
	}
	recordRequest(ctx, next)
	fmt.Fprintln(cmd.OutOrStdout(), next.ID)
	return nil
}

// --- search-template ---

func runTemplate(cmd *cobra.Command, kind search.Kind) error {
	query, err := search.Template(kind)
	if err != nil {
		return err
	}
	return writeQuery(cmd, query)
}

// --- cancel ---

func runCancel(cmd *cobra.Command, kind search.Kind, id string) error {
	ctx := cmd.Context()
	req, err := attach(kind, id)
	if err != nil {
		return err
	}
	wait, _ := cmd.Flags().GetBool("wait")
	if err := req.Cancel(ctx, wait, pollOptions(cmd), logger); err != nil {
		return err
	}
	if wait {
		recordRequest(ctx, req)
		fmt.Fprintf(cmd.OutOrStdout(), "Request %s is %s\n", req.ID, req.Status)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for %s\n", req.ID)
	return nil
}

// recordRequest stores the request in the local history. Failures are
// logged and never fail the command.
func recordRequest(ctx context.Context, req *search.Request) {
	store, err := openHistory()
	if err != nil {
		logger.Warn("opening request history", zap.Error(err))
		return
	}
	if store == nil {
		return
	}
	defer store.Close()

	err = store.Record(ctx, history.Entry{
		RequestID:   req.ID,
		Kind:        string(req.Kind),
		RequestURL:  req.URL,
		Query:       req.Query,
		Status:      req.Status,
		ResultCount: req.ResultCount,
	})
	if err != nil {
		logger.Warn("recording request", zap.String("request_id", req.ID), zap.Error(err))
	}
}
