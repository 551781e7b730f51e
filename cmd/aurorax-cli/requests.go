// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/aurorax-go/internal/history"
	"github.com/pdiddy/aurorax-go/internal/search"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

// refreshConcurrency bounds the status checks run at once by refresh.
const refreshConcurrency = 4

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Inspect the local history of search requests",
	Long: `Requests manages the local SQLite history of every search the CLI has
submitted or looked at. Use list to see past requests and refresh to update
the status of the ones still running.`,
}

// --- list subcommand ---

var requestsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded search requests, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRequestsList,
}

func runRequestsList(cmd *cobra.Command, args []string) error {
	f, err := historyFilter(cmd)
	if err != nil {
		return err
	}
	store, err := requireHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context(), f)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "table", "":
		history.FormatTable(entries, cmd.OutOrStdout())
		return nil
	case "json":
		return history.ExportJSON(entries, cmd.OutOrStdout())
	case "yaml":
		return history.ExportYAML(entries, cmd.OutOrStdout())
	}
	return fmt.Errorf("unsupported format %q: use table, json or yaml", format)
}

func historyFilter(cmd *cobra.Command) (history.Filter, error) {
	var f history.Filter
	if kind, _ := cmd.Flags().GetString("kind"); kind != "" {
		k, err := search.ParseKind(kind)
		if err != nil {
			return f, err
		}
		f.Kind = string(k)
	}
	if status, _ := cmd.Flags().GetString("status"); status != "" {
		s, err := types.ParseJobStatus(status)
		if err != nil {
			return f, err
		}
		f.Status = s
	}
	f.Limit, _ = cmd.Flags().GetInt("limit")
	return f, nil
}

func requireHistory() (*history.Store, error) {
	store, err := openHistory()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, types.Invalid("history", "request history is disabled")
	}
	return store, nil
}

// --- refresh subcommand ---

var requestsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Update the status of recorded requests that have not finished",
	Long: `Refresh checks every recorded request that is still pending or running
and stores its current status. Statuses only move forward: a request that
has completed or failed is never set back.`,
	Args: cobra.NoArgs,
	RunE: runRequestsRefresh,
}

// refreshResult is the outcome of refreshing one entry.
type refreshResult struct {
	entry   history.Entry
	status  types.JobStatus
	changed bool
	err     error
}

func runRequestsRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f, err := historyFilter(cmd)
	if err != nil {
		return err
	}
	store, err := requireHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(ctx, f)
	if err != nil {
		return err
	}
	var open []history.Entry
	for _, e := range entries {
		if !e.Status.Terminal() {
			open = append(open, e)
		}
	}

	w := cmd.OutOrStdout()
	if len(open) == 0 {
		fmt.Fprintln(w, "No unfinished requests.")
		return nil
	}

	results := make([]refreshResult, len(open))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for i, e := range open {
		g.Go(func() error {
			results[i] = refreshEntry(gctx, store, e)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(w, "%-36s  %-13s  %-9s  %-9s\n", "Request ID", "Kind", "Was", "Now")
	fmt.Fprintln(w, strings.Repeat("-", 74))
	var failed int
	for _, r := range results {
		if r.err != nil {
			failed++
			logger.Warn("refreshing request", zap.String("request_id", r.entry.RequestID), zap.Error(r.err))
			fmt.Fprintf(w, "%-36s  %-13s  %-9s  %s\n", r.entry.RequestID, r.entry.Kind, r.entry.Status, "error")
			continue
		}
		now := string(r.status)
		if r.changed {
			now += " *"
		}
		fmt.Fprintf(w, "%-36s  %-13s  %-9s  %s\n", r.entry.RequestID, r.entry.Kind, r.entry.Status, now)
	}
	if failed > 0 {
		return fmt.Errorf("%d request(s) could not be refreshed", failed)
	}
	return nil
}

func refreshEntry(ctx context.Context, store *history.Store, e history.Entry) refreshResult {
	res := refreshResult{entry: e, status: e.Status}
	kind, err := search.ParseKind(e.Kind)
	if err != nil {
		res.err = err
		return res
	}
	req, err := search.Attach(client, kind, e.RequestID)
	if err != nil {
		res.err = err
		return res
	}
	req.Status = e.Status
	if err := req.UpdateStatus(ctx); err != nil {
		res.err = err
		return res
	}
	res.changed, res.err = store.Advance(ctx, e.RequestID, req.Status, req.ResultCount)
	res.status = req.Status
	return res
}

func addHistoryFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("kind", "", "only requests of this kind (conjunctions, ephemeris, data-products)")
	cmd.Flags().String("status", "", "only requests with this status (pending, running, completed, failed)")
	cmd.Flags().Int("limit", 0, "maximum number of requests (default: all)")
}

func init() {
	addHistoryFilterFlags(requestsListCmd)
	requestsListCmd.Flags().String("format", "table", "output format: table, json or yaml")
	addHistoryFilterFlags(requestsRefreshCmd)

	requestsCmd.AddCommand(requestsListCmd, requestsRefreshCmd)
	rootCmd.AddCommand(requestsCmd)
}
