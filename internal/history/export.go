// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"
)

// ExportYAML writes entries as YAML to w. Queries are omitted.
func ExportYAML(entries []Entry, w io.Writer) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ExportJSON writes entries as indented JSON to w.
func ExportJSON(entries []Entry, w io.Writer) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// FormatTable writes entries as a table to w.
func FormatTable(entries []Entry, w io.Writer) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No requests recorded.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-13s  %-9s  %8s  %s\n", "Request ID", "Kind", "Status", "Results", "Submitted")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for _, e := range entries {
		fmt.Fprintf(w, "%-36s  %-13s  %-9s  %8d  %s\n",
			e.RequestID, e.Kind, e.Status, e.ResultCount, e.SubmittedAt.Local().Format("2006-01-02 15:04:05"))
	}
}
