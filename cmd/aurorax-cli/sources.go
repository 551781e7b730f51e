// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/aurorax-go/internal/records"
	"github.com/pdiddy/aurorax-go/internal/sources"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List and look up AuroraX data sources",
	Long: `Sources lists the data sources (instruments and spacecraft) known to
AuroraX. Search criteria refer to sources by program, platform and
instrument type; uploads refer to them by identifier.`,
}

// --- list subcommand ---

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List data sources, optionally filtered by exact field values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := sources.Filter{}
		f.Program, _ = cmd.Flags().GetString("program")
		f.Platform, _ = cmd.Flags().GetString("platform")
		f.InstrumentType, _ = cmd.Flags().GetString("instrument-type")
		f.SourceType, _ = cmd.Flags().GetString("source-type")
		f.Owner, _ = cmd.Flags().GetString("owner")

		list, err := sources.List(cmd.Context(), client, f)
		if err != nil {
			return err
		}
		return writeSources(cmd, list)
	},
}

// --- search subcommand ---

var sourcesSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search data sources matching any of the listed values",
	Long: `Search returns the data sources whose program, platform and instrument
type are each in the given lists. Lists are comma separated; an omitted
list matches everything.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := sources.SearchFilter{}
		f.Programs, _ = cmd.Flags().GetStringSlice("program")
		f.Platforms, _ = cmd.Flags().GetStringSlice("platform")
		f.InstrumentTypes, _ = cmd.Flags().GetStringSlice("instrument-type")

		list, err := sources.Search(cmd.Context(), client, f)
		if err != nil {
			return err
		}
		return writeSources(cmd, list)
	},
}

// --- get subcommand ---

var sourcesGetCmd = &cobra.Command{
	Use:   "get [identifier]",
	Short: "Show one data source by identifier or by program, platform and instrument type",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := resolveSource(cmd, args)
		if err != nil {
			return err
		}
		return writeSources(cmd, []records.DataSource{ds})
	},
}

// resolveSource looks a source up by the identifier argument, or by the
// --program, --platform and --instrument-type flags when there is none.
func resolveSource(cmd *cobra.Command, args []string) (records.DataSource, error) {
	if len(args) == 1 {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return records.DataSource{}, types.Invalid("identifier", "%q is not a data source identifier", args[0])
		}
		return sources.Get(cmd.Context(), client, id)
	}
	program, _ := cmd.Flags().GetString("program")
	platform, _ := cmd.Flags().GetString("platform")
	instrumentType, _ := cmd.Flags().GetString("instrument-type")
	if program == "" || platform == "" || instrumentType == "" {
		return records.DataSource{}, types.Invalid("data_source", "give an identifier or all of --program, --platform and --instrument-type")
	}
	return sources.Find(cmd.Context(), client, program, platform, instrumentType)
}

// --- schema subcommand ---

var sourcesSchemaCmd = &cobra.Command{
	Use:   "schema [identifier]",
	Short: "Show the metadata schema of a data source",
	Long: `Schema prints the metadata keys a data source reports with its ephemeris
records, or with its data products when --data-products is set. These are
the keys metadata filters in query files can test.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := resolveSource(cmd, args)
		if err != nil {
			return err
		}
		lookup := sources.EphemerisSchema
		if products, _ := cmd.Flags().GetBool("data-products"); products {
			lookup = sources.DataProductSchema
		}
		fields, err := lookup(cmd.Context(), client, ds.Identifier)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return records.FormatJSON(fields, cmd.OutOrStdout())
		}
		sources.FormatSchemaTable(fields, cmd.OutOrStdout())
		return nil
	},
}

// --- availability subcommand ---

var sourcesAvailabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Show how many records data sources hold per day",
	Long: `Availability reports, for every data source matching the filters, the
days between --start and --end (inclusive, YYYY-MM-DD) that hold ephemeris
records, or data products when --data-products is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := sources.AvailabilityFilter{}
		for _, d := range []struct {
			flag string
			dst  *time.Time
		}{{"start", &f.Start}, {"end", &f.End}} {
			v, _ := cmd.Flags().GetString(d.flag)
			if v == "" {
				return types.Invalid(d.flag, "--%s is required", d.flag)
			}
			t, err := time.Parse(sources.DateLayout, v)
			if err != nil {
				return types.Invalid(d.flag, "%q is not a YYYY-MM-DD date", v)
			}
			*d.dst = t
		}
		f.Program, _ = cmd.Flags().GetString("program")
		f.Platform, _ = cmd.Flags().GetString("platform")
		f.InstrumentType, _ = cmd.Flags().GetString("instrument-type")
		f.SourceType, _ = cmd.Flags().GetString("source-type")
		f.Owner, _ = cmd.Flags().GetString("owner")

		lookup := sources.EphemerisAvailability
		if products, _ := cmd.Flags().GetBool("data-products"); products {
			lookup = sources.DataProductAvailability
		}
		list, err := lookup(cmd.Context(), client, f)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return records.FormatJSON(list, cmd.OutOrStdout())
		}
		sources.FormatAvailabilityTable(list, cmd.OutOrStdout())
		return nil
	},
}

func writeSources(cmd *cobra.Command, list []records.DataSource) error {
	if column, _ := cmd.Flags().GetString("order"); column != "" {
		reversed, _ := cmd.Flags().GetBool("reversed")
		if err := sources.Order(list, column, reversed); err != nil {
			return err
		}
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return records.FormatJSON(list, cmd.OutOrStdout())
	}
	withOwner, _ := cmd.Flags().GetBool("show-owner")
	sources.FormatTable(list, withOwner, cmd.OutOrStdout())
	return nil
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("order", "", "sort by column (identifier, program, platform, instrument_type, source_type, display_name, owner)")
	cmd.Flags().Bool("reversed", false, "reverse the sort order")
	cmd.Flags().Bool("json", false, "output as JSON")
	cmd.Flags().Bool("show-owner", false, "include the owner column")
}

func init() {
	sourcesListCmd.Flags().String("program", "", "filter by program")
	sourcesListCmd.Flags().String("platform", "", "filter by platform")
	sourcesListCmd.Flags().String("instrument-type", "", "filter by instrument type")
	sourcesListCmd.Flags().String("source-type", "", "filter by source type (ground, leo, heo, lunar, event_list, not_applicable)")
	sourcesListCmd.Flags().String("owner", "", "filter by owner")
	addOutputFlags(sourcesListCmd)

	sourcesSearchCmd.Flags().StringSlice("program", nil, "programs to match")
	sourcesSearchCmd.Flags().StringSlice("platform", nil, "platforms to match")
	sourcesSearchCmd.Flags().StringSlice("instrument-type", nil, "instrument types to match")
	addOutputFlags(sourcesSearchCmd)

	sourcesGetCmd.Flags().String("program", "", "program of the source")
	sourcesGetCmd.Flags().String("platform", "", "platform of the source")
	sourcesGetCmd.Flags().String("instrument-type", "", "instrument type of the source")
	addOutputFlags(sourcesGetCmd)

	sourcesSchemaCmd.Flags().String("program", "", "program of the source")
	sourcesSchemaCmd.Flags().String("platform", "", "platform of the source")
	sourcesSchemaCmd.Flags().String("instrument-type", "", "instrument type of the source")
	sourcesSchemaCmd.Flags().Bool("data-products", false, "show the data product schema instead of the ephemeris schema")
	sourcesSchemaCmd.Flags().Bool("json", false, "output as JSON")

	sourcesAvailabilityCmd.Flags().String("start", "", "first day, YYYY-MM-DD")
	sourcesAvailabilityCmd.Flags().String("end", "", "last day, YYYY-MM-DD")
	sourcesAvailabilityCmd.Flags().String("program", "", "filter by program")
	sourcesAvailabilityCmd.Flags().String("platform", "", "filter by platform")
	sourcesAvailabilityCmd.Flags().String("instrument-type", "", "filter by instrument type")
	sourcesAvailabilityCmd.Flags().String("source-type", "", "filter by source type")
	sourcesAvailabilityCmd.Flags().String("owner", "", "filter by owner")
	sourcesAvailabilityCmd.Flags().Bool("data-products", false, "report data products instead of ephemeris")
	sourcesAvailabilityCmd.Flags().Bool("json", false, "output per-day counts as JSON")

	sourcesCmd.AddCommand(sourcesListCmd, sourcesSearchCmd, sourcesGetCmd, sourcesSchemaCmd, sourcesAvailabilityCmd)
	rootCmd.AddCommand(sourcesCmd)
}
