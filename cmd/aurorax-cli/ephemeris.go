// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/aurorax-go/internal/sources"
	"github.com/pdiddy/aurorax-go/internal/upload"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <data-source-id> <records-file>",
	Short: "Upload ephemeris records for a data source",
	Long: `Upload reads a JSON list of ephemeris records and uploads them to the
given data source in one request. Every record must belong to that data
source; if any record is invalid nothing is uploaded.

Uploading requires an API key, set with AURORAX_API_KEY, api.key in the
config file, or .secrets/aurorax-api-key.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	identifier, err := strconv.Atoi(args[0])
	if err != nil {
		return types.Invalid("identifier", "%q is not a data source identifier", args[0])
	}

	recs, err := upload.ReadRecords(args[1])
	if err != nil {
		return err
	}

	if check, _ := cmd.Flags().GetBool("check-source"); check {
		ds, err := sources.Get(ctx, client, identifier)
		if err != nil {
			return err
		}
		logger.Info("uploading to data source",
			zap.Int("identifier", ds.Identifier),
			zap.String("program", ds.Program),
			zap.String("platform", ds.Platform),
			zap.String("instrument_type", ds.InstrumentType))
	}

	batch := upload.NewBatch(identifier)
	if err := batch.Add(recs...); err != nil {
		return err
	}
	n := batch.Len()
	if err := batch.Submit(ctx, client); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d records to data source %d\n", n, identifier)
	return nil
}

func init() {
	uploadCmd.Flags().Bool("check-source", true, "look up the data source before uploading")
	ephemerisCmd.AddCommand(uploadCmd)
}
