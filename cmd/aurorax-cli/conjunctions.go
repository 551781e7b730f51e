// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/aurorax-go/internal/search"
)

var describeCmd = &cobra.Command{
	Use:   "describe <query-file>",
	Short: "Describe a conjunction query in plain language",
	Long: `Describe sends a conjunction query file to the API, which renders it as
an SQL-like sentence. The query is validated first, so describe is a cheap
way to check a query file before searching with it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := search.LoadCriteria(args[0], search.KindConjunctions)
		if err != nil {
			return err
		}
		text, err := search.Describe(cmd.Context(), client, c.(search.ConjunctionCriteria))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	conjunctionsCmd.AddCommand(describeCmd)
}
