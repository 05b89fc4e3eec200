package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/advisor/internal/advisor"
)

func queryCMD(load configLoader) *cobra.Command {
	var table string
	query := &cobra.Command{
		Use:   "query [prompt]",
		Short: "Translate a prompt to read-only SQL and run it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			rt, err := advisor.Open(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.SanitizeAndRun(cmd.Context(), strings.Join(args, " "), table)
			var qe *advisor.QueryError
			if errors.As(err, &qe) {
				cmd.PrintErrf("sql: %s\n", qe.SQL)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	query.Flags().StringVar(&table, "table", "", "main table hint")
	return query
}
