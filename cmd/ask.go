package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/advisor/internal/advisor"
)

func askCMD(load configLoader) *cobra.Command {
	var route bool
	ask := &cobra.Command{
		Use:   "ask [message]",
		Short: "Plan, run tools and answer one message",
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

			flow := rt.GeneratePlanAndAnswer
			if route {
				flow = rt.RouteAndAnswer
			}
			ans, err := flow(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ans)
		},
	}
	ask.Flags().BoolVar(&route, "route", false, "use the single-step flow")
	return ask
}
