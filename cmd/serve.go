package main

import (
	"github.com/spf13/cobra"

	srv "github.com/mohammad-safakhou/advisor/internal/server"
)

func serveCMD(load configLoader) *cobra.Command {
	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context(), cfg, serveAddr, version)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.address)")
	return serve
}
