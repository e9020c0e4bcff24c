package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chronicle-db/timetable"
	"github.com/chronicle-db/timetable/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured tables over HTTP.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr := getString(cmd, "addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		store, err := timetable.Open(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.New(store).ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address, overrides server.addr")
}
