package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/iwvelando/ratio-dashboard/internal/server"
	"github.com/iwvelando/ratio-dashboard/pkg/constants"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(a *app) *cobra.Command {
	var (
		serverConfig string
		address      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web dashboard and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := a.loadDataset()
			if err != nil {
				return err
			}

			cfg, err := server.LoadConfig(serverConfig, server.FromConfiguration(a.conf))
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Address = address
			}

			handler := server.NewHandler(a.logger, ds, server.Options{
				Version:       version,
				MaxBodyBytes:  cfg.BodySizeBytes(),
				MaxViews:      cfg.MaxViews,
				Percentiles:   a.conf.Statistics.Percentiles,
				HistogramBins: a.conf.Statistics.HistogramBins,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info("starting ratio-dashboard",
				zap.String("op", "main.serve"),
				zap.String("version", version),
				zap.String("address", cfg.Address),
			)
			return server.Serve(ctx, a.logger, cfg, handler)
		},
	}

	cmd.Flags().StringVar(&serverConfig, "server-config", constants.DefaultServerConfigFile, "optional server configuration file")
	cmd.Flags().StringVar(&address, "address", "", "listen address override")
	return cmd
}
