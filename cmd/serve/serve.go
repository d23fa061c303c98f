package serve

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/brandforge-go/internal/api"
	"github.com/tphakala/brandforge-go/internal/conf"
	"github.com/tphakala/brandforge-go/internal/runtime"
)

// Command creates the serve command that runs the HTTP API server.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long:  "Start the REST API for brand registration, training launches and image generation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.ValidateProviderSettings(settings); err != nil {
				return err
			}
			return runServer(settings)
		},
	}

	setupFlags(cmd, settings)
	return cmd
}

func runServer(settings *conf.Settings) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := runtime.Build(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	server := api.NewServer(settings, app.DS, app.Orchestrator, app.Metrics)
	return server.Start(ctx)
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the HTTP server")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		cmd.PrintErrf("error binding flags: %v\n", err)
	}
}
