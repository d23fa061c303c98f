package train

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tphakala/brandforge-go/internal/conf"
	"github.com/tphakala/brandforge-go/internal/runtime"
)

// Command creates the train command that launches a training run for a brand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "train [brand-id]",
		Short: "Launch a training run for a brand",
		Long:  "Package the brand's training assets, provision the remote model and launch a training run.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.ValidateProviderSettings(settings); err != nil {
				return err
			}
			return runTraining(cmd.Context(), settings, args[0])
		},
	}
}

func runTraining(ctx context.Context, settings *conf.Settings, brandID string) error {
	app, err := runtime.Build(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	job, err := app.Orchestrator.LaunchTraining(ctx, brandID)
	if err != nil {
		return err
	}

	fmt.Printf("Training launched for brand %s\n", brandID)
	fmt.Printf("  job id:      %d\n", job.ID)
	fmt.Printf("  remote id:   %s\n", job.RemoteID)
	fmt.Printf("  destination: %s\n", job.Destination)
	fmt.Printf("  status:      %s\n", job.Status)
	return nil
}
