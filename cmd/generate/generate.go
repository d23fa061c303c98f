package generate

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tphakala/brandforge-go/internal/conf"
	"github.com/tphakala/brandforge-go/internal/orchestrator"
	"github.com/tphakala/brandforge-go/internal/runtime"
)

// Command creates the generate command that runs one inference for a brand.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		aspectRatio string
		seed        int64
		userID      string
	)

	cmd := &cobra.Command{
		Use:   "generate [brand-id] [prompt]",
		Short: "Generate an image with a brand's trained model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.ValidateProviderSettings(settings); err != nil {
				return err
			}

			var seedPtr *int64
			if cmd.Flags().Changed("seed") {
				seedPtr = &seed
			}
			return runGenerate(cmd.Context(), settings, &orchestrator.GenerateRequest{
				BrandID:     args[0],
				UserID:      userID,
				Prompt:      args[1],
				AspectRatio: aspectRatio,
				Seed:        seedPtr,
			})
		},
	}

	cmd.Flags().StringVar(&aspectRatio, "aspect", "", "Aspect ratio, for example 16:9 (default 1:1)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for reproducible output (random when omitted)")
	cmd.Flags().StringVar(&userID, "user", "", "User ID to record on the generated image")
	return cmd
}

func runGenerate(ctx context.Context, settings *conf.Settings, req *orchestrator.GenerateRequest) error {
	app, err := runtime.Build(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	result, err := app.Orchestrator.Generate(ctx, req)
	if err != nil {
		return err
	}

	switch result.State {
	case orchestrator.StatePending:
		fmt.Printf("Training is still %s, try again later\n", result.JobStatus)
	case orchestrator.StateFailed:
		fmt.Println("Training failed, re-train the brand before generating")
	default:
		fmt.Printf("Image ready: %s\n", result.Image.URL)
		fmt.Printf("  seed:   %d\n", result.Image.Seed)
		fmt.Printf("  aspect: %s\n", result.Image.AspectRatio)
	}
	return nil
}
