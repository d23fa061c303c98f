package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/brandforge-go/cmd/generate"
	"github.com/tphakala/brandforge-go/cmd/serve"
	"github.com/tphakala/brandforge-go/cmd/train"
	"github.com/tphakala/brandforge-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "brandforge",
		Short:   "BrandForge CLI",
		Long:    "Train personalized image models on brand assets and generate on-brand images with them.",
		Version: fmt.Sprintf("%s (built %s)", settings.Version, settings.BuildDate),
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		serve.Command(settings),
		train.Command(settings),
		generate.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Command-line arguments take precedence over config file values
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags configures global flags for the root command.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Output.SQLite.Path, "db", viper.GetString("output.sqlite.path"), "Path to SQLite database")
	rootCmd.PersistentFlags().StringVar(&settings.Provider.Token, "token", viper.GetString("provider.token"), "Provider API token")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}
