// conf/validate.go settings validation
package conf

import (
	"fmt"
	"strconv"
)

// ValidateSettings checks the loaded settings for configuration mistakes that
// would only surface later as confusing runtime failures.
func ValidateSettings(settings *Settings) error {
	if err := validateWebServerSettings(settings); err != nil {
		return err
	}
	if err := validateOutputSettings(settings); err != nil {
		return err
	}
	return validateStorageSettings(settings)
}

func validateWebServerSettings(settings *Settings) error {
	if !settings.WebServer.Enabled {
		return nil
	}
	port, err := strconv.Atoi(settings.WebServer.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid web server port: %s", settings.WebServer.Port)
	}
	return nil
}

func validateOutputSettings(settings *Settings) error {
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return fmt.Errorf("only one database output can be enabled at a time")
	}
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("no database output enabled, enable either sqlite or mysql")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return fmt.Errorf("sqlite output enabled but path is empty")
	}
	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Host == "" || settings.Output.MySQL.Database == "" {
			return fmt.Errorf("mysql output enabled but host or database is empty")
		}
	}
	return nil
}

func validateStorageSettings(settings *Settings) error {
	if settings.Storage.Endpoint == "" {
		return fmt.Errorf("storage endpoint is empty")
	}
	if settings.Storage.ArchiveBucket == "" || settings.Storage.ImageBucket == "" {
		return fmt.Errorf("storage bucket names must not be empty")
	}
	return nil
}

// ValidateProviderSettings checks that remote provider access is configured.
// It is called by commands that reach the provider, not at load time, so that
// local-only commands keep working without a token.
func ValidateProviderSettings(settings *Settings) error {
	if settings.Provider.BaseURL == "" {
		return fmt.Errorf("provider base URL is empty")
	}
	if settings.Provider.Token == "" {
		return fmt.Errorf("provider token is empty, set provider.token or BRANDFORGE_PROVIDER_TOKEN")
	}
	if settings.Provider.Owner == "" {
		return fmt.Errorf("provider owner namespace is empty")
	}
	if settings.Provider.TrainerOwner == "" || settings.Provider.TrainerModel == "" {
		return fmt.Errorf("trainer algorithm reference is incomplete")
	}
	return nil
}
