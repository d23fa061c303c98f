// conf/utils.go filesystem helpers for configuration handling
package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GetDefaultConfigPaths returns the list of directories searched for config.yaml,
// in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	var paths []string

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "brandforge-go"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}
	paths = append(paths, filepath.Join(homeDir, ".config", "brandforge-go"))

	// Current working directory as the last resort
	paths = append(paths, ".")

	return paths, nil
}

// FindConfigFile locates the active config.yaml on disk.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, path := range configPaths {
		configPath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}
	return "", fmt.Errorf("config file not found in any of the default paths")
}

// SaveYAMLConfig atomically writes the settings out as YAML.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to yaml: %w", err)
	}

	tempFile := configPath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("error writing temporary config file: %w", err)
	}

	if err := os.Rename(tempFile, configPath); err != nil {
		// Clean up the temporary file on failure
		_ = os.Remove(tempFile)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

// GetBasePath expands a possibly relative directory to an absolute path,
// creating it if necessary.
func GetBasePath(path string) string {
	if path == "" {
		path = "."
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return path
	}
	return absPath
}
