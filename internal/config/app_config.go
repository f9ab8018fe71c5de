// Package config loads snapctx configuration and bootstraps the context root.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/snapctx/internal/utils"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds configuration defaults for every command.
type ApplicationConfiguration struct {
	Bundle  BundleConfiguration  `mapstructure:"bundle"`
	Changes ChangesConfiguration `mapstructure:"changes"`
}

// BundleConfiguration defines how bundles are selected and rendered.
type BundleConfiguration struct {
	Format    string             `mapstructure:"format"`
	Output    string             `mapstructure:"output"`
	Clipboard *bool              `mapstructure:"clipboard"`
	Tokens    TokenConfiguration `mapstructure:"tokens"`
	Paths     PathConfiguration  `mapstructure:"paths"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Enabled *bool  `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

// PathConfiguration configures inclusion and exclusion rules for path traversal.
type PathConfiguration struct {
	Exclude       []string `mapstructure:"exclude"`
	Include       []string `mapstructure:"include"`
	Extensions    []string `mapstructure:"extensions"`
	UseGitignore  *bool    `mapstructure:"use_gitignore"`
	UseIgnoreFile *bool    `mapstructure:"use_ignore"`
	IncludeGit    *bool    `mapstructure:"include_git"`
}

// ChangesConfiguration tunes change detection.
type ChangesConfiguration struct {
	// GitTimeout bounds each git invocation; zero keeps the built-in default.
	GitTimeout     time.Duration `mapstructure:"git_timeout"`
	PatchGitignore *bool         `mapstructure:"patch_gitignore"`
}

// LoadApplicationConfiguration loads configuration from the global file and then the local
// (or explicitly named) file, with local values taking precedence.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := GlobalConfigurationPath(homeDirectory)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}

	merged.Bundle.Paths.Exclude = utils.Deduplicate(merged.Bundle.Paths.Exclude)
	merged.Bundle.Paths.Include = utils.Deduplicate(merged.Bundle.Paths.Include)

	return merged, nil
}

// GlobalConfigurationPath returns the global configuration file under homeDirectory.
func GlobalConfigurationPath(homeDirectory string) string {
	return filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
}

// LocalConfigurationPath returns the configuration file inside the context root.
func LocalConfigurationPath(workingDirectory string) string {
	return filepath.Join(ContextRootPath(workingDirectory), utils.ConfigFileName)
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return LocalConfigurationPath(workingDirectory), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
// Empty strings, empty lists, zero durations and nil booleans in override leave the
// receiver's value in place.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	merged := config
	bundle, bundleOverride := &merged.Bundle, override.Bundle
	overrideValue(&bundle.Format, bundleOverride.Format)
	overrideValue(&bundle.Output, bundleOverride.Output)
	overrideFlag(&bundle.Clipboard, bundleOverride.Clipboard)
	overrideFlag(&bundle.Tokens.Enabled, bundleOverride.Tokens.Enabled)
	overrideValue(&bundle.Tokens.Model, bundleOverride.Tokens.Model)

	paths, pathsOverride := &bundle.Paths, bundleOverride.Paths
	overrideList(&paths.Exclude, utils.Deduplicate(pathsOverride.Exclude))
	overrideList(&paths.Include, utils.Deduplicate(pathsOverride.Include))
	overrideList(&paths.Extensions, pathsOverride.Extensions)
	overrideFlag(&paths.UseGitignore, pathsOverride.UseGitignore)
	overrideFlag(&paths.UseIgnoreFile, pathsOverride.UseIgnoreFile)
	overrideFlag(&paths.IncludeGit, pathsOverride.IncludeGit)

	overrideValue(&merged.Changes.GitTimeout, override.Changes.GitTimeout)
	overrideFlag(&merged.Changes.PatchGitignore, override.Changes.PatchGitignore)
	return merged
}

// BoolValue dereferences value, falling back when it is unset.
func BoolValue(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func overrideValue[T comparable](target *T, override T) {
	var zero T
	if override != zero {
		*target = override
	}
}

func overrideList(target *[]string, override []string) {
	if len(override) > 0 {
		*target = slices.Clone(override)
	}
}

func overrideFlag(target **bool, override *bool) {
	if override != nil {
		value := *override
		*target = &value
	}
}
