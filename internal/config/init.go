package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// InitTarget identifies where configuration should be initialized.
type InitTarget string

const (
	// InitTargetLocal writes configuration into the context root of the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes configuration into the global configuration directory.
	InitTargetGlobal InitTarget = "global"

	defaultConfigurationTemplate = `bundle:
  format: raw
  output: ""
  clipboard: false
  tokens:
    enabled: false
    model: gpt-4o
  paths:
    exclude: []
    include: []
    extensions: []
    use_gitignore: true
    use_ignore: true
    include_git: false
changes:
  git_timeout: 30s
  patch_gitignore: true
`
)

// InitOptions controls how configuration initialization behaves.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
}

// InitializeConfiguration writes the default configuration to the requested target and
// returns its path. Existing files are kept unless Force is set.
func InitializeConfiguration(options InitOptions) (string, error) {
	destinationPath, destinationError := configurationDestination(options)
	if destinationError != nil {
		return "", destinationError
	}
	if !options.Force {
		if _, statError := os.Stat(destinationPath); statError == nil {
			return "", fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", destinationPath)
		} else if !errors.Is(statError, fs.ErrNotExist) {
			return "", fmt.Errorf("inspect configuration path %s: %w", destinationPath, statError)
		}
	}
	if writeError := os.WriteFile(destinationPath, []byte(defaultConfigurationTemplate), 0o600); writeError != nil {
		return "", fmt.Errorf("write configuration to %s: %w", destinationPath, writeError)
	}
	return destinationPath, nil
}

// configurationDestination resolves the configuration file for target and creates its
// directory. A local target lives in the context root.
func configurationDestination(options InitOptions) (string, error) {
	switch options.Target {
	case InitTargetLocal, "":
		workingDirectory := options.WorkingDirectory
		if workingDirectory == "" {
			currentDirectory, getwdError := os.Getwd()
			if getwdError != nil {
				return "", fmt.Errorf("determine working directory for configuration: %w", getwdError)
			}
			workingDirectory = currentDirectory
		}
		if _, contextRootError := EnsureContextRoot(workingDirectory); contextRootError != nil {
			return "", contextRootError
		}
		return LocalConfigurationPath(workingDirectory), nil
	case InitTargetGlobal:
		homeDirectory, homeError := os.UserHomeDir()
		if homeError != nil {
			return "", fmt.Errorf("resolve home directory for configuration: %w", homeError)
		}
		destinationPath := GlobalConfigurationPath(homeDirectory)
		if mkdirError := os.MkdirAll(filepath.Dir(destinationPath), 0o755); mkdirError != nil {
			return "", fmt.Errorf("create configuration directory %s: %w", filepath.Dir(destinationPath), mkdirError)
		}
		return destinationPath, nil
	default:
		return "", fmt.Errorf("unsupported init target %q", options.Target)
	}
}
