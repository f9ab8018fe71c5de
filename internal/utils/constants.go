package utils

// LoggerInitializationFailedMessageFormat reports a logger construction failure.
const LoggerInitializationFailedMessageFormat = "initialize logger: %w"

// ApplicationExecutionFailedMessage prefixes fatal command errors.
const ApplicationExecutionFailedMessage = "snapctx failed"

// Context root layout shared by the CLI, the walker and the change tracker.
const (
	// ContextRootDirectoryName holds snapctx state inside a project.
	ContextRootDirectoryName = ".snapctx"
	// GlobalConfigDirectoryName is the directory under the user's home holding global configuration.
	GlobalConfigDirectoryName = ".snapctx"
	// ConfigFileName is the configuration file name for both global and local configuration.
	ConfigFileName = "config.yaml"
	// WatermarkFileName stores the instant of the last successful bundle run.
	WatermarkFileName = "last_run"
	// BundleFileBaseName is the bundle file name without its format extension.
	BundleFileBaseName = "context"
)
