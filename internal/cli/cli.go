// Package cli provides the snapctx command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/snapctx/internal/changes"
	"github.com/temirov/snapctx/internal/services/clipboard"
	"github.com/temirov/snapctx/internal/tokenizer"
	"github.com/temirov/snapctx/internal/utils"
)

const (
	versionFlagName      = "version"
	verboseFlagName      = "verbose"
	versionTemplate      = "snapctx version: %s\n"
	rootUse              = "snapctx"
	rootShortDescription = "snapshot a project into a context bundle"
	rootLongDescription  = `snapctx snapshots source files into a single context bundle for an AI assistant.
Use "bundle --changed" to capture only what changed since the previous bundle,
"--since 2h" for recently modified files, or "--git-diff main" for files that differ from a branch.`
	versionFlagDescription = "display application version"
	verboseFlagDescription = "enable debug logging"

	workingDirectoryErrorFormat  = "unable to determine working directory: %w"
	loadConfigurationErrorFormat = "load configuration: %w"
)

// application carries the collaborators shared by every command.
type application struct {
	logger           *zap.Logger
	loggerFactory    func(verbose bool) (*zap.Logger, error)
	stdout           io.Writer
	workingDirectory func() (string, error)
	copier           clipboard.Copier
	newCounter       func(tokenizer.Config) (tokenizer.Counter, string, error)
	gitRunner        func(timeout time.Duration) changes.Runner
	now              func() time.Time
}

func newApplication(logger *zap.Logger) *application {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &application{
		logger:           logger,
		loggerFactory:    utils.NewApplicationLogger,
		stdout:           os.Stdout,
		workingDirectory: os.Getwd,
		copier:           clipboard.NewService(),
		newCounter:       tokenizer.NewCounter,
		gitRunner: func(timeout time.Duration) changes.Runner {
			return changes.ExecRunner{Timeout: timeout}
		},
		now: time.Now,
	}
}

// Execute runs the snapctx application with the process arguments.
func Execute(logger *zap.Logger) error {
	app := newApplication(logger)
	rootCommand := app.rootCommand()
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, os.Args[1:]))
	return rootCommand.ExecuteContext(context.Background())
}

func (app *application) rootCommand() *cobra.Command {
	var showVersion bool
	var verbose bool

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			if showVersion {
				fmt.Fprintf(app.stdout, versionTemplate, utils.GetApplicationVersion())
				return nil
			}
			return command.Help()
		},
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if !verbose || app.loggerFactory == nil {
				return nil
			}
			verboseLogger, loggerError := app.loggerFactory(true)
			if loggerError != nil {
				return fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerError)
			}
			app.logger = verboseLogger
			return nil
		},
	}
	rootCommand.SetOut(app.stdout)
	rootCommand.Flags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	registerBooleanFlag(rootCommand.PersistentFlags(), &verbose, verboseFlagName, verboseFlagDescription)
	rootCommand.AddCommand(
		app.bundleCommand(),
		app.statusCommand(),
		app.initCommand(),
		app.resetCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

func (app *application) resolveWorkingDirectory() (string, error) {
	workingDirectory, workingDirectoryError := app.workingDirectory()
	if workingDirectoryError != nil {
		return "", fmt.Errorf(workingDirectoryErrorFormat, workingDirectoryError)
	}
	return workingDirectory, nil
}

func resolveAgainst(workingDirectory string, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(workingDirectory, path)
}
