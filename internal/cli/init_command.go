package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/snapctx/internal/changes"
	"github.com/temirov/snapctx/internal/config"
)

const (
	initUse              = "init"
	initShortDescription = "write the default configuration"
	initLongDescription  = `Write the default configuration to .snapctx/config.yaml, or to ~/.snapctx/config.yaml with --global.
A local init also adds the context root to .gitignore inside a git repository.`
	globalFlagName        = "global"
	forceFlagName         = "force"
	globalFlagDescription = "write the global configuration"
	forceFlagDescription  = "overwrite an existing configuration"

	resetUse              = "reset"
	resetShortDescription = "forget the last run so the next --changed bundle includes everything"

	initCompletedFormat  = "configuration written to %s\n"
	resetCompletedFormat = "cleared %s\n"
	initErrorFormat      = "initialize configuration: %w"
	resetErrorFormat     = "reset watermark: %w"
)

func (app *application) initCommand() *cobra.Command {
	var global bool
	var force bool

	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Long:  initLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			workingDirectory, workingDirectoryError := app.resolveWorkingDirectory()
			if workingDirectoryError != nil {
				return workingDirectoryError
			}
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			path, initError := config.InitializeConfiguration(config.InitOptions{
				Target:           target,
				Force:            force,
				WorkingDirectory: workingDirectory,
			})
			if initError != nil {
				return fmt.Errorf(initErrorFormat, initError)
			}
			if target == config.InitTargetLocal {
				if patched, patchError := config.PatchGitignore(workingDirectory); patchError != nil {
					app.logger.Warn(patchError.Error())
				} else if patched {
					app.logger.Info(gitignorePatchedMessage)
				}
			}
			_, writeError := fmt.Fprintf(app.stdout, initCompletedFormat, path)
			return writeError
		},
	}
	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, forceFlagDescription)
	return initCommand
}

func (app *application) resetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   resetUse,
		Short: resetShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			workingDirectory, workingDirectoryError := app.resolveWorkingDirectory()
			if workingDirectoryError != nil {
				return workingDirectoryError
			}
			store := changes.NewWatermarkStore(config.ContextRootPath(workingDirectory), app.logger)
			if clearError := store.Clear(); clearError != nil {
				return fmt.Errorf(resetErrorFormat, clearError)
			}
			_, writeError := fmt.Fprintf(app.stdout, resetCompletedFormat, store.Path())
			return writeError
		},
	}
}
