package cli

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/snapctx/internal/bundle"
	"github.com/temirov/snapctx/internal/config"
	"github.com/temirov/snapctx/internal/output"
	"github.com/temirov/snapctx/internal/tokenizer"
	"github.com/temirov/snapctx/internal/utils"
)

const (
	bundleUse              = "bundle [paths...]"
	bundleAlias            = "b"
	bundleShortDescription = "write a context bundle (" + bundleAlias + ")"
	bundleLongDescription  = `Collect files under the given paths and write them into one context bundle.
By default the bundle is written to .snapctx/context.<format>. A successful run records
its start time so the next "--changed" run only captures files modified since.`
	bundleUsageExample = `  # Bundle everything under the current directory
  snapctx bundle

  # Bundle what changed since the previous bundle and copy it to the clipboard
  snapctx bundle --changed --copy

  # Files modified in the last two hours that also differ from main, as JSON on stdout
  snapctx bundle --since 2h --git-diff main --format json --output -`

	formatFlagName        = "format"
	outputFlagName        = "output"
	copyFlagName          = "copy"
	tokensFlagName        = "tokens"
	modelFlagName         = "model"
	formatFlagDescription = "bundle format: raw, json or xml"
	outputFlagDescription = `bundle destination ("-" for stdout)`
	copyFlagDescription   = "copy the bundle to the clipboard"
	tokensFlagDescription = "include token counts"
	modelFlagDescription  = "tokenizer model to use for token counting"

	contextRootErrorFormat = "prepare context root: %w"
	tokenizerErrorFormat   = "initialize tokenizer: %w"
	buildBundleErrorFormat = "build bundle: %w"
	writeBundleErrorFormat = "write bundle: %w"
	copyBundleErrorFormat  = "copy bundle: %w"

	gitignorePatchedMessage = "added context root to .gitignore"
	bundleWrittenMessage    = "bundle written"
	bundleCopiedMessage     = "bundle copied to clipboard"
	noFilterReportMessage   = "all files included"
)

type bundleOptions struct {
	selection selectionOptions
	format    string
	output    string
	copy      bool
	tokens    bool
	model     string
}

func (app *application) bundleCommand() *cobra.Command {
	var options bundleOptions

	bundleCommand := &cobra.Command{
		Use:     bundleUse,
		Aliases: []string{bundleAlias},
		Short:   bundleShortDescription,
		Long:    bundleLongDescription,
		Example: bundleUsageExample,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return app.runBundle(command, options, arguments)
		},
	}

	addSelectionFlags(bundleCommand.Flags(), &options.selection)
	registerFormatFlag(bundleCommand.Flags(), &options.format, formatFlagDescription)
	bundleCommand.Flags().StringVarP(&options.output, outputFlagName, "o", "", outputFlagDescription)
	registerBooleanFlag(bundleCommand.Flags(), &options.copy, copyFlagName, copyFlagDescription)
	registerBooleanFlag(bundleCommand.Flags(), &options.tokens, tokensFlagName, tokensFlagDescription)
	bundleCommand.Flags().StringVar(&options.model, modelFlagName, tokenizer.DefaultModel, modelFlagDescription)
	return bundleCommand
}

// runBundle writes the bundle and, only once everything succeeded, records the run start
// as the new watermark.
func (app *application) runBundle(command *cobra.Command, options bundleOptions, arguments []string) error {
	ctx := command.Context()
	runStartedAt := app.now()

	selected, selectionError := app.selectFiles(ctx, command, options.selection, arguments)
	if selectionError != nil {
		return selectionError
	}
	bundleConfiguration := selected.configuration.Bundle
	flagSet := command.Flags()

	if _, contextRootError := config.EnsureContextRoot(selected.workingDirectory); contextRootError != nil {
		return fmt.Errorf(contextRootErrorFormat, contextRootError)
	}
	if config.BoolValue(selected.configuration.Changes.PatchGitignore, true) {
		patched, patchError := config.PatchGitignore(selected.workingDirectory)
		if patchError != nil {
			app.logger.Warn(patchError.Error())
		} else if patched {
			app.logger.Info(gitignorePatchedMessage)
		}
	}

	format := options.format
	if !flagSet.Changed(formatFlagName) && output.IsSupportedFormat(bundleConfiguration.Format) {
		format = bundleConfiguration.Format
	}
	outputPath := options.output
	if !flagSet.Changed(outputFlagName) {
		outputPath = bundleConfiguration.Output
	}
	if outputPath == "" {
		outputPath = filepath.Join(selected.contextRoot, bundle.FileName(utils.BundleFileBaseName, format))
	} else if outputPath != bundle.StandardOutputPath {
		outputPath = resolveAgainst(selected.workingDirectory, outputPath)
	}
	copyRequested := options.copy
	if !flagSet.Changed(copyFlagName) {
		copyRequested = config.BoolValue(bundleConfiguration.Clipboard, false)
	}

	buildOptions := bundle.BuildOptions{
		Paths:            selected.result.Paths,
		Roots:            selected.roots,
		WorkingDirectory: selected.workingDirectory,
		Filter:           selected.result.Report,
		Logger:           app.logger,
		Now:              app.now,
	}
	tokensEnabled := options.tokens
	if !flagSet.Changed(tokensFlagName) {
		tokensEnabled = config.BoolValue(bundleConfiguration.Tokens.Enabled, false)
	}
	if tokensEnabled {
		model := options.model
		if !flagSet.Changed(modelFlagName) && bundleConfiguration.Tokens.Model != "" {
			model = bundleConfiguration.Tokens.Model
		}
		counter, resolvedModel, counterError := app.newCounter(tokenizer.Config{Model: model})
		if counterError != nil {
			return fmt.Errorf(tokenizerErrorFormat, counterError)
		}
		buildOptions.TokenCounter = counter
		buildOptions.TokenModel = resolvedModel
	}

	document, buildError := bundle.Build(ctx, buildOptions)
	if buildError != nil {
		return fmt.Errorf(buildBundleErrorFormat, buildError)
	}
	if writeError := bundle.WriteFile(outputPath, app.stdout, document, format); writeError != nil {
		return fmt.Errorf(writeBundleErrorFormat, writeError)
	}
	app.logger.Info(bundleWrittenMessage,
		zap.String("filter", reportLine(selected)),
		zap.String("summary", output.FormatSummaryLine(document.Summary)),
		zap.String("path", outputPath),
	)

	if copyRequested {
		var rendered bytes.Buffer
		if renderError := output.Render(&rendered, document, format); renderError != nil {
			return fmt.Errorf(copyBundleErrorFormat, renderError)
		}
		if copyError := app.copier.Copy(rendered.String()); copyError != nil {
			return fmt.Errorf(copyBundleErrorFormat, copyError)
		}
		app.logger.Info(bundleCopiedMessage)
	}

	selected.watermarks.Write(runStartedAt)
	return nil
}

func reportLine(selected selection) string {
	if selected.result.Report != nil {
		return selected.result.Report.Summary()
	}
	return fmt.Sprintf("%s: %d files", noFilterReportMessage, len(selected.result.Paths))
}
