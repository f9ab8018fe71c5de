package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/snapctx/internal/utils"
)

const (
	statusUse              = "status [paths...]"
	statusAlias            = "s"
	statusShortDescription = "show which files the next bundle would include (" + statusAlias + ")"
	statusLongDescription  = `Resolve the same selection as "bundle" and print the filter summary followed by
the selected paths. Nothing is written: the watermark and the bundle stay untouched.`
	statusUsageExample = `  # What changed since the last bundle?
  snapctx status --changed

  # Files that differ from main
  snapctx status --git-diff main`

	watermarkLineFormat = "last run: %s (%s)\n"
	noWatermarkLine     = "last run: never\n"
	warningLinePrefix   = "warning: "
)

func (app *application) statusCommand() *cobra.Command {
	var options selectionOptions

	statusCommand := &cobra.Command{
		Use:     statusUse,
		Aliases: []string{statusAlias},
		Short:   statusShortDescription,
		Long:    statusLongDescription,
		Example: statusUsageExample,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return app.runStatus(command, options, arguments)
		},
	}
	addSelectionFlags(statusCommand.Flags(), &options)
	return statusCommand
}

func (app *application) runStatus(command *cobra.Command, options selectionOptions, arguments []string) error {
	selected, selectionError := app.selectFiles(command.Context(), command, options, arguments)
	if selectionError != nil {
		return selectionError
	}

	var builder strings.Builder
	if watermark, present := selected.watermarks.Read(); present {
		fmt.Fprintf(&builder, watermarkLineFormat, utils.FormatTimestamp(watermark), utils.FormatAge(watermark, app.now()))
	} else {
		builder.WriteString(noWatermarkLine)
	}
	for _, warning := range selected.result.Warnings {
		builder.WriteString(warningLinePrefix + warning + "\n")
	}
	builder.WriteString(reportLine(selected) + "\n")
	for _, path := range selected.result.Paths {
		builder.WriteString("  " + utils.RelativePathOrSelf(path, selected.workingDirectory) + "\n")
	}
	_, writeError := fmt.Fprint(app.stdout, builder.String())
	return writeError
}
