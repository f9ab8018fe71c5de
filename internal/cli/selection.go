package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/snapctx/internal/changes"
	"github.com/temirov/snapctx/internal/config"
	"github.com/temirov/snapctx/internal/walker"
)

const (
	sinceFlagName       = "since"
	gitDiffFlagName     = "git-diff"
	changedFlagName     = "changed"
	exclusionFlagName   = "e"
	includeFlagName     = "include"
	extensionFlagName   = "ext"
	noGitignoreFlagName = "no-gitignore"
	noIgnoreFlagName    = "no-ignore"
	includeGitFlagName  = "git"
	configFlagName      = "config"
	defaultPath         = "."

	sinceFlagDescription            = `only files modified since a relative ("2h", "3d") or absolute ("2024-01-15") time`
	gitDiffFlagDescription          = "only files changed relative to a git reference (committed, staged, unstaged or untracked)"
	changedFlagDescription          = "only files modified since the previous successful bundle"
	exclusionFlagDescription        = "exclude path pattern"
	includeFlagDescription          = "only include files matching a glob (supports **)"
	extensionFlagDescription        = `collect files with this extension ("*" for all)`
	disableGitignoreFlagDescription = "do not use .gitignore"
	disableIgnoreFlagDescription    = "do not use .ignore"
	includeGitFlagDescription       = "include git directory"
	configFlagDescription           = "configuration file to use instead of .snapctx/config.yaml"

	collectErrorFormat = "collect files: %w"
)

// selectionOptions holds the flags shared by commands that choose files.
type selectionOptions struct {
	since             string
	gitDiff           string
	changed           bool
	exclusionPatterns []string
	includeGlobs      []string
	extensions        []string
	disableGitignore  bool
	disableIgnoreFile bool
	includeGit        bool
	configPath        string
}

func addSelectionFlags(flagSet *pflag.FlagSet, options *selectionOptions) {
	flagSet.StringVar(&options.since, sinceFlagName, "", sinceFlagDescription)
	flagSet.StringVar(&options.gitDiff, gitDiffFlagName, "", gitDiffFlagDescription)
	registerBooleanFlag(flagSet, &options.changed, changedFlagName, changedFlagDescription)
	flagSet.StringArrayVarP(&options.exclusionPatterns, exclusionFlagName, exclusionFlagName, nil, exclusionFlagDescription)
	flagSet.StringArrayVar(&options.includeGlobs, includeFlagName, nil, includeFlagDescription)
	flagSet.StringSliceVar(&options.extensions, extensionFlagName, nil, extensionFlagDescription)
	registerBooleanFlag(flagSet, &options.disableGitignore, noGitignoreFlagName, disableGitignoreFlagDescription)
	registerBooleanFlag(flagSet, &options.disableIgnoreFile, noIgnoreFlagName, disableIgnoreFlagDescription)
	registerBooleanFlag(flagSet, &options.includeGit, includeGitFlagName, includeGitFlagDescription)
	flagSet.StringVar(&options.configPath, configFlagName, "", configFlagDescription)
}

func (options selectionOptions) criteria() changes.Criteria {
	return changes.Criteria{Since: options.since, GitDiff: options.gitDiff, Changed: options.changed}
}

// walkerOptions merges configuration with flags; flags set on the command line win.
func (options selectionOptions) walkerOptions(flagSet *pflag.FlagSet, paths config.PathConfiguration, roots []string, contextRoot string, logger *zap.Logger) walker.Options {
	walkOptions := walker.Options{
		Roots:             roots,
		ExclusionPatterns: append(append([]string{}, paths.Exclude...), options.exclusionPatterns...),
		IncludeGlobs:      paths.Include,
		Extensions:        paths.Extensions,
		UseGitignore:      config.BoolValue(paths.UseGitignore, true),
		UseIgnoreFile:     config.BoolValue(paths.UseIgnoreFile, true),
		IncludeGit:        config.BoolValue(paths.IncludeGit, false),
		ContextRoot:       contextRoot,
		Logger:            logger,
	}
	if flagSet.Changed(includeFlagName) {
		walkOptions.IncludeGlobs = options.includeGlobs
	}
	if flagSet.Changed(extensionFlagName) {
		walkOptions.Extensions = options.extensions
	}
	if flagSet.Changed(noGitignoreFlagName) {
		walkOptions.UseGitignore = !options.disableGitignore
	}
	if flagSet.Changed(noIgnoreFlagName) {
		walkOptions.UseIgnoreFile = !options.disableIgnoreFile
	}
	if flagSet.Changed(includeGitFlagName) {
		walkOptions.IncludeGit = options.includeGit
	}
	return walkOptions
}

// selection is the outcome of walking and resolving for one invocation.
type selection struct {
	workingDirectory string
	contextRoot      string
	roots            []string
	configuration    config.ApplicationConfiguration
	watermarks       *changes.WatermarkStore
	result           changes.Result
}

// selectFiles loads configuration, walks the roots and resolves the change criteria.
// It never writes to disk.
func (app *application) selectFiles(ctx context.Context, command *cobra.Command, options selectionOptions, arguments []string) (selection, error) {
	workingDirectory, workingDirectoryError := app.resolveWorkingDirectory()
	if workingDirectoryError != nil {
		return selection{}, workingDirectoryError
	}
	configuration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: options.configPath,
	})
	if configurationError != nil {
		return selection{}, fmt.Errorf(loadConfigurationErrorFormat, configurationError)
	}

	roots := slices.Clone(arguments)
	if len(roots) == 0 {
		roots = []string{defaultPath}
	}
	for index, root := range roots {
		roots[index] = resolveAgainst(workingDirectory, root)
	}
	contextRoot := config.ContextRootPath(workingDirectory)

	candidates, collectError := walker.Collect(options.walkerOptions(command.Flags(), configuration.Bundle.Paths, roots, contextRoot, app.logger))
	if collectError != nil {
		return selection{}, fmt.Errorf(collectErrorFormat, collectError)
	}

	watermarks := changes.NewWatermarkStore(contextRoot, app.logger)
	gitBridge := changes.NewGitBridge(workingDirectory, app.gitRunner(configuration.Changes.GitTimeout), app.logger)
	resolver := changes.NewResolver(watermarks, gitBridge,
		changes.WithClock(app.now),
		changes.WithLogger(app.logger),
	)
	result := resolver.Resolve(ctx, candidates, options.criteria())

	return selection{
		workingDirectory: workingDirectory,
		contextRoot:      contextRoot,
		roots:            roots,
		configuration:    configuration,
		watermarks:       watermarks,
		result:           result,
	}, nil
}
