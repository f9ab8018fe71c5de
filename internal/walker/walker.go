// Package walker enumerates the candidate files of a snapshot.
package walker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/temirov/snapctx/internal/utils"
)

const (
	errorAbsolutePathFormat  = "getting absolute path for %s: %w"
	errorMissingRootFormat   = "path %s does not exist"
	errorStatRootFormat      = "stat %s: %w"
	errorIgnorePatternFormat = "loading ignore patterns for %s: %w"
	errorIncludeGlobFormat   = "invalid include pattern %q"
	errorWalkFormat          = "walking %s: %w"
)

// AllExtensions disables the extension allow list.
const AllExtensions = "*"

var defaultIgnoredDirectories = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	".idea":        {},
	".vscode":      {},
	"__pycache__":  {},
}

// DefaultExtensions lists the source extensions collected when none are configured.
var DefaultExtensions = []string{
	"go", "mod", "sum", "py", "js", "jsx", "ts", "tsx", "mjs", "cjs",
	"java", "kt", "kts", "scala", "groovy", "rb", "php", "rs", "c", "h",
	"cc", "cpp", "hpp", "cs", "swift", "m", "sh", "bash", "zsh", "sql",
	"html", "css", "scss", "vue", "svelte", "md", "txt", "json", "yaml",
	"yml", "toml", "xml", "proto", "graphql", "tf", "bzl", "bazel",
}

var defaultFileNames = map[string]struct{}{
	"Makefile":    {},
	"Dockerfile":  {},
	"BUILD":       {},
	"WORKSPACE":   {},
	"Justfile":    {},
	"Rakefile":    {},
	"Gemfile":     {},
	"Procfile":    {},
	"Jenkinsfile": {},
}

// Options configures Collect.
type Options struct {
	Roots             []string
	ExclusionPatterns []string
	IncludeGlobs      []string
	Extensions        []string
	UseGitignore      bool
	UseIgnoreFile     bool
	IncludeGit        bool
	// ContextRoot is skipped wherever it appears under a root.
	ContextRoot string
	Logger      *zap.Logger
}

// Collect walks every root and returns the sorted, deduplicated absolute paths of the
// files that survive the ignore rules, the extension allow list and the include globs.
// A root naming a file is returned as is.
func Collect(options Options) ([]string, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, includeGlob := range options.IncludeGlobs {
		if !doublestar.ValidatePattern(includeGlob) {
			return nil, fmt.Errorf(errorIncludeGlobFormat, includeGlob)
		}
	}
	configuredExtensions := options.Extensions
	if len(configuredExtensions) == 0 {
		configuredExtensions = DefaultExtensions
	}
	extensions := newExtensionFilter(configuredExtensions)
	contextRoot := ""
	if options.ContextRoot != "" {
		absoluteContextRoot, absoluteError := filepath.Abs(options.ContextRoot)
		if absoluteError != nil {
			return nil, fmt.Errorf(errorAbsolutePathFormat, options.ContextRoot, absoluteError)
		}
		contextRoot = absoluteContextRoot
	}

	collected := make(map[string]struct{})
	for _, root := range options.Roots {
		absoluteRoot, absoluteError := filepath.Abs(root)
		if absoluteError != nil {
			return nil, fmt.Errorf(errorAbsolutePathFormat, root, absoluteError)
		}
		rootInfo, statError := os.Stat(absoluteRoot)
		if statError != nil {
			if errors.Is(statError, fs.ErrNotExist) {
				return nil, fmt.Errorf(errorMissingRootFormat, root)
			}
			return nil, fmt.Errorf(errorStatRootFormat, root, statError)
		}
		if !rootInfo.IsDir() {
			collected[absoluteRoot] = struct{}{}
			continue
		}

		ignorePatterns, ignoreError := LoadRecursiveIgnorePatterns(absoluteRoot, options.ExclusionPatterns, options.UseGitignore, options.UseIgnoreFile, options.IncludeGit, logger)
		if ignoreError != nil {
			return nil, fmt.Errorf(errorIgnorePatternFormat, root, ignoreError)
		}
		filter := entryFilter{
			root:         absoluteRoot,
			contextRoot:  contextRoot,
			ignored:      newIgnoreMatcher(ignorePatterns),
			includeGlobs: options.IncludeGlobs,
			extensions:   extensions,
		}
		walkError := filepath.WalkDir(absoluteRoot, func(walkedPath string, directoryEntry fs.DirEntry, accessError error) error {
			if accessError != nil {
				logger.Warn("skipping unreadable path", zap.String("path", walkedPath), zap.Error(accessError))
				if directoryEntry != nil && directoryEntry.IsDir() && walkedPath != absoluteRoot {
					return filepath.SkipDir
				}
				return nil
			}
			if walkedPath == absoluteRoot {
				return nil
			}
			if directoryEntry.IsDir() {
				if filter.skipDirectory(walkedPath, directoryEntry.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !directoryEntry.Type().IsRegular() {
				return nil
			}
			if filter.acceptFile(walkedPath, directoryEntry.Name()) {
				collected[walkedPath] = struct{}{}
			}
			return nil
		})
		if walkError != nil {
			return nil, fmt.Errorf(errorWalkFormat, root, walkError)
		}
	}

	paths := make([]string, 0, len(collected))
	for path := range collected {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	logger.Debug("collected candidate files", zap.Int("count", len(paths)), zap.Strings("roots", options.Roots))
	return paths, nil
}

type entryFilter struct {
	root         string
	contextRoot  string
	ignored      ignoreMatcher
	includeGlobs []string
	extensions   extensionFilter
}

func (filter entryFilter) skipDirectory(absolutePath string, name string) bool {
	if absolutePath == filter.contextRoot {
		return true
	}
	if _, ignored := defaultIgnoredDirectories[name]; ignored {
		return true
	}
	return filter.ignored.Matches(utils.RelativePathOrSelf(absolutePath, filter.root))
}

func (filter entryFilter) acceptFile(absolutePath string, name string) bool {
	relativePath := utils.RelativePathOrSelf(absolutePath, filter.root)
	if filter.ignored.Matches(relativePath) {
		return false
	}
	if _, known := defaultFileNames[name]; !known && !filter.extensions.Allows(name) {
		return false
	}
	if len(filter.includeGlobs) == 0 {
		return true
	}
	for _, includeGlob := range filter.includeGlobs {
		if matched, _ := doublestar.Match(includeGlob, relativePath); matched {
			return true
		}
	}
	return false
}
