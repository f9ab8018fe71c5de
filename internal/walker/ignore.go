package walker

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/snapctx/internal/utils"
)

const (
	gitDirectoryPattern   = utils.GitDirectoryName + "/"
	commentPrefix         = "#"
	negationPrefix        = "!"
	loadIgnoreErrorFormat = "loading %s from %s: %w"
)

// LoadIgnoreFilePatterns reads one ignore file. A missing file yields no patterns.
// Negated entries are not supported and are skipped.
//
// #nosec G304
func LoadIgnoreFilePatterns(ignoreFilePath string, logger *zap.Logger) ([]string, error) {
	fileHandle, openFileError := os.Open(ignoreFilePath)
	if openFileError != nil {
		if os.IsNotExist(openFileError) {
			return nil, nil
		}
		return nil, openFileError
	}
	defer func() {
		if closeError := fileHandle.Close(); closeError != nil {
			logger.Warn("failed to close ignore file", zap.String("path", ignoreFilePath), zap.Error(closeError))
		}
	}()

	var ignorePatterns []string
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) || strings.HasPrefix(trimmedLine, negationPrefix) {
			continue
		}
		ignorePatterns = append(ignorePatterns, strings.TrimPrefix(trimmedLine, "/"))
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}
	return ignorePatterns, nil
}

// LoadRecursiveIgnorePatterns walks rootDirectoryPath and aggregates patterns from the
// .ignore and .gitignore files of every nested directory. Nested patterns are prefixed with
// the directory's path relative to the root. The .git directory is ignored unless includeGit
// is set, and exclusionPatterns are appended last.
func LoadRecursiveIgnorePatterns(rootDirectoryPath string, exclusionPatterns []string, useGitignore bool, useIgnoreFile bool, includeGit bool, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var aggregatedPatterns []string
	ignoreFileNames := make([]string, 0, 2)
	if useIgnoreFile {
		ignoreFileNames = append(ignoreFileNames, utils.IgnoreFileName)
	}
	if useGitignore {
		ignoreFileNames = append(ignoreFileNames, utils.GitIgnoreFileName)
	}

	walkFunction := func(currentDirectoryPath string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			if directoryEntry != nil && directoryEntry.IsDir() && currentDirectoryPath != rootDirectoryPath {
				return filepath.SkipDir
			}
			return walkError
		}
		if !directoryEntry.IsDir() {
			return nil
		}
		if !includeGit && directoryEntry.Name() == utils.GitDirectoryName {
			return filepath.SkipDir
		}
		if _, ignored := defaultIgnoredDirectories[directoryEntry.Name()]; ignored && currentDirectoryPath != rootDirectoryPath {
			return filepath.SkipDir
		}

		relativeDirectory := utils.RelativePathOrSelf(currentDirectoryPath, rootDirectoryPath)
		prefix := ""
		if relativeDirectory != "." {
			prefix = relativeDirectory + "/"
		}

		for _, ignoreFileName := range ignoreFileNames {
			patterns, loadError := LoadIgnoreFilePatterns(filepath.Join(currentDirectoryPath, ignoreFileName), logger)
			if loadError != nil {
				return fmt.Errorf(loadIgnoreErrorFormat, ignoreFileName, currentDirectoryPath, loadError)
			}
			for _, pattern := range patterns {
				aggregatedPatterns = append(aggregatedPatterns, prefix+pattern)
			}
		}
		return nil
	}

	if len(ignoreFileNames) > 0 {
		ancestorPatterns, ancestorError := loadAncestorIgnorePatterns(rootDirectoryPath, ignoreFileNames, logger)
		if ancestorError != nil {
			return nil, ancestorError
		}
		aggregatedPatterns = append(aggregatedPatterns, ancestorPatterns...)
		if walkError := filepath.WalkDir(rootDirectoryPath, walkFunction); walkError != nil {
			return nil, walkError
		}
	}

	if !includeGit {
		aggregatedPatterns = append(aggregatedPatterns, gitDirectoryPattern)
	}

	deduplicatedPatterns := utils.Deduplicate(aggregatedPatterns)
	for _, pattern := range exclusionPatterns {
		trimmedPattern := strings.TrimSpace(pattern)
		if trimmedPattern == "" {
			continue
		}
		if !slices.Contains(deduplicatedPatterns, trimmedPattern) {
			deduplicatedPatterns = append(deduplicatedPatterns, trimmedPattern)
		}
	}
	return deduplicatedPatterns, nil
}

// loadAncestorIgnorePatterns reads the ignore files of every directory between the
// enclosing repository root and rootDirectoryPath, excluding rootDirectoryPath itself.
// Patterns are rewritten relative to rootDirectoryPath; anchored patterns that point
// outside of it are dropped. Outside a repository no ancestors are consulted.
func loadAncestorIgnorePatterns(rootDirectoryPath string, ignoreFileNames []string, logger *zap.Logger) ([]string, error) {
	repositoryRoot, findError := utils.FindGitDirectory(rootDirectoryPath)
	if findError != nil {
		return nil, nil
	}
	if repositoryRoot == filepath.Clean(rootDirectoryPath) {
		return nil, nil
	}
	var ancestors []string
	for current := filepath.Dir(rootDirectoryPath); ; current = filepath.Dir(current) {
		ancestors = append(ancestors, current)
		if current == repositoryRoot || filepath.Dir(current) == current {
			break
		}
	}

	var translated []string
	for index := len(ancestors) - 1; index >= 0; index-- {
		ancestor := ancestors[index]
		rootFromAncestor := filepath.ToSlash(utils.RelativePathOrSelf(rootDirectoryPath, ancestor)) + "/"
		for _, ignoreFileName := range ignoreFileNames {
			patterns, loadError := LoadIgnoreFilePatterns(filepath.Join(ancestor, ignoreFileName), logger)
			if loadError != nil {
				return nil, fmt.Errorf(loadIgnoreErrorFormat, ignoreFileName, ancestor, loadError)
			}
			for _, pattern := range patterns {
				if rewritten, applies := rebaseAncestorPattern(pattern, rootFromAncestor); applies {
					translated = append(translated, rewritten)
				}
			}
		}
	}
	return translated, nil
}

// rebaseAncestorPattern expresses a pattern written in an ancestor directory relative to
// a descendant reached through rootFromAncestor, which ends with a slash.
func rebaseAncestorPattern(pattern string, rootFromAncestor string) (string, bool) {
	normalized := strings.ReplaceAll(pattern, `\`, "/")
	if !strings.Contains(strings.TrimSuffix(normalized, "/"), "/") || strings.HasPrefix(normalized, "**/") {
		return normalized, true
	}
	if strings.HasPrefix(normalized, rootFromAncestor) {
		remainder := strings.TrimPrefix(normalized, rootFromAncestor)
		return remainder, remainder != ""
	}
	return "", false
}
