package changes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	gitExecutableName     = "git"
	defaultGitTimeout     = 30 * time.Second
	gitHeadReference      = "HEAD"
	gitInsideWorkTreeFlag = "true"
	gitOptionalLocksEnv   = "GIT_OPTIONAL_LOCKS=0"

	gitQueryFailedLog       = "git query failed"
	gitUnavailableLog       = "not inside a git working tree; git-based filtering skipped"
	gitMergeBaseFallbackLog = "merge-base unavailable; comparing against the reference directly"
	gitInvalidReferenceLog  = "refusing git reference that looks like an option"
	gitUntrackedFailedLog   = "untracked files could not be listed; only tracked changes are used"

	errorGitTimeoutFormat = "git %s timed out after %s"
	errorGitCommandFormat = "git %s: %w: %s"
)

// Runner executes a git command in directory and returns its standard output.
type Runner interface {
	Run(ctx context.Context, directory string, arguments ...string) ([]byte, error)
}

// ExecRunner runs the git executable as a subprocess with a bounded timeout.
type ExecRunner struct {
	Executable string
	Timeout    time.Duration
}

// Run implements Runner.
func (runner ExecRunner) Run(ctx context.Context, directory string, arguments ...string) ([]byte, error) {
	executable := runner.Executable
	if executable == "" {
		executable = gitExecutableName
	}
	timeout := runner.Timeout
	if timeout <= 0 {
		timeout = defaultGitTimeout
	}
	commandContext, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204
	command := exec.CommandContext(commandContext, executable, arguments...)
	command.Dir = directory
	command.Env = append(os.Environ(), gitOptionalLocksEnv)
	var standardError bytes.Buffer
	command.Stderr = &standardError

	output, runError := command.Output()
	joinedArguments := strings.Join(arguments, " ")
	if errors.Is(commandContext.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf(errorGitTimeoutFormat, joinedArguments, timeout)
	}
	if runError != nil {
		return nil, fmt.Errorf(errorGitCommandFormat, joinedArguments, runError, strings.TrimSpace(standardError.String()))
	}
	return output, nil
}

// GitBridge answers change questions from git history. Every query fails soft:
// a missing repository or a failing command yields no set and a logged warning.
// All commands are read-only.
type GitBridge struct {
	runner           Runner
	workingDirectory string
	logger           *zap.Logger
	fileExists       func(path string) bool
	availability     *bool
	// topLevel is the work tree root expressed through workingDirectory, so joined paths
	// match the walker's candidates even when the directory is reached via a symlink.
	topLevel string
}

// GitBridgeOption configures a GitBridge.
type GitBridgeOption func(*GitBridge)

// WithFileExistenceCheck replaces the filesystem check used to drop deleted paths.
func WithFileExistenceCheck(check func(path string) bool) GitBridgeOption {
	return func(bridge *GitBridge) {
		bridge.fileExists = check
	}
}

// NewGitBridge creates a bridge for the work tree containing workingDirectory. Queries
// cover the whole work tree, not only the subtree below workingDirectory.
func NewGitBridge(workingDirectory string, runner Runner, logger *zap.Logger, options ...GitBridgeOption) *GitBridge {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bridge := &GitBridge{
		runner:           runner,
		workingDirectory: workingDirectory,
		logger:           logger,
		fileExists:       regularFileExists,
	}
	for _, option := range options {
		option(bridge)
	}
	return bridge
}

// IsAvailable reports whether the working directory is inside a git working tree and
// locates the top of that tree. The answer is cached for the lifetime of the bridge.
func (bridge *GitBridge) IsAvailable(ctx context.Context) bool {
	if bridge.availability != nil {
		return *bridge.availability
	}
	output, runError := bridge.runner.Run(ctx, bridge.workingDirectory, "rev-parse", "--is-inside-work-tree", "--show-cdup")
	lines := strings.Split(strings.TrimRight(string(output), "\r\n"), "\n")
	available := runError == nil && strings.TrimSpace(lines[0]) == gitInsideWorkTreeFlag
	if runError != nil {
		bridge.logger.Debug(gitUnavailableLog, zap.Error(runError))
	}
	if available {
		bridge.topLevel = bridge.workingDirectory
		if len(lines) > 1 {
			bridge.topLevel = filepath.Join(bridge.workingDirectory, filepath.FromSlash(strings.TrimSpace(lines[1])))
		}
	}
	bridge.availability = &available
	return available
}

// ChangedSince returns files that differ between the merge-base of reference and HEAD
// and the working tree, plus untracked files that are not ignored. The boolean is false
// when git could not answer, in which case callers must not filter by the result.
func (bridge *GitBridge) ChangedSince(ctx context.Context, reference string) (PathSet, bool) {
	trimmedReference := strings.TrimSpace(reference)
	if trimmedReference == "" || strings.HasPrefix(trimmedReference, "-") {
		bridge.logger.Warn(gitInvalidReferenceLog, zap.String("reference", reference))
		return nil, false
	}
	if !bridge.IsAvailable(ctx) {
		bridge.logger.Warn(gitUnavailableLog, zap.String("directory", bridge.workingDirectory))
		return nil, false
	}

	base := bridge.resolveComparisonBase(ctx, trimmedReference)
	diffOutput, diffSucceeded := bridge.query(ctx, "diff", "--name-only", "-z", base, "--")
	if !diffSucceeded {
		return nil, false
	}
	changed := bridge.existingPaths(splitGitNames(diffOutput))

	untrackedOutput, untrackedSucceeded := bridge.query(ctx, "ls-files", "--others", "--exclude-standard", "-z")
	if untrackedSucceeded {
		changed.Union(bridge.existingPaths(splitGitNames(untrackedOutput)))
	} else {
		bridge.logger.Warn(gitUntrackedFailedLog)
	}
	return changed, true
}

// ChangedSinceInstant returns files touched by any commit after cutoff. An empty set is
// returned when git is unavailable, the query fails, or no commit matches.
func (bridge *GitBridge) ChangedSinceInstant(ctx context.Context, cutoff time.Time) PathSet {
	if !bridge.IsAvailable(ctx) {
		return NewPathSet()
	}
	sinceArgument := "--since=" + cutoff.UTC().Format(time.RFC3339)
	logOutput, logSucceeded := bridge.query(ctx, "log", sinceArgument, "--name-only", "--format=", "-z")
	if !logSucceeded {
		return NewPathSet()
	}
	return bridge.existingPaths(splitGitNames(logOutput))
}

// resolveComparisonBase prefers the merge-base so a diverged branch is compared only
// against its own changes. A reference that is already a commit id is used verbatim.
func (bridge *GitBridge) resolveComparisonBase(ctx context.Context, reference string) string {
	output, runError := bridge.runner.Run(ctx, bridge.topLevel, "merge-base", reference, gitHeadReference)
	mergeBase := strings.TrimSpace(string(output))
	if runError != nil || mergeBase == "" {
		bridge.logger.Debug(gitMergeBaseFallbackLog, zap.String("reference", reference), zap.Error(runError))
		return reference
	}
	return mergeBase
}

// query is the single failure mapping for git commands: errors become a warning and false.
// Commands run at the top of the work tree, so reported names are relative to it.
func (bridge *GitBridge) query(ctx context.Context, arguments ...string) ([]byte, bool) {
	output, runError := bridge.runner.Run(ctx, bridge.topLevel, arguments...)
	if runError != nil {
		bridge.logger.Warn(gitQueryFailedLog, zap.String("query", strings.Join(arguments, " ")), zap.Error(runError))
		return nil, false
	}
	return output, true
}

// existingPaths resolves names relative to the work tree top and drops those no longer
// present on disk.
func (bridge *GitBridge) existingPaths(names []string) PathSet {
	result := NewPathSet()
	for _, name := range names {
		absolutePath := filepath.Join(bridge.topLevel, filepath.FromSlash(name))
		if bridge.fileExists(absolutePath) {
			result.Add(absolutePath)
		}
	}
	return result
}

func splitGitNames(output []byte) []string {
	var names []string
	for _, entry := range strings.Split(string(output), "\x00") {
		trimmed := strings.Trim(entry, "\r\n")
		if trimmed == "" {
			continue
		}
		names = append(names, trimmed)
	}
	return names
}

func regularFileExists(path string) bool {
	fileInfo, statError := os.Stat(path)
	return statError == nil && !fileInfo.IsDir()
}
