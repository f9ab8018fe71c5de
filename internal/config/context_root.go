package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/snapctx/internal/utils"
)

const contextRootIgnoreEntry = utils.ContextRootDirectoryName + "/"

// ContextRootPath returns the directory holding snapctx state for workingDirectory.
func ContextRootPath(workingDirectory string) string {
	return filepath.Join(workingDirectory, utils.ContextRootDirectoryName)
}

// EnsureContextRoot creates the context root when missing and returns its path.
func EnsureContextRoot(workingDirectory string) (string, error) {
	contextRoot := ContextRootPath(workingDirectory)
	if err := os.MkdirAll(contextRoot, 0o755); err != nil {
		return "", fmt.Errorf("create context root %s: %w", contextRoot, err)
	}
	return contextRoot, nil
}

// PatchGitignore appends the context root to the .gitignore of workingDirectory so that
// snapshots and the watermark are never committed. It only acts inside a git work tree
// and reports whether the file was changed.
//
// #nosec G304
func PatchGitignore(workingDirectory string) (bool, error) {
	if _, err := utils.FindGitDirectory(workingDirectory); err != nil {
		return false, nil
	}
	gitignorePath := filepath.Join(workingDirectory, utils.GitIgnoreFileName)
	existing, readErr := os.ReadFile(gitignorePath)
	if readErr != nil && !os.IsNotExist(readErr) {
		return false, fmt.Errorf("read %s: %w", gitignorePath, readErr)
	}
	if ignoresContextRoot(existing) {
		return false, nil
	}

	var patched bytes.Buffer
	patched.Write(existing)
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		patched.WriteString("\n")
	}
	patched.WriteString(contextRootIgnoreEntry + "\n")
	if writeErr := os.WriteFile(gitignorePath, patched.Bytes(), 0o644); writeErr != nil {
		return false, fmt.Errorf("write %s: %w", gitignorePath, writeErr)
	}
	return true, nil
}

func ignoresContextRoot(gitignore []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(gitignore))
	for scanner.Scan() {
		entry := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(scanner.Text()), "/"), "/")
		if entry == utils.ContextRootDirectoryName {
			return true
		}
	}
	return false
}
