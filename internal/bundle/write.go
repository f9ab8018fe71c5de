package bundle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/temirov/snapctx/internal/output"
	"github.com/temirov/snapctx/internal/types"
)

// StandardOutputPath selects standard output instead of a file.
const StandardOutputPath = "-"

const (
	bundleFilePermissions      = 0o644
	bundleDirectoryPermissions = 0o755
	temporaryFilePattern       = ".bundle-*.tmp"
)

// FileName returns the default bundle file name for format, e.g. "context.json".
func FileName(baseName string, format string) string {
	extension := format
	if format == types.FormatRaw {
		extension = "txt"
	}
	return baseName + "." + extension
}

// WriteFile renders document into path. The file is replaced atomically so a reader
// never observes a partial bundle. StandardOutputPath writes to stdout instead.
func WriteFile(path string, stdout io.Writer, document types.Document, format string) error {
	if !output.IsSupportedFormat(format) {
		return fmt.Errorf("unsupported format %q", format)
	}
	if path == StandardOutputPath {
		bufferedWriter := bufio.NewWriter(stdout)
		if renderError := output.Render(bufferedWriter, document, format); renderError != nil {
			return fmt.Errorf("render bundle: %w", renderError)
		}
		return bufferedWriter.Flush()
	}

	directory := filepath.Dir(path)
	if mkdirError := os.MkdirAll(directory, bundleDirectoryPermissions); mkdirError != nil {
		return fmt.Errorf("create bundle directory %s: %w", directory, mkdirError)
	}
	temporaryFile, createError := os.CreateTemp(directory, temporaryFilePattern)
	if createError != nil {
		return fmt.Errorf("create temporary bundle in %s: %w", directory, createError)
	}
	temporaryPath := temporaryFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(temporaryPath)
		}
	}()

	bufferedWriter := bufio.NewWriter(temporaryFile)
	if renderError := output.Render(bufferedWriter, document, format); renderError != nil {
		_ = temporaryFile.Close()
		return fmt.Errorf("render bundle: %w", renderError)
	}
	if flushError := bufferedWriter.Flush(); flushError != nil {
		_ = temporaryFile.Close()
		return fmt.Errorf("write bundle: %w", flushError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return fmt.Errorf("write bundle: %w", closeError)
	}
	if chmodError := os.Chmod(temporaryPath, bundleFilePermissions); chmodError != nil {
		return fmt.Errorf("set bundle permissions: %w", chmodError)
	}
	if renameError := os.Rename(temporaryPath, path); renameError != nil {
		return fmt.Errorf("replace bundle %s: %w", path, renameError)
	}
	committed = true
	return nil
}
