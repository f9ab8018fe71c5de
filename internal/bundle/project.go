package bundle

import (
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

const goModFileName = "go.mod"

// DetectModulePath returns the module path declared by the nearest go.mod at or above
// directory, or an empty string when there is none or it cannot be parsed.
//
// #nosec G304
func DetectModulePath(directory string) string {
	if directory == "" {
		return ""
	}
	currentDirectory, absoluteError := filepath.Abs(directory)
	if absoluteError != nil {
		return ""
	}
	for {
		goModPath := filepath.Join(currentDirectory, goModFileName)
		contents, readError := os.ReadFile(goModPath)
		if readError == nil {
			return modfile.ModulePath(contents)
		}
		parentDirectory := filepath.Dir(currentDirectory)
		if parentDirectory == currentDirectory {
			return ""
		}
		currentDirectory = parentDirectory
	}
}
