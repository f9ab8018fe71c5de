package changes

import (
	"os"
	"time"
)

// ModificationProbe decides whether a file changed after a cutoff.
type ModificationProbe func(path string, cutoff time.Time) bool

// IsModifiedSince reports whether the file at path was modified after cutoff.
// A failed stat (missing file, permission error) counts as unmodified.
func IsModifiedSince(path string, cutoff time.Time) bool {
	fileInfo, statError := os.Stat(path)
	if statError != nil {
		return false
	}
	return fileInfo.ModTime().After(cutoff)
}
