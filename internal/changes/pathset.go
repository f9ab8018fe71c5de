package changes

import (
	"path/filepath"
	"slices"
)

// PathSet is a set of absolute, cleaned file paths.
type PathSet map[string]struct{}

// NewPathSet builds a set from the provided paths.
func NewPathSet(paths ...string) PathSet {
	set := make(PathSet, len(paths))
	for _, path := range paths {
		set.Add(path)
	}
	return set
}

// Add inserts a cleaned copy of path.
func (set PathSet) Add(path string) {
	set[filepath.Clean(path)] = struct{}{}
}

// Contains reports whether path is a member.
func (set PathSet) Contains(path string) bool {
	if set == nil {
		return false
	}
	_, exists := set[filepath.Clean(path)]
	return exists
}

// Union adds every member of other to the receiver.
func (set PathSet) Union(other PathSet) {
	for path := range other {
		set[path] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (set PathSet) Sorted() []string {
	result := make([]string, 0, len(set))
	for path := range set {
		result = append(result, path)
	}
	slices.Sort(result)
	return result
}
