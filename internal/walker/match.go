package walker

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/temirov/snapctx/internal/utils"
)

// ignoreRule is one compiled ignore pattern.
type ignoreRule struct {
	pattern string
	// directory rules match a path whose leading segments match the pattern.
	directory bool
	// basename rules hold a single segment and match the last path segment at any depth.
	basename bool
	segments int
}

// ignoreMatcher evaluates ignore patterns against slash-separated paths relative to a
// walk root. Patterns use doublestar syntax, so "**" spans directories.
type ignoreMatcher struct {
	rules []ignoreRule
}

func newIgnoreMatcher(patterns []string) ignoreMatcher {
	rules := make([]ignoreRule, 0, len(patterns))
	for _, rawPattern := range patterns {
		normalized := strings.ReplaceAll(strings.TrimSpace(rawPattern), `\`, "/")
		if normalized == "" {
			continue
		}
		directory := strings.HasSuffix(normalized, "/")
		trimmed := strings.Trim(normalized, "/")
		if trimmed == "" || !doublestar.ValidatePattern(trimmed) {
			continue
		}
		segmentCount := strings.Count(trimmed, "/") + 1
		rules = append(rules, ignoreRule{
			pattern:   trimmed,
			directory: directory,
			basename:  !directory && segmentCount == 1,
			segments:  segmentCount,
		})
	}
	return ignoreMatcher{rules: rules}
}

// Matches reports whether relativePath is excluded. Ignore files themselves never make
// it into a bundle.
func (matcher ignoreMatcher) Matches(relativePath string) bool {
	normalized := strings.ReplaceAll(relativePath, `\`, "/")
	baseName := path.Base(normalized)
	if baseName == utils.IgnoreFileName || baseName == utils.GitIgnoreFileName {
		return true
	}
	segments := strings.Split(normalized, "/")
	for _, rule := range matcher.rules {
		switch {
		case rule.basename:
			if matchPattern(rule.pattern, baseName) {
				return true
			}
		case rule.directory:
			if matchesLeadingSegments(rule, segments) {
				return true
			}
		default:
			if matchPattern(rule.pattern, normalized) {
				return true
			}
		}
	}
	return false
}

func matchesLeadingSegments(rule ignoreRule, segments []string) bool {
	if strings.Contains(rule.pattern, "**") {
		for count := 1; count <= len(segments); count++ {
			if matchPattern(rule.pattern, strings.Join(segments[:count], "/")) {
				return true
			}
		}
		return false
	}
	if len(segments) < rule.segments {
		return false
	}
	return matchPattern(rule.pattern, strings.Join(segments[:rule.segments], "/"))
}

func matchPattern(pattern string, name string) bool {
	matched, matchError := doublestar.Match(pattern, name)
	return matchError == nil && matched
}

// extensionFilter admits files by extension, compared case-insensitively without the dot.
type extensionFilter struct {
	allowed map[string]struct{}
	all     bool
}

func newExtensionFilter(extensions []string) extensionFilter {
	filter := extensionFilter{allowed: make(map[string]struct{}, len(extensions))}
	for _, extension := range extensions {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(extension), "."))
		if normalized == AllExtensions {
			filter.all = true
		}
		if normalized != "" {
			filter.allowed[normalized] = struct{}{}
		}
	}
	if len(filter.allowed) == 0 {
		filter.all = true
	}
	return filter
}

func (filter extensionFilter) Allows(fileName string) bool {
	if filter.all {
		return true
	}
	extension := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	_, allowed := filter.allowed[extension]
	return allowed
}
