// Package changes selects the files relevant to the current run: files modified since a
// time expression, since the last successful run, or relative to a git reference.
// Every external dependency fails soft; the worst outcome of any failure is
// "include everything" or "treat this file as unchanged".
package changes

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	unparseableSinceWarningFormat   = "could not parse since expression %q; including all files"
	gitDiffUnavailableWarningFormat = "git comparison against %q unavailable; git filter skipped"
	historyFallbackLog              = "no git history for cutoff; using modification times"
)

// Criteria selects files. Which fields are set decides the criterion; an empty value
// disables the corresponding filter.
type Criteria struct {
	// Since is a relative ("2h", "3d") or absolute ("2024-01-15") time expression.
	Since string
	// GitDiff is a git reference to compare the working tree against.
	GitDiff string
	// Changed selects files modified since the last successful run.
	Changed bool
}

// IsEmpty reports whether no criterion is set.
func (criteria Criteria) IsEmpty() bool {
	return strings.TrimSpace(criteria.Since) == "" && strings.TrimSpace(criteria.GitDiff) == "" && !criteria.Changed
}

// GitSource provides the git-derived change sets consumed by the Resolver.
type GitSource interface {
	// ChangedSince returns files changed relative to reference; false means no answer.
	ChangedSince(ctx context.Context, reference string) (PathSet, bool)
	// ChangedSinceInstant returns files touched by commits after cutoff, or an empty set.
	ChangedSinceInstant(ctx context.Context, cutoff time.Time) PathSet
}

// Result is the outcome of a resolution.
type Result struct {
	Paths    []string
	Report   *Report
	Warnings []string
}

// Resolver filters candidate paths according to Criteria. It holds no state between calls.
type Resolver struct {
	watermarks WatermarkReader
	git        GitSource
	probe      ModificationProbe
	now        func() time.Time
	logger     *zap.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock overrides the source of the current instant.
func WithClock(now func() time.Time) ResolverOption {
	return func(resolver *Resolver) {
		resolver.now = now
	}
}

// WithModificationProbe overrides the filesystem modification check.
func WithModificationProbe(probe ModificationProbe) ResolverOption {
	return func(resolver *Resolver) {
		resolver.probe = probe
	}
}

// WithLogger sets the logger used for fail-soft warnings.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(resolver *Resolver) {
		if logger != nil {
			resolver.logger = logger
		}
	}
}

// NewResolver creates a Resolver. A nil git source behaves like a directory outside git.
func NewResolver(watermarks WatermarkReader, git GitSource, options ...ResolverOption) *Resolver {
	if git == nil {
		git = unavailableGit{}
	}
	if watermarks == nil {
		watermarks = absentWatermark{}
	}
	resolver := &Resolver{
		watermarks: watermarks,
		git:        git,
		probe:      IsModifiedSince,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, option := range options {
		option(resolver)
	}
	return resolver
}

// resolutionPlan is the fully decided set of filters for one call.
type resolutionPlan struct {
	hasCutoff       bool
	cutoff          time.Time
	cutoffSource    CriterionKind
	gitReference    string
	gitSet          PathSet
	gitSetAvailable bool
	warnings        []string
}

// Resolve filters candidates. Candidate order is preserved.
func (resolver *Resolver) Resolve(ctx context.Context, candidates []string, criteria Criteria) Result {
	if criteria.IsEmpty() {
		return Result{Paths: slices.Clone(candidates)}
	}
	now := resolver.now()

	plan, shortCircuit := resolver.plan(ctx, candidates, criteria, now)
	if shortCircuit != nil {
		return *shortCircuit
	}

	filtered := resolver.apply(ctx, candidates, plan)
	kind, description := describe(plan, now)
	report := &Report{
		Kind:        kind,
		Description: description,
		GitRef:      plan.gitReference,
		Total:       len(candidates),
		Filtered:    len(filtered),
	}
	if plan.hasCutoff {
		cutoff := plan.cutoff
		report.Cutoff = &cutoff
	}
	return Result{Paths: filtered, Report: report, Warnings: plan.warnings}
}

// plan applies the precedence rules, highest first:
//
//	changed, no watermark   -> everything, reported as a first run; nothing else applies
//	since, unparseable      -> everything, no report; discards any watermark cutoff
//	since                   -> cutoff is the parsed instant (wins over the watermark)
//	changed                 -> cutoff is the watermark
//	gitDiff                 -> additional membership filter, combined with any cutoff by AND
func (resolver *Resolver) plan(ctx context.Context, candidates []string, criteria Criteria, now time.Time) (resolutionPlan, *Result) {
	var plan resolutionPlan

	if criteria.Changed {
		watermark, present := resolver.watermarks.Read()
		if !present {
			return plan, &Result{
				Paths:  slices.Clone(candidates),
				Report: &Report{
					Kind:        CriterionChanged,
					Description: firstRunDescription,
					Total:       len(candidates),
					Filtered:    len(candidates),
					FirstRun:    true,
				},
			}
		}
		plan.hasCutoff = true
		plan.cutoff = watermark
		plan.cutoffSource = CriterionChanged
	}

	if sinceExpression := strings.TrimSpace(criteria.Since); sinceExpression != "" {
		cutoff, parsed := ParseTimeExpression(sinceExpression, now)
		if !parsed {
			warning := fmt.Sprintf(unparseableSinceWarningFormat, sinceExpression)
			resolver.logger.Warn(warning)
			return plan, &Result{Paths: slices.Clone(candidates), Warnings: []string{warning}}
		}
		plan.hasCutoff = true
		plan.cutoff = cutoff
		plan.cutoffSource = CriterionSince
	}

	if reference := strings.TrimSpace(criteria.GitDiff); reference != "" {
		plan.gitReference = reference
		changedSet, available := resolver.git.ChangedSince(ctx, reference)
		if available {
			plan.gitSet = changedSet
			plan.gitSetAvailable = true
		} else {
			warning := fmt.Sprintf(gitDiffUnavailableWarningFormat, reference)
			resolver.logger.Warn(warning)
			plan.warnings = append(plan.warnings, warning)
		}
	}

	return plan, nil
}

func (resolver *Resolver) apply(ctx context.Context, candidates []string, plan resolutionPlan) []string {
	var historySet PathSet
	if plan.hasCutoff {
		historySet = resolver.git.ChangedSinceInstant(ctx, plan.cutoff)
		if len(historySet) == 0 {
			resolver.logger.Debug(historyFallbackLog, zap.Time("cutoff", plan.cutoff))
		}
	}

	filtered := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if plan.hasCutoff && !resolver.changedSinceCutoff(candidate, plan.cutoff, historySet) {
			continue
		}
		if plan.gitSetAvailable && !plan.gitSet.Contains(candidate) {
			continue
		}
		filtered = append(filtered, candidate)
	}
	return filtered
}

// changedSinceCutoff treats a non-empty git history set as authoritative and only
// consults modification times when git had nothing to say.
func (resolver *Resolver) changedSinceCutoff(candidate string, cutoff time.Time, historySet PathSet) bool {
	if len(historySet) > 0 {
		return historySet.Contains(candidate)
	}
	return resolver.probe(candidate, cutoff)
}

type unavailableGit struct{}

func (unavailableGit) ChangedSince(context.Context, string) (PathSet, bool) {
	return nil, false
}

func (unavailableGit) ChangedSinceInstant(context.Context, time.Time) PathSet {
	return NewPathSet()
}

type absentWatermark struct{}

func (absentWatermark) Read() (time.Time, bool) {
	return time.Time{}, false
}

var _ GitSource = (*GitBridge)(nil)
