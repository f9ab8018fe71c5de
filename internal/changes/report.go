package changes

import (
	"fmt"
	"time"

	"github.com/temirov/snapctx/internal/utils"
)

// CriterionKind labels the rule that selected the reported files.
type CriterionKind string

const (
	CriterionNone    CriterionKind = "none"
	CriterionSince   CriterionKind = "since"
	CriterionChanged CriterionKind = "changed"
	CriterionGitDiff CriterionKind = "git-diff"
)

const (
	firstRunDescription         = "first run, all files included"
	lastRunDescriptionFormat    = "since last run (%s)"
	sinceDescriptionFormat      = "since %s (%s)"
	gitDiffDescriptionFormat    = "changed vs %s"
	gitSkippedDescriptionFormat = "changed vs %s (git unavailable, not filtered)"
	combinedDescriptionFormat   = "%s, modified %s"
	reportSummaryFormat         = "%s: %d of %d files"
	cutoffDescriptionTimeLayout = "2006-01-02 15:04"
)

// Report describes what a resolution filtered. It is informational only.
type Report struct {
	Kind        CriterionKind `json:"kind" xml:"kind,attr"`
	Description string        `json:"description" xml:"description"`
	Cutoff      *time.Time    `json:"cutoff,omitempty" xml:"cutoff,omitempty"`
	GitRef      string        `json:"gitRef,omitempty" xml:"gitRef,omitempty"`
	Total       int           `json:"total" xml:"total,attr"`
	Filtered    int           `json:"filtered" xml:"filtered,attr"`
	FirstRun    bool          `json:"firstRun,omitempty" xml:"firstRun,attr,omitempty"`
}

// Summary renders the one-line form shown to the user,
// e.g. "since last run (3h ago): 42 of 210 files".
func (report *Report) Summary() string {
	if report == nil {
		return ""
	}
	return fmt.Sprintf(reportSummaryFormat, report.Description, report.Filtered, report.Total)
}

func describeTimeCriterion(plan resolutionPlan, now time.Time) string {
	age := utils.FormatAge(plan.cutoff, now)
	if plan.cutoffSource == CriterionChanged {
		return fmt.Sprintf(lastRunDescriptionFormat, age)
	}
	return fmt.Sprintf(sinceDescriptionFormat, plan.cutoff.In(time.Local).Format(cutoffDescriptionTimeLayout), age)
}

func describe(plan resolutionPlan, now time.Time) (CriterionKind, string) {
	var timeDescription string
	kind := CriterionNone
	if plan.hasCutoff {
		kind = plan.cutoffSource
		timeDescription = describeTimeCriterion(plan, now)
	}
	if plan.gitReference == "" {
		return kind, timeDescription
	}
	if !plan.gitSetAvailable {
		skipped := fmt.Sprintf(gitSkippedDescriptionFormat, plan.gitReference)
		if timeDescription == "" {
			return CriterionGitDiff, skipped
		}
		return kind, timeDescription + ", " + skipped
	}
	gitDescription := fmt.Sprintf(gitDiffDescriptionFormat, plan.gitReference)
	if timeDescription == "" {
		return CriterionGitDiff, gitDescription
	}
	return CriterionGitDiff, fmt.Sprintf(combinedDescriptionFormat, gitDescription, timeDescription)
}
