// Package cleaner provides the framework for tasks that detect data
// drift between the local database and Twilio and, when possible,
// clean it up.
//
// A Checker implements one reconciliation job; a Task wraps it with
// the lifecycle bookkeeping: counts are gathered exactly once, clean
// runs exactly once, and the report is rendered from the cached
// counts. A failed Check leaves the task uncomputed so the caller can
// retry cleanly.
package cleaner

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/maskline/numsync/internal/report"
)

// Counts is a two-level count map: section key -> metric key -> count.
// This is the wire format exposed to downstream consumers; it never
// mutates once handed to the renderer for a given run.
type Counts map[string]map[string]int

// Checker is one data-drift detection job.
type Checker interface {
	// Slug is a short name, appropriate for a command-line option.
	Slug() string
	// Title is a short title for reports.
	Title() string
	// Description is a sentence describing what this checker checks.
	Description() string
	// CanClean reports whether detected issues can be fixed automatically.
	CanClean() bool
	// Check gathers data from the collaborators and returns the counts.
	// Implementations keep whatever cleanup candidates they need for a
	// later Clean call.
	Check(ctx context.Context) (Counts, error)
	// Clean fixes the auto-fixable issues found by Check and returns
	// the number fixed. A failed candidate is skipped, not fatal.
	Clean(ctx context.Context) (int, error)
	// ReportSpec returns the section tree for the report. Only valid
	// after a successful Check (data-dependent subsections).
	ReportSpec() []*report.Section
}

// Task runs one Checker through its lifecycle.
type Task struct {
	checker Checker
	counts  Counts
	cleaned bool
}

// NewTask wraps a checker. Each concurrent run needs its own Task.
func NewTask(c Checker) *Task {
	return &Task{checker: c}
}

// Checker returns the wrapped checker.
func (t *Task) Checker() Checker { return t.checker }

// Counts gathers counts on first call and returns the cached map on
// every later call without re-invoking the collaborators.
func (t *Task) Counts(ctx context.Context) (Counts, error) {
	if t.counts != nil {
		return t.counts, nil
	}
	counts, err := t.checker.Check(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "cleaner: %s: check", t.checker.Slug())
	}
	t.counts = counts
	return t.counts, nil
}

// Issues returns the number of detected data issues.
func (t *Task) Issues(ctx context.Context) (int, error) {
	counts, err := t.Counts(ctx)
	if err != nil {
		return 0, err
	}
	return counts["summary"]["needs_cleaning"], nil
}

// Clean fixes the detected issues once and records the result in
// counts["summary"]["cleaned"]. Detectors always report 0. Repeat
// calls return the recorded count without cleaning again.
func (t *Task) Clean(ctx context.Context) (int, error) {
	counts, err := t.Counts(ctx)
	if err != nil {
		return 0, err
	}
	if !t.cleaned {
		cleaned := 0
		if t.checker.CanClean() {
			cleaned, err = t.checker.Clean(ctx)
			if err != nil {
				return 0, eris.Wrapf(err, "cleaner: %s: clean", t.checker.Slug())
			}
		}
		counts["summary"]["cleaned"] = cleaned
		t.cleaned = true
	}
	return counts["summary"]["cleaned"], nil
}

// Report renders the task's report from the cached counts, gathering
// them first if needed.
func (t *Task) Report(ctx context.Context) (string, error) {
	counts, err := t.Counts(ctx)
	if err != nil {
		return "", err
	}
	text, err := report.Render(t.checker.ReportSpec(), counts)
	if err != nil {
		return "", eris.Wrapf(err, "cleaner: %s: report", t.checker.Slug())
	}
	return text, nil
}
