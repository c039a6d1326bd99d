// Package report renders a declarative section tree plus a flat count
// map into an indented, percentage-annotated text report.
//
// The renderer knows nothing about what the counts mean. Column widths
// are computed per sibling group, so a data change in one branch never
// reflows another branch.
package report

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Section specifies one node of a report tree.
//
// Key is the lookup key into the count map; when empty it defaults to
// the lowercased Name with spaces replaced by underscores.
//
// IsTotalCount marks a top-level total: the line is always displayed,
// and a missing key is an error rather than a zero. IsCleanCount marks
// the count of a cleaning action: the key is only present after a
// clean ran, and must be displayed (even if zero) whenever present.
// Unmarked sections that are all missing or zero at one level are
// suppressed together with everything below them.
type Section struct {
	Name         string
	Key          string
	Subsections  []*Section
	IsTotalCount bool
	IsCleanCount bool
}

// CountKey returns the key into the counts map for this section.
func (s *Section) CountKey() string {
	if s.Key != "" {
		return s.Key
	}
	return strings.ReplaceAll(strings.ToLower(s.Name), " ", "_")
}

// Render produces the report for the given top-level sections and
// two-level count map. Lines are joined by newline with no trailing
// newline. A top-level section with no matching count slice, or an
// IsTotalCount subsection with no matching key, is an integration
// error: the section tree and the counts have drifted apart.
func Render(sections []*Section, counts map[string]map[string]int) (string, error) {
	var lines []string
	for _, sec := range sections {
		sectionCounts, ok := counts[sec.CountKey()]
		if !ok {
			return "", eris.Errorf("report: no counts for section %q (key %q)", sec.Name, sec.CountKey())
		}
		lines = append(lines, sec.Name+":")
		sub, err := renderSubsections(sec.Subsections, sectionCounts, 1, 0)
		if err != nil {
			return "", eris.Wrapf(err, "report: section %q", sec.Name)
		}
		lines = append(lines, sub...)
	}
	return strings.Join(lines, "\n"), nil
}

// renderSubsections renders one sibling group at the given indent
// level. parentCount is 0 at the top level; percentages are only
// emitted below the top level, and recursion only happens for nonzero
// counts, so the divisor is always positive when used.
func renderSubsections(subs []*Section, counts map[string]int, level, parentCount int) ([]string, error) {
	if len(subs) == 0 {
		return nil, nil
	}

	subcounts := make([]int, len(subs))
	percents := make([]string, len(subs))
	anyFound := false
	display := false
	allZero := true

	for i, sub := range subs {
		count, ok := counts[sub.CountKey()]
		if !ok {
			if sub.IsTotalCount {
				return nil, eris.Errorf("missing total count %q", sub.CountKey())
			}
			count = 0
		} else {
			anyFound = true
			display = display || sub.IsTotalCount || sub.IsCleanCount
		}
		subcounts[i] = count
		if count != 0 {
			allZero = false
		}
		if parentCount > 0 {
			percents[i] = fmt.Sprintf("%.1f%%", float64(count)/float64(parentCount)*100)
		}
	}

	// A sibling group that was never exercised by the data renders
	// nothing. A present-but-zero total or clean count still renders:
	// "zero issues" is a signal, "feature not applicable" is not.
	if !anyFound && !display && allZero {
		return nil, nil
	}

	maxName, maxCount, maxPercent := 0, 0, 0
	for i, sub := range subs {
		maxName = max(maxName, len(sub.Name))
		maxCount = max(maxCount, len(fmt.Sprint(subcounts[i])))
		maxPercent = max(maxPercent, len(percents[i]))
	}

	indent := strings.Repeat(" ", level*2)
	var lines []string
	for i, sub := range subs {
		count := subcounts[i]
		line := fmt.Sprintf("%s%-*s:% *d", indent, maxName, sub.Name, maxCount, count)
		if parentCount > 0 {
			line += fmt.Sprintf(" (%*s)", maxPercent, percents[i])
		}
		lines = append(lines, line)

		if count > 0 && len(sub.Subsections) > 0 {
			children, err := renderSubsections(sub.Subsections, counts, level+1, count)
			if err != nil {
				return nil, err
			}
			lines = append(lines, children...)
		}
	}
	return lines, nil
}
