package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberReportSpec() []*Section {
	numbersAll := &Section{Name: "All", IsTotalCount: true}
	twilioAll := &Section{Name: "All", IsTotalCount: true}
	syncAll := &Section{Name: "All", IsTotalCount: true}

	enabled := &Section{Name: "Enabled"}
	used := &Section{Name: "Used"}
	usedTexts := &Section{Name: "Used for Texts Only", Key: "used_texts"}
	usedCalls := &Section{Name: "Used for Calls Only", Key: "used_calls"}
	usedBoth := &Section{Name: "Used for Both", Key: "used_both"}

	mainNumber := &Section{Name: "Main Number"}
	inBoth := &Section{Name: "In Both Databases", Key: "in_both_db"}
	mainSync := &Section{Name: "Main Number in Twilio", Key: "main_number"}
	onlyLocal := &Section{Name: "Only in Local Database", Key: "only_local_db"}
	onlyTwilio := &Section{Name: "Only in Twilio Database", Key: "only_twilio_db"}

	used.Subsections = []*Section{usedTexts, usedCalls, usedBoth}
	enabled.Subsections = []*Section{used}
	numbersAll.Subsections = []*Section{enabled}
	twilioAll.Subsections = []*Section{mainNumber}
	syncAll.Subsections = []*Section{inBoth, mainSync, onlyLocal, onlyTwilio}

	return []*Section{
		{Name: "Numbers", Subsections: []*Section{numbersAll}},
		{Name: "Twilio Numbers", Subsections: []*Section{twilioAll}},
		{Name: "Sync Check", Subsections: []*Section{syncAll}},
	}
}

func TestCountKeyDefaultsToSlug(t *testing.T) {
	s := &Section{Name: "Only in Twilio Database"}
	assert.Equal(t, "only_in_twilio_database", s.CountKey())

	s = &Section{Name: "Only in Twilio Database", Key: "only_twilio_db"}
	assert.Equal(t, "only_twilio_db", s.CountKey())
}

func TestRenderEmptyData(t *testing.T) {
	counts := map[string]map[string]int{
		"numbers": {
			"all": 0, "disabled": 0, "enabled": 0,
			"used": 0, "used_both": 0, "used_texts": 0, "used_calls": 0,
		},
		"twilio_numbers": {"all": 0, "main_number": 0},
		"sync_check": {
			"all": 0, "in_both_db": 0, "main_number": 0,
			"only_local_db": 0, "only_twilio_db": 0,
		},
	}

	got, err := Render(numberReportSpec(), counts)
	require.NoError(t, err)

	want := "Numbers:\n" +
		"  All: 0\n" +
		"Twilio Numbers:\n" +
		"  All: 0\n" +
		"Sync Check:\n" +
		"  All: 0"
	assert.Equal(t, want, got)
}

func TestRenderMainNumberOnly(t *testing.T) {
	counts := map[string]map[string]int{
		"numbers": {
			"all": 0, "disabled": 0, "enabled": 0,
			"used": 0, "used_both": 0, "used_texts": 0, "used_calls": 0,
		},
		"twilio_numbers": {"all": 1, "main_number": 1},
		"sync_check": {
			"all": 1, "in_both_db": 0, "main_number": 1,
			"only_local_db": 0, "only_twilio_db": 0,
		},
	}

	got, err := Render(numberReportSpec(), counts)
	require.NoError(t, err)

	want := "Numbers:\n" +
		"  All: 0\n" +
		"Twilio Numbers:\n" +
		"  All: 1\n" +
		"    Main Number: 1 (100.0%)\n" +
		"Sync Check:\n" +
		"  All: 1\n" +
		"    In Both Databases      : 0 (  0.0%)\n" +
		"    Main Number in Twilio  : 1 (100.0%)\n" +
		"    Only in Local Database : 0 (  0.0%)\n" +
		"    Only in Twilio Database: 0 (  0.0%)"
	assert.Equal(t, want, got)
}

// Percent column width is computed per sibling group: with no sibling
// at 100.0%, percentages align to five characters, not six.
func TestRenderFullySynced(t *testing.T) {
	counts := map[string]map[string]int{
		"numbers": {
			"all": 7, "disabled": 1, "enabled": 6,
			"used": 5, "used_both": 1, "used_texts": 2, "used_calls": 2,
		},
		"twilio_numbers": {"all": 8, "main_number": 1},
		"sync_check": {
			"all": 8, "in_both_db": 7, "main_number": 1,
			"only_local_db": 0, "only_twilio_db": 0,
		},
	}

	got, err := Render(numberReportSpec(), counts)
	require.NoError(t, err)

	want := "Numbers:\n" +
		"  All: 7\n" +
		"    Enabled: 6 (85.7%)\n" +
		"      Used: 5 (83.3%)\n" +
		"        Used for Texts Only: 2 (40.0%)\n" +
		"        Used for Calls Only: 2 (40.0%)\n" +
		"        Used for Both      : 1 (20.0%)\n" +
		"Twilio Numbers:\n" +
		"  All: 8\n" +
		"    Main Number: 1 (12.5%)\n" +
		"Sync Check:\n" +
		"  All: 8\n" +
		"    In Both Databases      : 7 (87.5%)\n" +
		"    Main Number in Twilio  : 1 (12.5%)\n" +
		"    Only in Local Database : 0 ( 0.0%)\n" +
		"    Only in Twilio Database: 0 ( 0.0%)"
	assert.Equal(t, want, got)
}

func TestRenderMissingTotalCountIsError(t *testing.T) {
	spec := []*Section{
		{Name: "Numbers", Subsections: []*Section{
			{Name: "All", IsTotalCount: true},
		}},
	}
	counts := map[string]map[string]int{"numbers": {}}

	_, err := Render(spec, counts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing total count "all"`)
}

func TestRenderMissingSectionIsError(t *testing.T) {
	spec := []*Section{{Name: "Numbers"}}

	_, err := Render(spec, map[string]map[string]int{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no counts for section")
}

// A sibling group whose members are all absent from the map renders
// nothing; a present clean count always renders, even at zero.
func TestRenderSuppression(t *testing.T) {
	all := &Section{Name: "All", IsTotalCount: true}
	hasData := &Section{Name: "Has Data"}
	cleaned := &Section{Name: "Cleaned", IsCleanCount: true}
	hasData.Subsections = []*Section{cleaned}
	all.Subsections = []*Section{hasData}
	spec := []*Section{{Name: "Rows", Subsections: []*Section{all}}}

	// Clean never ran: "cleaned" key absent, branch suppressed.
	got, err := Render(spec, map[string]map[string]int{
		"rows": {"all": 3, "has_data": 2},
	})
	require.NoError(t, err)
	want := "Rows:\n" +
		"  All: 3\n" +
		"    Has Data: 2 (66.7%)"
	assert.Equal(t, want, got)

	// Clean ran and fixed nothing: zero still renders.
	got, err = Render(spec, map[string]map[string]int{
		"rows": {"all": 3, "has_data": 2, "cleaned": 0},
	})
	require.NoError(t, err)
	want = "Rows:\n" +
		"  All: 3\n" +
		"    Has Data: 2 (66.7%)\n" +
		"      Cleaned: 0 (0.0%)"
	assert.Equal(t, want, got)
}

// Zero-count branches are not recursed into, so a missing total below
// a zero branch is never evaluated.
func TestRenderZeroBranchNotRecursed(t *testing.T) {
	all := &Section{Name: "All", IsTotalCount: true}
	empty := &Section{Name: "Empty"}
	deep := &Section{Name: "Deep", IsTotalCount: true} // key absent on purpose
	empty.Subsections = []*Section{deep}
	all.Subsections = []*Section{empty}
	spec := []*Section{{Name: "Rows", Subsections: []*Section{all}}}

	got, err := Render(spec, map[string]map[string]int{
		"rows": {"all": 2, "empty": 0},
	})
	require.NoError(t, err)
	want := "Rows:\n" +
		"  All: 2\n" +
		"    Empty: 0 (0.0%)"
	assert.Equal(t, want, got)
}

func TestRenderCountColumnAlignment(t *testing.T) {
	spec := []*Section{{Name: "Rows", Subsections: []*Section{
		{Name: "All", IsTotalCount: true, Subsections: []*Section{
			{Name: "Big"},
			{Name: "Small"},
		}},
	}}}

	got, err := Render(spec, map[string]map[string]int{
		"rows": {"all": 120, "big": 105, "small": 15},
	})
	require.NoError(t, err)
	want := "Rows:\n" +
		"  All: 120\n" +
		"    Big  : 105 (87.5%)\n" +
		"    Small:  15 (12.5%)"
	assert.Equal(t, want, got)
}
