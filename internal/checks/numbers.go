// Package checks implements the concrete reconciliation tasks: the
// phone-number sync checker (cleanable) and the messaging-service
// sync checker (detect only).
package checks

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/maskline/numsync/internal/cleaner"
	"github.com/maskline/numsync/internal/model"
	"github.com/maskline/numsync/internal/recon"
	"github.com/maskline/numsync/internal/report"
	"github.com/maskline/numsync/pkg/twilio"
)

// NumberSource is the slice of the store a number check reads.
type NumberSource interface {
	ListNumbers(ctx context.Context) ([]model.Number, error)
}

// ServiceSource is the slice of the store a service check reads.
type ServiceSource interface {
	ListServices(ctx context.Context) ([]model.Service, error)
}

// countryMetric is a typed key for the per-country breakdown counts.
// It is flattened to a string only at the counts-map boundary.
type countryMetric struct {
	CC     string
	Bucket string // "" for the country total
}

func (m countryMetric) Key() string {
	key := "cc_" + strings.ToLower(m.CC)
	if m.Bucket != "" {
		key += "_" + m.Bucket
	}
	return key
}

// NumberSyncChecker reconciles the local numbers table against
// Twilio's IncomingPhoneNumber inventory and messaging-service
// memberships. It can push local enrollment truth to Twilio.
type NumberSyncChecker struct {
	store      NumberSource
	twilio     twilio.Client
	mainNumber string

	counts    cleaner.Counts
	auto      []*recon.CombinedNumber
	countries []string
}

// NewNumberSyncChecker builds the checker. mainNumber may be empty
// when no main number is configured.
func NewNumberSyncChecker(st NumberSource, tw twilio.Client, mainNumber string) *NumberSyncChecker {
	return &NumberSyncChecker{store: st, twilio: tw, mainNumber: mainNumber}
}

func (c *NumberSyncChecker) Slug() string  { return "numbers" }
func (c *NumberSyncChecker) Title() string { return "Numbers vs. Twilio" }
func (c *NumberSyncChecker) Description() string {
	return "The numbers table should match Twilio's incoming phone numbers and service memberships."
}
func (c *NumberSyncChecker) CanClean() bool { return true }

func (c *NumberSyncChecker) Check(ctx context.Context) (cleaner.Counts, error) {
	numbers, err := c.store.ListNumbers(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "checks: numbers: list local numbers")
	}
	incoming, err := c.twilio.ListIncomingNumbers(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "checks: numbers: list twilio numbers")
	}
	services, err := c.twilio.ListMessagingServices(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "checks: numbers: list twilio services")
	}

	locals := make([]recon.LocalNumber, 0, len(numbers))
	for _, n := range numbers {
		locals = append(locals, recon.LocalNumber{
			Number:      n.Number,
			CountryCode: n.CountryCode,
			Enabled:     n.Enabled,
			ServiceSID:  n.ServiceSID,
		})
	}
	remotes := make([]recon.RemoteNumber, 0, len(incoming))
	for _, r := range incoming {
		remotes = append(remotes, recon.RemoteNumber{SID: r.SID, Number: r.PhoneNumber})
	}

	memberships := make([]recon.RemoteMembership, 0, len(services))
	inService := 0
	for _, svc := range services {
		enrolled, err := c.twilio.ListServiceNumbers(ctx, svc.SID)
		if err != nil {
			return nil, eris.Wrapf(err, "checks: numbers: list numbers of service %s", svc.SID)
		}
		m := recon.RemoteMembership{ServiceSID: svc.SID}
		for _, n := range enrolled {
			m.Numbers = append(m.Numbers, n.PhoneNumber)
		}
		inService += len(m.Numbers)
		memberships = append(memberships, m)
	}

	rec, err := recon.NewNumbers(c.mainNumber, locals, remotes, memberships)
	if err != nil {
		return nil, err
	}

	counts := cleaner.Counts{
		"summary":        summaryCounts(rec.Summary()),
		"numbers":        localNumberCounts(numbers),
		"twilio_numbers": twilioNumberCounts(len(incoming), inService, rec.MainInTwilio()),
		"sync_check":     c.syncCheckCounts(rec),
	}

	auto, _ := rec.CleanupCandidates()
	c.counts = counts
	c.auto = auto
	c.countries = rec.Countries()
	return counts, nil
}

func summaryCounts(s recon.SyncSummary) map[string]int {
	return map[string]int{
		"ok":             s.OK,
		"needs_cleaning": s.AutoFixable + s.ManualFixable,
	}
}

func localNumberCounts(numbers []model.Number) map[string]int {
	counts := map[string]int{
		"all":        len(numbers),
		"disabled":   0,
		"enabled":    0,
		"used":       0,
		"used_both":  0,
		"used_texts": 0,
		"used_calls": 0,
	}
	for _, n := range numbers {
		if !n.Enabled {
			counts["disabled"]++
			continue
		}
		counts["enabled"]++
		if !n.Used() {
			continue
		}
		counts["used"]++
		switch {
		case n.UsedTexts() && n.UsedCalls():
			counts["used_both"]++
		case n.UsedTexts():
			counts["used_texts"]++
		default:
			counts["used_calls"]++
		}
	}
	return counts
}

func twilioNumberCounts(all, inService int, mainInTwilio bool) map[string]int {
	counts := map[string]int{
		"all":         all,
		"in_service":  inService,
		"no_service":  all - inService,
		"main_number": 0,
	}
	if mainInTwilio {
		counts["main_number"] = 1
	}
	return counts
}

func (c *NumberSyncChecker) syncCheckCounts(rec *recon.Numbers) map[string]int {
	counts := map[string]int{
		"all":            rec.ObservedCount(),
		"in_both_db":     rec.PresenceCount(true, true),
		"only_local_db":  rec.PresenceCount(true, false),
		"only_twilio_db": rec.PresenceCount(false, true),
		"main_number":    0,
	}
	if rec.MainInTwilio() {
		counts["main_number"] = 1
	}
	auto, _ := rec.CleanupCandidates()
	counts["cleanable"] = len(auto)
	for _, cc := range rec.Countries() {
		b := rec.Country(cc)
		counts[countryMetric{CC: cc}.Key()] = b.Total
		counts[countryMetric{CC: cc, Bucket: "correct_service"}.Key()] = b.CorrectService
		counts[countryMetric{CC: cc, Bucket: "wrong_service"}.Key()] = b.WrongService
		counts[countryMetric{CC: cc, Bucket: "only_local_service"}.Key()] = b.OnlyLocalService
		counts[countryMetric{CC: cc, Bucket: "only_twilio_service"}.Key()] = b.OnlyTwilioService
		counts[countryMetric{CC: cc, Bucket: "no_service"}.Key()] = b.NoService
	}
	return counts
}

// Clean pushes the local messaging-service assignment to Twilio for
// every auto-fixable number. A candidate that fails is logged and
// skipped so one bad number does not abort the run.
func (c *NumberSyncChecker) Clean(ctx context.Context) (int, error) {
	if c.counts == nil {
		return 0, eris.New("checks: numbers: clean before check")
	}
	cleaned := 0
	for _, rec := range c.auto {
		if err := c.cleanOne(ctx, rec); err != nil {
			zap.L().Warn("number cleanup failed",
				zap.String("number", rec.Number),
				zap.Error(err))
			continue
		}
		cleaned++
	}
	c.counts["sync_check"]["cleaned"] = cleaned
	return cleaned, nil
}

func (c *NumberSyncChecker) cleanOne(ctx context.Context, rec *recon.CombinedNumber) error {
	switch rec.Bucket() {
	case recon.BucketOnlyLocalService:
		return c.twilio.AddNumberToService(ctx, rec.LocalSID, rec.TwilioSID)
	case recon.BucketOnlyTwilioService:
		return c.twilio.RemoveNumberFromService(ctx, rec.TwilioSvc, rec.TwilioSID)
	case recon.BucketWrongService:
		if err := c.twilio.RemoveNumberFromService(ctx, rec.TwilioSvc, rec.TwilioSID); err != nil {
			return err
		}
		return c.twilio.AddNumberToService(ctx, rec.LocalSID, rec.TwilioSID)
	default:
		return eris.Errorf("bucket not auto-fixable for %s", rec.Number)
	}
}

// ReportSpec returns the section tree. The per-country children under
// "In Both Databases" depend on the data and are only known after a
// successful Check.
func (c *NumberSyncChecker) ReportSpec() []*report.Section {
	usedTexts := &report.Section{Name: "Used for Texts Only", Key: "used_texts"}
	usedCalls := &report.Section{Name: "Used for Calls Only", Key: "used_calls"}
	usedBoth := &report.Section{Name: "Used for Both", Key: "used_both"}
	used := &report.Section{Name: "Used", Subsections: []*report.Section{usedTexts, usedCalls, usedBoth}}
	enabled := &report.Section{Name: "Enabled", Subsections: []*report.Section{used}}
	localAll := &report.Section{Name: "All", IsTotalCount: true, Subsections: []*report.Section{enabled}}

	mainNumber := &report.Section{Name: "Main Number"}
	inSvc := &report.Section{Name: "In a Messaging Service", Key: "in_service"}
	noSvc := &report.Section{Name: "No Messaging Service", Key: "no_service"}
	twilioAll := &report.Section{Name: "All", IsTotalCount: true,
		Subsections: []*report.Section{mainNumber, inSvc, noSvc}}

	inBoth := &report.Section{Name: "In Both Databases", Key: "in_both_db",
		Subsections: c.countrySections()}
	mainSync := &report.Section{Name: "Main Number in Twilio", Key: "main_number"}
	onlyLocal := &report.Section{Name: "Only in Local Database", Key: "only_local_db"}
	onlyTwilio := &report.Section{Name: "Only in Twilio Database", Key: "only_twilio_db"}
	// Cleaned hangs alone below Cleanable so the line only appears once
	// a clean actually ran (the "cleaned" key is absent before that).
	cleanedSec := &report.Section{Name: "Cleaned", IsCleanCount: true}
	cleanable := &report.Section{Name: "Cleanable",
		Subsections: []*report.Section{cleanedSec}}
	syncAll := &report.Section{Name: "All", IsTotalCount: true,
		Subsections: []*report.Section{inBoth, mainSync, onlyLocal, onlyTwilio, cleanable}}

	return []*report.Section{
		{Name: "Phone Numbers", Key: "numbers", Subsections: []*report.Section{localAll}},
		{Name: "Twilio Numbers", Subsections: []*report.Section{twilioAll}},
		{Name: "Sync Check", Subsections: []*report.Section{syncAll}},
	}
}

func (c *NumberSyncChecker) countrySections() []*report.Section {
	sections := make([]*report.Section, 0, len(c.countries))
	for _, cc := range c.countries {
		sections = append(sections, &report.Section{
			Name: "In " + cc,
			Key:  countryMetric{CC: cc}.Key(),
			Subsections: []*report.Section{
				{Name: "Correct Service", Key: countryMetric{CC: cc, Bucket: "correct_service"}.Key()},
				{Name: "Wrong Service", Key: countryMetric{CC: cc, Bucket: "wrong_service"}.Key()},
				{Name: "Only Local Service", Key: countryMetric{CC: cc, Bucket: "only_local_service"}.Key()},
				{Name: "Only Twilio Service", Key: countryMetric{CC: cc, Bucket: "only_twilio_service"}.Key()},
				{Name: "No Service", Key: countryMetric{CC: cc, Bucket: "no_service"}.Key()},
			},
		})
	}
	return sections
}
