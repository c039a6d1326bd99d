package checks

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/maskline/numsync/internal/cleaner"
	"github.com/maskline/numsync/internal/recon"
	"github.com/maskline/numsync/internal/report"
	"github.com/maskline/numsync/pkg/twilio"
)

// ServiceSyncChecker reconciles the local messaging-services table
// against Twilio's Messaging Services and their A2P campaigns. It is
// a detector: service drift needs human review before any write.
type ServiceSyncChecker struct {
	store  ServiceSource
	twilio twilio.Client
}

// NewServiceSyncChecker builds the checker.
func NewServiceSyncChecker(st ServiceSource, tw twilio.Client) *ServiceSyncChecker {
	return &ServiceSyncChecker{store: st, twilio: tw}
}

func (c *ServiceSyncChecker) Slug() string  { return "services" }
func (c *ServiceSyncChecker) Title() string { return "Messaging Services vs. Twilio" }
func (c *ServiceSyncChecker) Description() string {
	return "The messaging services table should match Twilio's Messaging Services and carry verified campaigns."
}
func (c *ServiceSyncChecker) CanClean() bool { return false }

func (c *ServiceSyncChecker) Check(ctx context.Context) (cleaner.Counts, error) {
	services, err := c.store.ListServices(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "checks: services: list local services")
	}
	remoteSvcs, err := c.twilio.ListMessagingServices(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "checks: services: list twilio services")
	}

	locals := make([]recon.LocalService, 0, len(services))
	for _, s := range services {
		locals = append(locals, recon.LocalService{
			SID:          s.SID,
			FriendlyName: s.FriendlyName,
			UseCase:      s.UseCase,
		})
	}
	remotes := make([]recon.RemoteService, 0, len(remoteSvcs))
	for _, svc := range remoteSvcs {
		campaigns, err := c.twilio.ListServiceCampaigns(ctx, svc.SID)
		if err != nil {
			return nil, eris.Wrapf(err, "checks: services: list campaigns of %s", svc.SID)
		}
		r := recon.RemoteService{SID: svc.SID, FriendlyName: svc.FriendlyName, UseCase: svc.UseCase}
		for _, cp := range campaigns {
			r.Campaigns = append(r.Campaigns, recon.Campaign{SID: cp.SID, Status: cp.CampaignStatus})
		}
		remotes = append(remotes, r)
	}

	rec, err := recon.NewServices(locals, remotes)
	if err != nil {
		return nil, err
	}

	s := rec.Summary()
	return cleaner.Counts{
		"summary": {
			"ok":             s.GoodData,
			"needs_cleaning": rec.TotalCount() - s.GoodData,
		},
		"services": {
			"all": len(services),
		},
		"twilio_services": {
			"all":           len(remotes),
			"with_campaign": rec.WithCampaign(),
			"no_campaign":   len(remotes) - rec.WithCampaign(),
		},
		"sync_check": {
			"all":            rec.TotalCount(),
			"in_both_db":     rec.PresenceCount(true, true),
			"good_data":      s.GoodData,
			"bad_data":       s.BadData,
			"out_of_sync":    s.OutOfSync,
			"only_local_db":  s.OnlyLocal,
			"only_twilio_db": s.OnlyTwilio,
		},
	}, nil
}

// Clean never runs; detectors report zero.
func (c *ServiceSyncChecker) Clean(ctx context.Context) (int, error) {
	return 0, nil
}

func (c *ServiceSyncChecker) ReportSpec() []*report.Section {
	localAll := &report.Section{Name: "All", IsTotalCount: true}

	withCampaign := &report.Section{Name: "With Campaign"}
	noCampaign := &report.Section{Name: "No Campaign"}
	twilioAll := &report.Section{Name: "All", IsTotalCount: true,
		Subsections: []*report.Section{withCampaign, noCampaign}}

	goodData := &report.Section{Name: "Good Data"}
	badData := &report.Section{Name: "Bad Data"}
	outOfSync := &report.Section{Name: "Out of Sync"}
	inBoth := &report.Section{Name: "In Both Databases", Key: "in_both_db",
		Subsections: []*report.Section{goodData, badData, outOfSync}}
	onlyLocal := &report.Section{Name: "Only in Local Database", Key: "only_local_db"}
	onlyTwilio := &report.Section{Name: "Only in Twilio Database", Key: "only_twilio_db"}
	syncAll := &report.Section{Name: "All", IsTotalCount: true,
		Subsections: []*report.Section{inBoth, onlyLocal, onlyTwilio}}

	return []*report.Section{
		{Name: "Messaging Services", Key: "services", Subsections: []*report.Section{localAll}},
		{Name: "Twilio Services", Subsections: []*report.Section{twilioAll}},
		{Name: "Sync Check", Subsections: []*report.Section{syncAll}},
	}
}

// Source is the full read surface the registry needs; store.Store
// satisfies it.
type Source interface {
	NumberSource
	ServiceSource
}

// All returns every registered checker in display order.
func All(st Source, tw twilio.Client, mainNumber string) []cleaner.Checker {
	return []cleaner.Checker{
		NewNumberSyncChecker(st, tw, mainNumber),
		NewServiceSyncChecker(st, tw),
	}
}
