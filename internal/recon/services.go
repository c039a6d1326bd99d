package recon

import (
	"sort"

	"github.com/rotisserie/eris"
)

// CampaignStatusVerified is the A2P campaign status that counts as
// good data; anything else (pending, failed, absent) does not.
const CampaignStatusVerified = "VERIFIED"

// LocalService is a local messaging_services-table row: the intended
// state of one Twilio Messaging Service.
type LocalService struct {
	SID          string
	FriendlyName string
	UseCase      string
}

// Campaign is one A2P campaign registration on a Twilio service.
type Campaign struct {
	SID    string
	Status string
}

// RemoteService is one Twilio Messaging Service with its campaign
// registrations.
type RemoteService struct {
	SID          string
	FriendlyName string
	UseCase      string
	Campaigns    []Campaign
}

// ServiceState classifies one combined service record. Exactly one
// state applies to every record.
type ServiceState int

const (
	// ServiceGoodData: present on both sides, attributes match, and
	// the campaign is verified.
	ServiceGoodData ServiceState = iota
	// ServiceBadData: present on both sides with matching attributes,
	// but the campaign is missing or unverified.
	ServiceBadData
	// ServiceOutOfSync: present on both sides with mismatched
	// attributes (friendly name or use case).
	ServiceOutOfSync
	// ServiceOnlyLocal: intended locally, missing from Twilio.
	ServiceOnlyLocal
	// ServiceOnlyTwilio: exists in Twilio with no local record; it
	// cannot be compared, so it is never "good data".
	ServiceOnlyTwilio
)

// CombinedService is the per-SID union of both sides.
type CombinedService struct {
	SID            string
	InLocalDB      bool
	InTwilio       bool
	LocalName      string
	TwilioName     string
	LocalUseCase   string
	TwilioUseCase  string
	HasCampaign    bool
	CampaignStatus string
}

// DataMatches reports whether the locally intended attributes agree
// with Twilio's.
func (s *CombinedService) DataMatches() bool {
	return s.LocalName == s.TwilioName && s.LocalUseCase == s.TwilioUseCase
}

// State classifies the record; the switch is exhaustive by construction.
func (s *CombinedService) State() ServiceState {
	switch {
	case !s.InTwilio:
		return ServiceOnlyLocal
	case !s.InLocalDB:
		return ServiceOnlyTwilio
	case !s.DataMatches():
		return ServiceOutOfSync
	case s.HasCampaign && s.CampaignStatus == CampaignStatusVerified:
		return ServiceGoodData
	default:
		return ServiceBadData
	}
}

// ServiceSummary counts the five service states. The five always sum
// to the total record count.
type ServiceSummary struct {
	GoodData   int
	BadData    int
	OutOfSync  int
	OnlyLocal  int
	OnlyTwilio int
}

// Services is the finished reconciliation of the local messaging
// services table against Twilio's Messaging Services.
type Services struct {
	records      map[string]*CombinedService
	keys         []string
	total        int
	summary      ServiceSummary
	quadrants    map[[2]bool]int
	withCampaign int
}

// NewServices builds the keyed union of local service rows and Twilio
// services. A duplicate local SID fails loudly; a Twilio service with
// more than one campaign is ambiguous and fails classification.
func NewServices(locals []LocalService, remotes []RemoteService) (*Services, error) {
	records := make(map[string]*CombinedService, len(locals)+len(remotes))
	for _, l := range locals {
		if _, ok := records[l.SID]; ok {
			return nil, eris.Wrap(&DuplicateKeyError{Resource: "messaging_service", Key: l.SID}, "recon: services")
		}
		records[l.SID] = &CombinedService{
			SID:          l.SID,
			InLocalDB:    true,
			LocalName:    l.FriendlyName,
			LocalUseCase: l.UseCase,
		}
	}
	for _, r := range remotes {
		if len(r.Campaigns) > 1 {
			return nil, eris.Wrap(&AmbiguousDataError{
				Resource: "messaging_service",
				Key:      r.SID,
				Detail:   "more than one A2P campaign",
			}, "recon: services")
		}
		rec, ok := records[r.SID]
		if !ok {
			rec = &CombinedService{SID: r.SID}
			records[r.SID] = rec
		}
		rec.InTwilio = true
		rec.TwilioName = r.FriendlyName
		rec.TwilioUseCase = r.UseCase
		if len(r.Campaigns) == 1 {
			rec.HasCampaign = true
			rec.CampaignStatus = r.Campaigns[0].Status
		}
	}

	s := &Services{records: records, quadrants: make(map[[2]bool]int)}
	s.keys = make([]string, 0, len(records))
	for key := range records {
		s.keys = append(s.keys, key)
	}
	sort.Strings(s.keys)

	for _, key := range s.keys {
		rec := records[key]
		s.total++
		s.quadrants[[2]bool{rec.InLocalDB, rec.InTwilio}]++
		if rec.InTwilio && rec.HasCampaign {
			s.withCampaign++
		}
		switch rec.State() {
		case ServiceGoodData:
			s.summary.GoodData++
		case ServiceBadData:
			s.summary.BadData++
		case ServiceOutOfSync:
			s.summary.OutOfSync++
		case ServiceOnlyLocal:
			s.summary.OnlyLocal++
		case ServiceOnlyTwilio:
			s.summary.OnlyTwilio++
		}
	}
	return s, nil
}

// TotalCount is the number of distinct SIDs across both sides.
func (s *Services) TotalCount() int { return s.total }

// PresenceCount returns one presence quadrant.
func (s *Services) PresenceCount(inLocal, inTwilio bool) int {
	return s.quadrants[[2]bool{inLocal, inTwilio}]
}

// Summary returns the five-way state classification.
func (s *Services) Summary() ServiceSummary { return s.summary }

// WithCampaign is the number of Twilio services carrying a campaign.
func (s *Services) WithCampaign() int { return s.withCampaign }

// Record returns the combined record for a SID, or nil.
func (s *Services) Record(sid string) *CombinedService { return s.records[sid] }
