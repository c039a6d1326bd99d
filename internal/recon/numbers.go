// Package recon merges the local database and Twilio's inventory into
// one combined view per natural key and classifies every record into
// a sync state. All aggregates are computed once, at construction;
// the public methods are plain reads over the finished result.
package recon

import (
	"sort"

	"github.com/rotisserie/eris"
)

// unknownCountry buckets local rows without a country code.
const unknownCountry = "ZZ"

// LocalNumber is a local numbers-table row as seen by the model.
type LocalNumber struct {
	Number      string
	CountryCode string
	Enabled     bool
	ServiceSID  string // intended messaging service, "" = none expected
}

// RemoteNumber is one Twilio IncomingPhoneNumber.
type RemoteNumber struct {
	SID    string
	Number string
}

// RemoteMembership is the phone-number membership of one Twilio
// messaging service.
type RemoteMembership struct {
	ServiceSID string
	Numbers    []string
}

// SyncState classifies one combined record. Exactly one state applies
// to every record.
type SyncState int

const (
	// StateOK needs no action.
	StateOK SyncState = iota
	// StateAutoFixable is resolvable by pushing local truth to Twilio.
	StateAutoFixable
	// StateManualFixable requires human investigation before any write.
	StateManualFixable
)

// ServiceBucket classifies the messaging-service assignment of a
// number present in both databases.
type ServiceBucket int

const (
	// BucketCorrectService: assigned to the intended service.
	BucketCorrectService ServiceBucket = iota
	// BucketWrongService: assigned, but not to the intended service.
	BucketWrongService
	// BucketOnlyLocalService: a service is intended but none assigned.
	BucketOnlyLocalService
	// BucketOnlyTwilioService: assigned although none is intended.
	BucketOnlyTwilioService
	// BucketNoService: none intended and none assigned.
	BucketNoService
)

// CombinedNumber is the per-key union of both sides.
type CombinedNumber struct {
	Number     string
	TwilioSID  string // IncomingPhoneNumber SID, "" when not in Twilio
	IsMain     bool
	InLocalDB  bool // has a local row
	InTwilio   bool
	Enabled    bool
	Country    string // from the local row; "" when no local row
	LocalSID   string // intended messaging service
	TwilioSvc  string // assigned messaging service
}

// InLocal reports local presence. The main number conceptually exists
// even without a local row.
func (c *CombinedNumber) InLocal() bool { return c.InLocalDB || c.IsMain }

// TwilioOnly reports presence in Twilio with no local claim on the key.
func (c *CombinedNumber) TwilioOnly() bool { return c.InTwilio && !c.InLocal() }

// Synced reports whether both sides agree. The main number is synced
// by mere presence; any other number must carry its intended
// messaging-service assignment. A number with no intended service is
// never synced while Twilio has it assigned to one: the local side is
// the authority on what "correct" means.
func (c *CombinedNumber) Synced() bool {
	if !c.InLocal() || !c.InTwilio {
		return false
	}
	if c.IsMain {
		return true
	}
	return c.LocalSID == c.TwilioSvc
}

// NeedsService reports a number that should be enrolled in a
// messaging service but is not yet.
func (c *CombinedNumber) NeedsService() bool {
	return c.InLocalDB && c.InTwilio && c.LocalSID != "" && c.TwilioSvc == ""
}

// State classifies the record. The switch is exhaustive by
// construction: synced records need nothing, unsynced records present
// on both sides can be repaired by pushing the local assignment, and
// everything else (a side is missing entirely) needs a human.
func (c *CombinedNumber) State() SyncState {
	switch {
	case c.Synced():
		return StateOK
	case c.InLocalDB && c.InTwilio:
		return StateAutoFixable
	default:
		return StateManualFixable
	}
}

// Bucket reports the service-assignment bucket. Only meaningful for
// non-main numbers present in both databases.
func (c *CombinedNumber) Bucket() ServiceBucket {
	switch {
	case c.LocalSID != "" && c.LocalSID == c.TwilioSvc:
		return BucketCorrectService
	case c.LocalSID != "" && c.TwilioSvc != "":
		return BucketWrongService
	case c.LocalSID != "":
		return BucketOnlyLocalService
	case c.TwilioSvc != "":
		return BucketOnlyTwilioService
	default:
		return BucketNoService
	}
}

// SyncSummary is the three-way classification over all records. The
// three buckets always sum to the total record count.
type SyncSummary struct {
	OK            int
	AutoFixable   int
	ManualFixable int
}

// CountryBreakdown is the five-way service-assignment split of the
// numbers of one country that are present in both databases. Total is
// always the sum of the five buckets.
type CountryBreakdown struct {
	Total             int
	CorrectService    int
	WrongService      int
	OnlyLocalService  int
	OnlyTwilioService int
	NoService         int
}

// Numbers is the finished reconciliation of the local numbers table
// against Twilio's number inventory and service memberships.
type Numbers struct {
	records      map[string]*CombinedNumber
	keys         []string
	total        int
	observed     int
	mainInTwilio bool
	summary      SyncSummary
	quadrants    map[[2]bool]int
	countries    []string
	byCountry    map[string]CountryBreakdown
	auto         []*CombinedNumber
	manual       []*CombinedNumber
}

// NewNumbers builds the keyed union of the local rows, Twilio's
// incoming numbers, and Twilio's service memberships. mainNumber is
// the distinguished number ("" when not configured); it is included
// in the union even when absent from both sides. A duplicate local
// number or a number assigned to more than one service fails loudly.
func NewNumbers(mainNumber string, locals []LocalNumber, remotes []RemoteNumber, memberships []RemoteMembership) (*Numbers, error) {
	assigned := make(map[string]string) // number -> service SID
	for _, m := range memberships {
		for _, num := range m.Numbers {
			if prev, ok := assigned[num]; ok && prev != m.ServiceSID {
				return nil, eris.Wrap(&AmbiguousDataError{
					Resource: "number",
					Key:      num,
					Detail:   "assigned to more than one messaging service",
				}, "recon: numbers")
			}
			assigned[num] = m.ServiceSID
		}
	}

	records := make(map[string]*CombinedNumber, len(locals)+len(remotes))
	for _, l := range locals {
		if _, ok := records[l.Number]; ok {
			return nil, eris.Wrap(&DuplicateKeyError{Resource: "number", Key: l.Number}, "recon: numbers")
		}
		cc := l.CountryCode
		if cc == "" {
			cc = unknownCountry
		}
		records[l.Number] = &CombinedNumber{
			Number:    l.Number,
			InLocalDB: true,
			Enabled:   l.Enabled,
			Country:   cc,
			LocalSID:  l.ServiceSID,
			IsMain:    l.Number == mainNumber && mainNumber != "",
		}
	}
	for _, r := range remotes {
		rec, ok := records[r.Number]
		if !ok {
			rec = &CombinedNumber{
				Number: r.Number,
				IsMain: r.Number == mainNumber && mainNumber != "",
			}
			records[r.Number] = rec
		}
		rec.InTwilio = true
		rec.TwilioSID = r.SID
		rec.TwilioSvc = assigned[r.Number]
	}
	if mainNumber != "" {
		if _, ok := records[mainNumber]; !ok {
			records[mainNumber] = &CombinedNumber{Number: mainNumber, IsMain: true}
		}
	}

	n := &Numbers{
		records:   records,
		quadrants: make(map[[2]bool]int),
		byCountry: make(map[string]CountryBreakdown),
	}
	n.keys = make([]string, 0, len(records))
	for key := range records {
		n.keys = append(n.keys, key)
	}
	sort.Strings(n.keys)
	n.aggregate()
	return n, nil
}

// aggregate computes every derived count once. Each read below is
// used for a different report bucket and must stay consistent within
// one run.
func (n *Numbers) aggregate() {
	for _, key := range n.keys {
		rec := n.records[key]
		n.total++
		if rec.InLocalDB || rec.InTwilio {
			n.observed++
		}
		if rec.IsMain && rec.InTwilio {
			n.mainInTwilio = true
		}
		if !rec.IsMain {
			n.quadrants[[2]bool{rec.InLocalDB, rec.InTwilio}]++
		}

		switch rec.State() {
		case StateOK:
			n.summary.OK++
		case StateAutoFixable:
			n.summary.AutoFixable++
			n.auto = append(n.auto, rec)
		case StateManualFixable:
			n.summary.ManualFixable++
			n.manual = append(n.manual, rec)
		}

		if rec.InLocalDB && rec.InTwilio && !rec.IsMain {
			b := n.byCountry[rec.Country]
			b.Total++
			switch rec.Bucket() {
			case BucketCorrectService:
				b.CorrectService++
			case BucketWrongService:
				b.WrongService++
			case BucketOnlyLocalService:
				b.OnlyLocalService++
			case BucketOnlyTwilioService:
				b.OnlyTwilioService++
			case BucketNoService:
				b.NoService++
			}
			n.byCountry[rec.Country] = b
		}
	}

	n.countries = make([]string, 0, len(n.byCountry))
	for cc := range n.byCountry {
		n.countries = append(n.countries, cc)
	}
	sort.Strings(n.countries)
}

// TotalCount is the number of distinct keys across local, Twilio, and
// the configured main number.
func (n *Numbers) TotalCount() int { return n.total }

// ObservedCount is the number of keys present in at least one
// database. A configured main number missing from both sides counts
// toward TotalCount but not here.
func (n *Numbers) ObservedCount() int { return n.observed }

// MainInTwilio reports whether the configured main number is present
// in Twilio's inventory.
func (n *Numbers) MainInTwilio() bool { return n.mainInTwilio }

// PresenceCount returns one presence quadrant over non-main numbers.
func (n *Numbers) PresenceCount(inLocal, inTwilio bool) int {
	return n.quadrants[[2]bool{inLocal, inTwilio}]
}

// Summary returns the three-way sync classification.
func (n *Numbers) Summary() SyncSummary { return n.summary }

// CleanupCandidates returns the auto-fixable and manual-fixable
// records, each ordered by number for deterministic clean runs.
func (n *Numbers) CleanupCandidates() (auto, manual []*CombinedNumber) {
	return n.auto, n.manual
}

// Countries returns the country codes observed on in-both records, in
// alphabetical order.
func (n *Numbers) Countries() []string { return n.countries }

// Country returns the service-assignment breakdown for one country.
func (n *Numbers) Country(cc string) CountryBreakdown { return n.byCountry[cc] }

// Record returns the combined record for a number, or nil.
func (n *Numbers) Record(number string) *CombinedNumber { return n.records[number] }
