package checks

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/maskline/numsync/internal/model"
	"github.com/maskline/numsync/pkg/twilio"
)

// fakeSource serves canned local rows.
type fakeSource struct {
	numbers  []model.Number
	services []model.Service
	err      error
}

func (f *fakeSource) ListNumbers(ctx context.Context) ([]model.Number, error) {
	return f.numbers, f.err
}

func (f *fakeSource) ListServices(ctx context.Context) ([]model.Service, error) {
	return f.services, f.err
}

// fakeTwilio serves canned remote state and records mutations.
type fakeTwilio struct {
	numbers        []twilio.IncomingNumber
	services       []twilio.MessagingService
	serviceNumbers map[string][]twilio.ServiceNumber
	campaigns      map[string][]twilio.Campaign

	added   []string // "serviceSID/numberSID"
	removed []string
	failAdd map[string]bool // keyed by numberSID
}

func (f *fakeTwilio) ListIncomingNumbers(ctx context.Context) ([]twilio.IncomingNumber, error) {
	return f.numbers, nil
}

func (f *fakeTwilio) ListMessagingServices(ctx context.Context) ([]twilio.MessagingService, error) {
	return f.services, nil
}

func (f *fakeTwilio) ListServiceNumbers(ctx context.Context, serviceSID string) ([]twilio.ServiceNumber, error) {
	return f.serviceNumbers[serviceSID], nil
}

func (f *fakeTwilio) ListServiceCampaigns(ctx context.Context, serviceSID string) ([]twilio.Campaign, error) {
	return f.campaigns[serviceSID], nil
}

func (f *fakeTwilio) AddNumberToService(ctx context.Context, serviceSID, numberSID string) error {
	if f.failAdd[numberSID] {
		return eris.New("twilio refused")
	}
	f.added = append(f.added, serviceSID+"/"+numberSID)
	return nil
}

func (f *fakeTwilio) RemoveNumberFromService(ctx context.Context, serviceSID, numberSID string) error {
	f.removed = append(f.removed, serviceSID+"/"+numberSID)
	return nil
}
