package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maskline/numsync/internal/cleaner"
	"github.com/maskline/numsync/internal/model"
	"github.com/maskline/numsync/internal/recon"
	"github.com/maskline/numsync/pkg/twilio"
)

func TestServiceSyncChecker_AllGood(t *testing.T) {
	st := &fakeSource{services: []model.Service{
		{SID: "MG1", FriendlyName: "Relay", UseCase: "notifications"},
	}}
	tw := &fakeTwilio{
		services: []twilio.MessagingService{
			{SID: "MG1", FriendlyName: "Relay", UseCase: "notifications"},
		},
		campaigns: map[string][]twilio.Campaign{
			"MG1": {{SID: "CM1", CampaignStatus: recon.CampaignStatusVerified}},
		},
	}
	c := NewServiceSyncChecker(st, tw)

	counts, err := c.Check(context.Background())
	require.NoError(t, err)

	want := cleaner.Counts{
		"summary":  {"ok": 1, "needs_cleaning": 0},
		"services": {"all": 1},
		"twilio_services": {
			"all": 1, "with_campaign": 1, "no_campaign": 0,
		},
		"sync_check": {
			"all": 1, "in_both_db": 1, "good_data": 1, "bad_data": 0,
			"out_of_sync": 0, "only_local_db": 0, "only_twilio_db": 0,
		},
	}
	assert.Equal(t, want, counts)
}

func TestServiceSyncChecker_AllGoodReport(t *testing.T) {
	st := &fakeSource{services: []model.Service{
		{SID: "MG1", FriendlyName: "Relay", UseCase: "notifications"},
	}}
	tw := &fakeTwilio{
		services: []twilio.MessagingService{
			{SID: "MG1", FriendlyName: "Relay", UseCase: "notifications"},
		},
		campaigns: map[string][]twilio.Campaign{
			"MG1": {{SID: "CM1", CampaignStatus: recon.CampaignStatusVerified}},
		},
	}
	task := cleaner.NewTask(NewServiceSyncChecker(st, tw))

	text, err := task.Report(context.Background())
	require.NoError(t, err)

	expected := `Messaging Services:
  All: 1
Twilio Services:
  All: 1
    With Campaign: 1 (100.0%)
    No Campaign  : 0 (  0.0%)
Sync Check:
  All: 1
    In Both Databases      : 1 (100.0%)
      Good Data  : 1 (100.0%)
      Bad Data   : 0 (  0.0%)
      Out of Sync: 0 (  0.0%)
    Only in Local Database : 0 (  0.0%)
    Only in Twilio Database: 0 (  0.0%)`
	assert.Equal(t, expected, text)
}

func TestServiceSyncChecker_Drift(t *testing.T) {
	st := &fakeSource{services: []model.Service{
		{SID: "MG1", FriendlyName: "Relay North", UseCase: "notifications"},
		{SID: "MG2", FriendlyName: "Relay South", UseCase: "notifications"},
		{SID: "MG3", FriendlyName: "Relay West", UseCase: "notifications"},
	}}
	tw := &fakeTwilio{
		services: []twilio.MessagingService{
			{SID: "MG1", FriendlyName: "Renamed", UseCase: "notifications"},
			{SID: "MG2", FriendlyName: "Relay South", UseCase: "notifications"},
			{SID: "MG4", FriendlyName: "Stray", UseCase: "marketing"},
		},
		campaigns: map[string][]twilio.Campaign{
			"MG2": {{SID: "CM2", CampaignStatus: recon.CampaignStatusVerified}},
			"MG4": {{SID: "CM4", CampaignStatus: "IN_PROGRESS"}},
		},
	}
	c := NewServiceSyncChecker(st, tw)

	counts, err := c.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, counts["summary"]["ok"])
	assert.Equal(t, 3, counts["summary"]["needs_cleaning"])
	assert.Equal(t, map[string]int{"all": 3, "with_campaign": 2, "no_campaign": 1},
		counts["twilio_services"])
	assert.Equal(t, map[string]int{
		"all": 4, "in_both_db": 2, "good_data": 1, "bad_data": 0,
		"out_of_sync": 1, "only_local_db": 1, "only_twilio_db": 1,
	}, counts["sync_check"])
}

func TestServiceSyncChecker_UnverifiedCampaignIsBadData(t *testing.T) {
	st := &fakeSource{services: []model.Service{
		{SID: "MG1", FriendlyName: "Relay", UseCase: "notifications"},
	}}
	tw := &fakeTwilio{
		services: []twilio.MessagingService{
			{SID: "MG1", FriendlyName: "Relay", UseCase: "notifications"},
		},
		campaigns: map[string][]twilio.Campaign{
			"MG1": {{SID: "CM1", CampaignStatus: "FAILED"}},
		},
	}
	c := NewServiceSyncChecker(st, tw)

	counts, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts["sync_check"]["bad_data"])
	assert.Equal(t, 0, counts["sync_check"]["good_data"])
	assert.Equal(t, 1, counts["summary"]["needs_cleaning"])
}

func TestServiceSyncChecker_AmbiguousCampaigns(t *testing.T) {
	st := &fakeSource{}
	tw := &fakeTwilio{
		services: []twilio.MessagingService{{SID: "MG1", FriendlyName: "Relay"}},
		campaigns: map[string][]twilio.Campaign{
			"MG1": {
				{SID: "CM1", CampaignStatus: recon.CampaignStatusVerified},
				{SID: "CM2", CampaignStatus: recon.CampaignStatusVerified},
			},
		},
	}
	c := NewServiceSyncChecker(st, tw)

	_, err := c.Check(context.Background())
	require.Error(t, err)

	var ambiguous *recon.AmbiguousDataError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "MG1", ambiguous.Key)
}

func TestServiceSyncChecker_DetectorNeverCleans(t *testing.T) {
	st := &fakeSource{services: []model.Service{{SID: "MG1", FriendlyName: "Relay"}}}
	tw := &fakeTwilio{}
	task := cleaner.NewTask(NewServiceSyncChecker(st, tw))

	cleaned, err := task.Clean(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cleaned)
	assert.Empty(t, tw.added)
	assert.Empty(t, tw.removed)
}
