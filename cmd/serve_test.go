package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maskline/numsync/internal/model"
	"github.com/maskline/numsync/pkg/twilio"
)

// memStore is an in-memory store.Store for handler tests.
type memStore struct {
	numbers  []model.Number
	services []model.Service
	runs     []model.CheckRun
}

func (m *memStore) ListNumbers(ctx context.Context) ([]model.Number, error) {
	return m.numbers, nil
}

func (m *memStore) CreateNumber(ctx context.Context, n model.Number) (*model.Number, error) {
	n.ID = uuid.New().String()
	m.numbers = append(m.numbers, n)
	return &n, nil
}

func (m *memStore) BulkInsertNumbers(ctx context.Context, numbers []model.Number) (int64, error) {
	m.numbers = append(m.numbers, numbers...)
	return int64(len(numbers)), nil
}

func (m *memStore) ListServices(ctx context.Context) ([]model.Service, error) {
	return m.services, nil
}

func (m *memStore) CreateService(ctx context.Context, s model.Service) error {
	m.services = append(m.services, s)
	return nil
}

func (m *memStore) RecordCheckRun(ctx context.Context, run model.CheckRun) (*model.CheckRun, error) {
	run.ID = uuid.New().String()
	run.CreatedAt = time.Now().UTC()
	m.runs = append(m.runs, run)
	return &run, nil
}

func (m *memStore) ListCheckRuns(ctx context.Context, limit int) ([]model.CheckRun, error) {
	if limit > 0 && limit < len(m.runs) {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close() error                      { return nil }

// stubTwilio serves a fixed remote state.
type stubTwilio struct {
	numbers  []twilio.IncomingNumber
	services []twilio.MessagingService
}

func (s *stubTwilio) ListIncomingNumbers(ctx context.Context) ([]twilio.IncomingNumber, error) {
	return s.numbers, nil
}

func (s *stubTwilio) ListMessagingServices(ctx context.Context) ([]twilio.MessagingService, error) {
	return s.services, nil
}

func (s *stubTwilio) ListServiceNumbers(ctx context.Context, serviceSID string) ([]twilio.ServiceNumber, error) {
	return nil, nil
}

func (s *stubTwilio) ListServiceCampaigns(ctx context.Context, serviceSID string) ([]twilio.Campaign, error) {
	return nil, nil
}

func (s *stubTwilio) AddNumberToService(ctx context.Context, serviceSID, numberSID string) error {
	return nil
}

func (s *stubTwilio) RemoveNumberFromService(ctx context.Context, serviceSID, numberSID string) error {
	return nil
}

func newTestRouter(st *memStore) http.Handler {
	tw := &stubTwilio{
		numbers: []twilio.IncomingNumber{{SID: "PN1", PhoneNumber: "+13015550001"}},
	}
	return newRouter(st, tw, "")
}

func TestServeHealth(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&memStore{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestServeTasks(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&memStore{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/tasks")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tasks []taskInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tasks))
	require.Len(t, tasks, 2)
	assert.Equal(t, "numbers", tasks[0].Slug)
	assert.True(t, tasks[0].CanClean)
	assert.Equal(t, "services", tasks[1].Slug)
	assert.False(t, tasks[1].CanClean)
}

func TestServeRunsEmpty(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&memStore{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/runs")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []model.CheckRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	assert.Empty(t, runs)
}

func TestServeCheckUnknownTask(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&memStore{}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/check/nope", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeCheckRunsAndRecords(t *testing.T) {
	st := &memStore{numbers: []model.Number{
		{Number: "+13015550001", CountryCode: "US", Enabled: true},
	}}
	srv := httptest.NewServer(newTestRouter(st))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/check/numbers", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res checkResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "numbers", res.Task)
	assert.Zero(t, res.Issues)
	assert.Equal(t, 1, res.Counts["sync_check"]["in_both_db"])
	assert.NotEmpty(t, res.Report)

	require.Len(t, st.runs, 1)
	assert.Equal(t, "numbers", st.runs[0].Task)
}

// Recording a run over HTTP must not produce CLI output; the "Saved
// run" line belongs to the check command only.
func TestServeCheckWritesNoCLIOutput(t *testing.T) {
	st := &memStore{numbers: []model.Number{
		{Number: "+13015550001", CountryCode: "US", Enabled: true},
	}}
	srv := httptest.NewServer(newTestRouter(st))
	defer srv.Close()

	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w
	defer func() { os.Stderr = oldStderr }()

	resp, err := http.Post(srv.URL+"/api/v1/check/numbers", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, w.Close())
	captured, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, string(captured))
}
