package tasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/JustinTDCT/MediaForge/internal/jobs"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/notify"
	"github.com/JustinTDCT/MediaForge/internal/providers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockQueue(t *testing.T) (*jobs.Queue, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return jobs.NewQueue(db), mock
}

func mustPayload(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestWebhookReceivedEnqueuesScan(t *testing.T) {
	queue, mock := newMockQueue(t)
	h := &Handlers{queue: queue}
	libID := uuid.New()

	mock.ExpectExec(`INSERT INTO job_queue .* WHERE NOT EXISTS`).
		WithArgs(sqlmock.AnyArg(), models.JobFileScan, models.PriorityWebhook,
			sqlmock.AnyArg(), 3, false, jobs.FileScanDedupKey(libID)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	job := &models.Job{
		ID:   uuid.New(),
		Kind: models.JobWebhookReceived,
		Payload: mustPayload(t, jobs.WebhookReceivedPayload{
			Event:     "library_changed",
			LibraryID: libID,
		}),
	}
	require.NoError(t, h.handleWebhookReceived(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookWithoutLibraryIgnored(t *testing.T) {
	queue, mock := newMockQueue(t)
	h := &Handlers{queue: queue}

	job := &models.Job{
		ID:      uuid.New(),
		Kind:    models.JobWebhookReceived,
		Payload: mustPayload(t, jobs.WebhookReceivedPayload{Event: "ping"}),
	}
	require.NoError(t, h.handleWebhookReceived(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifyPlayerPostsToWebhook(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := &Handlers{notifier: notify.NewPlayerNotifier(srv.URL, "")}
	movieID := uuid.New()

	job := &models.Job{
		ID:   uuid.New(),
		Kind: models.JobNotifyPlayer,
		Payload: mustPayload(t, jobs.NotifyPlayerPayload{
			MovieID: movieID,
			Paths:   []string{"/m/The Matrix (1999)/The Matrix (1999)-poster.jpg"},
		}),
	}
	require.NoError(t, h.handleNotifyPlayer(context.Background(), job))
	assert.Equal(t, movieID.String(), got["movie_id"])
	assert.Equal(t, "library_updated", got["event"])
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, providers.PriorityUser,
		priorityFor(&models.Job{Priority: models.PriorityUser}))
	assert.Equal(t, providers.PriorityBackground,
		priorityFor(&models.Job{Priority: models.PriorityBackground}))
	assert.Equal(t, providers.PriorityBackground,
		priorityFor(&models.Job{Priority: models.PriorityWebhook}))
}
