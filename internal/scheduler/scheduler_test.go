package scheduler

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/JustinTDCT/MediaForge/internal/jobs"
	"github.com/JustinTDCT/MediaForge/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var libraryCols = []string{"id", "name", "media_type", "path", "is_enabled",
	"auto_enrich", "auto_publish", "created_at", "updated_at"}

var schedulerCols = []string{"id", "library_id", "file_scanner_enabled", "file_scanner_interval_hours",
	"provider_updater_enabled", "provider_updater_interval_hours", "last_file_scan_at", "last_provider_update_at"}

func newScheduler(t *testing.T) (*Scheduler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := New(repository.NewLibraryRepository(db), repository.NewSchedulerConfigRepository(db), jobs.NewQueue(db))
	return s, mock
}

func TestDue(t *testing.T) {
	now := time.Now()
	assert.True(t, due(nil, 12, now), "never-run is always due")

	recent := now.Add(-time.Hour)
	assert.False(t, due(&recent, 12, now))

	old := now.Add(-13 * time.Hour)
	assert.True(t, due(&old, 12, now))
}

func TestCheckEnqueuesDueWork(t *testing.T) {
	s, mock := newScheduler(t)
	libID := uuid.New()
	now := time.Now()
	lastScan := now.Add(-24 * time.Hour)

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows(libraryCols).
			AddRow(libID, "Movies", "movies", "/movies", true, true, true, now, now))
	// Scan overdue, provider update still fresh.
	mock.ExpectQuery(`SELECT`).
		WithArgs(libID).
		WillReturnRows(sqlmock.NewRows(schedulerCols).
			AddRow(uuid.New(), libID, true, 12, true, 168, lastScan, now))
	mock.ExpectExec(`INSERT INTO job_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE scheduler_configs SET last_file_scan_at`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.check()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckSkipsFreshLibraries(t *testing.T) {
	s, mock := newScheduler(t)
	libID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows(libraryCols).
			AddRow(libID, "Movies", "movies", "/movies", true, true, true, now, now))
	mock.ExpectQuery(`SELECT`).
		WithArgs(libID).
		WillReturnRows(sqlmock.NewRows(schedulerCols).
			AddRow(uuid.New(), libID, true, 12, true, 168, now, now))

	s.check()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckRespectsDisabledTasks(t *testing.T) {
	s, mock := newScheduler(t)
	libID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows(libraryCols).
			AddRow(libID, "Movies", "movies", "/movies", true, true, true, now, now))
	// Both tasks disabled: overdue timestamps must not enqueue anything.
	mock.ExpectQuery(`SELECT`).
		WithArgs(libID).
		WillReturnRows(sqlmock.NewRows(schedulerCols).
			AddRow(uuid.New(), libID, false, 12, false, 168, nil, nil))

	s.check()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerScanDedupSkipDoesNotAdvanceWatermark(t *testing.T) {
	s, mock := newScheduler(t)
	libID := uuid.New()

	// Dedup key already queued: the insert is a no-op and the watermark
	// must stay put.
	mock.ExpectExec(`INSERT INTO job_queue`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	id, err := s.TriggerScan(libID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerScanEnqueuesAtUserPriority(t *testing.T) {
	s, mock := newScheduler(t)
	libID := uuid.New()

	mock.ExpectExec(`INSERT INTO job_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE scheduler_configs SET last_file_scan_at`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.TriggerScan(libID)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
