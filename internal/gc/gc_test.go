package gc

import (
	"database/sql/driver"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/JustinTDCT/MediaForge/internal/cache"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cacheCols = []string{
	"cf.id", "cf.content_hash", "cf.path", "cf.byte_size", "cf.kind", "cf.perceptual_hash",
	"cf.difference_hash", "cf.movie_id", "cf.asset_type", "cf.is_locked", "cf.created_at",
}

func newCollector(t *testing.T) (*Collector, sqlmock.Sqlmock, *cache.Store) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := cache.NewStore(t.TempDir())
	c := New(
		repository.NewMovieRepository(db),
		repository.NewAssetRepository(db),
		repository.NewCacheFileRepository(db),
		repository.NewActivityRepository(db),
		store, 30)
	return c, mock, c.store
}

func TestSweepOrphanedCacheFiles(t *testing.T) {
	c, mock, store := newCollector(t)

	hash, path, err := store.Put(models.KindImage, []byte("orphaned image"))
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WillReturnRows(sqlmock.NewRows(cacheCols).
			AddRow(uuid.New(), hash, path, int64(14), models.KindImage,
				nil, nil, nil, nil, false, time.Now()))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cache_files`)).
		WithArgs(hash).
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed := c.sweepOrphanedCacheFiles()
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, path)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepUnreferencedDiskFiles(t *testing.T) {
	c, mock, store := newCollector(t)

	hash, path, err := store.Put(models.KindImage, []byte("no catalog row"))
	require.NoError(t, err)

	// GetByHash misses: the file is a leftover and gets removed.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows(cacheCols))

	removed := c.sweepUnreferencedDiskFiles()
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, path)
}

func TestSweepKeepsReferencedDiskFiles(t *testing.T) {
	c, mock, store := newCollector(t)

	hash, path, err := store.Put(models.KindImage, []byte("still referenced"))
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows(cacheCols).
			AddRow(uuid.New(), hash, path, int64(16), models.KindImage,
				nil, nil, nil, nil, false, time.Now()))

	removed := c.sweepUnreferencedDiskFiles()
	assert.Equal(t, 0, removed)
	assert.FileExists(t, path)
}

func TestPurgeDeletedMovies(t *testing.T) {
	c, mock, _ := newCollector(t)
	movieID := uuid.New()
	now := time.Now()
	deleted := now.Add(-60 * 24 * time.Hour)

	movieCols := []string{"id", "library_id", "file_path", "file_name", "file_size", "title",
		"sort_title", "original_title", "plot", "tagline", "year", "release_date",
		"runtime_minutes", "rating", "votes", "content_rating", "genres", "studios",
		"trailer_url", "tmdb_id", "imdb_id", "tvdb_id", "status", "monitored",
		"locked_fields", "enriched_at", "last_published_at", "published_nfo_hash",
		"deleted_at", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WillReturnRows(sqlmock.NewRows(movieCols).
			AddRow(movieID, uuid.New(), "/m.mkv", "m.mkv", int64(1), "Gone", nil,
				nil, nil, nil, nil, nil, nil, nil, nil, nil, "{}", "{}", nil,
				nil, nil, nil, models.StatusIdentified, true, "{}", nil, nil, nil,
				deleted, now, now))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM movies`)).
		WithArgs(movieID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	purged := c.purgeDeletedMovies()
	assert.Equal(t, 1, purged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepStaleCandidates(t *testing.T) {
	c, mock, _ := newCollector(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM asset_candidates WHERE is_selected = false AND created_at < $1`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed := c.sweepStaleCandidates()
	assert.Equal(t, 3, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// timeBetween matches a time.Time argument inside an inclusive window.
type timeBetween struct{ lo, hi time.Time }

func (m timeBetween) Match(v driver.Value) bool {
	ts, ok := v.(time.Time)
	return ok && !ts.Before(m.lo) && !ts.After(m.hi)
}

func TestSweepStaleCandidatesCutoffHonorsRetention(t *testing.T) {
	c, mock, _ := newCollector(t)

	lo := time.Now().AddDate(0, 0, -30)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM asset_candidates`)).
		WithArgs(timeBetween{lo: lo, hi: time.Now().AddDate(0, 0, -30).Add(time.Minute)}).
		WillReturnResult(sqlmock.NewResult(0, 0))

	c.sweepStaleCandidates()
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepSkipsTempFiles(t *testing.T) {
	c, _, store := newCollector(t)

	// Simulate an interrupted write: .tmp files never get swept.
	dir := store.PathFor(models.KindImage, "aabbccdd")
	require.NoError(t, os.MkdirAll(dir[:len(dir)-8], 0o755))
	tmpPath := dir[:len(dir)-8] + ".aabbccdd.tmp123"
	require.NoError(t, os.WriteFile(tmpPath, []byte("partial"), 0o644))

	removed := c.sweepUnreferencedDiskFiles()
	assert.Equal(t, 0, removed)
	assert.FileExists(t, tmpPath)
}
