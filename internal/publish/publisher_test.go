package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/JustinTDCT/MediaForge/internal/cache"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/repository"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var movieCols = []string{
	"id", "library_id", "file_path", "file_name", "file_size", "title", "sort_title",
	"original_title", "plot", "tagline", "year", "release_date", "runtime_minutes",
	"rating", "votes", "content_rating", "genres", "studios", "trailer_url",
	"tmdb_id", "imdb_id", "tvdb_id", "status", "monitored", "locked_fields",
	"enriched_at", "last_published_at", "published_nfo_hash",
	"deleted_at", "created_at", "updated_at",
}

var assetCols = []string{
	"id", "movie_id", "asset_type", "provider", "source_url", "content_hash",
	"width", "height", "byte_size", "language", "votes", "quality_hint",
	"perceptual_hash", "difference_hash", "is_selected", "selection_reason",
	"score", "created_at", "updated_at",
}

var cacheCols = []string{
	"id", "content_hash", "path", "byte_size", "kind", "perceptual_hash",
	"difference_hash", "movie_id", "asset_type", "is_locked", "created_at",
}

var actorCols = []string{"id", "movie_id", "name", "role", "thumb_url", "thumb_cache_hash", "sort_order"}

type fixture struct {
	publisher *Publisher
	mock      sqlmock.Sqlmock
	movieID   uuid.UUID
	libDir    string
	moviePath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	libDir := filepath.Join(t.TempDir(), "The Matrix (1999)")
	require.NoError(t, os.MkdirAll(libDir, 0o755))
	moviePath := filepath.Join(libDir, "The Matrix (1999).mkv")
	require.NoError(t, os.WriteFile(moviePath, []byte("the actual movie"), 0o644))

	return &fixture{
		publisher: NewPublisher(
			repository.NewMovieRepository(db),
			repository.NewAssetRepository(db),
			repository.NewCacheFileRepository(db),
			repository.NewLibraryFileRepository(db),
			cache.NewStore(t.TempDir()),
		),
		mock:      mock,
		movieID:   uuid.New(),
		libDir:    libDir,
		moviePath: moviePath,
	}
}

func (f *fixture) movieRow(t *testing.T) *sqlmock.Rows {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tmdb := "603"
	plot := "A hacker learns the truth."
	year := 1999
	return sqlmock.NewRows(movieCols).
		AddRow(f.movieID, uuid.New(), f.moviePath, filepath.Base(f.moviePath), int64(16),
			"The Matrix", nil, nil, plot, nil, year, nil, nil, nil, nil,
			nil, pq.StringArray{"Action"}, pq.StringArray{}, nil, tmdb, nil, nil,
			models.StatusEnriched, true, pq.StringArray{}, nil, nil, nil,
			nil, now, now)
}

// putPoster lands poster bytes in the publisher's cache store and returns
// the content hash.
func (f *fixture) putPoster(t *testing.T, content string) string {
	t.Helper()
	hash, _, err := f.publisher.store.Put(models.KindImage, []byte(content))
	require.NoError(t, err)
	return hash
}

func (f *fixture) selectedPosterRows(hash string) *sqlmock.Rows {
	now := time.Now()
	size := int64(11)
	reason := "Best available (tmdb)"
	score := 0.25
	return sqlmock.NewRows(assetCols).
		AddRow(uuid.New(), f.movieID, models.AssetPoster, "tmdb", "http://x/p.jpg", hash,
			nil, nil, size, nil, nil, nil, nil, nil, true, reason, score, now, now)
}

func (f *fixture) cacheFileRows(hash string) *sqlmock.Rows {
	return sqlmock.NewRows(cacheCols).
		AddRow(uuid.New(), hash, "/cache/"+hash, int64(11), models.KindImage,
			nil, nil, f.movieID, models.AssetPoster, false, time.Now())
}

// expectPublish wires the fixed query sequence of one publish run.
func (f *fixture) expectPublish(t *testing.T, hash string) {
	t.Helper()
	f.mock.ExpectQuery(`SELECT`).WillReturnRows(f.movieRow(t))
	f.mock.ExpectQuery(`SELECT`).WillReturnRows(f.selectedPosterRows(hash))
	f.mock.ExpectQuery(`SELECT`).WillReturnRows(f.cacheFileRows(hash))
	f.mock.ExpectQuery(`SELECT`).WillReturnRows(sqlmock.NewRows(actorCols))
	// The rendered NFO is mirrored into the cache catalog.
	f.mock.ExpectQuery(`INSERT INTO cache_files`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(uuid.New(), time.Now()))
	f.mock.ExpectBegin()
	f.mock.ExpectExec(`DELETE FROM library_files`).WillReturnResult(sqlmock.NewResult(0, 1))
	// One file record per published file: poster, then NFO.
	f.mock.ExpectExec(`INSERT INTO library_files`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`INSERT INTO library_files`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()
	f.mock.ExpectExec(`UPDATE movies SET last_published_at`).WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestPublishCopiesNewAssets(t *testing.T) {
	f := newFixture(t)
	hash := f.putPoster(t, "poster bytes")
	f.expectPublish(t, hash)

	result, err := f.publisher.Publish(context.Background(), f.movieID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Copied)
	assert.True(t, result.NFOWritten)
	assert.True(t, result.Changed)
	assert.Empty(t, result.Errors)

	published, err := os.ReadFile(filepath.Join(f.libDir, "The Matrix (1999)-poster.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "poster bytes", string(published))
	assert.FileExists(t, filepath.Join(f.libDir, "The Matrix (1999).nfo"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPublishSecondRunIsNoop(t *testing.T) {
	f := newFixture(t)
	hash := f.putPoster(t, "poster bytes")

	f.expectPublish(t, hash)
	_, err := f.publisher.Publish(context.Background(), f.movieID)
	require.NoError(t, err)

	f.expectPublish(t, hash)
	result, err := f.publisher.Publish(context.Background(), f.movieID)
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.Equal(t, 0, result.Copied)
	assert.Equal(t, 0, result.Deleted)
	assert.False(t, result.NFOWritten)
	assert.Equal(t, 2, result.Skipped) // poster + nfo
}

func TestPublishRenamesMisplacedContent(t *testing.T) {
	f := newFixture(t)
	hash := f.putPoster(t, "poster bytes")

	// Same bytes already published, but under a stale name.
	stale := filepath.Join(f.libDir, "old-poster-name.jpg")
	require.NoError(t, os.WriteFile(stale, []byte("poster bytes"), 0o644))

	f.expectPublish(t, hash)
	result, err := f.publisher.Publish(context.Background(), f.movieID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Renamed)
	assert.Equal(t, 0, result.Copied)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(f.libDir, "The Matrix (1999)-poster.jpg"))
}

func TestPublishCleansUnauthorizedFiles(t *testing.T) {
	f := newFixture(t)
	hash := f.putPoster(t, "poster bytes")

	stray := filepath.Join(f.libDir, "The Matrix (1999)-banner.jpg")
	require.NoError(t, os.WriteFile(stray, []byte("stale banner"), 0o644))

	f.expectPublish(t, hash)
	result, err := f.publisher.Publish(context.Background(), f.movieID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.NoFileExists(t, stray)
	// The main media file is never touched.
	assert.FileExists(t, f.moviePath)
}

func TestPublishRecordsNFOInCatalog(t *testing.T) {
	f := newFixture(t)
	hash := f.putPoster(t, "poster bytes")
	f.expectPublish(t, hash)

	result, err := f.publisher.Publish(context.Background(), f.movieID)
	require.NoError(t, err)

	// The NFO shows up in the published paths, its bytes land in the text
	// cache, and the cache_files insert plus the second library_files
	// insert were both issued.
	nfoPath := filepath.Join(f.libDir, "The Matrix (1999).nfo")
	assert.Contains(t, result.Paths, nfoPath)
	data, err := os.ReadFile(nfoPath)
	require.NoError(t, err)
	mirrored := f.publisher.store.Get(models.KindText, cache.HashBytes(data))
	assert.FileExists(t, mirrored)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestVideoExtension(t *testing.T) {
	mp4 := append([]byte{0, 0, 0, 0x20}, []byte("ftypisom")...)
	assert.Equal(t, ".mp4", videoExtension(mp4))

	webm := append([]byte{0x1A, 0x45, 0xDF, 0xA3}, []byte("\x9fB\x86webm")...)
	assert.Equal(t, ".webm", videoExtension(webm))

	mkv := append([]byte{0x1A, 0x45, 0xDF, 0xA3}, []byte("\x9fB\x86matroska")...)
	assert.Equal(t, ".mkv", videoExtension(mkv))

	// Unknown content keeps the historical default.
	assert.Equal(t, ".mp4", videoExtension([]byte("mystery")))
}

func TestDetectExtensionSniffsTrailerContainer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trailer")
	head := append([]byte{0x1A, 0x45, 0xDF, 0xA3}, []byte("B\x86\x81\x04webm")...)
	require.NoError(t, os.WriteFile(path, head, 0o644))

	ext, err := detectExtension(path, models.KindVideo)
	require.NoError(t, err)
	assert.Equal(t, ".webm", ext)
}

func TestSanitizeBasename(t *testing.T) {
	ok, err := sanitizeBasename("The Matrix (1999)")
	require.NoError(t, err)
	assert.Equal(t, "The Matrix (1999)", ok)

	_, err = sanitizeBasename("../escape")
	assert.Error(t, err)
	_, err = sanitizeBasename("a/b")
	assert.Error(t, err)
	_, err = sanitizeBasename("bad\x00name")
	assert.Error(t, err)
	_, err = sanitizeBasename("")
	assert.Error(t, err)
}

func TestRenderMovieNFODeterministic(t *testing.T) {
	tmdb := "603"
	plot := "A hacker learns the truth."
	year := 1999
	movie := &models.Movie{
		Title:  "The Matrix",
		Plot:   &plot,
		Year:   &year,
		TMDBID: &tmdb,
		Genres: pq.StringArray{"Action", "Sci-Fi"},
	}
	role := "Neo"
	actors := []*models.Actor{{Name: "Keanu Reeves", Role: &role}}

	first, err := RenderMovieNFO(movie, actors)
	require.NoError(t, err)
	second, err := RenderMovieNFO(movie, actors)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	xml := string(first)
	assert.Contains(t, xml, "<title>The Matrix</title>")
	assert.Contains(t, xml, `<uniqueid type="tmdb" default="true">603</uniqueid>`)
	assert.Contains(t, xml, "<name>Keanu Reeves</name>")
	assert.Contains(t, xml, "<role>Neo</role>")
	assert.Contains(t, xml, "<genre>Action</genre>")
}
