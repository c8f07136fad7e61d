package enrich

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/JustinTDCT/MediaForge/internal/breaker"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/providers"
	"github.com/JustinTDCT/MediaForge/internal/ratelimit"
	"github.com/JustinTDCT/MediaForge/internal/repository"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// searchAdapter is a minimal providers.Adapter returning scripted matches.
type searchAdapter struct {
	name    string
	results []providers.SearchResult
	err     error
}

func (s *searchAdapter) Name() string { return s.name }

func (s *searchAdapter) Capabilities() providers.Capabilities {
	return providers.Capabilities{
		EntityTypes:      []models.MediaType{models.MediaTypeMovies},
		RateLimit:        providers.RateLimit{Requests: 100, Window: time.Second},
		ProvidesMetadata: true,
	}
}

func (s *searchAdapter) Search(ctx context.Context, q providers.Query) ([]providers.SearchResult, error) {
	return s.results, s.err
}

func (s *searchAdapter) GetMetadata(ctx context.Context, id string, t models.MediaType) (*providers.Metadata, error) {
	return nil, nil
}

func (s *searchAdapter) GetAssets(ctx context.Context, id string, t models.MediaType, at []models.AssetType) ([]*models.AssetCandidate, error) {
	return nil, nil
}

func (s *searchAdapter) TestConnection(ctx context.Context) error { return nil }

func searchRegistry(adapters ...*searchAdapter) *providers.Registry {
	reg := providers.NewRegistry(ratelimit.New(), breaker.New(), 0)
	for _, a := range adapters {
		a := a
		reg.RegisterFactory(a.name, func(cfg *models.ProviderConfig) providers.Adapter { return a })
		key := "k"
		reg.SetConfig(&models.ProviderConfig{ProviderName: a.name, Enabled: true, APIKey: &key})
	}
	return reg
}

var movieCols = []string{
	"id", "library_id", "file_path", "file_name", "file_size", "title", "sort_title",
	"original_title", "plot", "tagline", "year", "release_date", "runtime_minutes",
	"rating", "votes", "content_rating", "genres", "studios", "trailer_url",
	"tmdb_id", "imdb_id", "tvdb_id", "status", "monitored", "locked_fields",
	"enriched_at", "last_published_at", "published_nfo_hash",
	"deleted_at", "created_at", "updated_at",
}

func movieRows(id uuid.UUID, title string, status models.EnrichmentStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(movieCols).
		AddRow(id, uuid.New(), "/lib/m.mkv", "m.mkv", int64(1), title, nil,
			nil, nil, nil, nil, nil, nil, nil, nil,
			nil, pq.StringArray{}, pq.StringArray{}, nil, nil, nil, nil, status,
			true, pq.StringArray{}, nil, nil, nil,
			nil, now, now)
}

func identifyOrchestrator(t *testing.T, reg *providers.Registry) (*Orchestrator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	o := NewOrchestrator(repository.NewMovieRepository(db), nil, nil, nil, nil, reg, nil, nil)
	return o, mock
}

func identifyPrio() providers.Priority {
	return providers.Priority{Name: "user", Timeout: time.Second, MaxRetries: 0}
}

func TestIdentifyAppliesBestMatch(t *testing.T) {
	year := 1999
	reg := searchRegistry(
		&searchAdapter{name: "omdb", results: []providers.SearchResult{
			{Title: "The Matrix Reloaded", Confidence: 0.6,
				ExternalIDs: map[string]string{"imdb": "tt0234215"}},
		}},
		&searchAdapter{name: "tmdb", results: []providers.SearchResult{
			{Title: "The Matrix", Year: &year, Confidence: 0.95,
				ExternalIDs: map[string]string{"tmdb": "603", "imdb": "tt0133093"}},
		}},
	)
	o, mock := identifyOrchestrator(t, reg)

	movieID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(movieID).
		WillReturnRows(movieRows(movieID, "The Matrix", models.StatusUnidentified))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE movies SET`)).
		WithArgs("603", "tt0133093", nil, movieID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE movies SET status`)).
		WithArgs(models.StatusIdentified, movieID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	match, err := o.Identify(context.Background(), movieID, "", nil, identifyPrio())
	require.NoError(t, err)
	assert.Equal(t, "tmdb", match.Provider)
	assert.Equal(t, "The Matrix", match.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentifyNoMatches(t *testing.T) {
	reg := searchRegistry(&searchAdapter{name: "tmdb"})
	o, mock := identifyOrchestrator(t, reg)

	movieID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(movieID).
		WillReturnRows(movieRows(movieID, "Obscure Film", models.StatusUnidentified))

	_, err := o.Identify(context.Background(), movieID, "", nil, identifyPrio())
	assert.Error(t, err)
}

func TestSearchAllFiltersLowConfidence(t *testing.T) {
	reg := searchRegistry(&searchAdapter{name: "tmdb", results: []providers.SearchResult{
		{Title: "Good", Confidence: 0.9},
		{Title: "Noise", Confidence: 0.1},
	}})
	o, _ := identifyOrchestrator(t, reg)

	matches := o.SearchAll(context.Background(), "Good", nil, identifyPrio())
	require.Len(t, matches, 1)
	assert.Equal(t, "Good", matches[0].Title)
}
