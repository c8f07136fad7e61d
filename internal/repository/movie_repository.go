package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type MovieRepository struct {
	db *sql.DB
}

func NewMovieRepository(db *sql.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

const movieColumns = `id, library_id, file_path, file_name, file_size, title, sort_title,
	original_title, plot, tagline, year, release_date, runtime_minutes, rating, votes,
	content_rating, genres, studios, trailer_url, tmdb_id, imdb_id, tvdb_id, status,
	monitored, locked_fields, enriched_at, last_published_at, published_nfo_hash,
	deleted_at, created_at, updated_at`

func scanMovie(row interface{ Scan(dest ...interface{}) error }) (*models.Movie, error) {
	m := &models.Movie{}
	err := row.Scan(
		&m.ID, &m.LibraryID, &m.FilePath, &m.FileName, &m.FileSize, &m.Title, &m.SortTitle,
		&m.OriginalTitle, &m.Plot, &m.Tagline, &m.Year, &m.ReleaseDate, &m.RuntimeMinutes,
		&m.Rating, &m.Votes, &m.ContentRating, &m.Genres, &m.Studios, &m.TrailerURL,
		&m.TMDBID, &m.IMDBID, &m.TVDBID, &m.Status, &m.Monitored, &m.LockedFields,
		&m.EnrichedAt, &m.LastPublishedAt, &m.PublishedNFOHash,
		&m.DeletedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

func (r *MovieRepository) Create(movie *models.Movie) error {
	query := `
		INSERT INTO movies (id, library_id, file_path, file_name, file_size, title, sort_title,
			year, tmdb_id, imdb_id, tvdb_id, status, monitored, genres, studios, locked_fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at`

	if movie.Genres == nil {
		movie.Genres = pq.StringArray{}
	}
	if movie.Studios == nil {
		movie.Studios = pq.StringArray{}
	}
	if movie.LockedFields == nil {
		movie.LockedFields = pq.StringArray{}
	}

	return r.db.QueryRow(query, movie.ID, movie.LibraryID, movie.FilePath, movie.FileName,
		movie.FileSize, movie.Title, movie.SortTitle, movie.Year,
		movie.TMDBID, movie.IMDBID, movie.TVDBID,
		movie.Status, movie.Monitored, movie.Genres, movie.Studios, movie.LockedFields).
		Scan(&movie.CreatedAt, &movie.UpdatedAt)
}

func (r *MovieRepository) GetByID(id uuid.UUID) (*models.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE id = $1`
	m, err := scanMovie(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("movie not found")
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetByPath looks a movie up by its identity (library_id, file_path).
func (r *MovieRepository) GetByPath(libraryID uuid.UUID, filePath string) (*models.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE library_id = $1 AND file_path = $2`
	m, err := scanMovie(r.db.QueryRow(query, libraryID, filePath))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MovieRepository) ListByLibrary(libraryID uuid.UUID) ([]*models.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies
		WHERE library_id = $1 AND deleted_at IS NULL ORDER BY sort_title NULLS LAST, title`
	return r.list(query, libraryID)
}

// ListByStatus returns non-deleted movies in one enrichment state,
// oldest first so backlogs drain fairly.
func (r *MovieRepository) ListByStatus(libraryID uuid.UUID, status models.EnrichmentStatus, limit int) ([]*models.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies
		WHERE library_id = $1 AND status = $2 AND deleted_at IS NULL
		ORDER BY updated_at ASC LIMIT $3`
	return r.list(query, libraryID, status, limit)
}

func (r *MovieRepository) list(query string, args ...interface{}) ([]*models.Movie, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movies := []*models.Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

// UpdateMetadata writes the enrichment result. Caller is responsible for
// honoring locked fields before calling.
func (r *MovieRepository) UpdateMetadata(movie *models.Movie) error {
	query := `
		UPDATE movies
		SET title = $1, sort_title = $2, original_title = $3, plot = $4, tagline = $5,
		    year = $6, release_date = $7, runtime_minutes = $8, rating = $9, votes = $10,
		    content_rating = $11, genres = $12, studios = $13, trailer_url = $14,
		    tmdb_id = $15, imdb_id = $16, tvdb_id = $17,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $18`

	result, err := r.db.Exec(query, movie.Title, movie.SortTitle, movie.OriginalTitle,
		movie.Plot, movie.Tagline, movie.Year, movie.ReleaseDate, movie.RuntimeMinutes,
		movie.Rating, movie.Votes, movie.ContentRating, movie.Genres, movie.Studios,
		movie.TrailerURL, movie.TMDBID, movie.IMDBID, movie.TVDBID, movie.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("movie not found")
	}
	return nil
}

func (r *MovieRepository) UpdateStatus(id uuid.UUID, status models.EnrichmentStatus) error {
	query := `UPDATE movies SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	if status == models.StatusEnriched {
		query = `UPDATE movies SET status = $1, enriched_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	}
	_, err := r.db.Exec(query, status, id)
	return err
}

func (r *MovieRepository) UpdateExternalIDs(id uuid.UUID, tmdbID, imdbID, tvdbID *string) error {
	query := `UPDATE movies SET
		tmdb_id = COALESCE($1, tmdb_id),
		imdb_id = COALESCE($2, imdb_id),
		tvdb_id = COALESCE($3, tvdb_id),
		updated_at = CURRENT_TIMESTAMP
		WHERE id = $4`
	_, err := r.db.Exec(query, tmdbID, imdbID, tvdbID, id)
	return err
}

func (r *MovieRepository) SetMonitored(id uuid.UUID, monitored bool) error {
	_, err := r.db.Exec(`UPDATE movies SET monitored = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		monitored, id)
	return err
}

func (r *MovieRepository) SetLockedFields(id uuid.UUID, fields []string) error {
	_, err := r.db.Exec(`UPDATE movies SET locked_fields = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		pq.StringArray(fields), id)
	return err
}

// MarkPublished records the publish watermark used for idempotence checks.
func (r *MovieRepository) MarkPublished(id uuid.UUID, nfoHash string) error {
	_, err := r.db.Exec(`UPDATE movies SET last_published_at = CURRENT_TIMESTAMP,
		published_nfo_hash = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		nfoHash, id)
	return err
}

// SoftDelete stamps deleted_at; the garbage collector purges after the
// retention window.
func (r *MovieRepository) SoftDelete(id uuid.UUID) error {
	_, err := r.db.Exec(`UPDATE movies SET deleted_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	return err
}

// Restore clears a soft delete while the row still exists.
func (r *MovieRepository) Restore(id uuid.UUID) error {
	result, err := r.db.Exec(`UPDATE movies SET deleted_at = NULL WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("movie not found")
	}
	return nil
}

// ListDeletedBefore returns soft-deleted movies whose window has expired.
func (r *MovieRepository) ListDeletedBefore(cutoff time.Time) ([]*models.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE deleted_at IS NOT NULL AND deleted_at < $1`
	return r.list(query, cutoff)
}

// Purge removes the row permanently. Owned candidates and file records
// cascade at the schema level.
func (r *MovieRepository) Purge(id uuid.UUID) error {
	_, err := r.db.Exec(`DELETE FROM movies WHERE id = $1`, id)
	return err
}

// SoftDeleteMissing flags movies in a library whose file path is not in
// the surviving set, and returns how many were flagged.
func (r *MovieRepository) SoftDeleteMissing(libraryID uuid.UUID, presentPaths []string) (int, error) {
	query := `UPDATE movies SET deleted_at = CURRENT_TIMESTAMP
		WHERE library_id = $1 AND deleted_at IS NULL AND NOT (file_path = ANY($2))`
	result, err := r.db.Exec(query, libraryID, pq.Array(presentPaths))
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// ──── Actors ────

func (r *MovieRepository) ReplaceActors(movieID uuid.UUID, actors []*models.Actor) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM actors WHERE movie_id = $1`, movieID); err != nil {
		return err
	}

	for i, a := range actors {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if _, err := tx.Exec(
			`INSERT INTO actors (id, movie_id, name, role, thumb_url, thumb_cache_hash, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			a.ID, movieID, a.Name, a.Role, a.ThumbURL, a.ThumbCacheHash, i,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *MovieRepository) GetActors(movieID uuid.UUID) ([]*models.Actor, error) {
	query := `SELECT id, movie_id, name, role, thumb_url, thumb_cache_hash, sort_order
		FROM actors WHERE movie_id = $1 ORDER BY sort_order`
	rows, err := r.db.Query(query, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actors []*models.Actor
	for rows.Next() {
		a := &models.Actor{}
		if err := rows.Scan(&a.ID, &a.MovieID, &a.Name, &a.Role, &a.ThumbURL,
			&a.ThumbCacheHash, &a.SortOrder); err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

func (r *MovieRepository) SetActorThumb(actorID uuid.UUID, cacheHash string) error {
	_, err := r.db.Exec(`UPDATE actors SET thumb_cache_hash = $1 WHERE id = $2`, cacheHash, actorID)
	return err
}
