package repository

import (
	"database/sql"

	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/google/uuid"
)

// LibraryFileRepository tracks what is currently published into the
// library directory. Rows are rebuilt wholesale per movie on every
// publish so stale records cannot accumulate.
type LibraryFileRepository struct {
	db *sql.DB
}

func NewLibraryFileRepository(db *sql.DB) *LibraryFileRepository {
	return &LibraryFileRepository{db: db}
}

const libraryFileColumns = `id, movie_id, cache_file_id, asset_type, path, kind, created_at`

func (r *LibraryFileRepository) ListByMovie(movieID uuid.UUID) ([]*models.LibraryFile, error) {
	query := `SELECT ` + libraryFileColumns + ` FROM library_files WHERE movie_id = $1 ORDER BY asset_type`
	rows, err := r.db.Query(query, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []*models.LibraryFile{}
	for rows.Next() {
		f := &models.LibraryFile{}
		if err := rows.Scan(&f.ID, &f.MovieID, &f.CacheFileID, &f.AssetType,
			&f.Path, &f.Kind, &f.CreatedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Replace swaps the movie's file records for the given set atomically.
func (r *LibraryFileRepository) Replace(movieID uuid.UUID, files []*models.LibraryFile) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM library_files WHERE movie_id = $1`, movieID); err != nil {
		return err
	}

	for _, f := range files {
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		if _, err := tx.Exec(
			`INSERT INTO library_files (id, movie_id, cache_file_id, asset_type, path, kind)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			f.ID, movieID, f.CacheFileID, f.AssetType, f.Path, f.Kind,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *LibraryFileRepository) DeleteByMovie(movieID uuid.UUID) error {
	_, err := r.db.Exec(`DELETE FROM library_files WHERE movie_id = $1`, movieID)
	return err
}
