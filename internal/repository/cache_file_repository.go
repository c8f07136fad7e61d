package repository

import (
	"database/sql"
	"strings"

	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/google/uuid"
)

// CacheFileRepository mirrors the content-addressed store in the catalog.
type CacheFileRepository struct {
	db *sql.DB
}

func NewCacheFileRepository(db *sql.DB) *CacheFileRepository {
	return &CacheFileRepository{db: db}
}

const cacheFileColumns = `id, content_hash, path, byte_size, kind, perceptual_hash,
	difference_hash, movie_id, asset_type, is_locked, created_at`

func scanCacheFile(row interface{ Scan(dest ...interface{}) error }) (*models.CacheFile, error) {
	f := &models.CacheFile{}
	err := row.Scan(
		&f.ID, &f.ContentHash, &f.Path, &f.ByteSize, &f.Kind, &f.PerceptualHash,
		&f.DifferenceHash, &f.MovieID, &f.AssetType, &f.IsLocked, &f.CreatedAt,
	)
	return f, err
}

// Upsert records a cache file; re-putting the same content is a no-op
// aside from refreshing the entity link.
func (r *CacheFileRepository) Upsert(f *models.CacheFile) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	query := `
		INSERT INTO cache_files (id, content_hash, path, byte_size, kind,
			perceptual_hash, difference_hash, movie_id, asset_type, is_locked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (content_hash) DO UPDATE SET
			movie_id = COALESCE(EXCLUDED.movie_id, cache_files.movie_id),
			asset_type = COALESCE(EXCLUDED.asset_type, cache_files.asset_type)
		RETURNING id, created_at`

	return r.db.QueryRow(query, f.ID, f.ContentHash, f.Path, f.ByteSize, f.Kind,
		f.PerceptualHash, f.DifferenceHash, f.MovieID, f.AssetType, f.IsLocked).
		Scan(&f.ID, &f.CreatedAt)
}

func (r *CacheFileRepository) GetByHash(hash string) (*models.CacheFile, error) {
	query := `SELECT ` + cacheFileColumns + ` FROM cache_files WHERE content_hash = $1`
	f, err := scanCacheFile(r.db.QueryRow(query, hash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *CacheFileRepository) ListByMovie(movieID uuid.UUID) ([]*models.CacheFile, error) {
	query := `SELECT ` + cacheFileColumns + ` FROM cache_files WHERE movie_id = $1`
	return r.list(query, movieID)
}

// ListOrphans returns unlocked cache files with no library file record
// pointing at them, for the GC sweep.
func (r *CacheFileRepository) ListOrphans() ([]*models.CacheFile, error) {
	query := `SELECT ` + prefixColumns("cf.", cacheFileColumns) + ` FROM cache_files cf
		LEFT JOIN library_files lf ON lf.cache_file_id = cf.id
		WHERE lf.id IS NULL AND cf.is_locked = false
		AND (cf.movie_id IS NULL OR EXISTS (
			SELECT 1 FROM movies m WHERE m.id = cf.movie_id AND m.deleted_at IS NOT NULL))`
	return r.list(query)
}

func (r *CacheFileRepository) list(query string, args ...interface{}) ([]*models.CacheFile, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []*models.CacheFile{}
	for rows.Next() {
		f, err := scanCacheFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (r *CacheFileRepository) SetLocked(hash string, locked bool) error {
	_, err := r.db.Exec(`UPDATE cache_files SET is_locked = $1 WHERE content_hash = $2`, locked, hash)
	return err
}

func (r *CacheFileRepository) DeleteByHash(hash string) error {
	_, err := r.db.Exec(`DELETE FROM cache_files WHERE content_hash = $1`, hash)
	return err
}

// prefixColumns rewrites a comma-separated column list with a table alias.
func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
