package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/google/uuid"
)

type AssetRepository struct {
	db *sql.DB
}

func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

const assetColumns = `id, movie_id, asset_type, provider, source_url, content_hash,
	width, height, byte_size, language, votes, quality_hint, perceptual_hash,
	difference_hash, is_selected, selection_reason, score, created_at, updated_at`

func scanAsset(row interface{ Scan(dest ...interface{}) error }) (*models.AssetCandidate, error) {
	a := &models.AssetCandidate{}
	err := row.Scan(
		&a.ID, &a.MovieID, &a.AssetType, &a.Provider, &a.SourceURL, &a.ContentHash,
		&a.Width, &a.Height, &a.ByteSize, &a.Language, &a.Votes, &a.QualityHint,
		&a.PerceptualHash, &a.DifferenceHash, &a.IsSelected, &a.SelectionReason,
		&a.Score, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// Upsert inserts the candidate or refreshes a previous one from the same
// provider for the same (movie, asset type, source URL).
func (r *AssetRepository) Upsert(a *models.AssetCandidate) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := `
		INSERT INTO asset_candidates (id, movie_id, asset_type, provider, source_url,
			content_hash, width, height, byte_size, language, votes, quality_hint,
			perceptual_hash, difference_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (movie_id, asset_type, provider, source_url) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			byte_size = EXCLUDED.byte_size,
			language = EXCLUDED.language,
			votes = EXCLUDED.votes,
			quality_hint = EXCLUDED.quality_hint,
			perceptual_hash = EXCLUDED.perceptual_hash,
			difference_hash = EXCLUDED.difference_hash,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at`

	return r.db.QueryRow(query, a.ID, a.MovieID, a.AssetType, a.Provider, a.SourceURL,
		a.ContentHash, a.Width, a.Height, a.ByteSize, a.Language, a.Votes, a.QualityHint,
		a.PerceptualHash, a.DifferenceHash).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *AssetRepository) GetByID(id uuid.UUID) (*models.AssetCandidate, error) {
	query := `SELECT ` + assetColumns + ` FROM asset_candidates WHERE id = $1`
	a, err := scanAsset(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("asset candidate not found")
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AssetRepository) ListByMovie(movieID uuid.UUID) ([]*models.AssetCandidate, error) {
	query := `SELECT ` + assetColumns + ` FROM asset_candidates
		WHERE movie_id = $1 ORDER BY asset_type, created_at`
	return r.list(query, movieID)
}

func (r *AssetRepository) ListByMovieAndType(movieID uuid.UUID, assetType models.AssetType) ([]*models.AssetCandidate, error) {
	query := `SELECT ` + assetColumns + ` FROM asset_candidates
		WHERE movie_id = $1 AND asset_type = $2 ORDER BY created_at`
	return r.list(query, movieID, assetType)
}

// ListSelected returns the winning candidate per asset type for a movie.
func (r *AssetRepository) ListSelected(movieID uuid.UUID) ([]*models.AssetCandidate, error) {
	query := `SELECT ` + assetColumns + ` FROM asset_candidates
		WHERE movie_id = $1 AND is_selected = true ORDER BY asset_type`
	return r.list(query, movieID)
}

func (r *AssetRepository) list(query string, args ...interface{}) ([]*models.AssetCandidate, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := []*models.AssetCandidate{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// UpdateAnalysis stores the post-download measurements.
func (r *AssetRepository) UpdateAnalysis(a *models.AssetCandidate) error {
	query := `UPDATE asset_candidates SET content_hash = $1, width = $2, height = $3,
		byte_size = $4, perceptual_hash = $5, difference_hash = $6,
		updated_at = CURRENT_TIMESTAMP WHERE id = $7`
	_, err := r.db.Exec(query, a.ContentHash, a.Width, a.Height, a.ByteSize,
		a.PerceptualHash, a.DifferenceHash, a.ID)
	return err
}

// MarkSelected flips the winner for one asset type, clearing any previous
// selection, in a single transaction.
func (r *AssetRepository) MarkSelected(movieID uuid.UUID, assetType models.AssetType, winnerID uuid.UUID, reason string, score float64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE asset_candidates SET is_selected = false, selection_reason = NULL, score = NULL
		WHERE movie_id = $1 AND asset_type = $2 AND is_selected = true`,
		movieID, assetType); err != nil {
		return err
	}

	result, err := tx.Exec(
		`UPDATE asset_candidates SET is_selected = true, selection_reason = $1, score = $2,
		updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
		reason, score, winnerID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("asset candidate not found")
	}

	return tx.Commit()
}

// DeleteUnselectedBefore prunes losing candidates older than the cutoff;
// the next enrichment pass recreates whatever is still offered.
func (r *AssetRepository) DeleteUnselectedBefore(cutoff time.Time) (int, error) {
	result, err := r.db.Exec(
		`DELETE FROM asset_candidates WHERE is_selected = false AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func (r *AssetRepository) DeleteByMovie(movieID uuid.UUID) error {
	_, err := r.db.Exec(`DELETE FROM asset_candidates WHERE movie_id = $1`, movieID)
	return err
}
