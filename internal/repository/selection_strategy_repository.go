package repository

import (
	"database/sql"

	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type SelectionStrategyRepository struct {
	db *sql.DB
}

func NewSelectionStrategyRepository(db *sql.DB) *SelectionStrategyRepository {
	return &SelectionStrategyRepository{db: db}
}

// GetByAssetType returns the strategy for one asset type, or nil when the
// operator never configured one (callers fall back to defaults).
func (r *SelectionStrategyRepository) GetByAssetType(assetType models.AssetType) (*models.SelectionStrategy, error) {
	query := `SELECT id, asset_type, preferred_language, provider_priority, preset
		FROM auto_selection_strategy WHERE asset_type = $1`
	s := &models.SelectionStrategy{}
	err := r.db.QueryRow(query, assetType).Scan(
		&s.ID, &s.AssetType, &s.PreferredLanguage, &s.ProviderPriority, &s.Preset)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SelectionStrategyRepository) List() ([]*models.SelectionStrategy, error) {
	query := `SELECT id, asset_type, preferred_language, provider_priority, preset
		FROM auto_selection_strategy ORDER BY asset_type`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	strategies := []*models.SelectionStrategy{}
	for rows.Next() {
		s := &models.SelectionStrategy{}
		if err := rows.Scan(&s.ID, &s.AssetType, &s.PreferredLanguage,
			&s.ProviderPriority, &s.Preset); err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return strategies, rows.Err()
}

func (r *SelectionStrategyRepository) Upsert(s *models.SelectionStrategy) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.ProviderPriority == nil {
		s.ProviderPriority = pq.StringArray{}
	}
	query := `
		INSERT INTO auto_selection_strategy (id, asset_type, preferred_language, provider_priority, preset)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (asset_type) DO UPDATE SET
			preferred_language = EXCLUDED.preferred_language,
			provider_priority = EXCLUDED.provider_priority,
			preset = EXCLUDED.preset
		RETURNING id`

	return r.db.QueryRow(query, s.ID, s.AssetType, s.PreferredLanguage,
		s.ProviderPriority, s.Preset).Scan(&s.ID)
}
