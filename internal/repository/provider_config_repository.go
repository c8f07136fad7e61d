package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/google/uuid"
)

type ProviderConfigRepository struct {
	db *sql.DB
}

func NewProviderConfigRepository(db *sql.DB) *ProviderConfigRepository {
	return &ProviderConfigRepository{db: db}
}

const providerConfigColumns = `id, provider_name, enabled, api_key, personal_api_key,
	language, region, options, last_test_at, last_test_status`

func scanProviderConfig(row interface{ Scan(dest ...interface{}) error }) (*models.ProviderConfig, error) {
	c := &models.ProviderConfig{}
	err := row.Scan(
		&c.ID, &c.ProviderName, &c.Enabled, &c.APIKey, &c.PersonalAPIKey,
		&c.Language, &c.Region, &c.Options, &c.LastTestAt, &c.LastTestStatus,
	)
	return c, err
}

func (r *ProviderConfigRepository) GetByName(name string) (*models.ProviderConfig, error) {
	query := `SELECT ` + providerConfigColumns + ` FROM provider_configs WHERE provider_name = $1`
	c, err := scanProviderConfig(r.db.QueryRow(query, name))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("provider config not found")
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ProviderConfigRepository) List() ([]*models.ProviderConfig, error) {
	query := `SELECT ` + providerConfigColumns + ` FROM provider_configs ORDER BY provider_name`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := []*models.ProviderConfig{}
	for rows.Next() {
		c, err := scanProviderConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// Upsert writes a provider's config keyed on provider_name.
func (r *ProviderConfigRepository) Upsert(c *models.ProviderConfig) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.LastTestStatus == "" {
		c.LastTestStatus = models.TestNeverTested
	}
	query := `
		INSERT INTO provider_configs (id, provider_name, enabled, api_key, personal_api_key,
			language, region, options, last_test_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (provider_name) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			api_key = EXCLUDED.api_key,
			personal_api_key = EXCLUDED.personal_api_key,
			language = EXCLUDED.language,
			region = EXCLUDED.region,
			options = EXCLUDED.options
		RETURNING id`

	return r.db.QueryRow(query, c.ID, c.ProviderName, c.Enabled, c.APIKey, c.PersonalAPIKey,
		c.Language, c.Region, c.Options, c.LastTestStatus).Scan(&c.ID)
}

func (r *ProviderConfigRepository) RecordTest(name string, status models.TestStatus) error {
	_, err := r.db.Exec(
		`UPDATE provider_configs SET last_test_at = $1, last_test_status = $2 WHERE provider_name = $3`,
		time.Now(), status, name)
	return err
}
