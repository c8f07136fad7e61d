package repository

import (
	"database/sql"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/google/uuid"
)

type SchedulerConfigRepository struct {
	db *sql.DB
}

func NewSchedulerConfigRepository(db *sql.DB) *SchedulerConfigRepository {
	return &SchedulerConfigRepository{db: db}
}

const schedulerConfigColumns = `id, library_id, file_scanner_enabled, file_scanner_interval_hours,
	provider_updater_enabled, provider_updater_interval_hours, last_file_scan_at, last_provider_update_at`

func scanSchedulerConfig(row interface{ Scan(dest ...interface{}) error }) (*models.SchedulerConfig, error) {
	c := &models.SchedulerConfig{}
	err := row.Scan(
		&c.ID, &c.LibraryID, &c.FileScannerEnabled, &c.FileScannerIntervalHours,
		&c.ProviderUpdaterEnabled, &c.ProviderUpdaterIntervalHours,
		&c.LastFileScanAt, &c.LastProviderUpdateAt,
	)
	return c, err
}

// GetByLibrary returns the library's scheduler config, creating the
// default row on first access.
func (r *SchedulerConfigRepository) GetByLibrary(libraryID uuid.UUID) (*models.SchedulerConfig, error) {
	query := `SELECT ` + schedulerConfigColumns + ` FROM scheduler_configs WHERE library_id = $1`
	c, err := scanSchedulerConfig(r.db.QueryRow(query, libraryID))
	if err == sql.ErrNoRows {
		c = &models.SchedulerConfig{
			ID:                           uuid.New(),
			LibraryID:                    libraryID,
			FileScannerEnabled:           true,
			FileScannerIntervalHours:     12,
			ProviderUpdaterEnabled:       true,
			ProviderUpdaterIntervalHours: 168,
		}
		if err := r.Upsert(c); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *SchedulerConfigRepository) List() ([]*models.SchedulerConfig, error) {
	query := `SELECT ` + schedulerConfigColumns + ` FROM scheduler_configs`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := []*models.SchedulerConfig{}
	for rows.Next() {
		c, err := scanSchedulerConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

func (r *SchedulerConfigRepository) Upsert(c *models.SchedulerConfig) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	query := `
		INSERT INTO scheduler_configs (id, library_id, file_scanner_enabled,
			file_scanner_interval_hours, provider_updater_enabled, provider_updater_interval_hours)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (library_id) DO UPDATE SET
			file_scanner_enabled = EXCLUDED.file_scanner_enabled,
			file_scanner_interval_hours = EXCLUDED.file_scanner_interval_hours,
			provider_updater_enabled = EXCLUDED.provider_updater_enabled,
			provider_updater_interval_hours = EXCLUDED.provider_updater_interval_hours
		RETURNING id`

	return r.db.QueryRow(query, c.ID, c.LibraryID, c.FileScannerEnabled,
		c.FileScannerIntervalHours, c.ProviderUpdaterEnabled, c.ProviderUpdaterIntervalHours).
		Scan(&c.ID)
}

func (r *SchedulerConfigRepository) MarkFileScan(libraryID uuid.UUID) error {
	_, err := r.db.Exec(
		`UPDATE scheduler_configs SET last_file_scan_at = $1 WHERE library_id = $2`,
		time.Now(), libraryID)
	return err
}

func (r *SchedulerConfigRepository) MarkProviderUpdate(libraryID uuid.UUID) error {
	_, err := r.db.Exec(
		`UPDATE scheduler_configs SET last_provider_update_at = $1 WHERE library_id = $2`,
		time.Now(), libraryID)
	return err
}
