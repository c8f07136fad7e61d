package repository

import (
	"database/sql"

	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/google/uuid"
)

// ActivityRepository is the audit trail: enrichment outcomes, publish
// actions, and terminal job failures land here, not in the queue.
type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Log(category, message string, movieID *uuid.UUID) error {
	_, err := r.db.Exec(
		`INSERT INTO activity_log (id, category, message, movie_id) VALUES ($1, $2, $3, $4)`,
		uuid.New(), category, message, movieID)
	return err
}

func (r *ActivityRepository) ListRecent(limit int) ([]*models.ActivityLog, error) {
	query := `SELECT id, category, message, movie_id, created_at
		FROM activity_log ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*models.ActivityLog{}
	for rows.Next() {
		e := &models.ActivityLog{}
		if err := rows.Scan(&e.ID, &e.Category, &e.Message, &e.MovieID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *ActivityRepository) DeleteOlderThan(days int) (int, error) {
	result, err := r.db.Exec(
		`DELETE FROM activity_log WHERE created_at < CURRENT_TIMESTAMP - ($1 || ' days')::interval`, days)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}
