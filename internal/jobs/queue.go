package jobs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/google/uuid"
)

// Queue is the persistent priority job queue. Lower priority numbers are
// claimed first; ties break on insertion order. All state lives in the
// job_queue table so pending work survives a restart.
type Queue struct {
	db *sql.DB
}

func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// AddOptions tune a single enqueue.
type AddOptions struct {
	MaxRetries int
	Manual     bool
	DedupKey   string
}

const defaultMaxRetries = 3

// Add inserts a pending job and returns its ID.
func (q *Queue) Add(kind string, priority int, payload interface{}, opts *AddOptions) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal payload: %w", err)
	}

	maxRetries := defaultMaxRetries
	manual := false
	var dedupKey *string
	if opts != nil {
		if opts.MaxRetries > 0 {
			maxRetries = opts.MaxRetries
		}
		manual = opts.Manual
		if opts.DedupKey != "" {
			dedupKey = &opts.DedupKey
		}
	}

	id := uuid.New()
	if dedupKey != nil {
		// A job with the same dedup key that is still pending or running
		// makes this enqueue a no-op.
		query := `INSERT INTO job_queue (id, kind, priority, payload, status, retry_count, max_retries, manual, dedup_key)
			SELECT $1, $2, $3, $4, 'pending', 0, $5, $6, $7
			WHERE NOT EXISTS (SELECT 1 FROM job_queue WHERE dedup_key = $7)`
		res, err := q.db.Exec(query, id, kind, priority, data, maxRetries, manual, *dedupKey)
		if err != nil {
			return uuid.Nil, fmt.Errorf("enqueue %s: %w", kind, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			log.Printf("Queue: %s (%s) already queued, skipping", kind, *dedupKey)
			return uuid.Nil, nil
		}
		return id, nil
	}

	query := `INSERT INTO job_queue (id, kind, priority, payload, status, retry_count, max_retries, manual)
		VALUES ($1, $2, $3, $4, 'pending', 0, $5, $6)`
	if _, err := q.db.Exec(query, id, kind, priority, data, maxRetries, manual); err != nil {
		return uuid.Nil, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return id, nil
}

// PickNext atomically claims the oldest pending job at the lowest priority
// number and flips it to processing. Returns nil when the queue is empty.
func (q *Queue) PickNext() (*models.Job, error) {
	query := `UPDATE job_queue SET status = 'processing', started_at = CURRENT_TIMESTAMP
		WHERE id = (
			SELECT id FROM job_queue WHERE status = 'pending'
			ORDER BY priority ASC, created_at ASC
			LIMIT 1 FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, priority, payload, status, retry_count, max_retries, manual, dedup_key, created_at, started_at`

	job := &models.Job{}
	err := q.db.QueryRow(query).Scan(&job.ID, &job.Kind, &job.Priority, &job.Payload,
		&job.Status, &job.RetryCount, &job.MaxRetries, &job.Manual, &job.DedupKey,
		&job.CreatedAt, &job.StartedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// Complete removes a finished job from the queue.
func (q *Queue) Complete(id uuid.UUID) error {
	_, err := q.db.Exec(`DELETE FROM job_queue WHERE id = $1`, id)
	return err
}

// Fail handles a job error: while retries remain the job goes back to
// pending with the count bumped, otherwise it is removed as terminal.
func (q *Queue) Fail(id uuid.UUID, jobErr error) error {
	query := `UPDATE job_queue SET status = 'pending', retry_count = retry_count + 1, started_at = NULL
		WHERE id = $1 AND retry_count + 1 < max_retries`
	res, err := q.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Printf("Queue: job %s failed, will retry: %v", id, jobErr)
		return nil
	}

	log.Printf("Queue: job %s failed terminally: %v", id, jobErr)
	_, err = q.db.Exec(`DELETE FROM job_queue WHERE id = $1`, id)
	return err
}

// Release returns a claimed job to pending without spending a retry. Used
// when a handler was cancelled (shutdown) rather than having failed.
func (q *Queue) Release(id uuid.UUID) error {
	_, err := q.db.Exec(`UPDATE job_queue SET status = 'pending', started_at = NULL WHERE id = $1`, id)
	return err
}

// ResetStalled promotes every processing job back to pending. Called once
// on startup so work claimed by a crashed process is re-run.
func (q *Queue) ResetStalled() (int, error) {
	res, err := q.db.Exec(`UPDATE job_queue SET status = 'pending', started_at = NULL WHERE status = 'processing'`)
	if err != nil {
		return 0, fmt.Errorf("reset stalled jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Printf("Queue: reset %d stalled job(s) to pending", n)
	}
	return int(n), nil
}

// Stats reports queue depth for the status surface.
func (q *Queue) Stats() (*models.QueueStats, error) {
	stats := &models.QueueStats{}
	var oldest sql.NullTime

	query := `SELECT
		COUNT(*) FILTER (WHERE status = 'pending'),
		COUNT(*) FILTER (WHERE status = 'processing'),
		MIN(created_at) FILTER (WHERE status = 'pending')
		FROM job_queue`
	if err := q.db.QueryRow(query).Scan(&stats.Pending, &stats.Processing, &oldest); err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	if oldest.Valid {
		age := time.Since(oldest.Time)
		stats.OldestPendingAge = &age
	}
	return stats, nil
}

// PendingByKind counts pending jobs of one kind, for scheduler backpressure.
func (q *Queue) PendingByKind(kind string) (int, error) {
	var n int
	err := q.db.QueryRow(`SELECT COUNT(*) FROM job_queue WHERE status = 'pending' AND kind = $1`, kind).Scan(&n)
	return n, err
}
