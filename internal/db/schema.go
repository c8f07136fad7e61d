package db

import (
	"fmt"
	"log"
)

// migration is one ordered schema step. Steps run inside a transaction and
// are recorded in schema_migrations so reruns are no-ops.
type migration struct {
	version int
	name    string
	up      []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "core tables",
		up: []string{
			`CREATE TABLE IF NOT EXISTS libraries (
				id UUID PRIMARY KEY,
				name TEXT NOT NULL,
				media_type TEXT NOT NULL,
				path TEXT NOT NULL,
				is_enabled BOOLEAN NOT NULL DEFAULT true,
				auto_enrich BOOLEAN NOT NULL DEFAULT false,
				auto_publish BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS movies (
				id UUID PRIMARY KEY,
				library_id UUID NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
				file_path TEXT NOT NULL,
				file_name TEXT NOT NULL,
				file_size BIGINT NOT NULL DEFAULT 0,
				title TEXT NOT NULL,
				sort_title TEXT,
				original_title TEXT,
				plot TEXT,
				tagline TEXT,
				year INTEGER,
				release_date TEXT,
				runtime_minutes INTEGER,
				rating DOUBLE PRECISION,
				votes INTEGER,
				content_rating TEXT,
				genres TEXT[] NOT NULL DEFAULT '{}',
				studios TEXT[] NOT NULL DEFAULT '{}',
				trailer_url TEXT,
				tmdb_id TEXT,
				imdb_id TEXT,
				tvdb_id TEXT,
				status TEXT NOT NULL DEFAULT 'unidentified',
				monitored BOOLEAN NOT NULL DEFAULT true,
				locked_fields TEXT[] NOT NULL DEFAULT '{}',
				enriched_at TIMESTAMPTZ,
				last_published_at TIMESTAMPTZ,
				published_nfo_hash TEXT,
				deleted_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (library_id, file_path)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_movies_status ON movies(library_id, status) WHERE deleted_at IS NULL`,
			`CREATE INDEX IF NOT EXISTS idx_movies_deleted ON movies(deleted_at) WHERE deleted_at IS NOT NULL`,
			`CREATE TABLE IF NOT EXISTS actors (
				id UUID PRIMARY KEY,
				movie_id UUID NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				role TEXT,
				thumb_url TEXT,
				thumb_cache_hash TEXT,
				sort_order INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_actors_movie ON actors(movie_id)`,
		},
	},
	{
		version: 2,
		name:    "asset candidates and file records",
		up: []string{
			`CREATE TABLE IF NOT EXISTS asset_candidates (
				id UUID PRIMARY KEY,
				movie_id UUID NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
				asset_type TEXT NOT NULL,
				provider TEXT NOT NULL,
				source_url TEXT NOT NULL,
				content_hash TEXT,
				width INTEGER,
				height INTEGER,
				byte_size BIGINT,
				language TEXT,
				votes INTEGER,
				quality_hint TEXT,
				perceptual_hash TEXT,
				difference_hash TEXT,
				is_selected BOOLEAN NOT NULL DEFAULT false,
				selection_reason TEXT,
				score DOUBLE PRECISION,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (movie_id, asset_type, provider, source_url)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_asset_candidates_selected ON asset_candidates(movie_id, asset_type) WHERE is_selected`,
			`CREATE TABLE IF NOT EXISTS cache_files (
				id UUID PRIMARY KEY,
				content_hash TEXT NOT NULL UNIQUE,
				path TEXT NOT NULL,
				byte_size BIGINT NOT NULL,
				kind TEXT NOT NULL,
				perceptual_hash TEXT,
				difference_hash TEXT,
				movie_id UUID REFERENCES movies(id) ON DELETE SET NULL,
				asset_type TEXT,
				is_locked BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS library_files (
				id UUID PRIMARY KEY,
				movie_id UUID NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
				cache_file_id UUID NOT NULL REFERENCES cache_files(id) ON DELETE CASCADE,
				asset_type TEXT NOT NULL,
				path TEXT NOT NULL,
				kind TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_library_files_movie ON library_files(movie_id)`,
			`CREATE INDEX IF NOT EXISTS idx_library_files_cache ON library_files(cache_file_id)`,
		},
	},
	{
		version: 3,
		name:    "job queue",
		up: []string{
			`CREATE TABLE IF NOT EXISTS job_queue (
				id UUID PRIMARY KEY,
				kind TEXT NOT NULL,
				priority INTEGER NOT NULL,
				payload JSONB NOT NULL DEFAULT '{}',
				status TEXT NOT NULL DEFAULT 'pending',
				retry_count INTEGER NOT NULL DEFAULT 0,
				max_retries INTEGER NOT NULL DEFAULT 3,
				manual BOOLEAN NOT NULL DEFAULT false,
				dedup_key TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				started_at TIMESTAMPTZ
			)`,
			`CREATE INDEX IF NOT EXISTS idx_job_queue_claim ON job_queue(priority, created_at) WHERE status = 'pending'`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_job_queue_dedup ON job_queue(dedup_key) WHERE dedup_key IS NOT NULL`,
		},
	},
	{
		version: 4,
		name:    "provider and scheduler config",
		up: []string{
			`CREATE TABLE IF NOT EXISTS provider_configs (
				id UUID PRIMARY KEY,
				provider_name TEXT NOT NULL UNIQUE,
				enabled BOOLEAN NOT NULL DEFAULT false,
				api_key TEXT,
				personal_api_key TEXT,
				language TEXT NOT NULL DEFAULT 'en',
				region TEXT NOT NULL DEFAULT 'US',
				options TEXT,
				last_test_at TIMESTAMPTZ,
				last_test_status TEXT NOT NULL DEFAULT 'never_tested'
			)`,
			`CREATE TABLE IF NOT EXISTS scheduler_configs (
				id UUID PRIMARY KEY,
				library_id UUID NOT NULL UNIQUE REFERENCES libraries(id) ON DELETE CASCADE,
				file_scanner_enabled BOOLEAN NOT NULL DEFAULT true,
				file_scanner_interval_hours INTEGER NOT NULL DEFAULT 12,
				provider_updater_enabled BOOLEAN NOT NULL DEFAULT true,
				provider_updater_interval_hours INTEGER NOT NULL DEFAULT 168,
				last_file_scan_at TIMESTAMPTZ,
				last_provider_update_at TIMESTAMPTZ
			)`,
			`CREATE TABLE IF NOT EXISTS auto_selection_strategy (
				id UUID PRIMARY KEY,
				asset_type TEXT NOT NULL UNIQUE,
				preferred_language TEXT NOT NULL DEFAULT 'en',
				provider_priority TEXT[] NOT NULL DEFAULT '{}',
				preset TEXT NOT NULL DEFAULT 'quality_first'
			)`,
		},
	},
	{
		version: 5,
		name:    "activity log",
		up: []string{
			`CREATE TABLE IF NOT EXISTS activity_log (
				id UUID PRIMARY KEY,
				category TEXT NOT NULL,
				message TEXT NOT NULL,
				movie_id UUID REFERENCES movies(id) ON DELETE SET NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_activity_log_created ON activity_log(created_at DESC)`,
			`CREATE TABLE IF NOT EXISTS settings (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
		},
	},
}

// Migrate brings the schema up to the current version.
func (db *DB) Migrate() error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := db.apply(m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		log.Printf("DB: applied migration %d (%s)", m.version, m.name)
	}
	return nil
}

func (db *DB) apply(m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.up {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name); err != nil {
		return err
	}
	return tx.Commit()
}
