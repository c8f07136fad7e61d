package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ──────────────────── Enums ────────────────────

type MediaType string

const (
	MediaTypeMovies MediaType = "movies"
	MediaTypeTV     MediaType = "tv"
	MediaTypeMusic  MediaType = "music"
)

// EnrichmentStatus tracks how far a movie has progressed through the pipeline.
type EnrichmentStatus string

const (
	StatusUnidentified EnrichmentStatus = "unidentified"
	StatusIdentified   EnrichmentStatus = "identified"
	StatusEnriching    EnrichmentStatus = "enriching"
	StatusEnriched     EnrichmentStatus = "enriched"
)

// AssetType is the closed set of artwork/trailer slots.
type AssetType string

const (
	AssetPoster       AssetType = "poster"
	AssetFanart       AssetType = "fanart"
	AssetBanner       AssetType = "banner"
	AssetClearLogo    AssetType = "clearlogo"
	AssetClearArt     AssetType = "clearart"
	AssetDiscArt      AssetType = "discart"
	AssetLandscape    AssetType = "landscape"
	AssetThumb        AssetType = "thumb"
	AssetCharacterArt AssetType = "characterart"
	AssetKeyArt       AssetType = "keyart"
	AssetTrailer      AssetType = "trailer"

	// AssetNFO is the published metadata file. It is never fetched from a
	// provider, so it stays out of AllAssetTypes.
	AssetNFO AssetType = "nfo"
)

// AllAssetTypes lists every slot in a stable order.
var AllAssetTypes = []AssetType{
	AssetPoster, AssetFanart, AssetBanner, AssetClearLogo, AssetClearArt,
	AssetDiscArt, AssetLandscape, AssetThumb, AssetCharacterArt, AssetKeyArt,
	AssetTrailer,
}

// MediaKind classifies a cache file's contents.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
	KindText  MediaKind = "text"
)

// ──────────────────── Library ────────────────────

type Library struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	MediaType   MediaType `json:"media_type" db:"media_type"`
	Path        string    `json:"path" db:"path"`
	IsEnabled   bool      `json:"is_enabled" db:"is_enabled"`
	AutoEnrich  bool      `json:"auto_enrich" db:"auto_enrich"`
	AutoPublish bool      `json:"auto_publish" db:"auto_publish"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ──────────────────── Movie ────────────────────

// Movie is the concrete entity variant. Identity is (library_id, file_path).
type Movie struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	LibraryID      uuid.UUID        `json:"library_id" db:"library_id"`
	FilePath       string           `json:"file_path" db:"file_path"`
	FileName       string           `json:"file_name" db:"file_name"`
	FileSize       int64            `json:"file_size" db:"file_size"`
	Title          string           `json:"title" db:"title"`
	SortTitle      *string          `json:"sort_title,omitempty" db:"sort_title"`
	OriginalTitle  *string          `json:"original_title,omitempty" db:"original_title"`
	Plot           *string          `json:"plot,omitempty" db:"plot"`
	Tagline        *string          `json:"tagline,omitempty" db:"tagline"`
	Year           *int             `json:"year,omitempty" db:"year"`
	ReleaseDate    *string          `json:"release_date,omitempty" db:"release_date"`
	RuntimeMinutes *int             `json:"runtime_minutes,omitempty" db:"runtime_minutes"`
	Rating         *float64         `json:"rating,omitempty" db:"rating"`
	Votes          *int             `json:"votes,omitempty" db:"votes"`
	ContentRating  *string          `json:"content_rating,omitempty" db:"content_rating"`
	Genres         pq.StringArray   `json:"genres" db:"genres"`
	Studios        pq.StringArray   `json:"studios" db:"studios"`
	TrailerURL     *string          `json:"trailer_url,omitempty" db:"trailer_url"`
	TMDBID         *string          `json:"tmdb_id,omitempty" db:"tmdb_id"`
	IMDBID         *string          `json:"imdb_id,omitempty" db:"imdb_id"`
	TVDBID         *string          `json:"tvdb_id,omitempty" db:"tvdb_id"`
	Status         EnrichmentStatus `json:"status" db:"status"`
	Monitored      bool             `json:"monitored" db:"monitored"`
	LockedFields   pq.StringArray   `json:"locked_fields" db:"locked_fields"`
	EnrichedAt     *time.Time       `json:"enriched_at,omitempty" db:"enriched_at"`
	LastPublishedAt  *time.Time `json:"last_published_at,omitempty" db:"last_published_at"`
	PublishedNFOHash *string    `json:"published_nfo_hash,omitempty" db:"published_nfo_hash"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// IsFieldLocked returns true if the given field name is user-pinned.
// A special value "*" means all fields are locked.
func (m *Movie) IsFieldLocked(field string) bool {
	for _, f := range m.LockedFields {
		if f == "*" || f == field {
			return true
		}
	}
	return false
}

// ExternalID returns the movie's ID for the given key ("tmdb", "imdb", "tvdb"),
// or empty string when not set.
func (m *Movie) ExternalID(key string) string {
	var v *string
	switch key {
	case "tmdb":
		v = m.TMDBID
	case "imdb":
		v = m.IMDBID
	case "tvdb":
		v = m.TVDBID
	}
	if v == nil {
		return ""
	}
	return *v
}

// Actor is a cast member attached to a movie.
type Actor struct {
	ID             uuid.UUID `json:"id" db:"id"`
	MovieID        uuid.UUID `json:"movie_id" db:"movie_id"`
	Name           string    `json:"name" db:"name"`
	Role           *string   `json:"role,omitempty" db:"role"`
	ThumbURL       *string   `json:"thumb_url,omitempty" db:"thumb_url"`
	ThumbCacheHash *string   `json:"thumb_cache_hash,omitempty" db:"thumb_cache_hash"`
	SortOrder      int       `json:"sort_order" db:"sort_order"`
}

// ──────────────────── Asset Candidates ────────────────────

// AssetCandidate is one proposed artwork/trailer variant from a provider.
type AssetCandidate struct {
	ID              uuid.UUID `json:"id" db:"id"`
	MovieID         uuid.UUID `json:"movie_id" db:"movie_id"`
	AssetType       AssetType `json:"asset_type" db:"asset_type"`
	Provider        string    `json:"provider" db:"provider"`
	SourceURL       string    `json:"source_url" db:"source_url"`
	ContentHash     *string   `json:"content_hash,omitempty" db:"content_hash"`
	Width           *int      `json:"width,omitempty" db:"width"`
	Height          *int      `json:"height,omitempty" db:"height"`
	ByteSize        *int64    `json:"byte_size,omitempty" db:"byte_size"`
	Language        *string   `json:"language,omitempty" db:"language"`
	Votes           *int      `json:"votes,omitempty" db:"votes"`
	QualityHint     *string   `json:"quality_hint,omitempty" db:"quality_hint"`
	PerceptualHash  *string   `json:"perceptual_hash,omitempty" db:"perceptual_hash"`
	DifferenceHash  *string   `json:"difference_hash,omitempty" db:"difference_hash"`
	IsSelected      bool      `json:"is_selected" db:"is_selected"`
	SelectionReason *string   `json:"selection_reason,omitempty" db:"selection_reason"`
	Score           *float64  `json:"score,omitempty" db:"score"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// PixelArea returns width*height, or 0 when dimensions are unknown.
func (a *AssetCandidate) PixelArea() int {
	if a.Width == nil || a.Height == nil {
		return 0
	}
	return *a.Width * *a.Height
}

// ──────────────────── Cache / Library Files ────────────────────

// CacheFile mirrors one file in the content-addressed store.
type CacheFile struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ContentHash    string     `json:"content_hash" db:"content_hash"`
	Path           string     `json:"path" db:"path"`
	ByteSize       int64      `json:"byte_size" db:"byte_size"`
	Kind           MediaKind  `json:"kind" db:"kind"`
	PerceptualHash *string    `json:"perceptual_hash,omitempty" db:"perceptual_hash"`
	DifferenceHash *string    `json:"difference_hash,omitempty" db:"difference_hash"`
	MovieID        *uuid.UUID `json:"movie_id,omitempty" db:"movie_id"`
	AssetType      *AssetType `json:"asset_type,omitempty" db:"asset_type"`
	IsLocked       bool       `json:"is_locked" db:"is_locked"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// LibraryFile records that an asset type is currently published at a path.
// Rows are rebuilt wholesale on every publish.
type LibraryFile struct {
	ID          uuid.UUID `json:"id" db:"id"`
	MovieID     uuid.UUID `json:"movie_id" db:"movie_id"`
	CacheFileID uuid.UUID `json:"cache_file_id" db:"cache_file_id"`
	AssetType   AssetType `json:"asset_type" db:"asset_type"`
	Path        string    `json:"path" db:"path"`
	Kind        MediaKind `json:"kind" db:"kind"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ──────────────────── Jobs ────────────────────

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
)

// Job kinds — a closed set.
const (
	JobFileScan        = "fileScan"
	JobProviderUpdate  = "providerUpdate"
	JobIdentify        = "identify"
	JobEnrich          = "enrich"
	JobPublish         = "publish"
	JobNotifyPlayer    = "notifyPlayer"
	JobWebhookReceived = "webhookReceived"
)

// Job priorities; lower is claimed first.
const (
	PriorityUser       = 1
	PriorityWebhook    = 2
	PriorityBackground = 5
)

type Job struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Kind       string          `json:"kind" db:"kind"`
	Priority   int             `json:"priority" db:"priority"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	Status     JobStatus       `json:"status" db:"status"`
	RetryCount int             `json:"retry_count" db:"retry_count"`
	MaxRetries int             `json:"max_retries" db:"max_retries"`
	Manual     bool            `json:"manual" db:"manual"`
	DedupKey   *string         `json:"dedup_key,omitempty" db:"dedup_key"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty" db:"started_at"`
}

// QueueStats summarizes the queue for status reporting.
type QueueStats struct {
	Pending          int            `json:"pending"`
	Processing       int            `json:"processing"`
	OldestPendingAge *time.Duration `json:"oldest_pending_age,omitempty"`
}

// ──────────────────── Provider Config ────────────────────

type TestStatus string

const (
	TestSuccess     TestStatus = "success"
	TestError       TestStatus = "error"
	TestNeverTested TestStatus = "never_tested"
)

type ProviderConfig struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ProviderName   string     `json:"provider_name" db:"provider_name"`
	Enabled        bool       `json:"enabled" db:"enabled"`
	APIKey         *string    `json:"api_key,omitempty" db:"api_key"`
	PersonalAPIKey *string    `json:"personal_api_key,omitempty" db:"personal_api_key"`
	Language       string     `json:"language" db:"language"`
	Region         string     `json:"region" db:"region"`
	Options        *string    `json:"options,omitempty" db:"options"`
	LastTestAt     *time.Time `json:"last_test_at,omitempty" db:"last_test_at"`
	LastTestStatus TestStatus `json:"last_test_status" db:"last_test_status"`
}

// EffectiveKey prefers the user's personal key over the shipped default.
func (p *ProviderConfig) EffectiveKey() string {
	if p.PersonalAPIKey != nil && *p.PersonalAPIKey != "" {
		return *p.PersonalAPIKey
	}
	if p.APIKey != nil {
		return *p.APIKey
	}
	return ""
}

// GetOptions decodes the options JSON into a map; empty map when unset.
func (p *ProviderConfig) GetOptions() map[string]interface{} {
	opts := map[string]interface{}{}
	if p.Options != nil && *p.Options != "" {
		json.Unmarshal([]byte(*p.Options), &opts)
	}
	return opts
}

// ──────────────────── Scheduler Config ────────────────────

type SchedulerConfig struct {
	ID                       uuid.UUID  `json:"id" db:"id"`
	LibraryID                uuid.UUID  `json:"library_id" db:"library_id"`
	FileScannerEnabled       bool       `json:"file_scanner_enabled" db:"file_scanner_enabled"`
	FileScannerIntervalHours int        `json:"file_scanner_interval_hours" db:"file_scanner_interval_hours"`
	ProviderUpdaterEnabled   bool       `json:"provider_updater_enabled" db:"provider_updater_enabled"`
	ProviderUpdaterIntervalHours int    `json:"provider_updater_interval_hours" db:"provider_updater_interval_hours"`
	LastFileScanAt       *time.Time `json:"last_file_scan_at,omitempty" db:"last_file_scan_at"`
	LastProviderUpdateAt *time.Time `json:"last_provider_update_at,omitempty" db:"last_provider_update_at"`
}

// ──────────────────── Selection Strategy ────────────────────

// SelectionStrategy configures per-asset-type provider ordering.
// Preset is one of quality_first, speed_first, tmdb_primary, tvdb_primary.
type SelectionStrategy struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	AssetType         AssetType      `json:"asset_type" db:"asset_type"`
	PreferredLanguage string         `json:"preferred_language" db:"preferred_language"`
	ProviderPriority  pq.StringArray `json:"provider_priority" db:"provider_priority"`
	Preset            string         `json:"preset" db:"preset"`
}

// ──────────────────── Activity Log ────────────────────

type ActivityLog struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Category  string     `json:"category" db:"category"`
	Message   string     `json:"message" db:"message"`
	MovieID   *uuid.UUID `json:"movie_id,omitempty" db:"movie_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
