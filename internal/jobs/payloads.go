package jobs

import (
	"github.com/google/uuid"
)

// Payload schemas, one per job kind. Kept alongside the queue so enqueuers
// and handlers share the same shapes.

type FileScanPayload struct {
	LibraryID uuid.UUID `json:"library_id"`
}

type ProviderUpdatePayload struct {
	LibraryID uuid.UUID `json:"library_id"`
}

type IdentifyPayload struct {
	MovieID uuid.UUID `json:"movie_id"`
	// Query overrides the filename-derived title for manual searches.
	Query string `json:"query,omitempty"`
	Year  int    `json:"year,omitempty"`
}

type EnrichPayload struct {
	MovieID uuid.UUID `json:"movie_id"`
	// Priority is the provider priority class: "user" or "background".
	Priority string `json:"priority"`
}

type PublishPayload struct {
	MovieID uuid.UUID `json:"movie_id"`
}

type NotifyPlayerPayload struct {
	MovieID uuid.UUID `json:"movie_id"`
	Paths   []string  `json:"paths,omitempty"`
}

type WebhookReceivedPayload struct {
	Event     string    `json:"event"`
	LibraryID uuid.UUID `json:"library_id,omitempty"`
	Path      string    `json:"path,omitempty"`
}

// Dedup keys keep repeat triggers for the same target collapsed while a
// matching job is still queued.

func FileScanDedupKey(libraryID uuid.UUID) string {
	return "fileScan:" + libraryID.String()
}

func ProviderUpdateDedupKey(libraryID uuid.UUID) string {
	return "providerUpdate:" + libraryID.String()
}

func EnrichDedupKey(movieID uuid.UUID) string {
	return "enrich:" + movieID.String()
}

func PublishDedupKey(movieID uuid.UUID) string {
	return "publish:" + movieID.String()
}
