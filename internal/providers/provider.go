package providers

import (
	"context"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/models"
)

// ──────────────────── Capabilities ────────────────────

// RateLimit is a provider's declared request budget.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// AuthScheme describes how a provider authenticates.
type AuthScheme string

const (
	AuthNone   AuthScheme = "none"
	AuthAPIKey AuthScheme = "api-key"
	AuthBearer AuthScheme = "bearer"
	AuthJWT    AuthScheme = "jwt"
)

// MetadataField is the closed set of fields a provider can supply.
type MetadataField string

const (
	FieldTitle         MetadataField = "title"
	FieldOriginalTitle MetadataField = "original_title"
	FieldSortTitle     MetadataField = "sort_title"
	FieldPlot          MetadataField = "plot"
	FieldTagline       MetadataField = "tagline"
	FieldYear          MetadataField = "year"
	FieldReleaseDate   MetadataField = "release_date"
	FieldRuntime       MetadataField = "runtime"
	FieldRating        MetadataField = "rating"
	FieldVotes         MetadataField = "votes"
	FieldGenres        MetadataField = "genres"
	FieldStudios       MetadataField = "studios"
	FieldContentRating MetadataField = "content_rating"
	FieldTrailer       MetadataField = "trailer"
	FieldActors        MetadataField = "actors"
	FieldExternalIDs   MetadataField = "external_ids"
)

// Capabilities is the static descriptor used to decide whether and how to
// invoke a provider.
type Capabilities struct {
	EntityTypes      []models.MediaType
	AssetTypes       map[models.MediaType][]models.AssetType
	MetadataFields   map[models.MediaType][]MetadataField
	Auth             AuthScheme
	RateLimit        RateLimit
	ExternalIDLookup []string // external-ID keys the provider can resolve directly
	ProvidesMetadata bool
	ProvidesAssets   bool
}

// SupportsEntity reports whether the provider handles an entity type.
func (c Capabilities) SupportsEntity(t models.MediaType) bool {
	for _, e := range c.EntityTypes {
		if e == t {
			return true
		}
	}
	return false
}

// SupportsAsset reports whether the provider serves an asset type for an entity.
func (c Capabilities) SupportsAsset(t models.MediaType, a models.AssetType) bool {
	for _, at := range c.AssetTypes[t] {
		if at == a {
			return true
		}
	}
	return false
}

// SupportsField reports whether the provider supplies a metadata field.
func (c Capabilities) SupportsField(t models.MediaType, f MetadataField) bool {
	for _, mf := range c.MetadataFields[t] {
		if mf == f {
			return true
		}
	}
	return false
}

// SupportsLookup reports whether the provider resolves the external-ID key.
func (c Capabilities) SupportsLookup(key string) bool {
	for _, k := range c.ExternalIDLookup {
		if k == key {
			return true
		}
	}
	return false
}

// ──────────────────── Requests / Responses ────────────────────

// Query drives a provider search: either free text (+ optional year) or a
// known external ID.
type Query struct {
	Text        string
	Year        *int
	ExternalKey string // e.g. "imdb"
	ExternalID  string
	EntityType  models.MediaType
}

// SearchResult is one match from a provider search.
type SearchResult struct {
	ProviderResultID string
	Title            string
	Year             *int
	Confidence       float64
	ExternalIDs      map[string]string
}

// ActorCredit is one cast entry from provider metadata.
type ActorCredit struct {
	Name      string
	Role      string
	ThumbURL  string
	SortOrder int
}

// Metadata is the partial field set a provider returns. Pointer/empty fields
// mean "not provided"; Completeness is the provided fraction of the closed set.
type Metadata struct {
	Title          *string
	OriginalTitle  *string
	SortTitle      *string
	Plot           *string
	Tagline        *string
	Year           *int
	ReleaseDate    *string
	RuntimeMinutes *int
	Rating         *float64
	Votes          *int
	Genres         []string
	Studios        []string
	ContentRating  *string
	TrailerURL     *string
	Actors         []ActorCredit
	ExternalIDs    map[string]string
	Completeness   float64
}

// computeCompleteness fills Metadata.Completeness from field presence.
func (m *Metadata) computeCompleteness() {
	total := 16.0
	present := 0.0
	for _, ok := range []bool{
		m.Title != nil, m.OriginalTitle != nil, m.SortTitle != nil, m.Plot != nil,
		m.Tagline != nil, m.Year != nil, m.ReleaseDate != nil, m.RuntimeMinutes != nil,
		m.Rating != nil, m.Votes != nil, len(m.Genres) > 0, len(m.Studios) > 0,
		m.ContentRating != nil, m.TrailerURL != nil, len(m.Actors) > 0,
		len(m.ExternalIDs) > 0,
	} {
		if ok {
			present++
		}
	}
	m.Completeness = present / total
}

// ──────────────────── Priority Classes ────────────────────

// Priority selects timeout and retry budget for provider calls.
type Priority struct {
	Name       string
	Timeout    time.Duration
	MaxRetries int
}

var (
	// PriorityUser: interactive requests — fail fast.
	PriorityUser = Priority{Name: "user", Timeout: 10 * time.Second, MaxRetries: 2}
	// PriorityBackground: scheduled enrichment — patient.
	PriorityBackground = Priority{Name: "background", Timeout: 60 * time.Second, MaxRetries: 5}
)

// ──────────────────── Adapter Contract ────────────────────

// Adapter is the uniform contract over heterogeneous provider APIs. Guarded
// adapters (see Guard) never return raw transport errors: everything crossing
// this interface is a *Error.
type Adapter interface {
	Name() string
	Capabilities() Capabilities
	Search(ctx context.Context, q Query) ([]SearchResult, error)
	GetMetadata(ctx context.Context, providerResultID string, entityType models.MediaType) (*Metadata, error)
	GetAssets(ctx context.Context, providerResultID string, entityType models.MediaType, assetTypes []models.AssetType) ([]*models.AssetCandidate, error)
	TestConnection(ctx context.Context) error
}
