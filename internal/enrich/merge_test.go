package enrich

import (
	"testing"

	"github.com/JustinTDCT/MediaForge/internal/fetch"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/providers"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }

func resultsWith(data map[string]*providers.Metadata) *fetch.Results {
	res := &fetch.Results{Providers: map[string]*fetch.ProviderData{}}
	for name, meta := range data {
		res.Providers[name] = &fetch.ProviderData{Metadata: meta}
	}
	return res
}

func TestMergeMetadataMostCompleteWins(t *testing.T) {
	movie := &models.Movie{Title: "the matrix 1999 1080p"}

	res := resultsWith(map[string]*providers.Metadata{
		"sparse": {
			Title:        strptr("Wrong Title"),
			Completeness: 0.1,
		},
		"rich": {
			Title:        strptr("The Matrix"),
			Plot:         strptr("A hacker learns the truth."),
			Year:         intptr(1999),
			Completeness: 0.8,
		},
	})

	changed := mergeMetadata(movie, res)
	assert.Equal(t, "The Matrix", movie.Title)
	require.NotNil(t, movie.Plot)
	assert.Equal(t, "A hacker learns the truth.", *movie.Plot)
	require.NotNil(t, movie.Year)
	assert.Equal(t, 1999, *movie.Year)
	assert.Equal(t, 3, changed)
}

func TestMergeMetadataFillsGapsFromLesserProviders(t *testing.T) {
	movie := &models.Movie{Title: "X"}

	// The complete provider has no tagline; the sparse one does.
	res := resultsWith(map[string]*providers.Metadata{
		"sparse": {Tagline: strptr("Free your mind"), Completeness: 0.1},
		"rich":   {Title: strptr("The Matrix"), Completeness: 0.9},
	})

	mergeMetadata(movie, res)
	require.NotNil(t, movie.Tagline)
	assert.Equal(t, "Free your mind", *movie.Tagline)
}

func TestMergeMetadataHonorsLockedFields(t *testing.T) {
	movie := &models.Movie{
		Title:        "My Custom Title",
		Plot:         strptr("My custom plot"),
		LockedFields: pq.StringArray{"title", "plot"},
	}

	res := resultsWith(map[string]*providers.Metadata{
		"tmdb": {
			Title:        strptr("Provider Title"),
			Plot:         strptr("Provider plot"),
			Year:         intptr(2001),
			Completeness: 0.5,
		},
	})

	changed := mergeMetadata(movie, res)
	assert.Equal(t, "My Custom Title", movie.Title)
	assert.Equal(t, "My custom plot", *movie.Plot)
	assert.Equal(t, 2001, *movie.Year)
	assert.Equal(t, 1, changed)
}

func TestMergeMetadataWildcardLockFreezesEverything(t *testing.T) {
	movie := &models.Movie{Title: "Frozen Row", LockedFields: pq.StringArray{"*"}}

	res := resultsWith(map[string]*providers.Metadata{
		"tmdb": {Title: strptr("New"), Year: intptr(2000), Completeness: 0.5},
	})

	assert.Equal(t, 0, mergeMetadata(movie, res))
	assert.Equal(t, "Frozen Row", movie.Title)
	assert.Nil(t, movie.Year)
}

func TestMergeMetadataNoChangeReportsZero(t *testing.T) {
	movie := &models.Movie{Title: "The Matrix", Year: intptr(1999)}

	res := resultsWith(map[string]*providers.Metadata{
		"tmdb": {Title: strptr("The Matrix"), Year: intptr(1999), Completeness: 0.5},
	})

	assert.Equal(t, 0, mergeMetadata(movie, res))
}

func TestMergeExternalIDsNeverOverwrites(t *testing.T) {
	movie := &models.Movie{TMDBID: strptr("603")}

	res := resultsWith(map[string]*providers.Metadata{
		"tmdb": {
			ExternalIDs:  map[string]string{"tmdb": "999", "imdb": "tt0133093"},
			Completeness: 0.5,
		},
	})

	tmdb, imdb, tvdb := mergeExternalIDs(movie, res)
	assert.Nil(t, tmdb) // existing ID stays
	require.NotNil(t, imdb)
	assert.Equal(t, "tt0133093", *imdb)
	assert.Nil(t, tvdb)
}

func TestBestActorsPrefersLargestCast(t *testing.T) {
	res := resultsWith(map[string]*providers.Metadata{
		"small": {
			Actors:       []providers.ActorCredit{{Name: "A"}},
			Completeness: 0.9,
		},
		"big": {
			Actors:       []providers.ActorCredit{{Name: "A"}, {Name: "B"}},
			Completeness: 0.2,
		},
	})

	actors := bestActors(res)
	require.Len(t, actors, 2)
}
