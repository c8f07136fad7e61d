package enrich

import (
	"sort"

	"github.com/JustinTDCT/MediaForge/internal/fetch"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/providers"
)

// orderedProviders returns provider names with metadata, most complete first.
// Ties break on name so merges are deterministic across runs.
func orderedProviders(res *fetch.Results) []string {
	var names []string
	for name, data := range res.Providers {
		if data.Metadata != nil {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		ci := res.Providers[names[i]].Metadata.Completeness
		cj := res.Providers[names[j]].Metadata.Completeness
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})
	return names
}

// mergeMetadata folds provider metadata into the movie: for each field the
// most complete provider that supplies it wins, user-locked fields are never
// touched, and existing values only change when a provider actually offers a
// replacement. Returns the number of fields that changed.
func mergeMetadata(movie *models.Movie, res *fetch.Results) int {
	names := orderedProviders(res)
	if len(names) == 0 {
		return 0
	}

	changed := 0
	setStr := func(field providers.MetadataField, dst **string, pick func(*providers.Metadata) *string) {
		if movie.IsFieldLocked(string(field)) {
			return
		}
		for _, name := range names {
			if v := pick(res.Providers[name].Metadata); v != nil && *v != "" {
				if *dst == nil || **dst != *v {
					*dst = v
					changed++
				}
				return
			}
		}
	}
	setInt := func(field providers.MetadataField, dst **int, pick func(*providers.Metadata) *int) {
		if movie.IsFieldLocked(string(field)) {
			return
		}
		for _, name := range names {
			if v := pick(res.Providers[name].Metadata); v != nil {
				if *dst == nil || **dst != *v {
					*dst = v
					changed++
				}
				return
			}
		}
	}

	// Title is special: it is non-pointer and scanner-derived, so any
	// provider title is considered better than the filename guess.
	if !movie.IsFieldLocked(string(providers.FieldTitle)) {
		for _, name := range names {
			if v := res.Providers[name].Metadata.Title; v != nil && *v != "" {
				if movie.Title != *v {
					movie.Title = *v
					changed++
				}
				break
			}
		}
	}

	setStr(providers.FieldOriginalTitle, &movie.OriginalTitle, func(m *providers.Metadata) *string { return m.OriginalTitle })
	setStr(providers.FieldSortTitle, &movie.SortTitle, func(m *providers.Metadata) *string { return m.SortTitle })
	setStr(providers.FieldPlot, &movie.Plot, func(m *providers.Metadata) *string { return m.Plot })
	setStr(providers.FieldTagline, &movie.Tagline, func(m *providers.Metadata) *string { return m.Tagline })
	setStr(providers.FieldReleaseDate, &movie.ReleaseDate, func(m *providers.Metadata) *string { return m.ReleaseDate })
	setStr(providers.FieldContentRating, &movie.ContentRating, func(m *providers.Metadata) *string { return m.ContentRating })
	setInt(providers.FieldYear, &movie.Year, func(m *providers.Metadata) *int { return m.Year })
	setInt(providers.FieldRuntime, &movie.RuntimeMinutes, func(m *providers.Metadata) *int { return m.RuntimeMinutes })
	setInt(providers.FieldVotes, &movie.Votes, func(m *providers.Metadata) *int { return m.Votes })

	if !movie.IsFieldLocked(string(providers.FieldRating)) {
		for _, name := range names {
			if v := res.Providers[name].Metadata.Rating; v != nil {
				if movie.Rating == nil || *movie.Rating != *v {
					movie.Rating = v
					changed++
				}
				break
			}
		}
	}
	if !movie.IsFieldLocked(string(providers.FieldGenres)) {
		for _, name := range names {
			if g := res.Providers[name].Metadata.Genres; len(g) > 0 {
				if !equalStrings(movie.Genres, g) {
					movie.Genres = g
					changed++
				}
				break
			}
		}
	}
	if !movie.IsFieldLocked(string(providers.FieldStudios)) {
		for _, name := range names {
			if s := res.Providers[name].Metadata.Studios; len(s) > 0 {
				if !equalStrings(movie.Studios, s) {
					movie.Studios = s
					changed++
				}
				break
			}
		}
	}

	return changed
}

// mergeExternalIDs collects any new external IDs the providers discovered.
// Existing IDs on the movie are never overwritten; the repository COALESCE
// keeps them even when nil is passed.
func mergeExternalIDs(movie *models.Movie, res *fetch.Results) (tmdb, imdb, tvdb *string) {
	if movie.IsFieldLocked(string(providers.FieldExternalIDs)) {
		return nil, nil, nil
	}
	pick := func(key string, existing *string) *string {
		if existing != nil && *existing != "" {
			return nil
		}
		for _, name := range orderedProviders(res) {
			if id, ok := res.Providers[name].Metadata.ExternalIDs[key]; ok && id != "" {
				v := id
				return &v
			}
		}
		return nil
	}
	return pick("tmdb", movie.TMDBID), pick("imdb", movie.IMDBID), pick("tvdb", movie.TVDBID)
}

// bestActors returns the largest cast list any provider supplied, preferring
// the more complete provider on ties.
func bestActors(res *fetch.Results) []providers.ActorCredit {
	var best []providers.ActorCredit
	for _, name := range orderedProviders(res) {
		if a := res.Providers[name].Metadata.Actors; len(a) > len(best) {
			best = a
		}
	}
	return best
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
