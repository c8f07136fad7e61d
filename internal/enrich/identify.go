package enrich

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/providers"
	"github.com/google/uuid"
)

// minIdentifyConfidence rejects matches a provider itself is unsure about.
const minIdentifyConfidence = 0.3

// Match is one identification candidate returned to the caller.
type Match struct {
	Provider    string
	Title       string
	Year        *int
	Confidence  float64
	ExternalIDs map[string]string
}

// Identify searches every capable provider for the movie and applies the
// best match: external IDs land on the row and status moves to identified.
// An empty query falls back to the scanner's parsed title and year.
func (o *Orchestrator) Identify(ctx context.Context, movieID uuid.UUID, query string, year *int, prio providers.Priority) (*Match, error) {
	movie, err := o.movieRepo.GetByID(movieID)
	if err != nil {
		return nil, err
	}
	if query == "" {
		query = movie.Title
		year = movie.Year
	}
	if query == "" {
		return nil, fmt.Errorf("movie %s has no title to search for", movieID)
	}

	matches := o.SearchAll(ctx, query, year, prio)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no provider matched %q", query)
	}
	best := matches[0]

	var tmdb, imdb, tvdb *string
	for key, id := range best.ExternalIDs {
		if id == "" {
			continue
		}
		v := id
		switch key {
		case "tmdb":
			tmdb = &v
		case "imdb":
			imdb = &v
		case "tvdb":
			tvdb = &v
		}
	}
	if tmdb == nil && imdb == nil && tvdb == nil {
		return nil, fmt.Errorf("best match for %q carries no external IDs", query)
	}

	if err := o.movieRepo.UpdateExternalIDs(movieID, tmdb, imdb, tvdb); err != nil {
		return nil, err
	}
	if movie.Status == models.StatusUnidentified {
		if err := o.movieRepo.UpdateStatus(movieID, models.StatusIdentified); err != nil {
			return nil, err
		}
	}

	log.Printf("Identify: movie %s matched %q via %s (%.0f%%)",
		movieID, best.Title, best.Provider, best.Confidence*100)
	return &best, nil
}

// SearchAll fans a text search out to every movie-capable provider and
// returns the merged matches, best confidence first. Provider errors only
// shrink the result set.
func (o *Orchestrator) SearchAll(ctx context.Context, query string, year *int, prio providers.Priority) []Match {
	var matches []Match
	for _, name := range o.registry.SupportingEntity(models.MediaTypeMovies) {
		adapter, err := o.registry.Get(name, prio)
		if err != nil {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, prio.Timeout)
		results, err := adapter.Search(callCtx, providers.Query{
			Text:       query,
			Year:       year,
			EntityType: models.MediaTypeMovies,
		})
		cancel()
		if err != nil {
			log.Printf("Identify: provider %s search failed: %v", name, err)
			continue
		}
		for _, r := range results {
			if r.Confidence < minIdentifyConfidence {
				continue
			}
			matches = append(matches, Match{
				Provider:    name,
				Title:       r.Title,
				Year:        r.Year,
				Confidence:  r.Confidence,
				ExternalIDs: r.ExternalIDs,
			})
		}
	}

	// Confidence first; provider name breaks ties for determinism.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Provider < matches[j].Provider
	})
	return matches
}
