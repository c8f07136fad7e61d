package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/models"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

// TMDBAdapter covers metadata and artwork from themoviedb.org.
type TMDBAdapter struct {
	apiKey   string
	language string
	region   string
	http     *httpJSON
}

func NewTMDBAdapter(cfg *models.ProviderConfig) Adapter {
	lang := cfg.Language
	if lang == "" {
		lang = "en"
	}
	return &TMDBAdapter{
		apiKey:   cfg.EffectiveKey(),
		language: lang,
		region:   cfg.Region,
		http:     newHTTPJSON("tmdb"),
	}
}

func (a *TMDBAdapter) Name() string { return "tmdb" }

func (a *TMDBAdapter) Capabilities() Capabilities {
	return Capabilities{
		EntityTypes: []models.MediaType{models.MediaTypeMovies},
		AssetTypes: map[models.MediaType][]models.AssetType{
			models.MediaTypeMovies: {models.AssetPoster, models.AssetFanart, models.AssetClearLogo, models.AssetTrailer},
		},
		MetadataFields: map[models.MediaType][]MetadataField{
			models.MediaTypeMovies: {
				FieldTitle, FieldOriginalTitle, FieldPlot, FieldTagline, FieldYear,
				FieldReleaseDate, FieldRuntime, FieldRating, FieldVotes, FieldGenres,
				FieldStudios, FieldContentRating, FieldTrailer, FieldActors, FieldExternalIDs,
			},
		},
		Auth:             AuthAPIKey,
		RateLimit:        RateLimit{Requests: 40, Window: 10 * time.Second},
		ExternalIDLookup: []string{"imdb", "tvdb"},
		ProvidesMetadata: true,
		ProvidesAssets:   true,
	}
}

func (a *TMDBAdapter) requireKey() error {
	if a.apiKey == "" {
		return newError("tmdb", ErrValidation, fmt.Errorf("API key not configured"))
	}
	return nil
}

// ──────────────────── Search ────────────────────

type tmdbMovieResult struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	ReleaseDate   string  `json:"release_date"`
	VoteAverage   float64 `json:"vote_average"`
}

func (a *TMDBAdapter) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}

	// External-ID lookup goes through /find and returns at most one match.
	if q.ExternalID != "" {
		return a.findByExternalID(ctx, q.ExternalKey, q.ExternalID)
	}

	reqURL := fmt.Sprintf("%s/search/movie?api_key=%s&language=%s&query=%s",
		tmdbBaseURL, a.apiKey, a.language, url.QueryEscape(q.Text))
	if q.Year != nil && *q.Year > 0 {
		reqURL += fmt.Sprintf("&year=%d", *q.Year)
	}

	var result struct {
		Results []tmdbMovieResult `json:"results"`
	}
	if err := a.http.get(ctx, reqURL, nil, &result); err != nil {
		return nil, err
	}

	// Retry without year when a provided year yields nothing.
	if len(result.Results) == 0 && q.Year != nil && *q.Year > 0 {
		noYear := q
		noYear.Year = nil
		return a.Search(ctx, noYear)
	}

	var matches []SearchResult
	for i, r := range result.Results {
		// TMDB orders by relevance; decay confidence with position.
		conf := 1.0 - 0.05*float64(i)
		if conf < 0.1 {
			conf = 0.1
		}
		matches = append(matches, SearchResult{
			ProviderResultID: fmt.Sprintf("%d", r.ID),
			Title:            r.Title,
			Year:             yearFromDate(r.ReleaseDate),
			Confidence:       conf,
			ExternalIDs:      map[string]string{"tmdb": fmt.Sprintf("%d", r.ID)},
		})
	}
	return matches, nil
}

func (a *TMDBAdapter) findByExternalID(ctx context.Context, key, id string) ([]SearchResult, error) {
	source := map[string]string{"imdb": "imdb_id", "tvdb": "tvdb_id"}[key]
	if source == "" {
		return nil, newError("tmdb", ErrValidation, fmt.Errorf("unsupported external key %q", key))
	}
	reqURL := fmt.Sprintf("%s/find/%s?api_key=%s&external_source=%s", tmdbBaseURL, url.PathEscape(id), a.apiKey, source)

	var result struct {
		MovieResults []tmdbMovieResult `json:"movie_results"`
	}
	if err := a.http.get(ctx, reqURL, nil, &result); err != nil {
		return nil, err
	}

	var matches []SearchResult
	for _, r := range result.MovieResults {
		matches = append(matches, SearchResult{
			ProviderResultID: fmt.Sprintf("%d", r.ID),
			Title:            r.Title,
			Year:             yearFromDate(r.ReleaseDate),
			Confidence:       1.0, // exact ID lookup
			ExternalIDs:      map[string]string{"tmdb": fmt.Sprintf("%d", r.ID), key: id},
		})
	}
	return matches, nil
}

// ──────────────────── Metadata ────────────────────

func (a *TMDBAdapter) GetMetadata(ctx context.Context, id string, entityType models.MediaType) (*Metadata, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/movie/%s?api_key=%s&language=%s&append_to_response=credits,release_dates,videos",
		tmdbBaseURL, url.PathEscape(id), a.apiKey, a.language)

	var r struct {
		ID            int     `json:"id"`
		Title         string  `json:"title"`
		OriginalTitle string  `json:"original_title"`
		Overview      string  `json:"overview"`
		Tagline       string  `json:"tagline"`
		ReleaseDate   string  `json:"release_date"`
		Runtime       int     `json:"runtime"`
		VoteAverage   float64 `json:"vote_average"`
		VoteCount     int     `json:"vote_count"`
		IMDBId        string  `json:"imdb_id"`
		Genres        []struct {
			Name string `json:"name"`
		} `json:"genres"`
		ProductionCompanies []struct {
			Name string `json:"name"`
		} `json:"production_companies"`
		Videos struct {
			Results []struct {
				Type string `json:"type"`
				Site string `json:"site"`
				Key  string `json:"key"`
			} `json:"results"`
		} `json:"videos"`
		Credits struct {
			Cast []struct {
				Name        string `json:"name"`
				Character   string `json:"character"`
				ProfilePath string `json:"profile_path"`
				Order       int    `json:"order"`
			} `json:"cast"`
		} `json:"credits"`
		ReleaseDates struct {
			Results []struct {
				ISO31661     string `json:"iso_3166_1"`
				ReleaseDates []struct {
					Certification string `json:"certification"`
				} `json:"release_dates"`
			} `json:"results"`
		} `json:"release_dates"`
	}
	if err := a.http.get(ctx, reqURL, nil, &r); err != nil {
		return nil, err
	}

	m := &Metadata{ExternalIDs: map[string]string{"tmdb": fmt.Sprintf("%d", r.ID)}}
	if r.Title != "" {
		m.Title = &r.Title
	}
	if r.OriginalTitle != "" && r.OriginalTitle != r.Title {
		m.OriginalTitle = &r.OriginalTitle
	}
	if r.Overview != "" {
		m.Plot = &r.Overview
	}
	if r.Tagline != "" {
		m.Tagline = &r.Tagline
	}
	if r.ReleaseDate != "" {
		m.ReleaseDate = &r.ReleaseDate
		m.Year = yearFromDate(r.ReleaseDate)
	}
	if r.Runtime > 0 {
		m.RuntimeMinutes = &r.Runtime
	}
	if r.VoteAverage > 0 {
		m.Rating = &r.VoteAverage
	}
	if r.VoteCount > 0 {
		m.Votes = &r.VoteCount
	}
	for _, g := range r.Genres {
		m.Genres = append(m.Genres, g.Name)
	}
	for _, c := range r.ProductionCompanies {
		m.Studios = append(m.Studios, c.Name)
	}
	if r.IMDBId != "" {
		m.ExternalIDs["imdb"] = r.IMDBId
	}

	// US certification from release dates.
	for _, c := range r.ReleaseDates.Results {
		region := a.region
		if region == "" {
			region = "US"
		}
		if c.ISO31661 == region {
			for _, rd := range c.ReleaseDates {
				if rd.Certification != "" {
					cert := rd.Certification
					m.ContentRating = &cert
					break
				}
			}
		}
	}

	// First YouTube trailer.
	for _, v := range r.Videos.Results {
		if v.Type == "Trailer" && v.Site == "YouTube" && v.Key != "" {
			t := "https://www.youtube.com/watch?v=" + v.Key
			m.TrailerURL = &t
			break
		}
	}

	for _, c := range r.Credits.Cast {
		actor := ActorCredit{Name: c.Name, Role: c.Character, SortOrder: c.Order}
		if c.ProfilePath != "" {
			actor.ThumbURL = "https://image.tmdb.org/t/p/w185" + c.ProfilePath
		}
		m.Actors = append(m.Actors, actor)
	}

	m.computeCompleteness()
	return m, nil
}

// ──────────────────── Assets ────────────────────

type tmdbImage struct {
	FilePath    string  `json:"file_path"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	ISO6391     string  `json:"iso_639_1"`
	VoteCount   int     `json:"vote_count"`
	VoteAverage float64 `json:"vote_average"`
}

func (a *TMDBAdapter) GetAssets(ctx context.Context, id string, entityType models.MediaType, assetTypes []models.AssetType) ([]*models.AssetCandidate, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	wanted := make(map[models.AssetType]bool)
	for _, t := range assetTypes {
		wanted[t] = true
	}

	var out []*models.AssetCandidate

	if wanted[models.AssetPoster] || wanted[models.AssetFanart] || wanted[models.AssetClearLogo] {
		reqURL := fmt.Sprintf("%s/movie/%s/images?api_key=%s&include_image_language=%s,null",
			tmdbBaseURL, url.PathEscape(id), a.apiKey, a.language)
		var imgs struct {
			Posters   []tmdbImage `json:"posters"`
			Backdrops []tmdbImage `json:"backdrops"`
			Logos     []tmdbImage `json:"logos"`
		}
		if err := a.http.get(ctx, reqURL, nil, &imgs); err != nil {
			return nil, err
		}
		if wanted[models.AssetPoster] {
			out = append(out, a.imageCandidates(imgs.Posters, models.AssetPoster)...)
		}
		if wanted[models.AssetFanart] {
			out = append(out, a.imageCandidates(imgs.Backdrops, models.AssetFanart)...)
		}
		if wanted[models.AssetClearLogo] {
			out = append(out, a.imageCandidates(imgs.Logos, models.AssetClearLogo)...)
		}
	}

	if wanted[models.AssetTrailer] {
		reqURL := fmt.Sprintf("%s/movie/%s/videos?api_key=%s", tmdbBaseURL, url.PathEscape(id), a.apiKey)
		var vids struct {
			Results []struct {
				Type     string `json:"type"`
				Site     string `json:"site"`
				Key      string `json:"key"`
				Size     int    `json:"size"`
				ISO6391  string `json:"iso_639_1"`
				Official bool   `json:"official"`
			} `json:"results"`
		}
		if err := a.http.get(ctx, reqURL, nil, &vids); err != nil {
			return nil, err
		}
		for _, v := range vids.Results {
			if v.Type != "Trailer" || v.Site != "YouTube" || v.Key == "" {
				continue
			}
			cand := &models.AssetCandidate{
				AssetType: models.AssetTrailer,
				Provider:  "tmdb",
				SourceURL: "https://www.youtube.com/watch?v=" + v.Key,
			}
			if v.ISO6391 != "" {
				lang := v.ISO6391
				cand.Language = &lang
			}
			if v.Size > 0 {
				hint := fmt.Sprintf("%dp", v.Size)
				cand.QualityHint = &hint
			}
			if v.Official {
				votes := 1
				cand.Votes = &votes
			}
			out = append(out, cand)
		}
	}

	return out, nil
}

func (a *TMDBAdapter) imageCandidates(imgs []tmdbImage, assetType models.AssetType) []*models.AssetCandidate {
	base := "https://image.tmdb.org/t/p/original"
	var out []*models.AssetCandidate
	for _, img := range imgs {
		if img.FilePath == "" {
			continue
		}
		cand := &models.AssetCandidate{
			AssetType: assetType,
			Provider:  "tmdb",
			SourceURL: base + img.FilePath,
		}
		if img.Width > 0 {
			w := img.Width
			cand.Width = &w
		}
		if img.Height > 0 {
			h := img.Height
			cand.Height = &h
		}
		if img.ISO6391 != "" {
			lang := img.ISO6391
			cand.Language = &lang
		}
		if img.VoteCount > 0 {
			v := img.VoteCount
			cand.Votes = &v
		}
		out = append(out, cand)
	}
	return out
}

func (a *TMDBAdapter) TestConnection(ctx context.Context) error {
	if err := a.requireKey(); err != nil {
		return err
	}
	return a.http.get(ctx, fmt.Sprintf("%s/configuration?api_key=%s", tmdbBaseURL, a.apiKey), nil, nil)
}

// yearFromDate extracts the year from a yyyy-mm-dd date string.
func yearFromDate(date string) *int {
	if len(date) < 4 {
		return nil
	}
	y := 0
	if _, err := fmt.Sscanf(date[:4], "%d", &y); err != nil || y == 0 {
		return nil
	}
	return &y
}
