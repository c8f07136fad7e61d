package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/models"
)

const omdbBaseURL = "https://www.omdbapi.com/"

// OMDBAdapter supplies ratings-oriented metadata keyed by IMDB ID.
type OMDBAdapter struct {
	apiKey string
	http   *httpJSON
}

func NewOMDBAdapter(cfg *models.ProviderConfig) Adapter {
	return &OMDBAdapter{apiKey: cfg.EffectiveKey(), http: newHTTPJSON("omdb")}
}

func (a *OMDBAdapter) Name() string { return "omdb" }

func (a *OMDBAdapter) Capabilities() Capabilities {
	return Capabilities{
		EntityTypes: []models.MediaType{models.MediaTypeMovies},
		AssetTypes: map[models.MediaType][]models.AssetType{
			models.MediaTypeMovies: {models.AssetPoster},
		},
		MetadataFields: map[models.MediaType][]MetadataField{
			models.MediaTypeMovies: {
				FieldTitle, FieldPlot, FieldYear, FieldReleaseDate, FieldRuntime,
				FieldRating, FieldVotes, FieldGenres, FieldContentRating, FieldExternalIDs,
			},
		},
		Auth:             AuthAPIKey,
		RateLimit:        RateLimit{Requests: 1000, Window: 24 * time.Hour},
		ExternalIDLookup: []string{"imdb"},
		ProvidesMetadata: true,
		ProvidesAssets:   true,
	}
}

func (a *OMDBAdapter) requireKey() error {
	if a.apiKey == "" {
		return newError("omdb", ErrValidation, fmt.Errorf("API key not configured"))
	}
	return nil
}

type omdbResponse struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Rated      string `json:"Rated"`
	Released   string `json:"Released"`
	Runtime    string `json:"Runtime"`
	Genre      string `json:"Genre"`
	Plot       string `json:"Plot"`
	Poster     string `json:"Poster"`
	IMDBRating string `json:"imdbRating"`
	IMDBVotes  string `json:"imdbVotes"`
	IMDBID     string `json:"imdbID"`
	Response   string `json:"Response"`
	ErrorMsg   string `json:"Error"`
}

func (a *OMDBAdapter) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}

	if q.ExternalID != "" && q.ExternalKey == "imdb" {
		// Direct IMDB lookup: the provider-result ID is the IMDB ID itself.
		return []SearchResult{{
			ProviderResultID: q.ExternalID,
			Confidence:       1.0,
			ExternalIDs:      map[string]string{"imdb": q.ExternalID},
		}}, nil
	}

	reqURL := fmt.Sprintf("%s?apikey=%s&type=movie&s=%s", omdbBaseURL, a.apiKey, url.QueryEscape(q.Text))
	if q.Year != nil && *q.Year > 0 {
		reqURL += fmt.Sprintf("&y=%d", *q.Year)
	}

	var result struct {
		Search []struct {
			Title  string `json:"Title"`
			Year   string `json:"Year"`
			IMDBID string `json:"imdbID"`
		} `json:"Search"`
		Response string `json:"Response"`
	}
	if err := a.http.get(ctx, reqURL, nil, &result); err != nil {
		return nil, err
	}
	if result.Response != "True" {
		return nil, nil
	}

	var matches []SearchResult
	for i, r := range result.Search {
		conf := 1.0 - 0.05*float64(i)
		if conf < 0.1 {
			conf = 0.1
		}
		var year *int
		if y, err := strconv.Atoi(strings.Trim(r.Year, "–- ")); err == nil {
			year = &y
		}
		matches = append(matches, SearchResult{
			ProviderResultID: r.IMDBID,
			Title:            r.Title,
			Year:             year,
			Confidence:       conf,
			ExternalIDs:      map[string]string{"imdb": r.IMDBID},
		})
	}
	return matches, nil
}

func (a *OMDBAdapter) fetch(ctx context.Context, imdbID string) (*omdbResponse, error) {
	reqURL := fmt.Sprintf("%s?apikey=%s&i=%s&plot=full", omdbBaseURL, a.apiKey, url.QueryEscape(imdbID))
	var r omdbResponse
	if err := a.http.get(ctx, reqURL, nil, &r); err != nil {
		return nil, err
	}
	if r.Response != "True" {
		return nil, newError("omdb", ErrNotFound, fmt.Errorf("%s", r.ErrorMsg))
	}
	return &r, nil
}

func (a *OMDBAdapter) GetMetadata(ctx context.Context, id string, entityType models.MediaType) (*Metadata, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	r, err := a.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	m := &Metadata{ExternalIDs: map[string]string{"imdb": r.IMDBID}}
	if r.Title != "" {
		m.Title = &r.Title
	}
	if y, err := strconv.Atoi(strings.Trim(r.Year, "–- ")); err == nil {
		m.Year = &y
	}
	if r.Plot != "" && r.Plot != "N/A" {
		m.Plot = &r.Plot
	}
	if r.Rated != "" && r.Rated != "N/A" {
		m.ContentRating = &r.Rated
	}
	if r.Released != "" && r.Released != "N/A" {
		if t, err := time.Parse("02 Jan 2006", r.Released); err == nil {
			d := t.Format("2006-01-02")
			m.ReleaseDate = &d
		}
	}
	if mins, ok := strings.CutSuffix(r.Runtime, " min"); ok {
		if v, err := strconv.Atoi(mins); err == nil {
			m.RuntimeMinutes = &v
		}
	}
	if rating, err := strconv.ParseFloat(r.IMDBRating, 64); err == nil {
		m.Rating = &rating
	}
	if votes, err := strconv.Atoi(strings.ReplaceAll(r.IMDBVotes, ",", "")); err == nil {
		m.Votes = &votes
	}
	if r.Genre != "" && r.Genre != "N/A" {
		for _, g := range strings.Split(r.Genre, ",") {
			m.Genres = append(m.Genres, strings.TrimSpace(g))
		}
	}
	m.computeCompleteness()
	return m, nil
}

func (a *OMDBAdapter) GetAssets(ctx context.Context, id string, entityType models.MediaType, assetTypes []models.AssetType) ([]*models.AssetCandidate, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	wantPoster := false
	for _, t := range assetTypes {
		if t == models.AssetPoster {
			wantPoster = true
		}
	}
	if !wantPoster {
		return nil, nil
	}
	r, err := a.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Poster == "" || r.Poster == "N/A" {
		return nil, nil
	}
	return []*models.AssetCandidate{{
		AssetType: models.AssetPoster,
		Provider:  "omdb",
		SourceURL: r.Poster,
	}}, nil
}

func (a *OMDBAdapter) TestConnection(ctx context.Context) error {
	if err := a.requireKey(); err != nil {
		return err
	}
	_, err := a.fetch(ctx, "tt0133093")
	return err
}
