package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/models"
)

const fanartBaseURL = "https://webservice.fanart.tv/v3"

// FanartTVAdapter serves extended artwork only. It has no search of its own:
// the fetch orchestrator resolves the TMDB ID through the externalIdLookup
// list before calling GetAssets.
type FanartTVAdapter struct {
	apiKey      string
	personalKey string
	http        *httpJSON
}

func NewFanartTVAdapter(cfg *models.ProviderConfig) Adapter {
	a := &FanartTVAdapter{
		apiKey: cfg.EffectiveKey(),
		http:   newHTTPJSON("fanarttv"),
	}
	if cfg.PersonalAPIKey != nil {
		a.personalKey = *cfg.PersonalAPIKey
	}
	return a
}

func (a *FanartTVAdapter) Name() string { return "fanarttv" }

func (a *FanartTVAdapter) Capabilities() Capabilities {
	return Capabilities{
		EntityTypes: []models.MediaType{models.MediaTypeMovies},
		AssetTypes: map[models.MediaType][]models.AssetType{
			models.MediaTypeMovies: {
				models.AssetPoster, models.AssetFanart, models.AssetBanner,
				models.AssetClearLogo, models.AssetClearArt, models.AssetDiscArt,
				models.AssetLandscape, models.AssetThumb, models.AssetCharacterArt,
				models.AssetKeyArt,
			},
		},
		MetadataFields:   map[models.MediaType][]MetadataField{},
		Auth:             AuthAPIKey,
		RateLimit:        RateLimit{Requests: 10, Window: time.Second},
		ExternalIDLookup: []string{"tmdb", "imdb"},
		ProvidesMetadata: false,
		ProvidesAssets:   true,
	}
}

func (a *FanartTVAdapter) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	// Asset-only provider: the provider-result ID is the movie's TMDB or
	// IMDB ID, passed straight through.
	if q.ExternalID != "" && (q.ExternalKey == "tmdb" || q.ExternalKey == "imdb") {
		return []SearchResult{{
			ProviderResultID: q.ExternalID,
			Confidence:       1.0,
			ExternalIDs:      map[string]string{q.ExternalKey: q.ExternalID},
		}}, nil
	}
	return nil, newError("fanarttv", ErrValidation, fmt.Errorf("text search not supported"))
}

func (a *FanartTVAdapter) GetMetadata(ctx context.Context, id string, entityType models.MediaType) (*Metadata, error) {
	return nil, newError("fanarttv", ErrValidation, fmt.Errorf("metadata not supported"))
}

type fanartImage struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Likes string `json:"likes"`
	Lang  string `json:"lang"`
}

func (a *FanartTVAdapter) GetAssets(ctx context.Context, id string, entityType models.MediaType, assetTypes []models.AssetType) ([]*models.AssetCandidate, error) {
	if a.apiKey == "" {
		return nil, newError("fanarttv", ErrValidation, fmt.Errorf("API key not configured"))
	}

	reqURL := fmt.Sprintf("%s/movies/%s?api_key=%s", fanartBaseURL, url.PathEscape(id), a.apiKey)
	headers := map[string]string{}
	if a.personalKey != "" {
		headers["client-key"] = a.personalKey
	}

	var result struct {
		MoviePosters     []fanartImage `json:"movieposter"`
		MovieBackgrounds []fanartImage `json:"moviebackground"`
		MovieBanners     []fanartImage `json:"moviebanner"`
		HDMovieLogos     []fanartImage `json:"hdmovielogo"`
		MovieLogos       []fanartImage `json:"movielogo"`
		HDClearArt       []fanartImage `json:"hdmovieclearart"`
		MovieClearArt    []fanartImage `json:"movieclearart"`
		MovieDiscs       []fanartImage `json:"moviedisc"`
		MovieThumbs      []fanartImage `json:"moviethumb"`
	}
	if err := a.http.get(ctx, reqURL, headers, &result); err != nil {
		return nil, err
	}

	wanted := make(map[models.AssetType]bool)
	for _, t := range assetTypes {
		wanted[t] = true
	}

	var out []*models.AssetCandidate
	add := func(imgs []fanartImage, assetType models.AssetType, hd bool) {
		if !wanted[assetType] {
			return
		}
		for _, img := range imgs {
			if img.URL == "" {
				continue
			}
			cand := &models.AssetCandidate{
				AssetType: assetType,
				Provider:  "fanarttv",
				SourceURL: img.URL,
			}
			if img.Lang != "" && img.Lang != "00" {
				lang := img.Lang
				cand.Language = &lang
			}
			if likes, err := strconv.Atoi(img.Likes); err == nil && likes > 0 {
				cand.Votes = &likes
			}
			if hd {
				hint := "HD"
				cand.QualityHint = &hint
			}
			out = append(out, cand)
		}
	}

	add(result.MoviePosters, models.AssetPoster, false)
	add(result.MovieBackgrounds, models.AssetFanart, true)
	add(result.MovieBanners, models.AssetBanner, false)
	add(result.HDMovieLogos, models.AssetClearLogo, true)
	add(result.MovieLogos, models.AssetClearLogo, false)
	add(result.HDClearArt, models.AssetClearArt, true)
	add(result.MovieClearArt, models.AssetClearArt, false)
	add(result.MovieDiscs, models.AssetDiscArt, false)
	add(result.MovieThumbs, models.AssetLandscape, false)

	return out, nil
}

func (a *FanartTVAdapter) TestConnection(ctx context.Context) error {
	if a.apiKey == "" {
		return newError("fanarttv", ErrValidation, fmt.Errorf("API key not configured"))
	}
	// Fetch a known title (Fight Club) as a connectivity probe.
	var out interface{}
	return a.http.get(ctx, fmt.Sprintf("%s/movies/550?api_key=%s", fanartBaseURL, a.apiKey), nil, &out)
}
