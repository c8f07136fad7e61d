package enrich

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/JustinTDCT/MediaForge/internal/cache"
	"github.com/JustinTDCT/MediaForge/internal/fetch"
	"github.com/JustinTDCT/MediaForge/internal/ffprobe"
	"github.com/JustinTDCT/MediaForge/internal/imaging"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/providers"
	"github.com/JustinTDCT/MediaForge/internal/repository"
	"github.com/JustinTDCT/MediaForge/internal/selector"
	"github.com/google/uuid"
)

// maxDownloadBytes caps a single artwork download. Anything bigger is not
// artwork.
const maxDownloadBytes = 32 << 20

// maxAnalyzedPerType bounds how many candidates get downloaded and measured
// per asset slot; the rest compete on provider-declared attributes only.
const maxAnalyzedPerType = 4

// actorThumbWorkers bounds concurrent cast thumbnail downloads.
const actorThumbWorkers = 4

// imageAssetTypes is every slot that holds artwork rather than video.
var imageAssetTypes = []models.AssetType{
	models.AssetPoster, models.AssetFanart, models.AssetBanner,
	models.AssetClearLogo, models.AssetClearArt, models.AssetDiscArt,
	models.AssetLandscape, models.AssetThumb, models.AssetCharacterArt,
	models.AssetKeyArt,
}

// Orchestrator drives the full enrichment pass for one movie: provider
// fan-out, metadata merge, artwork analysis and selection, cast thumbnails,
// and trailer selection.
type Orchestrator struct {
	movieRepo    *repository.MovieRepository
	assetRepo    *repository.AssetRepository
	cacheRepo    *repository.CacheFileRepository
	strategyRepo *repository.SelectionStrategyRepository
	fetcher      *fetch.Orchestrator
	registry     *providers.Registry
	store        *cache.Store
	client       *http.Client

	probe           *ffprobe.FFprobe
	trailerAnalysis bool
}

func NewOrchestrator(
	movieRepo *repository.MovieRepository,
	assetRepo *repository.AssetRepository,
	cacheRepo *repository.CacheFileRepository,
	strategyRepo *repository.SelectionStrategyRepository,
	fetcher *fetch.Orchestrator,
	registry *providers.Registry,
	store *cache.Store,
	client *http.Client,
) *Orchestrator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Orchestrator{
		movieRepo:    movieRepo,
		assetRepo:    assetRepo,
		cacheRepo:    cacheRepo,
		strategyRepo: strategyRepo,
		fetcher:      fetcher,
		registry:     registry,
		store:        store,
		client:       client,
	}
}

// EnableTrailerAnalysis turns on ffprobe measurement of trailer candidates.
func (o *Orchestrator) EnableTrailerAnalysis(probe *ffprobe.FFprobe) {
	o.probe = probe
	o.trailerAnalysis = true
}

// Result summarizes one enrichment pass.
type Result struct {
	MovieID         uuid.UUID
	Completed       []string
	Failed          int
	TimedOut        int
	FieldsUpdated   int
	CandidatesFound int
	Selected        map[models.AssetType]*selector.Selection
	ActorThumbs     int
}

// Enrich runs the pipeline for one movie. Provider failures degrade the pass
// rather than failing it; only a total provider blackout or a storage error
// aborts, and an abort leaves the movie's previous status intact.
func (o *Orchestrator) Enrich(ctx context.Context, movieID uuid.UUID, prio providers.Priority, progress *fetch.Progress) (*Result, error) {
	movie, err := o.movieRepo.GetByID(movieID)
	if err != nil {
		return nil, err
	}
	if movie.DeletedAt != nil {
		return nil, fmt.Errorf("movie %s is deleted", movieID)
	}

	prevStatus := movie.Status
	if err := o.movieRepo.UpdateStatus(movieID, models.StatusEnriching); err != nil {
		return nil, err
	}

	result := &Result{
		MovieID:  movieID,
		Selected: make(map[models.AssetType]*selector.Selection),
	}

	// Provider fan-out: metadata plus every asset slot in one pass.
	res := o.fetcher.Fetch(ctx, fetch.Request{
		Movie:        movie,
		EntityType:   models.MediaTypeMovies,
		Priority:     prio,
		WantMetadata: true,
		AssetTypes:   models.AllAssetTypes,
		Progress:     progress,
	})
	result.Completed = res.Completed
	result.Failed = len(res.Failed)
	result.TimedOut = len(res.TimedOut)

	if res.AllFailed() {
		o.restoreStatus(movieID, prevStatus)
		return result, fmt.Errorf("all providers failed for movie %s", movieID)
	}

	if err := o.applyMetadata(movie, res, result); err != nil {
		o.restoreStatus(movieID, prevStatus)
		return result, err
	}

	if err := o.storeCandidates(res, result); err != nil {
		o.restoreStatus(movieID, prevStatus)
		return result, err
	}

	for _, assetType := range imageAssetTypes {
		if err := o.selectForType(ctx, movieID, assetType, result); err != nil {
			// One bad slot never sinks the pass.
			log.Printf("Enrich: %s %s selection: %v", movieID, assetType, err)
		}
	}

	o.fetchActorThumbs(ctx, movie, res, result)

	if o.trailerAnalysis {
		o.analyzeTrailers(ctx, movieID)
	}
	if err := o.selectTrailer(ctx, movie, result); err != nil {
		log.Printf("Enrich: %s trailer selection: %v", movieID, err)
	}

	// Enriched means identified with real metadata: a title plus at least
	// one external ID. Anything less drops back to where it was.
	final := models.StatusEnriched
	if movie.Title == "" || (movie.TMDBID == nil && movie.IMDBID == nil && movie.TVDBID == nil) {
		final = prevStatus
	}
	if err := o.movieRepo.UpdateStatus(movieID, final); err != nil {
		return result, err
	}

	log.Printf("Enrich: movie %s done: %d providers, %d fields, %d candidates, %d selections",
		movieID, len(result.Completed), result.FieldsUpdated, result.CandidatesFound, len(result.Selected))
	return result, nil
}

func (o *Orchestrator) restoreStatus(movieID uuid.UUID, status models.EnrichmentStatus) {
	if err := o.movieRepo.UpdateStatus(movieID, status); err != nil {
		log.Printf("Enrich: restore status for %s: %v", movieID, err)
	}
}

// applyMetadata merges provider metadata into the movie and persists it.
func (o *Orchestrator) applyMetadata(movie *models.Movie, res *fetch.Results, result *Result) error {
	result.FieldsUpdated = mergeMetadata(movie, res)

	tmdb, imdb, tvdb := mergeExternalIDs(movie, res)
	if tmdb != nil || imdb != nil || tvdb != nil {
		if err := o.movieRepo.UpdateExternalIDs(movie.ID, tmdb, imdb, tvdb); err != nil {
			return err
		}
		if tmdb != nil {
			movie.TMDBID = tmdb
		}
		if imdb != nil {
			movie.IMDBID = imdb
		}
		if tvdb != nil {
			movie.TVDBID = tvdb
		}
	}

	if result.FieldsUpdated > 0 {
		if err := o.movieRepo.UpdateMetadata(movie); err != nil {
			return err
		}
	}
	return nil
}

// storeCandidates upserts every proposed asset so re-runs refresh rather
// than duplicate.
func (o *Orchestrator) storeCandidates(res *fetch.Results, result *Result) error {
	for _, data := range res.Providers {
		for _, candidate := range data.Assets {
			if err := o.assetRepo.Upsert(candidate); err != nil {
				return err
			}
			result.CandidatesFound++
		}
	}
	return nil
}

// strategyFor loads the per-asset-type selection config, falling back to
// defaults when none is stored.
func (o *Orchestrator) strategyFor(assetType models.AssetType) selector.Strategy {
	cfg, err := o.strategyRepo.GetByAssetType(assetType)
	if err != nil {
		log.Printf("Enrich: strategy for %s: %v", assetType, err)
	}
	return selector.StrategyFrom(cfg)
}

// selectForType downloads and measures the top-ranked candidates for one
// artwork slot, then picks the winner.
func (o *Orchestrator) selectForType(ctx context.Context, movieID uuid.UUID, assetType models.AssetType, result *Result) error {
	candidates, err := o.assetRepo.ListByMovieAndType(movieID, assetType)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}
	strategy := o.strategyFor(assetType)

	// Measure the top of the provisional ranking: provider-declared
	// attributes order the queue, downloads refine it.
	ranked := make([]*models.AssetCandidate, len(candidates))
	copy(ranked, candidates)
	selector.SortCandidates(ranked, strategy)

	analyzed := 0
	for _, candidate := range ranked {
		if analyzed >= maxAnalyzedPerType {
			break
		}
		if candidate.ContentHash != nil {
			analyzed++ // already measured on a previous pass
			continue
		}
		if err := o.analyzeCandidate(ctx, movieID, candidate); err != nil {
			log.Printf("Enrich: analyze %s: %v", candidate.SourceURL, err)
			continue
		}
		analyzed++
	}

	sel := selector.Select(candidates, strategy)
	if sel == nil {
		return nil
	}
	if err := o.assetRepo.MarkSelected(movieID, assetType, sel.Candidate.ID, sel.Reason, sel.Score); err != nil {
		return err
	}
	result.Selected[assetType] = sel
	return nil
}

// analyzeCandidate downloads one artwork candidate, measures it, and lands
// the bytes in the content-addressed store.
func (o *Orchestrator) analyzeCandidate(ctx context.Context, movieID uuid.UUID, candidate *models.AssetCandidate) error {
	data, err := o.download(ctx, candidate.SourceURL)
	if err != nil {
		return err
	}

	analysis, err := imaging.AnalyzeBytes(data)
	if err != nil {
		return err
	}

	hash, _, err := o.store.Put(models.KindImage, data)
	if err != nil {
		return err
	}

	size := int64(len(data))
	aHash := imaging.FormatHash(analysis.AHash)
	dHash := imaging.FormatHash(analysis.DHash)
	candidate.ContentHash = &hash
	candidate.Width = &analysis.Width
	candidate.Height = &analysis.Height
	candidate.ByteSize = &size
	candidate.PerceptualHash = &aHash
	candidate.DifferenceHash = &dHash
	if err := o.assetRepo.UpdateAnalysis(candidate); err != nil {
		return err
	}

	assetType := candidate.AssetType
	return o.cacheRepo.Upsert(&models.CacheFile{
		ContentHash:    hash,
		Path:           o.store.PathFor(models.KindImage, hash),
		ByteSize:       size,
		Kind:           models.KindImage,
		PerceptualHash: &aHash,
		DifferenceHash: &dHash,
		MovieID:        &movieID,
		AssetType:      &assetType,
	})
}

// fetchActorThumbs replaces the cast list and pulls thumbnails with bounded
// concurrency. Entirely best-effort: a missing headshot is not a failure.
func (o *Orchestrator) fetchActorThumbs(ctx context.Context, movie *models.Movie, res *fetch.Results, result *Result) {
	if movie.IsFieldLocked(string(providers.FieldActors)) {
		return
	}
	credits := bestActors(res)
	if len(credits) == 0 {
		return
	}

	actors := make([]*models.Actor, len(credits))
	for i, c := range credits {
		actor := &models.Actor{ID: uuid.New(), MovieID: movie.ID, Name: c.Name}
		if c.Role != "" {
			role := c.Role
			actor.Role = &role
		}
		if c.ThumbURL != "" {
			thumb := c.ThumbURL
			actor.ThumbURL = &thumb
		}
		actors[i] = actor
	}
	if err := o.movieRepo.ReplaceActors(movie.ID, actors); err != nil {
		log.Printf("Enrich: replace actors for %s: %v", movie.ID, err)
		return
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	slots := make(chan struct{}, actorThumbWorkers)
	for _, actor := range actors {
		if actor.ThumbURL == nil {
			continue
		}
		wg.Add(1)
		slots <- struct{}{}
		go func(actor *models.Actor) {
			defer wg.Done()
			defer func() { <-slots }()
			if err := o.fetchActorThumb(ctx, actor); err != nil {
				log.Printf("Enrich: actor thumb %s: %v", actor.Name, err)
				return
			}
			mu.Lock()
			result.ActorThumbs++
			mu.Unlock()
		}(actor)
	}
	wg.Wait()
}

func (o *Orchestrator) fetchActorThumb(ctx context.Context, actor *models.Actor) error {
	data, err := o.download(ctx, *actor.ThumbURL)
	if err != nil {
		return err
	}
	hash, _, err := o.store.Put(models.KindImage, data)
	if err != nil {
		return err
	}
	if err := o.cacheRepo.Upsert(&models.CacheFile{
		ContentHash: hash,
		Path:        o.store.PathFor(models.KindImage, hash),
		ByteSize:    int64(len(data)),
		Kind:        models.KindImage,
		MovieID:     &actor.MovieID,
	}); err != nil {
		return err
	}
	return o.movieRepo.SetActorThumb(actor.ID, hash)
}

// analyzeTrailers measures trailer candidates that lack dimensions. ffprobe
// reads the stream headers over HTTP without downloading the whole file.
func (o *Orchestrator) analyzeTrailers(ctx context.Context, movieID uuid.UUID) {
	candidates, err := o.assetRepo.ListByMovieAndType(movieID, models.AssetTrailer)
	if err != nil {
		log.Printf("Enrich: list trailers for %s: %v", movieID, err)
		return
	}
	probed := 0
	for _, candidate := range candidates {
		if probed >= maxAnalyzedPerType {
			break
		}
		if candidate.Width != nil {
			continue
		}
		probe, err := o.probe.Probe(ctx, candidate.SourceURL)
		if err != nil {
			log.Printf("Enrich: probe trailer %s: %v", candidate.SourceURL, err)
			continue
		}
		probed++
		w, h := probe.GetVideoDimensions()
		if w == 0 || h == 0 {
			continue
		}
		candidate.Width = &w
		candidate.Height = &h
		if err := o.assetRepo.UpdateAnalysis(candidate); err != nil {
			log.Printf("Enrich: store trailer analysis: %v", err)
		}
	}
}

// selectTrailer picks the winning trailer and records its URL on the movie.
func (o *Orchestrator) selectTrailer(ctx context.Context, movie *models.Movie, result *Result) error {
	candidates, err := o.assetRepo.ListByMovieAndType(movie.ID, models.AssetTrailer)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	sel := selector.Select(candidates, o.strategyFor(models.AssetTrailer))
	if sel == nil {
		return nil
	}
	if err := o.assetRepo.MarkSelected(movie.ID, models.AssetTrailer, sel.Candidate.ID, sel.Reason, sel.Score); err != nil {
		return err
	}
	result.Selected[models.AssetTrailer] = sel

	if !movie.IsFieldLocked(string(providers.FieldTrailer)) &&
		(movie.TrailerURL == nil || *movie.TrailerURL != sel.Candidate.SourceURL) {
		url := sel.Candidate.SourceURL
		movie.TrailerURL = &url
		return o.movieRepo.UpdateMetadata(movie)
	}
	return nil
}

// download fetches a URL with the orchestrator's client, capped at
// maxDownloadBytes.
func (o *Orchestrator) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("download %s: exceeds %d bytes", url, maxDownloadBytes)
	}
	return data, nil
}
