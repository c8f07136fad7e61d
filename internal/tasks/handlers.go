package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/JustinTDCT/MediaForge/internal/enrich"
	"github.com/JustinTDCT/MediaForge/internal/events"
	"github.com/JustinTDCT/MediaForge/internal/fetch"
	"github.com/JustinTDCT/MediaForge/internal/jobs"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/notify"
	"github.com/JustinTDCT/MediaForge/internal/providers"
	"github.com/JustinTDCT/MediaForge/internal/publish"
	"github.com/JustinTDCT/MediaForge/internal/repository"
	"github.com/JustinTDCT/MediaForge/internal/scanner"
	"github.com/google/uuid"
)

// providerUpdateBatch caps how many movies one providerUpdate job re-queues.
const providerUpdateBatch = 200

// Handlers glues job kinds to the pipeline stages. Each handler decodes its
// payload, runs one stage, and enqueues whatever comes next per the
// library's auto flags.
type Handlers struct {
	queue        *jobs.Queue
	libRepo      *repository.LibraryRepository
	movieRepo    *repository.MovieRepository
	activityRepo *repository.ActivityRepository
	scanner      *scanner.Scanner
	enricher     *enrich.Orchestrator
	publisher    *publish.Publisher
	notifier     *notify.PlayerNotifier
	hub          *events.Hub
}

func NewHandlers(
	queue *jobs.Queue,
	libRepo *repository.LibraryRepository,
	movieRepo *repository.MovieRepository,
	activityRepo *repository.ActivityRepository,
	sc *scanner.Scanner,
	enricher *enrich.Orchestrator,
	publisher *publish.Publisher,
	notifier *notify.PlayerNotifier,
	hub *events.Hub,
) *Handlers {
	return &Handlers{
		queue:        queue,
		libRepo:      libRepo,
		movieRepo:    movieRepo,
		activityRepo: activityRepo,
		scanner:      sc,
		enricher:     enricher,
		publisher:    publisher,
		notifier:     notifier,
		hub:          hub,
	}
}

// Register installs every handler on the pool and hooks terminal failures
// into the activity log.
func (h *Handlers) Register(pool *jobs.Pool) {
	pool.OnTerminal = func(job *models.Job, err error) {
		h.logActivity("job", fmt.Sprintf("%s job failed terminally: %v", job.Kind, err), nil)
	}
	pool.Handle(models.JobFileScan, h.handleFileScan)
	pool.Handle(models.JobProviderUpdate, h.handleProviderUpdate)
	pool.Handle(models.JobIdentify, h.handleIdentify)
	pool.Handle(models.JobEnrich, h.handleEnrich)
	pool.Handle(models.JobPublish, h.handlePublish)
	pool.Handle(models.JobNotifyPlayer, h.handleNotifyPlayer)
	pool.Handle(models.JobWebhookReceived, h.handleWebhookReceived)
}

func (h *Handlers) logActivity(category, message string, movieID *uuid.UUID) {
	if err := h.activityRepo.Log(category, message, movieID); err != nil {
		log.Printf("Tasks: activity log: %v", err)
	}
}

// ──────────────────── Scan ────────────────────

func (h *Handlers) handleFileScan(ctx context.Context, job *models.Job) error {
	var payload jobs.FileScanPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	library, err := h.libRepo.GetByID(payload.LibraryID)
	if err != nil {
		return err
	}

	result, err := h.scanner.ScanLibrary(ctx, library)
	if err != nil {
		return err
	}
	h.logActivity("scan", fmt.Sprintf("Library %q: %d found, %d added, %d removed",
		library.Name, result.Found, result.Added, result.Removed), nil)
	h.hub.Broadcast("scan:done", map[string]interface{}{
		"library_id": library.ID.String(),
		"found":      result.Found,
		"added":      result.Added,
		"removed":    result.Removed,
	})

	if !library.AutoEnrich {
		return nil
	}
	for _, movieID := range result.NewMovieIDs {
		movie, err := h.movieRepo.GetByID(movieID)
		if err != nil {
			continue
		}
		// Movies with an external ID go straight to enrichment; the rest
		// get an identification attempt first.
		kind, dedup := models.JobEnrich, jobs.EnrichDedupKey(movieID)
		var payload interface{} = jobs.EnrichPayload{MovieID: movieID, Priority: providers.PriorityBackground.Name}
		if movie.Status == models.StatusUnidentified {
			kind, dedup = models.JobIdentify, "identify:"+movieID.String()
			payload = jobs.IdentifyPayload{MovieID: movieID}
		}
		if _, err := h.queue.Add(kind, models.PriorityBackground, payload,
			&jobs.AddOptions{DedupKey: dedup}); err != nil {
			log.Printf("Tasks: chain %s for %s: %v", kind, movieID, err)
		}
	}
	return nil
}

// ──────────────────── Provider Update ────────────────────

func (h *Handlers) handleProviderUpdate(ctx context.Context, job *models.Job) error {
	var payload jobs.ProviderUpdatePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	// Refresh previously enriched movies; newly identified ones are picked
	// up by the scan chain already.
	movies, err := h.movieRepo.ListByStatus(payload.LibraryID, models.StatusEnriched, providerUpdateBatch)
	if err != nil {
		return err
	}

	queued := 0
	for _, movie := range movies {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !movie.Monitored {
			continue
		}
		id, err := h.queue.Add(models.JobEnrich, models.PriorityBackground,
			jobs.EnrichPayload{MovieID: movie.ID, Priority: providers.PriorityBackground.Name},
			&jobs.AddOptions{DedupKey: jobs.EnrichDedupKey(movie.ID)})
		if err != nil {
			return err
		}
		if id != uuid.Nil {
			queued++
		}
	}
	log.Printf("Tasks: provider update for library %s queued %d refreshes", payload.LibraryID, queued)
	return nil
}

// ──────────────────── Identify ────────────────────

func (h *Handlers) handleIdentify(ctx context.Context, job *models.Job) error {
	var payload jobs.IdentifyPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	var year *int
	if payload.Year > 0 {
		year = &payload.Year
	}
	match, err := h.enricher.Identify(ctx, payload.MovieID, payload.Query, year, priorityFor(job))
	if err != nil {
		return err
	}
	h.logActivity("identify", fmt.Sprintf("Matched %q via %s", match.Title, match.Provider), &payload.MovieID)

	_, err = h.queue.Add(models.JobEnrich, job.Priority,
		jobs.EnrichPayload{MovieID: payload.MovieID, Priority: priorityFor(job).Name},
		&jobs.AddOptions{DedupKey: jobs.EnrichDedupKey(payload.MovieID)})
	return err
}

// ──────────────────── Enrich ────────────────────

func (h *Handlers) handleEnrich(ctx context.Context, job *models.Job) error {
	var payload jobs.EnrichPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	prio := providers.PriorityBackground
	if payload.Priority == providers.PriorityUser.Name {
		prio = providers.PriorityUser
	}

	progress := &fetch.Progress{
		OnStart: func(provider string) {
			h.hub.Broadcast("enrich:provider", map[string]interface{}{
				"movie_id": payload.MovieID.String(), "provider": provider, "state": "started"})
		},
		OnComplete: func(provider string) {
			h.hub.Broadcast("enrich:provider", map[string]interface{}{
				"movie_id": payload.MovieID.String(), "provider": provider, "state": "complete"})
		},
		OnTimeout: func(provider string) {
			h.hub.Broadcast("enrich:provider", map[string]interface{}{
				"movie_id": payload.MovieID.String(), "provider": provider, "state": "timeout"})
		},
		OnFailure: func(provider string, err error) {
			h.hub.Broadcast("enrich:provider", map[string]interface{}{
				"movie_id": payload.MovieID.String(), "provider": provider, "state": "failed",
				"error": err.Error()})
		},
	}

	result, err := h.enricher.Enrich(ctx, payload.MovieID, prio, progress)
	if err != nil {
		return err
	}
	h.logActivity("enrich", fmt.Sprintf("Enriched: %d providers, %d fields, %d assets selected",
		len(result.Completed), result.FieldsUpdated, len(result.Selected)), &payload.MovieID)

	movie, err := h.movieRepo.GetByID(payload.MovieID)
	if err != nil {
		return err
	}
	library, err := h.libRepo.GetByID(movie.LibraryID)
	if err != nil {
		return err
	}
	if !library.AutoPublish {
		return nil
	}
	_, err = h.queue.Add(models.JobPublish, job.Priority,
		jobs.PublishPayload{MovieID: payload.MovieID},
		&jobs.AddOptions{DedupKey: jobs.PublishDedupKey(payload.MovieID)})
	return err
}

// ──────────────────── Publish ────────────────────

func (h *Handlers) handlePublish(ctx context.Context, job *models.Job) error {
	var payload jobs.PublishPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	result, err := h.publisher.Publish(ctx, payload.MovieID)
	if err != nil {
		return err
	}
	h.logActivity("publish", fmt.Sprintf("Published: %d copied, %d renamed, %d deleted",
		result.Copied, result.Renamed, result.Deleted), &payload.MovieID)
	h.hub.Broadcast("publish:done", map[string]interface{}{
		"movie_id": payload.MovieID.String(),
		"changed":  result.Changed,
	})

	// Only an actual file change is worth a player refresh.
	if !result.Changed || !h.notifier.Enabled() {
		return nil
	}
	_, err = h.queue.Add(models.JobNotifyPlayer, job.Priority,
		jobs.NotifyPlayerPayload{MovieID: payload.MovieID, Paths: result.Paths}, nil)
	return err
}

// ──────────────────── Notify ────────────────────

func (h *Handlers) handleNotifyPlayer(ctx context.Context, job *models.Job) error {
	var payload jobs.NotifyPlayerPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return h.notifier.LibraryUpdated(ctx, payload.MovieID, payload.Paths)
}

// ──────────────────── Webhook ────────────────────

// handleWebhookReceived reacts to an external "library changed" ping by
// scheduling a scan at webhook priority.
func (h *Handlers) handleWebhookReceived(ctx context.Context, job *models.Job) error {
	var payload jobs.WebhookReceivedPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if payload.LibraryID == uuid.Nil {
		log.Printf("Tasks: webhook event %q without library, ignoring", payload.Event)
		return nil
	}
	_, err := h.queue.Add(models.JobFileScan, models.PriorityWebhook,
		jobs.FileScanPayload{LibraryID: payload.LibraryID},
		&jobs.AddOptions{DedupKey: jobs.FileScanDedupKey(payload.LibraryID)})
	return err
}

// priorityFor maps a queue priority back onto a provider priority class.
func priorityFor(job *models.Job) providers.Priority {
	if job.Priority == models.PriorityUser {
		return providers.PriorityUser
	}
	return providers.PriorityBackground
}
