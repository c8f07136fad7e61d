package scheduler

import (
	"log"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/jobs"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/repository"
	"github.com/google/uuid"
)

// Scheduler enqueues periodic file-scan and provider-update jobs per
// library. It checks what is due on a fixed cadence; the per-library
// intervals live in scheduler_configs. Dedup keys on the queue keep a
// still-pending job from being enqueued twice.
type Scheduler struct {
	libRepo *repository.LibraryRepository
	cfgRepo *repository.SchedulerConfigRepository
	queue   *jobs.Queue

	checkInterval time.Duration
	stop          chan struct{}
}

func New(libRepo *repository.LibraryRepository, cfgRepo *repository.SchedulerConfigRepository, queue *jobs.Queue) *Scheduler {
	return &Scheduler{
		libRepo:       libRepo,
		cfgRepo:       cfgRepo,
		queue:         queue,
		checkInterval: 60 * time.Second,
		stop:          make(chan struct{}),
	}
}

// Start begins the ticker loop.
func (s *Scheduler) Start() {
	go s.run()
	log.Printf("Scheduler: started (check interval %s)", s.checkInterval)
}

func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) run() {
	// Initial check after a short delay so startup scans do not race the
	// stalled-job reset.
	select {
	case <-time.After(10 * time.Second):
		s.check()
	case <-s.stop:
		return
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.check()
		case <-s.stop:
			log.Println("Scheduler: stopped")
			return
		}
	}
}

func (s *Scheduler) check() {
	libs, err := s.libRepo.ListEnabled()
	if err != nil {
		log.Printf("Scheduler: list libraries: %v", err)
		return
	}

	now := time.Now()
	for _, lib := range libs {
		cfg, err := s.cfgRepo.GetByLibrary(lib.ID)
		if err != nil {
			log.Printf("Scheduler: config for %q: %v", lib.Name, err)
			continue
		}

		if cfg.FileScannerEnabled && due(cfg.LastFileScanAt, cfg.FileScannerIntervalHours, now) {
			log.Printf("Scheduler: library %q due for file scan", lib.Name)
			if _, err := s.enqueueFileScan(lib.ID, models.PriorityBackground, false); err != nil {
				log.Printf("Scheduler: enqueue file scan for %q: %v", lib.Name, err)
			}
		}

		if cfg.ProviderUpdaterEnabled && due(cfg.LastProviderUpdateAt, cfg.ProviderUpdaterIntervalHours, now) {
			log.Printf("Scheduler: library %q due for provider update", lib.Name)
			if _, err := s.enqueueProviderUpdate(lib.ID, models.PriorityBackground, false); err != nil {
				log.Printf("Scheduler: enqueue provider update for %q: %v", lib.Name, err)
			}
		}
	}
}

// due is true when the interval has elapsed; a never-run task is always due.
func due(last *time.Time, intervalHours int, now time.Time) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= time.Duration(intervalHours)*time.Hour
}

// TriggerScan enqueues an immediate file scan at interactive priority.
func (s *Scheduler) TriggerScan(libraryID uuid.UUID) (uuid.UUID, error) {
	return s.enqueueFileScan(libraryID, models.PriorityUser, true)
}

// TriggerProviderUpdate enqueues an immediate provider refresh.
func (s *Scheduler) TriggerProviderUpdate(libraryID uuid.UUID) (uuid.UUID, error) {
	return s.enqueueProviderUpdate(libraryID, models.PriorityUser, true)
}

func (s *Scheduler) enqueueFileScan(libraryID uuid.UUID, priority int, manual bool) (uuid.UUID, error) {
	id, err := s.queue.Add(models.JobFileScan, priority,
		jobs.FileScanPayload{LibraryID: libraryID},
		&jobs.AddOptions{Manual: manual, DedupKey: jobs.FileScanDedupKey(libraryID)})
	if err != nil {
		return uuid.Nil, err
	}
	if id != uuid.Nil {
		// Advance the watermark immediately so the next check does not
		// re-trigger while the job sits in the queue.
		if err := s.cfgRepo.MarkFileScan(libraryID); err != nil {
			log.Printf("Scheduler: mark file scan for %s: %v", libraryID, err)
		}
	}
	return id, nil
}

func (s *Scheduler) enqueueProviderUpdate(libraryID uuid.UUID, priority int, manual bool) (uuid.UUID, error) {
	id, err := s.queue.Add(models.JobProviderUpdate, priority,
		jobs.ProviderUpdatePayload{LibraryID: libraryID},
		&jobs.AddOptions{Manual: manual, DedupKey: jobs.ProviderUpdateDedupKey(libraryID)})
	if err != nil {
		return uuid.Nil, err
	}
	if id != uuid.Nil {
		if err := s.cfgRepo.MarkProviderUpdate(libraryID); err != nil {
			log.Printf("Scheduler: mark provider update for %s: %v", libraryID, err)
		}
	}
	return id, nil
}
