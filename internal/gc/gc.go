package gc

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/cache"
	"github.com/JustinTDCT/MediaForge/internal/repository"
	"github.com/robfig/cron/v3"
)

// activityRetentionDays is how long activity log rows are kept.
const activityRetentionDays = 90

// Collector reclaims storage nightly: purges soft-deleted movies past the
// retention window, removes orphaned cache files, and prunes the activity
// log.
type Collector struct {
	movieRepo     *repository.MovieRepository
	assetRepo     *repository.AssetRepository
	cacheRepo     *repository.CacheFileRepository
	activityRepo  *repository.ActivityRepository
	store         *cache.Store
	retentionDays int

	cron *cron.Cron
}

func New(
	movieRepo *repository.MovieRepository,
	assetRepo *repository.AssetRepository,
	cacheRepo *repository.CacheFileRepository,
	activityRepo *repository.ActivityRepository,
	store *cache.Store,
	retentionDays int,
) *Collector {
	return &Collector{
		movieRepo:     movieRepo,
		assetRepo:     assetRepo,
		cacheRepo:     cacheRepo,
		activityRepo:  activityRepo,
		store:         store,
		retentionDays: retentionDays,
	}
}

// Start schedules the nightly run at 03:00 local time.
func (c *Collector) Start() error {
	c.cron = cron.New()
	if _, err := c.cron.AddFunc("0 3 * * *", c.Run); err != nil {
		return err
	}
	c.cron.Start()
	log.Printf("GC: scheduled daily at 03:00 (retention %d days)", c.retentionDays)
	return nil
}

func (c *Collector) Stop() {
	if c.cron != nil {
		c.cron.Stop()
	}
}

// Run executes one full collection pass. Each stage is independent; a
// failure in one never blocks the others.
func (c *Collector) Run() {
	start := time.Now()
	purged := c.purgeDeletedMovies()
	stale := c.sweepStaleCandidates()
	orphans := c.sweepOrphanedCacheFiles()
	unreferenced := c.sweepUnreferencedDiskFiles()
	pruned := c.pruneActivityLog()

	log.Printf("GC: pass done in %s: %d movies purged, %d stale candidates, %d orphans, %d unreferenced files, %d log rows",
		time.Since(start).Round(time.Millisecond), purged, stale, orphans, unreferenced, pruned)
}

// purgeDeletedMovies hard-deletes movies soft-deleted longer ago than the
// retention window. Candidate and file rows go with them via FK cascade.
func (c *Collector) purgeDeletedMovies() int {
	cutoff := time.Now().AddDate(0, 0, -c.retentionDays)
	movies, err := c.movieRepo.ListDeletedBefore(cutoff)
	if err != nil {
		log.Printf("GC: list deleted movies: %v", err)
		return 0
	}

	purged := 0
	for _, movie := range movies {
		if err := c.movieRepo.Purge(movie.ID); err != nil {
			log.Printf("GC: purge movie %s: %v", movie.ID, err)
			continue
		}
		purged++
	}
	return purged
}

// sweepStaleCandidates drops losing asset candidates older than the
// retention window. Their cache content, once unreferenced, falls to the
// orphan sweep that follows.
func (c *Collector) sweepStaleCandidates() int {
	cutoff := time.Now().AddDate(0, 0, -c.retentionDays)
	n, err := c.assetRepo.DeleteUnselectedBefore(cutoff)
	if err != nil {
		log.Printf("GC: sweep stale candidates: %v", err)
		return 0
	}
	return n
}

// sweepOrphanedCacheFiles deletes cache content no library file references
// anymore, both from disk and from the catalog.
func (c *Collector) sweepOrphanedCacheFiles() int {
	orphans, err := c.cacheRepo.ListOrphans()
	if err != nil {
		log.Printf("GC: list orphans: %v", err)
		return 0
	}

	removed := 0
	for _, f := range orphans {
		if err := c.store.Delete(f.Kind, f.ContentHash); err != nil {
			log.Printf("GC: delete cache file %s: %v", f.ContentHash, err)
			continue
		}
		if err := c.cacheRepo.DeleteByHash(f.ContentHash); err != nil {
			log.Printf("GC: delete cache row %s: %v", f.ContentHash, err)
			continue
		}
		removed++
	}
	return removed
}

// sweepUnreferencedDiskFiles removes store files the catalog has no row
// for — leftovers from crashed runs.
func (c *Collector) sweepUnreferencedDiskFiles() int {
	removed := 0
	err := c.store.Walk(func(path string, size int64) error {
		hash := filepath.Base(path)
		f, err := c.cacheRepo.GetByHash(hash)
		if err != nil {
			return err
		}
		if f != nil {
			return nil
		}
		if err := os.Remove(path); err != nil {
			log.Printf("GC: remove unreferenced %s: %v", path, err)
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		log.Printf("GC: walk cache: %v", err)
	}
	return removed
}

func (c *Collector) pruneActivityLog() int {
	n, err := c.activityRepo.DeleteOlderThan(activityRetentionDays)
	if err != nil {
		log.Printf("GC: prune activity log: %v", err)
		return 0
	}
	return n
}
