package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/models"
)

// Handler processes one claimed job. Handlers must be idempotent: crash
// recovery re-runs any job that was mid-flight.
type Handler func(ctx context.Context, job *models.Job) error

// Pool drains the queue with a single claiming coordinator feeding a
// bounded set of workers. Priorities order claims only; a running job is
// never preempted.
type Pool struct {
	queue        *Queue
	handlers     map[string]Handler
	concurrency  int
	pollInterval time.Duration

	// OnTerminal, when set, observes jobs that exhausted their retries.
	// Set before Run.
	OnTerminal func(job *models.Job, err error)

	mu      sync.Mutex
	running map[string]int
}

func NewPool(queue *Queue, concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		queue:        queue,
		handlers:     make(map[string]Handler),
		concurrency:  concurrency,
		pollInterval: time.Second,
		running:      make(map[string]int),
	}
}

// Handle registers the handler for a job kind. Must be called before Run.
func (p *Pool) Handle(kind string, h Handler) {
	p.handlers[kind] = h
}

// Running reports in-flight job counts by kind.
func (p *Pool) Running() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.running))
	for k, v := range p.running {
		out[k] = v
	}
	return out
}

func (p *Pool) track(kind string, delta int) {
	p.mu.Lock()
	p.running[kind] += delta
	if p.running[kind] <= 0 {
		delete(p.running, kind)
	}
	p.mu.Unlock()
}

// Run blocks until ctx is cancelled, then waits for in-flight jobs.
// Stalled jobs from a previous run are reset before the first claim.
func (p *Pool) Run(ctx context.Context) error {
	if _, err := p.queue.ResetStalled(); err != nil {
		return err
	}
	log.Printf("Queue: worker pool starting (concurrency %d)", p.concurrency)

	slots := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			log.Println("Queue: worker pool stopped")
			return nil
		case slots <- struct{}{}:
		}

		job, err := p.queue.PickNext()
		if err != nil {
			<-slots
			log.Printf("Queue: claim failed: %v", err)
			select {
			case <-ctx.Done():
				wg.Wait()
				return nil
			case <-ticker.C:
			}
			continue
		}
		if job == nil {
			<-slots
			select {
			case <-ctx.Done():
				wg.Wait()
				return nil
			case <-ticker.C:
			}
			continue
		}

		wg.Add(1)
		go func(job *models.Job) {
			defer wg.Done()
			defer func() { <-slots }()
			p.execute(ctx, job)
		}(job)
	}
}

func (p *Pool) execute(ctx context.Context, job *models.Job) {
	handler, ok := p.handlers[job.Kind]
	if !ok {
		log.Printf("Queue: no handler for kind %q, dropping job %s", job.Kind, job.ID)
		if err := p.queue.Complete(job.ID); err != nil {
			log.Printf("Queue: complete failed for %s: %v", job.ID, err)
		}
		return
	}

	p.track(job.Kind, 1)
	defer p.track(job.Kind, -1)

	started := time.Now()
	err := runHandler(ctx, handler, job)
	elapsed := time.Since(started).Round(time.Millisecond)

	if err != nil {
		// Cancellation is not a failure: the job goes back to pending with
		// its retry budget intact, same as crash recovery would leave it.
		if errors.Is(err, context.Canceled) {
			log.Printf("Queue: %s job %s cancelled after %s, releasing", job.Kind, job.ID, elapsed)
			if rerr := p.queue.Release(job.ID); rerr != nil {
				log.Printf("Queue: release failed for %s: %v", job.ID, rerr)
			}
			return
		}
		log.Printf("Queue: %s job %s failed after %s: %v", job.Kind, job.ID, elapsed, err)
		if ferr := p.queue.Fail(job.ID, err); ferr != nil {
			log.Printf("Queue: fail bookkeeping error for %s: %v", job.ID, ferr)
		}
		if job.RetryCount+1 >= job.MaxRetries && p.OnTerminal != nil {
			p.OnTerminal(job, err)
		}
		return
	}

	log.Printf("Queue: %s job %s completed in %s", job.Kind, job.ID, elapsed)
	if cerr := p.queue.Complete(job.ID); cerr != nil {
		log.Printf("Queue: complete failed for %s: %v", job.ID, cerr)
	}
}

// runHandler isolates handler panics so one bad job cannot take down the
// pool; a panic counts as a failure for retry purposes.
func runHandler(ctx context.Context, handler Handler, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}
