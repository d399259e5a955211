package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/config"
)

// ErrDocumentInFlight is returned when a document is already being ingested.
var ErrDocumentInFlight = errors.New("document is already being ingested")

// Orchestrator manages the document ingestion pipeline.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	worker *Worker
	log    *slog.Logger
	cfg    config.Config

	mu       sync.Mutex
	inFlight map[string]string // doc id → job id

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, worker *Worker, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		worker:   worker,
		log:      log,
		cfg:      cfg,
		inFlight: make(map[string]string),
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.worker.Process(workerCtx, job)
					o.release(job)
				}
			}
		}()
	}

	o.log.Info("pipeline started", "workers", o.cfg.WorkerCount, "queue_size", o.cfg.MaxQueueSize)

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing. Re-indexing of one document is
// serialized: a second submit for a document still in flight is rejected.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	if running, ok := o.inFlight[job.DocID]; ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s (job %s)", ErrDocumentInFlight, job.DocID, running)
	}
	o.inFlight[job.DocID] = job.ID
	o.mu.Unlock()

	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		o.log.Warn("job queue full, rejecting", "job_id", job.ID, "doc_id", job.DocID)
		o.release(job)
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

func (o *Orchestrator) release(job *Job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[job.DocID] == job.ID {
		delete(o.inFlight, job.DocID)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Worker returns the worker shared by all pipeline goroutines.
func (o *Orchestrator) Worker() *Worker {
	return o.worker
}
