package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/models"
)

// SyncTask identifies one SII sync request. The payload carries ids only;
// the worker resolves everything else through its own dependencies.
type SyncTask struct {
	EntityID string
	Desde    time.Time
	Hasta    time.Time
}

// EntitySyncer is implemented by sii.Syncer.
type EntitySyncer interface {
	Sync(ctx context.Context, entityID string, desde, hasta time.Time) (*models.SyncRun, error)
}

// SyncWorker drains queued SII syncs one at a time. Per-entity runs are
// serialized by the single drain goroutine.
type SyncWorker struct {
	syncer EntitySyncer
	tasks  chan SyncTask
	logger *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSyncWorker creates a new sync worker with the given queue size
func NewSyncWorker(syncer EntitySyncer, queueSize int, logger *zap.Logger) *SyncWorker {
	return &SyncWorker{
		syncer: syncer,
		tasks:  make(chan SyncTask, queueSize),
		logger: logger,
	}
}

// Name implements Worker
func (w *SyncWorker) Name() string { return "sii-sync" }

// Start begins draining the queue.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("sync worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	go w.loop(ctx)
	return nil
}

// Stop cancels the drain loop and waits for the in-flight task.
func (w *SyncWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
}

// Enqueue queues a sync without blocking. A full queue is reported to the
// caller instead of stalling the request handler.
func (w *SyncWorker) Enqueue(task SyncTask) error {
	select {
	case w.tasks <- task:
		return nil
	default:
		return fmt.Errorf("sync queue full")
	}
}

func (w *SyncWorker) loop(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.tasks:
			run, err := w.syncer.Sync(ctx, task.EntityID, task.Desde, task.Hasta)
			if err != nil {
				w.logger.Error("SII sync failed",
					zap.String("entity_id", task.EntityID),
					zap.Error(err))
				continue
			}
			w.logger.Info("SII sync finished",
				zap.String("entity_id", task.EntityID),
				zap.String("run_id", run.ID),
				zap.String("estado", run.Estado))
		}
	}
}
