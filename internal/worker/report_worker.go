package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ReportGenerator is implemented by reportes.Service.
type ReportGenerator interface {
	GenerateData(reporteID string) error
}

// ReportWorker generates queued reports in the background. It implements
// reportes.Dispatcher, so the report service hands freshly created report
// ids straight here.
type ReportWorker struct {
	generator ReportGenerator
	tasks     chan string
	logger    *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReportWorker creates a new report worker with the given queue size
func NewReportWorker(generator ReportGenerator, queueSize int, logger *zap.Logger) *ReportWorker {
	return &ReportWorker{
		generator: generator,
		tasks:     make(chan string, queueSize),
		logger:    logger,
	}
}

// Name implements Worker
func (w *ReportWorker) Name() string { return "report-generator" }

// DispatchReport implements reportes.Dispatcher.
func (w *ReportWorker) DispatchReport(reporteID string) error {
	select {
	case w.tasks <- reporteID:
		return nil
	default:
		return fmt.Errorf("report queue full")
	}
}

// Start begins draining the queue.
func (w *ReportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("report worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	go w.loop(ctx)
	return nil
}

// Stop cancels the drain loop and waits for the in-flight report.
func (w *ReportWorker) Stop() {
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

func (w *ReportWorker) loop(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case reporteID := <-w.tasks:
			// GenerateData records build failures on the report row
			// itself. An error here means even that write failed, so
			// the log is the only trace left.
			if err := w.generator.GenerateData(reporteID); err != nil {
				w.logger.Error("Report generation failed",
					zap.String("reporte_id", reporteID),
					zap.Error(err))
				continue
			}
			w.logger.Info("Report generated", zap.String("reporte_id", reporteID))
		}
	}
}
