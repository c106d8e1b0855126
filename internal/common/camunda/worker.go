// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"servicedesk/internal/common/logger"
	"servicedesk/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler completes, fails or throws the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for taskType. Timeout is the job activation
// timeout handed to the broker.
func NewWorker(
	client zbc.Client,
	taskType string,
	maxJobsActive int,
	timeout time.Duration,
	handler JobHandler,
	log logger.Logger,
) *CamundaWorker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(instrument(taskType, handler)).
		MaxJobsActive(maxJobsActive).
		Timeout(timeout).
		Name(taskType).
		Open()

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   log.WithFields(map[string]interface{}{"taskType": taskType}),
		taskType: taskType,
	}
}

func instrument(taskType string, handler JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		start := time.Now()
		defer func() {
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		}()
		handler.Handle(client, job)
	}
}

func (w *CamundaWorker) Start() {
	w.logger.Info("worker started", nil)
}

// Stop closes the job worker and waits for in-flight jobs. The shared Zeebe
// client is closed by its owner.
func (w *CamundaWorker) Stop(ctx context.Context) {
	w.logger.Info("stopping worker", nil)
	done := make(chan struct{})
	go func() {
		w.worker.Close()
		w.worker.AwaitClose()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("worker stop timed out", nil)
	}
}
