// internal/workers/servicerequest/assign-worker/handler.go
package assignworker

import (
	"context"
	"encoding/json"

	"servicedesk/internal/common/camunda"
	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/common/logger"
	"servicedesk/internal/common/metrics"
	"servicedesk/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "service-request-assign"

type Assigner interface {
	Assign(ctx context.Context, code, workerID, actorID string) (*models.ServiceRequest, error)
}

type Handler struct {
	config       *Config
	coordinator  Assigner
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, coordinator Assigner, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		coordinator:  coordinator,
		errorHandler: apperrors.NewErrorHandler(scoped),
		logger:       scoped,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := ParseInput(job.GetVariables())
	var output *Output
	if err == nil {
		output, err = h.Execute(ctx, input)
	}
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.CodeOf(err))).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output.Variables()); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"jobKey": job.GetKey(), "error": err.Error()})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func ParseInput(variables string) (*Input, error) {
	if err := inputSchema.Validate(variables); err != nil {
		return nil, err
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewValidationError("parse input: " + err.Error())
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	req, err := h.coordinator.Assign(ctx, input.RequestCode, input.WorkerID, input.ActorID)
	if err != nil {
		return nil, err
	}
	return &Output{
		RequestCode: req.Code,
		WorkerID:    req.WorkerID,
		Assigned:    req.HasWorker(),
	}, nil
}
