// internal/workers/servicerequest/create-request/handler.go
package createrequest

import (
	"context"
	"encoding/json"

	"servicedesk/internal/common/camunda"
	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/common/logger"
	"servicedesk/internal/common/metrics"
	"servicedesk/internal/models"
	"servicedesk/internal/servicerequest"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "service-request-create"

// Creator is the part of servicerequest.Registry this worker drives.
type Creator interface {
	Create(ctx context.Context, in servicerequest.CreateInput) (*models.ServiceRequest, error)
}

type Handler struct {
	config       *Config
	registry     Creator
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, registry Creator, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		registry:     registry,
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

// ParseInput validates raw job variables against the input schema.
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
	req, err := h.registry.Create(ctx, servicerequest.CreateInput{
		TenantID: input.TenantID,
		Property: models.PropertyRef{
			PropertyID: input.PropertyID,
			UnitID:     input.UnitID,
			RoomID:     input.RoomID,
		},
		Category:    input.Category,
		Priority:    models.Priority(input.Priority),
		Title:       input.Title,
		Description: input.Description,
		Media:       input.Media,
		ActorID:     input.ActorID,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("service request created from process", map[string]interface{}{"code": req.Code})
	return &Output{
		RequestCode: req.Code,
		Status:      string(req.Status),
		Title:       req.Title,
		SubmittedAt: req.SubmittedAt,
	}, nil
}
