// internal/workers/servicerequest/search-requests/handler.go
package searchrequests

import (
	"context"
	"encoding/json"
	"errors"

	"servicedesk/internal/common/camunda"
	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/common/logger"
	"servicedesk/internal/common/metrics"
	"servicedesk/internal/models"
	"servicedesk/internal/search"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "service-request-search"

// Searcher is the query side of search.Indexer.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

type Handler struct {
	config       *Config
	searcher     Searcher
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, searcher Searcher, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		searcher:     searcher,
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
	q := search.Query{
		Text:       input.Query,
		TenantID:   input.TenantID,
		WorkerID:   input.WorkerID,
		PropertyID: input.PropertyID,
		From:       input.Pagination.From,
		Size:       input.Pagination.Size,
	}
	if input.Status != "" {
		st, err := models.ParseStatus(input.Status)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		q.Status = st
	}
	if input.Priority != "" {
		p, err := models.ParsePriority(input.Priority)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		q.Priority = p
	}

	res, err := h.searcher.Search(ctx, q)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("elasticsearch", err)
		}
		return nil, apperrors.NewExternalServiceError("elasticsearch", err)
	}

	h.logger.Debug("search completed", map[string]interface{}{"totalHits": res.Total})
	return &Output{Requests: res.Hits, TotalHits: res.Total}, nil
}
