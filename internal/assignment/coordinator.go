// Package assignment binds workers to service requests and keeps the
// activity log consistent with every assignment change.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/common/logger"
	"servicedesk/internal/common/metrics"
	"servicedesk/internal/common/observability"
	"servicedesk/internal/directory"
	"servicedesk/internal/models"
	"servicedesk/internal/servicerequest"
)

type Coordinator struct {
	store   servicerequest.Store
	workers directory.WorkerDirectory
	sink    models.EventSink
	obs     *observability.Observability
	logger  logger.Logger
	now     func() time.Time
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithObservability(obs *observability.Observability) Option {
	return func(c *Coordinator) { c.obs = obs }
}

func NewCoordinator(store servicerequest.Store, workers directory.WorkerDirectory, sink models.EventSink, log logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		workers: workers,
		sink:    sink,
		obs:     observability.NewNoop(),
		logger:  log.WithFields(map[string]interface{}{"component": "assignment-coordinator"}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Assign binds workerID to the request, or unbinds the current worker when
// workerID is empty. Assigning the current worker again changes nothing and
// returns the stored request. Status is never touched. A closed request is
// rejected before the worker is looked up.
func (c *Coordinator) Assign(ctx context.Context, code, workerID, actorID string) (req *models.ServiceRequest, err error) {
	start := c.now()
	defer c.observe(ctx, start, &err)

	workerID = strings.TrimSpace(workerID)

	var (
		previous string
		action   models.Action
		changed  bool
	)
	now := start.UTC()

	req, err = c.store.Update(ctx, code, func(req *models.ServiceRequest) error {
		if req.Status.IsTerminal() {
			return apperrors.NewTerminalStateError(req.Code, string(req.Status))
		}
		if req.WorkerID == workerID {
			return servicerequest.ErrNoChange
		}

		newName := ""
		if workerID != "" {
			w, lerr := c.workers.Lookup(ctx, workerID)
			if lerr != nil {
				return lerr
			}
			if !w.Active {
				return apperrors.NewValidationError(fmt.Sprintf("worker %s is not active", workerID))
			}
			newName = w.Name
		}

		previous = req.WorkerID
		entry := models.NewAuditEntry(req.Code, actorID, models.ActionWorkerAssigned, now)
		if previous == "" {
			entry.Details = fmt.Sprintf("Assigned to %s", newName)
		} else {
			entry.Action = models.ActionWorkerReassigned
			prevName := c.workers.DisplayName(ctx, previous)
			if workerID == "" {
				entry.Details = fmt.Sprintf("Unassigned from %s", prevName)
			} else {
				entry.Details = fmt.Sprintf("Reassigned from %s to %s", prevName, newName)
			}
		}
		entry.PreviousWorkerID = previous
		entry.NewWorkerID = workerID
		action = entry.Action

		req.WorkerID = workerID
		req.ActivityLog = append(req.ActivityLog, entry)
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		c.logger.Debug("assignment unchanged", map[string]interface{}{"code": code, "workerId": workerID})
		return req, nil
	}

	label := "assigned"
	switch {
	case workerID == "":
		label = "unassigned"
	case action == models.ActionWorkerReassigned:
		label = "reassigned"
	}
	metrics.Assignments.WithLabelValues(label).Inc()
	c.logger.Info("service request assignment changed", map[string]interface{}{
		"code":             code,
		"previousWorkerId": previous,
		"newWorkerId":      workerID,
		"actor":            actorID,
	})

	if c.sink != nil {
		c.sink.Publish(ctx, models.LifecycleEvent{
			Type:             models.EventAssignmentChanged,
			Request:          *req.Clone(),
			ActorID:          actorID,
			FromStatus:       req.Status,
			ToStatus:         req.Status,
			PreviousWorkerID: previous,
			NewWorkerID:      workerID,
			OccurredAt:       now,
		})
	}
	return req, nil
}

func (c *Coordinator) observe(ctx context.Context, start time.Time, errp *error) {
	outcome := "ok"
	if err := *errp; err != nil {
		outcome = string(apperrors.CodeOf(err))
		if apperrors.IsCallerError(err) {
			metrics.RejectedMutations.WithLabelValues("assign", outcome).Inc()
		} else if !errors.Is(err, context.Canceled) {
			c.logger.Error("assignment failed", map[string]interface{}{"error": err.Error()})
		}
	}
	c.obs.RecordOperation(ctx, "assign", outcome, c.now().Sub(start))
}
