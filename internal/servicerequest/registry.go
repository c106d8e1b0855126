// Package servicerequest owns the service request lifecycle: creation,
// edits, status transitions and the activity log written alongside them.
package servicerequest

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
	"servicedesk/internal/models"
)

const (
	maxCodeAttempts = 5
	maxTitleLength  = 80
)

type CreateInput struct {
	TenantID    string
	Property    models.PropertyRef
	Category    string
	Priority    models.Priority
	Title       string
	Description string
	Media       []models.MediaRef
	// ActorID defaults to TenantID.
	ActorID string
}

// EditInput carries the descriptive fields to overwrite; nil leaves a field
// unchanged.
type EditInput struct {
	Category    *string
	Priority    *models.Priority
	Title       *string
	Description *string
	ActorID     string
}

type Registry struct {
	store   Store
	sink    models.EventSink
	obs     *observability.Observability
	logger  logger.Logger
	now     func() time.Time
	newCode func(time.Time) string
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithCodeGenerator(gen func(time.Time) string) Option {
	return func(r *Registry) { r.newCode = gen }
}

func WithObservability(obs *observability.Observability) Option {
	return func(r *Registry) { r.obs = obs }
}

// NewRegistry builds a Registry. sink may be nil when nobody listens for
// lifecycle events.
func NewRegistry(store Store, sink models.EventSink, log logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		sink:    sink,
		obs:     observability.NewNoop(),
		logger:  log.WithFields(map[string]interface{}{"component": "service-request-registry"}),
		now:     time.Now,
		newCode: NewCode,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new request in Pending with a single Submitted entry.
func (r *Registry) Create(ctx context.Context, in CreateInput) (req *models.ServiceRequest, err error) {
	defer r.observe(ctx, "create", r.now(), &err)

	if strings.TrimSpace(in.TenantID) == "" {
		return nil, apperrors.NewValidationError("tenant is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, apperrors.NewValidationError("description must not be blank")
	}
	priority, err := models.ParsePriority(string(in.Priority))
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	actor := in.ActorID
	if actor == "" {
		actor = in.TenantID
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = summarize(in.Description)
	}

	now := r.now().UTC()
	req = &models.ServiceRequest{
		SubmittedAt: now,
		Category:    strings.TrimSpace(in.Category),
		Title:       title,
		Description: in.Description,
		Priority:    priority,
		Status:      models.StatusPending,
		TenantID:    in.TenantID,
		Property:    in.Property,
		Media:       append([]models.MediaRef(nil), in.Media...),
		Version:     1,
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		req.Code = r.newCode(now)
		entry := models.NewAuditEntry(req.Code, actor, models.ActionSubmitted, now)
		entry.Details = "Request submitted"
		entry.ToStatus = models.StatusPending
		req.ActivityLog = []models.AuditEntry{entry}

		err = r.store.Insert(ctx, req)
		if !errors.Is(err, ErrDuplicateCode) {
			break
		}
		r.logger.Warn("request code collision, regenerating", map[string]interface{}{"code": req.Code})
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("service request created", map[string]interface{}{
		"code":     req.Code,
		"tenantId": req.TenantID,
		"priority": string(req.Priority),
	})

	r.publish(ctx, models.LifecycleEvent{
		Type:       models.EventSubmitted,
		Request:    *req.Clone(),
		ActorID:    actor,
		ToStatus:   models.StatusPending,
		OccurredAt: now,
	})
	return req.Clone(), nil
}

// Edit overwrites descriptive fields. It writes no audit entry. When a field
// actually changes the version advances and an EventEdited is published so
// indexed snapshots catch up.
func (r *Registry) Edit(ctx context.Context, code string, in EditInput) (req *models.ServiceRequest, err error) {
	defer r.observe(ctx, "edit", r.now(), &err)

	var priority models.Priority
	if in.Priority != nil {
		if priority, err = models.ParsePriority(string(*in.Priority)); err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		return nil, apperrors.NewValidationError("description must not be blank")
	}

	changed := false
	req, err = r.store.Update(ctx, code, func(req *models.ServiceRequest) error {
		if req.Status.IsTerminal() {
			return apperrors.NewTerminalStateError(req.Code, string(req.Status))
		}

		if in.Category != nil && strings.TrimSpace(*in.Category) != req.Category {
			req.Category = strings.TrimSpace(*in.Category)
			changed = true
		}
		if in.Priority != nil && priority != req.Priority {
			req.Priority = priority
			changed = true
		}
		if in.Title != nil && strings.TrimSpace(*in.Title) != req.Title {
			req.Title = strings.TrimSpace(*in.Title)
			changed = true
		}
		if in.Description != nil && *in.Description != req.Description {
			req.Description = *in.Description
			changed = true
		}
		if !changed {
			return ErrNoChange
		}
		return nil
	})
	if err != nil || !changed {
		return req, err
	}

	r.logger.Info("service request edited", map[string]interface{}{
		"code":    code,
		"version": req.Version,
		"actor":   in.ActorID,
	})
	r.publish(ctx, models.LifecycleEvent{
		Type:             models.EventEdited,
		Request:          *req.Clone(),
		ActorID:          in.ActorID,
		FromStatus:       req.Status,
		ToStatus:         req.Status,
		PreviousWorkerID: req.WorkerID,
		NewWorkerID:      req.WorkerID,
		OccurredAt:       r.now().UTC(),
	})
	return req, nil
}

// ChangeStatus moves a request along the transition table and records a
// StatusChanged entry carrying comment.
func (r *Registry) ChangeStatus(ctx context.Context, code string, to models.Status, actorID, comment string) (req *models.ServiceRequest, err error) {
	defer r.observe(ctx, "change_status", r.now(), &err)

	if !to.Valid() {
		parsed, perr := models.ParseStatus(string(to))
		if perr != nil {
			return nil, apperrors.NewValidationError(perr.Error())
		}
		to = parsed
	}

	var from models.Status
	now := r.now().UTC()

	req, err = r.store.Update(ctx, code, func(req *models.ServiceRequest) error {
		from = req.Status
		if from.IsTerminal() {
			return apperrors.NewTerminalStateError(req.Code, string(from))
		}
		if !CanTransition(from, to) {
			return apperrors.NewInvalidTransitionError(req.Code, string(from), string(to))
		}

		req.Status = to
		if to == models.StatusCompleted {
			completed := now
			req.CompletedAt = &completed
		}

		entry := models.NewAuditEntry(req.Code, actorID, models.ActionStatusChanged, now)
		entry.FromStatus = from
		entry.ToStatus = to
		entry.Details = strings.TrimSpace(comment)
		req.ActivityLog = append(req.ActivityLog, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()
	r.logger.Info("service request status changed", map[string]interface{}{
		"code":  code,
		"from":  string(from),
		"to":    string(to),
		"actor": actorID,
	})

	r.publish(ctx, models.LifecycleEvent{
		Type:             models.EventStatusChanged,
		Request:          *req.Clone(),
		ActorID:          actorID,
		FromStatus:       from,
		ToStatus:         to,
		PreviousWorkerID: req.WorkerID,
		NewWorkerID:      req.WorkerID,
		Comment:          strings.TrimSpace(comment),
		OccurredAt:       now,
	})
	return req, nil
}

// AddNote appends a NoteAdded entry. Notes are accepted on terminal requests
// because they do not touch the lifecycle.
func (r *Registry) AddNote(ctx context.Context, code, actorID, note string) (req *models.ServiceRequest, err error) {
	defer r.observe(ctx, "add_note", r.now(), &err)

	note = strings.TrimSpace(note)
	if note == "" {
		return nil, apperrors.NewValidationError("note must not be blank")
	}

	now := r.now().UTC()
	return r.store.Update(ctx, code, func(req *models.ServiceRequest) error {
		entry := models.NewAuditEntry(req.Code, actorID, models.ActionNoteAdded, now)
		entry.Details = note
		req.ActivityLog = append(req.ActivityLog, entry)
		return nil
	})
}

func (r *Registry) Get(ctx context.Context, code string) (*models.ServiceRequest, error) {
	return r.store.Get(ctx, code)
}

// List returns matching requests, newest submission first.
func (r *Registry) List(ctx context.Context, filter Filter) ([]*models.ServiceRequest, error) {
	return r.store.List(ctx, filter)
}

func (r *Registry) publish(ctx context.Context, event models.LifecycleEvent) {
	if r.sink == nil {
		return
	}
	r.sink.Publish(ctx, event)
}

func (r *Registry) observe(ctx context.Context, op string, start time.Time, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = string(apperrors.CodeOf(*errp))
		if apperrors.IsCallerError(*errp) {
			metrics.RejectedMutations.WithLabelValues(op, outcome).Inc()
		} else {
			r.logger.Error("service request operation failed", map[string]interface{}{
				"operation": op,
				"error":     (*errp).Error(),
			})
		}
	}
	r.obs.RecordOperation(ctx, op, outcome, r.now().Sub(start))
}

func summarize(description string) string {
	s := strings.Join(strings.Fields(description), " ")
	if len(s) <= maxTitleLength {
		return s
	}
	cut := strings.LastIndex(s[:maxTitleLength], " ")
	if cut <= 0 {
		cut = maxTitleLength
	}
	return fmt.Sprintf("%s...", s[:cut])
}
