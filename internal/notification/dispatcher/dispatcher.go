// Package dispatcher turns request lifecycle events into notifications,
// filters them through the preference gate and hands survivors to delivery.
package dispatcher

import (
	"context"
	"errors"
	"time"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/common/logger"
	"servicedesk/internal/common/metrics"
	"servicedesk/internal/directory"
	"servicedesk/internal/models"
	"servicedesk/internal/notification/delivery"
	"servicedesk/internal/notification/gate"
	"servicedesk/internal/notification/preferences"
	"servicedesk/internal/notification/textgen"

	"github.com/google/uuid"
)

const DefaultTextGenTimeout = 3 * time.Second

type Dispatcher struct {
	prefs      preferences.Store
	delivery   delivery.Service
	workers    directory.WorkerDirectory
	properties directory.PropertyDirectory

	textgen        textgen.Generator
	textGenTimeout time.Duration

	defaultTimezone string
	logger          logger.Logger
	now             func() time.Time
}

type Option func(*Dispatcher)

// WithTextGenerator lets gen rewrite the templated copy, waiting at most
// timeout before falling back to the template.
func WithTextGenerator(gen textgen.Generator, timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.textgen = gen
		if timeout > 0 {
			d.textGenTimeout = timeout
		}
	}
}

func WithPropertyDirectory(pd directory.PropertyDirectory) Option {
	return func(d *Dispatcher) { d.properties = pd }
}

// WithDefaultTimezone applies tz to recipients that never chose one.
func WithDefaultTimezone(tz string) Option {
	return func(d *Dispatcher) { d.defaultTimezone = tz }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func New(prefs preferences.Store, svc delivery.Service, workers directory.WorkerDirectory, log logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		prefs:          prefs,
		delivery:       svc,
		workers:        workers,
		textGenTimeout: DefaultTextGenTimeout,
		logger:         log.WithFields(map[string]interface{}{"component": "notification-dispatcher"}),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish implements models.EventSink. It never returns an error to the
// mutation that produced the event.
func (d *Dispatcher) Publish(ctx context.Context, event models.LifecycleEvent) {
	for _, n := range d.compose(ctx, event) {
		d.dispatch(ctx, n, event.Type)
	}
}

type notification struct {
	event    models.NotificationEvent
	template string
	facts    map[string]interface{}
}

// compose builds one notification per stakeholder. Submissions notify
// nobody since the tenant filed the request themselves. Edits notify nobody.
func (d *Dispatcher) compose(ctx context.Context, event models.LifecycleEvent) []notification {
	req := event.Request
	facts := map[string]interface{}{
		"code":       req.Code,
		"title":      req.Title,
		"priority":   string(req.Priority),
		"status":     statusLabel(event.ToStatus),
		"fromStatus": statusLabel(event.FromStatus),
		"comment":    event.Comment,
		"property":   d.propertyLabel(ctx, req.Property),
	}

	type target struct {
		recipient string
		template  string
	}
	var targets []target

	switch event.Type {
	case models.EventStatusChanged:
		targets = append(targets, target{req.TenantID, tmplStatusTenant})
		if req.WorkerID != "" {
			targets = append(targets, target{req.WorkerID, tmplStatusWorker})
		}

	case models.EventAssignmentChanged:
		if event.PreviousWorkerID != "" {
			facts["previousWorker"] = d.workers.DisplayName(ctx, event.PreviousWorkerID)
			targets = append(targets, target{event.PreviousWorkerID, tmplUnassignedWorker})
		}
		if event.NewWorkerID != "" {
			facts["worker"] = d.workers.DisplayName(ctx, event.NewWorkerID)
			targets = append(targets, target{req.TenantID, tmplAssignedTenant})
			targets = append(targets, target{event.NewWorkerID, tmplAssignedWorker})
		} else {
			targets = append(targets, target{req.TenantID, tmplUnassignedTenant})
		}

	default:
		return nil
	}

	now := d.now().UTC()
	out := make([]notification, 0, len(targets))
	for _, t := range targets {
		if t.recipient == "" {
			continue
		}
		tmpl := templates[t.template]
		out = append(out, notification{
			event: models.NotificationEvent{
				ID:          uuid.NewString(),
				RecipientID: t.recipient,
				Category:    models.CategoryServiceRequestUpdates,
				Title:       renderTemplate(tmpl.Title, facts),
				Body:        renderTemplate(tmpl.Body, facts),
				RequestCode: req.Code,
				GeneratedAt: now,
			},
			template: t.template,
			facts:    facts,
		})
	}
	return out
}

func (d *Dispatcher) dispatch(ctx context.Context, n notification, eventType models.LifecycleEventType) {
	ev := n.event
	log := d.logger.WithFields(map[string]interface{}{
		"recipientId":    ev.RecipientID,
		"requestCode":    ev.RequestCode,
		"notificationId": ev.ID,
	})

	prefs, err := preferences.Load(ctx, d.prefs, ev.RecipientID)
	if err != nil {
		log.Error("failed to load notification preferences, dropping", map[string]interface{}{"error": err.Error()})
		metrics.NotificationsSuppressed.WithLabelValues(string(ev.Category)).Inc()
		return
	}
	if prefs.Timezone == "" {
		prefs.Timezone = d.defaultTimezone
	}

	channels := gate.Allow(prefs, ev.Category, d.now())
	if channels.Empty() {
		log.Debug("notification suppressed by preferences", nil)
		metrics.NotificationsSuppressed.WithLabelValues(string(ev.Category)).Inc()
		return
	}

	title, body := d.rewrite(ctx, n, eventType, prefs.DefaultTone)

	for _, ch := range channels {
		if err := d.delivery.Send(ctx, ev.RecipientID, ch, title, body); err != nil {
			metrics.NotificationsFailed.WithLabelValues(string(ch)).Inc()
			log.Warn("notification delivery failed", map[string]interface{}{
				"channel": string(ch),
				"error":   err.Error(),
			})
			continue
		}
		metrics.NotificationsSent.WithLabelValues(string(ch)).Inc()
	}
}

// rewrite asks the text generator for friendlier copy and falls back to the
// template on timeout or failure.
func (d *Dispatcher) rewrite(ctx context.Context, n notification, eventType models.LifecycleEventType, tone string) (string, string) {
	title, body := n.event.Title, n.event.Body
	if d.textgen == nil {
		return title, body
	}

	facts := make(map[string]string, len(n.facts))
	for k, v := range n.facts {
		if s, ok := v.(string); ok && s != "" {
			facts[k] = s
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, d.textGenTimeout)
	defer cancel()

	type result struct {
		title, body string
		err         error
	}
	done := make(chan result, 1)
	go func() {
		t, b, err := d.textgen.Generate(genCtx, textgen.Prompt{
			EventType: string(eventType),
			Tone:      tone,
			Title:     title,
			Body:      body,
			Facts:     facts,
		})
		done <- result{t, b, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-genCtx.Done():
		res.err = apperrors.NewTextGenerationTimeoutError(d.textGenTimeout)
	}

	if res.err != nil {
		reason := "error"
		if apperrors.CodeOf(res.err) == apperrors.ErrCodeTextGenerationTimeout || errors.Is(res.err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.TextGenFallbacks.WithLabelValues(reason).Inc()
		d.logger.Warn("text generation unavailable, using template", map[string]interface{}{
			"template": n.template,
			"reason":   reason,
			"error":    res.err.Error(),
		})
		return title, body
	}
	if res.title != "" {
		title = res.title
	}
	if res.body != "" {
		body = res.body
	}
	return title, body
}

func (d *Dispatcher) propertyLabel(ctx context.Context, ref models.PropertyRef) string {
	if d.properties == nil || ref.PropertyID == "" {
		return "your property"
	}
	label, err := d.properties.PropertyLabel(ctx, ref)
	if err != nil || label == "" {
		return "your property"
	}
	return label
}

func statusLabel(s models.Status) string {
	switch s {
	case models.StatusInProgress:
		return "In Progress"
	case models.StatusOnHold:
		return "On Hold"
	}
	return string(s)
}
