package servicerequest

import (
	"context"
	"errors"
	"testing"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	requestCols = []string{"code", "submitted_at", "category", "title", "description", "priority", "status", "tenant_id", "property_id", "unit_id", "room_id", "worker_id", "completed_at", "media", "version"}
	auditCols   = []string{"id", "request_code", "created_at", "actor_id", "action", "details", "from_status", "to_status", "previous_worker_id", "new_worker_id"}
)

const testCode = "SR-20250601-ABC123"

func requestRow(status models.Status, workerID interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(requestCols).AddRow(
		testCode, fixedNow, "Plumbing", "Leaking sink", "Water under sink", "High", string(status),
		"tenant-1", "prop-1", "4B", "", workerID, nil, []byte(`[{"url":"https://cdn.example.com/a.jpg"}]`), int64(2),
	)
}

func auditRow() *sqlmock.Rows {
	return sqlmock.NewRows(auditCols).AddRow(
		"0b7f0a8e-5d6c-4a43-9b1e-2f3c4d5e6f70", testCode, fixedNow, "tenant-1", "Submitted", "Request submitted", "", "Pending", "", "",
	)
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_Insert(t *testing.T) {
	store, mock := newMockStore(t)
	req := &models.ServiceRequest{
		Code: testCode, SubmittedAt: fixedNow, Description: "Water under sink",
		Priority: models.PriorityHigh, Status: models.StatusPending, TenantID: "tenant-1", Version: 1,
		ActivityLog: []models.AuditEntry{models.NewAuditEntry(testCode, "tenant-1", models.ActionSubmitted, fixedNow)},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO service_requests`).
		WithArgs(testCode, fixedNow, "", "", "Water under sink", "High", "Pending", "tenant-1", "", "", "",
			nil, nil, []byte("[]"), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO service_request_audit`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Insert(context.Background(), req))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO service_requests`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	err := store.Insert(context.Background(), &models.ServiceRequest{Code: testCode})
	assert.ErrorIs(t, err, ErrDuplicateCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM service_requests WHERE code = \$1$`).
		WithArgs(testCode).
		WillReturnRows(requestRow(models.StatusInProgress, "worker-7"))
	mock.ExpectQuery(`FROM service_request_audit WHERE request_code = ANY\(\$1\) ORDER BY seq`).
		WillReturnRows(auditRow())

	req, err := store.Get(context.Background(), testCode)
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, req.Status)
	assert.Equal(t, "worker-7", req.WorkerID)
	assert.Equal(t, models.PropertyRef{PropertyID: "prop-1", UnitID: "4B"}, req.Property)
	assert.Nil(t, req.CompletedAt)
	require.Len(t, req.Media, 1)
	assert.Equal(t, "https://cdn.example.com/a.jpg", req.Media[0].URL)
	require.Len(t, req.ActivityLog, 1)
	assert.Equal(t, models.ActionSubmitted, req.ActivityLog[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM service_requests WHERE code = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(requestCols))

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLocksRowAndAppends(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM service_requests WHERE code = \$1 FOR UPDATE`).
		WithArgs(testCode).
		WillReturnRows(requestRow(models.StatusPending, nil))
	mock.ExpectQuery(`FROM service_request_audit`).
		WillReturnRows(auditRow())
	mock.ExpectExec(`UPDATE service_requests`).
		WithArgs(testCode, "Plumbing", "Leaking sink", "Water under sink", "High", "InProgress",
			"prop-1", "4B", "", nil, nil, sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO service_request_audit`).
		WithArgs(sqlmock.AnyArg(), testCode, fixedNow, "manager-1", "StatusChanged", "", "Pending", "InProgress", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := store.Update(context.Background(), testCode, func(r *models.ServiceRequest) error {
		e := models.NewAuditEntry(r.Code, "manager-1", models.ActionStatusChanged, fixedNow)
		e.FromStatus, e.ToStatus = r.Status, models.StatusInProgress
		r.Status = models.StatusInProgress
		r.ActivityLog = append(r.ActivityLog, e)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), updated.Version)
	assert.Len(t, updated.ActivityLog, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRollsBackOnDomainError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(testCode).WillReturnRows(requestRow(models.StatusCompleted, nil))
	mock.ExpectQuery(`FROM service_request_audit`).WillReturnRows(auditRow())
	mock.ExpectRollback()

	_, err := store.Update(context.Background(), testCode, func(r *models.ServiceRequest) error {
		return apperrors.NewTerminalStateError(r.Code, string(r.Status))
	})
	assert.True(t, errors.Is(err, apperrors.ErrTerminalState))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateNoChangeCommitsNothing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(testCode).WillReturnRows(requestRow(models.StatusPending, "worker-7"))
	mock.ExpectQuery(`FROM service_request_audit`).WillReturnRows(auditRow())
	mock.ExpectCommit()

	got, err := store.Update(context.Background(), testCode, func(*models.ServiceRequest) error { return ErrNoChange })
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListFilters(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM service_requests WHERE status = \$1 AND priority = \$2 ORDER BY submitted_at DESC, code DESC LIMIT \$3`).
		WithArgs("Pending", "High", DefaultListLimit).
		WillReturnRows(requestRow(models.StatusPending, nil))
	mock.ExpectQuery(`FROM service_request_audit`).
		WillReturnRows(auditRow())

	out, err := store.List(context.Background(), Filter{Status: models.StatusPending, Priority: models.PriorityHigh})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Len(t, out[0].ActivityLog, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListEmptySkipsAuditQuery(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM service_requests ORDER BY`).
		WithArgs(MaxListLimit).
		WillReturnRows(sqlmock.NewRows(requestCols))

	out, err := store.List(context.Background(), Filter{Limit: 10000})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}
