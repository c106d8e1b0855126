package servicerequest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"servicedesk/internal/common/database"
	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/models"

	"github.com/lib/pq"
)

const (
	requestColumns = `code, submitted_at, category, title, description, priority, status, tenant_id, property_id, unit_id, room_id, worker_id, completed_at, media, version`
	auditColumns   = `id, request_code, created_at, actor_id, action, details, from_status, to_status, previous_worker_id, new_worker_id`

	pgUniqueViolation = "23505"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// PostgresStore persists requests in service_requests and their activity
// logs in service_request_audit. Update locks the request row for the
// duration of the mutation.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, req *models.ServiceRequest) error {
	media, err := encodeMedia(req.Media)
	if err != nil {
		return err
	}

	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO service_requests (`+requestColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			req.Code, req.SubmittedAt, req.Category, req.Title, req.Description,
			string(req.Priority), string(req.Status), req.TenantID,
			req.Property.PropertyID, req.Property.UnitID, req.Property.RoomID,
			nullString(req.WorkerID), nullTime(req.CompletedAt), media, req.Version,
		)
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		if err != nil {
			return apperrors.NewStoreFailedError("insert service request", err)
		}
		return insertAudit(ctx, tx, req.Code, req.ActivityLog)
	})
}

func (s *PostgresStore) Get(ctx context.Context, code string) (*models.ServiceRequest, error) {
	return s.load(ctx, s.db, code, false)
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*models.ServiceRequest, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if filter.Priority != "" {
		add("priority", string(filter.Priority))
	}
	if filter.WorkerID != "" {
		add("worker_id", filter.WorkerID)
	}
	if filter.TenantID != "" {
		add("tenant_id", filter.TenantID)
	}
	if filter.PropertyID != "" {
		add("property_id", filter.PropertyID)
	}

	query := `SELECT ` + requestColumns + ` FROM service_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(` ORDER BY submitted_at DESC, code DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreFailedError("list service requests", err)
	}
	defer rows.Close()

	var (
		out   []*models.ServiceRequest
		codes []string
	)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, apperrors.NewStoreFailedError("scan service request", err)
		}
		out = append(out, req)
		codes = append(codes, req.Code)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreFailedError("list service requests", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	logs, err := loadAudit(ctx, s.db, codes)
	if err != nil {
		return nil, err
	}
	for _, req := range out {
		req.ActivityLog = logs[req.Code]
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, code string, fn MutateFunc) (*models.ServiceRequest, error) {
	var result *models.ServiceRequest

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		orig, err := s.load(ctx, tx, code, true)
		if err != nil {
			return err
		}

		working := orig.Clone()
		if err := fn(working); err != nil {
			if errors.Is(err, ErrNoChange) {
				result = orig
				return nil
			}
			return err
		}

		added, err := appendedEntries(orig, working)
		if err != nil {
			return err
		}
		media, err := encodeMedia(working.Media)
		if err != nil {
			return err
		}

		working.Code = orig.Code
		working.Version = orig.Version + 1
		_, err = tx.ExecContext(ctx,
			`UPDATE service_requests
			    SET category = $2, title = $3, description = $4, priority = $5, status = $6,
			        property_id = $7, unit_id = $8, room_id = $9, worker_id = $10,
			        completed_at = $11, media = $12, version = $13
			  WHERE code = $1`,
			working.Code, working.Category, working.Title, working.Description,
			string(working.Priority), string(working.Status),
			working.Property.PropertyID, working.Property.UnitID, working.Property.RoomID,
			nullString(working.WorkerID), nullTime(working.CompletedAt), media, working.Version,
		)
		if err != nil {
			return apperrors.NewStoreFailedError("update service request", err)
		}

		if err := insertAudit(ctx, tx, working.Code, added); err != nil {
			return err
		}

		working.ActivityLog = append(append([]models.AuditEntry(nil), orig.ActivityLog...), added...)
		result = working
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) load(ctx context.Context, q queryer, code string, forUpdate bool) (*models.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE code = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	req, err := scanRequest(q.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("service request", code)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailedError("load service request", err)
	}

	logs, err := loadAudit(ctx, q, []string{code})
	if err != nil {
		return nil, err
	}
	req.ActivityLog = logs[code]
	return req, nil
}

func scanRequest(row rowScanner) (*models.ServiceRequest, error) {
	var (
		req         models.ServiceRequest
		priority    string
		status      string
		workerID    sql.NullString
		completedAt sql.NullTime
		media       []byte
	)
	err := row.Scan(
		&req.Code, &req.SubmittedAt, &req.Category, &req.Title, &req.Description,
		&priority, &status, &req.TenantID,
		&req.Property.PropertyID, &req.Property.UnitID, &req.Property.RoomID,
		&workerID, &completedAt, &media, &req.Version,
	)
	if err != nil {
		return nil, err
	}

	req.Priority = models.Priority(priority)
	req.Status = models.Status(status)
	req.WorkerID = workerID.String
	if completedAt.Valid {
		t := completedAt.Time
		req.CompletedAt = &t
	}
	if len(media) > 0 {
		if err := json.Unmarshal(media, &req.Media); err != nil {
			return nil, fmt.Errorf("decode media of %s: %w", req.Code, err)
		}
	}
	return &req, nil
}

func loadAudit(ctx context.Context, q queryer, codes []string) (map[string][]models.AuditEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM service_request_audit WHERE request_code = ANY($1) ORDER BY seq`,
		pq.Array(codes),
	)
	if err != nil {
		return nil, apperrors.NewStoreFailedError("load activity log", err)
	}
	defer rows.Close()

	out := make(map[string][]models.AuditEntry, len(codes))
	for rows.Next() {
		var (
			e                    models.AuditEntry
			action, fromSt, toSt string
		)
		if err := rows.Scan(&e.ID, &e.RequestCode, &e.Timestamp, &e.ActorID, &action, &e.Details,
			&fromSt, &toSt, &e.PreviousWorkerID, &e.NewWorkerID); err != nil {
			return nil, apperrors.NewStoreFailedError("scan activity log", err)
		}
		e.Action = models.Action(action)
		e.FromStatus = models.Status(fromSt)
		e.ToStatus = models.Status(toSt)
		out[e.RequestCode] = append(out[e.RequestCode], e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreFailedError("load activity log", err)
	}
	return out, nil
}

func insertAudit(ctx context.Context, q queryer, code string, entries []models.AuditEntry) error {
	for _, e := range entries {
		_, err := q.ExecContext(ctx,
			`INSERT INTO service_request_audit (`+auditColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			e.ID, code, e.Timestamp, e.ActorID, string(e.Action), e.Details,
			string(e.FromStatus), string(e.ToStatus), e.PreviousWorkerID, e.NewWorkerID,
		)
		if err != nil {
			return apperrors.NewStoreFailedError("append activity log", err)
		}
	}
	return nil
}

func encodeMedia(media []models.MediaRef) ([]byte, error) {
	if media == nil {
		media = []models.MediaRef{}
	}
	raw, err := json.Marshal(media)
	if err != nil {
		return nil, fmt.Errorf("encode media: %w", err)
	}
	return raw, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
