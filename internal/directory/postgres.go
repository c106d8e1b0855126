package directory

import (
	"context"
	"database/sql"
	"errors"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/models"
)

// Postgres reads the workers, tenants, properties and contacts tables.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Lookup(ctx context.Context, workerID string) (models.Worker, error) {
	var w models.Worker
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, role, active, external FROM workers WHERE id = $1`, workerID,
	).Scan(&w.ID, &w.Name, &w.Role, &w.Active, &w.External)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Worker{}, apperrors.NewNotFoundError("worker", workerID)
	}
	if err != nil {
		return models.Worker{}, apperrors.NewStoreFailedError("lookup worker", err)
	}
	return w, nil
}

func (p *Postgres) DisplayName(ctx context.Context, workerID string) string {
	return displayName(ctx, p, workerID)
}

func (p *Postgres) TenantName(ctx context.Context, tenantID string) (string, error) {
	var name string
	err := p.db.QueryRowContext(ctx, `SELECT name FROM tenants WHERE id = $1`, tenantID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NewNotFoundError("tenant", tenantID)
	}
	if err != nil {
		return "", apperrors.NewStoreFailedError("lookup tenant", err)
	}
	return name, nil
}

func (p *Postgres) PropertyLabel(ctx context.Context, ref models.PropertyRef) (string, error) {
	var property, unit, room string
	err := p.db.QueryRowContext(ctx,
		`SELECT p.name, COALESCE(u.name, ''), COALESCE(r.name, '')
		   FROM properties p
		   LEFT JOIN units u ON u.id = $2 AND u.property_id = p.id
		   LEFT JOIN rooms r ON r.id = $3 AND r.unit_id = u.id
		  WHERE p.id = $1`,
		ref.PropertyID, ref.UnitID, ref.RoomID,
	).Scan(&property, &unit, &room)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NewNotFoundError("property", ref.PropertyID)
	}
	if err != nil {
		return "", apperrors.NewStoreFailedError("lookup property", err)
	}

	if unit == "" {
		unit = ref.UnitID
	}
	if room == "" {
		room = ref.RoomID
	}
	return joinLabel(property, unit, room), nil
}

func (p *Postgres) Contact(ctx context.Context, recipientID string) (models.Contact, error) {
	var c models.Contact
	err := p.db.QueryRowContext(ctx,
		`SELECT recipient_id, name, email, phone FROM contacts WHERE recipient_id = $1`, recipientID,
	).Scan(&c.RecipientID, &c.Name, &c.Email, &c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contact{}, apperrors.NewNotFoundError("contact", recipientID)
	}
	if err != nil {
		return models.Contact{}, apperrors.NewStoreFailedError("lookup contact", err)
	}
	return c, nil
}
