package preferences

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/models"
)

const preferenceColumns = `recipient_id, master_enabled, rent_reminders, service_request_updates,
	general_announcements, email, sms, in_app, quiet_hours_start, quiet_hours_end,
	timezone, default_tone, updated_at`

type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) Get(ctx context.Context, recipientID string) (models.NotificationPreferences, error) {
	var (
		p          models.NotificationPreferences
		start, end sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT `+preferenceColumns+` FROM notification_preferences WHERE recipient_id = $1`,
		recipientID,
	).Scan(
		&p.RecipientID, &p.MasterEnabled, &p.RentReminders, &p.ServiceRequestUpdates,
		&p.GeneralAnnouncements, &p.Email, &p.SMS, &p.InApp, &start, &end,
		&p.Timezone, &p.DefaultTone, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NotificationPreferences{}, apperrors.NewNotFoundError("notification preferences", recipientID)
	}
	if err != nil {
		return models.NotificationPreferences{}, apperrors.NewStoreFailedError("load preferences", err)
	}

	if p.QuietHoursStart, err = parseNullTime(start); err != nil {
		return models.NotificationPreferences{}, apperrors.NewStoreFailedError("decode quiet_hours_start", err)
	}
	if p.QuietHoursEnd, err = parseNullTime(end); err != nil {
		return models.NotificationPreferences{}, apperrors.NewStoreFailedError("decode quiet_hours_end", err)
	}
	return p, nil
}

// Replace upserts the whole record in one statement.
func (s *PostgresStore) Replace(ctx context.Context, prefs models.NotificationPreferences) error {
	if err := Validate(prefs); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_preferences (`+preferenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (recipient_id) DO UPDATE SET
			master_enabled = EXCLUDED.master_enabled,
			rent_reminders = EXCLUDED.rent_reminders,
			service_request_updates = EXCLUDED.service_request_updates,
			general_announcements = EXCLUDED.general_announcements,
			email = EXCLUDED.email,
			sms = EXCLUDED.sms,
			in_app = EXCLUDED.in_app,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			timezone = EXCLUDED.timezone,
			default_tone = EXCLUDED.default_tone,
			updated_at = EXCLUDED.updated_at`,
		prefs.RecipientID, prefs.MasterEnabled, prefs.RentReminders, prefs.ServiceRequestUpdates,
		prefs.GeneralAnnouncements, prefs.Email, prefs.SMS, prefs.InApp,
		formatNullTime(prefs.QuietHoursStart), formatNullTime(prefs.QuietHoursEnd),
		prefs.Timezone, prefs.DefaultTone, s.now().UTC(),
	)
	if err != nil {
		return apperrors.NewStoreFailedError("replace preferences", err)
	}
	return nil
}

func parseNullTime(s sql.NullString) (*models.TimeOfDay, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := models.ParseTimeOfDay(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatNullTime(t *models.TimeOfDay) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.String(), Valid: true}
}
