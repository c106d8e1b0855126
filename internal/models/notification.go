// internal/models/notification.go
package models

import (
	"fmt"
	"time"
)

// Category groups notifications for preference gating.
type Category string

const (
	CategoryRentReminders         Category = "rentReminders"
	CategoryServiceRequestUpdates Category = "serviceRequestUpdates"
	CategoryGeneralAnnouncements  Category = "generalAnnouncements"
)

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelInApp Channel = "inApp"
)

// AllChannels is the fixed evaluation order used by the gate and the dispatcher.
var AllChannels = []Channel{ChannelEmail, ChannelSMS, ChannelInApp}

// TimeOfDay is minutes past local midnight, 0..1439.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return NewTimeOfDay(h, m), nil
}

// TimeOfDayOf truncates t to hour and minute in t's own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// NotificationPreferences is the single live settings record of a recipient.
type NotificationPreferences struct {
	RecipientID   string `json:"recipientId"`
	MasterEnabled bool   `json:"masterEnabled"`

	RentReminders         bool `json:"rentReminders"`
	ServiceRequestUpdates bool `json:"serviceRequestUpdates"`
	GeneralAnnouncements  bool `json:"generalAnnouncements"`

	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	InApp bool `json:"inApp"`

	QuietHoursStart *TimeOfDay `json:"quietHoursStart,omitempty"`
	QuietHoursEnd   *TimeOfDay `json:"quietHoursEnd,omitempty"`
	Timezone        string     `json:"timezone,omitempty"`
	DefaultTone     string     `json:"defaultTone,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultPreferences is what a newly onboarded recipient starts with.
func DefaultPreferences(recipientID string) NotificationPreferences {
	return NotificationPreferences{
		RecipientID:           recipientID,
		MasterEnabled:         true,
		RentReminders:         true,
		ServiceRequestUpdates: true,
		GeneralAnnouncements:  true,
		Email:                 true,
		SMS:                   true,
		InApp:                 true,
		DefaultTone:           "friendly",
	}
}

// CategoryEnabled reads the flag for c; unknown categories are disabled.
func (p NotificationPreferences) CategoryEnabled(c Category) bool {
	switch c {
	case CategoryRentReminders:
		return p.RentReminders
	case CategoryServiceRequestUpdates:
		return p.ServiceRequestUpdates
	case CategoryGeneralAnnouncements:
		return p.GeneralAnnouncements
	}
	return false
}

func (p NotificationPreferences) ChannelEnabled(c Channel) bool {
	switch c {
	case ChannelEmail:
		return p.Email
	case ChannelSMS:
		return p.SMS
	case ChannelInApp:
		return p.InApp
	}
	return false
}

// NotificationEvent is a composed, not yet gated, notification.
type NotificationEvent struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId"`
	Category    Category  `json:"category"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	RequestCode string    `json:"requestCode"`
	GeneratedAt time.Time `json:"generatedAt"`
}
