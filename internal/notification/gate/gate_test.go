package gate

import (
	"testing"
	"time"

	"servicedesk/internal/models"

	"github.com/stretchr/testify/assert"
)

func tod(h, m int) *models.TimeOfDay {
	t := models.NewTimeOfDay(h, m)
	return &t
}

func at(h, m int) time.Time {
	return time.Date(2025, 6, 1, h, m, 0, 0, time.UTC)
}

func TestAllow_QuietHoursWrapMidnight(t *testing.T) {
	prefs := models.DefaultPreferences("tenant-1")
	prefs.QuietHoursStart = tod(22, 0)
	prefs.QuietHoursEnd = tod(8, 0)

	tests := []struct {
		name       string
		now        time.Time
		suppressed bool
	}{
		{"23:00 inside", at(23, 0), true},
		{"00:00 inside", at(0, 0), true},
		{"07:59 inside", at(7, 59), true},
		{"22:00 start is inclusive", at(22, 0), true},
		{"08:00 end is exclusive", at(8, 0), false},
		{"21:59 before start", at(21, 59), false},
		{"12:00 midday", at(12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allow(prefs, models.CategoryServiceRequestUpdates, tt.now)
			if tt.suppressed {
				assert.True(t, got.Empty())
			} else {
				assert.Equal(t, ChannelSet{models.ChannelEmail, models.ChannelSMS, models.ChannelInApp}, got)
			}
		})
	}
}

func TestAllow_QuietHoursSameDay(t *testing.T) {
	prefs := models.DefaultPreferences("tenant-1")
	prefs.QuietHoursStart = tod(13, 0)
	prefs.QuietHoursEnd = tod(14, 30)

	assert.True(t, Allow(prefs, models.CategoryRentReminders, at(13, 0)).Empty())
	assert.True(t, Allow(prefs, models.CategoryRentReminders, at(14, 29)).Empty())
	assert.False(t, Allow(prefs, models.CategoryRentReminders, at(14, 30)).Empty())
	assert.False(t, Allow(prefs, models.CategoryRentReminders, at(12, 59)).Empty())
}

func TestAllow_QuietHoursNeedBothBounds(t *testing.T) {
	prefs := models.DefaultPreferences("tenant-1")
	prefs.QuietHoursStart = tod(0, 0)

	assert.False(t, Allow(prefs, models.CategoryServiceRequestUpdates, at(3, 0)).Empty())

	prefs.QuietHoursEnd = tod(0, 0)
	assert.False(t, Allow(prefs, models.CategoryServiceRequestUpdates, at(3, 0)).Empty(), "start == end is an empty window")
}

func TestAllow_UsesRecipientTimezone(t *testing.T) {
	prefs := models.DefaultPreferences("tenant-1")
	prefs.QuietHoursStart = tod(22, 0)
	prefs.QuietHoursEnd = tod(8, 0)
	prefs.Timezone = "America/New_York"

	// 03:00 UTC on 1 June is 23:00 the previous evening in New York (EDT).
	assert.True(t, Allow(prefs, models.CategoryServiceRequestUpdates, at(3, 0)).Empty())
	// 14:00 UTC is 10:00 in New York.
	assert.False(t, Allow(prefs, models.CategoryServiceRequestUpdates, at(14, 0)).Empty())
}

func TestAllow_MasterDisableDominates(t *testing.T) {
	prefs := models.DefaultPreferences("tenant-1")
	prefs.MasterEnabled = false

	for _, c := range []models.Category{models.CategoryRentReminders, models.CategoryServiceRequestUpdates, models.CategoryGeneralAnnouncements} {
		for h := 0; h < 24; h++ {
			assert.True(t, Allow(prefs, c, at(h, 0)).Empty(), "%s at %02d:00", c, h)
		}
	}
}

func TestAllow_CategoryOff(t *testing.T) {
	prefs := models.DefaultPreferences("tenant-1")
	prefs.ServiceRequestUpdates = false

	assert.True(t, Allow(prefs, models.CategoryServiceRequestUpdates, at(12, 0)).Empty())
	assert.False(t, Allow(prefs, models.CategoryRentReminders, at(12, 0)).Empty())
	assert.True(t, Allow(prefs, models.Category("marketing"), at(12, 0)).Empty())
}

func TestAllow_ChannelFlags(t *testing.T) {
	prefs := models.DefaultPreferences("tenant-1")
	prefs.SMS = false

	got := Allow(prefs, models.CategoryServiceRequestUpdates, at(12, 0))
	assert.Equal(t, ChannelSet{models.ChannelEmail, models.ChannelInApp}, got)
	assert.True(t, got.Has(models.ChannelInApp))
	assert.False(t, got.Has(models.ChannelSMS))

	prefs.Email, prefs.InApp = false, false
	assert.True(t, Allow(prefs, models.CategoryServiceRequestUpdates, at(12, 0)).Empty())
}

func TestAllow_Deterministic(t *testing.T) {
	prefs := models.DefaultPreferences("tenant-1")
	prefs.QuietHoursStart = tod(22, 0)
	prefs.QuietHoursEnd = tod(8, 0)
	now := at(21, 0)

	first := Allow(prefs, models.CategoryServiceRequestUpdates, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Allow(prefs, models.CategoryServiceRequestUpdates, now))
	}
}
