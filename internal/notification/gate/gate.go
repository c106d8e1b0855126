// Package gate decides which channels a notification may use for a
// recipient at a given moment. It performs no I/O.
package gate

import (
	"time"

	"servicedesk/internal/models"
)

// ChannelSet lists permitted channels in models.AllChannels order.
type ChannelSet []models.Channel

func (s ChannelSet) Has(c models.Channel) bool {
	for _, ch := range s {
		if ch == c {
			return true
		}
	}
	return false
}

func (s ChannelSet) Empty() bool {
	return len(s) == 0
}

// Allow applies, in order: the master switch, the category flag, quiet
// hours in the recipient's timezone, then the per-channel flags.
func Allow(prefs models.NotificationPreferences, category models.Category, now time.Time) ChannelSet {
	if !prefs.MasterEnabled {
		return ChannelSet{}
	}
	if !prefs.CategoryEnabled(category) {
		return ChannelSet{}
	}
	if InQuietHours(prefs, now) {
		return ChannelSet{}
	}

	out := ChannelSet{}
	for _, ch := range models.AllChannels {
		if prefs.ChannelEnabled(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// InQuietHours reports whether now falls in the recipient's quiet window.
// The window is [start, end) and wraps midnight when start > end. Both bounds
// must be set; start == end is an empty window.
func InQuietHours(prefs models.NotificationPreferences, now time.Time) bool {
	if prefs.QuietHoursStart == nil || prefs.QuietHoursEnd == nil {
		return false
	}

	local := now
	if prefs.Timezone != "" {
		if loc, err := time.LoadLocation(prefs.Timezone); err == nil {
			local = now.In(loc)
		}
	}

	t := models.TimeOfDayOf(local)
	start, end := *prefs.QuietHoursStart, *prefs.QuietHoursEnd
	if start <= end {
		return t >= start && t < end
	}
	return t >= start || t < end
}
