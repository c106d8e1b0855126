package servicerequest

import (
	"fmt"
	"testing"

	"servicedesk/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_FullGrid(t *testing.T) {
	allowed := map[string]bool{
		"Pending->InProgress":   true,
		"Pending->Completed":    true,
		"Pending->Canceled":     true,
		"InProgress->Completed": true,
		"InProgress->OnHold":    true,
		"InProgress->Canceled":  true,
		"OnHold->InProgress":    true,
		"OnHold->Canceled":      true,
	}

	for _, from := range models.AllStatuses {
		for _, to := range models.AllStatuses {
			key := fmt.Sprintf("%s->%s", from, to)
			t.Run(key, func(t *testing.T) {
				assert.Equal(t, allowed[key], CanTransition(from, to))
			})
		}
	}
}

func TestNextStatuses_TerminalHasNone(t *testing.T) {
	assert.Empty(t, NextStatuses(models.StatusCompleted))
	assert.Empty(t, NextStatuses(models.StatusCanceled))
	assert.Equal(t, []models.Status{models.StatusInProgress, models.StatusCanceled}, NextStatuses(models.StatusOnHold))
}
