package servicerequest

import "servicedesk/internal/models"

// transitions is the closed table of permitted status changes. Terminal
// statuses have no outgoing edges.
var transitions = map[models.Status][]models.Status{
	models.StatusPending:    {models.StatusInProgress, models.StatusCompleted, models.StatusCanceled},
	models.StatusInProgress: {models.StatusCompleted, models.StatusOnHold, models.StatusCanceled},
	models.StatusOnHold:     {models.StatusInProgress, models.StatusCanceled},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to models.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from s in table order.
func NextStatuses(s models.Status) []models.Status {
	return append([]models.Status(nil), transitions[s]...)
}
