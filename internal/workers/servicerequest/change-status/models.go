// internal/workers/servicerequest/change-status/models.go
package changestatus

import (
	"time"

	"servicedesk/internal/common/validation"
)

type Input struct {
	RequestCode string `json:"requestCode"`
	Status      string `json:"status"`
	ActorID     string `json:"actorId"`
	Comment     string `json:"comment,omitempty"`
}

type Output struct {
	RequestCode    string     `json:"requestCode"`
	Status         string     `json:"requestStatus"`
	PreviousStatus string     `json:"previousStatus"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func (o *Output) Variables() map[string]interface{} {
	vars := map[string]interface{}{
		"requestCode":    o.RequestCode,
		"requestStatus":  o.Status,
		"previousStatus": o.PreviousStatus,
		"requestClosed":  o.Status == "Completed" || o.Status == "Canceled",
	}
	if o.CompletedAt != nil {
		vars["completedAt"] = o.CompletedAt.Format(time.RFC3339)
	}
	return vars
}

var inputSchema = validation.MustCompile(TaskType, `{
  "type": "object",
  "required": ["requestCode", "status", "actorId"],
  "properties": {
    "requestCode": {"type": "string", "minLength": 1},
    "status":      {"type": "string", "minLength": 1},
    "actorId":     {"type": "string", "minLength": 1},
    "comment":     {"type": "string", "maxLength": 2000}
  }
}`)
