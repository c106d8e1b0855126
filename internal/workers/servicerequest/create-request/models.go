// internal/workers/servicerequest/create-request/models.go
package createrequest

import (
	"time"

	"servicedesk/internal/common/validation"
	"servicedesk/internal/models"
)

type Input struct {
	TenantID    string            `json:"tenantId"`
	PropertyID  string            `json:"propertyId"`
	UnitID      string            `json:"unitId,omitempty"`
	RoomID      string            `json:"roomId,omitempty"`
	Category    string            `json:"category"`
	Priority    string            `json:"priority"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description"`
	Media       []models.MediaRef `json:"media,omitempty"`
	ActorID     string            `json:"actorId,omitempty"`
}

type Output struct {
	RequestCode string    `json:"requestCode"`
	Status      string    `json:"requestStatus"`
	Title       string    `json:"requestTitle"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func (o *Output) Variables() map[string]interface{} {
	return map[string]interface{}{
		"requestCode":   o.RequestCode,
		"requestStatus": o.Status,
		"requestTitle":  o.Title,
		"submittedAt":   o.SubmittedAt.Format(time.RFC3339),
	}
}

var inputSchema = validation.MustCompile(TaskType, `{
  "type": "object",
  "required": ["tenantId", "propertyId", "priority", "description"],
  "properties": {
    "tenantId":    {"type": "string", "minLength": 1},
    "propertyId":  {"type": "string", "minLength": 1},
    "unitId":      {"type": "string"},
    "roomId":      {"type": "string"},
    "category":    {"type": "string", "maxLength": 100},
    "priority":    {"type": "string", "minLength": 1},
    "title":       {"type": "string", "maxLength": 200},
    "description": {"type": "string", "minLength": 1, "maxLength": 5000},
    "actorId":     {"type": "string"},
    "media": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["url"],
        "properties": {
          "url":         {"type": "string", "minLength": 1},
          "contentType": {"type": "string"}
        }
      }
    }
  }
}`)
