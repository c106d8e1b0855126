// internal/workers/servicerequest/search-requests/models.go
package searchrequests

import (
	"servicedesk/internal/common/validation"
	"servicedesk/internal/search"
)

type Input struct {
	Query      string     `json:"query,omitempty"`
	Status     string     `json:"status,omitempty"`
	Priority   string     `json:"priority,omitempty"`
	TenantID   string     `json:"tenantId,omitempty"`
	WorkerID   string     `json:"workerId,omitempty"`
	PropertyID string     `json:"propertyId,omitempty"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	From int `json:"from"`
	Size int `json:"size"`
}

type Output struct {
	Requests  []search.Document `json:"requests"`
	TotalHits int               `json:"totalHits"`
}

func (o *Output) Variables() map[string]interface{} {
	return map[string]interface{}{
		"requests":  o.Requests,
		"totalHits": o.TotalHits,
	}
}

var inputSchema = validation.MustCompile(TaskType, `{
  "type": "object",
  "properties": {
    "query":      {"type": "string", "maxLength": 500},
    "status":     {"type": "string"},
    "priority":   {"type": "string"},
    "tenantId":   {"type": "string"},
    "workerId":   {"type": "string"},
    "propertyId": {"type": "string"},
    "pagination": {
      "type": "object",
      "properties": {
        "from": {"type": "integer", "minimum": 0},
        "size": {"type": "integer", "minimum": 0, "maximum": 100}
      }
    }
  }
}`)
