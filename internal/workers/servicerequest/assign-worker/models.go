// internal/workers/servicerequest/assign-worker/models.go
package assignworker

import "servicedesk/internal/common/validation"

// Input assigns WorkerID; an empty WorkerID unassigns the current worker.
type Input struct {
	RequestCode string `json:"requestCode"`
	WorkerID    string `json:"workerId"`
	ActorID     string `json:"actorId"`
}

type Output struct {
	RequestCode string `json:"requestCode"`
	WorkerID    string `json:"workerId"`
	Assigned    bool   `json:"workerAssigned"`
}

func (o *Output) Variables() map[string]interface{} {
	return map[string]interface{}{
		"requestCode":    o.RequestCode,
		"workerId":       o.WorkerID,
		"workerAssigned": o.Assigned,
	}
}

var inputSchema = validation.MustCompile(TaskType, `{
  "type": "object",
  "required": ["requestCode", "actorId"],
  "properties": {
    "requestCode": {"type": "string", "minLength": 1},
    "workerId":    {"type": ["string", "null"]},
    "actorId":     {"type": "string", "minLength": 1}
  }
}`)
