package changestatus

import (
	"context"
	"testing"
	"time"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/common/logger"
	"servicedesk/internal/models"
	"servicedesk/internal/servicerequest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Handler, string) {
	t.Helper()
	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	reg := servicerequest.NewRegistry(servicerequest.NewMemoryStore(), nil, logger.NewTestLogger(t),
		servicerequest.WithClock(func() time.Time { return now }))

	req, err := reg.Create(context.Background(), servicerequest.CreateInput{
		TenantID:    "tenant-1",
		Priority:    models.PriorityMedium,
		Description: "Broken window latch",
	})
	require.NoError(t, err)
	return NewHandler(DefaultConfig(), reg, logger.NewTestLogger(t)), req.Code
}

func TestExecute_Transitions(t *testing.T) {
	h, code := setup(t)
	ctx := context.Background()

	out, err := h.Execute(ctx, &Input{RequestCode: code, Status: "in_progress", ActorID: "landlord-1"})
	require.NoError(t, err)
	assert.Equal(t, "InProgress", out.Status)
	assert.Equal(t, "Pending", out.PreviousStatus)
	assert.Nil(t, out.CompletedAt)
	assert.Equal(t, false, out.Variables()["requestClosed"])

	out, err = h.Execute(ctx, &Input{RequestCode: code, Status: "Completed", ActorID: "worker001", Comment: "Latch replaced"})
	require.NoError(t, err)
	require.NotNil(t, out.CompletedAt)
	vars := out.Variables()
	assert.Equal(t, true, vars["requestClosed"])
	assert.Equal(t, "2025-06-01T09:30:00Z", vars["completedAt"])
}

func TestExecute_RejectionsMapToBPMNErrors(t *testing.T) {
	h, code := setup(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, &Input{RequestCode: code, Status: "InProgress", ActorID: "landlord-1"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    *Input
		bpmnCode string
	}{
		{"back to pending", &Input{RequestCode: code, Status: "Pending", ActorID: "landlord-1"}, "SERVICE_REQUEST_INVALID_TRANSITION"},
		{"unknown status", &Input{RequestCode: code, Status: "Paused", ActorID: "landlord-1"}, "SERVICE_REQUEST_INVALID"},
		{"unknown request", &Input{RequestCode: "SR-NOPE", Status: "Completed", ActorID: "landlord-1"}, "SERVICE_REQUEST_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(ctx, tt.input)
			require.Error(t, err)
			bpmn := apperrors.ConvertToBPMNError(apperrors.Normalize(err))
			assert.Equal(t, tt.bpmnCode, bpmn.Code)
			assert.False(t, bpmn.Retryable)
		})
	}

	_, err = h.Execute(ctx, &Input{RequestCode: code, Status: "Canceled", ActorID: "landlord-1"})
	require.NoError(t, err)
	_, err = h.Execute(ctx, &Input{RequestCode: code, Status: "InProgress", ActorID: "landlord-1"})
	assert.Equal(t, "SERVICE_REQUEST_CLOSED", apperrors.ConvertToBPMNError(apperrors.Normalize(err)).Code)
}

func TestParseInput_RequiresActor(t *testing.T) {
	_, err := ParseInput(`{"requestCode":"SR-1","status":"Completed"}`)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	input, err := ParseInput(`{"requestCode":"SR-1","status":"Completed","actorId":"landlord-1","comment":"done"}`)
	require.NoError(t, err)
	assert.Equal(t, "done", input.Comment)
}
