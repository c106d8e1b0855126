package camunda

import (
	"context"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// CompleteJob completes job with variables merged into the process scope.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, variables map[string]interface{}) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromMap(variables)
	if err != nil {
		return fmt.Errorf("build complete job command: %w", err)
	}
	if _, err := cmd.Send(ctx); err != nil {
		return fmt.Errorf("complete job %d: %w", job.GetKey(), err)
	}
	return nil
}
