package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
)

// WorkflowTarget names a Cloud Workflow.
type WorkflowTarget struct {
	ProjectID  string
	Location   string
	WorkflowID string
}

// Parent is the resource name executions are created under.
func (w WorkflowTarget) Parent() string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", w.ProjectID, w.Location, w.WorkflowID)
}

// NewExecutionRequest builds the request that starts w with payload as its JSON argument.
func NewExecutionRequest(w WorkflowTarget, payload any) (*executionspb.CreateExecutionRequest, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	return &executionspb.CreateExecutionRequest{
		Parent: w.Parent(),
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}, nil
}

// TriggerWorkflow starts one execution of w and returns its name.
func TriggerWorkflow(ctx context.Context, client *executions.Client, w WorkflowTarget, payload any) (string, error) {
	req, err := NewExecutionRequest(w, payload)
	if err != nil {
		return "", err
	}
	exec, err := client.CreateExecution(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return exec.GetName(), nil
}
