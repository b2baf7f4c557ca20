package flowapi

import (
	"encoding/json"
	"time"
)

type registerWorkflowRequest struct {
	Name       string          `json:"name"`
	Version    string          `json:"version"`
	Definition json.RawMessage `json:"definition"`
}

// LaunchRequest starts an execution of a registered workflow version.
type LaunchRequest struct {
	Workflow       string            `json:"workflow"`
	Version        string            `json:"version"`
	Title          string            `json:"title,omitempty"`
	Inputs         map[string]string `json:"inputs"`
	IdempotencyKey string            `json:"idempotencyKey,omitempty"`
}

// Execution is the platform view of a launched workflow.
type Execution struct {
	ID        string    `json:"id"`
	Workflow  string    `json:"workflow"`
	Version   string    `json:"version"`
	Phase     string    `json:"phase"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NodeExecution is the platform view of one node of an execution.
type NodeExecution struct {
	NodeID    string    `json:"nodeId"`
	Phase     string    `json:"phase"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type nodeExecutionList struct {
	Items []NodeExecution `json:"items"`
}

type terminateRequest struct {
	Cause string `json:"cause,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}
