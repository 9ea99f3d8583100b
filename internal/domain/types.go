package domain

// OperationStatus tracks the lifecycle of one start or stop request.
type OperationStatus string

const (
	OperationStatusIdle     OperationStatus = "idle"
	OperationStatusStarting OperationStatus = "starting"
	OperationStatusStopping OperationStatus = "stopping"
	OperationStatusDone     OperationStatus = "done"
	OperationStatusFailed   OperationStatus = "failed"
)

// OperationKind names the stack action an operation performs.
type OperationKind string

const (
	OperationKindStart OperationKind = "start"
	OperationKindStop  OperationKind = "stop"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	N8NPort     int    `json:"n8nPort"`
	ComposeDir  string `json:"composeDir"`
	DockerPath  string `json:"dockerPath"`
	ComposePath string `json:"composePath"`
	LogLevel    string `json:"logLevel"`
}

// Operation stores the current operation identity and lifecycle status.
type Operation struct {
	ID     string          `json:"id"`
	Kind   OperationKind   `json:"kind,omitempty"`
	Status OperationStatus `json:"status"`
}
