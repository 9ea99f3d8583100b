package domain

// DockerStatus is a point-in-time view of the local Docker installation.
type DockerStatus struct {
	Installed bool   `json:"installed"`
	Running   bool   `json:"running"`
	Version   string `json:"version,omitempty"`
}

// N8NStatus is a point-in-time view of the n8n container stack.
type N8NStatus struct {
	Running         bool   `json:"running"`
	ContainersExist bool   `json:"containers_exist"`
	ImagesAvailable bool   `json:"images_available"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// ServiceState is the coarse state the UI renders for one service.
type ServiceState string

const (
	ServiceStateRunning  ServiceState = "running"
	ServiceStateStopped  ServiceState = "stopped"
	ServiceStateUnknown  ServiceState = "unknown"
	ServiceStateNotFound ServiceState = "not-found"
)

// StackOverview pairs the Docker and n8n service states.
type StackOverview struct {
	Docker ServiceState `json:"docker"`
	N8N    ServiceState `json:"n8n"`
}

// DockerState maps an installation snapshot to a service state.
func DockerState(status DockerStatus) ServiceState {
	switch {
	case !status.Installed:
		return ServiceStateNotFound
	case status.Running:
		return ServiceStateRunning
	default:
		return ServiceStateStopped
	}
}

// N8NState maps an n8n snapshot to a service state given the Docker state.
func N8NState(docker ServiceState, status N8NStatus) ServiceState {
	switch docker {
	case ServiceStateNotFound:
		return ServiceStateNotFound
	case ServiceStateRunning:
	default:
		return ServiceStateStopped
	}

	if status.Running {
		return ServiceStateRunning
	}
	if status.ContainersExist || status.ImagesAvailable {
		return ServiceStateStopped
	}
	return ServiceStateUnknown
}

// NewStackOverview derives the UI overview from both snapshots.
func NewStackOverview(docker DockerStatus, n8n N8NStatus) StackOverview {
	dockerState := DockerState(docker)
	return StackOverview{
		Docker: dockerState,
		N8N:    N8NState(dockerState, n8n),
	}
}

// PathReport lists what the backend resolved, for troubleshooting.
type PathReport struct {
	WorkingDir     string   `json:"workingDir"`
	ExecutableDir  string   `json:"executableDir"`
	DockerPath     string   `json:"dockerPath,omitempty"`
	ComposeCommand string   `json:"composeCommand,omitempty"`
	ComposeFile    string   `json:"composeFile,omitempty"`
	SearchedDirs   []string `json:"searchedDirs"`
	EngineHost     string   `json:"engineHost,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// InstallOption describes one Docker Desktop download target.
type InstallOption struct {
	OS          string `json:"os"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Current     bool   `json:"current"`
}
