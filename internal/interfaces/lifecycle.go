package interfaces

// SystemStatus represents the current system state
type SystemStatus struct {
	State          string `json:"state"`
	SelectedTarget string `json:"selected_target,omitempty"`
	RobotCount     int    `json:"robot_count"`
	MovingRobots   int    `json:"moving_robots"`
	TargetCount    int    `json:"target_count"`
	WSClients      int    `json:"ws_clients"`
}

// StatusProvider is implemented by the lifecycle manager and consumed by
// the API layer.
type StatusProvider interface {
	GetCurrentStatus() SystemStatus
}
