package supervisor

// State is the lifecycle phase of the supervised server process.
// Transitions are totally ordered and owned exclusively by the Supervisor.
type State int

const (
	// StateStopped means no server process exists.
	StateStopped State = iota
	// StateStarting means a launch is in flight.
	StateStarting
	// StateRunning means the server process is up.
	StateRunning
	// StateStopping means a graceful shutdown was requested and is not yet acknowledged.
	StateStopping
	// StateFailed means the last launch failed or the process exited abnormally.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
