package domain

// RunState is the lifecycle of one scheduled ingestion run:
// Idle -> Running -> Succeeded|Failed -> Idle.
type RunState int

const (
	RunIdle RunState = iota
	RunRunning
	RunSucceeded
	RunFailed
)

func (s RunState) String() string {
	switch s {
	case RunIdle:
		return "idle"
	case RunRunning:
		return "running"
	case RunSucceeded:
		return "succeeded"
	case RunFailed:
		return "failed"
	default:
		return "unknown"
	}
}
