package domain

import "time"

// SpeedUnknown is reported until the worker prints its first speed line.
const SpeedUnknown = "unknown"

type Health struct {
	Status string
	Time   time.Time
}

// MiningConfig holds the user supplied parameters for one mining session.
type MiningConfig struct {
	Pool           string
	Username       string
	Threads        int
	MaxCPU         int
	AppendWorkerID bool
}

type HostSpecs struct {
	Model         string
	PhysicalCores int
	LogicalCores  int
	RAM           string
}

// LaunchSpec describes how the worker process is started.
type LaunchSpec struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// WorkerHandle identifies one launched worker process.
type WorkerHandle struct {
	ID        string
	PID       int
	StartedAt time.Time
}

func (h WorkerHandle) IsZero() bool {
	return h.ID == ""
}

type WorkerStatus struct {
	Running       bool
	PID           int
	LastStartTime *time.Time
	LastExitTime  *time.Time
	LastError     string
}

type LogEntry struct {
	Time time.Time
	Line string
}

// Metrics is an immutable view of what the worker reported during its
// current (or most recent) session.
type Metrics struct {
	AcceptedShares int
	Speed          string
	Log            string
	Lines          []LogEntry
}
