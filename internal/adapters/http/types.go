package http

import "time"

type healthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Running        bool       `json:"running"`
	PID            int        `json:"pid,omitempty"`
	AcceptedShares int        `json:"accepted_shares"`
	Speed          string     `json:"speed"`
	Log            string     `json:"log"`
	LastStartTime  *time.Time `json:"last_start_time,omitempty"`
	LastExitTime   *time.Time `json:"last_exit_time,omitempty"`
	LastError      *string    `json:"last_error,omitempty"`
}

type logEntry struct {
	Time time.Time `json:"time"`
	Line string    `json:"line"`
}

type logsResponse struct {
	Count int        `json:"count"`
	Logs  []logEntry `json:"logs"`
}

type specsResponse struct {
	Model                string `json:"model"`
	PhysicalCores        int    `json:"physical_cores"`
	LogicalCores         int    `json:"logical_cores"`
	RAM                  string `json:"ram"`
	AvailableParallelism int    `json:"available_parallelism"`
	SuggestedThreads     int    `json:"suggested_threads"`
}

type identityResponse struct {
	WorkerID  string `json:"worker_id"`
	Persisted bool   `json:"persisted"`
}

type startRequest struct {
	Username       string `json:"username"`
	Pool           string `json:"pool"`
	Threads        int    `json:"threads"`
	MaxCPU         int    `json:"max_cpu"`
	AppendWorkerID bool   `json:"append_worker_id"`
}
