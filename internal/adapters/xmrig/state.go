package xmrig

import (
	"sync"
	"time"

	"github.com/restartfu/grid-miner/internal/domain"
)

type state struct {
	mu        sync.RWMutex
	running   bool
	handleID  string
	pid       int
	lastStart time.Time
	lastExit  time.Time
	lastError string
}

func newState() *state {
	return &state{}
}

func (s *state) snapshot() domain.WorkerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	response := domain.WorkerStatus{
		Running:   s.running,
		LastError: s.lastError,
	}
	if s.running {
		response.PID = s.pid
	}
	if !s.lastStart.IsZero() {
		timestamp := s.lastStart
		response.LastStartTime = &timestamp
	}
	if !s.lastExit.IsZero() {
		timestamp := s.lastExit
		response.LastExitTime = &timestamp
	}
	return response
}

func (s *state) isRunning(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running && id != "" && s.handleID == id
}

func (s *state) recordStart(handle domain.WorkerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.handleID = handle.ID
	s.pid = handle.PID
	s.lastStart = handle.StartedAt
	s.lastError = ""
}

func (s *state) recordExit(id string, at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handleID != id {
		return
	}
	s.running = false
	s.lastExit = at
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
}

func (s *state) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.handleID = ""
	s.lastError = err.Error()
}
