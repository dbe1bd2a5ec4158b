package http

import (
	"errors"
	"strconv"

	nethttp "net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/restartfu/grid-miner/internal/app"
	"github.com/restartfu/grid-miner/internal/domain"
	"github.com/restartfu/grid-miner/internal/observability"
)

type Server struct {
	controller *app.Controller
	logger     zerolog.Logger
}

func NewServer(controller *app.Controller, logger zerolog.Logger) *Server {
	return &Server{
		controller: controller,
		logger:     logger.With().Str("component", "http").Logger(),
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.GetHealth)
	e.GET("/status", s.GetStatus)
	e.GET("/logs", s.GetLogs)
	e.GET("/specs", s.GetSpecs)
	e.GET("/identity", s.GetIdentity)
	e.POST("/mining/start", s.PostStart)
	e.POST("/mining/stop", s.PostStop)
}

func (s *Server) GetHealth(ctx echo.Context) error {
	health := s.controller.Health()
	return ctx.JSON(nethttp.StatusOK, healthResponse{
		Status: health.Status,
		Time:   health.Time,
	})
}

func (s *Server) GetStatus(ctx echo.Context) error {
	return ctx.JSON(nethttp.StatusOK, s.status())
}

func (s *Server) status() statusResponse {
	status := s.controller.Status()
	metrics := s.controller.Snapshot()
	response := statusResponse{
		Running:        status.Running,
		PID:            status.PID,
		AcceptedShares: metrics.AcceptedShares,
		Speed:          metrics.Speed,
		Log:            metrics.Log,
		LastStartTime:  status.LastStartTime,
		LastExitTime:   status.LastExitTime,
	}
	if status.LastError != "" {
		errCopy := status.LastError
		response.LastError = &errCopy
	}
	return response
}

func (s *Server) GetLogs(ctx echo.Context) error {
	count, err := s.logCount(ctx.QueryParam("n"))
	if err != nil {
		return ctx.JSON(nethttp.StatusBadRequest, errorResponse{Error: "invalid n"})
	}
	logs := s.controller.Logs(count)
	response := logsResponse{
		Count: len(logs),
		Logs:  make([]logEntry, 0, len(logs)),
	}
	for _, entry := range logs {
		response.Logs = append(response.Logs, logEntry{
			Time: entry.Time,
			Line: entry.Line,
		})
	}
	return ctx.JSON(nethttp.StatusOK, response)
}

func (s *Server) logCount(raw string) (int, error) {
	limit := s.controller.LogTail()
	if raw == "" {
		return limit, nil
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count <= 0 {
		return 0, errInvalidLogCount
	}
	if count > limit {
		return limit, nil
	}
	return count, nil
}

func (s *Server) GetSpecs(ctx echo.Context) error {
	specs, err := s.controller.Specs(ctx.Request().Context())
	if err != nil {
		observability.CaptureError(err, map[string]string{
			"component": "http",
			"handler":   "specs",
		}, nil)
		return ctx.JSON(nethttp.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return ctx.JSON(nethttp.StatusOK, specsResponse{
		Model:                specs.Model,
		PhysicalCores:        specs.PhysicalCores,
		LogicalCores:         specs.LogicalCores,
		RAM:                  specs.RAM,
		AvailableParallelism: s.controller.AvailableParallelism(),
		SuggestedThreads:     s.controller.SuggestedThreads(),
	})
}

func (s *Server) GetIdentity(ctx echo.Context) error {
	id, persisted := s.controller.Identity()
	return ctx.JSON(nethttp.StatusOK, identityResponse{WorkerID: id, Persisted: persisted})
}

func (s *Server) PostStart(ctx echo.Context) error {
	var req startRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(nethttp.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	cfg, err := s.controller.NewConfig(req.Username, req.Pool, req.Threads, req.MaxCPU, req.AppendWorkerID)
	if err != nil {
		return ctx.JSON(nethttp.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if err := s.controller.Start(ctx.Request().Context(), cfg); err != nil {
		return ctx.JSON(startErrorStatus(err), errorResponse{Error: err.Error()})
	}
	return ctx.JSON(nethttp.StatusAccepted, s.status())
}

func (s *Server) PostStop(ctx echo.Context) error {
	if err := s.controller.Stop(); err != nil {
		s.logger.Error().Err(err).Msg("stop mining")
		return ctx.JSON(nethttp.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return ctx.JSON(nethttp.StatusOK, s.status())
}

func startErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig):
		return nethttp.StatusBadRequest
	case errors.Is(err, domain.ErrTemplate):
		return nethttp.StatusUnprocessableEntity
	default:
		return nethttp.StatusInternalServerError
	}
}

var errInvalidLogCount = errors.New("invalid log count")
