package report

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/restartfu/grid-miner/internal/domain"
)

const DefaultInterval = 10 * time.Second

// Source is the part of the controller the reporter polls.
type Source interface {
	Snapshot() domain.Metrics
	Status() domain.WorkerStatus
}

// Reporter periodically logs a summary line whenever the mining metrics
// change, and a final down line when it stops.
type Reporter struct {
	source    Source
	logger    zerolog.Logger
	interval  time.Duration
	startedAt time.Time
	title     string
	now       func() time.Time

	mu    sync.Mutex
	state reportState
}

type reportState struct {
	reported       bool
	running        bool
	acceptedShares int
	speed          string
	bestSpeed      float64
}

// New creates a reporter. model is the host CPU model used as the report title.
func New(source Source, logger zerolog.Logger, interval time.Duration, model string) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	title := stripCoreInfo(model)
	if title == "" {
		title = "miner"
	}
	return &Reporter{
		source:    source,
		logger:    logger.With().Str("component", "reporter").Logger(),
		interval:  interval,
		startedAt: time.Now(),
		title:     title,
		now:       time.Now,
	}
}

// Run reports until ctx is done, then logs the down status once.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer r.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		r.Tick()
	}
}

// Tick polls the source once and logs when something changed. It reports
// whether a line was written.
func (r *Reporter) Tick() bool {
	metrics := r.source.Snapshot()
	status := r.source.Status()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.reported &&
		r.state.running == status.Running &&
		r.state.acceptedShares == metrics.AcceptedShares &&
		r.state.speed == metrics.Speed {
		return false
	}
	r.state.reported = true
	r.state.running = status.Running
	r.state.acceptedShares = metrics.AcceptedShares
	r.state.speed = metrics.Speed
	if value, ok := parseSpeed(metrics.Speed); ok {
		if value > r.state.bestSpeed {
			r.state.bestSpeed = value
		}
	}

	event := r.logger.Info().
		Str("title", r.title).
		Bool("running", status.Running).
		Int("accepted_shares", metrics.AcceptedShares).
		Str("speed", metrics.Speed).
		Float64("best_speed", r.state.bestSpeed).
		Str("uptime", formatUptime(r.now().Sub(r.startedAt)))
	if status.PID > 0 {
		event = event.Int("pid", status.PID)
	}
	if status.LastError != "" {
		event = event.Str("last_error", status.LastError)
	}
	event.Msg(description(status.Running, metrics.Speed))
	return true
}

func description(running bool, speed string) string {
	if !running {
		return "miner idle"
	}
	if speed == domain.SpeedUnknown {
		return "miner running"
	}
	if value, ok := parseSpeed(speed); ok {
		return fmt.Sprintf("%.2f H/s", value)
	}
	return speed + " H/s"
}

// Stop logs the down status once.
func (r *Reporter) Stop() {
	metrics := r.source.Snapshot()

	r.mu.Lock()
	best := r.state.bestSpeed
	r.mu.Unlock()

	r.logger.Warn().
		Str("title", r.title).
		Int("accepted_shares", metrics.AcceptedShares).
		Str("speed", metrics.Speed).
		Float64("best_speed", best).
		Str("uptime", formatUptime(r.now().Sub(r.startedAt))).
		Msg("miner down")
}

func parseSpeed(speed string) (float64, bool) {
	if speed == "" || speed == domain.SpeedUnknown {
		return 0, false
	}
	value, err := strconv.ParseFloat(speed, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func formatUptime(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	hours := d / time.Hour
	minutes := (d % time.Hour) / time.Minute
	if hours == 0 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	if minutes == 0 {
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d hours %d minutes", hours, minutes)
}

var coreInfoPattern = regexp.MustCompile(`(?i)\b\d+\s*-?\s*core(?:s)?(?:\s+processor)?\b`)

func stripCoreInfo(model string) string {
	cleaned := coreInfoPattern.ReplaceAllString(model, "")
	return strings.Join(strings.Fields(cleaned), " ")
}
