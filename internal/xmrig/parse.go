package xmrig

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/restartfu/grid-miner/internal/domain"
)

// DefaultTailSize is the number of output lines kept for display.
const DefaultTailSize = 250

const maxLineSize = 1 << 20

// Parser turns worker output into Metrics. A single goroutine writes through
// Consume or Apply; any number of goroutines may call Snapshot.
type Parser struct {
	current  atomic.Pointer[domain.Metrics]
	tailSize int
	output   io.Writer
	now      func() time.Time
}

// NewParser returns a parser with zeroed metrics. Every consumed line is also
// written to output when it is non-nil.
func NewParser(tailSize int, output io.Writer) *Parser {
	if tailSize <= 0 {
		tailSize = DefaultTailSize
	}
	p := &Parser{
		tailSize: tailSize,
		output:   output,
		now:      func() time.Time { return time.Now().UTC() },
	}
	p.current.Store(&domain.Metrics{Speed: domain.SpeedUnknown})
	return p
}

func (p *Parser) TailSize() int {
	return p.tailSize
}

// Snapshot returns the last published metrics.
func (p *Parser) Snapshot() domain.Metrics {
	m := *p.current.Load()
	m.Lines = slices.Clone(m.Lines)
	m.Log = renderLog(m.Lines)
	return m
}

// Consume reads r line by line until EOF or until ctx is cancelled. The
// context is checked between lines. Metrics parsed before an error are kept.
func (p *Parser) Consume(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		if p.output != nil {
			_, _ = fmt.Fprintln(p.output, line)
		}
		p.Apply(line)
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil || errors.Is(err, os.ErrClosed) {
			return nil
		}
		return &domain.StreamReadError{Op: "scan", Err: err}
	}
	return nil
}

// Apply parses one line and publishes the resulting metrics.
func (p *Parser) Apply(line string) {
	prev := p.current.Load()
	next := *prev
	if strings.Contains(line, "accepted") {
		next.AcceptedShares++
	} else if strings.Contains(line, "speed") {
		if speed, ok := ParseSpeed(line); ok {
			next.Speed = speed
		}
	}
	next.Lines = appendTail(prev.Lines, domain.LogEntry{Time: p.now(), Line: line}, p.tailSize)
	p.current.Store(&next)
}

// ParseSpeed extracts the speed token from a worker "speed" line: the second
// to last whitespace separated field, or the sixth to last when that field
// reads "n/a". The line is split as is; the worker config disables colours.
func ParseSpeed(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", false
	}
	speed := fields[len(fields)-2]
	if speed == "n/a" {
		if len(fields) < 6 {
			return "", false
		}
		speed = fields[len(fields)-6]
	}
	return speed, true
}

// appendTail never mutates lines; published slices are shared with readers.
func appendTail(lines []domain.LogEntry, entry domain.LogEntry, size int) []domain.LogEntry {
	start := 0
	if len(lines) >= size {
		start = len(lines) - size + 1
	}
	out := make([]domain.LogEntry, 0, len(lines)-start+1)
	out = append(out, lines[start:]...)
	return append(out, entry)
}

func renderLog(lines []domain.LogEntry) string {
	var b strings.Builder
	for _, entry := range lines {
		b.WriteString(entry.Line)
		b.WriteByte('\n')
	}
	return b.String()
}
