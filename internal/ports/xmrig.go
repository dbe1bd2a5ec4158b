package ports

import (
	"context"
	"io"

	"github.com/restartfu/grid-miner/internal/domain"
)

// OutputConsumer reads the combined worker output until EOF or cancellation.
type OutputConsumer interface {
	Consume(ctx context.Context, r io.Reader) error
}

type WorkerSupervisor interface {
	Start(ctx context.Context, spec domain.LaunchSpec, consumer OutputConsumer) (domain.WorkerHandle, error)
	Stop(handle domain.WorkerHandle) error
	IsRunning(handle domain.WorkerHandle) bool
	Status() domain.WorkerStatus
	Close() error
}
