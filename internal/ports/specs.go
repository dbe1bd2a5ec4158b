package ports

import (
	"context"

	"github.com/restartfu/grid-miner/internal/domain"
)

type SpecsReader interface {
	ReadSpecs(ctx context.Context) (domain.HostSpecs, error)
	LogicalCores() int
}
