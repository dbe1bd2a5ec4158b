package specsadapter

import (
	"context"

	"github.com/restartfu/grid-miner/internal/domain"
	"github.com/restartfu/grid-miner/internal/observability"
	"github.com/restartfu/grid-miner/internal/specs"
)

type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

func (r *Reader) ReadSpecs(ctx context.Context) (domain.HostSpecs, error) {
	if err := ctx.Err(); err != nil {
		return domain.HostSpecs{}, err
	}
	current, err := specs.ReadSpecs(ctx)
	if err != nil {
		observability.CaptureError(err, map[string]string{
			"component": "specs",
			"operation": "read_specs",
		}, nil)
		return domain.HostSpecs{}, err
	}
	return domain.HostSpecs{
		Model:         current.Model,
		PhysicalCores: current.PhysicalCores,
		LogicalCores:  current.LogicalCores,
		RAM:           current.RAM,
	}, nil
}

func (r *Reader) LogicalCores() int {
	return specs.LogicalCores(context.Background())
}
