package specs

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type Specs struct {
	Model         string
	PhysicalCores int
	LogicalCores  int
	RAM           string
}

// ReadSpecs collects the CPU model, core counts and installed memory. Only a
// missing CPU model is an error; the other fields are best effort.
func ReadSpecs(ctx context.Context) (Specs, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return Specs{}, fmt.Errorf("reading cpu info: %w", err)
	}
	model := ""
	for _, info := range infos {
		if info.ModelName != "" {
			model = info.ModelName
			break
		}
	}
	if model == "" {
		return Specs{}, fmt.Errorf("CPU model name not found")
	}

	physical, err := cpu.CountsWithContext(ctx, false)
	if err != nil {
		physical = 0
	}

	return Specs{
		Model:         model,
		PhysicalCores: physical,
		LogicalCores:  LogicalCores(ctx),
		RAM:           readRAM(ctx),
	}, nil
}

// LogicalCores reports the logical CPUs visible to the host, falling back to
// the Go runtime's view.
func LogicalCores(ctx context.Context) int {
	count, err := cpu.CountsWithContext(ctx, true)
	if err != nil || count <= 0 {
		return runtime.NumCPU()
	}
	return count
}

func readRAM(ctx context.Context) string {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil || vm == nil || vm.Total == 0 {
		return ""
	}
	return formatMemKB(float64(vm.Total) / 1024)
}

func formatMemKB(kb float64) string {
	const (
		kbPerMB = 1024
		kbPerGB = 1024 * 1024
	)
	if kb >= kbPerGB {
		return fmt.Sprintf("%.1f GB", kb/kbPerGB)
	}
	if kb >= kbPerMB {
		return fmt.Sprintf("%.0f MB", kb/kbPerMB)
	}
	return fmt.Sprintf("%.0f KB", kb)
}
