package monitor

import (
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostSample is one reading of host resource usage.
type HostSample struct {
	CPUPercent    float64
	MemoryUsed    uint64
	MemoryPercent float64
	// Nil when no GPU telemetry is available.
	GPUPercent *float64
}

// HostSampler reads host resource usage.
type HostSampler interface {
	Sample() (HostSample, error)
}

type gopsutilSampler struct{}

// NewHostSampler returns a HostSampler backed by gopsutil. It reports no GPU usage.
func NewHostSampler() HostSampler {
	return gopsutilSampler{}
}

func (gopsutilSampler) Sample() (HostSample, error) {
	var s HostSample
	// An interval of 0 measures against the previous call.
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return s, errors.Wrap(err, "reading cpu usage")
	}
	if len(percents) > 0 {
		s.CPUPercent = percents[0]
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return s, errors.Wrap(err, "reading memory usage")
	}
	s.MemoryUsed = vm.Used
	s.MemoryPercent = vm.UsedPercent
	return s, nil
}
