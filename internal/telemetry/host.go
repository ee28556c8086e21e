package telemetry

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/netwatch/internal/config"
	"github.com/netwatch/internal/logger"
	"github.com/netwatch/internal/models"
)

const defaultHostInterval = 15 * time.Second

// HostCollector samples the machine netwatch runs on and pushes the result
// into a Buffer, so the host is evaluated like any other device.
type HostCollector struct {
	deviceID string
	interval time.Duration
	buffer   *Buffer
	prevCPU  *cpu.TimesStat
}

func NewHostCollector(cfg config.HostConfig, buffer *Buffer) *HostCollector {
	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = "localhost"
		if name, err := os.Hostname(); err == nil {
			deviceID = name
		}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHostInterval
	}
	return &HostCollector{deviceID: deviceID, interval: interval, buffer: buffer}
}

// Start collects until ctx is cancelled.
func (h *HostCollector) Start(ctx context.Context) error {
	log := logger.WithComponent("telemetry")
	log.Info().Str("device_id", h.deviceID).Dur("interval", h.interval).Msg("host collector started")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sample, err := h.Collect(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("host collection failed")
				continue
			}
			h.buffer.Push("host", sample)
		}
	}
}

// Collect takes one sample. CPU usage is a delta between calls, so the
// first sample carries no cpuUsage.
func (h *HostCollector) Collect(ctx context.Context) (models.MetricSample, error) {
	sample := models.MetricSample{
		DeviceID:  h.deviceID,
		Timestamp: time.Now().UTC(),
		Metrics:   make(map[string]models.Reading),
	}

	if pct, ok, err := h.cpuUsage(ctx); err != nil {
		return sample, fmt.Errorf("failed to read cpu times: %w", err)
	} else if ok {
		sample.Metrics["cpuUsage"] = models.ScalarReading(models.Num(pct))
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return sample, fmt.Errorf("failed to read memory: %w", err)
	}
	sample.Metrics["memoryUsage"] = models.ScalarReading(models.Num(vm.UsedPercent))

	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return sample, fmt.Errorf("failed to list interfaces: %w", err)
	}
	status := make(map[string]models.Value, len(ifaces))
	indexByName := make(map[string]string, len(ifaces))
	for _, iface := range ifaces {
		idx := strconv.Itoa(iface.Index)
		indexByName[iface.Name] = idx
		if slices.Contains(iface.Flags, "up") {
			status[idx] = models.Str("up")
		} else {
			status[idx] = models.Str("down")
		}
	}
	if len(status) > 0 {
		sample.Metrics["ifOperStatus"] = models.InterfaceReading(status)
	}

	counters, err := psnet.IOCountersWithContext(ctx, true)
	if err == nil {
		inErrors := make(map[string]models.Value, len(counters))
		for _, c := range counters {
			if idx, ok := indexByName[c.Name]; ok {
				inErrors[idx] = models.Num(float64(c.Errin))
			}
		}
		if len(inErrors) > 0 {
			sample.Metrics["ifInErrors"] = models.InterfaceReading(inErrors)
		}
	}

	return sample, nil
}

func (h *HostCollector) cpuUsage(ctx context.Context) (float64, bool, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return 0, false, err
	}
	if len(times) == 0 {
		return 0, false, nil
	}

	cur := times[0]
	prev := h.prevCPU
	h.prevCPU = &cur
	if prev == nil {
		return 0, false, nil
	}

	idle := (cur.Idle + cur.Iowait) - (prev.Idle + prev.Iowait)
	total := cpuTotal(cur) - cpuTotal(*prev)
	if total <= 0 {
		return 0, false, nil
	}
	return (total - idle) / total * 100, true, nil
}

func cpuTotal(t cpu.TimesStat) float64 {
	return t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
}
