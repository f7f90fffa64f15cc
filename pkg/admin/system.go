package admin

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// CollectSystem samples host and process statistics. diskPath is the mount
// whose usage is reported ("/" when empty). Probes that fail on the current
// platform are skipped with a warning rather than failing the whole call.
func CollectSystem(ctx context.Context, diskPath string) SystemStats {
	if diskPath == "" {
		diskPath = "/"
	}
	out := SystemStats{
		CPUCount:    runtime.NumCPU(),
		CollectedAt: time.Now().UTC(),
		Process:     ProcessInfo{PID: int32(os.Getpid()), Goroutines: runtime.NumGoroutine()},
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		out.Host = &HostInfo{
			Hostname:        info.Hostname,
			OS:              info.OS,
			Platform:        info.Platform,
			PlatformVersion: info.PlatformVersion,
			KernelVersion:   info.KernelVersion,
			UptimeSeconds:   info.Uptime,
		}
	} else {
		out.Warnings = append(out.Warnings, "host: "+err.Error())
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		v := pct[0]
		out.CPUPercent = &v
	} else if err != nil {
		out.Warnings = append(out.Warnings, "cpu: "+err.Error())
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.Memory = &Usage{Total: vm.Total, Used: vm.Used, UsedPercent: vm.UsedPercent}
	} else {
		out.Warnings = append(out.Warnings, "memory: "+err.Error())
	}

	if du, err := disk.UsageWithContext(ctx, diskPath); err == nil {
		out.Disk = &Usage{Total: du.Total, Used: du.Used, UsedPercent: du.UsedPercent}
	} else {
		out.Warnings = append(out.Warnings, "disk: "+err.Error())
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		out.Load = &LoadAverage{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}
	} else {
		out.Warnings = append(out.Warnings, "load: "+err.Error())
	}

	if proc, err := process.NewProcessWithContext(ctx, out.Process.PID); err == nil {
		if mi, err := proc.MemoryInfoWithContext(ctx); err == nil {
			out.Process.RSS = mi.RSS
		}
		if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
			out.Process.CPUPercent = pct
		}
		if n, err := proc.NumThreadsWithContext(ctx); err == nil {
			out.Process.Threads = n
		}
	} else {
		out.Warnings = append(out.Warnings, "process: "+err.Error())
	}
	return out
}
