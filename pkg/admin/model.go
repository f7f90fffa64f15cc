// Package admin provides the response models of the admin overview and
// system endpoints.
package admin

import (
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/audit"
)

// Counts are entity totals shown on the admin overview.
type Counts struct {
	Students    int `json:"students"`
	Teachers    int `json:"teachers"`
	Courses     int `json:"courses"`
	Enrollments int `json:"enrollments"`
	Books       int `json:"books"`
	Orders      int `json:"orders"`
	Articles    int `json:"articles"`
	Comments    int `json:"comments"`
	ChatRooms   int `json:"chat_rooms"`
	BlockedIPs  int `json:"blocked_ips"`
}

// Overview is the body of GET /admin/.
type Overview struct {
	Counts      Counts        `json:"counts"`
	RecentAudit []audit.Entry `json:"recent_actions"`
	// Websockets is the number of open chat connections on this instance.
	Websockets    int       `json:"websocket_connections"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds int64     `json:"uptime_seconds"`
}

// HostInfo describes the machine.
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	UptimeSeconds   uint64 `json:"uptime_seconds"`
}

// Usage is a used/total pair.
type Usage struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

// LoadAverage is the 1, 5 and 15 minute load.
type LoadAverage struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

// ProcessInfo describes the serving process.
type ProcessInfo struct {
	PID        int32   `json:"pid"`
	RSS        uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
}

// SystemStats is the body of GET /api/management/system/. Sections that
// could not be read are left out and named in Warnings.
type SystemStats struct {
	Host        *HostInfo    `json:"host,omitempty"`
	CPUPercent  *float64     `json:"cpu_percent,omitempty"`
	CPUCount    int          `json:"cpu_count"`
	Memory      *Usage       `json:"memory,omitempty"`
	Disk        *Usage       `json:"disk,omitempty"`
	Load        *LoadAverage `json:"load,omitempty"`
	Process     ProcessInfo  `json:"process"`
	Warnings    []string     `json:"warnings,omitempty"`
	CollectedAt time.Time    `json:"collected_at"`
}
