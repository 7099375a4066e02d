// Package health tracks component health for the admin surface. Components
// report their status; the monitor folds them into an overall verdict and
// attaches process-level resource usage.
package health

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Name        string      `json:"name"`
	Status      Status      `json:"status"`
	Description string      `json:"description,omitempty"`
	LastChecked time.Time   `json:"last_checked"`
	Details     interface{} `json:"details,omitempty"`
}

// ProcessStats carries resource usage of this process
type ProcessStats struct {
	MemoryMB   uint64  `json:"memory_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
}

// Report represents overall process health
type Report struct {
	Status     Status            `json:"status"`
	Uptime     int64             `json:"uptime_seconds"`
	Timestamp  time.Time         `json:"timestamp"`
	Process    ProcessStats      `json:"process"`
	Components []ComponentHealth `json:"components"`
}

// Monitor tracks component health
type Monitor struct {
	startTime  time.Time
	mu         sync.RWMutex
	components map[string]*ComponentHealth
	proc       *process.Process
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	// A lookup failure leaves proc nil; process stats are then best-effort zero.
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Monitor{
		startTime:  time.Now(),
		components: make(map[string]*ComponentHealth),
		proc:       proc,
	}
}

// SetComponentStatus updates the status of a component
func (m *Monitor) SetComponentStatus(name string, status Status, description string) {
	m.SetComponentStatusWithDetails(name, status, description, nil)
}

// SetComponentStatusWithDetails updates component status with additional details
func (m *Monitor) SetComponentStatusWithDetails(name string, status Status, description string, details interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = &ComponentHealth{
		Name:        name,
		Status:      status,
		Description: description,
		LastChecked: time.Now(),
		Details:     details,
	}
}

// GetReport returns the current process health report
func (m *Monitor) GetReport() *Report {
	m.mu.RLock()
	components := make([]ComponentHealth, 0, len(m.components))
	overallStatus := StatusHealthy
	for _, comp := range m.components {
		components = append(components, *comp)
		if comp.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
		} else if comp.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}
	m.mu.RUnlock()

	return &Report{
		Status:     overallStatus,
		Uptime:     int64(time.Since(m.startTime).Seconds()),
		Timestamp:  time.Now(),
		Process:    m.processStats(),
		Components: components,
	}
}

func (m *Monitor) processStats() ProcessStats {
	stats := ProcessStats{Goroutines: runtime.NumGoroutine()}
	if m.proc == nil {
		return stats
	}
	if mem, err := m.proc.MemoryInfo(); err == nil {
		stats.MemoryMB = mem.RSS / 1024 / 1024
	}
	if cpu, err := m.proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	return stats
}
