package health

import (
	"testing"
)

func TestNewMonitor(t *testing.T) {
	m := NewMonitor()
	if m == nil {
		t.Fatal("NewMonitor returned nil")
	}

	report := m.GetReport()
	if report.Status != StatusHealthy {
		t.Errorf("Expected healthy with no components, got %s", report.Status)
	}
	if len(report.Components) != 0 {
		t.Errorf("Expected 0 components, got %d", len(report.Components))
	}
}

func TestComponentStatusFolding(t *testing.T) {
	m := NewMonitor()

	m.SetComponentStatus("pool", StatusHealthy, "")
	if got := m.GetReport().Status; got != StatusHealthy {
		t.Errorf("Expected healthy, got %s", got)
	}

	m.SetComponentStatus("database", StatusDegraded, "slow pings")
	if got := m.GetReport().Status; got != StatusDegraded {
		t.Errorf("Expected degraded, got %s", got)
	}

	m.SetComponentStatus("pool", StatusUnhealthy, "not open")
	if got := m.GetReport().Status; got != StatusUnhealthy {
		t.Errorf("Expected unhealthy, got %s", got)
	}
}

func TestComponentDetails(t *testing.T) {
	m := NewMonitor()
	m.SetComponentStatusWithDetails("pool", StatusHealthy, "", map[string]int{"in_use": 3})

	report := m.GetReport()
	if len(report.Components) != 1 {
		t.Fatalf("Expected 1 component, got %d", len(report.Components))
	}
	if report.Components[0].Details == nil {
		t.Error("Component details should be preserved")
	}
	if report.Components[0].LastChecked.IsZero() {
		t.Error("LastChecked should be set")
	}
}
