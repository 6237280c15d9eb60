package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	m.SessionStarted(true)
	m.SetActiveSessions(3)
	m.Action("navigate", "ok")
	m.Submitted()
	m.Event("form_started", errors.New("x"))
	m.HTTPRequest("GET", "/healthz", 200, time.Millisecond)
	m.Webhook("delivered")
	m.ResumePurged(5)
}

// counterValue суммирует значения счётчика name с меткой label=value (пустая метка — все).
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			matched := label == ""
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					matched = true
				}
			}
			if matched {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SessionStarted(false)
	m.SessionStarted(true)
	m.SessionStarted(true)
	m.Event("form_completed", nil)
	m.Event("form_completed", errors.New("down"))
	m.ResumePurged(4)
	m.ResumePurged(0)

	if got := counterValue(t, reg, "questionnaire_sessions_started_total", "mode", "resumed"); got != 2 {
		t.Errorf("resumed sessions = %v, want 2", got)
	}
	if got := counterValue(t, reg, "questionnaire_events_total", "status", "failed"); got != 1 {
		t.Errorf("failed events = %v, want 1", got)
	}
	if got := counterValue(t, reg, "questionnaire_resume_snapshots_purged_total", "", ""); got != 4 {
		t.Errorf("purged = %v, want 4", got)
	}
}
