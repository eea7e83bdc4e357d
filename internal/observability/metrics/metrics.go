package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntroduceMetrics exposes counters for medication introduction runs.
type IntroduceMetrics struct {
	runsTotal       *prometheus.CounterVec
	selectionsTotal prometheus.Counter
	recordSaves     *prometheus.CounterVec
}

func NewIntroduceMetrics(reg prometheus.Registerer) *IntroduceMetrics {
	m := &IntroduceMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phis",
			Subsystem: "introduce",
			Name:      "runs_total",
			Help:      "Patient runs by post-save dialog outcome",
		}, []string{"outcome"}),
		selectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phis",
			Subsystem: "introduce",
			Name:      "selections_total",
			Help:      "Total drugs introduced across all runs",
		}),
		recordSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phis",
			Subsystem: "introduce",
			Name:      "record_saves_total",
			Help:      "Medication record persistence attempts by sink and status",
		}, []string{"sink", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.selectionsTotal, m.recordSaves)
	return m
}

func (m *IntroduceMetrics) ObserveRun(outcome string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
}

func (m *IntroduceMetrics) ObserveSelections(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.selectionsTotal.Add(float64(count))
}

func (m *IntroduceMetrics) ObserveRecordSave(sink string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.recordSaves.WithLabelValues(sink, status).Inc()
}
