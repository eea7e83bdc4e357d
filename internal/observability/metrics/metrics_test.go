package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIntroduceMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIntroduceMetrics(reg)

	m.ObserveRun("saved_successfully")
	m.ObserveRun("saved_successfully")
	m.ObserveRun("empty_drug_list")
	m.ObserveSelections(3)
	m.ObserveSelections(0)
	m.ObserveRecordSave("csv", nil)
	m.ObserveRecordSave("postgres", errors.New("connection refused"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("saved_successfully")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("empty_drug_list")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.selectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recordSaves.WithLabelValues("csv", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recordSaves.WithLabelValues("postgres", "error")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *IntroduceMetrics
	m.ObserveRun("saved_successfully")
	m.ObserveSelections(1)
	m.ObserveRecordSave("csv", nil)
}
