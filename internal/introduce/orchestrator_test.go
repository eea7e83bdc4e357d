package introduce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soda92/phis-introducing-med/internal/reference"
	"github.com/soda92/phis-introducing-med/internal/runconfig"
	"github.com/soda92/phis-introducing-med/pkg/logging"
)

// fakeDriver scripts one medication dialog session.
type fakeDriver struct {
	*fakeDialogDriver

	historyGroups  []HistoryGroup
	outpatientRows []Row

	clickedDrugs   []string
	confirms       int
	saves          int
	panelErr       error
	selectDrugErr  error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{fakeDialogDriver: newFakeDialogDriver()}
}

func (d *fakeDriver) WaitMedicationPanel(context.Context) error { return d.panelErr }

func (d *fakeDriver) LoadHistoryGroups(context.Context) ([]HistoryGroup, error) {
	return d.historyGroups, nil
}

func (d *fakeDriver) LoadOutpatientRows(context.Context) ([]Row, error) {
	return d.outpatientRows, nil
}

func (d *fakeDriver) ConfirmSelection(context.Context) error {
	d.confirms++
	return nil
}

func (d *fakeDriver) SaveMedications(context.Context) error {
	d.saves++
	return nil
}

func (d *fakeDriver) SelectDrugByName(_ context.Context, name string) error {
	if d.selectDrugErr != nil {
		return d.selectDrugErr
	}
	d.clickedDrugs = append(d.clickedDrugs, name)
	return nil
}

type fakeReferenceSource struct {
	set reference.Set
	err error
}

func (s fakeReferenceSource) SetFor(string) (reference.Set, error) { return s.set, s.err }

type fakeSink struct {
	name  string
	saved []RunRecord
	err   error
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) SaveRun(_ context.Context, rec RunRecord) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, rec)
	return nil
}

func testRunConfig(save bool) *runconfig.RunConfig {
	return &runconfig.RunConfig{
		DuplicateFollowup: runconfig.Proceed,
		Window: runconfig.DateWindow{
			Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		SaveRecords: save,
	}
}

func newTestOrchestrator(t *testing.T, driver Driver, ref reference.Set, cfg *runconfig.RunConfig, sinks ...RecordSink) *Orchestrator {
	t.Helper()
	orch, err := NewOrchestrator(OrchestratorConfig{
		Driver:    driver,
		Reference: fakeReferenceSource{set: ref},
		RunConfig: cfg,
		Sinks:     sinks,
		Logger:    logging.Default(),
	})
	require.NoError(t, err)
	orch.dialogs.sleep = func(time.Duration) {}
	return orch
}

func TestRunBothPhasesWithCarryover(t *testing.T) {
	driver := newFakeDriver()
	driver.historyGroups = []HistoryGroup{
		{Date: "2024-03-10", Rows: []Row{
			fakeRow{name: "达美康", date: ""},
			fakeRow{name: "不在表里的药", date: ""},
		}},
	}
	driver.outpatientRows = []Row{
		fakeRow{name: "达美康", date: "2024-03-15"},          // exact duplicate from history
		fakeRow{name: "二甲双胍(缓释片)", date: "2024-03-15"},
	}
	driver.buttons[confirmButtonLabel] = true

	sink := &fakeSink{name: "csv"}
	orch := newTestOrchestrator(t, driver,
		refSet("达美康", "二甲双胍(缓释片)"), testRunConfig(true), sink)

	report, err := orch.Run(context.Background(), Patient{ID: "110101199001011234", Diseases: "糖尿病"})
	require.NoError(t, err)

	assert.Equal(t, []string{"达美康", "二甲双胍(缓释片)"}, report.Selected)
	assert.Equal(t, report.Selected, driver.clickedDrugs)
	assert.Equal(t, OutcomeSaved, report.Outcome)
	assert.True(t, report.Continue)
	assert.Equal(t, 2, driver.confirms, "choose pressed once per phase")
	assert.Equal(t, 1, driver.saves)

	require.Len(t, sink.saved, 1)
	rec := sink.saved[0]
	assert.Equal(t, "110101199001011234", rec.PatientID)
	assert.Equal(t, report.RunID, rec.RunID)
	assert.Len(t, rec.History, 2, "all extractable history records are kept, not just selected ones")
	assert.Len(t, rec.Outpatient, 2)
	assert.Equal(t, OutcomeSaved, rec.Outcome)
}

func TestRunEmptyHistoryStillConfirmsAndProceeds(t *testing.T) {
	driver := newFakeDriver()
	driver.outpatientRows = []Row{fakeRow{name: "达美康", date: "2024-03-15"}}
	driver.buttons[confirmButtonLabel] = true

	orch := newTestOrchestrator(t, driver, refSet("达美康"), testRunConfig(false))

	report, err := orch.Run(context.Background(), Patient{ID: "p1", Diseases: "糖尿病"})
	require.NoError(t, err)

	assert.Equal(t, []string{"达美康"}, report.Selected)
	assert.Equal(t, 2, driver.confirms, "the choose action fires on the empty history source too")
}

func TestRunSavesEvenWithZeroSelections(t *testing.T) {
	driver := newFakeDriver()
	driver.spans[emptyDrugListText] = true
	driver.buttons[confirmButtonLabel] = true

	orch := newTestOrchestrator(t, driver, refSet("达美康"), testRunConfig(false))

	report, err := orch.Run(context.Background(), Patient{ID: "p1", Diseases: "高血压"})
	require.NoError(t, err)

	assert.Equal(t, 1, driver.saves, "save fires unconditionally")
	assert.Equal(t, OutcomeEmptyDrugList, report.Outcome)
	assert.False(t, report.Continue)
}

func TestRunDuplicateFollowupDeclinedAborts(t *testing.T) {
	driver := newFakeDriver()
	driver.buttons[runconfig.Decline] = true

	cfg := testRunConfig(false)
	cfg.DuplicateFollowup = runconfig.Decline
	orch := newTestOrchestrator(t, driver, refSet("达美康"), cfg)

	report, err := orch.Run(context.Background(), Patient{ID: "p1", Diseases: "高血压"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeDuplicateDeclined, report.Outcome)
	assert.False(t, report.Continue)
}

func TestRunPersistenceGating(t *testing.T) {
	t.Run("disabled by run config", func(t *testing.T) {
		driver := newFakeDriver()
		sink := &fakeSink{name: "csv"}
		orch := newTestOrchestrator(t, driver, refSet(), testRunConfig(false), sink)

		_, err := orch.Run(context.Background(), Patient{ID: "p1"})
		require.NoError(t, err)
		assert.Empty(t, sink.saved)
	})

	t.Run("missing patient ID skips persistence", func(t *testing.T) {
		driver := newFakeDriver()
		sink := &fakeSink{name: "csv"}
		orch := newTestOrchestrator(t, driver, refSet(), testRunConfig(true), sink)

		_, err := orch.Run(context.Background(), Patient{Diseases: "高血压"})
		require.NoError(t, err)
		assert.Empty(t, sink.saved)
	})

	t.Run("sink failure never fails the run", func(t *testing.T) {
		driver := newFakeDriver()
		failing := &fakeSink{name: "postgres", err: errors.New("connection refused")}
		working := &fakeSink{name: "csv"}
		orch := newTestOrchestrator(t, driver, refSet(), testRunConfig(true), failing, working)

		_, err := orch.Run(context.Background(), Patient{ID: "p1"})
		require.NoError(t, err)
		assert.Len(t, working.saved, 1, "remaining sinks still run after one fails")
	})
}

func TestRunPanelWaitFailure(t *testing.T) {
	driver := newFakeDriver()
	driver.panelErr = errors.New("panel never rendered")

	orch := newTestOrchestrator(t, driver, refSet(), testRunConfig(false))

	_, err := orch.Run(context.Background(), Patient{ID: "p1"})
	assert.Error(t, err)
}

func TestNewOrchestratorValidation(t *testing.T) {
	_, err := NewOrchestrator(OrchestratorConfig{})
	assert.Error(t, err)

	_, err = NewOrchestrator(OrchestratorConfig{Driver: newFakeDriver()})
	assert.Error(t, err)

	_, err = NewOrchestrator(OrchestratorConfig{
		Driver:    newFakeDriver(),
		Reference: fakeReferenceSource{},
	})
	assert.Error(t, err)
}
