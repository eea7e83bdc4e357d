package introduce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soda92/phis-introducing-med/internal/observability/metrics"
	"github.com/soda92/phis-introducing-med/internal/reference"
	"github.com/soda92/phis-introducing-med/internal/runconfig"
	"github.com/soda92/phis-introducing-med/pkg/logging"
)

// Patient identifies one follow-up target. Diseases is the free-form
// diagnosis text used to pick the reference sheet.
type Patient struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Diseases string `json:"diseases"`
}

// Driver is the browser collaborator surface for one medication dialog
// session. Implementations live in internal/browser; the fakes in the tests
// implement it directly.
type Driver interface {
	DrugSelector
	DialogDriver

	// WaitMedicationPanel blocks until the host's medication panel has
	// finished rendering and is ready for the history load.
	WaitMedicationPanel(ctx context.Context) error

	// LoadHistoryGroups triggers the history load and returns the visit
	// groups, empty when the grid stayed empty within its wait.
	LoadHistoryGroups(ctx context.Context) ([]HistoryGroup, error)

	// LoadOutpatientRows triggers the outpatient load and returns its
	// rows, empty when the grid stayed empty within its wait.
	LoadOutpatientRows(ctx context.Context) ([]Row, error)

	// ConfirmSelection presses the grid's choose button, committing the
	// currently highlighted entries and closing the source view.
	ConfirmSelection(ctx context.Context) error

	// SaveMedications presses the host's medication save control.
	SaveMedications(ctx context.Context) error
}

// ReferenceSource yields the reference drug set for a diagnosis text.
type ReferenceSource interface {
	SetFor(diseases string) (reference.Set, error)
}

// RunRecord is everything worth persisting about one patient run.
type RunRecord struct {
	RunID      string
	PatientID  string
	History    []MedicationRecord
	Outpatient []MedicationRecord
	Selected   []string
	Outcome    DialogOutcome
	FinishedAt time.Time
}

// RecordSink persists run records. Sinks are best-effort: failures are
// logged and counted, never surfaced to the run.
type RecordSink interface {
	Name() string
	SaveRun(ctx context.Context, rec RunRecord) error
}

// Report summarizes one patient run for the caller.
type Report struct {
	RunID      string
	Outcome    DialogOutcome
	Continue   bool
	Selected   []string
	History    []MedicationRecord
	Outpatient []MedicationRecord
}

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Driver    Driver
	Reference ReferenceSource
	RunConfig *runconfig.RunConfig
	Sinks     []RecordSink
	Metrics   *metrics.IntroduceMetrics
	Logger    *logging.Logger
}

// Orchestrator sequences one patient's medication introduction: history
// phase, outpatient phase, save, dialog classification, persistence.
type Orchestrator struct {
	driver    Driver
	engine    *Engine
	dialogs   *DialogClassifier
	reference ReferenceSource
	cfg       *runconfig.RunConfig
	sinks     []RecordSink
	metrics   *metrics.IntroduceMetrics
	logger    *logging.Logger
	newRunID  func() string
	now       func() time.Time
}

// NewOrchestrator validates cfg and builds the run orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Driver == nil {
		return nil, errors.New("introduce: driver is required")
	}
	if cfg.Reference == nil {
		return nil, errors.New("introduce: reference source is required")
	}
	if cfg.RunConfig == nil {
		return nil, errors.New("introduce: run config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Orchestrator{
		driver:    cfg.Driver,
		engine:    NewEngine(cfg.Driver, logger),
		dialogs:   NewDialogClassifier(cfg.Driver, logger),
		reference: cfg.Reference,
		cfg:       cfg.RunConfig,
		sinks:     cfg.Sinks,
		metrics:   cfg.Metrics,
		logger:    logger.Component("orchestrator"),
		newRunID:  uuid.NewString,
		now:       time.Now,
	}, nil
}

// Run executes the introduction flow for one patient. The driver's session
// must already be on the patient's follow-up form; navigation there belongs
// to the preceding pipeline step. The save action fires even when nothing
// was selected, because the host's dialog chain is what decides whether the
// follow-up may proceed.
func (o *Orchestrator) Run(ctx context.Context, patient Patient) (*Report, error) {
	ref, err := o.reference.SetFor(patient.Diseases)
	if err != nil {
		return nil, err
	}

	if err := o.driver.WaitMedicationPanel(ctx); err != nil {
		return nil, fmt.Errorf("introduce: waiting for medication panel: %w", err)
	}

	state := NewRunState(MaxSelections)
	report := &Report{RunID: o.newRunID()}
	log := o.logger.With("run_id", report.RunID, "patient", patient.ID)

	// History phase.
	groups, err := o.driver.LoadHistoryGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("introduce: loading history medications: %w", err)
	}
	for _, group := range groups {
		report.History = append(report.History, ExtractMedications(group.Rows)...)
	}
	if len(report.History) == 0 {
		log.Info("no history medications to introduce")
	} else {
		log.Info("introducing history medications", "records", len(report.History))
		picked, err := o.engine.Select(ctx, FlattenHistory(groups), ref, o.cfg.Window, state)
		if err != nil {
			return nil, err
		}
		report.Selected = append(report.Selected, picked...)
	}
	// The choose action also closes an empty history view.
	if err := o.driver.ConfirmSelection(ctx); err != nil {
		return nil, fmt.Errorf("introduce: confirming history selection: %w", err)
	}

	// Outpatient phase, sharing the selected set and remaining capacity.
	rows, err := o.driver.LoadOutpatientRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("introduce: loading outpatient medications: %w", err)
	}
	report.Outpatient = ExtractMedications(rows)
	if len(report.Outpatient) == 0 {
		log.Info("no outpatient medications to introduce")
	} else {
		log.Info("introducing outpatient medications", "records", len(report.Outpatient))
		picked, err := o.engine.Select(ctx, rows, ref, o.cfg.Window, state)
		if err != nil {
			return nil, err
		}
		report.Selected = append(report.Selected, picked...)
	}
	if err := o.driver.ConfirmSelection(ctx); err != nil {
		return nil, fmt.Errorf("introduce: confirming outpatient selection: %w", err)
	}

	if len(report.Selected) == 0 {
		log.Info("no drugs selected for this patient")
	}

	if err := o.driver.SaveMedications(ctx); err != nil {
		return nil, fmt.Errorf("introduce: triggering save: %w", err)
	}

	report.Outcome = o.dialogs.Classify(ctx, o.cfg.DuplicateFollowup)
	report.Continue = report.Outcome.Continue()
	log.Info("run classified", "outcome", report.Outcome, "continue", report.Continue,
		"selected", len(report.Selected))

	o.metrics.ObserveRun(string(report.Outcome))
	o.metrics.ObserveSelections(len(report.Selected))

	o.persist(ctx, patient, report)
	return report, nil
}

func (o *Orchestrator) persist(ctx context.Context, patient Patient, report *Report) {
	if !o.cfg.SaveRecords {
		return
	}
	if patient.ID == "" {
		o.logger.Warn("patient has no ID number, medication records not saved")
		return
	}

	rec := RunRecord{
		RunID:      report.RunID,
		PatientID:  patient.ID,
		History:    report.History,
		Outpatient: report.Outpatient,
		Selected:   report.Selected,
		Outcome:    report.Outcome,
		FinishedAt: o.now(),
	}
	for _, sink := range o.sinks {
		err := sink.SaveRun(ctx, rec)
		o.metrics.ObserveRecordSave(sink.Name(), err)
		if err != nil {
			o.logger.Error("saving medication records failed", "sink", sink.Name(), "error", err)
		}
	}
}
