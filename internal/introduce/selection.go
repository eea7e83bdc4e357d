package introduce

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soda92/phis-introducing-med/internal/drugmatch"
	"github.com/soda92/phis-introducing-med/internal/reference"
	"github.com/soda92/phis-introducing-med/internal/runconfig"
	"github.com/soda92/phis-introducing-med/pkg/logging"
)

// MaxSelections caps how many drugs one patient run may introduce, across
// the history and outpatient phases combined.
const MaxSelections = 5

const dateLayout = "2006-01-02"

// DrugSelector performs the UI side effect of marking a drug entry in the
// host grid.
type DrugSelector interface {
	SelectDrugByName(ctx context.Context, name string) error
}

// RunState carries the selected-name set and remaining capacity across the
// phases of one patient run. The orchestrator owns it and hands it to the
// engine one phase at a time; it is never shared across goroutines. The
// selected set only grows during a run.
type RunState struct {
	Selected  map[string]bool
	Remaining int
}

// NewRunState returns state with full capacity and nothing selected.
func NewRunState(capacity int) *RunState {
	return &RunState{
		Selected:  make(map[string]bool),
		Remaining: capacity,
	}
}

// Engine decides which scraped medication rows get introduced.
type Engine struct {
	selector  DrugSelector
	threshold float64
	logger    *logging.Logger
}

// NewEngine creates a selection engine clicking through selector.
func NewEngine(selector DrugSelector, logger *logging.Logger) *Engine {
	return &Engine{
		selector:  selector,
		threshold: drugmatch.DefaultThreshold,
		logger:    logger.Component("selection"),
	}
}

// Select walks rows in input order and introduces every eligible drug until
// capacity runs out, updating state as it goes. A row is eligible when its
// date falls inside the window, its name is no near-duplicate of an already
// selected one, and the name is an exact member of the reference set.
// First seen wins; there is no scoring or re-ordering.
//
// Rows with an empty date cell are skipped. Rows with a malformed non-empty
// date are also skipped, with a warning: one corrupted grid cell must not
// abort an unattended patient run. Returns the names selected in this call.
func (e *Engine) Select(ctx context.Context, rows []Row, ref reference.Set, window runconfig.DateWindow, state *RunState) ([]string, error) {
	var picked []string
	for _, row := range rows {
		if state.Remaining <= 0 {
			e.logger.Info("selection cap reached, stopping", "cap", MaxSelections)
			break
		}

		name, err := row.ColumnText(nameColumn)
		if err != nil {
			continue
		}
		name = drugmatch.Normalize(name)
		if name == "" {
			continue
		}

		dateText, err := row.ColumnText(dateColumn)
		if err != nil {
			continue
		}
		dateText = strings.TrimSpace(dateText)
		if dateText == "" {
			continue
		}
		recorded, err := time.Parse(dateLayout, dateText)
		if err != nil {
			e.logger.Warn("unparseable medication date, skipping row", "name", name, "date", dateText)
			continue
		}
		if !window.Contains(recorded) {
			continue
		}

		if drugmatch.IsSimilarToAny(name, state.Selected, e.threshold) {
			continue
		}
		if !ref.Contains(name) || state.Selected[name] {
			continue
		}

		e.logger.Info("introducing drug", "name", name, "date", dateText)
		if err := e.selector.SelectDrugByName(ctx, name); err != nil {
			return picked, fmt.Errorf("introduce: selecting %q: %w", name, err)
		}
		state.Selected[name] = true
		state.Remaining--
		picked = append(picked, name)
	}
	return picked, nil
}
