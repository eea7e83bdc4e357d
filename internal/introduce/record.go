// Package introduce implements the medication introduction step of the
// chronic-disease follow-up pipeline: it scrapes the host application's
// history and outpatient medication grids, decides which entries to select
// against the curated reference list, saves the selection, and classifies
// the dialogs the host presents afterwards.
package introduce

import (
	"fmt"
	"strings"

	"github.com/soda92/phis-introducing-med/internal/drugmatch"
)

// Grid column positions in the host medication tables (1-based, matching
// the rendered td cells).
const (
	nameColumn = 3
	dateColumn = 6
)

// Row is one rendered medication row from a host grid. Column access is
// positional and may fail when the underlying element has detached.
type Row interface {
	ColumnText(index int) (string, error)
}

// MedicationRecord is one extracted (name, date) pair. Date keeps the
// grid's YYYY-MM-DD text; empty means the row carried no recorded date.
type MedicationRecord struct {
	Name string
	Date string
}

func (r MedicationRecord) String() string {
	return fmt.Sprintf("%s (%s)", r.Name, r.Date)
}

// ExtractMedications parses raw grid rows into medication records, in input
// order. Rows whose cells cannot be read and rows whose normalized name is
// empty are skipped; extraction never fails the run.
func ExtractMedications(rows []Row) []MedicationRecord {
	records := make([]MedicationRecord, 0, len(rows))
	for _, row := range rows {
		name, err := row.ColumnText(nameColumn)
		if err != nil {
			continue
		}
		date, err := row.ColumnText(dateColumn)
		if err != nil {
			continue
		}
		name = drugmatch.Normalize(name)
		if name == "" {
			continue
		}
		records = append(records, MedicationRecord{Name: name, Date: strings.TrimSpace(date)})
	}
	return records
}

// HistoryGroup is one follow-up visit block from the history grid: the
// group title's follow-up date plus the medication rows beneath it.
type HistoryGroup struct {
	Date string
	Rows []Row
}

// FlattenHistory merges history groups into a single row sequence, stamping
// each row with its group's follow-up date so the selection engine applies
// the same per-record date rule to both sources. Rows in groups without a
// follow-up date keep their own date cell.
func FlattenHistory(groups []HistoryGroup) []Row {
	var rows []Row
	for _, group := range groups {
		if group.Date == "" {
			rows = append(rows, group.Rows...)
			continue
		}
		for _, row := range group.Rows {
			rows = append(rows, datedRow{Row: row, date: group.Date})
		}
	}
	return rows
}

// datedRow overrides the date column with the owning group's follow-up date.
type datedRow struct {
	Row
	date string
}

func (r datedRow) ColumnText(index int) (string, error) {
	if index == dateColumn {
		return r.date, nil
	}
	return r.Row.ColumnText(index)
}
