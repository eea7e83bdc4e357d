// Package reference loads the clinician-curated drug lists from the
// comparison workbook. Each disease category has its own sheet; the product
// names are bracket-normalized so they compare cleanly against scraped grid
// text.
package reference

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/soda92/phis-introducing-med/internal/drugmatch"
	"github.com/soda92/phis-introducing-med/pkg/logging"
)

// Workbook sheet names, one per diagnosis category.
const (
	SheetHypertension = "高血压"
	SheetDiabetes     = "糖尿病"
	SheetCombined     = "高血压糖尿病"
)

const productNameHeader = "产品名称"

// Set is a reference drug-name set. Names are normalized at load time.
type Set map[string]bool

// Contains reports exact membership of an already-normalized name.
func (s Set) Contains(name string) bool {
	return s[name]
}

// SheetFor picks the workbook sheet for a patient's diagnosis text. Patients
// with both conditions, or with neither recognized, get the combined sheet.
func SheetFor(diseases string) string {
	hasHypertension := strings.Contains(diseases, SheetHypertension)
	hasDiabetes := strings.Contains(diseases, SheetDiabetes)
	switch {
	case hasHypertension && !hasDiabetes:
		return SheetHypertension
	case hasDiabetes && !hasHypertension:
		return SheetDiabetes
	default:
		return SheetCombined
	}
}

// Loader reads reference sets from the workbook, caching per sheet. The
// workbook is treated as read-only for the lifetime of the process.
type Loader struct {
	path   string
	logger *logging.Logger

	mu    sync.Mutex
	cache map[string]Set
}

// NewLoader creates a loader for the workbook at path.
func NewLoader(path string, logger *logging.Logger) *Loader {
	return &Loader{
		path:   path,
		logger: logger.Component("reference"),
		cache:  make(map[string]Set),
	}
}

// SetFor returns the reference set for a patient's diagnosis text.
func (l *Loader) SetFor(diseases string) (Set, error) {
	sheet := SheetFor(diseases)

	l.mu.Lock()
	defer l.mu.Unlock()
	if set, ok := l.cache[sheet]; ok {
		return set, nil
	}

	set, err := l.loadSheet(sheet)
	if err != nil {
		return nil, err
	}
	l.logger.Info("reference drug list loaded", "sheet", sheet, "drugs", len(set))
	l.cache[sheet] = set
	return set, nil
}

func (l *Loader) loadSheet(sheet string) (Set, error) {
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("reference: opening workbook %s: %w", l.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reference: reading sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("reference: sheet %s is empty", sheet)
	}

	nameCol := -1
	for i, header := range rows[0] {
		if strings.TrimSpace(header) == productNameHeader {
			nameCol = i
			break
		}
	}
	if nameCol < 0 {
		return nil, fmt.Errorf("reference: sheet %s has no %s column", sheet, productNameHeader)
	}

	set := make(Set, len(rows)-1)
	for _, row := range rows[1:] {
		if nameCol >= len(row) {
			continue
		}
		name := drugmatch.Normalize(row[nameCol])
		if name != "" {
			set[name] = true
		}
	}
	return set, nil
}
