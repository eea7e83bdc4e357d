package records

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/soda92/phis-introducing-med/internal/introduce"
)

// utf8BOM makes the file open cleanly in Excel, which is how the follow-up
// staff read it.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{"身份证号", "历史用药", "门诊用药"}

// CSVSink appends one row per patient run to a local CSV file.
type CSVSink struct {
	mu   sync.Mutex
	path string
}

// NewCSVSink creates a sink writing to path. The file is created lazily on
// the first save.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Name implements introduce.RecordSink.
func (s *CSVSink) Name() string { return "csv" }

// SaveRun appends the run's medication records. A new file gets a BOM and
// the header row first.
func (s *CSVSink) SaveRun(_ context.Context, rec introduce.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, statErr := os.Stat(s.path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("records: opening csv file: %w", err)
	}
	defer f.Close()

	if fresh {
		if _, err := f.Write(utf8BOM); err != nil {
			return fmt.Errorf("records: writing bom: %w", err)
		}
	}

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("records: writing header: %w", err)
		}
	}
	row := []string{rec.PatientID, joinRecords(rec.History), joinRecords(rec.Outpatient)}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("records: writing row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("records: flushing csv: %w", err)
	}
	return nil
}

func joinRecords(recs []introduce.MedicationRecord) string {
	parts := make([]string, 0, len(recs))
	for _, r := range recs {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, "; ")
}
