package introduce

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	name    string
	date    string
	nameErr error
	dateErr error
}

func (r fakeRow) ColumnText(index int) (string, error) {
	switch index {
	case nameColumn:
		return r.name, r.nameErr
	case dateColumn:
		return r.date, r.dateErr
	default:
		return "", fmt.Errorf("no column %d", index)
	}
}

func TestExtractMedications(t *testing.T) {
	detached := errors.New("element detached")
	rows := []Row{
		fakeRow{name: "达美康", date: "2024-03-10"},
		fakeRow{name: "阿司匹林（肠溶）", date: " 2024-03-12 "},
		fakeRow{name: "拜新同", nameErr: detached},
		fakeRow{name: "二甲双胍", date: "", dateErr: detached},
		fakeRow{name: "   ", date: "2024-03-13"},
		fakeRow{name: "二甲双胍(缓释片)", date: ""},
	}

	records := ExtractMedications(rows)

	require.Len(t, records, 3)
	assert.Equal(t, MedicationRecord{Name: "达美康", Date: "2024-03-10"}, records[0])
	assert.Equal(t, MedicationRecord{Name: "阿司匹林(肠溶)", Date: "2024-03-12"}, records[1],
		"names are normalized, dates trimmed")
	assert.Equal(t, MedicationRecord{Name: "二甲双胍(缓释片)", Date: ""}, records[2],
		"a missing date still yields a record")
}

func TestExtractMedicationsEmptyInput(t *testing.T) {
	assert.Empty(t, ExtractMedications(nil))
	assert.Empty(t, ExtractMedications([]Row{}))
}

func TestMedicationRecordString(t *testing.T) {
	rec := MedicationRecord{Name: "达美康", Date: "2024-03-10"}
	assert.Equal(t, "达美康 (2024-03-10)", rec.String())
}

func TestFlattenHistoryStampsGroupDate(t *testing.T) {
	groups := []HistoryGroup{
		{Date: "2024-03-10", Rows: []Row{
			fakeRow{name: "达美康", date: ""},
			fakeRow{name: "拜新同", date: "2023-01-01"},
		}},
		{Date: "", Rows: []Row{
			fakeRow{name: "二甲双胍", date: "2024-03-20"},
		}},
	}

	rows := FlattenHistory(groups)
	require.Len(t, rows, 3)

	date, err := rows[0].ColumnText(dateColumn)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", date, "group date overrides an empty cell")

	date, err = rows[1].ColumnText(dateColumn)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", date, "group date overrides the row's own date")

	name, err := rows[1].ColumnText(nameColumn)
	require.NoError(t, err)
	assert.Equal(t, "拜新同", name, "other columns pass through")

	date, err = rows[2].ColumnText(dateColumn)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-20", date, "undated groups keep row dates")
}
