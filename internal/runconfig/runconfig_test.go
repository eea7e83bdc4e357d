package runconfig

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRunFile = `姓名：张三
村庄：某村
随访医生：李医生
随访方式：门诊
随访分类：控制满意
本季度已做过慢病随访，是否继续保存：是
备注：
引入用药起始时间：2024-03-01
引入用药结束时间：2024-03-31
是否保存用药记录：是
`

func TestParseFullWidthColons(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sampleRunFile))
	require.NoError(t, err)

	assert.Equal(t, Proceed, cfg.DuplicateFollowup)
	assert.True(t, cfg.SaveRecords)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), cfg.Window.Start)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), cfg.Window.End)
}

func TestParseHalfWidthColonsAndDefaults(t *testing.T) {
	in := strings.Join([]string{
		"本季度已做过慢病随访，是否继续保存:否",
		"引入用药起始时间:2024-01-01",
		"引入用药结束时间:2024-12-31",
	}, "\n")

	cfg, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, Decline, cfg.DuplicateFollowup)
	assert.False(t, cfg.SaveRecords, "save-records flag defaults to off")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing duplicate choice", "引入用药起始时间:2024-01-01\n引入用药结束时间:2024-12-31"},
		{"bad duplicate choice", "本季度已做过慢病随访:maybe\n引入用药起始时间:2024-01-01\n引入用药结束时间:2024-12-31"},
		{"missing start date", "本季度已做过慢病随访:是\n引入用药结束时间:2024-12-31"},
		{"malformed end date", "本季度已做过慢病随访:是\n引入用药起始时间:2024-01-01\n引入用药结束时间:31/12/2024"},
		{"end before start", "本季度已做过慢病随访:是\n引入用药起始时间:2024-12-31\n引入用药结束时间:2024-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestDateWindowContains(t *testing.T) {
	w := DateWindow{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, w.Contains(w.Start), "start boundary is inclusive")
	assert.True(t, w.Contains(w.End), "end boundary is inclusive")
	assert.True(t, w.Contains(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(w.Start.AddDate(0, 0, -1)))
	assert.False(t, w.Contains(w.End.AddDate(0, 0, 1)))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/env.txt")
	assert.Error(t, err)
}
