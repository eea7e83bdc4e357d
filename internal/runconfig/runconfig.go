// Package runconfig reads the per-run settings file the upstream follow-up
// pipeline writes before invoking this step. The file is line-oriented
// key:value text (full-width colons tolerated) and is read exactly once at
// startup; the resulting RunConfig is immutable and handed to the
// orchestrator by the caller.
package runconfig

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Choices for the "repeat follow-up this quarter" confirmation dialog.
const (
	Proceed = "是"
	Decline = "否"
)

const dateLayout = "2006-01-02"

// Keys matched by substring against each line, the way the legacy file is
// actually written (labels vary slightly between pipeline versions).
const (
	keyDuplicateFollowup = "本季度已做过慢病随访"
	keyStartDate         = "引入用药起始时间"
	keyEndDate           = "引入用药结束时间"
	keySaveRecords       = "是否保存用药记录"
)

// DateWindow is the inclusive date range a medication's recorded date must
// fall in to be eligible for introduction.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, boundaries included.
func (w DateWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// RunConfig holds the run settings the introduction flow consumes.
type RunConfig struct {
	// DuplicateFollowup is the button label to choose when the host warns
	// that this quarter's follow-up already exists: Proceed or Decline.
	DuplicateFollowup string
	Window            DateWindow
	// SaveRecords gates best-effort persistence of the collected
	// medication records at end of run.
	SaveRecords bool
}

// Load reads and parses the run file at path.
func Load(path string) (*RunConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("runconfig: opening %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the line-oriented key:value text from r. The duplicate
// follow-up choice and both window dates are required; the save-records flag
// defaults to off when absent.
func Parse(r io.Reader) (*RunConfig, error) {
	cfg := &RunConfig{}
	var startText, endText string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.ReplaceAll(scanner.Text(), "：", ":")
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch {
		case strings.Contains(key, keyDuplicateFollowup):
			cfg.DuplicateFollowup = value
		case strings.Contains(key, keyStartDate):
			startText = value
		case strings.Contains(key, keyEndDate):
			endText = value
		case strings.Contains(key, keySaveRecords):
			cfg.SaveRecords = value == Proceed
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("runconfig: reading run file: %w", err)
	}

	if cfg.DuplicateFollowup != Proceed && cfg.DuplicateFollowup != Decline {
		return nil, fmt.Errorf("runconfig: duplicate follow-up choice must be %s or %s, got %q",
			Proceed, Decline, cfg.DuplicateFollowup)
	}

	var err error
	if cfg.Window.Start, err = parseDate(keyStartDate, startText); err != nil {
		return nil, err
	}
	if cfg.Window.End, err = parseDate(keyEndDate, endText); err != nil {
		return nil, err
	}
	if cfg.Window.End.Before(cfg.Window.Start) {
		return nil, fmt.Errorf("runconfig: window end %s is before start %s", endText, startText)
	}

	return cfg, nil
}

func parseDate(key, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("runconfig: missing %s", key)
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("runconfig: invalid %s %q: %w", key, value, err)
	}
	return t, nil
}
