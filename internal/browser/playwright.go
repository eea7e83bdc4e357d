// Package browser drives the host application's medication dialog through
// Playwright. It is the only package that knows the host's DOM; everything
// above it works against the introduce.Driver interface.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/soda92/phis-introducing-med/internal/drugmatch"
	"github.com/soda92/phis-introducing-med/internal/introduce"
	"github.com/soda92/phis-introducing-med/pkg/logging"
)

// Host DOM anchors. The medication panel is an ExtJS 3 grid, hence the
// x-grid class names and the positional td cells.
const (
	panelReadyXPath     = `//div[contains(text(), "无")]`
	historyLoadXPath    = `//div[contains(text(), "加载历史用药")]`
	outpatientLoadXPath = `//div[contains(text(), "加载门诊用药")]`
	groupXPath          = `//div[contains(@class, 'x-grid-group ')]`
	groupTitleXPath     = `xpath=.//div[contains(@class, 'x-grid-group-title')]`
	groupRowsXPath      = `xpath=.//table[@class='x-grid3-row-table']/tbody/tr`
	outpatientRowsXPath = `//div[contains(@class, 'x-grid-group ')]/div[2]/div/table/tbody/tr`
	chooseButtonXPath   = `//button[text()='选择']`
	saveControlXPath    = `//*[@id="medSave"]/div/div[1]`

	followupDateMarker = "随访日期"
)

const (
	panelPollTimeout  = 10 * time.Second
	controlTimeout    = 10 * time.Second
	gridLoadTimeout   = 8 * time.Second
	gridSettleDelay   = 3500 * time.Millisecond
	postClickDelay    = 1500 * time.Millisecond
	scrollSettleDelay = time.Second
)

// The grid rows only respond to the full mousedown/mouseup/click sequence;
// a plain click leaves the row unselected.
const syntheticClickJS = `el => {
	const evt = document.createEvent('MouseEvents');
	evt.initMouseEvent('mousedown', true, true, window);
	el.dispatchEvent(evt);
	evt.initMouseEvent('mouseup', true, true, window);
	el.dispatchEvent(evt);
	evt.initMouseEvent('click', true, true, window);
	el.dispatchEvent(evt);
}`

// Driver implements introduce.Driver over a Playwright page that is already
// on the patient's follow-up form.
type Driver struct {
	page   playwright.Page
	logger *logging.Logger
	sleep  func(time.Duration)
}

// NewDriver wraps page. The caller owns the page's lifecycle.
func NewDriver(page playwright.Page, logger *logging.Logger) *Driver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Driver{
		page:   page,
		logger: logger.Component("browser"),
		sleep:  time.Sleep,
	}
}

// WaitMedicationPanel polls until the panel's placeholder cell reads exactly
// "无", which is how the host signals the medication grid has rendered.
func (d *Driver) WaitMedicationPanel(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		handle, err := d.page.WaitForSelector(panelReadyXPath, playwright.PageWaitForSelectorOptions{
			Timeout: playwright.Float(millis(panelPollTimeout)),
		})
		if err != nil || handle == nil {
			continue
		}
		text, err := handle.InnerText()
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "无" {
			d.logger.Info("medication panel ready")
			return nil
		}
	}
}

// LoadHistoryGroups clicks the history load control and scrapes the visit
// groups. An empty grid is not an error.
func (d *Driver) LoadHistoryGroups(ctx context.Context) ([]introduce.HistoryGroup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.jsClick(historyLoadXPath, controlTimeout); err != nil {
		return nil, fmt.Errorf("browser: clicking history load: %w", err)
	}
	d.sleep(gridSettleDelay)

	if _, err := d.page.WaitForSelector(groupXPath, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(millis(gridLoadTimeout)),
	}); err != nil {
		d.logger.Info("history grid stayed empty")
		return nil, nil
	}

	groupHandles, err := d.page.QuerySelectorAll(groupXPath)
	if err != nil {
		return nil, fmt.Errorf("browser: querying history groups: %w", err)
	}

	groups := make([]introduce.HistoryGroup, 0, len(groupHandles))
	for _, gh := range groupHandles {
		group := introduce.HistoryGroup{Date: d.groupDate(gh)}
		rowHandles, err := gh.QuerySelectorAll(groupRowsXPath)
		if err != nil {
			continue
		}
		for _, rh := range rowHandles {
			group.Rows = append(group.Rows, rowHandle{handle: rh})
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// groupDate extracts the follow-up date from a group's title, e.g.
// "随访日期: 2024-03-10 (3条)". Titles without the marker yield "".
func (d *Driver) groupDate(group playwright.ElementHandle) string {
	title, err := group.QuerySelector(groupTitleXPath)
	if err != nil || title == nil {
		return ""
	}
	text, err := title.InnerText()
	if err != nil {
		return ""
	}
	return ParseGroupDate(text)
}

// ParseGroupDate pulls the date out of a history group title. It tolerates
// full-width colons and a trailing row-count suffix.
func ParseGroupDate(title string) string {
	if !strings.Contains(title, followupDateMarker) {
		return ""
	}
	title = strings.ReplaceAll(title, "：", ":")
	_, after, found := strings.Cut(title, ":")
	if !found {
		return ""
	}
	date, _, _ := strings.Cut(after, "(")
	return strings.TrimSpace(date)
}

// LoadOutpatientRows clicks the outpatient load control and scrapes the
// grid's rows. An empty grid is not an error.
func (d *Driver) LoadOutpatientRows(ctx context.Context) ([]introduce.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.jsClick(outpatientLoadXPath, controlTimeout); err != nil {
		return nil, fmt.Errorf("browser: clicking outpatient load: %w", err)
	}
	d.sleep(gridSettleDelay)

	if _, err := d.page.WaitForSelector(outpatientRowsXPath, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(millis(gridLoadTimeout)),
	}); err != nil {
		d.logger.Info("outpatient grid stayed empty")
		return nil, nil
	}

	rowHandles, err := d.page.QuerySelectorAll(outpatientRowsXPath)
	if err != nil {
		return nil, fmt.Errorf("browser: querying outpatient rows: %w", err)
	}
	rows := make([]introduce.Row, 0, len(rowHandles))
	for _, rh := range rowHandles {
		rows = append(rows, rowHandle{handle: rh})
	}
	return rows, nil
}

// SelectDrugByName locates the drug's grid cell and fires the synthetic
// mouse sequence on it. The host renders names inconsistently, so lookup
// escalates: the literal name, the full-width-bracket form, then the name
// with its bracket qualifier stripped and a longer wait.
func (d *Driver) SelectDrugByName(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	candidates := []struct {
		name    string
		timeout time.Duration
	}{
		{name, 5 * time.Second},
		{drugmatch.Widen(name), 5 * time.Second},
		{drugmatch.StripQualifier(name), 20 * time.Second},
	}

	var handle playwright.ElementHandle
	var err error
	for _, c := range candidates {
		selector := fmt.Sprintf(`//div[contains(text(), "%s")]`, c.name)
		handle, err = d.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
			State:   playwright.WaitForSelectorStateAttached,
			Timeout: playwright.Float(millis(c.timeout)),
		})
		if err == nil && handle != nil {
			break
		}
	}
	if err != nil || handle == nil {
		return fmt.Errorf("browser: drug %q not found in grid: %w", name, err)
	}

	if _, err := handle.Evaluate(`el => el.scrollIntoView(true)`); err != nil {
		return fmt.Errorf("browser: scrolling to drug %q: %w", name, err)
	}
	d.sleep(scrollSettleDelay)

	if _, err := handle.Evaluate(syntheticClickJS); err != nil {
		return fmt.Errorf("browser: clicking drug %q: %w", name, err)
	}
	d.sleep(postClickDelay)
	return nil
}

// ConfirmSelection presses the grid's choose button.
func (d *Driver) ConfirmSelection(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.jsClick(chooseButtonXPath, controlTimeout); err != nil {
		return fmt.Errorf("browser: clicking choose button: %w", err)
	}
	d.sleep(postClickDelay)
	return nil
}

// SaveMedications presses the host's medication save control.
func (d *Driver) SaveMedications(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.jsClick(saveControlXPath, controlTimeout); err != nil {
		return fmt.Errorf("browser: clicking save control: %w", err)
	}
	d.sleep(postClickDelay)
	return nil
}

// SpanVisible reports whether a span containing text becomes visible within
// timeout.
func (d *Driver) SpanVisible(_ context.Context, text string, timeout time.Duration) bool {
	selector := fmt.Sprintf(`//span[contains(text(), "%s")]`, text)
	return d.visible(selector, timeout)
}

// ButtonVisible reports whether a button with the exact label becomes
// visible within timeout.
func (d *Driver) ButtonVisible(_ context.Context, label string, timeout time.Duration) bool {
	selector := fmt.Sprintf(`//button[text()='%s']`, label)
	return d.visible(selector, timeout)
}

// ClickButton clicks the button with the exact label.
func (d *Driver) ClickButton(_ context.Context, label string) error {
	selector := fmt.Sprintf(`//button[text()='%s']`, label)
	if err := d.jsClick(selector, controlTimeout); err != nil {
		return fmt.Errorf("browser: clicking button %q: %w", label, err)
	}
	return nil
}

// ClickButtonContaining clicks the first button whose label contains text.
func (d *Driver) ClickButtonContaining(_ context.Context, text string) error {
	selector := fmt.Sprintf(`//button[contains(text(), "%s")]`, text)
	if err := d.jsClick(selector, controlTimeout); err != nil {
		return fmt.Errorf("browser: clicking button containing %q: %w", text, err)
	}
	return nil
}

func (d *Driver) visible(selector string, timeout time.Duration) bool {
	_, err := d.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(millis(timeout)),
	})
	return err == nil
}

// jsClick dispatches the click from script. The host's ExtJS controls
// sometimes sit under overlay elements that break Playwright's native click.
func (d *Driver) jsClick(selector string, timeout time.Duration) error {
	handle, err := d.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(millis(timeout)),
	})
	if err != nil {
		return err
	}
	_, err = handle.Evaluate(`el => el.click()`)
	return err
}

func millis(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

// rowHandle adapts one grid row element to introduce.Row.
type rowHandle struct {
	handle playwright.ElementHandle
}

// ColumnText reads the inner text of the row's Nth td cell.
func (r rowHandle) ColumnText(index int) (string, error) {
	cell, err := r.handle.QuerySelector(fmt.Sprintf("xpath=./td[%d]/div", index))
	if err != nil {
		return "", fmt.Errorf("browser: querying cell %d: %w", index, err)
	}
	if cell == nil {
		return "", fmt.Errorf("browser: row has no cell %d", index)
	}
	text, err := cell.InnerText()
	if err != nil {
		return "", fmt.Errorf("browser: reading cell %d: %w", index, err)
	}
	return text, nil
}
