package introduce

import (
	"context"
	"time"

	"github.com/soda92/phis-introducing-med/internal/runconfig"
	"github.com/soda92/phis-introducing-med/pkg/logging"
)

// DialogOutcome classifies what the host application presented after the
// save action.
type DialogOutcome string

const (
	OutcomeEmptyDrugList     DialogOutcome = "empty_drug_list"
	OutcomeDuplicateDeclined DialogOutcome = "duplicate_followup_declined"
	OutcomeSavedNestedDialog DialogOutcome = "saved_via_nested_dialog"
	OutcomeSaved             DialogOutcome = "saved_successfully"
	OutcomeUnknownError      DialogOutcome = "unknown_error"
	OutcomeNoPopup           DialogOutcome = "no_popup_found"
)

// Continue reports whether the pipeline may keep processing this patient.
// An empty drug list and a declined duplicate follow-up abort the run;
// everything else, including unexpected dialog errors, continues so one
// stuck popup cannot deadlock the pipeline.
func (o DialogOutcome) Continue() bool {
	switch o {
	case OutcomeEmptyDrugList, OutcomeDuplicateDeclined:
		return false
	}
	return true
}

// Host dialog texts probed after save.
const (
	emptyDrugListText  = "药品名称不能为空或无"
	savePendingText    = "需要先"
	servicePlanText    = "是否加入到个人服务计划中"
	confirmButtonLabel = "确定"
)

const popupProbeTimeout = 3 * time.Second

// DialogDriver is the collaborator surface the classifier needs. Probes
// report absence as false once their bounded wait expires.
type DialogDriver interface {
	SpanVisible(ctx context.Context, text string, timeout time.Duration) bool
	ButtonVisible(ctx context.Context, label string, timeout time.Duration) bool
	ClickButton(ctx context.Context, label string) error
	ClickButtonContaining(ctx context.Context, text string) error
}

// DialogClassifier walks the known post-save popups in order and resolves
// them to a single outcome.
type DialogClassifier struct {
	driver DialogDriver
	logger *logging.Logger
	sleep  func(time.Duration)
}

// NewDialogClassifier creates a classifier over driver.
func NewDialogClassifier(driver DialogDriver, logger *logging.Logger) *DialogClassifier {
	return &DialogClassifier{
		driver: driver,
		logger: logger.Component("dialogs"),
		sleep:  time.Sleep,
	}
}

// Classify resolves the post-save dialog chain. duplicateChoice is the
// button label to press when the host warns that this quarter's follow-up
// already exists. Unexpected click failures are logged and classified as
// OutcomeUnknownError, which continues: failing open beats wedging the
// pipeline on a popup that vanished mid-click.
func (c *DialogClassifier) Classify(ctx context.Context, duplicateChoice string) DialogOutcome {
	if c.driver.SpanVisible(ctx, emptyDrugListText, popupProbeTimeout) {
		c.logger.Error("drug list empty, save refused by host")
		if err := c.driver.ClickButton(ctx, confirmButtonLabel); err != nil {
			return c.unexpected(err)
		}
		return OutcomeEmptyDrugList
	}

	if c.driver.ButtonVisible(ctx, duplicateChoice, popupProbeTimeout) {
		c.logger.Info("duplicate follow-up dialog detected", "choice", duplicateChoice)
		if err := c.driver.ClickButton(ctx, duplicateChoice); err != nil {
			return c.unexpected(err)
		}
		if duplicateChoice == runconfig.Decline {
			return OutcomeDuplicateDeclined
		}
		// Choosing to proceed may surface a follow-on dialog.
		c.sleep(time.Second)
	}

	if c.driver.SpanVisible(ctx, savePendingText, popupProbeTimeout) {
		c.logger.Info("follow-up must be saved first, confirming")
		if err := c.driver.ClickButtonContaining(ctx, runconfig.Proceed); err != nil {
			return c.unexpected(err)
		}
		c.sleep(time.Second)
		if err := c.driver.ClickButton(ctx, confirmButtonLabel); err != nil {
			return c.unexpected(err)
		}
		c.logger.Info("medications saved")
		c.sleep(500 * time.Millisecond)
		if c.driver.SpanVisible(ctx, servicePlanText, popupProbeTimeout) {
			if err := c.driver.ClickButtonContaining(ctx, runconfig.Decline); err != nil {
				return c.unexpected(err)
			}
		}
		return OutcomeSavedNestedDialog
	}

	if c.driver.ButtonVisible(ctx, confirmButtonLabel, popupProbeTimeout) {
		c.logger.Info("medications saved")
		if err := c.driver.ClickButton(ctx, confirmButtonLabel); err != nil {
			return c.unexpected(err)
		}
		return OutcomeSaved
	}

	return OutcomeNoPopup
}

func (c *DialogClassifier) unexpected(err error) DialogOutcome {
	c.logger.Warn("unexpected error while handling dialogs, assuming continuable", "error", err)
	return OutcomeUnknownError
}
