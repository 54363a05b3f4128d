package flow

import (
	"log/slog"
	"strings"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

// Navigator owns all movement through a flow blueprint. It is pure: every
// decision is a function of the goal's collected data and current index.
type Navigator struct{}

// NewNavigator creates a Navigator.
func NewNavigator() *Navigator {
	return &Navigator{}
}

// shouldSkip reports whether a step is redundant given the collected data.
// Quick-booking selection skips the day/hour browsing steps; a resolved
// existing user skips the identity-creation steps.
func shouldSkip(step models.Step, d *models.CollectedData) bool {
	if d.Schedule.QuickBooking {
		switch step {
		case models.StepShowDayBrowser, models.StepSelectSpecificDay,
			models.StepShowHoursForDay, models.StepSelectSpecificTime:
			return true
		}
	}
	if d.Identity.ExistingUser {
		switch step {
		case models.StepHandleUserStatus, models.StepAskUserName, models.StepCreateNewUser:
			return true
		}
	}
	return false
}

// stepNeedsInput reports whether a step still lacks the data it collects.
// Display-only steps (quote summary, confirmations) never claim input here;
// the navigation rules route to them explicitly.
func stepNeedsInput(step models.Step, d *models.CollectedData) bool {
	switch step {
	case models.StepSelectService:
		return d.Service.Selected == nil
	case models.StepAddAdditionalServices:
		return !d.Service.AddServicesDone
	case models.StepAskAddress:
		return d.Location.CustomerAddress == ""
	case models.StepValidateAddress:
		return d.Location.CustomerAddress != "" && !d.Location.AddressValidated
	case models.StepConfirmLocation:
		return d.Location.ServiceAddress == ""
	case models.StepShowAvailableTimes:
		return d.Schedule.Date == "" && d.Schedule.Time == "" && !d.Schedule.BrowseMode
	case models.StepShowDayBrowser, models.StepSelectSpecificDay:
		return d.Schedule.Date == ""
	case models.StepShowHoursForDay, models.StepSelectSpecificTime:
		return d.Schedule.Time == ""
	case models.StepCheckExistingUser:
		return d.Identity.UserID == ""
	case models.StepAskUserName:
		return !d.Identity.ExistingUser && d.Identity.Name == ""
	case models.StepCreateNewUser:
		return d.Identity.UserID == "" && d.Identity.Name != ""
	case models.StepAskEmail:
		return d.Identity.Email == ""
	case models.StepHandleQuoteChoice:
		return d.Quote.ID != "" && !d.Quote.Confirmed && !d.Quote.PaymentCompleted
	case models.StepIdentifyUserQuestion:
		return d.FAQ.Question == ""
	case models.StepCheckUserSatisfaction:
		// Only after an answer went out; otherwise the scan must not leap
		// over the knowledge-base steps that produce it.
		return d.FAQ.Answer != "" && !d.FAQ.Satisfied
	case models.StepGetBusinessName:
		return d.Account.BusinessName == ""
	case models.StepGetBusinessEmail:
		return d.Account.Email == ""
	case models.StepGetBusinessPhone:
		return d.Account.Phone == ""
	case models.StepSelectTimeZone:
		return d.Account.TimeZone == ""
	case models.StepConfirmAccountDetails:
		return !d.Account.DetailsConfirmed
	case models.StepConfirmDeletionRequest:
		return !d.Account.DeletionConfirmed
	case models.StepVerifyUserPassword:
		return !d.Account.PasswordVerified
	}
	return false
}

// NavigateToAppropriateStep picks the step the conversation should be on.
// Rules are evaluated top-down, first match wins:
//  1. browse mode forces sequential behavior
//  2. complete booking data jumps forward to the quote summary
//  3. a generated, unpaid payment link holds the current position
//  4. a current step still lacking its input holds position
//  5. forward scan to the first non-skipped step lacking input
//  6. backward scan for unmet earlier steps (data invalidated after the fact)
//  7. sequential fallback
func (nav *Navigator) NavigateToAppropriateStep(goal *models.Goal) models.Step {
	steps := blueprints[goal.FlowKey]
	if len(steps) == 0 {
		return ""
	}
	d := &goal.Collected
	cur := goal.CurrentStepIndex
	if cur < 0 {
		cur = 0
	}
	if cur >= len(steps) {
		cur = len(steps) - 1
	}
	current := steps[cur]

	if d.Schedule.BrowseMode {
		if stepNeedsInput(current, d) {
			return current
		}
		for i := cur + 1; i < len(steps); i++ {
			if !shouldSkip(steps[i], d) && stepNeedsInput(steps[i], d) {
				return steps[i]
			}
		}
		if cur+1 < len(steps) {
			return steps[cur+1]
		}
		return current
	}

	if d.HasCompleteBookingData() && d.Quote.ID == "" {
		if qi := IndexOf(goal.FlowKey, models.StepQuoteSummary); qi >= cur {
			slog.Debug("Navigator jumping to quote summary", "flowKey", goal.FlowKey, "from", current)
			return models.StepQuoteSummary
		}
	}

	if d.Quote.PaymentLinkGenerated && !d.Quote.PaymentCompleted {
		return current
	}

	if stepNeedsInput(current, d) {
		return current
	}

	for i := cur + 1; i < len(steps); i++ {
		if !shouldSkip(steps[i], d) && stepNeedsInput(steps[i], d) {
			return steps[i]
		}
	}

	for i := 0; i < cur; i++ {
		if !shouldSkip(steps[i], d) && stepNeedsInput(steps[i], d) {
			slog.Debug("Navigator rewinding to unmet step", "flowKey", goal.FlowKey, "step", steps[i])
			return steps[i]
		}
	}

	for i := cur + 1; i < len(steps); i++ {
		if !shouldSkip(steps[i], d) {
			return steps[i]
		}
	}
	return current
}

// Navigate applies NavigateToAppropriateStep to the goal index and returns
// the chosen step.
func (nav *Navigator) Navigate(goal *models.Goal) models.Step {
	target := nav.NavigateToAppropriateStep(goal)
	if idx := IndexOf(goal.FlowKey, target); idx >= 0 {
		goal.CurrentStepIndex = idx
	}
	return target
}

// AdvanceAndSkip moves to the next non-skipped step. It returns false when
// the flow has run out of steps.
func (nav *Navigator) AdvanceAndSkip(goal *models.Goal) bool {
	steps := blueprints[goal.FlowKey]
	idx := goal.CurrentStepIndex + 1
	for idx < len(steps) && shouldSkip(steps[idx], &goal.Collected) {
		idx++
	}
	if idx >= len(steps) {
		goal.CurrentStepIndex = len(steps) - 1
		return false
	}
	goal.CurrentStepIndex = idx
	return true
}

// goBackTargets maps keyword buckets to rewind destinations. Exact step
// names are matched first; these cover loose hints from flow analysis.
var goBackBuckets = []struct {
	keywords []string
	step     models.Step
}{
	{[]string{"service"}, models.StepSelectService},
	{[]string{"time", "date", "day", "hour", "schedule"}, models.StepShowAvailableTimes},
	{[]string{"address", "location"}, models.StepAskAddress},
	{[]string{"user", "name"}, models.StepAskUserName},
	{[]string{"quote", "summary", "price"}, models.StepQuoteSummary},
}

// mapGoBackTarget resolves a loose hint to a step of the goal's flow.
func mapGoBackTarget(goal *models.Goal, hint string) (models.Step, bool) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return "", false
	}
	for _, step := range blueprints[goal.FlowKey] {
		if strings.ToLower(string(step)) == hint {
			return step, true
		}
	}
	for _, bucket := range goBackBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(hint, kw) {
				step := bucket.step
				// Fixed-site flows collect location at confirmLocation.
				if step == models.StepAskAddress && IndexOf(goal.FlowKey, step) < 0 {
					step = models.StepConfirmLocation
				}
				if IndexOf(goal.FlowKey, step) >= 0 {
					return step, true
				}
			}
		}
	}
	return "", false
}

// HandleGoBack rewinds the goal to the step matching the hint, clearing the
// data the target step owns. Unmappable hints fall back to a one-step
// rewind. It never fails.
func (nav *Navigator) HandleGoBack(goal *models.Goal, hint string) models.Step {
	steps := blueprints[goal.FlowKey]
	if len(steps) == 0 {
		return ""
	}
	target, ok := mapGoBackTarget(goal, hint)
	if !ok {
		idx := goal.CurrentStepIndex - 1
		if idx < 0 {
			idx = 0
		}
		goal.CurrentStepIndex = idx
		target = steps[idx]
		clearDataForStep(&goal.Collected, target)
		slog.Debug("Navigator go-back fallback rewind", "flowKey", goal.FlowKey, "step", target)
		return target
	}
	goal.CurrentStepIndex = IndexOf(goal.FlowKey, target)
	clearDataForStep(&goal.Collected, target)
	slog.Debug("Navigator go-back", "flowKey", goal.FlowKey, "hint", hint, "step", target)
	return target
}

// HandleNavigateBackTo consumes the NavigateBackTo control flag set by a
// step handler.
func (nav *Navigator) HandleNavigateBackTo(goal *models.Goal) models.Step {
	target := goal.Collected.NavigateBackTo
	goal.Collected.NavigateBackTo = ""
	if idx := IndexOf(goal.FlowKey, target); idx >= 0 {
		goal.CurrentStepIndex = idx
		clearDataForStep(&goal.Collected, target)
		return target
	}
	return StepAt(goal)
}

// HandleRestart resets the goal to its first step. The prefetched service
// catalog and resolved identity survive; everything else is collected again.
func (nav *Navigator) HandleRestart(goal *models.Goal) models.Step {
	goal.Collected = models.CollectedData{
		Service:  models.ServiceData{Available: goal.Collected.Service.Available},
		Identity: goal.Collected.Identity,
	}
	goal.CurrentStepIndex = 0
	steps := blueprints[goal.FlowKey]
	if len(steps) == 0 {
		return ""
	}
	return steps[0]
}

// clearDataForStep clears exactly the data group the target step owns, plus
// derived data (the quote depends on everything).
func clearDataForStep(d *models.CollectedData, step models.Step) {
	switch step {
	case models.StepSelectService, models.StepAddAdditionalServices:
		d.ClearServiceData()
	case models.StepShowAvailableTimes, models.StepShowDayBrowser, models.StepSelectSpecificDay,
		models.StepShowHoursForDay, models.StepSelectSpecificTime:
		d.ClearScheduleData()
	case models.StepAskAddress, models.StepValidateAddress, models.StepConfirmLocation:
		d.ClearLocationData()
	case models.StepCheckExistingUser, models.StepHandleUserStatus, models.StepAskUserName,
		models.StepCreateNewUser, models.StepAskEmail:
		d.ClearIdentityData()
	case models.StepQuoteSummary, models.StepHandleQuoteChoice:
		d.ClearQuoteData()
	}
}
