package flow

import "github.com/mesieou/simple-booking-sub004/internal/models"

// blueprints maps each flow key to its immutable ordered step list. Shared
// slices are never mutated; Blueprint returns a copy.
var blueprints = map[models.FlowKey][]models.Step{
	models.FlowBookingMobile: {
		models.StepSelectService,
		models.StepAddAdditionalServices,
		models.StepAskAddress,
		models.StepValidateAddress,
		models.StepShowAvailableTimes,
		models.StepShowDayBrowser,
		models.StepSelectSpecificDay,
		models.StepShowHoursForDay,
		models.StepSelectSpecificTime,
		models.StepCheckExistingUser,
		models.StepHandleUserStatus,
		models.StepAskUserName,
		models.StepCreateNewUser,
		models.StepAskEmail,
		models.StepQuoteSummary,
		models.StepHandleQuoteChoice,
		models.StepCreateBooking,
		models.StepBookingConfirmation,
	},
	models.FlowBookingFixed: {
		models.StepSelectService,
		models.StepAddAdditionalServices,
		models.StepConfirmLocation,
		models.StepShowAvailableTimes,
		models.StepShowDayBrowser,
		models.StepSelectSpecificDay,
		models.StepShowHoursForDay,
		models.StepSelectSpecificTime,
		models.StepCheckExistingUser,
		models.StepHandleUserStatus,
		models.StepAskUserName,
		models.StepCreateNewUser,
		models.StepAskEmail,
		models.StepQuoteSummary,
		models.StepHandleQuoteChoice,
		models.StepCreateBooking,
		models.StepBookingConfirmation,
	},
	models.FlowFAQ: {
		models.StepIdentifyUserQuestion,
		models.StepSearchKnowledgeBase,
		models.StepProvideAnswerToUser,
		models.StepCheckUserSatisfaction,
	},
	models.FlowAccountCreation: {
		models.StepGetBusinessName,
		models.StepGetBusinessEmail,
		models.StepGetBusinessPhone,
		models.StepSelectTimeZone,
		models.StepConfirmAccountDetails,
	},
	models.FlowAccountDeletion: {
		models.StepConfirmDeletionRequest,
		models.StepVerifyUserPassword,
		models.StepInitiateAccountDeletion,
	},
}

// Blueprint returns the ordered steps of a flow, or nil for unknown keys.
func Blueprint(key models.FlowKey) []models.Step {
	steps, ok := blueprints[key]
	if !ok {
		return nil
	}
	out := make([]models.Step, len(steps))
	copy(out, steps)
	return out
}

// StepAt returns the step at the goal's current index, clamped to the
// blueprint bounds.
func StepAt(goal *models.Goal) models.Step {
	steps := blueprints[goal.FlowKey]
	if len(steps) == 0 {
		return ""
	}
	idx := goal.CurrentStepIndex
	if idx < 0 {
		idx = 0
	}
	if idx >= len(steps) {
		idx = len(steps) - 1
	}
	return steps[idx]
}

// IndexOf returns the position of step within the flow, or -1.
func IndexOf(key models.FlowKey, step models.Step) int {
	for i, s := range blueprints[key] {
		if s == step {
			return i
		}
	}
	return -1
}

// Len returns the blueprint length for a flow key.
func Len(key models.FlowKey) int {
	return len(blueprints[key])
}
