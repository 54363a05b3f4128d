// Package models defines flow key and step identifiers shared across modules.
package models

// FlowKey names an ordered step blueprint.
type FlowKey string

const (
	FlowBookingMobile   FlowKey = "bookingCreatingForMobileService"
	FlowBookingFixed    FlowKey = "bookingCreatingForNoneMobileService"
	FlowFAQ             FlowKey = "customerFaqHandling"
	FlowAccountCreation FlowKey = "businessAccountCreation"
	FlowAccountDeletion FlowKey = "businessAccountDeletion"
)

// Step identifies one step within a flow blueprint.
type Step string

// Booking flow steps.
const (
	StepSelectService         Step = "selectService"
	StepAddAdditionalServices Step = "addAdditionalServices"
	StepAskAddress            Step = "askAddress"
	StepValidateAddress       Step = "validateAddress"
	StepConfirmLocation       Step = "confirmLocation"
	StepShowAvailableTimes    Step = "showAvailableTimes"
	StepShowDayBrowser        Step = "showDayBrowser"
	StepSelectSpecificDay     Step = "selectSpecificDay"
	StepShowHoursForDay       Step = "showHoursForDay"
	StepSelectSpecificTime    Step = "selectSpecificTime"
	StepCheckExistingUser     Step = "checkExistingUser"
	StepHandleUserStatus      Step = "handleUserStatus"
	StepAskUserName           Step = "askUserName"
	StepCreateNewUser         Step = "createNewUser"
	StepAskEmail              Step = "askEmail"
	StepQuoteSummary          Step = "quoteSummary"
	StepHandleQuoteChoice     Step = "handleQuoteChoice"
	StepCreateBooking         Step = "createBooking"
	StepBookingConfirmation   Step = "bookingConfirmation"
)

// FAQ flow steps.
const (
	StepIdentifyUserQuestion  Step = "identifyUserQuestion"
	StepSearchKnowledgeBase   Step = "searchKnowledgeBase"
	StepProvideAnswerToUser   Step = "provideAnswerToUser"
	StepCheckUserSatisfaction Step = "checkUserSatisfaction"
)

// Business account flow steps.
const (
	StepGetBusinessName         Step = "getBusinessName"
	StepGetBusinessEmail        Step = "getBusinessEmail"
	StepGetBusinessPhone        Step = "getBusinessPhone"
	StepSelectTimeZone          Step = "selectTimeZone"
	StepConfirmAccountDetails   Step = "confirmAccountDetails"
	StepConfirmDeletionRequest  Step = "confirmDeletionRequest"
	StepVerifyUserPassword      Step = "verifyUserPassword"
	StepInitiateAccountDeletion Step = "initiateAccountDeletion"
)
