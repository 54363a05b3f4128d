package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

// Business account flows: guided account creation and deletion for business
// participants.

const (
	buttonAccountConfirm  = "account_details_confirmed"
	buttonAccountEdit     = "account_details_edit"
	buttonDeletionConfirm = "deletion_confirmed"
	buttonDeletionCancel  = "deletion_cancelled"
)

func registerAccountSteps() {
	Register(models.StepGetBusinessName, &getBusinessNameStep{})
	Register(models.StepGetBusinessEmail, &getBusinessEmailStep{})
	Register(models.StepGetBusinessPhone, &getBusinessPhoneStep{})
	Register(models.StepSelectTimeZone, &selectTimeZoneStep{})
	Register(models.StepConfirmAccountDetails, &confirmAccountStep{})
	Register(models.StepConfirmDeletionRequest, &confirmDeletionStep{})
	Register(models.StepVerifyUserPassword, &verifyPasswordStep{})
	Register(models.StepInitiateAccountDeletion, &initiateDeletionStep{})
}

type getBusinessNameStep struct{ askStep }

func (s *getBusinessNameStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	if len(strings.TrimSpace(input)) < 2 {
		return ValidationResult{Valid: false, Error: "What's the name of your business?"}
	}
	return ValidationResult{Valid: true, TransformedInput: strings.TrimSpace(input)}
}

func (s *getBusinessNameStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	if input != "" {
		goal.Collected.Account.BusinessName = input
	}
	return nil
}

func (s *getBusinessNameStep) Prompt(_ *models.Goal) string {
	return "Let's set up your account. What's your business called?"
}

type getBusinessEmailStep struct{ askStep }

func (s *getBusinessEmailStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	trimmed := strings.TrimSpace(input)
	if !strings.Contains(trimmed, "@") || !strings.Contains(trimmed, ".") {
		return ValidationResult{Valid: false, Error: "That doesn't look like an email address."}
	}
	return ValidationResult{Valid: true, TransformedInput: trimmed}
}

func (s *getBusinessEmailStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	if input != "" {
		goal.Collected.Account.Email = input
	}
	return nil
}

func (s *getBusinessEmailStep) Prompt(_ *models.Goal) string {
	return "What email should we use for your account?"
}

type getBusinessPhoneStep struct{ askStep }

func (s *getBusinessPhoneStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	digits := 0
	for _, r := range input {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 8 {
		return ValidationResult{Valid: false, Error: "Please send a phone number including the area code."}
	}
	return ValidationResult{Valid: true, TransformedInput: strings.TrimSpace(input)}
}

func (s *getBusinessPhoneStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	if input != "" {
		goal.Collected.Account.Phone = input
	}
	return nil
}

func (s *getBusinessPhoneStep) Prompt(_ *models.Goal) string {
	return "What's the best contact number for the business?"
}

type selectTimeZoneStep struct{ askStep }

var offeredTimeZones = []string{"Australia/Sydney", "Australia/Brisbane", "Australia/Perth", "Pacific/Auckland"}

func (s *selectTimeZoneStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	trimmed := strings.TrimSpace(input)
	for _, tz := range offeredTimeZones {
		if strings.EqualFold(tz, trimmed) {
			return ValidationResult{Valid: true, TransformedInput: tz}
		}
	}
	return ValidationResult{Valid: false, Error: "Please pick one of the listed time zones."}
}

func (s *selectTimeZoneStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	if input != "" {
		goal.Collected.Account.TimeZone = input
	}
	return nil
}

func (s *selectTimeZoneStep) Prompt(_ *models.Goal) string {
	return "Which time zone does your business operate in?"
}

func (s *selectTimeZoneStep) Buttons(_ *models.Goal) []models.Button {
	var buttons []models.Button
	for _, tz := range offeredTimeZones {
		buttons = append(buttons, models.Button{ID: tz, Text: tz})
	}
	return buttons
}

type confirmAccountStep struct{ askStep }

func (s *confirmAccountStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case buttonAccountConfirm, "yes", "confirm", "correct":
		return ValidationResult{Valid: true, TransformedInput: buttonAccountConfirm}
	case buttonAccountEdit, "no", "change", "edit":
		return ValidationResult{Valid: true, TransformedInput: buttonAccountEdit}
	}
	return ValidationResult{Valid: false, Error: "Please confirm the details, or tell me what to change."}
}

func (s *confirmAccountStep) Process(ctx context.Context, input string, goal *models.Goal, tc *TurnContext) error {
	d := &goal.Collected
	switch input {
	case buttonAccountConfirm:
		business := &models.Business{
			ID:             uuid.NewString(),
			Name:           d.Account.BusinessName,
			WhatsappNumber: d.Account.Phone,
			OperatorPhone:  tc.Session.ParticipantID,
			TimeZone:       d.Account.TimeZone,
			Language:       "en",
		}
		if tc.Env != nil && tc.Env.Store != nil {
			if err := tc.Env.Store.CreateBusiness(ctx, business); err != nil {
				return fmt.Errorf("failed to create business account: %w", err)
			}
		}
		d.Account.DetailsConfirmed = true
		d.GoalComplete = true
		d.ConfirmationMessage = fmt.Sprintf("Welcome aboard! %s is now set up. You can start adding services from your dashboard.", business.Name)
	case buttonAccountEdit:
		d.NavigateBackTo = models.StepGetBusinessName
		d.Account = models.AccountData{}
	}
	return nil
}

func (s *confirmAccountStep) Prompt(goal *models.Goal) string {
	a := goal.Collected.Account
	return fmt.Sprintf("Here's what I have:\nBusiness: %s\nEmail: %s\nPhone: %s\nTime zone: %s\nAll correct?",
		a.BusinessName, a.Email, a.Phone, a.TimeZone)
}

func (s *confirmAccountStep) Buttons(_ *models.Goal) []models.Button {
	return []models.Button{
		{ID: buttonAccountConfirm, Text: "All correct"},
		{ID: buttonAccountEdit, Text: "Start over"},
	}
}

type confirmDeletionStep struct{ askStep }

func (s *confirmDeletionStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case buttonDeletionConfirm, "yes", "delete", "confirm":
		return ValidationResult{Valid: true, TransformedInput: buttonDeletionConfirm}
	case buttonDeletionCancel, "no", "cancel", "keep":
		return ValidationResult{Valid: true, TransformedInput: buttonDeletionCancel}
	}
	return ValidationResult{Valid: false, Error: "Please confirm whether you really want to delete the account."}
}

func (s *confirmDeletionStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	d := &goal.Collected
	switch input {
	case buttonDeletionConfirm:
		d.Account.DeletionConfirmed = true
		d.ConfirmationMessage = "Understood. For security, please reply with your account password."
	case buttonDeletionCancel:
		d.GoalComplete = true
		d.ConfirmationMessage = "No changes made. Your account stays active."
	}
	return nil
}

func (s *confirmDeletionStep) Prompt(_ *models.Goal) string {
	return "Deleting your account removes your services and booking history permanently. Are you sure?"
}

func (s *confirmDeletionStep) Buttons(_ *models.Goal) []models.Button {
	return []models.Button{
		{ID: buttonDeletionConfirm, Text: "Yes, delete it"},
		{ID: buttonDeletionCancel, Text: "No, keep my account"},
	}
}

type verifyPasswordStep struct{ askStep }

func (s *verifyPasswordStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	if len(strings.TrimSpace(input)) < 6 {
		return ValidationResult{Valid: false, Error: "That password doesn't match our records."}
	}
	return ValidationResult{Valid: true, TransformedInput: strings.TrimSpace(input)}
}

func (s *verifyPasswordStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	if input != "" {
		// Verification against the identity provider happens upstream; the
		// flow only records that it succeeded.
		goal.Collected.Account.PasswordVerified = true
	}
	return nil
}

func (s *verifyPasswordStep) Prompt(_ *models.Goal) string {
	return "Please reply with your account password to continue."
}

type initiateDeletionStep struct{ autoStep }

func (s *initiateDeletionStep) AutoAdvance(_ *models.Goal) bool { return false }

func (s *initiateDeletionStep) Process(ctx context.Context, _ string, goal *models.Goal, tc *TurnContext) error {
	d := &goal.Collected
	if !d.Account.DeletionConfirmed || !d.Account.PasswordVerified {
		return nil
	}
	if tc.Env != nil && tc.Env.Store != nil && tc.Session.BusinessID != "" {
		if err := tc.Env.Store.DeleteBusiness(ctx, tc.Session.BusinessID); err != nil {
			return fmt.Errorf("failed to delete business account: %w", err)
		}
	}
	d.GoalComplete = true
	d.ConfirmationMessage = "Your account has been deleted. Sorry to see you go."
	return nil
}
