package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

// Button IDs used by the booking steps.
const (
	buttonNoAdditional     = "no_additional_services"
	buttonAddressConfirmed = "address_confirmed"
	buttonAddressEdit      = "address_edit"
	buttonChooseAnotherDay = "choose_another_day"
	buttonConfirmQuote     = "confirm_quote"
	buttonEditQuote        = "edit_quote"
	slotButtonPrefix       = "slot_"
	dayButtonPrefix        = "day_"
	hourButtonPrefix       = "hour_"
)

// quickSlotCount is how many one-tap slots the times step offers before the
// day browser.
const quickSlotCount = 2

// askStep is the embeddable default for steps that wait for user input.
type askStep struct{}

func (askStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	return ValidationResult{Valid: true, TransformedInput: input}
}
func (askStep) Process(_ context.Context, _ string, _ *models.Goal, _ *TurnContext) error {
	return nil
}
func (askStep) AutoAdvance(_ *models.Goal) bool        { return false }
func (askStep) Prompt(_ *models.Goal) string           { return "" }
func (askStep) Buttons(_ *models.Goal) []models.Button { return nil }

// autoStep is the embeddable default for steps that run without user input.
// Their Validate reports not-applicable (invalid, empty error) so stray
// input falls through to the next step.
type autoStep struct{}

func (autoStep) Validate(_ context.Context, _ string, _ *models.Goal, _ *TurnContext) ValidationResult {
	return ValidationResult{Valid: false}
}
func (autoStep) Process(_ context.Context, _ string, _ *models.Goal, _ *TurnContext) error {
	return nil
}
func (autoStep) AutoAdvance(_ *models.Goal) bool        { return true }
func (autoStep) Prompt(_ *models.Goal) string           { return "" }
func (autoStep) Buttons(_ *models.Goal) []models.Button { return nil }

func registerBookingSteps() {
	Register(models.StepSelectService, &selectServiceStep{})
	Register(models.StepAddAdditionalServices, &addServicesStep{})
	Register(models.StepAskAddress, &askAddressStep{})
	Register(models.StepValidateAddress, &validateAddressStep{})
	Register(models.StepConfirmLocation, &confirmLocationStep{})
	Register(models.StepShowAvailableTimes, &showTimesStep{})
	Register(models.StepShowDayBrowser, &dayBrowserStep{})
	Register(models.StepSelectSpecificDay, &dayBrowserStep{})
	Register(models.StepShowHoursForDay, &hourBrowserStep{})
	Register(models.StepSelectSpecificTime, &hourBrowserStep{})
	Register(models.StepCheckExistingUser, &checkExistingUserStep{})
	Register(models.StepHandleUserStatus, &handleUserStatusStep{})
	Register(models.StepAskUserName, &askUserNameStep{})
	Register(models.StepCreateNewUser, &createNewUserStep{})
	Register(models.StepAskEmail, &askEmailStep{})
	Register(models.StepQuoteSummary, &quoteSummaryStep{})
	Register(models.StepHandleQuoteChoice, &quoteChoiceStep{})
	Register(models.StepCreateBooking, &createBookingStep{})
	Register(models.StepBookingConfirmation, &bookingConfirmationStep{})
}

// matchService resolves input against the catalog by button ID first, then
// by case-insensitive name containment.
func matchService(input string, services []models.ServiceInfo) *models.ServiceInfo {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	for i := range services {
		if services[i].ID == input {
			return &services[i]
		}
	}
	lower := strings.ToLower(input)
	for i := range services {
		name := strings.ToLower(services[i].Name)
		if strings.Contains(name, lower) || strings.Contains(lower, name) {
			return &services[i]
		}
	}
	return nil
}

func serviceButtons(services []models.ServiceInfo) []models.Button {
	var buttons []models.Button
	for _, svc := range services {
		buttons = append(buttons, models.Button{
			ID:          svc.ID,
			Text:        svc.Name,
			Description: fmt.Sprintf("$%.2f, %d min", svc.BasePrice, svc.DurationMins),
		})
	}
	return buttons
}

type selectServiceStep struct{ askStep }

func (s *selectServiceStep) Validate(_ context.Context, input string, goal *models.Goal, _ *TurnContext) ValidationResult {
	if matchService(input, goal.Collected.Service.Available) == nil {
		return ValidationResult{Valid: false, Error: "Please pick one of the listed services."}
	}
	return ValidationResult{Valid: true, TransformedInput: strings.TrimSpace(input)}
}

func (s *selectServiceStep) Process(ctx context.Context, input string, goal *models.Goal, tc *TurnContext) error {
	d := &goal.Collected
	if len(d.Service.Available) == 0 && tc != nil && tc.Env != nil && tc.Env.Store != nil {
		services, err := tc.Env.Store.ListServices(ctx, tc.Session.BusinessID)
		if err != nil {
			return fmt.Errorf("failed to load service catalog: %w", err)
		}
		d.Service.Available = services
	}
	if input == "" {
		return nil
	}
	svc := matchService(input, d.Service.Available)
	if svc == nil {
		return nil
	}
	d.Service.Selected = svc
	d.ConfirmationMessage = fmt.Sprintf("Great choice! %s it is.", svc.Name)
	slog.Debug("selectService processed", "service", svc.Name, "goalID", goal.ID)
	return nil
}

func (s *selectServiceStep) Prompt(_ *models.Goal) string {
	return "Which service would you like to book?"
}

func (s *selectServiceStep) Buttons(goal *models.Goal) []models.Button {
	return serviceButtons(goal.Collected.Service.Available)
}

type addServicesStep struct{ askStep }

func isDecline(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case buttonNoAdditional, "no", "nope", "that's all", "thats all", "done", "nothing else":
		return true
	}
	return false
}

func (s *addServicesStep) Validate(_ context.Context, input string, goal *models.Goal, _ *TurnContext) ValidationResult {
	if isDecline(input) || matchService(input, goal.Collected.Service.Available) != nil {
		return ValidationResult{Valid: true, TransformedInput: strings.TrimSpace(input)}
	}
	return ValidationResult{Valid: false, Error: "You can pick another service from the list, or tell me that's all."}
}

func (s *addServicesStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	d := &goal.Collected
	if input == "" {
		return nil
	}
	if isDecline(input) {
		d.Service.AddServicesDone = true
		d.ConfirmationMessage = "Noted, just the one service."
		return nil
	}
	if svc := matchService(input, d.Service.Available); svc != nil {
		d.Service.Additional = append(d.Service.Additional, *svc)
		d.ConfirmationMessage = fmt.Sprintf("Added %s. Anything else?", svc.Name)
	}
	return nil
}

func (s *addServicesStep) Prompt(_ *models.Goal) string {
	return "Would you like to add another service?"
}

func (s *addServicesStep) Buttons(goal *models.Goal) []models.Button {
	buttons := serviceButtons(goal.Collected.Service.Available)
	return append(buttons, models.Button{ID: buttonNoAdditional, Text: "No, that's all"})
}

type askAddressStep struct{ askStep }

func (s *askAddressStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	if len(strings.TrimSpace(input)) < 8 {
		return ValidationResult{Valid: false, Error: "Please send your full address, including street and suburb."}
	}
	return ValidationResult{Valid: true, TransformedInput: strings.TrimSpace(input)}
}

func (s *askAddressStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	if input == "" {
		return nil
	}
	goal.Collected.Location.CustomerAddress = strings.TrimSpace(input)
	goal.Collected.Location.AddressValidated = false
	return nil
}

func (s *askAddressStep) Prompt(_ *models.Goal) string {
	return "Where should we come to? Please send the full address."
}

type validateAddressStep struct{ askStep }

func (s *validateAddressStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case buttonAddressConfirmed, "yes", "correct", "that's right", "thats right":
		return ValidationResult{Valid: true, TransformedInput: buttonAddressConfirmed}
	case buttonAddressEdit, "no", "wrong", "change":
		return ValidationResult{Valid: true, TransformedInput: buttonAddressEdit}
	}
	return ValidationResult{Valid: false, Error: "Just confirm whether the address is correct."}
}

func (s *validateAddressStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	d := &goal.Collected
	switch input {
	case buttonAddressConfirmed:
		d.Location.AddressValidated = true
		d.Location.ServiceAddress = d.Location.CustomerAddress
		d.ConfirmationMessage = "Address confirmed."
	case buttonAddressEdit:
		d.NavigateBackTo = models.StepAskAddress
	}
	return nil
}

func (s *validateAddressStep) Prompt(goal *models.Goal) string {
	return fmt.Sprintf("Is this address correct?\n%s", goal.Collected.Location.CustomerAddress)
}

func (s *validateAddressStep) Buttons(_ *models.Goal) []models.Button {
	return []models.Button{
		{ID: buttonAddressConfirmed, Text: "Yes, that's right"},
		{ID: buttonAddressEdit, Text: "No, let me fix it"},
	}
}

type confirmLocationStep struct{ askStep }

func (s *confirmLocationStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case buttonAddressConfirmed, "yes", "ok", "sure", "sounds good":
		return ValidationResult{Valid: true, TransformedInput: buttonAddressConfirmed}
	}
	return ValidationResult{Valid: false, Error: "Please confirm you can come to our location."}
}

func (s *confirmLocationStep) Process(_ context.Context, input string, goal *models.Goal, tc *TurnContext) error {
	if input != buttonAddressConfirmed {
		return nil
	}
	address := "our premises"
	if tc != nil && tc.Business != nil && tc.Business.Address != "" {
		address = tc.Business.Address
	}
	goal.Collected.Location.ServiceAddress = address
	goal.Collected.Location.AddressValidated = true
	goal.Collected.ConfirmationMessage = "Perfect, see you at " + address + "."
	return nil
}

func (s *confirmLocationStep) Prompt(goal *models.Goal) string {
	return "This service happens at our location. Does that work for you?"
}

func (s *confirmLocationStep) Buttons(_ *models.Goal) []models.Button {
	return []models.Button{{ID: buttonAddressConfirmed, Text: "Yes, works for me"}}
}

type showTimesStep struct{ askStep }

func (s *showTimesStep) Validate(_ context.Context, input string, goal *models.Goal, _ *TurnContext) ValidationResult {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if strings.HasPrefix(trimmed, slotButtonPrefix) || trimmed == buttonChooseAnotherDay {
		return ValidationResult{Valid: true, TransformedInput: trimmed}
	}
	return ValidationResult{Valid: false, Error: "Pick one of the suggested times, or browse other days."}
}

func (s *showTimesStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	d := &goal.Collected
	if input == "" {
		if len(d.Schedule.NextSlots) == 0 {
			d.Schedule.NextSlots = NextAvailableSlots(time.Now(), quickSlotCount)
		}
		return nil
	}
	if input == buttonChooseAnotherDay {
		d.Schedule.BrowseMode = true
		d.ConfirmationMessage = "Sure, let's find a day that suits you."
		return nil
	}
	for i, slot := range d.Schedule.NextSlots {
		if input == fmt.Sprintf("%s%d", slotButtonPrefix, i) {
			d.Schedule.Date = slot.Date
			d.Schedule.Time = slot.Time
			d.Schedule.QuickBooking = true
			d.ConfirmationMessage = fmt.Sprintf("Booked in for %s at %s.", slot.Date, slot.Time)
			return nil
		}
	}
	return nil
}

func (s *showTimesStep) Prompt(_ *models.Goal) string {
	return "Here are our next available times. Pick one, or browse other days."
}

func (s *showTimesStep) Buttons(goal *models.Goal) []models.Button {
	var buttons []models.Button
	for i, slot := range goal.Collected.Schedule.NextSlots {
		buttons = append(buttons, models.Button{
			ID:   fmt.Sprintf("%s%d", slotButtonPrefix, i),
			Text: fmt.Sprintf("%s %s", slot.Date, slot.Time),
		})
	}
	return append(buttons, models.Button{ID: buttonChooseAnotherDay, Text: "Another day"})
}

type dayBrowserStep struct{ askStep }

func (s *dayBrowserStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	trimmed := strings.TrimSpace(input)
	date := strings.TrimPrefix(trimmed, dayButtonPrefix)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return ValidationResult{Valid: false, Error: "Please pick one of the listed days."}
	}
	return ValidationResult{Valid: true, TransformedInput: date}
}

func (s *dayBrowserStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	d := &goal.Collected
	if input == "" {
		return nil
	}
	d.Schedule.Date = input
	d.Schedule.AvailableHours = HoursForDay(input)
	d.ConfirmationMessage = fmt.Sprintf("%s it is.", input)
	return nil
}

func (s *dayBrowserStep) Prompt(_ *models.Goal) string {
	return "Which day suits you?"
}

func (s *dayBrowserStep) Buttons(_ *models.Goal) []models.Button {
	var buttons []models.Button
	for _, day := range BrowsableDays(time.Now(), 7) {
		buttons = append(buttons, models.Button{ID: dayButtonPrefix + day, Text: day})
	}
	return buttons
}

type hourBrowserStep struct{ askStep }

func (s *hourBrowserStep) Validate(_ context.Context, input string, goal *models.Goal, _ *TurnContext) ValidationResult {
	trimmed := strings.TrimPrefix(strings.TrimSpace(input), hourButtonPrefix)
	hours := goal.Collected.Schedule.AvailableHours
	if len(hours) == 0 {
		hours = dailyHours
	}
	for _, h := range hours {
		if h == trimmed {
			return ValidationResult{Valid: true, TransformedInput: trimmed}
		}
	}
	return ValidationResult{Valid: false, Error: "Please pick one of the available hours."}
}

func (s *hourBrowserStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	if input == "" {
		return nil
	}
	d := &goal.Collected
	d.Schedule.Time = input
	d.Schedule.BrowseMode = false
	d.ConfirmationMessage = fmt.Sprintf("Locked in %s at %s.", d.Schedule.Date, input)
	return nil
}

func (s *hourBrowserStep) Prompt(goal *models.Goal) string {
	return fmt.Sprintf("What time on %s?", goal.Collected.Schedule.Date)
}

func (s *hourBrowserStep) Buttons(goal *models.Goal) []models.Button {
	hours := goal.Collected.Schedule.AvailableHours
	if len(hours) == 0 {
		hours = dailyHours
	}
	var buttons []models.Button
	for _, h := range hours {
		buttons = append(buttons, models.Button{ID: hourButtonPrefix + h, Text: h})
	}
	return buttons
}

type checkExistingUserStep struct{ autoStep }

func (s *checkExistingUserStep) Process(ctx context.Context, _ string, goal *models.Goal, tc *TurnContext) error {
	d := &goal.Collected
	if d.Identity.UserID != "" || tc == nil || tc.Env == nil || tc.Env.Store == nil {
		return nil
	}
	user, err := tc.Env.Store.FindUserByPhone(ctx, tc.Session.BusinessID, tc.Session.ParticipantID)
	if err != nil {
		// Unknown phone means a new user, not a failure.
		d.Identity.ExistingUser = false
		return nil
	}
	d.Identity.UserID = user.ID
	d.Identity.Name = strings.TrimSpace(user.FirstName + " " + user.LastName)
	d.Identity.Email = user.Email
	d.Identity.ExistingUser = true
	d.ConfirmationMessage = fmt.Sprintf("Welcome back, %s!", user.FirstName)
	slog.Debug("checkExistingUser resolved user", "userID", user.ID, "goalID", goal.ID)
	return nil
}

type handleUserStatusStep struct{ autoStep }

type askUserNameStep struct{ askStep }

func (s *askUserNameStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	if len(strings.TrimSpace(input)) < 2 {
		return ValidationResult{Valid: false, Error: "What name should I put the booking under?"}
	}
	return ValidationResult{Valid: true, TransformedInput: strings.TrimSpace(input)}
}

func (s *askUserNameStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	if input != "" {
		goal.Collected.Identity.Name = input
	}
	return nil
}

func (s *askUserNameStep) Prompt(_ *models.Goal) string {
	return "What's your name?"
}

type createNewUserStep struct{ autoStep }

func (s *createNewUserStep) Process(ctx context.Context, _ string, goal *models.Goal, tc *TurnContext) error {
	d := &goal.Collected
	if d.Identity.UserID != "" || d.Identity.Name == "" || tc == nil || tc.Env == nil || tc.Env.Store == nil {
		return nil
	}
	parts := strings.SplitN(d.Identity.Name, " ", 2)
	user := &models.User{
		ID:         uuid.NewString(),
		BusinessID: tc.Session.BusinessID,
		FirstName:  parts[0],
		Phone:      tc.Session.ParticipantID,
		Email:      d.Identity.Email,
		Role:       models.ParticipantCustomer,
	}
	if len(parts) > 1 {
		user.LastName = parts[1]
	}
	if err := tc.Env.Store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	d.Identity.UserID = user.ID
	slog.Debug("createNewUser created user", "userID", user.ID, "goalID", goal.ID)
	return nil
}

type askEmailStep struct{ askStep }

func (s *askEmailStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	trimmed := strings.TrimSpace(input)
	if !strings.Contains(trimmed, "@") || !strings.Contains(trimmed, ".") {
		return ValidationResult{Valid: false, Error: "That doesn't look like an email address. Mind double-checking?"}
	}
	return ValidationResult{Valid: true, TransformedInput: trimmed}
}

func (s *askEmailStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	if input != "" {
		goal.Collected.Identity.Email = input
	}
	return nil
}

func (s *askEmailStep) Prompt(_ *models.Goal) string {
	return "What email should the confirmation go to?"
}

type quoteSummaryStep struct{ autoStep }

func (s *quoteSummaryStep) Process(ctx context.Context, _ string, goal *models.Goal, tc *TurnContext) error {
	d := &goal.Collected
	if d.Quote.ID != "" || d.Service.Selected == nil {
		return nil
	}
	total := d.Service.Selected.BasePrice
	names := []string{d.Service.Selected.Name}
	serviceIDs := []string{d.Service.Selected.ID}
	for _, svc := range d.Service.Additional {
		total += svc.BasePrice
		names = append(names, svc.Name)
		serviceIDs = append(serviceIDs, svc.ID)
	}
	quote := &models.Quote{
		ID:         uuid.NewString(),
		BusinessID: tc.Session.BusinessID,
		SessionID:  tc.Session.ID,
		UserID:     d.Identity.UserID,
		ServiceIDs: serviceIDs,
		Date:       d.Schedule.Date,
		Time:       d.Schedule.Time,
		Address:    d.Location.ServiceAddress,
		Total:      total,
		Status:     models.QuotePending,
		CreatedAt:  time.Now(),
	}
	if tc.Env != nil && tc.Env.Store != nil {
		if err := tc.Env.Store.CreateQuote(ctx, quote); err != nil {
			return fmt.Errorf("failed to persist quote: %w", err)
		}
	}
	d.Quote.ID = quote.ID
	d.Quote.Total = total
	d.Quote.Summary = fmt.Sprintf("Here's your quote:\n%s\n%s at %s\n%s\nTotal: $%.2f",
		strings.Join(names, " + "), quote.Date, quote.Time, quote.Address, total)
	d.ConfirmationMessage = d.Quote.Summary
	slog.Debug("quoteSummary created quote", "quoteID", quote.ID, "total", total, "goalID", goal.ID)
	return nil
}

type quoteChoiceStep struct{ askStep }

func (s *quoteChoiceStep) Validate(_ context.Context, input string, _ *models.Goal, _ *TurnContext) ValidationResult {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case buttonConfirmQuote, "yes", "confirm", "book it", "looks good":
		return ValidationResult{Valid: true, TransformedInput: buttonConfirmQuote}
	case buttonEditQuote, "no", "change", "edit":
		return ValidationResult{Valid: true, TransformedInput: buttonEditQuote}
	}
	return ValidationResult{Valid: false, Error: "Should I lock this in, or would you like to change something?"}
}

func (s *quoteChoiceStep) Process(_ context.Context, input string, goal *models.Goal, _ *TurnContext) error {
	d := &goal.Collected
	switch input {
	case buttonConfirmQuote:
		d.Quote.Confirmed = true
		d.Quote.PaymentLinkGenerated = true
		d.ConfirmationMessage = fmt.Sprintf(
			"To secure your booking, pay the deposit here:\nhttps://pay.example.com/q/%s\nI'll confirm as soon as the payment lands.", d.Quote.ID)
	case buttonEditQuote:
		d.ConfirmationMessage = "No problem. What would you like to change: the service, the time, or the address?"
	}
	return nil
}

func (s *quoteChoiceStep) Prompt(_ *models.Goal) string {
	return "Happy with the quote?"
}

func (s *quoteChoiceStep) Buttons(_ *models.Goal) []models.Button {
	return []models.Button{
		{ID: buttonConfirmQuote, Text: "Confirm booking"},
		{ID: buttonEditQuote, Text: "Change something"},
	}
}

type createBookingStep struct{ autoStep }

func (s *createBookingStep) Process(ctx context.Context, _ string, goal *models.Goal, tc *TurnContext) error {
	d := &goal.Collected
	if d.Quote.ID == "" || !d.Quote.PaymentCompleted || d.Quote.BookingID != "" {
		return nil
	}
	booking := &models.Booking{
		ID:         uuid.NewString(),
		QuoteID:    d.Quote.ID,
		BusinessID: tc.Session.BusinessID,
		UserID:     d.Identity.UserID,
		Date:       d.Schedule.Date,
		Time:       d.Schedule.Time,
		Address:    d.Location.ServiceAddress,
		Total:      d.Quote.Total,
		CreatedAt:  time.Now(),
	}
	if d.Service.Selected != nil {
		booking.ServiceIDs = []string{d.Service.Selected.ID}
		for _, svc := range d.Service.Additional {
			booking.ServiceIDs = append(booking.ServiceIDs, svc.ID)
		}
	}
	if tc.Env != nil && tc.Env.Store != nil {
		if err := tc.Env.Store.CreateBooking(ctx, booking); err != nil {
			return fmt.Errorf("failed to persist booking: %w", err)
		}
		if err := tc.Env.Store.UpdateQuoteStatus(ctx, d.Quote.ID, models.QuoteBooked); err != nil {
			slog.Error("createBooking failed to update quote status", "error", err, "quoteID", d.Quote.ID)
		}
	}
	d.Quote.BookingID = booking.ID
	slog.Debug("createBooking persisted booking", "bookingID", booking.ID, "goalID", goal.ID)
	return nil
}

type bookingConfirmationStep struct{ autoStep }

func (s *bookingConfirmationStep) AutoAdvance(_ *models.Goal) bool { return false }

func (s *bookingConfirmationStep) Process(_ context.Context, _ string, goal *models.Goal, _ *TurnContext) error {
	d := &goal.Collected
	name := d.Identity.Name
	if name == "" {
		name = "there"
	}
	d.ConfirmationMessage = fmt.Sprintf(
		"All booked, %s! %s on %s at %s.\nWe'll see you at %s. A confirmation is on its way to %s.",
		name, serviceNames(d), d.Schedule.Date, d.Schedule.Time, d.Location.ServiceAddress, d.Identity.Email)
	d.GoalComplete = true
	return nil
}

func serviceNames(d *models.CollectedData) string {
	if d.Service.Selected == nil {
		return "your service"
	}
	names := []string{d.Service.Selected.Name}
	for _, svc := range d.Service.Additional {
		names = append(names, svc.Name)
	}
	return strings.Join(names, " + ")
}
