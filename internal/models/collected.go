package models

// CollectedData is the per-goal scratchpad filled in by step handlers. Fields
// are grouped so that back-navigation can clear exactly the group a step owns
// plus its derived data, leaving everything else intact.
type CollectedData struct {
	Service  ServiceData  `json:"service"`
	Schedule ScheduleData `json:"schedule"`
	Location LocationData `json:"location"`
	Identity IdentityData `json:"identity"`
	Quote    QuoteData    `json:"quote"`
	Account  AccountData  `json:"account,omitempty"`
	FAQ      FAQData      `json:"faq,omitempty"`

	// Control surface mutated by step handlers and consumed by the
	// orchestrator within a single turn.
	ConfirmationMessage string `json:"confirmationMessage,omitempty"`
	RestartFlow         bool   `json:"restartFlow,omitempty"`
	NavigateBackTo      Step   `json:"navigateBackTo,omitempty"`
	GoalComplete        bool   `json:"goalComplete,omitempty"`
}

// ServiceData covers service selection. Available is the prefetched catalog
// seeded at goal creation and survives clearing.
type ServiceData struct {
	Selected        *ServiceInfo  `json:"selected,omitempty"`
	Additional      []ServiceInfo `json:"additional,omitempty"`
	AddServicesDone bool          `json:"addServicesDone,omitempty"`
	Available       []ServiceInfo `json:"available,omitempty"`
}

// TimeSlot is one offered appointment slot.
type TimeSlot struct {
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // HH:MM
}

// ScheduleData covers date and time selection.
type ScheduleData struct {
	Date           string     `json:"date,omitempty"` // YYYY-MM-DD
	Time           string     `json:"time,omitempty"` // HH:MM
	QuickBooking   bool       `json:"quickBooking,omitempty"`
	BrowseMode     bool       `json:"browseMode,omitempty"`
	NextSlots      []TimeSlot `json:"nextSlots,omitempty"`
	AvailableHours []string   `json:"availableHours,omitempty"`
}

// LocationData covers where the service happens.
type LocationData struct {
	CustomerAddress  string `json:"customerAddress,omitempty"`
	ServiceAddress   string `json:"serviceAddress,omitempty"`
	AddressValidated bool   `json:"addressValidated,omitempty"`
}

// IdentityData covers who is booking.
type IdentityData struct {
	UserID       string `json:"userId,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	ExistingUser bool   `json:"existingUser,omitempty"`
}

// QuoteData covers the priced proposal and its payment state.
type QuoteData struct {
	ID                   string  `json:"id,omitempty"`
	Total                float64 `json:"total,omitempty"`
	Summary              string  `json:"summary,omitempty"`
	Confirmed            bool    `json:"confirmed,omitempty"`
	PaymentLinkGenerated bool    `json:"paymentLinkGenerated,omitempty"`
	PaymentCompleted     bool    `json:"paymentCompleted,omitempty"`
	BookingID            string  `json:"bookingId,omitempty"`
}

// AccountData is the scratchpad for business account flows.
type AccountData struct {
	BusinessName      string `json:"businessName,omitempty"`
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	TimeZone          string `json:"timeZone,omitempty"`
	DetailsConfirmed  bool   `json:"detailsConfirmed,omitempty"`
	DeletionConfirmed bool   `json:"deletionConfirmed,omitempty"`
	PasswordVerified  bool   `json:"passwordVerified,omitempty"`
}

// FAQData is the scratchpad for the FAQ flow.
type FAQData struct {
	Question  string `json:"question,omitempty"`
	Answer    string `json:"answer,omitempty"`
	Satisfied bool   `json:"satisfied,omitempty"`
}

// HasCompleteBookingData reports whether everything a quote needs is present.
func (d *CollectedData) HasCompleteBookingData() bool {
	return d.Service.Selected != nil &&
		d.Schedule.Date != "" &&
		d.Schedule.Time != "" &&
		d.Location.ServiceAddress != "" &&
		d.Identity.UserID != ""
}

// ClearServiceData resets service selection and everything derived from it:
// location, quote and browse mode. The prefetched catalog is kept.
func (d *CollectedData) ClearServiceData() {
	d.Service.Selected = nil
	d.Service.Additional = nil
	d.Service.AddServicesDone = false
	d.Location = LocationData{}
	d.Schedule.BrowseMode = false
	d.clearQuote()
}

// ClearScheduleData resets date/time selection and the derived quote.
func (d *CollectedData) ClearScheduleData() {
	d.Schedule = ScheduleData{}
	d.clearQuote()
}

// ClearLocationData resets address data and the derived quote.
func (d *CollectedData) ClearLocationData() {
	d.Location = LocationData{}
	d.clearQuote()
}

// ClearIdentityData resets who is booking. The quote is kept; identity is
// re-resolved before quote confirmation.
func (d *CollectedData) ClearIdentityData() {
	d.Identity = IdentityData{}
}

// ClearQuoteData resets the priced proposal so it is rebuilt from the
// current collected data.
func (d *CollectedData) ClearQuoteData() {
	d.clearQuote()
}

func (d *CollectedData) clearQuote() {
	d.Quote = QuoteData{}
}
