// Package models defines core data structures for the booking engine.
//
// Flow keys and step identifiers also live here so that flow, store and
// orchestrator packages can share them without import cycles.
package models

import (
	"errors"
	"time"
)

// ChannelType identifies the messaging channel a session runs on.
type ChannelType string

const (
	ChannelWhatsApp ChannelType = "whatsapp"
	ChannelWeb      ChannelType = "web"
)

// ParticipantType distinguishes end customers from business users.
type ParticipantType string

const (
	ParticipantCustomer ParticipantType = "customer"
	ParticipantBusiness ParticipantType = "business"
)

// SessionStatus represents the lifecycle state of a conversation session.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionExpired SessionStatus = "expired"
)

// GoalType classifies what the participant is trying to achieve.
type GoalType string

const (
	GoalServiceBooking    GoalType = "serviceBooking"
	GoalFAQ               GoalType = "frequentlyAskedQuestion"
	GoalAccountManagement GoalType = "accountManagement"
	GoalGeneralChitchat   GoalType = "generalChitchat"
)

// GoalAction qualifies the goal type (create a booking vs delete an account).
type GoalAction string

const (
	ActionCreate GoalAction = "create"
	ActionUpdate GoalAction = "update"
	ActionDelete GoalAction = "delete"
	ActionNone   GoalAction = ""
)

// GoalStatus represents goal progress.
type GoalStatus string

const (
	GoalInProgress GoalStatus = "inProgress"
	GoalCompleted  GoalStatus = "completed"
	GoalFailed     GoalStatus = "failed"
)

// SpeakerRole identifies who produced a message in the conversation history.
type SpeakerRole string

const (
	RoleUser  SpeakerRole = "user"
	RoleBot   SpeakerRole = "bot"
	RoleStaff SpeakerRole = "staff"
)

// Sentinel errors shared across packages.
var (
	ErrNoFlowMapping   = errors.New("no flow mapping for participant/goal combination")
	ErrSessionExpired  = errors.New("session is expired")
	ErrEmptyMessage    = errors.New("message body is empty")
	ErrUnknownBusiness = errors.New("business not found for channel number")
)

// Message is one entry in the append-only conversation history.
type Message struct {
	Role      SpeakerRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// Button is an interactive quick-reply option attached to a bot response.
type Button struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
}

// BotResponse is what a processed turn hands back to the channel adapter.
type BotResponse struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
}

// InboundMessage is a normalized message arriving from any channel.
type InboundMessage struct {
	Channel        ChannelType `json:"channel"`
	MessageID      string      `json:"messageId"`
	From           string      `json:"from"`           // sender phone, digits only
	BusinessNumber string      `json:"businessNumber"` // channel number the message arrived on
	Body           string      `json:"body"`
	ButtonID       string      `json:"buttonId,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// Goal is a unit of work the conversation is driving toward. A session holds
// at most one goal in progress at a time.
type Goal struct {
	ID               string        `json:"id"`
	Type             GoalType      `json:"type"`
	Action           GoalAction    `json:"action"`
	Status           GoalStatus    `json:"status"`
	FlowKey          FlowKey       `json:"flowKey"`
	CurrentStepIndex int           `json:"currentStepIndex"`
	Collected        CollectedData `json:"collected"`
	History          []Message     `json:"history,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// ConversationSession is the per-participant, per-business conversation state.
// Version is an optimistic concurrency counter incremented on every persisted
// update; writers observing a stale Version must retry.
type ConversationSession struct {
	ID              string          `json:"id"`
	Channel         ChannelType     `json:"channel"`
	ParticipantID   string          `json:"participantId"` // phone for whatsapp
	ParticipantType ParticipantType `json:"participantType"`
	BusinessID      string          `json:"businessId"`
	Status          SessionStatus   `json:"status"`
	Language        string          `json:"language"`
	Goals           []*Goal         `json:"goals"`
	History         []Message       `json:"history"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ActiveGoal returns the goal currently in progress, or nil.
func (s *ConversationSession) ActiveGoal() *Goal {
	for _, g := range s.Goals {
		if g.Status == GoalInProgress {
			return g
		}
	}
	return nil
}

// SetActiveGoal marks any in-progress goal completed and appends g as the new
// active goal.
func (s *ConversationSession) SetActiveGoal(g *Goal) {
	for _, existing := range s.Goals {
		if existing.Status == GoalInProgress {
			existing.Status = GoalCompleted
			existing.UpdatedAt = time.Now()
		}
	}
	s.Goals = append(s.Goals, g)
}

// AppendHistory appends a message to both the session history and the active
// goal history, if any.
func (s *ConversationSession) AppendHistory(role SpeakerRole, content string) {
	msg := Message{Role: role, Content: content, Timestamp: time.Now()}
	s.History = append(s.History, msg)
	if g := s.ActiveGoal(); g != nil {
		g.History = append(g.History, msg)
	}
}

// Business is a tenant with a dedicated WhatsApp number and an operator who
// receives escalation alerts.
type Business struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	WhatsappNumber string `json:"whatsappNumber"`
	OperatorPhone  string `json:"operatorPhone"`
	Address        string `json:"address,omitempty"`
	TimeZone       string `json:"timeZone"`
	Language       string `json:"language"`
}

// User is a known participant (customer or staff) of a business.
type User struct {
	ID         string          `json:"id"`
	BusinessID string          `json:"businessId"`
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	Phone      string          `json:"phone"`
	Email      string          `json:"email"`
	Role       ParticipantType `json:"role"`
}

// ServiceInfo describes one bookable service of a business.
type ServiceInfo struct {
	ID           string  `json:"id"`
	BusinessID   string  `json:"businessId"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Mobile       bool    `json:"mobile"` // performed at the customer's address
	BasePrice    float64 `json:"basePrice"`
	DurationMins int     `json:"durationMins"`
}

// QuoteStatus tracks a quote through payment and booking.
type QuoteStatus string

const (
	QuotePending QuoteStatus = "pending"
	QuotePaid    QuoteStatus = "paid"
	QuoteBooked  QuoteStatus = "booked"
)

// Quote is a priced proposal generated at the end of data collection. The
// payment-completion control message references quotes by ID.
type Quote struct {
	ID         string      `json:"id"`
	BusinessID string      `json:"businessId"`
	SessionID  string      `json:"sessionId"`
	UserID     string      `json:"userId"`
	ServiceIDs []string    `json:"serviceIds"`
	Date       string      `json:"date"` // YYYY-MM-DD
	Time       string      `json:"time"` // HH:MM
	Address    string      `json:"address"`
	Total      float64     `json:"total"`
	Status     QuoteStatus `json:"status"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Booking is the confirmed outcome of a paid quote.
type Booking struct {
	ID         string    `json:"id"`
	QuoteID    string    `json:"quoteId"`
	BusinessID string    `json:"businessId"`
	UserID     string    `json:"userId"`
	ServiceIDs []string  `json:"serviceIds"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Address    string    `json:"address"`
	Total      float64   `json:"total"`
	CreatedAt  time.Time `json:"createdAt"`
}
