package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mesieou/simple-booking-sub004/internal/models"
	"github.com/mesieou/simple-booking-sub004/internal/store"
)

// GoalManager creates goals and selects the flow blueprint for them.
type GoalManager struct {
	store store.Store
}

// NewGoalManager creates a GoalManager backed by the given store.
func NewGoalManager(st store.Store) *GoalManager {
	return &GoalManager{store: st}
}

// CreateNewGoal builds a goal for the participant/goal-type/action triple.
// Booking goals prefetch the business service catalog and pick the mobile or
// fixed-site flow from it; a catalog fetch failure degrades to the mobile
// flow rather than blocking the conversation. Unmapped triples return
// models.ErrNoFlowMapping.
func (m *GoalManager) CreateNewGoal(ctx context.Context, participantType models.ParticipantType, goalType models.GoalType, action models.GoalAction, businessID string, seed models.IdentityData) (*models.Goal, error) {
	goal := &models.Goal{
		ID:        uuid.NewString(),
		Type:      goalType,
		Action:    action,
		Status:    models.GoalInProgress,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	goal.Collected.Identity = seed

	switch {
	case participantType == models.ParticipantCustomer && goalType == models.GoalServiceBooking && action == models.ActionCreate:
		services, err := m.store.ListServices(ctx, businessID)
		if err != nil {
			slog.Error("GoalManager failed to load service catalog, defaulting to mobile flow", "error", err, "businessID", businessID)
			goal.FlowKey = models.FlowBookingMobile
			return goal, nil
		}
		goal.Collected.Service.Available = services
		goal.FlowKey = models.FlowBookingFixed
		for _, svc := range services {
			if svc.Mobile {
				goal.FlowKey = models.FlowBookingMobile
				break
			}
		}

	case participantType == models.ParticipantCustomer && goalType == models.GoalFAQ:
		goal.FlowKey = models.FlowFAQ

	case participantType == models.ParticipantBusiness && goalType == models.GoalAccountManagement && action == models.ActionCreate:
		goal.FlowKey = models.FlowAccountCreation

	case participantType == models.ParticipantBusiness && goalType == models.GoalAccountManagement && action == models.ActionDelete:
		goal.FlowKey = models.FlowAccountDeletion

	default:
		slog.Error("GoalManager has no flow mapping", "participantType", participantType, "goalType", goalType, "action", action)
		return nil, fmt.Errorf("participant %s, goal %s, action %s: %w", participantType, goalType, action, models.ErrNoFlowMapping)
	}

	slog.Debug("GoalManager created goal", "goalID", goal.ID, "flowKey", goal.FlowKey)
	return goal, nil
}

// HandleTopicSwitch completes the active goal and installs a fresh one for
// the new topic, carrying the resolved identity over.
func (m *GoalManager) HandleTopicSwitch(ctx context.Context, sess *models.ConversationSession, goalType models.GoalType, action models.GoalAction) (*models.Goal, error) {
	var seed models.IdentityData
	if current := sess.ActiveGoal(); current != nil {
		seed = current.Collected.Identity
	}
	goal, err := m.CreateNewGoal(ctx, sess.ParticipantType, goalType, action, sess.BusinessID, seed)
	if err != nil {
		return nil, err
	}
	sess.SetActiveGoal(goal)
	slog.Debug("GoalManager switched topic", "sessionID", sess.ID, "goalID", goal.ID, "flowKey", goal.FlowKey)
	return goal, nil
}
