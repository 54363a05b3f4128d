package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(WithDSN(filepath.Join(t.TempDir(), "store.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteBusinessLookupNormalizesPhones(t *testing.T) {
	st := newSQLiteTestStore(t)
	ctx := context.Background()

	business := &models.Business{
		ID:             "biz-1",
		Name:           "Shear Genius",
		WhatsappNumber: "+1 (555) 000-1111",
		Language:       "en",
	}
	if err := st.CreateBusiness(ctx, business); err != nil {
		t.Fatalf("CreateBusiness failed: %v", err)
	}

	for _, number := range []string{"15550001111", "+15550001111", "+1 555 000 1111"} {
		found, err := st.FindBusinessByWhatsappNumber(ctx, number)
		if err != nil {
			t.Errorf("lookup with %q failed: %v", number, err)
			continue
		}
		if found.ID != business.ID {
			t.Errorf("lookup with %q resolved wrong business %s", number, found.ID)
		}
		if found.WhatsappNumber != business.WhatsappNumber {
			t.Errorf("raw number must survive storage, got %q", found.WhatsappNumber)
		}
	}

	if _, err := st.FindBusinessByWhatsappNumber(ctx, "19990000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown number, got %v", err)
	}
}

func TestSQLiteUserLookupNormalizesPhones(t *testing.T) {
	st := newSQLiteTestStore(t)
	ctx := context.Background()

	user := &models.User{
		ID:         "user-1",
		BusinessID: "biz-1",
		FirstName:  "Ana",
		LastName:   "Silva",
		Phone:      "+1 (555) 123-4567",
		Email:      "ana@example.com",
		Role:       models.ParticipantCustomer,
	}
	if err := st.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	found, err := st.FindUserByPhone(ctx, "biz-1", "15551234567")
	if err != nil {
		t.Fatalf("FindUserByPhone failed: %v", err)
	}
	if found.ID != user.ID {
		t.Errorf("resolved wrong user %s", found.ID)
	}
	if found.Phone != user.Phone {
		t.Errorf("raw phone must survive storage, got %q", found.Phone)
	}

	if _, err := st.FindUserByPhone(ctx, "biz-2", "15551234567"); !errors.Is(err, ErrNotFound) {
		t.Errorf("users must be scoped to their business, got %v", err)
	}

	byID, err := st.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if byID.Email != "ana@example.com" {
		t.Errorf("GetUser returned wrong user: %+v", byID)
	}
	if _, err := st.GetUser(ctx, "user-999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown ID, got %v", err)
	}
}

func TestSQLiteProxyLookupsMatchNormalizedPhones(t *testing.T) {
	st := newSQLiteTestStore(t)
	ctx := context.Background()

	notif := &models.Notification{
		ID:         "notif-1",
		BusinessID: "biz-1",
		SessionID:  "sess-1",
		Reason:     models.ReasonHumanRequest,
		Status:     models.NotificationProxyMode,
		Proxy: &models.ProxySessionData{
			OperatorPhone: "+1 (555) 999-8888",
			CustomerPhone: "15551234567",
			StartedAt:     time.Now(),
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := st.CreateNotification(ctx, notif); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	if _, err := st.FindActiveProxyByOperatorPhone(ctx, "15559998888"); err != nil {
		t.Errorf("operator lookup failed: %v", err)
	}
	if _, err := st.FindActiveProxyByCustomerPhone(ctx, "+1 555 123 4567"); err != nil {
		t.Errorf("customer lookup failed: %v", err)
	}

	// Resolved notifications stop matching.
	notif.Status = models.NotificationProvidedHelp
	if err := st.UpdateNotification(ctx, notif); err != nil {
		t.Fatalf("UpdateNotification failed: %v", err)
	}
	if _, err := st.FindActiveProxyByOperatorPhone(ctx, "15559998888"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after resolution, got %v", err)
	}
}
