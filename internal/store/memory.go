package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/mesieou/simple-booking-sub004/internal/models"
)

// InMemoryStore keeps everything in maps guarded by a single mutex. It is the
// default backend for tests and exhibits the same version-conflict semantics
// as the SQL backends.
type InMemoryStore struct {
	mu            sync.Mutex
	sessions      map[string]*models.ConversationSession
	businesses    map[string]*models.Business
	services      map[string][]models.ServiceInfo // by business ID
	users         map[string]*models.User
	quotes        map[string]*models.Quote
	bookings      map[string]*models.Booking
	notifications map[string]*models.Notification
	inboundSeen   map[string]time.Time // message ID -> received at
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:      make(map[string]*models.ConversationSession),
		businesses:    make(map[string]*models.Business),
		services:      make(map[string][]models.ServiceInfo),
		users:         make(map[string]*models.User),
		quotes:        make(map[string]*models.Quote),
		bookings:      make(map[string]*models.Booking),
		notifications: make(map[string]*models.Notification),
		inboundSeen:   make(map[string]time.Time),
	}
}

// copySession deep-copies through JSON so callers never share pointers with
// the stored snapshot.
func copySession(s *models.ConversationSession) *models.ConversationSession {
	raw, _ := json.Marshal(s)
	var out models.ConversationSession
	_ = json.Unmarshal(raw, &out)
	return &out
}

func (s *InMemoryStore) CreateSession(_ context.Context, sess *models.ConversationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

func (s *InMemoryStore) GetSessionByID(_ context.Context, id string) (*models.ConversationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(sess), nil
}

func (s *InMemoryStore) FindActiveSession(_ context.Context, channel models.ChannelType, participantID, businessID string, updatedSince time.Time) (*models.ConversationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.Channel == channel && sess.ParticipantID == participantID &&
			sess.BusinessID == businessID && sess.Status == models.SessionActive &&
			!sess.UpdatedAt.Before(updatedSince) {
			return copySession(sess), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) UpdateSession(_ context.Context, sess *models.ConversationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[sess.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != sess.Version {
		return ErrVersionConflict
	}
	next := copySession(sess)
	next.Version = sess.Version + 1
	next.UpdatedAt = time.Now()
	s.sessions[sess.ID] = next
	sess.Version = next.Version
	sess.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *InMemoryStore) CreateBusiness(_ context.Context, b *models.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.businesses[b.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetBusiness(_ context.Context, id string) (*models.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *InMemoryStore) FindBusinessByWhatsappNumber(_ context.Context, number string) (*models.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.businesses {
		if normalizePhone(b.WhatsappNumber) == normalizePhone(number) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) DeleteBusiness(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.businesses[id]; !ok {
		return ErrNotFound
	}
	delete(s.businesses, id)
	delete(s.services, id)
	return nil
}

func (s *InMemoryStore) ListServices(_ context.Context, businessID string) ([]models.ServiceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ServiceInfo, len(s.services[businessID]))
	copy(out, s.services[businessID])
	return out, nil
}

func (s *InMemoryStore) CreateService(_ context.Context, svc *models.ServiceInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.BusinessID] = append(s.services[svc.BusinessID], *svc)
	return nil
}

func (s *InMemoryStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryStore) FindUserByPhone(_ context.Context, businessID, phone string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.BusinessID == businessID && normalizePhone(u.Phone) == normalizePhone(phone) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) CreateQuote(_ context.Context, q *models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	s.quotes[q.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetQuote(_ context.Context, id string) (*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *InMemoryStore) UpdateQuoteStatus(_ context.Context, id string, status models.QuoteStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok {
		return ErrNotFound
	}
	q.Status = status
	return nil
}

func (s *InMemoryStore) CreateBooking(_ context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func copyNotification(n *models.Notification) *models.Notification {
	cp := *n
	if n.Proxy != nil {
		p := *n.Proxy
		cp.Proxy = &p
	}
	return &cp
}

func (s *InMemoryStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = copyNotification(n)
	return nil
}

func (s *InMemoryStore) UpdateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; !ok {
		return ErrNotFound
	}
	n.UpdatedAt = time.Now()
	s.notifications[n.ID] = copyNotification(n)
	return nil
}

func (s *InMemoryStore) GetNotification(_ context.Context, id string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyNotification(n), nil
}

func (s *InMemoryStore) FindActiveProxyByOperatorPhone(_ context.Context, phone string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.Status == models.NotificationProxyMode && n.Proxy != nil &&
			normalizePhone(n.Proxy.OperatorPhone) == normalizePhone(phone) {
			return copyNotification(n), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) FindActiveProxyByCustomerPhone(_ context.Context, phone string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.Status == models.NotificationProxyMode && n.Proxy != nil &&
			normalizePhone(n.Proxy.CustomerPhone) == normalizePhone(phone) {
			return copyNotification(n), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) FindActiveProxyBySessionID(_ context.Context, sessionID string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.Status == models.NotificationProxyMode && n.SessionID == sessionID {
			return copyNotification(n), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) ListNotifications(_ context.Context, businessID string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.BusinessID == businessID {
			out = append(out, *copyNotification(n))
		}
	}
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

// normalizePhone strips everything except digits so numbers in different
// formats compare equal.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
