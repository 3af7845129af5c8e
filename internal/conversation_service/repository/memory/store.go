// Package memory keeps every aggregate in process memory. It backs
// STORE_DRIVER=memory and the engine tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
)

// Store holds all records behind one mutex, which makes every repository
// method atomic.
type Store struct {
	mu sync.RWMutex

	businesses      map[uuid.UUID]*domain.Business
	businessByPhone map[string]uuid.UUID
	customers       map[uuid.UUID]*domain.Customer
	customerByPhone map[string]uuid.UUID
	vendors         map[uuid.UUID]*domain.Vendor
	sessions        map[uuid.UUID]*domain.Session
	sessionByPair   map[string]uuid.UUID
	orders          map[uuid.UUID]*domain.Order
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		businesses:      make(map[uuid.UUID]*domain.Business),
		businessByPhone: make(map[string]uuid.UUID),
		customers:       make(map[uuid.UUID]*domain.Customer),
		customerByPhone: make(map[string]uuid.UUID),
		vendors:         make(map[uuid.UUID]*domain.Vendor),
		sessions:        make(map[uuid.UUID]*domain.Session),
		sessionByPair:   make(map[string]uuid.UUID),
		orders:          make(map[uuid.UUID]*domain.Order),
	}
}

// Businesses returns the business repository view.
func (s *Store) Businesses() *BusinessRepository { return &BusinessRepository{s} }

// Customers returns the customer repository view.
func (s *Store) Customers() *CustomerRepository { return &CustomerRepository{s} }

// Vendors returns the vendor repository view.
func (s *Store) Vendors() *VendorRepository { return &VendorRepository{s} }

// Sessions returns the session repository view.
func (s *Store) Sessions() *SessionRepository { return &SessionRepository{s} }

// Orders returns the order repository view.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s} }

// PutVendor inserts or replaces a vendor. Vendors and businesses are set up
// outside the engine.
func (s *Store) PutVendor(v domain.Vendor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vendors[v.ID] = &v
}

// PutBusiness inserts or replaces a business.
func (s *Store) PutBusiness(b domain.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[b.ID] = &b
	s.businessByPhone[b.PhoneNumber] = b.ID
}

// SessionCount returns the number of stored sessions.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CustomerCount returns the number of stored customers.
func (s *Store) CustomerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers)
}

func pairKey(businessID, customerID uuid.UUID) string {
	return businessID.String() + ":" + customerID.String()
}

func copySession(src *domain.Session) *domain.Session {
	out := *src
	out.Messages = append([]domain.Message(nil), src.Messages...)
	if src.LastMessageTime != nil {
		t := *src.LastMessageTime
		out.LastMessageTime = &t
	}
	return &out
}

// BusinessRepository implements domain.BusinessRepository.
type BusinessRepository struct{ s *Store }

func (r *BusinessRepository) FindByPhoneNumber(_ context.Context, phoneNumber string) (*domain.Business, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.businessByPhone[phoneNumber]
	if !ok {
		return nil, domain.ErrNotFound
	}
	b := *r.s.businesses[id]
	return &b, nil
}

func (r *BusinessRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Business, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.businesses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *b
	return &out, nil
}

// CustomerRepository implements domain.CustomerRepository.
type CustomerRepository struct{ s *Store }

func (r *CustomerRepository) FindByContactNumber(_ context.Context, contactNumber string) (*domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.customerByPhone[contactNumber]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *r.s.customers[id]
	return &c, nil
}

func (r *CustomerRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r *CustomerRepository) Create(_ context.Context, customer *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.customerByPhone[customer.ContactNumber]; exists {
		return domain.ErrDuplicateEntry
	}
	c := *customer
	r.s.customers[c.ID] = &c
	r.s.customerByPhone[c.ContactNumber] = c.ID
	return nil
}

// VendorRepository implements domain.VendorRepository.
type VendorRepository struct{ s *Store }

func (r *VendorRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Vendor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.vendors[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *v
	return &out, nil
}

func (r *VendorRepository) UpdateDeviceToken(_ context.Context, vendorID uuid.UUID, token string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.vendors[vendorID]
	if !ok {
		return domain.ErrNotFound
	}
	v.DeviceToken = token
	v.DeviceTokenUpdatedAt = &at
	return nil
}

// SessionRepository implements domain.SessionRepository.
type SessionRepository struct{ s *Store }

func (r *SessionRepository) FindByParticipants(_ context.Context, businessID, customerID uuid.UUID) (*domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.sessionByPair[pairKey(businessID, customerID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copySession(r.s.sessions[id]), nil
}

func (r *SessionRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copySession(sess), nil
}

func (r *SessionRepository) Create(_ context.Context, session *domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pairKey(session.BusinessID, session.CustomerID)
	if _, exists := r.s.sessionByPair[key]; exists {
		return domain.ErrDuplicateEntry
	}
	r.s.sessions[session.ID] = copySession(session)
	r.s.sessionByPair[key] = session.ID
	return nil
}

func (r *SessionRepository) AppendMessage(_ context.Context, sessionID uuid.UUID, msg domain.Message, effects domain.AppendEffects, at time.Time) (*domain.Message, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[sessionID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if existing, found := sess.FindByProviderID(msg.ProviderMessageID); found {
		out := *existing
		return &out, false, nil
	}
	effects.Apply(sess, msg, at)
	out := msg
	return &out, true, nil
}

func (r *SessionRepository) MarkHandled(_ context.Context, sessionID uuid.UUID, resetUnread bool, at time.Time) (*domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	sess.HandledByVendor = true
	if resetUnread {
		sess.UnreadCount = 0
	}
	sess.UpdatedAt = at
	return copySession(sess), nil
}

func (r *SessionRepository) UpdateMessageStatus(_ context.Context, update domain.StatusUpdate) (domain.StatusUpdateResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	found, applied := false, false
	for _, sess := range r.s.sessions {
		for i := range sess.Messages {
			m := &sess.Messages[i]
			if update.ProviderMessageID == "" || m.ProviderMessageID != update.ProviderMessageID {
				continue
			}
			found = true
			if domain.CanTransition(m.Status, update.Status) {
				m.Status = update.Status
				m.Timestamp = update.Timestamp
				applied = true
			}
		}
	}
	switch {
	case applied:
		return domain.StatusUpdateApplied, nil
	case found:
		return domain.StatusUpdateStale, nil
	default:
		return domain.StatusUpdateTargetMissing, nil
	}
}

// OrderRepository implements domain.OrderRepository.
type OrderRepository struct{ s *Store }

func (r *OrderRepository) Create(_ context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.orders[order.ID]; exists {
		return domain.ErrDuplicateEntry
	}
	o := *order
	r.s.orders[o.ID] = &o
	return nil
}

func (r *OrderRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *o
	return &out, nil
}

var (
	_ domain.BusinessRepository = (*BusinessRepository)(nil)
	_ domain.CustomerRepository = (*CustomerRepository)(nil)
	_ domain.VendorRepository   = (*VendorRepository)(nil)
	_ domain.SessionRepository  = (*SessionRepository)(nil)
	_ domain.OrderRepository    = (*OrderRepository)(nil)
)
