package checkout

import (
	"sync"
	"time"

	"github.com/ordbot/storefront/internal/pricing"
)

type State int

const (
	StateAwaitingName State = iota
	StateAwaitingAddress
	StateAwaitingShipping
	StateAwaitingDiscount
	StateReadyToConfirm
)

func (s State) String() string {
	switch s {
	case StateAwaitingName:
		return "awaiting_name"
	case StateAwaitingAddress:
		return "awaiting_address"
	case StateAwaitingShipping:
		return "awaiting_shipping"
	case StateAwaitingDiscount:
		return "awaiting_discount"
	case StateReadyToConfirm:
		return "ready_to_confirm"
	default:
		return "unknown"
	}
}

// Draft is the data collected during one checkout conversation. It lives in
// memory only and is discarded on completion, cancel, or restart.
type Draft struct {
	Name            string
	Address         string
	Shipping        pricing.ShippingMethod
	DiscountCode    string
	DiscountPercent float64
}

type session struct {
	state     State
	draft     Draft
	startedAt time.Time
}

// Store keeps at most one active checkout session per customer.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*session)}
}

// begin starts a fresh session, silently dropping any draft in progress.
func (s *Store) begin(customerID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &session{state: StateAwaitingName, startedAt: time.Now()}
	s.sessions[customerID] = sess
	return sess
}

func (s *Store) get(customerID int64) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[customerID]
	return sess, ok
}

func (s *Store) end(customerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, customerID)
}
