package checkout

import (
	"errors"
	"strings"

	"github.com/ordbot/storefront/internal/pricing"
)

var ErrNoSession = errors.New("no active checkout session")

// transitions is the linear path of the conversation. Each inbound message
// advances at most one step.
var transitions = map[State]State{
	StateAwaitingName:     StateAwaitingAddress,
	StateAwaitingAddress:  StateAwaitingShipping,
	StateAwaitingShipping: StateAwaitingDiscount,
	StateAwaitingDiscount: StateReadyToConfirm,
}

// Result reports the machine's reaction to one input. Advanced=false means
// the input was rejected and the same step must be re-prompted.
type Result struct {
	State       State
	Advanced    bool
	UnknownCode bool // discount code not recognised, proceeding at 0%
	Ready       bool // draft is complete, waiting for confirm/cancel
	Draft       Draft
}

// Machine drives the checkout conversation: name, address, shipping method,
// optional discount code, confirmation. One session per customer; starting
// over replaces the draft.
type Machine struct {
	store *Store
}

func NewMachine(store *Store) *Machine {
	return &Machine{store: store}
}

func (m *Machine) Begin(customerID int64) Result {
	sess := m.store.begin(customerID)
	return Result{State: sess.state, Advanced: true, Draft: sess.draft}
}

func (m *Machine) Active(customerID int64) bool {
	_, ok := m.store.get(customerID)
	return ok
}

// Submit feeds one free-text reply into the customer's session.
func (m *Machine) Submit(customerID int64, input string) (Result, error) {
	sess, ok := m.store.get(customerID)
	if !ok {
		return Result{}, ErrNoSession
	}

	input = strings.TrimSpace(input)
	res := Result{State: sess.state, Draft: sess.draft}

	switch sess.state {
	case StateAwaitingName:
		if input == "" {
			return res, nil
		}
		sess.draft.Name = input

	case StateAwaitingAddress:
		if input == "" {
			return res, nil
		}
		sess.draft.Address = input

	case StateAwaitingShipping:
		method, ok := pricing.ParseShipping(input)
		if !ok {
			return res, nil
		}
		sess.draft.Shipping = method

	case StateAwaitingDiscount:
		if !strings.EqualFold(input, "skip") && input != "" {
			if pct, known := pricing.DiscountPercent(input); known {
				sess.draft.DiscountCode = strings.ToUpper(input)
				sess.draft.DiscountPercent = pct
			} else {
				res.UnknownCode = true
			}
		}

	case StateReadyToConfirm:
		// Free text is ignored here; the draft completes via Take or Cancel.
		res.Ready = true
		return res, nil
	}

	sess.state = transitions[sess.state]
	res.State = sess.state
	res.Advanced = true
	res.Ready = sess.state == StateReadyToConfirm
	res.Draft = sess.draft
	return res, nil
}

// Take hands the completed draft to the caller and ends the session,
// whatever the caller then does with it. A confirm arriving before the draft
// is ready is refused and leaves the session in progress.
func (m *Machine) Take(customerID int64) (Draft, error) {
	sess, ok := m.store.get(customerID)
	if !ok || sess.state != StateReadyToConfirm {
		return Draft{}, ErrNoSession
	}
	m.store.end(customerID)
	return sess.draft, nil
}

// Cancel discards the draft from any state.
func (m *Machine) Cancel(customerID int64) bool {
	_, ok := m.store.get(customerID)
	if ok {
		m.store.end(customerID)
	}
	return ok
}
