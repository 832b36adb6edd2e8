package transport

import "sync"

// adminState is the step an admin conversation is waiting on.
type adminState int

const (
	adminIdle adminState = iota
	adminAwaitingPhoto
	adminAwaitingTitle
	adminAwaitingDescription
	adminAwaitingStock
	adminAwaitingTiers
	adminAwaitingStockEdit
)

// adminDraft accumulates the add-product conversation; for edit-tiers and
// edit-stock only productID is set.
type adminDraft struct {
	state       adminState
	photo       string
	title       string
	description string
	productID   int64
}

type adminFlows struct {
	mu     sync.Mutex
	drafts map[int64]*adminDraft
}

func newAdminFlows() *adminFlows {
	return &adminFlows{drafts: make(map[int64]*adminDraft)}
}

func (f *adminFlows) begin(adminID int64, state adminState) *adminDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &adminDraft{state: state}
	f.drafts[adminID] = d
	return d
}

func (f *adminFlows) get(adminID int64) (*adminDraft, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[adminID]
	return d, ok
}

func (f *adminFlows) end(adminID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, adminID)
}

// reviewDraft tracks a review in progress: order chosen, then stars, then the
// free-text body.
type reviewDraft struct {
	orderID string
	stars   int
}

type reviewFlows struct {
	mu     sync.Mutex
	drafts map[int64]*reviewDraft
}

func newReviewFlows() *reviewFlows {
	return &reviewFlows{drafts: make(map[int64]*reviewDraft)}
}

func (f *reviewFlows) begin(customerID int64, orderID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts[customerID] = &reviewDraft{orderID: orderID}
}

func (f *reviewFlows) get(customerID int64) (*reviewDraft, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[customerID]
	return d, ok
}

func (f *reviewFlows) end(customerID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, customerID)
}
