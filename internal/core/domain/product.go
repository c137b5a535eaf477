package domain

import "time"

// ProductStatus represents the lifecycle state of a product.
type ProductStatus string

const (
	StatusCreated   ProductStatus = "created"
	StatusSold      ProductStatus = "sold"
	StatusInTransit ProductStatus = "in_transit"
	StatusArrived   ProductStatus = "arrived"
	StatusDelivered ProductStatus = "delivered"
)

// validTransitions defines the allowed state machine transitions.
// The lifecycle is strictly linear: no branches, no reverse moves, no
// skipping. StatusDelivered is terminal and has no outgoing edges.
var validTransitions = map[ProductStatus][]ProductStatus{
	StatusCreated:   {StatusSold},
	StatusSold:      {StatusInTransit},
	StatusInTransit: {StatusArrived},
	StatusArrived:   {StatusDelivered},
}

// CanTransitionTo reports whether a transition from the current status to next is valid.
func (s ProductStatus) CanTransitionTo(next ProductStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s ProductStatus) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// StatusHistoryEntry records a single status transition on a product.
type StatusHistoryEntry struct {
	Status    ProductStatus `json:"status" bson:"status"`
	Actor     Account       `json:"actor" bson:"actor"`
	Timestamp time.Time     `json:"timestamp" bson:"timestamp"`
}

// Product is the central marketplace entity. ID, Name, Price and Producer are
// immutable after creation; Buyer and Shipper are set exactly once by the
// purchase and assignment operations; Status only advances along the
// transition table.
type Product struct {
	ID            int64                `json:"id" bson:"_id"`
	Name          string               `json:"name" bson:"name"`
	Price         int64                `json:"price" bson:"price"`
	Producer      Account              `json:"producer" bson:"producer"`
	Buyer         Account              `json:"buyer,omitempty" bson:"buyer,omitempty"`
	Shipper       Account              `json:"shipper,omitempty" bson:"shipper,omitempty"`
	Status        ProductStatus        `json:"status" bson:"status"`
	CreatedAt     time.Time            `json:"created_at" bson:"created_at"`
	StatusHistory []StatusHistoryEntry `json:"status_history" bson:"status_history"`
}

// Advance moves the product to next, recording the actor in the status
// history. Returns ErrInvalidState when the transition is not in the table.
func (p *Product) Advance(next ProductStatus, actor Account, at time.Time) error {
	if !p.Status.CanTransitionTo(next) {
		return ErrInvalidState
	}
	p.Status = next
	p.StatusHistory = append(p.StatusHistory, StatusHistoryEntry{
		Status:    next,
		Actor:     actor,
		Timestamp: at,
	})
	return nil
}
