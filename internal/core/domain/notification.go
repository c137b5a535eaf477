package domain

import "time"

// NotificationKind identifies what happened on the ledger.
type NotificationKind string

const (
	NoteRoleRegistered     NotificationKind = "role_registered"
	NoteProductCreated     NotificationKind = "product_created"
	NoteProductPurchased   NotificationKind = "product_purchased"
	NoteShippingRequested  NotificationKind = "shipping_requested"
	NoteShipperAssigned    NotificationKind = "shipper_assigned"
	NoteTransportConfirmed NotificationKind = "transport_confirmed"
	NoteDeliveryConfirmed  NotificationKind = "delivery_confirmed"
	NoteBidRejected        NotificationKind = "bid_rejected"
)

// NoProduct marks notifications that are not about a product (role grants).
const NoProduct int64 = -1

// Notification is one entry of the append-only outbox. Notifications are
// written in the same atomic apply as the mutation that caused them, but
// observers must never rely on receiving one for correctness.
type Notification struct {
	Seq       int64            `json:"seq" bson:"_id"`
	Kind      NotificationKind `json:"kind" bson:"kind"`
	ProductID int64            `json:"product_id" bson:"product_id"`
	Actor     Account          `json:"actor" bson:"actor"`
	// Peer is the counterparty when one exists: the assigned shipper on
	// shipper_assigned, the rejected bidder on bid_rejected.
	Peer Account   `json:"peer,omitempty" bson:"peer,omitempty"`
	Tag  RoleTag   `json:"role,omitempty" bson:"role,omitempty"`
	At   time.Time `json:"at" bson:"at"`
}
