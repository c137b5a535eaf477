package domain

import "errors"

// Core error taxonomy. Every failing operation surfaces exactly one of these
// kinds; callers decide whether to retry, the core never does.
var (
	// ErrUnauthorized means the caller lacks the required capability or is
	// not the owner (producer/buyer/shipper) the operation demands.
	ErrUnauthorized = errors.New("caller not authorized")
	// ErrAlreadyRegistered means the (account, role) grant already exists.
	ErrAlreadyRegistered = errors.New("role already registered")
	// ErrInvalidState means the product is not in the lifecycle state the
	// operation requires.
	ErrInvalidState = errors.New("invalid product state")
	// ErrWrongValue means the attached payment does not equal the price.
	ErrWrongValue = errors.New("wrong value sent")
	// ErrNotABidder means the assignment target never requested shipping
	// for the product.
	ErrNotABidder = errors.New("shipper is not a bidder")
	// ErrProductNotFound means the referenced product id does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrRejectionNotDurable means a durable bid rejection was requested
	// while the arbitration policy keeps rejection presentation-only.
	ErrRejectionNotDurable = errors.New("bid rejection is not durable")
)

// Session boundary errors.
var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
