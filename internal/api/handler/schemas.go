package handler

import (
	"time"

	"github.com/marketledger/marketledger/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Session boundary ---

type registerRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	Username  string    `json:"username"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

type authResponse struct {
	Token string        `json:"token,omitempty"`
	User  *userResponse `json:"user,omitempty"`
}

// --- Roles ---

type registerRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=producer shipper buyer"`
}

type rolesResponse struct {
	Account string   `json:"account"`
	Roles   []string `json:"roles"`
}

// --- Products ---

type createProductRequest struct {
	Name  string `json:"name"  validate:"required,max=128"`
	Price int64  `json:"price" validate:"required,gt=0"`
}

type purchaseRequest struct {
	// Paid is the caller-attached payment. No validation tag: any mismatch
	// with the listed price, zero included, is the catalog's exact-match
	// check to classify.
	Paid int64 `json:"paid"`
}

type assignShipperRequest struct {
	Shipper string `json:"shipper" validate:"required"`
}

type statusHistoryItemResponse struct {
	Status    string    `json:"status"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

type productResponse struct {
	ID            int64                       `json:"id"`
	Name          string                      `json:"name"`
	Price         int64                       `json:"price"`
	Producer      string                      `json:"producer"`
	Buyer         string                      `json:"buyer,omitempty"`
	Shipper       string                      `json:"shipper,omitempty"`
	Status        string                      `json:"status"`
	CreatedAt     time.Time                   `json:"created_at"`
	StatusHistory []statusHistoryItemResponse `json:"status_history,omitempty"`
}

type productListResponse struct {
	Data []productResponse `json:"data"`
}

// --- Shipping ---

type shippingRequestsResponse struct {
	ProductID int64    `json:"product_id"`
	Bidders   []string `json:"bidders"`
}

// --- Notifications ---

type notificationResponse struct {
	Seq       int64     `json:"seq"`
	Kind      string    `json:"kind"`
	ProductID int64     `json:"product_id"`
	Actor     string    `json:"actor"`
	Peer      string    `json:"peer,omitempty"`
	Role      string    `json:"role,omitempty"`
	At        time.Time `json:"at"`
}

type notificationListResponse struct {
	Data []notificationResponse `json:"data"`
	// Next is the cursor to pass as ?after= on the next poll.
	Next int64 `json:"next"`
}

// --- Mapping helpers ---

func toProductResponse(p domain.Product, withHistory bool) productResponse {
	resp := productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Producer:  string(p.Producer),
		Buyer:     string(p.Buyer),
		Shipper:   string(p.Shipper),
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt.UTC(),
	}
	if withHistory {
		resp.StatusHistory = make([]statusHistoryItemResponse, len(p.StatusHistory))
		for i, h := range p.StatusHistory {
			resp.StatusHistory[i] = statusHistoryItemResponse{
				Status:    string(h.Status),
				Actor:     string(h.Actor),
				Timestamp: h.Timestamp.UTC(),
			}
		}
	}
	return resp
}

func toProductListResponse(products []domain.Product) productListResponse {
	out := productListResponse{Data: make([]productResponse, len(products))}
	for i, p := range products {
		out.Data[i] = toProductResponse(p, false)
	}
	return out
}

func toNotificationResponse(n domain.Notification) notificationResponse {
	return notificationResponse{
		Seq:       n.Seq,
		Kind:      string(n.Kind),
		ProductID: n.ProductID,
		Actor:     string(n.Actor),
		Peer:      string(n.Peer),
		Role:      string(n.Tag),
		At:        n.At.UTC(),
	}
}
