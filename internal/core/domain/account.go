package domain

import "time"

// Account is the opaque ledger identity of a caller. It is assigned when a
// user registers at the session boundary and never interpreted by the core
// beyond equality comparison.
type Account string

// RoleTag is a named capability grantable to an account.
type RoleTag string

const (
	RoleProducer RoleTag = "producer"
	RoleShipper  RoleTag = "shipper"
	RoleBuyer    RoleTag = "buyer"
)

// AllRoleTags returns the closed set of grantable capabilities.
func AllRoleTags() []RoleTag {
	return []RoleTag{RoleProducer, RoleShipper, RoleBuyer}
}

// ParseRoleTag converts a wire string into a RoleTag.
func ParseRoleTag(s string) (RoleTag, bool) {
	switch RoleTag(s) {
	case RoleProducer, RoleShipper, RoleBuyer:
		return RoleTag(s), true
	}
	return "", false
}

// RoleGrant is the durable fact that an account holds a capability.
// Grants are monotonic: created once, never revoked.
type RoleGrant struct {
	Account   Account   `json:"account" bson:"account"`
	Tag       RoleTag   `json:"role" bson:"role"`
	GrantedAt time.Time `json:"granted_at" bson:"granted_at"`
}

// User models a login identity at the session boundary. The core never sees
// users, only the Account address embedded in their tokens.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Address      Account   `json:"address"`
	CreatedAt    time.Time `json:"created_at"`
}
