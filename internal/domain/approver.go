package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the explicit permission level on an identity record. Capability is
// checked through methods here, never by comparing usernames to a list.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleTreasurer Role = "treasurer"
	RoleApprover  Role = "approver"
	RoleClerk     Role = "clerk"
)

// CanApprove reports whether the role may confirm withdrawal requests.
func (r Role) CanApprove() bool {
	return r == RoleAdmin || r == RoleApprover
}

// CanOperate reports whether the role may initiate payments, batches and
// withdrawal requests.
func (r Role) CanOperate() bool {
	return r == RoleAdmin || r == RoleTreasurer || r == RoleApprover || r == RoleClerk
}

// Approver is an identity allowed to act on the treasury API. ApprovalSecretHash
// holds the bcrypt hash of the out-of-band approval secret, distinct from the
// login credential, re-verified on every withdrawal approval.
type Approver struct {
	ApproverID         uuid.UUID `json:"approver_id"`
	Username           string    `json:"username"`
	FullName           string    `json:"full_name,omitempty"`
	Role               Role      `json:"role"`
	PasswordHash       string    `json:"-"`
	ApprovalSecretHash string    `json:"-"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
