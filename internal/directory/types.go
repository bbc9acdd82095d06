package directory

import (
	"fmt"
	"strings"
	"time"
)

// Role of an account. The console knows exactly two.
type Role string

const (
	RoleRegular Role = "regular"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a role name coming in over the boundary.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleRegular:
		return RoleRegular, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
}

// Status is the account lifecycle state. Accounts are never hard-deleted once
// active; they are disabled. A pending account always has exactly one open
// notification entry referencing it.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Account is a user or admin record.
type Account struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Title          string    `json:"title,omitempty"`
	Contact        string    `json:"contact,omitempty"`
	CredentialHash string    `json:"-"`
	Role           Role      `json:"role"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EntryKind marks what a notification entry is asking for: activation of a new
// regular account, or promotion of an account to admin.
type EntryKind string

const (
	KindRegister EntryKind = "register"
	KindPromote  EntryKind = "promote"
)

// EntryState is the notification entry state machine: open is the only
// non-terminal state.
type EntryState string

const (
	EntryOpen     EntryState = "open"
	EntryApproved EntryState = "approved"
	EntryRejected EntryState = "rejected"
)

// Entry is a pending-approval record gating an account's activation or
// promotion. It is created atomically with the pending account transition and
// resolved exactly once.
type Entry struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"account_id"`
	Kind       EntryKind  `json:"kind"`
	State      EntryState `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Notification is an entry joined with its account for queue display.
type Notification struct {
	Entry
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Resolution reports the outcome of approving or rejecting an entry.
type Resolution struct {
	Entry   Entry   `json:"entry"`
	Account Account `json:"account"`
	// Removed is true when a rejected registration discarded the account
	// record entirely (it was never active).
	Removed bool `json:"removed"`
}
