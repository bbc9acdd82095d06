package directory

import "context"

// Store describes persistence for accounts and the notification queue.
// Operations that span both (registration, promotion requests, entry
// resolution) are exposed on the Store itself so implementations can apply
// them as one atomic unit.
type Store interface {
	Accounts(ctx context.Context) AccountStore
	Entries(ctx context.Context) EntryStore

	// Register persists a pending account together with its open entry.
	// Fails with ErrDuplicateIdentity if the email belongs to a non-disabled
	// account.
	Register(ctx context.Context, account *Account, entry *Entry) error

	// RequestPromotion flips an active account to pending admin and opens a
	// promote entry, atomically. Fails with ErrPendingApproval if the account
	// already has an open entry.
	RequestPromotion(ctx context.Context, accountID string, entry *Entry) (*Account, error)

	// Resolve transitions an open entry to approved or rejected along with the
	// account side effects. Concurrent resolvers serialize: only the first
	// observes the open state, the loser gets ErrAlreadyResolved.
	Resolve(ctx context.Context, entryID string, approve bool) (Resolution, error)
}

// AccountStore manages account records.
type AccountStore interface {
	Create(ctx context.Context, a *Account) error
	Find(ctx context.Context, id string) (*Account, error)
	// FindByEmail matches non-disabled accounts only; disabled identities are
	// retired and their email may be registered again.
	FindByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
	ListByRoleAndStatus(ctx context.Context, role Role, status Status) ([]*Account, error)
	SetRole(ctx context.Context, id string, role Role) error
	SetStatus(ctx context.Context, id string, status Status) error
	UpdateCredential(ctx context.Context, id, credentialHash string) error
}

// EntryStore manages notification entries.
type EntryStore interface {
	Find(ctx context.Context, id string) (*Entry, error)
	// List returns entries newest first, joined with account identity.
	List(ctx context.Context) ([]Notification, error)
	CountOpen(ctx context.Context) (int, error)
}
