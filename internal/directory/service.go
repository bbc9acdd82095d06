package directory

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

const minCredentialLength = 8

// AuditTrail receives the per-account append-only governance record.
type AuditTrail interface {
	Append(ctx context.Context, identity, line string) error
}

// Service provides the account store and approval workflow operations. Every
// governance-relevant mutation appends to the audit trail of the affected
// account before returning.
type Service struct {
	store Store
	trail AuditTrail
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service over the given store and audit trail.
func NewService(store Store, trail AuditTrail, opts ...ServiceOption) *Service {
	svc := &Service{store: store, trail: trail, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// RegistrationInput carries the fields of a registration request.
type RegistrationInput struct {
	Email      string
	Name       string
	Title      string
	Contact    string
	Credential string
	// WantsAdmin opens a promote entry instead of a plain registration entry.
	WantsAdmin bool
}

// Register creates a pending account together with its open notification
// entry. Validation runs before any mutation; nothing is written on failure.
func (s *Service) Register(ctx context.Context, in RegistrationInput) (*Account, *Entry, error) {
	account, err := buildAccount(in)
	if err != nil {
		return nil, nil, err
	}
	account.Status = StatusPending
	account.Role = RoleRegular
	kind := KindRegister
	if in.WantsAdmin {
		account.Role = RoleAdmin
		kind = KindPromote
	}

	entry := &Entry{Kind: kind}
	if err := s.store.Register(ctx, account, entry); err != nil {
		return nil, nil, err
	}
	s.append(ctx, account.Email, fmt.Sprintf("registered (requested role %s)", account.Role))
	return account, entry, nil
}

// AddAccount creates an account directly from an admin action. It starts
// active and bypasses the notification queue.
func (s *Service) AddAccount(ctx context.Context, in RegistrationInput) (*Account, error) {
	account, err := buildAccount(in)
	if err != nil {
		return nil, err
	}
	account.Status = StatusActive
	account.Role = RoleRegular
	if in.WantsAdmin {
		account.Role = RoleAdmin
	}
	if err := s.store.Accounts(ctx).Create(ctx, account); err != nil {
		return nil, err
	}
	s.append(ctx, account.Email, fmt.Sprintf("account added by admin (role %s)", account.Role))
	return account, nil
}

// RequestPromotion asks for an active account to be promoted to admin. The
// account goes back to pending until a second admin approves the entry.
func (s *Service) RequestPromotion(ctx context.Context, accountID string) (*Entry, error) {
	entry := &Entry{}
	account, err := s.store.RequestPromotion(ctx, accountID, entry)
	if err != nil {
		return nil, err
	}
	s.append(ctx, account.Email, "promotion to admin requested")
	return entry, nil
}

// Approve resolves an open entry: the account becomes active, and for promote
// entries gains the admin role. Exactly-once: a second call fails with
// ErrAlreadyResolved and mutates nothing.
func (s *Service) Approve(ctx context.Context, entryID string) (Resolution, error) {
	res, err := s.store.Resolve(ctx, entryID, true)
	if err != nil {
		return Resolution{}, err
	}
	s.append(ctx, res.Account.Email, fmt.Sprintf("approved (%s)", res.Entry.Kind))
	return res, nil
}

// Reject resolves an open entry negatively. A never-active registration is
// discarded outright; anything else is disabled.
func (s *Service) Reject(ctx context.Context, entryID string) (Resolution, error) {
	res, err := s.store.Resolve(ctx, entryID, false)
	if err != nil {
		return Resolution{}, err
	}
	if !res.Removed {
		s.append(ctx, res.Account.Email, fmt.Sprintf("rejected (%s)", res.Entry.Kind))
	}
	return res, nil
}

// RevokeAdmin demotes an active admin back to regular. Idempotent: revoking a
// regular account is a no-op.
func (s *Service) RevokeAdmin(ctx context.Context, accountID string) error {
	accounts := s.store.Accounts(ctx)
	account, err := accounts.Find(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Role == RoleRegular {
		return nil
	}
	if err := accounts.SetRole(ctx, accountID, RoleRegular); err != nil {
		return err
	}
	s.append(ctx, account.Email, "admin role revoked")
	return nil
}

// Disable retires an account. Idempotent.
func (s *Service) Disable(ctx context.Context, accountID string) error {
	accounts := s.store.Accounts(ctx)
	account, err := accounts.Find(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Status == StatusDisabled {
		return nil
	}
	if err := accounts.SetStatus(ctx, accountID, StatusDisabled); err != nil {
		return err
	}
	s.append(ctx, account.Email, "account disabled")
	return nil
}

// ChangeCredential replaces an account's credential after verifying the old
// one and the confirmation equality.
func (s *Service) ChangeCredential(ctx context.Context, accountID, old, updated, confirm string) error {
	accounts := s.store.Accounts(ctx)
	account, err := accounts.Find(ctx, accountID)
	if err != nil {
		return err
	}
	if err := VerifyCredential(account.CredentialHash, old); err != nil {
		return ErrCredentialMismatch
	}
	if updated != confirm {
		return ErrCredentialMismatch
	}
	if len(updated) < minCredentialLength {
		return ErrCredentialTooShort
	}
	hash, err := HashCredential(updated)
	if err != nil {
		return err
	}
	if err := accounts.UpdateCredential(ctx, accountID, hash); err != nil {
		return err
	}
	s.append(ctx, account.Email, "credential changed")
	return nil
}

// Authenticate checks an email/credential pair against active accounts.
func (s *Service) Authenticate(ctx context.Context, email, credential string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || credential == "" {
		return nil, ErrUnauthorized
	}
	account, err := s.store.Accounts(ctx).FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if account.Status != StatusActive {
		return nil, ErrUnauthorized
	}
	if err := VerifyCredential(account.CredentialHash, credential); err != nil {
		return nil, ErrUnauthorized
	}
	return account, nil
}

// PendingByRole returns the review list for the given role: accounts waiting
// on an open entry.
func (s *Service) PendingByRole(ctx context.Context, role Role) ([]*Account, error) {
	return s.store.Accounts(ctx).ListByRoleAndStatus(ctx, role, StatusPending)
}

// ListAccounts returns every account, for the admin user table.
func (s *Service) ListAccounts(ctx context.Context) ([]*Account, error) {
	return s.store.Accounts(ctx).List(ctx)
}

// FindAccount returns a single account record.
func (s *Service) FindAccount(ctx context.Context, id string) (*Account, error) {
	return s.store.Accounts(ctx).Find(ctx, id)
}

// Notifications returns the queue newest first.
func (s *Service) Notifications(ctx context.Context) ([]Notification, error) {
	return s.store.Entries(ctx).List(ctx)
}

// UnresolvedCount drives the caller's unread-notification badge.
func (s *Service) UnresolvedCount(ctx context.Context) (int, error) {
	return s.store.Entries(ctx).CountOpen(ctx)
}

func (s *Service) append(ctx context.Context, identity, line string) {
	if s.trail == nil {
		return
	}
	if actor, ok := ActorFromContext(ctx); ok && actor.Email != "" && actor.Email != identity {
		line = line + " by " + actor.Email
	}
	// Trail writes must not fail the governance operation itself once the
	// state change is committed.
	_ = s.trail.Append(ctx, identity, line)
}

func buildAccount(in RegistrationInput) (*Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") || len(email) > 254 {
		return nil, fmt.Errorf("%w: valid email is required", ErrValidation)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > 100 {
		return nil, fmt.Errorf("%w: name is required and must be at most 100 characters", ErrValidation)
	}
	title := strings.TrimSpace(in.Title)
	if len(title) > 100 {
		return nil, fmt.Errorf("%w: title must be at most 100 characters", ErrValidation)
	}
	contact := strings.TrimSpace(in.Contact)
	if contact != "" {
		if len(contact) < 9 || len(contact) > 15 || !allDigits(contact) {
			return nil, fmt.Errorf("%w: contact must be 9-15 digits", ErrValidation)
		}
	}
	if len(in.Credential) < minCredentialLength {
		return nil, fmt.Errorf("%w: credential must be at least %d characters", ErrValidation, minCredentialLength)
	}
	hash, err := HashCredential(in.Credential)
	if err != nil {
		return nil, err
	}
	return &Account{
		Email:          email,
		Name:           name,
		Title:          title,
		Contact:        contact,
		CredentialHash: hash,
	}, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
