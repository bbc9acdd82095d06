package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"docdesk.org/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore implements Store with in-process concurrency safety. The single
// mutex is the unit of exclusivity: every mutating operation, including the
// multi-record Register and Resolve, runs under it whole.
type MemStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	entries  map[string]*Entry
	order    []string // entry ids, oldest first
}

// NewMemStore creates an empty in-memory directory.
func NewMemStore() *MemStore {
	return &MemStore{
		accounts: make(map[string]*Account),
		entries:  make(map[string]*Entry),
	}
}

func (s *MemStore) Accounts(ctx context.Context) AccountStore { return (*memAccounts)(s) }
func (s *MemStore) Entries(ctx context.Context) EntryStore    { return (*memEntries)(s) }

func (s *MemStore) Register(ctx context.Context, account *Account, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findByEmailLocked(account.Email) != nil {
		return ErrDuplicateIdentity
	}
	now := time.Now().UTC()
	if account.ID == "" {
		account.ID = ids.New()
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	entry.AccountID = account.ID
	entry.State = EntryOpen
	entry.CreatedAt = now

	s.accounts[account.ID] = cloneAccount(account)
	s.entries[entry.ID] = cloneEntry(entry)
	s.order = append(s.order, entry.ID)
	return nil
}

func (s *MemStore) RequestPromotion(ctx context.Context, accountID string, entry *Entry) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	if account.Status == StatusPending {
		return nil, ErrPendingApproval
	}
	now := time.Now().UTC()
	account.Role = RoleAdmin
	account.Status = StatusPending
	account.UpdatedAt = now

	if entry.ID == "" {
		entry.ID = ids.New()
	}
	entry.AccountID = accountID
	entry.Kind = KindPromote
	entry.State = EntryOpen
	entry.CreatedAt = now
	s.entries[entry.ID] = cloneEntry(entry)
	s.order = append(s.order, entry.ID)

	return cloneAccount(account), nil
}

func (s *MemStore) Resolve(ctx context.Context, entryID string, approve bool) (Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return Resolution{}, ErrNotFound
	}
	if entry.State != EntryOpen {
		return Resolution{}, ErrAlreadyResolved
	}
	account, ok := s.accounts[entry.AccountID]
	if !ok {
		return Resolution{}, ErrNotFound
	}

	now := time.Now().UTC()
	res := Resolution{}
	if approve {
		account.Status = StatusActive
		if entry.Kind == KindPromote {
			account.Role = RoleAdmin
		}
		account.UpdatedAt = now
		entry.State = EntryApproved
	} else {
		entry.State = EntryRejected
		if entry.Kind == KindRegister && account.Status == StatusPending {
			// A rejected registration never becomes a visible account.
			delete(s.accounts, account.ID)
			res.Removed = true
		} else {
			account.Status = StatusDisabled
			account.UpdatedAt = now
		}
	}
	entry.ResolvedAt = &now

	res.Entry = *cloneEntry(entry)
	res.Account = *cloneAccount(account)
	return res, nil
}

// Account view ---------------------------------------------------------------

type memAccounts MemStore

func (s *memAccounts) Create(ctx context.Context, a *Account) error {
	m := (*MemStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findByEmailLocked(a.Email) != nil {
		return ErrDuplicateIdentity
	}
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = ids.New()
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	m.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *memAccounts) Find(ctx context.Context, id string) (*Account, error) {
	m := (*MemStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *memAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	m := (*MemStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a := m.findByEmailLocked(email); a != nil {
		return cloneAccount(a), nil
	}
	return nil, ErrNotFound
}

func (s *memAccounts) List(ctx context.Context) ([]*Account, error) {
	m := (*MemStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memAccounts) ListByRoleAndStatus(ctx context.Context, role Role, status Status) ([]*Account, error) {
	m := (*MemStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Account
	for _, a := range m.accounts {
		if a.Role == role && a.Status == status {
			out = append(out, cloneAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memAccounts) SetRole(ctx context.Context, id string, role Role) error {
	m := (*MemStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if a.Role != role {
		a.Role = role
		a.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *memAccounts) SetStatus(ctx context.Context, id string, status Status) error {
	m := (*MemStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if a.Status != status {
		a.Status = status
		a.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *memAccounts) UpdateCredential(ctx context.Context, id, credentialHash string) error {
	m := (*MemStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.CredentialHash = credentialHash
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Entry view -----------------------------------------------------------------

type memEntries MemStore

func (s *memEntries) Find(ctx context.Context, id string) (*Entry, error) {
	m := (*MemStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntry(e), nil
}

func (s *memEntries) List(ctx context.Context) ([]Notification, error) {
	m := (*MemStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Notification, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		e, ok := m.entries[m.order[i]]
		if !ok {
			continue
		}
		n := Notification{Entry: *cloneEntry(e)}
		if a, ok := m.accounts[e.AccountID]; ok {
			n.Email = a.Email
			n.Name = a.Name
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *memEntries) CountOpen(ctx context.Context) (int, error) {
	m := (*MemStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.entries {
		if e.State == EntryOpen {
			count++
		}
	}
	return count, nil
}

// DisplayName resolves an account id to its display name. The document
// repository uses it to join author names onto listings.
func (s *MemStore) DisplayName(ctx context.Context, accountID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return "", ErrNotFound
	}
	return a.Name, nil
}

// helpers --------------------------------------------------------------------

func (s *MemStore) findByEmailLocked(email string) *Account {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range s.accounts {
		if a.Status != StatusDisabled && a.Email == email {
			return a
		}
	}
	return nil
}

func cloneAccount(a *Account) *Account {
	out := *a
	return &out
}

func cloneEntry(e *Entry) *Entry {
	out := *e
	if e.ResolvedAt != nil {
		t := *e.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}
