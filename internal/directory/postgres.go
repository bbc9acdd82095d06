package directory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"docdesk.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. Multi-record operations run in a
// transaction; Resolve locks the entry row so concurrent resolvers serialize
// and only the first observes the open state.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Accounts(ctx context.Context) AccountStore { return &pgAccounts{db: s.db} }
func (s *PGStore) Entries(ctx context.Context) EntryStore    { return &pgEntries{db: s.db} }

func (s *PGStore) Register(ctx context.Context, account *Account, entry *Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		`select 1 from accounts where email=$1 and status <> 'disabled'`, account.Email,
	).Scan(&exists)
	if err == nil {
		return ErrDuplicateIdentity
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if account.ID == "" {
		account.ID = ids.New()
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	entry.AccountID = account.ID
	entry.State = EntryOpen

	if _, err := tx.ExecContext(ctx,
		`insert into accounts(id, email, name, title, contact, credential_hash, role, status)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		account.ID, account.Email, account.Name, account.Title, account.Contact,
		account.CredentialHash, account.Role, account.Status,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`insert into entries(id, account_id, kind, state) values($1,$2,$3,$4)`,
		entry.ID, entry.AccountID, entry.Kind, entry.State,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PGStore) RequestPromotion(ctx context.Context, accountID string, entry *Entry) (*Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	account, err := scanAccount(tx.QueryRowContext(ctx,
		accountColumns+` from accounts where id=$1 for update`, accountID))
	if err != nil {
		return nil, err
	}
	if account.Status == StatusPending {
		return nil, ErrPendingApproval
	}

	if _, err := tx.ExecContext(ctx,
		`update accounts set role='admin', status='pending', updated_at=now() where id=$1`,
		accountID,
	); err != nil {
		return nil, err
	}

	if entry.ID == "" {
		entry.ID = ids.New()
	}
	entry.AccountID = accountID
	entry.Kind = KindPromote
	entry.State = EntryOpen
	if _, err := tx.ExecContext(ctx,
		`insert into entries(id, account_id, kind, state) values($1,$2,$3,$4)`,
		entry.ID, entry.AccountID, entry.Kind, entry.State,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	account.Role = RoleAdmin
	account.Status = StatusPending
	return account, nil
}

func (s *PGStore) Resolve(ctx context.Context, entryID string, approve bool) (Resolution, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Resolution{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var entry Entry
	err = tx.QueryRowContext(ctx,
		`select id, account_id, kind, state, created_at from entries where id=$1 for update`,
		entryID,
	).Scan(&entry.ID, &entry.AccountID, &entry.Kind, &entry.State, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Resolution{}, ErrNotFound
	}
	if err != nil {
		return Resolution{}, err
	}
	if entry.State != EntryOpen {
		return Resolution{}, ErrAlreadyResolved
	}

	account, err := scanAccount(tx.QueryRowContext(ctx,
		accountColumns+` from accounts where id=$1 for update`, entry.AccountID))
	if err != nil {
		return Resolution{}, err
	}

	now := time.Now().UTC()
	res := Resolution{}
	if approve {
		entry.State = EntryApproved
		account.Status = StatusActive
		if entry.Kind == KindPromote {
			account.Role = RoleAdmin
		}
		if _, err := tx.ExecContext(ctx,
			`update accounts set role=$2, status=$3, updated_at=now() where id=$1`,
			account.ID, account.Role, account.Status,
		); err != nil {
			return Resolution{}, err
		}
	} else {
		entry.State = EntryRejected
		if entry.Kind == KindRegister && account.Status == StatusPending {
			if _, err := tx.ExecContext(ctx, `delete from accounts where id=$1`, account.ID); err != nil {
				return Resolution{}, err
			}
			res.Removed = true
		} else {
			account.Status = StatusDisabled
			if _, err := tx.ExecContext(ctx,
				`update accounts set status='disabled', updated_at=now() where id=$1`, account.ID,
			); err != nil {
				return Resolution{}, err
			}
		}
	}
	if _, err := tx.ExecContext(ctx,
		`update entries set state=$2, resolved_at=$3 where id=$1`,
		entry.ID, entry.State, now,
	); err != nil {
		return Resolution{}, err
	}
	if err := tx.Commit(); err != nil {
		return Resolution{}, err
	}

	entry.ResolvedAt = &now
	res.Entry = entry
	res.Account = *account
	return res, nil
}

// DisplayName resolves an account id to its display name.
func (s *PGStore) DisplayName(ctx context.Context, accountID string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `select name from accounts where id=$1`, accountID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return name, err
}

// Account store --------------------------------------------------------------

const accountColumns = `select id, email, name, title, contact, credential_hash, role, status, created_at, updated_at`

type pgAccounts struct{ db *sql.DB }

func (s *pgAccounts) Create(ctx context.Context, a *Account) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`select 1 from accounts where email=$1 and status <> 'disabled'`, a.Email,
	).Scan(&exists)
	if err == nil {
		return ErrDuplicateIdentity
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if a.ID == "" {
		a.ID = ids.New()
	}
	_, err = s.db.ExecContext(ctx,
		`insert into accounts(id, email, name, title, contact, credential_hash, role, status)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.Email, a.Name, a.Title, a.Contact, a.CredentialHash, a.Role, a.Status,
	)
	return err
}

func (s *pgAccounts) Find(ctx context.Context, id string) (*Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, accountColumns+` from accounts where id=$1`, id))
}

func (s *pgAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		accountColumns+` from accounts where email=$1 and status <> 'disabled'`, email))
}

func (s *pgAccounts) List(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, accountColumns+` from accounts order by id`)
	if err != nil {
		return nil, err
	}
	return scanAccounts(rows)
}

func (s *pgAccounts) ListByRoleAndStatus(ctx context.Context, role Role, status Status) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx,
		accountColumns+` from accounts where role=$1 and status=$2 order by id`, role, status)
	if err != nil {
		return nil, err
	}
	return scanAccounts(rows)
}

func (s *pgAccounts) SetRole(ctx context.Context, id string, role Role) error {
	return s.exec(ctx, `update accounts set role=$2, updated_at=now() where id=$1`, id, role)
}

func (s *pgAccounts) SetStatus(ctx context.Context, id string, status Status) error {
	return s.exec(ctx, `update accounts set status=$2, updated_at=now() where id=$1`, id, status)
}

func (s *pgAccounts) UpdateCredential(ctx context.Context, id, credentialHash string) error {
	return s.exec(ctx, `update accounts set credential_hash=$2, updated_at=now() where id=$1`, id, credentialHash)
}

func (s *pgAccounts) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.Title, &a.Contact, &a.CredentialHash,
		&a.Role, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanAccounts(rows *sql.Rows) ([]*Account, error) {
	defer rows.Close()
	var out []*Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.Title, &a.Contact, &a.CredentialHash,
			&a.Role, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Entry store ----------------------------------------------------------------

type pgEntries struct{ db *sql.DB }

func (s *pgEntries) Find(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	var resolved sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`select id, account_id, kind, state, created_at, resolved_at from entries where id=$1`, id,
	).Scan(&e.ID, &e.AccountID, &e.Kind, &e.State, &e.CreatedAt, &resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if resolved.Valid {
		t := resolved.Time
		e.ResolvedAt = &t
	}
	return &e, nil
}

func (s *pgEntries) List(ctx context.Context) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		select e.id, e.account_id, e.kind, e.state, e.created_at, e.resolved_at,
		       coalesce(a.email,''), coalesce(a.name,'')
		from entries e
		left join accounts a on a.id = e.account_id
		order by e.id desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var resolved sql.NullTime
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Kind, &n.State, &n.CreatedAt,
			&resolved, &n.Email, &n.Name); err != nil {
			return nil, err
		}
		if resolved.Valid {
			t := resolved.Time
			n.ResolvedAt = &t
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *pgEntries) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `select count(*) from entries where state='open'`).Scan(&count)
	return count, err
}
