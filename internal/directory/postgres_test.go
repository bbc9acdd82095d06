package directory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPGStore(db), mock
}

func accountRow(id string, role Role, status Status) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "email", "name", "title", "contact", "credential_hash",
		"role", "status", "created_at", "updated_at",
	}).AddRow(id, "alice@x.org", "Alice", "Analyst", "0123456789", "hash",
		string(role), string(status), now, now)
}

func TestPGRegister(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`select 1 from accounts where email=\$1 and status <> 'disabled'`).
		WithArgs("alice@x.org").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`insert into accounts`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into entries`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	account := &Account{Email: "alice@x.org", Name: "Alice", CredentialHash: "hash",
		Role: RoleRegular, Status: StatusPending}
	entry := &Entry{Kind: KindRegister}
	if err := store.Register(ctx, account, entry); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if account.ID == "" || entry.ID == "" {
		t.Fatal("ids not assigned")
	}
	if entry.AccountID != account.ID || entry.State != EntryOpen {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRegisterDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select 1 from accounts where email=\$1 and status <> 'disabled'`).
		WithArgs("alice@x.org").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	account := &Account{Email: "alice@x.org", Status: StatusPending}
	err := store.Register(context.Background(), account, &Entry{Kind: KindRegister})
	if !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("err = %v, want ErrDuplicateIdentity", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGResolveApprove(t *testing.T) {
	store, mock := newMockStore(t)

	created := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(`select id, account_id, kind, state, created_at from entries where id=\$1 for update`).
		WithArgs("e-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "kind", "state", "created_at"}).
			AddRow("e-1", "a-1", string(KindPromote), string(EntryOpen), created))
	mock.ExpectQuery(`from accounts where id=\$1 for update`).
		WithArgs("a-1").
		WillReturnRows(accountRow("a-1", RoleAdmin, StatusPending))
	mock.ExpectExec(`update accounts set role=\$2, status=\$3`).
		WithArgs("a-1", string(RoleAdmin), string(StatusActive)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`update entries set state=\$2, resolved_at=\$3`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := store.Resolve(context.Background(), "e-1", true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Account.Status != StatusActive || res.Account.Role != RoleAdmin {
		t.Fatalf("unexpected account: %+v", res.Account)
	}
	if res.Entry.State != EntryApproved || res.Entry.ResolvedAt == nil {
		t.Fatalf("unexpected entry: %+v", res.Entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGResolveAlreadyResolved(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`from entries where id=\$1 for update`).
		WithArgs("e-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "kind", "state", "created_at"}).
			AddRow("e-1", "a-1", string(KindRegister), string(EntryApproved), time.Now().UTC()))
	mock.ExpectRollback()

	if _, err := store.Resolve(context.Background(), "e-1", true); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("err = %v, want ErrAlreadyResolved", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGResolveRejectDiscardsRegistration(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`from entries where id=\$1 for update`).
		WithArgs("e-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "kind", "state", "created_at"}).
			AddRow("e-2", "a-2", string(KindRegister), string(EntryOpen), time.Now().UTC()))
	mock.ExpectQuery(`from accounts where id=\$1 for update`).
		WithArgs("a-2").
		WillReturnRows(accountRow("a-2", RoleRegular, StatusPending))
	mock.ExpectExec(`delete from accounts where id=\$1`).
		WithArgs("a-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`update entries set state=\$2, resolved_at=\$3`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := store.Resolve(context.Background(), "e-2", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Removed {
		t.Fatal("expected registration to be discarded")
	}
	if res.Entry.State != EntryRejected {
		t.Fatalf("unexpected entry state: %s", res.Entry.State)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRequestPromotionWhilePending(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`from accounts where id=\$1 for update`).
		WithArgs("a-3").
		WillReturnRows(accountRow("a-3", RoleRegular, StatusPending))
	mock.ExpectRollback()

	if _, err := store.RequestPromotion(context.Background(), "a-3", &Entry{}); !errors.Is(err, ErrPendingApproval) {
		t.Fatalf("err = %v, want ErrPendingApproval", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGSetRoleMissingAccount(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`update accounts set role=\$2`).
		WithArgs("missing", string(RoleRegular)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Accounts(context.Background()).SetRole(context.Background(), "missing", RoleRegular)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGEntriesCountOpen(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select count\(\*\) from entries where state='open'`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := store.Entries(context.Background()).CountOpen(context.Background())
	if err != nil || count != 3 {
		t.Fatalf("CountOpen = %d, %v", count, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
