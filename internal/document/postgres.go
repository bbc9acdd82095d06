package document

import (
	"context"
	"database/sql"
	"errors"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const documentColumns = `select id, title, category, description, locator, visibility, author_id, created_at`

func (s *PGStore) Insert(ctx context.Context, doc *Document) error {
	_, err := s.db.ExecContext(ctx,
		`insert into documents(id, title, category, description, locator, visibility, author_id, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		doc.ID, doc.Title, doc.Category, doc.Description, doc.Locator,
		doc.Visibility, doc.AuthorID, doc.CreatedAt,
	)
	return err
}

func (s *PGStore) FindByLocator(ctx context.Context, locator string) (*Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		documentColumns+` from documents where locator=$1`, locator))
}

func (s *PGStore) Delete(ctx context.Context, locator string) error {
	res, err := s.db.ExecContext(ctx, `delete from documents where locator=$1`, locator)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListByCategory(ctx context.Context, category Category) ([]*Document, error) {
	if category == "" {
		rows, err := s.db.QueryContext(ctx, documentColumns+` from documents order by id desc`)
		if err != nil {
			return nil, err
		}
		return scanDocuments(rows)
	}
	rows, err := s.db.QueryContext(ctx,
		documentColumns+` from documents where category=$1 order by id desc`, category)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func (s *PGStore) Search(ctx context.Context, term string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		documentColumns+` from documents where title ilike '%' || $1 || '%' order by id desc`, term)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

// SimilarTitles fetches the candidate prefix matches and applies the
// numeric-suffix rule in one place, shared with the memory store.
func (s *PGStore) SimilarTitles(ctx context.Context, title string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select title from documents where title = $1 or title like $1 || ' %'`, title)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var candidate string
		if err := rows.Scan(&candidate); err != nil {
			return nil, err
		}
		if similarTitle(title, candidate) {
			out = append(out, candidate)
		}
	}
	return out, rows.Err()
}

func (s *PGStore) MonthlyHistogram(ctx context.Context) ([12]int, error) {
	var buckets [12]int
	rows, err := s.db.QueryContext(ctx,
		`select extract(month from created_at)::int, count(*) from documents group by 1`)
	if err != nil {
		return buckets, err
	}
	defer rows.Close()

	for rows.Next() {
		var month, count int
		if err := rows.Scan(&month, &count); err != nil {
			return buckets, err
		}
		if month >= 1 && month <= 12 {
			buckets[month-1] = count
		}
	}
	return buckets, rows.Err()
}

func scanDocument(row *sql.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Title, &d.Category, &d.Description, &d.Locator,
		&d.Visibility, &d.AuthorID, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDocuments(rows *sql.Rows) ([]*Document, error) {
	defer rows.Close()
	var out []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Category, &d.Description, &d.Locator,
			&d.Visibility, &d.AuthorID, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
