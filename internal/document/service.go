package document

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docdesk.org/internal/ids"
)

// maxContentSize caps uploads at 25 MiB.
const maxContentSize = 25 << 20

// Repository is the document governance surface: create, list, search,
// delete, fetch content, histogram. Listings are joined with author display
// names through the resolver.
type Repository struct {
	store   Store
	blobs   BlobStore
	authors AuthorResolver
	now     func() time.Time
}

// RepositoryOption configures Repository behavior.
type RepositoryOption func(*Repository)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RepositoryOption {
	return func(r *Repository) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRepository constructs a Repository over the given stores.
func NewRepository(store Store, blobs BlobStore, authors AuthorResolver, opts ...RepositoryOption) *Repository {
	repo := &Repository{store: store, blobs: blobs, authors: authors, now: time.Now}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// CreateInput carries the metadata fields of an upload.
type CreateInput struct {
	Title       string
	Category    string
	Description string
	Visibility  string
	Filename    string
	// ConfirmDuplicate accepts a reported title collision: the title is
	// auto-suffixed with the collision count instead of failing again.
	ConfirmDuplicate bool
}

// Create validates the upload, detects title collisions, and stores metadata
// and content as one logical unit. The blob is written only after the
// metadata insert succeeds; a blob failure rolls the metadata back so no
// partial document survives.
func (r *Repository) Create(ctx context.Context, in CreateInput, content []byte, authorID string) (*Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > 200 {
		return nil, fmt.Errorf("%w: title is required and must be at most 200 characters", ErrValidation)
	}
	description := strings.TrimSpace(in.Description)
	if description != "" && len(description) < 3 {
		return nil, fmt.Errorf("%w: description must be at least 3 characters", ErrValidation)
	}
	if len(description) > 2000 {
		return nil, fmt.Errorf("%w: description must be at most 2000 characters", ErrValidation)
	}
	category, err := ParseCategory(in.Category)
	if err != nil {
		return nil, err
	}
	visibility, err := ParseVisibility(in.Visibility)
	if err != nil {
		return nil, err
	}
	family := DetectFamily(in.Filename)
	if family == FamilyUnknown {
		return nil, ErrUnsupportedFormat
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if len(content) > maxContentSize {
		return nil, ErrContentTooLarge
	}

	// Best-effort collision check: read-then-write, so two concurrent creates
	// with the same title may both pass. Accepted, not a hard constraint.
	similar, err := r.store.SimilarTitles(ctx, title)
	if err != nil {
		return nil, err
	}
	if len(similar) > 0 {
		if !in.ConfirmDuplicate {
			return nil, &DuplicateTitleError{Count: len(similar)}
		}
		title = suffixTitle(title, similar)
	}

	ext := strings.ToLower(filepath.Ext(in.Filename))
	locator := string(category) + "/" + uuid.NewString() + ext

	doc := &Document{
		ID:          ids.New(),
		Title:       title,
		Category:    category,
		Description: description,
		Locator:     locator,
		Visibility:  visibility,
		AuthorID:    authorID,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.store.Insert(ctx, doc); err != nil {
		return nil, err
	}
	if err := r.blobs.Write(ctx, locator, content); err != nil {
		_ = r.store.Delete(ctx, locator)
		return nil, err
	}
	return doc, nil
}

// ListByCategory returns documents newest first, joined with author names.
// An empty category means no filter.
func (r *Repository) ListByCategory(ctx context.Context, rawCategory string) ([]Record, error) {
	var category Category
	if strings.TrimSpace(rawCategory) != "" {
		parsed, err := ParseCategory(rawCategory)
		if err != nil {
			return nil, err
		}
		category = parsed
	}
	docs, err := r.store.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	return r.join(ctx, docs), nil
}

// Search matches the term case-insensitively against titles, newest first.
func (r *Repository) Search(ctx context.Context, term string) ([]Record, error) {
	docs, err := r.store.Search(ctx, strings.TrimSpace(term))
	if err != nil {
		return nil, err
	}
	return r.join(ctx, docs), nil
}

// Find returns the metadata record behind a locator.
func (r *Repository) Find(ctx context.Context, locator string) (*Document, error) {
	return r.store.FindByLocator(ctx, locator)
}

// FetchContent returns the metadata record and raw blob behind a locator.
func (r *Repository) FetchContent(ctx context.Context, locator string) (*Document, []byte, error) {
	doc, err := r.store.FindByLocator(ctx, locator)
	if err != nil {
		return nil, nil, err
	}
	data, err := r.blobs.Read(ctx, locator)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// Delete removes the blob and the metadata row as one logical unit. If blob
// removal fails the row stays, so no metadata ever points at content that was
// half-deleted. Rich documents also shed their plain-text edit companion.
func (r *Repository) Delete(ctx context.Context, locator string) error {
	if _, err := r.store.FindByLocator(ctx, locator); err != nil {
		return err
	}
	if err := r.blobs.Remove(ctx, locator); err != nil {
		return err
	}
	if DetectFamily(locator) == FamilyRichDocument {
		if err := r.blobs.Remove(ctx, locator+CompanionSuffix); err != nil {
			return err
		}
	}
	return r.store.Delete(ctx, locator)
}

// MonthlyHistogram counts documents created per calendar month, Jan..Dec.
func (r *Repository) MonthlyHistogram(ctx context.Context) ([12]int, error) {
	return r.store.MonthlyHistogram(ctx)
}

// suffixTitle picks the first "<title> <n>" not already carried by a similar
// document, starting at the collision count. Gaps left by deletions never
// cause a suffixed title to be handed out twice.
func suffixTitle(title string, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, t := range taken {
		used[t] = struct{}{}
	}
	for n := len(taken); ; n++ {
		candidate := fmt.Sprintf("%s %d", title, n)
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}

func (r *Repository) join(ctx context.Context, docs []*Document) []Record {
	out := make([]Record, 0, len(docs))
	for _, doc := range docs {
		rec := Record{Document: *doc}
		if r.authors != nil {
			if name, err := r.authors.DisplayName(ctx, doc.AuthorID); err == nil {
				rec.AuthorName = name
			}
		}
		out = append(out, rec)
	}
	return out
}
