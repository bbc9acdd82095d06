package document

import (
	"context"
	"strings"
	"unicode"
)

// Store persists document metadata. Implementations order listings newest
// first.
//
// SimilarTitles is a read-then-write collision check: two concurrent creates
// with the same title may both observe no collision. Title uniqueness is best
// effort, not a hard constraint.
type Store interface {
	Insert(ctx context.Context, doc *Document) error
	FindByLocator(ctx context.Context, locator string) (*Document, error)
	Delete(ctx context.Context, locator string) error
	ListByCategory(ctx context.Context, category Category) ([]*Document, error)
	Search(ctx context.Context, term string) ([]*Document, error)
	SimilarTitles(ctx context.Context, title string) ([]string, error)
	MonthlyHistogram(ctx context.Context) ([12]int, error)
}

// AuthorResolver maps an account id to a display name for listing joins.
type AuthorResolver interface {
	DisplayName(ctx context.Context, accountID string) (string, error)
}

// similarTitle reports whether candidate equals title or is title plus a
// numeric suffix ("Budget" matches "Budget", "Budget 1", "Budget 12").
func similarTitle(title, candidate string) bool {
	if candidate == title {
		return true
	}
	rest, ok := strings.CutPrefix(candidate, title+" ")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
