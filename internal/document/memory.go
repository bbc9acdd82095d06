package document

import (
	"context"
	"strings"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore implements Store in process. The single mutex is the unit of
// exclusivity for every operation.
type MemStore struct {
	mu    sync.RWMutex
	docs  map[string]*Document // keyed by locator
	order []string             // locators, oldest first
}

// NewMemStore creates an empty in-memory repository.
func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string]*Document)}
}

func (s *MemStore) Insert(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Locator] = cloneDocument(doc)
	s.order = append(s.order, doc.Locator)
	return nil
}

func (s *MemStore) FindByLocator(ctx context.Context, locator string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[locator]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (s *MemStore) Delete(ctx context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[locator]; !ok {
		return ErrNotFound
	}
	delete(s.docs, locator)
	for i, l := range s.order {
		if l == locator {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemStore) ListByCategory(ctx context.Context, category Category) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Document
	for i := len(s.order) - 1; i >= 0; i-- {
		doc, ok := s.docs[s.order[i]]
		if !ok {
			continue
		}
		if category != "" && doc.Category != category {
			continue
		}
		out = append(out, cloneDocument(doc))
	}
	return out, nil
}

func (s *MemStore) Search(ctx context.Context, term string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	term = strings.ToLower(term)
	var out []*Document
	for i := len(s.order) - 1; i >= 0; i-- {
		doc, ok := s.docs[s.order[i]]
		if !ok {
			continue
		}
		if !strings.Contains(strings.ToLower(doc.Title), term) {
			continue
		}
		out = append(out, cloneDocument(doc))
	}
	return out, nil
}

func (s *MemStore) SimilarTitles(ctx context.Context, title string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, doc := range s.docs {
		if similarTitle(title, doc.Title) {
			out = append(out, doc.Title)
		}
	}
	return out, nil
}

func (s *MemStore) MonthlyHistogram(ctx context.Context) ([12]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var buckets [12]int
	for _, doc := range s.docs {
		buckets[doc.CreatedAt.Month()-1]++
	}
	return buckets, nil
}

func cloneDocument(d *Document) *Document {
	out := *d
	return &out
}
