package document

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Category is the closed set of repository shelves. "recent" holds
// uncategorized uploads.
type Category string

const (
	CategoryRecent        Category = "recent"
	CategoryReports       Category = "reports"
	CategoryMinutes       Category = "minutes"
	CategoryJointResearch Category = "joint-research"
	CategoryInnovation    Category = "innovation"
	CategoryBPO           Category = "bpo"
)

// Categories lists every valid category in display order.
func Categories() []Category {
	return []Category{
		CategoryRecent, CategoryReports, CategoryMinutes,
		CategoryJointResearch, CategoryInnovation, CategoryBPO,
	}
}

// ParseCategory validates a raw category value.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Categories() {
		if c == known {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// Visibility controls whether a document shows up for non-admin readers.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ParseVisibility validates a raw visibility value; empty defaults to public.
func ParseVisibility(raw string) (Visibility, error) {
	switch Visibility(strings.ToLower(strings.TrimSpace(raw))) {
	case "", VisibilityPublic:
		return VisibilityPublic, nil
	case VisibilityPrivate:
		return VisibilityPrivate, nil
	}
	return "", fmt.Errorf("%w: unknown visibility %q", ErrValidation, raw)
}

// FormatFamily classifies content by filename extension and selects the
// view/edit strategy.
type FormatFamily string

const (
	FamilyRichDocument FormatFamily = "rich-document"
	FamilySpreadsheet  FormatFamily = "spreadsheet"
	FamilyPresentation FormatFamily = "presentation"
	FamilyFixedLayout  FormatFamily = "fixed-layout"
	FamilyPlainText    FormatFamily = "plain-text"
	FamilyUnknown      FormatFamily = "unknown"
)

// DetectFamily classifies a filename or locator by its extension.
func DetectFamily(name string) FormatFamily {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".doc", ".docx":
		return FamilyRichDocument
	case ".xls", ".xlsx":
		return FamilySpreadsheet
	case ".ppt", ".pptx":
		return FamilyPresentation
	case ".pdf":
		return FamilyFixedLayout
	case ".txt", ".md", ".log", ".csv":
		return FamilyPlainText
	}
	return FamilyUnknown
}

// Document is a repository metadata record. The content itself lives behind
// the locator in the blob store.
type Document struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Category    Category   `json:"category"`
	Description string     `json:"description"`
	Locator     string     `json:"locator"`
	Visibility  Visibility `json:"visibility"`
	AuthorID    string     `json:"author_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Family returns the document's format family, derived from its locator.
func (d *Document) Family() FormatFamily {
	return DetectFamily(d.Locator)
}

// Record is a Document joined with its author's display name, the shape the
// listing and search operations return.
type Record struct {
	Document
	AuthorName string `json:"author"`
}
