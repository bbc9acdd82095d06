// Package content selects a view/edit strategy per document format family.
// Rich-document and fixed-layout edits are lossy by design of the edit
// channel: only the extracted text survives a save, formatting does not.
package content

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"docdesk.org/internal/document"
)

// ErrViewUnsupported marks format families with no view/edit strategy.
// Download and delete still work for such documents.
var ErrViewUnsupported = errors.New("content: view/edit unsupported for this format")

// Dispatcher routes fetch/save/view operations by format family. It keeps no
// state between calls; the caller round-trips the full text on every save.
type Dispatcher struct {
	blobs document.BlobStore
}

func NewDispatcher(blobs document.BlobStore) *Dispatcher {
	return &Dispatcher{blobs: blobs}
}

// FetchText returns the editable text behind a locator.
//
// plain-text reads the blob verbatim. rich-document extracts the body text
// from the OOXML archive, unless an edited companion exists, which then takes
// precedence. fixed-layout extracts the embedded text.
func (d *Dispatcher) FetchText(ctx context.Context, locator string) (string, error) {
	switch document.DetectFamily(locator) {
	case document.FamilyPlainText:
		data, err := d.blobs.Read(ctx, locator)
		if err != nil {
			return "", err
		}
		return string(data), nil

	case document.FamilyRichDocument:
		if data, err := d.blobs.Read(ctx, locator+document.CompanionSuffix); err == nil {
			return string(data), nil
		}
		if strings.ToLower(filepath.Ext(locator)) != ".docx" {
			// Legacy binary .doc carries no parseable archive.
			return "", ErrViewUnsupported
		}
		data, err := d.blobs.Read(ctx, locator)
		if err != nil {
			return "", err
		}
		return extractRichText(data)

	case document.FamilyFixedLayout:
		data, err := d.blobs.Read(ctx, locator)
		if err != nil {
			return "", err
		}
		return extractFixedLayoutText(data)
	}
	return "", ErrViewUnsupported
}

// SaveText writes edited text back under the locator.
//
// plain-text overwrites the blob. rich-document writes the text to the
// companion edit channel, leaving the original archive untouched (lossy).
// fixed-layout regenerates the artifact from the text (also lossy: layout and
// graphics are not preserved).
func (d *Dispatcher) SaveText(ctx context.Context, locator, text string) error {
	switch document.DetectFamily(locator) {
	case document.FamilyPlainText:
		return d.blobs.Write(ctx, locator, []byte(text))

	case document.FamilyRichDocument:
		return d.blobs.Write(ctx, locator+document.CompanionSuffix, []byte(text))

	case document.FamilyFixedLayout:
		data, err := renderFixedLayout(text)
		if err != nil {
			return err
		}
		return d.blobs.Write(ctx, locator, data)
	}
	return ErrViewUnsupported
}

// ViewArtifact returns displayable bytes and their media type. rich-document
// content is rendered to a fresh fixed-layout artifact for display only; the
// stored blob is not modified.
func (d *Dispatcher) ViewArtifact(ctx context.Context, locator string) ([]byte, string, error) {
	switch document.DetectFamily(locator) {
	case document.FamilyPlainText:
		data, err := d.blobs.Read(ctx, locator)
		if err != nil {
			return nil, "", err
		}
		return data, "text/plain; charset=utf-8", nil

	case document.FamilyFixedLayout:
		data, err := d.blobs.Read(ctx, locator)
		if err != nil {
			return nil, "", err
		}
		return data, "application/pdf", nil

	case document.FamilyRichDocument:
		text, err := d.FetchText(ctx, locator)
		if err != nil {
			return nil, "", err
		}
		data, err := renderFixedLayout(text)
		if err != nil {
			return nil, "", err
		}
		return data, "application/pdf", nil
	}
	return nil, "", ErrViewUnsupported
}
