package content

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/ledongthuc/pdf"
)

// extractFixedLayoutText pulls the embedded text out of a fixed-layout
// artifact for the edit channel.
func extractFixedLayoutText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("content: parse fixed-layout artifact: %w", err)
	}
	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("content: extract fixed-layout text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", fmt.Errorf("content: extract fixed-layout text: %w", err)
	}
	return buf.String(), nil
}

// renderFixedLayout regenerates a fixed-layout artifact from edited text.
// Only the text survives; the original layout and graphics are gone.
func renderFixedLayout(text string) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	for _, line := range strings.Split(text, "\n") {
		doc.MultiCell(0, 6, line, "", "L", false)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("content: render fixed-layout artifact: %w", err)
	}
	return buf.Bytes(), nil
}
