package audit

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestTrailAppendAndRead(t *testing.T) {
	trail, err := NewTrail(t.TempDir())
	if err != nil {
		t.Fatalf("NewTrail: %v", err)
	}
	trail.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	if err := trail.Append(ctx, "Alice@x.org", "approved (register)"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := trail.Append(ctx, "alice@x.org", "credential changed"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	text, err := trail.Read(ctx, "alice@x.org")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), text)
	}
	if !strings.Contains(lines[0], "approved") {
		t.Fatalf("first line missing action: %q", lines[0])
	}
	if !strings.HasPrefix(lines[0], "2025-03-10T12:00:00Z ") {
		t.Fatalf("missing timestamp prefix: %q", lines[0])
	}
}

func TestTrailReadUnknownIdentity(t *testing.T) {
	trail, err := NewTrail(t.TempDir())
	if err != nil {
		t.Fatalf("NewTrail: %v", err)
	}
	text, err := trail.Read(context.Background(), "ghost@x.org")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty trail, got %q", text)
	}
}

func TestTrailRejectsEmptyIdentity(t *testing.T) {
	trail, err := NewTrail(t.TempDir())
	if err != nil {
		t.Fatalf("NewTrail: %v", err)
	}
	if err := trail.Append(context.Background(), "  ", "line"); err == nil {
		t.Fatal("expected error for empty identity")
	}
}
