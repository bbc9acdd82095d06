package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Trail keeps one growing text artifact per account identity. Records are only
// ever appended; nothing is mutated in place.
type Trail struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewTrail creates the trail directory if needed.
func NewTrail(dir string) (*Trail, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("audit: trail directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create trail dir: %w", err)
	}
	return &Trail{dir: dir, now: time.Now}, nil
}

// Append writes a timestamped line to the identity's record.
func (t *Trail) Append(ctx context.Context, identity, line string) error {
	path, err := t.path(identity)
	if err != nil {
		return err
	}
	line = strings.ReplaceAll(strings.TrimSpace(line), "\n", " ")
	if line == "" {
		return errors.New("audit: line is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open trail: %w", err)
	}
	defer f.Close()

	stamp := t.now().UTC().Format(time.RFC3339)
	if _, err := fmt.Fprintf(f, "%s %s\n", stamp, line); err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

// Read returns the full text of an identity's record. An identity that has
// never been written to yields an empty string.
func (t *Trail) Read(ctx context.Context, identity string) (string, error) {
	path, err := t.path(identity)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("audit: read trail: %w", err)
	}
	return string(data), nil
}

func (t *Trail) path(identity string) (string, error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" {
		return "", errors.New("audit: identity is required")
	}
	// Identities are emails; keep the artifact name filesystem-safe.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_', r == '@':
			return r
		}
		return '_'
	}, identity)
	return filepath.Join(t.dir, safe+".log"), nil
}
