package browse

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArtifactWriter dumps what the driver was looking at when an event
// failed: the page markup and a text snapshot, under timestamped names so
// repeated failures never overwrite each other.
type ArtifactWriter struct {
	Dir string

	// now is replaced in tests for stable filenames.
	now func() time.Time
}

// NewArtifactWriter creates a writer rooted at dir.
func NewArtifactWriter(dir string) *ArtifactWriter {
	return &ArtifactWriter{Dir: dir, now: time.Now}
}

// Dump writes the markup and snapshot for one failed step. The stem names
// the step, typically the event description. Returns the markup path.
func (w *ArtifactWriter) Dump(stem string, markup string, snapshot []byte) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	base := fmt.Sprintf("%s-%s", w.now().Format("20060102-150405"), slug(stem))
	markupPath := filepath.Join(w.Dir, base+".html")
	if err := os.WriteFile(markupPath, []byte(markup), 0o644); err != nil {
		return "", fmt.Errorf("write markup artifact: %w", err)
	}
	if len(snapshot) > 0 {
		if err := os.WriteFile(filepath.Join(w.Dir, base+".txt"), snapshot, 0o644); err != nil {
			return "", fmt.Errorf("write snapshot artifact: %w", err)
		}
	}
	return markupPath, nil
}

// slug reduces a step name to a safe filename fragment.
func slug(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "page"
	}
	return out
}
