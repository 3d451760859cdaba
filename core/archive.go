package orchestration

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// responseArchive writes the audio of every completed turn to a directory as
// a WAV file.
type responseArchive struct {
	dir string
	now func() time.Time
}

func newResponseArchive(dir string) *responseArchive {
	if dir == "" {
		return nil
	}
	return &responseArchive{dir: dir, now: time.Now}
}

func (a *responseArchive) Save(turnID string, container []byte) (string, error) {
	if a == nil || len(container) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	suffix := turnID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	name := fmt.Sprintf("response_%s_%s.wav", a.now().Format("20060102_150405"), suffix)
	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, container, 0o644); err != nil {
		return "", fmt.Errorf("failed to write archived response: %w", err)
	}
	return path, nil
}
