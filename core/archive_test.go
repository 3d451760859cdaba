package orchestration

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type archivedFile struct {
	name string
	data []byte
}

func archivedFiles(t *testing.T, dir string) []archivedFile {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read archive directory: %v", err)
	}
	var files []archivedFile
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			t.Fatalf("failed to read archived file: %v", err)
		}
		files = append(files, archivedFile{name: entry.Name(), data: data})
	}
	return files
}

func TestResponseArchiveNamesFilesByTimeAndTurn(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "responses")
	archive := newResponseArchive(dir)
	archive.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }

	path, err := archive.Save("0123456789abcdef", []byte("RIFF"))
	if err != nil {
		t.Fatalf("expected save to succeed, got %v", err)
	}
	if want := filepath.Join(dir, "response_20240309_140507_01234567.wav"); path != want {
		t.Fatalf("expected %s, got %s", want, path)
	}

	files := archivedFiles(t, dir)
	if len(files) != 1 || string(files[0].data) != "RIFF" {
		t.Fatalf("expected the container on disk, got %+v", files)
	}
}

func TestResponseArchiveSkipsEmptyAudio(t *testing.T) {
	dir := t.TempDir()
	path, err := newResponseArchive(dir).Save("turn", nil)
	if err != nil || path != "" {
		t.Fatalf("expected nothing saved, got %q, %v", path, err)
	}
	if files := archivedFiles(t, dir); len(files) != 0 {
		t.Fatalf("expected an empty archive, got %d files", len(files))
	}
}

func TestResponseArchiveDisabledWithoutDirectory(t *testing.T) {
	archive := newResponseArchive("")
	if archive != nil {
		t.Fatalf("expected no archive without a directory")
	}
	if path, err := archive.Save("turn", []byte("RIFF")); err != nil || path != "" {
		t.Fatalf("expected a nil archive to be a no-op, got %q, %v", path, err)
	}
}
