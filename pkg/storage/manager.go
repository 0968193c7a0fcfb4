package storage

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"rednote/pkg/models"
	"rednote/pkg/platform"
)

const noteFile = "note.json"

// Manager writes extracted notes below an output directory, one
// subdirectory per note id, and remembers which notes are already saved.
// Saved notes are keyed by normalized note URL.
type Manager struct {
	outputDir string
	saved     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates the output directory if needed and indexes the notes
// already in it.
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		saved:     make(map[string]bool),
	}

	if err := manager.scanExistingNotes(); err != nil {
		return nil, fmt.Errorf("failed to scan existing notes: %w", err)
	}

	return manager, nil
}

// scanExistingNotes records the URL of every subdirectory holding a
// readable note.json. Unreadable notes are ignored and get rewritten.
func (m *Manager) scanExistingNotes() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		note, err := m.LoadNote(entry.Name())
		if err != nil {
			continue
		}
		if key := platform.NormalizeURL(note.Detail.URL); key != "" {
			m.saved[key] = true
		}
	}

	return nil
}

// keyFor names the directory of a note: its id when the URL carries one.
func keyFor(note models.Note) string {
	if id := platform.NoteID(note.Detail.URL); id != "" {
		return id
	}
	name := uuid.NewSHA1(uuid.NameSpaceURL, []byte(note.Detail.URL+"\x00"+note.Detail.Title))
	return "note-" + name.String()[:8]
}

// IsSaved reports whether the note behind url is already on disk.
func (m *Manager) IsSaved(url string) bool {
	key := platform.NormalizeURL(url)
	if key == "" {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saved[key]
}

// SavedURLs lists the normalized URLs of the notes on disk.
func (m *Manager) SavedURLs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	urls := make([]string, 0, len(m.saved))
	for u := range m.saved {
		urls = append(urls, u)
	}
	return urls
}

// SaveNote writes note.json and, when withImages is set, every decoded
// image as <n>.jpg. It returns the note's directory.
func (m *Manager) SaveNote(note models.Note, withImages bool) (string, error) {
	key := keyFor(note)
	dir := filepath.Join(m.outputDir, key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create note directory: %w", err)
	}

	meta := note
	meta.Images = nil
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode note: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, noteFile), bytes.NewReader(data)); err != nil {
		return "", err
	}

	if withImages {
		for i, encoded := range note.Images {
			raw, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return "", fmt.Errorf("failed to decode image %d: %w", i, err)
			}
			name := filepath.Join(dir, fmt.Sprintf("%d.jpg", i))
			if err := writeAtomic(name, bytes.NewReader(raw)); err != nil {
				return "", err
			}
		}
	}

	if url := platform.NormalizeURL(note.Detail.URL); url != "" {
		m.mu.Lock()
		m.saved[url] = true
		m.mu.Unlock()
	}

	return dir, nil
}

// LoadNote reads a saved note back.
func (m *Manager) LoadNote(id string) (models.Note, error) {
	var note models.Note
	data, err := os.ReadFile(filepath.Join(m.outputDir, id, noteFile))
	if err != nil {
		return note, fmt.Errorf("failed to read note: %w", err)
	}
	if err := json.Unmarshal(data, &note); err != nil {
		return note, fmt.Errorf("failed to parse note: %w", err)
	}
	return note, nil
}

// writeAtomic writes through a temporary file and renames it into place.
func writeAtomic(filename string, r io.Reader) error {
	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// GetSavedCount returns the number of notes on disk
func (m *Manager) GetSavedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}
