package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rednote/pkg/config"
	"rednote/pkg/logger"
)

const currentVersion = 1

// Checkpoint is the resumable state of one long crawl.
type Checkpoint struct {
	Name string `json:"name"`
	// Source is the search keyword or profile URL being crawled
	Source       string            `json:"source"`
	Seen         map[string]string `json:"seen"` // normalized url -> title
	TotalYielded int               `json:"total_yielded"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Version      int               `json:"version"`
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a manager for the crawl called name below the
// application data directory.
func NewManager(name string) (*Manager, error) {
	return NewManagerAt(filepath.Join(config.AppDataDir(), "checkpoints"), name)
}

// NewManagerAt creates a manager storing its checkpoint in dir.
func NewManagerAt(dir, name string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	checkpointPath := filepath.Join(dir, fmt.Sprintf("%s.checkpoint.json", fileName(name)))

	return &Manager{
		checkpointPath: checkpointPath,
		logger:         logger.GetLogger(),
	}, nil
}

// fileName keeps name readable but safe as a single path element.
func fileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}

// Path returns the checkpoint file location.
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates a new checkpoint
func (m *Manager) Create(name, source string) (*Checkpoint, error) {
	checkpoint := &Checkpoint{
		Name:      name,
		Source:    source,
		Seen:      make(map[string]string),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Version:   currentVersion,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"name": name,
		"path": m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint. It returns nil and no error when
// there is none.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Seen == nil {
		checkpoint.Seen = make(map[string]string)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"name":          checkpoint.Name,
		"total_yielded": checkpoint.TotalYielded,
		"updated_at":    checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// LoadOrCreate resumes the checkpoint for source, or starts a new one when
// none exists or it belongs to a different source.
func (m *Manager) LoadOrCreate(name, source string) (*Checkpoint, bool, error) {
	cp, err := m.Load()
	if err != nil {
		return nil, false, err
	}
	if cp != nil && cp.Source == source {
		return cp, true, nil
	}
	cp, err = m.Create(name, source)
	return cp, false, err
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"name":          checkpoint.Name,
		"total_yielded": checkpoint.TotalYielded,
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// RecordNote marks a yielded note and persists the checkpoint.
func (m *Manager) RecordNote(checkpoint *Checkpoint, url, title string) error {
	if !checkpoint.HasSeen(url) {
		checkpoint.TotalYielded++
	}
	checkpoint.Seen[url] = title
	return m.Save(checkpoint)
}

// HasSeen reports whether url was already yielded.
func (checkpoint *Checkpoint) HasSeen(url string) bool {
	_, exists := checkpoint.Seen[url]
	return exists
}

// SeenURLs lists every recorded URL.
func (checkpoint *Checkpoint) SeenURLs() []string {
	urls := make([]string, 0, len(checkpoint.Seen))
	for u := range checkpoint.Seen {
		urls = append(urls, u)
	}
	return urls
}

// BackupCheckpoint creates a backup of the current checkpoint
func (m *Manager) BackupCheckpoint() error {
	if !m.Exists() {
		return nil
	}

	backupPath := m.checkpointPath + ".backup"

	src, err := os.Open(m.checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}

	m.logger.Debug("Checkpoint backed up")
	return nil
}
