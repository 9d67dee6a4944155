package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"chanarchive/pkg/logger"
)

const cursorVersion = 1

// Cursor is the persisted progress of one channel walk
type Cursor struct {
	GuildID     string `json:"guild_id"`
	ChannelID   string `json:"channel_id"`
	GuildName   string `json:"guild_name,omitempty"`
	ChannelName string `json:"channel_name,omitempty"`

	// CurrentDay is the next day to scan, midnight in the run's time zone
	CurrentDay time.Time `json:"current_day"`
	StartDay   time.Time `json:"start_day"`

	DaysScanned     int   `json:"days_scanned"`
	DaysEmpty       int   `json:"days_empty"`
	DaysFailed      int   `json:"days_failed"`
	PagesLost       int   `json:"pages_lost"`
	FilesDownloaded int   `json:"files_downloaded"`
	BytesDownloaded int64 `json:"bytes_downloaded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Manager handles the cursor file of one channel
type Manager struct {
	path   string
	mu     sync.Mutex
	logger logger.Logger
}

// NewManager creates a manager for guild/channel. An empty dir selects the
// user data directory.
func NewManager(dir, guildID, channelID string) (*Manager, error) {
	if dir == "" {
		dataDir, err := DataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "checkpoints")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		path:   filepath.Join(dir, fmt.Sprintf("%s_%s.checkpoint.json", guildID, channelID)),
		logger: logger.GetLogger(),
	}, nil
}

// Path returns the cursor file location
func (m *Manager) Path() string {
	return m.path
}

// Create starts a fresh cursor at startDay and saves it
func (m *Manager) Create(guildID, channelID string, startDay time.Time) (*Cursor, error) {
	now := time.Now()
	cursor := &Cursor{
		GuildID:    guildID,
		ChannelID:  channelID,
		CurrentDay: startDay,
		StartDay:   startDay,
		CreatedAt:  now,
		Version:    cursorVersion,
	}

	if err := m.Save(cursor); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"channel_id": channelID,
		"start_day":  startDay.Format(time.DateOnly),
		"path":       m.path,
	})
	return cursor, nil
}

// Load reads the cursor. A missing file returns nil without error.
func (m *Manager) Load() (*Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cursor Cursor
	if err := json.NewDecoder(file).Decode(&cursor); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cursor.Version != cursorVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", cursor.Version)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"channel_id":   cursor.ChannelID,
		"current_day":  cursor.CurrentDay.Format(time.DateOnly),
		"days_scanned": cursor.DaysScanned,
		"updated_at":   cursor.UpdatedAt,
	})
	return &cursor, nil
}

// Save writes the cursor to disk atomically
func (m *Manager) Save(cursor *Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cursor.UpdatedAt = time.Now()
	if cursor.Version == 0 {
		cursor.Version = cursorVersion
	}

	file, err := os.CreateTemp(filepath.Dir(m.path), filepath.Base(m.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	tempPath := file.Name()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cursor); err != nil {
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

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"channel_id":  cursor.ChannelID,
		"current_day": cursor.CurrentDay.Format(time.DateOnly),
	})
	return nil
}

// Advance moves the cursor to the previous day and saves it
func (m *Manager) Advance(cursor *Cursor, previousDay time.Time) error {
	cursor.CurrentDay = previousDay
	cursor.DaysScanned++
	return m.Save(cursor)
}

// Delete removes the cursor file
func (m *Manager) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint deleted", map[string]interface{}{"path": m.path})
	return nil
}

// Exists checks if a cursor file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// DataDirectory returns the per-user data directory for the current OS
func DataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "chanarchive")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "chanarchive")
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "chanarchive")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "chanarchive")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
