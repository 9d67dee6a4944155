// Package storage owns the on-disk layout: downloaded media under
// <root>/scrapes/<guild>/<channel>/ and cached day responses under
// <root>/cached/<guild>/<channel>/.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	scrapesDir = "scrapes"
	cachedDir  = "cached"
)

// Manager resolves and writes archive paths below a root directory
type Manager struct {
	root     string
	sanitize bool
}

// NewManager creates the root directory if needed
func NewManager(root string, sanitize bool) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{root: root, sanitize: sanitize}, nil
}

// Root returns the archive root
func (m *Manager) Root() string {
	return m.root
}

// ChannelDir returns and creates <root>/scrapes/<guild>/<channel>
func (m *Manager) ChannelDir(guildName, channelName string) (string, error) {
	dir := filepath.Join(m.root, scrapesDir, SafeName(guildName), SafeName(channelName))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create channel directory: %w", err)
	}
	return dir, nil
}

// FileName derives the local name of a media URL from its last two path
// segments, e.g. .../attachments/1/2/cat.png becomes 2_cat.png.
func (m *Manager) FileName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	p = strings.TrimSuffix(p, "/")
	last := path.Base(p)
	head := path.Base(path.Dir(p))
	name := last
	if head != "" && head != "." && head != "/" {
		name = head + "_" + last
	}

	if m.sanitize {
		return SafeName(name)
	}
	return stripSeparators(name)
}

// FilePath returns the destination of a media URL inside a channel directory
func (m *Manager) FilePath(guildName, channelName, rawURL string) (string, error) {
	dir, err := m.ChannelDir(guildName, channelName)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, m.FileName(rawURL)), nil
}

// CachePath returns <root>/cached/<guild>/<channel>/<y>_<m>_<d>.cache.json
func (m *Manager) CachePath(guildName, channelName string, day time.Time) string {
	name := fmt.Sprintf("%d_%d_%d.cache.json", day.Year(), int(day.Month()), day.Day())
	return filepath.Join(m.root, cachedDir, SafeName(guildName), SafeName(channelName), name)
}

// SaveDayJSON writes v as the cached response of a day. An existing cache
// file is left untouched and reported as not written.
func (m *Manager) SaveDayJSON(guildName, channelName string, day time.Time, v interface{}) (bool, error) {
	target := m.CachePath(guildName, channelName, day)
	if _, err := os.Stat(target); err == nil {
		return false, nil
	}

	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal day cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return false, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := WriteFileAtomic(target, data, 0644); err != nil {
		return false, err
	}
	return true, nil
}

// WriteFileAtomic writes data to a temp file beside path and renames it in place
func WriteFileAtomic(target string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, perm)
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

const illegalChars = `\/<>:"|?*`

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true, "CLOCK$": true,
	"KEYBD$": true, "KBD$": true, "SCREEN$": true, "POINTER$": true, "MOUSE$": true,
	"$IDLE$": true, "CONFIG$": true, "LST": true, "PLT": true, "PIPE": true, "MAILSLOT": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SafeName removes characters most filesystems reject and replaces reserved
// device names with 16 random hex characters, keeping the extension.
func SafeName(name string) string {
	stem, ext := name, ""
	if i := strings.IndexByte(name, '.'); i >= 0 {
		stem, ext = name[:i], name[i:]
	}
	if reservedNames[strings.ToUpper(stem)] {
		name = randomHex(8) + ext
	}

	name = strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(illegalChars, r) {
			return -1
		}
		return r
	}, name)

	name = strings.TrimRight(name, ". ")
	if name == "" {
		return randomHex(8)
	}
	return name
}

func stripSeparators(name string) string {
	return strings.NewReplacer("/", "", `\`, "").Replace(name)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strings.Repeat("0", 2*n)
	}
	return strings.ToUpper(hex.EncodeToString(b))
}

// RandomSuffix returns n random hex characters for name fallbacks
func RandomSuffix(n int) string {
	s := randomHex((n + 1) / 2)
	return s[:n]
}
