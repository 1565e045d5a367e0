package mailbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrInvalidName is returned when a file or agent name contains path
// separators, traversal sequences or reserved characters. This is a
// structural error, never a benign runtime condition.
var ErrInvalidName = errors.New("invalid name")

// placeholder keeps otherwise empty areas present in version control.
// It is invisible to listings and survives workspace cleaning.
const placeholder = ".gitkeep"

// Mailbox is the fixed set of named storage areas belonging to one
// agent under a shared agents root.
type Mailbox struct {
	root  string
	agent string

	// logMu serializes appends from this process so interleaved
	// writers never corrupt a single log line
	logMu sync.Mutex
}

// New creates a mailbox handle for an agent. The directory structure
// is not touched until EnsureStructure or a write operation runs.
func New(agentsRoot, agent string) (*Mailbox, error) {
	if err := validateName(agent); err != nil {
		return nil, fmt.Errorf("agent name %q: %w", agent, err)
	}
	return &Mailbox{root: agentsRoot, agent: agent}, nil
}

// Agent returns the owning agent's name.
func (m *Mailbox) Agent() string {
	return m.agent
}

// Path returns the mailbox root directory.
func (m *Mailbox) Path() string {
	return filepath.Join(m.root, m.agent)
}

// AreaPath returns the directory backing an area.
func (m *Mailbox) AreaPath(area Area) string {
	return filepath.Join(m.Path(), filepath.FromSlash(string(area)))
}

// EnsureStructure creates the mailbox root and the five primary areas
// if absent. It is idempotent and reports success rather than
// returning an error, so callers can decide to abort startup
// gracefully.
func (m *Mailbox) EnsureStructure() bool {
	for _, area := range primaryAreas {
		if err := m.EnsureArea(area); err != nil {
			return false
		}
	}
	return true
}

// EnsureArea creates a single area directory and its placeholder if
// absent. Terminal sub-areas are created this way on first use.
func (m *Mailbox) EnsureArea(area Area) error {
	dir := m.AreaPath(area)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", area, err)
	}
	keep := filepath.Join(dir, placeholder)
	if _, err := os.Stat(keep); os.IsNotExist(err) {
		if err := os.WriteFile(keep, nil, 0o644); err != nil {
			return fmt.Errorf("failed to create placeholder in %s: %w", area, err)
		}
	}
	return nil
}

// FilePath resolves an (area, name) pair to a concrete path after
// validating the name.
func (m *Mailbox) FilePath(area Area, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", fmt.Errorf("file name %q: %w", name, err)
	}
	return filepath.Join(m.AreaPath(area), name), nil
}

// WriteFile writes content into an area. The write is atomic: content
// lands in a temp file that is renamed over the target, so readers
// never observe a partially written file.
func (m *Mailbox) WriteFile(area Area, name string, content []byte) error {
	path, err := m.FilePath(area, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", area, err)
	}

	// Unique temp name to avoid conflicts between concurrent writers
	tmp := fmt.Sprintf("%s.%d.%d.tmp", path, os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if f, err := os.OpenFile(tmp, os.O_RDWR, 0o644); err == nil {
		_ = f.Sync()
		_ = f.Close()
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// ReadFile reads a file from an area. A missing file is an expected
// outcome in a polling queue, so it is reported as found=false rather
// than as an error.
func (m *Mailbox) ReadFile(area Area, name string) ([]byte, bool, error) {
	path, err := m.FilePath(area, name)
	if err != nil {
		return nil, false, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s/%s: %w", area, name, err)
	}
	return content, true, nil
}

// DeleteFile removes a file from an area. It reports whether a file
// was actually removed; deleting an absent file is not an error.
func (m *Mailbox) DeleteFile(area Area, name string) (bool, error) {
	path, err := m.FilePath(area, name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete %s/%s: %w", area, name, err)
	}
	return true, nil
}

// Exists reports whether a file is present in an area.
func (m *Mailbox) Exists(area Area, name string) (bool, error) {
	path, err := m.FilePath(area, name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s/%s: %w", area, name, err)
	}
	return true, nil
}

// Move relocates a file between areas with a single atomic rename.
// The destination area is created if needed.
func (m *Mailbox) Move(fromArea Area, name string, toArea Area) error {
	src, err := m.FilePath(fromArea, name)
	if err != nil {
		return err
	}
	if err := m.EnsureArea(toArea); err != nil {
		return err
	}
	dst := filepath.Join(m.AreaPath(toArea), name)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move %s from %s to %s: %w", name, fromArea, toArea, err)
	}
	return nil
}

// ListFiles returns the names of files in an area matching a glob
// pattern, in lexical order. Placeholder files and subdirectories are
// excluded. A missing area yields an empty result.
func (m *Mailbox) ListFiles(area Area, pattern string) ([]string, error) {
	entries, err := os.ReadDir(m.AreaPath(area))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", area, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == placeholder {
			continue
		}
		matched, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if matched {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// AppendToLog appends a timestamp-prefixed line to a log file.
// Appends from the same process are serialized.
func (m *Mailbox) AppendToLog(name, line string) error {
	path, err := m.FilePath(AreaLogs, name)
	if err != nil {
		return err
	}

	m.logMu.Lock()
	defer m.logMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create logs area: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w", name, err)
	}
	defer f.Close()

	stamped := fmt.Sprintf("%s %s\n", time.Now().Format(time.RFC3339), line)
	if _, err := f.WriteString(stamped); err != nil {
		return fmt.Errorf("failed to append to log %s: %w", name, err)
	}
	return nil
}

// CleanWorkspace deletes every file and subdirectory under the
// workspace area except placeholders and returns how many entries were
// removed.
func (m *Mailbox) CleanWorkspace() (int, error) {
	dir := m.AreaPath(AreaWorkspace)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read workspace: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.Name() == placeholder {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// GetInfo returns a per-area size snapshot for diagnostics.
func (m *Mailbox) GetInfo() (map[Area]Info, error) {
	infos := make(map[Area]Info, len(primaryAreas))
	for _, area := range primaryAreas {
		var info Info
		root := m.AreaPath(area)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			// Dot-prefixed entries (placeholders, locks, terminal
			// sub-areas) are bookkeeping, not area content
			if path != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return nil // entry vanished mid-walk
			}
			info.FileCount++
			info.TotalSize += fi.Size()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to inspect %s: %w", area, err)
		}
		infos[area] = info
	}
	return infos, nil
}

// reservedChars are rejected in file and agent names. Path separators
// and traversal sequences are checked separately.
const reservedChars = `<>:"|?*`

// validateName rejects names that could escape their area or that use
// OS-reserved characters. Validation failures are structural errors.
func validateName(name string) error {
	switch {
	case name == "" || name == "." || name == "..":
		return ErrInvalidName
	case strings.ContainsAny(name, reservedChars):
		return fmt.Errorf("%w: reserved character", ErrInvalidName)
	case strings.ContainsAny(name, "/\\") || strings.ContainsRune(name, os.PathSeparator):
		return fmt.Errorf("%w: path separator", ErrInvalidName)
	case strings.Contains(name, ".."):
		return fmt.Errorf("%w: path traversal", ErrInvalidName)
	case strings.ContainsAny(name, "\x00\n\r"):
		return fmt.Errorf("%w: control character", ErrInvalidName)
	}
	return nil
}
