// Package project keeps timestamped .mid saves in per-project folders under
// ~/.config/go-pianoroll/projects.
package project

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"go-pianoroll/debug"
)

const (
	Ext             = ".mid"
	DefaultName     = "untitled"
	timestampLayout = "2006-01-02_15-04-05"
)

var (
	ErrNoSaves     = errors.New("no saves in project")
	ErrBadFilename = errors.New("not a save filename")
)

// SaveInfo represents a saved file (for listing)
type SaveInfo struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// ProjectsDir returns the projects directory path
func ProjectsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fault.Wrap(err)
	}
	return filepath.Join(home, ".config", "go-pianoroll", "projects"), nil
}

// Store is a projects directory
type Store struct {
	Root string
	now  func() time.Time
}

// Open returns the store in the user's config directory
func Open() (*Store, error) {
	dir, err := ProjectsDir()
	if err != nil {
		return nil, err
	}
	return NewStore(dir), nil
}

func NewStore(root string) *Store {
	return &Store{Root: root, now: time.Now}
}

// Dir returns the path to a specific project
func (s *Store) Dir(project string) string {
	return filepath.Join(s.Root, sanitizeFilename(project))
}

// ListProjects returns all project folder names
func (s *Store) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fault.Wrap(err)
	}

	projects := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}

	sort.Strings(projects)
	return projects, nil
}

// parseSave reads 2024-01-15_14-30-00.mid or 2024-01-15_14-30-00_name.mid
func parseSave(filename string) (SaveInfo, bool) {
	if !strings.HasSuffix(filename, Ext) {
		return SaveInfo{}, false
	}
	base := strings.TrimSuffix(filename, Ext)
	if len(base) < len(timestampLayout) {
		return SaveInfo{}, false
	}
	ts, err := time.Parse(timestampLayout, base[:len(timestampLayout)])
	if err != nil {
		return SaveInfo{}, false
	}
	info := SaveInfo{Filename: filename, Timestamp: ts}
	if rest := base[len(timestampLayout):]; len(rest) > 1 && rest[0] == '_' {
		info.Name = rest[1:]
	}
	return info, true
}

// ListSaves returns timestamped saves for a project, newest first
func (s *Store) ListSaves(project string) ([]SaveInfo, error) {
	entries, err := os.ReadDir(s.Dir(project))
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, fault.Wrap(err)
	}

	saves := []SaveInfo{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if info, ok := parseSave(entry.Name()); ok {
			saves = append(saves, info)
		}
	}

	sort.SliceStable(saves, func(i, j int) bool {
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})
	return saves, nil
}

// Save writes data as a new timestamped file and returns its filename
func (s *Store) Save(project string, data []byte) (string, error) {
	if project == "" {
		project = DefaultName
	}
	dir := s.Dir(project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fault.Wrap(err, fmsg.With("create project folder"))
	}

	filename := s.now().Format(timestampLayout) + Ext
	if err := writeAtomic(filepath.Join(dir, filename), data); err != nil {
		return "", err
	}
	debug.Log("project", "saved", "project", project, "file", filename, "bytes", len(data))
	return filename, nil
}

// writeAtomic writes through a temp file so a crash never leaves half a save
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".save-*")
	if err != nil {
		return fault.Wrap(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fault.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return fault.Wrap(err)
	}
	return fault.Wrap(os.Rename(tmp.Name(), path))
}

// Load reads a save, or the most recent one when filename is empty
func (s *Store) Load(project, filename string) ([]byte, error) {
	if filename == "" {
		saves, err := s.ListSaves(project)
		if err != nil {
			return nil, err
		}
		if len(saves) == 0 {
			return nil, fault.Wrap(ErrNoSaves,
				fmsg.WithDesc("project "+project, "There are no saves in "+project+"."),
				ftag.With(ftag.NotFound))
		}
		filename = saves[0].Filename
	}
	if _, ok := parseSave(filename); !ok || filepath.Base(filename) != filename {
		return nil, fault.Wrap(ErrBadFilename, fmsg.With(filename), ftag.With(ftag.InvalidArgument))
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(project), filename))
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("read save"))
	}
	return data, nil
}

// Delete removes a specific save file
func (s *Store) Delete(project, filename string) error {
	if _, ok := parseSave(filename); !ok || filepath.Base(filename) != filename {
		return fault.Wrap(ErrBadFilename, fmsg.With(filename), ftag.With(ftag.InvalidArgument))
	}
	return fault.Wrap(os.Remove(filepath.Join(s.Dir(project), filename)))
}

// Rename changes the name part of a save, keeping its timestamp. Returns the new filename.
func (s *Store) Rename(project, filename, name string) (string, error) {
	info, ok := parseSave(filename)
	if !ok || filepath.Base(filename) != filename {
		return "", fault.Wrap(ErrBadFilename, fmsg.With(filename), ftag.With(ftag.InvalidArgument))
	}

	next := info.Timestamp.Format(timestampLayout)
	if safe := sanitizeFilename(name); safe != "" {
		next += "_" + safe
	}
	next += Ext

	dir := s.Dir(project)
	if err := os.Rename(filepath.Join(dir, filename), filepath.Join(dir, next)); err != nil {
		return "", fault.Wrap(err)
	}
	return next, nil
}

// DeleteProject deletes entire project folder
func (s *Store) DeleteProject(project string) error {
	return fault.Wrap(os.RemoveAll(s.Dir(project)))
}

// RenameProject renames a project folder
func (s *Store) RenameProject(oldName, newName string) error {
	return fault.Wrap(os.Rename(s.Dir(oldName), s.Dir(newName)))
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	r := strings.NewReplacer(
		" ", "-", "/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	)
	name = r.Replace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}
