package state

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// CourseDataKey is the fixed key under which the last committed raw course
// text is persisted.
const CourseDataKey = "course-data"

// ErrNotFound is returned by Get when nothing has been stored under a key.
var ErrNotFound = errors.New("state: key not found")

var validKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// KV is the persisted-state collaborator: opaque string blobs by key,
// overwritten wholesale on every Set.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// FileKV stores each key as <dir>/<key>.json.
type FileKV struct {
	dir string
}

// NewFileKV returns a FileKV rooted at dir. The directory is created on the
// first Set.
func NewFileKV(dir string) *FileKV {
	if dir == "" {
		// Development runs without a configured data dir stay relative.
		dir = "./var/coursecal"
	}
	return &FileKV{dir: dir}
}

func (s *FileKV) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", errors.New("state: invalid key " + key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

func (s *FileKV) Get(key string) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}

// Set writes value atomically: temp file in the same directory, fsync,
// chmod 0600, rename.
func (s *FileKV) Set(key, value string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, p)
}

// MemoryKV is an in-memory KV for tests. It is safe for concurrent use,
// but Err must be set before the KV is shared.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string
	// Err, when set, is returned by every Get.
	Err error
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}
