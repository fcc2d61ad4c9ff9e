package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileStore keeps one YAML document per user in dir.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create settings dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(user int) string {
	return filepath.Join(s.dir, strconv.Itoa(user)+".yaml")
}

func (s *FileStore) load(user int) (map[string]any, error) {
	values := make(map[string]any)

	data, err := os.ReadFile(s.path(user))
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path(user), err)
	}
	if values == nil {
		values = make(map[string]any)
	}
	return values, nil
}

func (s *FileStore) save(user int, values map[string]any) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".settings-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(user))
}

func (s *FileStore) get(key string, user int) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load(user)
	if err != nil {
		return nil, err
	}
	return values[key], nil
}

func (s *FileStore) put(key string, value any, user int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load(user)
	if err != nil {
		return err
	}
	values[key] = value
	if err := s.save(user, values); err != nil {
		return fmt.Errorf("settings: write %s for user %d: %w", key, user, err)
	}
	return nil
}

func (s *FileStore) GetFloat(key string, def float64, user int) (float64, error) {
	raw, err := s.get(key, user)
	if err != nil {
		return def, fmt.Errorf("settings: read %s for user %d: %w", key, user, err)
	}
	v, err := toFloat(raw, def)
	if err != nil {
		return def, fmt.Errorf("settings: %s for user %d: %w", key, user, err)
	}
	return v, nil
}

func (s *FileStore) PutFloat(key string, value float64, user int) error {
	return s.put(key, value, user)
}

func (s *FileStore) GetInt(key string, def int, user int) (int, error) {
	raw, err := s.get(key, user)
	if err != nil {
		return def, fmt.Errorf("settings: read %s for user %d: %w", key, user, err)
	}
	v, err := toInt(raw, def)
	if err != nil {
		return def, fmt.Errorf("settings: %s for user %d: %w", key, user, err)
	}
	return v, nil
}

func (s *FileStore) PutInt(key string, value int, user int) error {
	return s.put(key, value, user)
}

// Watch reports keys whose values differ after each change to the user's
// file, including changes made by this process.
func (s *FileStore) Watch(ctx context.Context, user int) (<-chan string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("settings: watcher: %w", err)
	}
	// Writes replace the file by rename, so the directory is watched.
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("settings: watch %s: %w", s.dir, err)
	}

	s.mu.Lock()
	prev, err := s.load(user)
	s.mu.Unlock()
	if err != nil {
		prev = make(map[string]any)
	}

	target := s.path(user)
	out := make(chan string, 16)

	go func() {
		defer close(out)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}

				s.mu.Lock()
				cur, err := s.load(user)
				s.mu.Unlock()
				if err != nil {
					continue
				}

				for _, key := range changedKeys(prev, cur) {
					select {
					case out <- key:
					case <-ctx.Done():
						return
					}
				}
				prev = cur
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return out, nil
}

func changedKeys(prev, cur map[string]any) []string {
	var keys []string
	for k, v := range cur {
		if !reflect.DeepEqual(prev[k], v) {
			keys = append(keys, k)
		}
	}
	for k := range prev {
		if _, ok := cur[k]; !ok {
			keys = append(keys, k)
		}
	}
	return keys
}
