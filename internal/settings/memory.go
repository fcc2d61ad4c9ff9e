package settings

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store. Nothing survives a restart.
type Memory struct {
	mu       sync.Mutex
	values   map[int]map[string]any
	watchers map[int][]chan string
}

func NewMemory() *Memory {
	return &Memory{
		values:   make(map[int]map[string]any),
		watchers: make(map[int][]chan string),
	}
}

func (m *Memory) get(key string, user int) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[user][key]
}

func (m *Memory) put(key string, value any, user int) {
	m.mu.Lock()
	if m.values[user] == nil {
		m.values[user] = make(map[string]any)
	}
	m.values[user][key] = value

	// Sends happen under the lock so a watcher cannot be closed mid-send.
	for _, w := range m.watchers[user] {
		select {
		case w <- key:
		default:
		}
	}
	m.mu.Unlock()
}

func (m *Memory) GetFloat(key string, def float64, user int) (float64, error) {
	v, err := toFloat(m.get(key, user), def)
	if err != nil {
		return def, fmt.Errorf("settings: %s for user %d: %w", key, user, err)
	}
	return v, nil
}

func (m *Memory) PutFloat(key string, value float64, user int) error {
	m.put(key, value, user)
	return nil
}

func (m *Memory) GetInt(key string, def int, user int) (int, error) {
	v, err := toInt(m.get(key, user), def)
	if err != nil {
		return def, fmt.Errorf("settings: %s for user %d: %w", key, user, err)
	}
	return v, nil
}

func (m *Memory) PutInt(key string, value int, user int) error {
	m.put(key, value, user)
	return nil
}

// Has reports whether key was ever written for user.
func (m *Memory) Has(key string, user int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[user][key]
	return ok
}

func (m *Memory) Watch(ctx context.Context, user int) (<-chan string, error) {
	ch := make(chan string, 16)

	m.mu.Lock()
	m.watchers[user] = append(m.watchers[user], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		ws := m.watchers[user]
		for i, w := range ws {
			if w == ch {
				m.watchers[user] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}
