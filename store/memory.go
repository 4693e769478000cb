package store

import (
	"strconv"
	"sync"
)

// Memory is a map-backed Store. It is the default when the tracker runs
// without a persistence backend and is what the tests use.
type Memory struct {
	mu         sync.Mutex
	namespaces map[string]map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		namespaces: make(map[string]map[string]string),
	}
}

// Namespace opens (creating if needed) the named partition.
func (m *Memory) Namespace(name string) (Namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[name]
	if !ok {
		ns = make(map[string]string)
		m.namespaces[name] = ns
	}
	return &memoryNamespace{store: m, values: ns}, nil
}

type memoryNamespace struct {
	store  *Memory
	values map[string]string
	closed bool
}

func (n *memoryNamespace) get(key string) (string, bool) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	v, ok := n.values[key]
	return v, ok
}

func (n *memoryNamespace) put(key, value string) error {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	n.values[key] = value
	return nil
}

func (n *memoryNamespace) GetString(key, def string) string {
	if v, ok := n.get(key); ok {
		return v
	}
	return def
}

func (n *memoryNamespace) PutString(key, value string) error {
	return n.put(key, value)
}

func (n *memoryNamespace) GetBool(key string, def bool) bool {
	if v, ok := n.get(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func (n *memoryNamespace) PutBool(key string, value bool) error {
	return n.put(key, strconv.FormatBool(value))
}

func (n *memoryNamespace) GetUint32(key string, def uint32) uint32 {
	if v, ok := n.get(key); ok {
		if u, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint32(u)
		}
	}
	return def
}

func (n *memoryNamespace) PutUint32(key string, value uint32) error {
	return n.put(key, strconv.FormatUint(uint64(value), 10))
}

func (n *memoryNamespace) GetUint8(key string, def uint8) uint8 {
	if v, ok := n.get(key); ok {
		if u, err := strconv.ParseUint(v, 10, 8); err == nil {
			return uint8(u)
		}
	}
	return def
}

func (n *memoryNamespace) PutUint8(key string, value uint8) error {
	return n.put(key, strconv.FormatUint(uint64(value), 10))
}

func (n *memoryNamespace) GetFloat64(key string, def float64) float64 {
	if v, ok := n.get(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (n *memoryNamespace) PutFloat64(key string, value float64) error {
	return n.put(key, strconv.FormatFloat(value, 'f', -1, 64))
}

func (n *memoryNamespace) Clear() error {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	for k := range n.values {
		delete(n.values, k)
	}
	return nil
}

func (n *memoryNamespace) Close() error {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	n.closed = true
	return nil
}
