package kvstore

import (
	"sort"
	"strings"
	"sync"

	"github.com/fystack/taixiu-predictor/pkg/common/enum"
	"github.com/fystack/taixiu-predictor/pkg/infra"
)

// MemoryStore keeps everything in a map. Values set through SetAny are
// encoded with the codec so round trips behave like the durable stores.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	codec  infra.Codec
	closed bool
}

func NewMemoryStore(codec infra.Codec) *MemoryStore {
	if codec == nil {
		codec = infra.JSON
	}
	return &MemoryStore{data: make(map[string][]byte), codec: codec}
}

func (m *MemoryStore) GetName() string {
	return string(enum.KVStoreTypeMemory)
}

func (m *MemoryStore) Get(key string) (string, error) {
	if key == "" {
		return "", ErrKeyEmpty
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrStoreClosed
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return string(v), nil
}

func (m *MemoryStore) Set(key string, value string) error {
	return m.put(key, []byte(value))
}

func (m *MemoryStore) put(key string, value []byte) error {
	if key == "" {
		return ErrKeyEmpty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.data[key] = value
	return nil
}

func (m *MemoryStore) SetAny(key string, value any) error {
	if err := checkKeyAndValue(key, value); err != nil {
		return err
	}
	data, err := m.codec.Marshal(value)
	if err != nil {
		return err
	}
	return m.put(key, data)
}

func (m *MemoryStore) GetAny(key string, value any) (bool, error) {
	if err := checkKeyAndValue(key, value); err != nil {
		return false, err
	}
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return false, ErrStoreClosed
	}
	data, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, m.codec.Unmarshal(data, value)
}

// List returns matching pairs in key order.
func (m *MemoryStore) List(prefix string) ([]*infra.KVPair, error) {
	if prefix == "" {
		return nil, ErrPrefixEmpty
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	result := make([]*infra.KVPair, 0)
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			result = append(result, &infra.KVPair{Key: k, Value: append([]byte(nil), v...)})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (m *MemoryStore) Delete(key string) error {
	if key == "" {
		return ErrKeyEmpty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
