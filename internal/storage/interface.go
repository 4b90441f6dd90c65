package storage

import "errors"

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Store defines the contract for the persistent key-value store.
// SetMulti must apply all writes as a single atomic unit.
type Store interface {
	Get(key string) ([]byte, error)
	GetMulti(keys []string) (map[string][]byte, error)
	Set(key string, value []byte) error
	SetMulti(values map[string][]byte) error
	Delete(key string) error
	Close() error
}
