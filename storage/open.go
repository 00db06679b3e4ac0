package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Supported backend names.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

// Open returns the database for the named backend rooted at dataDir.
func Open(backend, dataDir string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory:
		return NewMemDB(), nil
	case "", BackendLevelDB:
		return NewLevelDB(filepath.Join(dataDir, "state"))
	case BackendBolt:
		return NewBoltDB(filepath.Join(dataDir, "state.bolt"))
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
