package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nftpawn/storage"
)

var (
	// ErrExists is returned by KVCreate when a record already occupies the key.
	ErrExists = errors.New("state: record already exists")
	// ErrNotFound is returned by KVUpdate when no record occupies the key.
	ErrNotFound = errors.New("state: record not found")

	errNilDatabase = errors.New("state: database not configured")
	errReadOnly    = errors.New("state: write in read-only transaction")
)

// Manager provides transactional access to fixed-shape records stored in the
// backing database. Keys are hashed with keccak256 and values are RLP encoded.
//
// Update calls are serialised; every write performed inside an Update becomes
// visible atomically when the callback returns nil and is discarded otherwise.
type Manager struct {
	db storage.Database
	mu sync.Mutex
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Update runs fn inside a read-write transaction.
func (m *Manager) Update(fn func(tx *Tx) error) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := newTx(m.db, false)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// View runs fn against committed state. Writes are rejected.
func (m *Manager) View(fn func(tx *Tx) error) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	return fn(newTx(m.db, true))
}

// Tx buffers writes on top of the committed database until commit.
type Tx struct {
	db       storage.Database
	readOnly bool
	writes   map[string][]byte
	deletes  map[string]struct{}
}

func newTx(db storage.Database, readOnly bool) *Tx {
	return &Tx{
		db:       db,
		readOnly: readOnly,
		writes:   make(map[string][]byte),
		deletes:  make(map[string]struct{}),
	}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (tx *Tx) load(hashed []byte) ([]byte, error) {
	k := string(hashed)
	if _, ok := tx.deletes[k]; ok {
		return nil, nil
	}
	if value, ok := tx.writes[k]; ok {
		return value, nil
	}
	value, err := tx.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (tx *Tx) store(hashed []byte, value interface{}) error {
	if tx.readOnly {
		return errReadOnly
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	k := string(hashed)
	delete(tx.deletes, k)
	tx.writes[k] = encoded
	return nil
}

// KVGet retrieves the value stored under key and decodes it into out. The
// boolean reports whether the key existed.
func (tx *Tx) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := tx.load(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVHas reports whether a value exists under key.
func (tx *Tx) KVHas(key []byte) (bool, error) {
	return tx.KVGet(key, nil)
}

// KVPut stores value under key, creating or replacing the record.
func (tx *Tx) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return tx.store(kvKey(key), value)
}

// KVCreate stores value under key only when the key is unoccupied.
func (tx *Tx) KVCreate(key []byte, value interface{}) error {
	exists, err := tx.KVHas(key)
	if err != nil {
		return err
	}
	if exists {
		return ErrExists
	}
	return tx.KVPut(key, value)
}

// KVUpdate replaces the value under key only when a record already exists.
func (tx *Tx) KVUpdate(key []byte, value interface{}) error {
	exists, err := tx.KVHas(key)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return tx.KVPut(key, value)
}

// KVDelete removes the record stored under key. Deleting a missing key is a
// no-op.
func (tx *Tx) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if tx.readOnly {
		return errReadOnly
	}
	k := string(kvKey(key))
	delete(tx.writes, k)
	tx.deletes[k] = struct{}{}
	return nil
}

func (tx *Tx) commit() error {
	if len(tx.writes) == 0 && len(tx.deletes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tx.writes))
	for k := range tx.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := storage.NewBatch()
	for _, k := range keys {
		batch.Put([]byte(k), tx.writes[k])
	}
	deleted := make([]string, 0, len(tx.deletes))
	for k := range tx.deletes {
		deleted = append(deleted, k)
	}
	sort.Strings(deleted)
	for _, k := range deleted {
		batch.Delete([]byte(k))
	}
	return tx.db.Write(batch)
}
