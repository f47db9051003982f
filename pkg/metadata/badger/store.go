package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/sdu-escience/gridgate/internal/logger"
	"github.com/sdu-escience/gridgate/pkg/metadata"
)

// BadgerMetadataStore implements metadata.Store using BadgerDB for persistence.
//
// This implementation provides a persistent catalog backed by BadgerDB, a
// fast embedded key-value store. It is suitable for single-node deployments
// where the catalog must survive restarts.
//
// Thread Safety:
// All operations are protected by a single read-write mutex (mu). Multi-key
// mutations (object plus child index, group plus members) run inside one
// BadgerDB transaction so they are applied atomically.
//
// Storage Model:
// The store uses namespaced key prefixes (see keys.go) and XDR-encoded
// values (see serialization.go).
type BadgerMetadataStore struct {
	mu sync.RWMutex
	db *badger.DB
}

// BadgerMetadataStoreConfig contains configuration for creating a BadgerDB
// metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files.
	// Ignored when InMemory is set.
	DBPath string `mapstructure:"path"`

	// InMemory keeps the whole database in RAM (tests).
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_mb"`

	// BadgerOptions allows customization of BadgerDB behavior.
	// If nil, sensible defaults are used.
	BadgerOptions *badger.Options `mapstructure:"-"`
}

var _ metadata.Store = (*BadgerMetadataStore)(nil)

// NewBadgerMetadataStore opens (or creates) a BadgerDB catalog.
//
// Parameters:
//   - ctx: Context for cancellation
//   - config: Database location and tuning
//
// Returns:
//   - *BadgerMetadataStore: A new store instance ready for use
//   - error: Error if database initialization fails or context is cancelled
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		if config.InMemory {
			opts = badger.DefaultOptions("").WithInMemory(true)
		} else {
			if config.DBPath == "" {
				return nil, errors.New("badger metadata store: path is required")
			}
			opts = badger.DefaultOptions(config.DBPath)
		}

		// Catalog records are small, compression overhead not worth it.
		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)

		blockCacheMB := config.BlockCacheSizeMB
		if blockCacheMB == 0 {
			blockCacheMB = 64
		}
		opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	logger.Debug("Opened badger catalog: path=%q in_memory=%v", config.DBPath, config.InMemory)
	return &BadgerMetadataStore{db: db}, nil
}

// Close flushes and closes the database.
func (s *BadgerMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ============================================================================
// Transaction helpers
// ============================================================================

// get returns a copy of the value at key. ok is false when the key is absent.
func get(txn *badger.Txn, key []byte) (val []byte, ok bool, err error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ioError(err)
	}
	val, err = item.ValueCopy(nil)
	if err != nil {
		return nil, false, ioError(err)
	}
	return val, true, nil
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, ioError(err)
	}
	return true, nil
}

// scan calls fn for every key under prefix, passing the key suffix and the
// value. Values are only loaded when withValues is set.
func scan(txn *badger.Txn, prefix []byte, withValues bool, fn func(suffix string, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = withValues

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		suffix := string(item.Key()[len(prefix):])

		var val []byte
		if withValues {
			var err error
			if val, err = item.ValueCopy(nil); err != nil {
				return ioError(err)
			}
		}
		if err := fn(suffix, val); err != nil {
			return err
		}
	}
	return nil
}

func ioError(err error) error {
	return &metadata.StoreError{Code: metadata.ErrIOError, Message: "badger: " + err.Error()}
}
