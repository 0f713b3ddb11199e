package cache

import (
	"context"
	"errors"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-service/internal/observability"
)

// levelDB is the subset of *leveldb.DB the store uses.
type levelDB interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	Put(key, value []byte, wo *opt.WriteOptions) error
	Delete(key []byte, wo *opt.WriteOptions) error
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
	Close() error
}

// LevelDBStore implements Store on an on-disk LevelDB database. LevelDB has no
// native expiry, so each value carries its deadline and expired entries are
// dropped on read.
type LevelDBStore struct {
	db     levelDB
	logger *zap.Logger
}

// NewLevelDBStore opens (or creates) the database at path.
func NewLevelDBStore(path string, logger *zap.Logger) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LevelDBStore{db: db, logger: logger}, nil
}

// Get implements Store.Get.
func (s *LevelDBStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item, ok, err := s.GetWithMetadata(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return item.Value, true, nil
}

// GetWithMetadata implements Store.GetWithMetadata.
func (s *LevelDBStore) GetWithMetadata(ctx context.Context, key string) (Item, bool, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, false, err
	}
	raw, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return Item{}, false, nil
		}
		return Item{}, false, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return Item{}, false, err
	}
	if rec.expired(time.Now()) {
		s.evict(key)
		return Item{}, false, nil
	}
	return Item{Key: key, Value: rec.Value, Metadata: rec.Metadata}, true, nil
}

// evict removes an expired entry. A failed delete leaves the entry for the next
// read to retry; the read itself is still a miss.
func (s *LevelDBStore) evict(key string) {
	if err := s.db.Delete([]byte(key), nil); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("evict", "unknown").Inc()
		s.logger.Warn("leveldb evict failed", zap.String("key", key), zap.Error(err))
	}
}

// Put implements Store.Put.
func (s *LevelDBStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeRecord(newRecord(value, ttl, time.Now()))
	if err != nil {
		return err
	}
	return s.db.Put([]byte(key), raw, nil)
}

// List implements Store.List. LevelDB iterates in key order.
func (s *LevelDBStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	it := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer it.Release()

	now := time.Now()
	var keys []string
	for it.Next() {
		rec, err := decodeRecord(it.Value())
		if err != nil || rec.expired(now) {
			continue
		}
		keys = append(keys, string(it.Key()))
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Close closes the database.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

var _ Store = (*LevelDBStore)(nil)
