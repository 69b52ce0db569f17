package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/rushteam/tourkit/core"
)

// Hash 字段在 Badger 中的 key 形如 "<hashPrefix><key>\x00<field>"
const (
	hashPrefix = "h:"
	kvPrefix   = "k:"
	hashSep    = "\x00"
)

// BadgerStore 是 BadgerDB 实现的 HashStore，单机落盘部署的默认选择。
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore 打开（或创建）dir 下的 Badger 数据库；dir 为空时使用纯内存模式。
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: open badger", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore 包装已打开的数据库
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Name() string { return "badger" }

func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	return s.get([]byte(kvPrefix + key))
}

func (s *BadgerStore) Set(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(kvPrefix+key), value)
	})
}

func (s *BadgerStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(kvPrefix + key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete key: %w", err)
		}
		return deletePrefix(txn, []byte(hashPrefix+key+hashSep))
	})
}

func (s *BadgerStore) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			item, err := txn.Get([]byte(kvPrefix + k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %s: %w", k, err)
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[k] = val
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BatchSet 在单个事务里写入，全部成功或全部不生效
func (s *BadgerStore) BatchSet(_ context.Context, kvs map[string][]byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for k, v := range kvs {
			if err := txn.Set([]byte(kvPrefix+k), v); err != nil {
				return fmt.Errorf("batch set %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *BadgerStore) HSet(_ context.Context, key, field string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(hashPrefix+key+hashSep+field), value)
	})
}

func (s *BadgerStore) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	prefix := []byte(hashPrefix + key + hashSep)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[string(item.Key()[len(prefix):])] = val
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return core.ErrStoreNotFound
		}
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}

func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return fmt.Errorf("delete hash field: %w", err)
		}
	}
	return nil
}

var _ core.HashStore = (*BadgerStore)(nil)
