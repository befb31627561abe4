package storage

import (
	"encoding/json"
	"fmt"

	"github.com/aldera-network/aldera/core"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB wraps a LevelDB database with the Get, Set, Delete, NewIterator
// and Close methods of DB. It has no NewBatch method, so it does not
// satisfy the DB interface.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB database at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	val, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, core.ErrNotFound
	}
	return val, err
}

func (l *LevelDB) Set(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDB) NewIterator(prefix []byte) Iterator {
	return l.db.NewIterator(util.BytesPrefix(prefix), nil)
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

// ---- core.Store implementation ----
//
// Three key shapes only, per the persistence contract: "block:<hash>" for
// block bodies, the fixed key "tip" for the current tip hash, and the fixed
// key "state" for the serialized validator set.

// LevelStore implements core.Store on top of LevelDB.
type LevelStore struct {
	db *LevelDB
}

// NewLevelStore wraps a LevelDB instance as a core.Store.
func NewLevelStore(db *LevelDB) *LevelStore {
	return &LevelStore{db: db}
}

func (s *LevelStore) PutBlock(block *core.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return err
	}
	return s.db.Set([]byte("block:"+block.Hash), data)
}

func (s *LevelStore) GetBlock(hash string) (*core.Block, error) {
	data, err := s.db.Get([]byte("block:" + hash))
	if err != nil {
		return nil, err
	}
	var b core.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *LevelStore) GetTip() (string, error) {
	val, err := s.db.Get([]byte("tip"))
	if err == core.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func (s *LevelStore) SetTip(hash string) error {
	return s.db.Set([]byte("tip"), []byte(hash))
}

func (s *LevelStore) GetValidatorState() ([]byte, error) {
	val, err := s.db.Get([]byte("state"))
	if err == core.ErrNotFound {
		return nil, nil
	}
	return val, err
}

func (s *LevelStore) PutValidatorState(data []byte) error {
	return s.db.Set([]byte("state"), data)
}
