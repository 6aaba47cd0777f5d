package state

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb" // registers the "bdb" driver

	"github.com/darkpool-labs/relayer/rerrors"
)

// store wraps a walletdb.DB opened over the seven named tables the
// applicator reads and writes. Every table is a top-level bucket; nothing
// below this layer nests buckets further, since none of the tables need
// more than a flat key space.
type store struct {
	db walletdb.DB
}

// openStore opens (creating if necessary) the bbolt-backed walletdb
// database under dataDir and ensures all seven top-level buckets exist.
func openStore(dataDir string) (*store, error) {
	path := filepath.Join(dataDir, dbFileName)
	db, err := walletdb.Create("bdb", path, true, proposalTimeout)
	if err != nil {
		return nil, rerrors.State(fmt.Errorf("opening state database: %w", err))
	}

	s := &store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *store) init() error {
	buckets := [][]byte{
		walletsBucket, ordersBucket, prioritiesBucket, peersBucket,
		clusterBucket, taskQueuesBucket, taskHistoryBucket,
	}
	return s.update(func(tx walletdb.ReadWriteTx) error {
		for _, b := range buckets {
			if _, err := tx.CreateTopLevelBucket(b); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *store) close() error {
	return s.db.Close()
}

// update runs f inside a single read-write transaction, committing on
// success and rolling back on error or panic.
func (s *store) update(f func(tx walletdb.ReadWriteTx) error) error {
	if err := s.db.Update(f, func() {}); err != nil {
		return rerrors.State(fmt.Errorf("state store write transaction: %w", err))
	}
	return nil
}

// view runs f inside a single read-only transaction.
func (s *store) view(f func(tx walletdb.ReadTx) error) error {
	if err := s.db.View(f, func() {}); err != nil {
		return rerrors.State(fmt.Errorf("state store read transaction: %w", err))
	}
	return nil
}

// putJSON marshals v and stores it under key in bucket.
func putJSON(bucket walletdb.ReadWriteBucket, key []byte, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return rerrors.Serialization(fmt.Errorf("marshaling state value: %w", err))
	}
	return bucket.Put(key, b)
}

// getJSON loads the value under key in bucket into v. Returns false if the
// key is absent.
func getJSON(bucket walletdb.ReadBucket, key []byte, v interface{}) (bool, error) {
	b := bucket.Get(key)
	if b == nil {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, rerrors.Serialization(fmt.Errorf("unmarshaling state value: %w", err))
	}
	return true, nil
}
