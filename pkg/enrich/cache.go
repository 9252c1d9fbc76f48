package enrich

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"
)

// DiskCache persists address enrichment results across restarts. It is
// a plain badger key/value store: key is the address string, value is
// the JSON-encoded Info.
type DiskCache struct {
	db *badger.DB
}

func OpenDiskCache(path string) (*DiskCache, error) {
	opts := badger.DefaultOptions(path)
	// Decrease logging verbosity
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &DiskCache{db: db}, nil
}

func (c *DiskCache) Close() error {
	return c.db.Close()
}

// Get returns the cached Info for addr. The second return is false
// when the address has never been cached; a cached negative result
// returns true with a zero Info.
func (c *DiskCache) Get(addr string) (Info, bool, error) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(addr))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return Info{}, false, nil
	}
	if err != nil {
		return Info{}, false, err
	}
	var info Info
	if err := json.Unmarshal(val, &info); err != nil {
		return Info{}, false, err
	}
	return info, true, nil
}

func (c *DiskCache) Put(addr string, info Info) error {
	val, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(addr), val)
	})
}

// BatchPut writes many results in one write batch, for callers that
// resolve a backlog of addresses at once.
func (c *DiskCache) BatchPut(entries map[string]Info) error {
	wb := c.db.NewWriteBatch()
	defer wb.Cancel()

	for addr, info := range entries {
		val, err := json.Marshal(info)
		if err != nil {
			return err
		}
		if err := wb.Set([]byte(addr), val); err != nil {
			return err
		}
	}
	return wb.Flush()
}
