// Package topicmeta persists a small metadata record per topic name
// alongside the topic's event log, so transports can list known topics
// and report their creation time without replaying the log.
package topicmeta

import (
	"encoding/json"
	"time"

	pebblestore "github.com/rzbill/topicd/internal/storage/pebble"
)

// Meta holds a topic's registry-level metadata.
type Meta struct {
	Name        string `json:"name"`
	CreatedAtMs int64  `json:"createdAtMs"`
}

var metaPrefix = []byte("topicmeta/")

func metaKey(name string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(name))
	k = append(k, metaPrefix...)
	k = append(k, name...)
	return k
}

// EnsureMeta creates a metadata record for name if absent, returning the
// effective (possibly pre-existing) record. Idempotent.
func EnsureMeta(db *pebblestore.DB, name string) (Meta, error) {
	key := metaKey(name)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
	}
	m := Meta{Name: name, CreatedAtMs: time.Now().UnixMilli()}
	b, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(key, b); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// ListNames returns every topic name with a persisted metadata record,
// via a prefix scan over the topicmeta/ key range.
func ListNames(db *pebblestore.DB) ([]string, error) {
	it, err := db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var names []string
	for it.SeekGE(metaPrefix); it.Valid(); it.Next() {
		k := it.Key()
		if len(k) < len(metaPrefix) || string(k[:len(metaPrefix)]) != string(metaPrefix) {
			break
		}
		names = append(names, string(k[len(metaPrefix):]))
	}
	return names, nil
}
