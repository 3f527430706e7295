package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const sep = "\x00"

// Key layout:
//
//	obl <id>                          obligation
//	obl-space <space> <id>            obligation index by space
//	cmp <obligation> <nanos> <id>     completion
//	pur <space> <normalized title>    purchase record
//	tkt <id>                          notification ticket
func key(parts ...string) []byte {
	return []byte(strings.Join(parts, sep))
}

func prefix(parts ...string) []byte {
	return []byte(strings.Join(parts, sep) + sep)
}

func nanos(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

func getJSON(txn *badger.Txn, k []byte, v any) (bool, error) {
	item, err := txn.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	}); err != nil {
		return false, err
	}
	return true, nil
}

func setJSON(txn *badger.Txn, k []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return txn.Set(k, data)
}

// scan calls fn for every key under p in key order.
func scan(txn *badger.Txn, p []byte, values bool, fn func(k []byte, item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = values
	opts.Prefix = p
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		item := it.Item()
		if err := fn(item.KeyCopy(nil), item); err != nil {
			return err
		}
	}
	return nil
}

func decode[T any](item *badger.Item) (T, error) {
	var v T
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	})
	return v, err
}

// lastPart returns the final separator-delimited segment of k.
func lastPart(k []byte) string {
	s := string(k)
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}
