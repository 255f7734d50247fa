package correlation

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "corr\x00"

// BadgerConfig configures a persistent correlation store.
type BadgerConfig struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps all data in memory; used by tests.
	InMemory bool

	// Logger receives badger's internal logs. Nil disables them.
	Logger *slog.Logger
}

// BadgerStore persists correlation entries in a badger database so a later
// run can reuse scores computed by an earlier one.
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens (or creates) a badger-backed Store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func pairKey(p Pair) []byte {
	return []byte(keyPrefix + p.A + "\x00" + p.B)
}

// encodeEntry packs an entry as 8 bytes of IEEE 754 score + 1 availability byte.
func encodeEntry(e Entry) []byte {
	buf := make([]byte, 9)
	binary.BigEndian.PutUint64(buf, math.Float64bits(e.Score))
	if e.Available {
		buf[8] = 1
	}
	return buf
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) != 9 {
		return Entry{}, fmt.Errorf("corrupt entry: %d bytes", len(b))
	}
	return Entry{
		Score:     math.Float64frombits(binary.BigEndian.Uint64(b)),
		Available: b[8] == 1,
	}, nil
}

// Get implements Store.
func (s *BadgerStore) Get(p Pair) (Entry, bool, error) {
	var e Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pairKey(p))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var derr error
			e, derr = decodeEntry(val)
			return derr
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get %s|%s: %w", p.A, p.B, err)
	}
	return e, true, nil
}

// Put implements Store.
func (s *BadgerStore) Put(p Pair, e Entry) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pairKey(p), encodeEntry(e))
	})
	if err != nil {
		return fmt.Errorf("put %s|%s: %w", p.A, p.B, err)
	}
	return nil
}

// Len implements Store by counting keys under the correlation prefix.
func (s *BadgerStore) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
