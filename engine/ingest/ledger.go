package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const ledgerPrefix = "speech:"

// Ledger is a badger-backed record of ingested files, keyed by source
// file name. A file is a duplicate only when its content hash is unchanged.
type Ledger struct {
	db *badger.DB
}

var _ Dedup = (*Ledger)(nil)

type ledgerEntry struct {
	Hash     string    `json:"hash"`
	SpeechID string    `json:"speech_id"`
	At       time.Time `json:"at"`
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct{ logger *slog.Logger }

var _ badger.Logger = badgerLogger{}

func (l badgerLogger) Errorf(msg string, items ...any)   { l.logger.Error(fmt.Sprintf(msg, items...)) }
func (l badgerLogger) Warningf(msg string, items ...any) { l.logger.Warn(fmt.Sprintf(msg, items...)) }
func (l badgerLogger) Infof(msg string, items ...any)    { l.logger.Debug(fmt.Sprintf(msg, items...)) }
func (l badgerLogger) Debugf(msg string, items ...any)   { l.logger.Debug(fmt.Sprintf(msg, items...)) }

// OpenLedger opens the ledger directory at path, creating it if needed.
// An empty path opens an in-memory ledger.
func OpenLedger(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("ingest: ledger dir: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = badgerLogger{logger: logger.With("component", "badger")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ingest: open ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the ledger.
func (l *Ledger) Close() error { return l.db.Close() }

// Seen reports whether filename was stored with the same content hash.
func (l *Ledger) Seen(_ context.Context, filename, hash string) (bool, error) {
	e, ok, err := l.lookup(filename)
	if err != nil || !ok {
		return false, err
	}
	return e.Hash == hash, nil
}

// Mark records filename as stored under id.
func (l *Ledger) Mark(_ context.Context, filename, hash, id string) error {
	data, err := json.Marshal(ledgerEntry{Hash: hash, SpeechID: id, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(ledgerPrefix+filename), data)
	})
}

// SpeechID returns the speech stored for filename.
func (l *Ledger) SpeechID(filename string) (string, bool, error) {
	e, ok, err := l.lookup(filename)
	return e.SpeechID, ok, err
}

// Forget removes filename so the next import stores it again.
func (l *Ledger) Forget(filename string) error {
	return l.db.Update(func(tx *badger.Txn) error {
		return tx.Delete([]byte(ledgerPrefix + filename))
	})
}

// Len counts recorded files.
func (l *Ledger) Len() (int, error) {
	n := 0
	err := l.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(ledgerPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (l *Ledger) lookup(filename string) (ledgerEntry, bool, error) {
	var e ledgerEntry
	err := l.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(ledgerPrefix + filename))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ledgerEntry{}, false, nil
	}
	if err != nil {
		return ledgerEntry{}, false, fmt.Errorf("ingest: ledger lookup %s: %w", filename, err)
	}
	return e, true, nil
}
