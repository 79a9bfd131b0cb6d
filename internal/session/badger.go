package session

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

	"github.com/dshills/medcontext-mcp/pkg/types"
)

const keyPrefix = "session:"

// BadgerStore is a Store that survives restarts
type BadgerStore struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// badgerLogger routes badger's printf-style logging into slog
type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, args ...any) {
	l.logger.Error(fmt.Sprintf(msg, args...))
}

func (l *badgerLogger) Warningf(msg string, args ...any) {
	l.logger.Warn(fmt.Sprintf(msg, args...))
}

// Badger is chatty at info level
func (l *badgerLogger) Infof(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...))
}

func (l *badgerLogger) Debugf(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...))
}

// OpenBadgerStore opens a store in dir, creating it if needed. An empty dir
// opens an in-memory database. ttl <= 0 keeps sessions forever.
func OpenBadgerStore(dir string, ttl time.Duration) (*BadgerStore, error) {
	logger := slog.Default().With("component", "session")

	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	return &BadgerStore{db: db, ttl: ttl, logger: logger}, nil
}

func (s *BadgerStore) Get(ctx context.Context, id string) (types.ConversationContext, error) {
	var cc types.ConversationContext
	if err := ctx.Err(); err != nil {
		return cc, err
	}
	if s.db.IsClosed() {
		return cc, ErrStoreClosed
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.ConversationContext{}, nil
	}
	if err != nil {
		return types.ConversationContext{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return cc, nil
}

func (s *BadgerStore) Put(ctx context.Context, id string, cc types.ConversationContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return ErrStoreClosed
	}

	val, err := json.Marshal(cc)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key(id), val)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		s.logger.Error("failed to store session", "session", id, "err", err)
		return fmt.Errorf("put session %s: %w", id, err)
	}
	return nil
}

func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return ErrStoreClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(id))
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

func key(id string) []byte {
	return []byte(keyPrefix + normalizeID(id))
}
