// Package progress persists onboarding progress per user in an embedded
// badger key/value store.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/Aygren/balendip-sub000/internal/domain/onboarding"
	"github.com/Aygren/balendip-sub000/pkg/logger"
)

const (
	keyPrefix         = "onboarding:progress:"
	inMemoryTableSize = 8 << 20
)

// Store implements onboarding.ProgressStore.
type Store struct {
	db     *badger.DB
	logger logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger routes badger's internal logs and store warnings to l.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

type badgerLogger struct {
	logger logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(context.Background(), strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(context.Background(), strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(context.Background(), strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(context.Background(), strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Open opens the store at path. An empty path keeps everything in memory.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	var bopts badger.Options
	if path == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithMemTableSize(inMemoryTableSize)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create progress directory %s: %w", path, err)
		}
		bopts = badger.DefaultOptions(path).WithSyncWrites(true)
	}
	bopts = bopts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: s.logger.Named("badger")})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open progress store: %w", err)
	}
	s.db = db
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(userID string) []byte {
	return []byte(keyPrefix + userID)
}

// Load returns the stored progress for userID, or found=false.
func (s *Store) Load(ctx context.Context, userID string) (onboarding.Progress, bool, error) {
	var p onboarding.Progress
	if strings.TrimSpace(userID) == "" {
		return p, false, ErrEmptyUser
	}
	if err := ctx.Err(); err != nil {
		return p, false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &p); err != nil {
				return fmt.Errorf("%w: %w", ErrCorrupt, err)
			}
			return nil
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return onboarding.Progress{}, false, nil
	case errors.Is(err, ErrCorrupt):
		// A record we cannot read is treated as a first visit.
		s.logger.Warn(ctx, "discarding unreadable onboarding progress",
			logger.String("user_id", userID), logger.Error(err))
		return onboarding.Progress{}, false, nil
	case err != nil:
		return onboarding.Progress{}, false, fmt.Errorf("load progress: %w", err)
	}
	return p, true, nil
}

// Save stores p for userID, replacing any previous record.
func (s *Store) Save(ctx context.Context, userID string, p onboarding.Progress) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUser
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(userID), data)
	}); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// Delete removes the record for userID. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUser
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(userID))
	}); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

// Users lists the ids that have stored progress.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	var users []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(keyPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			users = append(users, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return users, nil
}
