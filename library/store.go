package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Kind names one of the persisted record collections. The kind is also the
// key the collection is stored under.
type Kind string

const (
	KindUsers      Kind = "users"
	KindBooks      Kind = "books"
	KindCategories Kind = "categories"
)

const (
	sessionKey  = "currentUser"
	settingsKey = "librarySettings"
)

// Record is any type stored as a whole collection.
type Record interface {
	User | Book | Category
}

// Store is the record store: three JSON collections in a KV, read and
// written whole. Reads fail closed: a missing or malformed collection reads
// as empty.
type Store struct {
	kv  KV
	log *zap.Logger
}

// NewStore wraps kv. A nil logger disables logging.
func NewStore(kv KV, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, log: log}
}

// ListUsers returns every stored user.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	users, _, err := load[[]User](ctx, s, string(KindUsers))
	return users, err
}

// ListBooks returns every stored book.
func (s *Store) ListBooks(ctx context.Context) ([]Book, error) {
	books, _, err := load[[]Book](ctx, s, string(KindBooks))
	return books, err
}

// ListCategories returns every stored category.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	cats, _, err := load[[]Category](ctx, s, string(KindCategories))
	return cats, err
}

// ReplaceAll overwrites the whole collection of T with records,
// unconditionally.
func ReplaceAll[T Record](ctx context.Context, s *Store, records []T) error {
	kind := kindOf[T]()
	if records == nil {
		records = []T{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if err := s.kv.Apply(ctx, Write{Key: string(kind), Value: data, IfVersion: AnyVersion}); err != nil {
		return fmt.Errorf("replace %s: %w", kind, err)
	}
	s.log.Debug("collection replaced", zap.String("kind", string(kind)), zap.Int("records", len(records)))
	return nil
}

func kindOf[T Record]() Kind {
	var zero T
	switch any(zero).(type) {
	case User:
		return KindUsers
	case Book:
		return KindBooks
	default:
		return KindCategories
	}
}

// load decodes the value at key and returns it with the stored version.
// A malformed value is logged and reads as the zero value; its version is
// still returned so the next conditional write can replace it.
func load[T any](ctx context.Context, s *Store, key string) (T, int64, error) {
	var v T
	e, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return v, 0, err
	}
	if !ok {
		return v, 0, nil
	}
	if err := json.Unmarshal(e.Value, &v); err != nil {
		s.log.Warn("malformed record, reading as empty", zap.String("key", key), zap.Error(err))
		var zero T
		return zero, e.Version, nil
	}
	return v, e.Version, nil
}

// Snapshot is an in-memory copy of the collections an Update works on.
type Snapshot struct {
	Users      []User
	Books      []Book
	Categories []Category

	versions map[Kind]int64
}

// Update reads the named collections, lets fn transform them, then writes
// all of them back in one conditional KV.Apply. If fn fails nothing is
// written. If another writer changed one of the collections since it was
// read, Update fails with a CONFLICT error and nothing is written.
func (s *Store) Update(ctx context.Context, op string, fn func(*Snapshot) error, kinds ...Kind) error {
	snap := &Snapshot{versions: make(map[Kind]int64, len(kinds))}
	for _, k := range kinds {
		var (
			v   int64
			err error
		)
		switch k {
		case KindUsers:
			snap.Users, v, err = load[[]User](ctx, s, string(k))
		case KindBooks:
			snap.Books, v, err = load[[]Book](ctx, s, string(k))
		case KindCategories:
			snap.Categories, v, err = load[[]Category](ctx, s, string(k))
		default:
			return fmt.Errorf("%s: unknown collection %q", op, k)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		snap.versions[k] = v
	}

	if err := fn(snap); err != nil {
		return err
	}

	writes := make([]Write, 0, len(kinds))
	for _, k := range kinds {
		var records any
		switch k {
		case KindUsers:
			records = nonNil(snap.Users)
		case KindBooks:
			records = nonNil(snap.Books)
		case KindCategories:
			records = nonNil(snap.Categories)
		}
		data, err := json.Marshal(records)
		if err != nil {
			return fmt.Errorf("%s: encode %s: %w", op, k, err)
		}
		writes = append(writes, Write{Key: string(k), Value: data, IfVersion: snap.versions[k]})
	}

	if err := s.kv.Apply(ctx, writes...); err != nil {
		if errors.Is(err, ErrVersionMismatch) {
			return conflictError(op, "concurrent modification, retry")
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Debug("collections updated", zap.String("op", op), zap.Int("collections", len(kinds)))
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// seedUsers writes users only if the users key has never been written.
// It returns false when another writer got there first.
func (s *Store) seedUsers(ctx context.Context, users []User) (bool, error) {
	data, err := json.Marshal(nonNil(users))
	if err != nil {
		return false, err
	}
	err = s.kv.Apply(ctx, Write{Key: string(KindUsers), Value: data, IfVersion: 0})
	if errors.Is(err, ErrVersionMismatch) {
		return false, nil
	}
	return err == nil, err
}

// loadSession returns the stored session identity, or nil.
func (s *Store) loadSession(ctx context.Context) (*Identity, error) {
	id, _, err := load[*Identity](ctx, s, sessionKey)
	if err != nil {
		return nil, err
	}
	if id != nil && id.ID == "" {
		return nil, nil
	}
	return id, nil
}

// saveSession stores id, or the explicit "no session" marker when id is nil.
func (s *Store) saveSession(ctx context.Context, id *Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return s.kv.Apply(ctx, Write{Key: sessionKey, Value: data, IfVersion: AnyVersion})
}

func (s *Store) loadSettings(ctx context.Context) (Settings, error) {
	stored, _, err := load[*Settings](ctx, s, settingsKey)
	if err != nil {
		return DefaultSettings(), err
	}
	if stored == nil {
		return DefaultSettings(), nil
	}
	return *stored, nil
}

func (s *Store) saveSettings(ctx context.Context, settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.kv.Apply(ctx, Write{Key: settingsKey, Value: data, IfVersion: AnyVersion})
}
