package library

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SeedAdmin is the account created the first time a store is opened.
type SeedAdmin struct {
	Username string
	Email    string
	Password string
}

// DefaultSeedAdmin returns the built-in first admin account.
func DefaultSeedAdmin() SeedAdmin {
	return SeedAdmin{Username: "admin", Email: "admin@library.com", Password: "admin123"}
}

// LibraryManager is the façade over the record store, keeping CLI code
// simple. Every operation authorizes through the Gate and every mutation
// is one conditional store write.
type LibraryManager struct {
	kv      KV
	store   *Store
	session *Session
	gate    *Gate

	clock      Clock
	hasher     PasswordHasher
	log        *zap.Logger
	loanPeriod time.Duration
	dueSoon    time.Duration
	seedAdmin  *SeedAdmin
	newID      func() string
}

// Option configures a LibraryManager.
type Option func(*LibraryManager)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(lm *LibraryManager) { lm.clock = c } }

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(lm *LibraryManager) {
		if l != nil {
			lm.log = l
		}
	}
}

// WithLoanPeriod sets how long a loan lasts. Non-positive values are ignored.
func WithLoanPeriod(d time.Duration) Option {
	return func(lm *LibraryManager) {
		if d > 0 {
			lm.loanPeriod = d
		}
	}
}

// WithDueSoonWindow sets how close to its due date a loan is due soon. A
// zero window turns the due-soon state off.
func WithDueSoonWindow(d time.Duration) Option {
	return func(lm *LibraryManager) {
		if d >= 0 {
			lm.dueSoon = d
		}
	}
}

// WithHasher sets the password digest scheme.
func WithHasher(h PasswordHasher) Option { return func(lm *LibraryManager) { lm.hasher = h } }

// WithSeedAdmin sets the first admin account. nil disables seeding.
func WithSeedAdmin(a *SeedAdmin) Option { return func(lm *LibraryManager) { lm.seedAdmin = a } }

// WithIDGenerator replaces the random UUID record ids.
func WithIDGenerator(f func() string) Option { return func(lm *LibraryManager) { lm.newID = f } }

// NewLibraryManager builds a manager over kv and seeds the first admin if
// the store has never held users. On success the manager owns kv.
func NewLibraryManager(ctx context.Context, kv KV, opts ...Option) (*LibraryManager, error) {
	seed := DefaultSeedAdmin()
	lm := &LibraryManager{
		kv:         kv,
		clock:      SystemClock{},
		hasher:     RollingHasher{},
		log:        zap.NewNop(),
		loanPeriod: DefaultLoanPeriod,
		dueSoon:    DefaultDueSoonWindow,
		seedAdmin:  &seed,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(lm)
	}
	lm.store = NewStore(kv, lm.log.Named("store"))
	lm.session = NewSession(lm.store)
	lm.gate = NewGate(lm.session, lm.store)

	if err := lm.seed(ctx); err != nil {
		return nil, err
	}
	return lm, nil
}

func (lm *LibraryManager) seed(ctx context.Context) error {
	if lm.seedAdmin == nil {
		return nil
	}
	digest, err := lm.hasher.Hash(lm.seedAdmin.Password)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	admin := User{
		ID:        lm.newID(),
		Username:  cleanName(lm.seedAdmin.Username),
		Email:     cleanName(lm.seedAdmin.Email),
		Password:  digest,
		Role:      RoleAdmin,
		CreatedAt: lm.clock.Now(),
	}
	seeded, err := lm.store.seedUsers(ctx, []User{admin})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if seeded {
		lm.log.Info("seeded admin account", zap.String("username", admin.Username))
	}
	return nil
}

// Close closes the underlying backend.
func (lm *LibraryManager) Close() error { return lm.kv.Close() }

// DueSoonWindow is the window LoanState uses for this manager.
func (lm *LibraryManager) DueSoonWindow() time.Duration { return lm.dueSoon }

// Now is the manager's clock reading.
func (lm *LibraryManager) Now() time.Time { return lm.clock.Now() }

// Storage backends accepted by OpenKV.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// OpenKV opens the backend named by storage. dbPath is used by sqlite and
// postgresDSN by postgres.
func OpenKV(ctx context.Context, storage, dbPath, postgresDSN string) (KV, error) {
	switch storage {
	case "", StorageSQLite:
		return NewDatabase(dbPath)
	case StoragePostgres:
		return NewPostgresKV(ctx, postgresDSN)
	case StorageMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", storage)
	}
}
