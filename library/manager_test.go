package library

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// seqIDs returns predictable ids: id-1, id-2, ...
func seqIDs() func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newManager(t *testing.T, opts ...Option) (*LibraryManager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: epoch}
	opts = append([]Option{WithClock(clock), WithIDGenerator(seqIDs())}, opts...)
	mgr, err := NewLibraryManager(context.Background(), NewMemoryKV(), opts...)
	if err != nil {
		t.Fatalf("mgr: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr, clock
}

func loginAdmin(t *testing.T, mgr *LibraryManager) Identity {
	t.Helper()
	id, err := mgr.Login(context.Background(), "admin", "admin123")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	return id
}

// registerAndLogin registers a user and logs them in.
func registerAndLogin(t *testing.T, mgr *LibraryManager, name string) Identity {
	t.Helper()
	ctx := context.Background()
	if _, err := mgr.Register(ctx, name, name+"@x.com", "pw123456"); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	id, err := mgr.Login(ctx, name, "pw123456")
	if err != nil {
		t.Fatalf("login %s: %v", name, err)
	}
	return id
}

func mustCreateBook(t *testing.T, mgr *LibraryManager, title string, cats ...string) Book {
	t.Helper()
	b, err := mgr.CreateBook(context.Background(), BookInput{Title: title, Author: "Author of " + title, Categories: cats})
	if err != nil {
		t.Fatalf("create %s: %v", title, err)
	}
	return b
}

// checkInvariants fails t if any stored book breaks the lending invariant
// or any category count differs from a recount.
func checkInvariants(t *testing.T, mgr *LibraryManager) {
	t.Helper()
	ctx := context.Background()
	books, err := mgr.store.ListBooks(ctx)
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	for _, b := range books {
		if err := CheckLending(b); err != nil {
			t.Fatalf("lending invariant: %v", err)
		}
	}
	cats, err := mgr.store.ListCategories(ctx)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	for _, c := range cats {
		want := 0
		for _, b := range books {
			for _, n := range b.Categories {
				if sameName(n, c.Name) {
					want++
					break
				}
			}
		}
		if c.Count != want {
			t.Fatalf("category %q count = %d, want %d", c.Name, c.Count, want)
		}
	}
}

func TestSeedAdminOnce(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	mgr, err := NewLibraryManager(ctx, kv)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := mgr.Login(ctx, "admin", "admin123"); err != nil {
		t.Fatalf("seeded admin login: %v", err)
	}

	// A second manager over the same store must not add another admin.
	mgr2, err := NewLibraryManager(ctx, kv)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	users, _ := mgr2.store.ListUsers(ctx)
	if len(users) != 1 || users[0].Role != RoleAdmin {
		t.Fatalf("users after reopen = %+v", users)
	}
}

func TestSeedDisabled(t *testing.T) {
	mgr, _ := newManager(t, WithSeedAdmin(nil))
	users, err := mgr.store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("want no users, got %d", len(users))
	}
}

func TestSessionSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lib.db")

	open := func() *LibraryManager {
		kv, err := OpenKV(ctx, StorageSQLite, path, "")
		if err != nil {
			t.Fatalf("open kv: %v", err)
		}
		mgr, err := NewLibraryManager(ctx, kv)
		if err != nil {
			t.Fatalf("mgr: %v", err)
		}
		return mgr
	}

	mgr := open()
	if _, err := mgr.Login(ctx, "admin", "admin123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	mgr.Close()

	mgr = open()
	defer mgr.Close()
	cur, err := mgr.CurrentIdentity(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur == nil || cur.Username != "admin" {
		t.Fatalf("session after reopen = %+v", cur)
	}
}

func TestOpenKVUnknownStorage(t *testing.T) {
	if _, err := OpenKV(context.Background(), "tape", "", ""); err == nil {
		t.Fatalf("expected error for unknown storage")
	}
}

// End-to-end: a member borrows and returns a book.
func TestScenarioBorrowReturn(t *testing.T) {
	ctx := context.Background()
	mgr, clock := newManager(t)

	loginAdmin(t, mgr)
	b := mustCreateBook(t, mgr, "B")

	alice := registerAndLogin(t, mgr, "alice")
	got, err := mgr.Borrow(ctx, b.ID)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if got.Status != StatusBorrowed || got.BorrowedBy == nil || *got.BorrowedBy != alice.ID {
		t.Fatalf("after borrow = %+v", got)
	}
	if want := clock.Now().Add(7 * 24 * time.Hour); !got.DueDate.Equal(want) {
		t.Fatalf("due = %v, want %v", got.DueDate, want)
	}
	checkInvariants(t, mgr)

	got, err = mgr.Return(ctx, b.ID)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if got.Status != StatusAvailable || got.BorrowedBy != nil || got.DueDate != nil {
		t.Fatalf("after return = %+v", got)
	}
	checkInvariants(t, mgr)
}

// End-to-end: a category created by the admin is counted once a book uses it.
func TestScenarioCategoryCount(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)

	created, err := mgr.AddCategory(ctx, "Sci-Fi")
	if err != nil || !created {
		t.Fatalf("add category: created=%v err=%v", created, err)
	}
	mustCreateBook(t, mgr, "Dune", "Sci-Fi")

	cats, err := mgr.RecomputeCounts(ctx)
	if err != nil {
		t.Fatalf("recount: %v", err)
	}
	if len(cats) != 1 || cats[0].Name != "Sci-Fi" || cats[0].Count != 1 {
		t.Fatalf("categories = %+v", cats)
	}
}
