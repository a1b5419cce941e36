package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBorrowRequiresLogin(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)
	b := mustCreateBook(t, mgr, "B")
	require.NoError(t, mgr.Logout(ctx))

	_, err := mgr.Borrow(ctx, b.ID)
	assert.True(t, IsAuth(err), "got %v", err)
	_, err = mgr.Return(ctx, b.ID)
	assert.True(t, IsAuth(err), "got %v", err)
}

func TestBorrowMissingBook(t *testing.T) {
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)

	_, err := mgr.Borrow(context.Background(), "no-such-book")
	assert.True(t, IsNotFound(err), "got %v", err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBorrowTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)
	b := mustCreateBook(t, mgr, "B")

	registerAndLogin(t, mgr, "alice")
	first, err := mgr.Borrow(ctx, b.ID)
	require.NoError(t, err)

	registerAndLogin(t, mgr, "bob")
	_, err = mgr.Borrow(ctx, b.ID)
	require.True(t, IsConflict(err), "got %v", err)
	assert.Contains(t, err.Error(), "not available for borrowing")

	after, err := mgr.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first, after)
}

func TestReturnByOtherUserConflicts(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)
	b := mustCreateBook(t, mgr, "B")

	registerAndLogin(t, mgr, "alice")
	borrowed, err := mgr.Borrow(ctx, b.ID)
	require.NoError(t, err)

	// Admins have no override either.
	loginAdmin(t, mgr)
	_, err = mgr.Return(ctx, b.ID)
	require.True(t, IsConflict(err), "got %v", err)
	assert.Contains(t, err.Error(), "cannot return this book")

	registerAndLogin(t, mgr, "bob")
	_, err = mgr.Return(ctx, b.ID)
	assert.True(t, IsConflict(err), "got %v", err)

	after, _ := mgr.GetBook(ctx, b.ID)
	assert.Equal(t, borrowed, after)
	checkInvariants(t, mgr)
}

func TestReturnAvailableBookConflicts(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)
	b := mustCreateBook(t, mgr, "B")

	_, err := mgr.Return(ctx, b.ID)
	assert.True(t, IsConflict(err), "got %v", err)
}

func TestBorrowReservedConflicts(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)
	b := mustCreateBook(t, mgr, "B")

	err := mgr.store.Update(ctx, "test", func(s *Snapshot) error {
		s.Books[0].Status = StatusReserved
		return nil
	}, KindBooks)
	require.NoError(t, err)

	_, err = mgr.Borrow(ctx, b.ID)
	assert.True(t, IsConflict(err), "got %v", err)
}

func TestLoanPeriodOption(t *testing.T) {
	ctx := context.Background()
	mgr, clock := newManager(t, WithLoanPeriod(14*24*time.Hour))
	assert.Equal(t, 14, mgr.LoanDays())

	loginAdmin(t, mgr)
	b := mustCreateBook(t, mgr, "B")
	got, err := mgr.Borrow(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(14*24*time.Hour), *got.DueDate)
}

func TestZeroDueSoonWindow(t *testing.T) {
	ctx := context.Background()
	mgr, clock := newManager(t, WithDueSoonWindow(0))
	assert.Zero(t, mgr.DueSoonWindow())

	loginAdmin(t, mgr)
	b := mustCreateBook(t, mgr, "B")
	_, err := mgr.Borrow(ctx, b.ID)
	require.NoError(t, err)
	clock.Advance(6 * 24 * time.Hour)

	loans, err := mgr.BorrowedBooks(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, LoanOnTime, loans[0].State)

	negative, _ := newManager(t, WithDueSoonWindow(-time.Hour))
	assert.Equal(t, DefaultDueSoonWindow, negative.DueSoonWindow())
}

func TestLoanState(t *testing.T) {
	now := epoch
	due := func(d time.Duration) Book {
		by := "u"
		at := now.Add(d)
		return Book{Status: StatusBorrowed, BorrowedBy: &by, DueDate: &at}
	}
	window := DefaultDueSoonWindow

	tests := []struct {
		name string
		book Book
		want LoanState
	}{
		{"available", Book{Status: StatusAvailable}, LoanNone},
		{"far off", due(5 * 24 * time.Hour), LoanOnTime},
		{"edge of window", due(window), LoanDueSoon},
		{"inside window", due(time.Hour), LoanDueSoon},
		{"due right now", due(0), LoanOnTime},
		{"past due", due(-time.Second), LoanOverdue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.book.LoanState(now, window))
		})
	}
}

func TestBorrowedAndOverdueBooks(t *testing.T) {
	ctx := context.Background()
	mgr, clock := newManager(t)
	loginAdmin(t, mgr)
	first := mustCreateBook(t, mgr, "First")
	second := mustCreateBook(t, mgr, "Second")
	mustCreateBook(t, mgr, "Third")

	registerAndLogin(t, mgr, "alice")
	_, err := mgr.Borrow(ctx, first.ID)
	require.NoError(t, err)
	clock.Advance(5 * 24 * time.Hour)
	_, err = mgr.Borrow(ctx, second.ID)
	require.NoError(t, err)

	loans, err := mgr.BorrowedBooks(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, first.ID, loans[0].Book.ID)
	assert.Equal(t, LoanDueSoon, loans[0].State)
	assert.Equal(t, LoanOnTime, loans[1].State)

	clock.Advance(3 * 24 * time.Hour)
	overdue, err := mgr.OverdueBooks(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, first.ID, overdue[0].Book.ID)

	// Other users see only their own loans.
	registerAndLogin(t, mgr, "bob")
	loans, err = mgr.BorrowedBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func TestCheckLending(t *testing.T) {
	by := "u"
	at := epoch
	assert.NoError(t, CheckLending(Book{Status: StatusAvailable}))
	assert.NoError(t, CheckLending(Book{Status: StatusBorrowed, BorrowedBy: &by, DueDate: &at}))
	assert.Error(t, CheckLending(Book{Status: StatusBorrowed, BorrowedBy: &by}))
	assert.Error(t, CheckLending(Book{Status: StatusAvailable, DueDate: &at}))
	assert.Error(t, CheckLending(Book{Status: StatusReserved, BorrowedBy: &by, DueDate: &at}))
}
