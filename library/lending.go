package library

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultLoanPeriod is how long a borrowed book may be kept.
	DefaultLoanPeriod = 7 * 24 * time.Hour

	// DefaultDueSoonWindow is how close to its due date a loan counts as
	// due soon.
	DefaultDueSoonWindow = 3 * 24 * time.Hour
)

// LoanState classifies a book's loan relative to a point in time. It is
// derived on demand and never stored.
type LoanState string

const (
	LoanNone    LoanState = "none"
	LoanOnTime  LoanState = "on_time"
	LoanDueSoon LoanState = "due_soon"
	LoanOverdue LoanState = "overdue"
)

// LoanState classifies b at now. A book that is not borrowed is LoanNone.
func (b Book) LoanState(now time.Time, dueSoonWindow time.Duration) LoanState {
	if b.Status != StatusBorrowed || b.DueDate == nil {
		return LoanNone
	}
	left := b.DueDate.Sub(now)
	switch {
	case left < 0:
		return LoanOverdue
	case left > 0 && left <= dueSoonWindow:
		return LoanDueSoon
	default:
		return LoanOnTime
	}
}

// CheckLending reports whether b's lending fields agree with its status:
// borrowedBy and dueDate are both set exactly when the book is borrowed.
func CheckLending(b Book) error {
	borrowed := b.Status == StatusBorrowed
	if (b.BorrowedBy != nil) != borrowed || (b.DueDate != nil) != borrowed {
		return fmt.Errorf("book %s: status %s with borrowedBy=%v dueDate=%v", b.ID, b.Status, b.BorrowedBy != nil, b.DueDate != nil)
	}
	return nil
}

// Loan is a borrowed book with its classification at the time of the query.
type Loan struct {
	Book  Book      `json:"book"`
	State LoanState `json:"state"`
}

// LoanDays is the loan period in whole days, for messages.
func (lm *LibraryManager) LoanDays() int {
	return int(lm.loanPeriod / (24 * time.Hour))
}

// Borrow lends an available book to the acting user and returns it with its
// due date set.
func (lm *LibraryManager) Borrow(ctx context.Context, bookID string) (Book, error) {
	op := string(ActionBorrow)
	actor, err := lm.gate.Authorize(ctx, ActionBorrow, "")
	if err != nil {
		return Book{}, err
	}

	var out Book
	err = lm.store.Update(ctx, op, func(s *Snapshot) error {
		b := findBook(s.Books, bookID)
		if b == nil {
			return notFoundError(op, "book %s not found", bookID)
		}
		if b.Status != StatusAvailable {
			return conflictError(op, "book is not available for borrowing")
		}
		due := lm.clock.Now().Add(lm.loanPeriod)
		borrower := actor.ID
		b.Status = StatusBorrowed
		b.BorrowedBy = &borrower
		b.DueDate = &due
		out = *b
		return nil
	}, KindBooks)
	if err != nil {
		return Book{}, err
	}
	lm.log.Info("book borrowed", zap.String("book_id", bookID), zap.String("user_id", actor.ID), zap.Time("due", *out.DueDate))
	return out, nil
}

// Return gives back a book the acting user borrowed.
func (lm *LibraryManager) Return(ctx context.Context, bookID string) (Book, error) {
	op := string(ActionReturn)
	actor, err := lm.gate.Authorize(ctx, ActionReturn, "")
	if err != nil {
		return Book{}, err
	}

	var out Book
	err = lm.store.Update(ctx, op, func(s *Snapshot) error {
		b := findBook(s.Books, bookID)
		if b == nil {
			return notFoundError(op, "book %s not found", bookID)
		}
		if b.Status != StatusBorrowed || b.BorrowedBy == nil || *b.BorrowedBy != actor.ID {
			return conflictError(op, "cannot return this book")
		}
		b.Status = StatusAvailable
		b.BorrowedBy = nil
		b.DueDate = nil
		out = *b
		return nil
	}, KindBooks)
	if err != nil {
		return Book{}, err
	}
	lm.log.Info("book returned", zap.String("book_id", bookID), zap.String("user_id", actor.ID))
	return out, nil
}

// BorrowedBooks returns the acting user's loans, soonest due first.
func (lm *LibraryManager) BorrowedBooks(ctx context.Context) ([]Loan, error) {
	actor, err := lm.gate.Authorize(ctx, ActionViewOwnLoans, "")
	if err != nil {
		return nil, err
	}
	books, err := lm.store.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ActionViewOwnLoans, err)
	}
	return lm.loans(books, func(b Book) bool {
		return b.BorrowedBy != nil && *b.BorrowedBy == actor.ID
	}), nil
}

// OverdueBooks returns the acting user's overdue loans.
func (lm *LibraryManager) OverdueBooks(ctx context.Context) ([]Loan, error) {
	all, err := lm.BorrowedBooks(ctx)
	if err != nil {
		return nil, err
	}
	var out []Loan
	for _, l := range all {
		if l.State == LoanOverdue {
			out = append(out, l)
		}
	}
	return out, nil
}

func (lm *LibraryManager) loans(books []Book, keep func(Book) bool) []Loan {
	now := lm.clock.Now()
	var out []Loan
	for _, b := range books {
		if b.Status != StatusBorrowed || !keep(b) {
			continue
		}
		out = append(out, Loan{Book: b, State: b.LoanState(now, lm.dueSoon)})
	}
	sortLoans(out)
	return out
}

func sortLoans(loans []Loan) {
	slices.SortStableFunc(loans, func(a, b Loan) int {
		return dueOf(a.Book).Compare(dueOf(b.Book))
	})
}

func dueOf(b Book) time.Time {
	if b.DueDate == nil {
		return time.Time{}
	}
	return *b.DueDate
}

func findBook(books []Book, id string) *Book {
	for i := range books {
		if books[i].ID == id {
			return &books[i]
		}
	}
	return nil
}
