package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/spf13/cobra"

	"library-management/library"
)

// NewBorrowCommand creates the borrow command.
func NewBorrowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "borrow <book-id>",
		Short:         "Borrow an available book",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				b, err := mgr.Borrow(ctx, args[0])
				if err != nil {
					return err
				}
				return f.Success(b, func(w io.Writer) {
					printSuccess(w, "Borrowed %q for %d days, due %s", b.Title, mgr.LoanDays(), b.DueDate.Format("2006-01-02"))
				})
			})
		},
	}
}

// NewReturnCommand creates the return command.
func NewReturnCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "return <book-id>",
		Short:         "Return a book you borrowed",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				b, err := mgr.Return(ctx, args[0])
				if err != nil {
					return err
				}
				return f.Success(b, func(w io.Writer) {
					printSuccess(w, "Returned %q", b.Title)
				})
			})
		},
	}
}

// LoansOptions holds flags for the loans command.
type LoansOptions struct {
	*RootOptions
	Overdue bool
}

// NewLoansCommand creates the loans command.
func NewLoansCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoansOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "loans",
		Short:         "List your borrowed books by due date",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				var (
					loans []library.Loan
					err   error
				)
				if opts.Overdue {
					loans, err = mgr.OverdueBooks(ctx)
				} else {
					loans, err = mgr.BorrowedBooks(ctx)
				}
				if err != nil {
					return err
				}
				return f.Success(loans, func(w io.Writer) { printLoans(w, mgr, loans) })
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Overdue, "overdue", false, "only overdue loans")

	return cmd
}

func printLoans(w io.Writer, mgr *library.LibraryManager, loans []library.Loan) {
	now := mgr.Now()
	rows := make([][]string, 0, len(loans))
	for _, l := range loans {
		rows = append(rows, []string{
			l.Book.ID,
			TruncateString(l.Book.Title, 30),
			TruncateString(l.Book.Author, 25),
			statusLabel(l.Book, now, mgr.DueSoonWindow()),
			daysLeft(l.Book, now),
		})
	}
	printTable(w, "No borrowed books.", []string{"ID", "Title", "Author", "Due", "Days left"}, rows)
}

// daysLeft is the whole days until b is due, negative once overdue.
func daysLeft(b library.Book, now time.Time) string {
	if b.DueDate == nil {
		return ""
	}
	return fmt.Sprintf("%d", int(math.Ceil(b.DueDate.Sub(now).Hours()/24)))
}
