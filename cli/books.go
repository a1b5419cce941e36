package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"library-management/library"
)

// BookOptions holds the descriptive book flags of add and edit.
type BookOptions struct {
	*RootOptions
	Input library.BookInput
}

func (o *BookOptions) addFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&o.Input.Title, "title", "", "title")
	fs.StringVar(&o.Input.Author, "author", "", "author")
	fs.StringVar(&o.Input.ISBN, "isbn", "", "ISBN")
	fs.StringVar(&o.Input.Publisher, "publisher", "", "publisher")
	fs.StringVar(&o.Input.Year, "year", "", "publication year")
	fs.StringVar(&o.Input.Cover, "cover", "", "cover image URL")
	fs.StringVar(&o.Input.Notes, "notes", "", "free-form notes")
	fs.StringVar(&o.Input.OLID, "olid", "", "Open Library key, e.g. /works/OL45804W")
	fs.StringSliceVar(&o.Input.Categories, "category", nil, "category name (repeatable)")
}

// merge overlays the flags the user actually set onto in.
func (o *BookOptions) merge(cmd *cobra.Command, in library.BookInput) library.BookInput {
	fs := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("title", &in.Title, o.Input.Title)
	set("author", &in.Author, o.Input.Author)
	set("isbn", &in.ISBN, o.Input.ISBN)
	set("publisher", &in.Publisher, o.Input.Publisher)
	set("year", &in.Year, o.Input.Year)
	set("cover", &in.Cover, o.Input.Cover)
	set("notes", &in.Notes, o.Input.Notes)
	set("olid", &in.OLID, o.Input.OLID)
	if fs.Changed("category") {
		in.Categories = o.Input.Categories
	}
	return in
}

// BookListOptions holds flags for books list.
type BookListOptions struct {
	*RootOptions
	Query    string
	Category string
	Status   string
	Page     int
}

// NewBooksCommand creates the books command group.
func NewBooksCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and manage the catalog",
	}

	cmd.AddCommand(newBooksListCommand(rootOpts))
	cmd.AddCommand(newBooksShowCommand(rootOpts))
	cmd.AddCommand(newBooksAddCommand(rootOpts))
	cmd.AddCommand(newBooksEditCommand(rootOpts))
	cmd.AddCommand(newBooksDeleteCommand(rootOpts))
	cmd.AddCommand(newBooksImportCommand(rootOpts))
	cmd.AddCommand(newBooksExportCommand(rootOpts))

	return cmd
}

func newBooksListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BookListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List books, most recently added first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				books, err := mgr.ListBooks(ctx, library.BookFilter{
					Query:    opts.Query,
					Category: opts.Category,
					Status:   library.Status(opts.Status),
				})
				if err != nil {
					return err
				}
				settings, err := mgr.Settings(ctx)
				if err != nil {
					return err
				}
				page := paginate(books, opts.Page, settings.ItemsPerPage)
				return f.Success(page, func(w io.Writer) {
					printSection(w, settings.LibraryName)
					printBooks(w, mgr, page)
					if len(page) < len(books) {
						pages := (len(books) + settings.ItemsPerPage - 1) / settings.ItemsPerPage
						fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("Page %d of %d (%d books). Use --page to see more.", max(opts.Page, 1), pages, len(books))))
					}
				})
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "match title, author or ISBN")
	cmd.Flags().StringVar(&opts.Category, "category", "", "only books in this category")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only books with this status (available|borrowed|reserved)")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")

	return cmd
}

// paginate returns page n (1-based) of size items.
func paginate[T any](items []T, n, size int) []T {
	if size <= 0 {
		return items
	}
	n = max(n, 1)
	start := (n - 1) * size
	if start >= len(items) {
		return []T{}
	}
	return items[start:min(start+size, len(items))]
}

func newBooksShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <book-id>",
		Short:         "Show one book",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				b, err := mgr.GetBook(ctx, args[0])
				if err != nil {
					return err
				}
				return f.Success(b, func(w io.Writer) { printBookDetail(w, mgr, b) })
			})
		},
	}
}

func newBooksAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BookOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "add",
		Short:         "Add a book (admin)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				b, err := mgr.CreateBook(ctx, opts.Input)
				if err != nil {
					return err
				}
				return f.Success(b, func(w io.Writer) {
					printSuccess(w, "Added %q (ID: %s)", b.Title, b.ID)
				})
			})
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func newBooksEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BookOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <book-id>",
		Short: "Edit a book's descriptive fields (admin)",
		Long: `Edit a book's descriptive fields. Only the flags given are changed;
--category replaces the whole category list. Loan state is never touched.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				cur, err := mgr.GetBook(ctx, args[0])
				if err != nil {
					return err
				}
				b, err := mgr.UpdateBook(ctx, args[0], opts.merge(cmd, library.InputOf(cur)))
				if err != nil {
					return err
				}
				return f.Success(b, func(w io.Writer) {
					printSuccess(w, "Updated %q", b.Title)
				})
			})
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func newBooksDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <book-id>",
		Short:         "Delete a book (admin)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				if err := mgr.DeleteBook(ctx, args[0]); err != nil {
					return err
				}
				return f.Success(map[string]string{"deleted": args[0]}, func(w io.Writer) {
					printSuccess(w, "Deleted book %s", args[0])
				})
			})
		},
	}
}

func newBooksImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import books from a JSON file (admin)",
		Long: `Import books from a JSON file holding either an array of books or an
export document ({"books": [...], "categories": [...]}). Books whose title and
author are already in the catalog are skipped.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				books, err := ReadBooksFile(args[0])
				if err != nil {
					return err
				}
				n, err := mgr.ImportBooks(ctx, books)
				if err != nil {
					return err
				}
				result := map[string]int{"read": len(books), "imported": n}
				return f.Success(result, func(w io.Writer) {
					printSuccess(w, "Imported %d of %d books", n, len(books))
					if skipped := len(books) - n; skipped > 0 {
						printWarning(w, "Skipped %d duplicates or incomplete records", skipped)
					}
				})
			})
		},
	}
}

// ReadBooksFile reads a JSON array of books, or the books of an export
// document.
func ReadBooksFile(path string) ([]library.Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read import file", err)
	}
	data = bytes.TrimSpace(data)

	var books []library.Book
	if bytes.HasPrefix(data, []byte("[")) {
		err = json.Unmarshal(data, &books)
	} else {
		var doc library.LibraryData
		err = json.Unmarshal(data, &doc)
		books = doc.Books
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "parse import file "+path, err)
	}
	return books, nil
}

func newBooksExportCommand(opts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:           "export",
		Short:         "Export the books and categories as JSON",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				data, err := mgr.ExportLibrary(ctx)
				if err != nil {
					return err
				}
				raw, err := json.MarshalIndent(data, "", "  ")
				if err != nil {
					return err
				}
				if output == "" {
					return f.Success(data, func(w io.Writer) { fmt.Fprintln(w, string(raw)) })
				}
				if err := os.WriteFile(output, append(raw, '\n'), 0o644); err != nil {
					return WrapExitError(ExitCommandError, "write export", err)
				}
				result := map[string]any{"file": output, "books": len(data.Books), "categories": len(data.Categories)}
				return f.Success(result, func(w io.Writer) {
					printSuccess(w, "Exported %d books and %d categories to %s", len(data.Books), len(data.Categories), output)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	return cmd
}

func printBooks(w io.Writer, mgr *library.LibraryManager, books []library.Book) {
	now := mgr.Now()
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		rows = append(rows, []string{
			b.ID,
			TruncateString(b.Title, 30),
			TruncateString(b.Author, 25),
			TruncateString(strings.Join(b.Categories, ", "), 25),
			statusLabel(b, now, mgr.DueSoonWindow()),
		})
	}
	printTable(w, "No books found.", []string{"ID", "Title", "Author", "Categories", "Status"}, rows)
}

func printBookDetail(w io.Writer, mgr *library.LibraryManager, b library.Book) {
	printSection(w, b.Title)
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %-11s %s\n", name+":", value)
		}
	}
	field("ID", b.ID)
	field("Author", b.Author)
	field("ISBN", b.ISBN)
	field("Publisher", b.Publisher)
	field("Year", b.Year)
	field("Categories", strings.Join(b.Categories, ", "))
	field("Cover", b.Cover)
	field("Open Library", b.OLID)
	field("Added", b.AddedDate.Format("2006-01-02"))
	field("Status", statusLabel(b, mgr.Now(), mgr.DueSoonWindow()))
	field("Notes", b.Notes)
}

// statusLabel is the book status with the due date and loan state of a
// borrowed book.
func statusLabel(b library.Book, now time.Time, window time.Duration) string {
	if b.Status != library.StatusBorrowed || b.DueDate == nil {
		return string(b.Status)
	}
	label := "borrowed, due " + b.DueDate.Format("2006-01-02")
	switch b.LoanState(now, window) {
	case library.LoanOverdue:
		return errorStyle.Render(label + " (overdue)")
	case library.LoanDueSoon:
		return warningStyle.Render(label + " (due soon)")
	default:
		return label
	}
}
