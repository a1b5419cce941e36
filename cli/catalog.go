package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-management/library"
	"library-management/openlibrary"
)

// CatalogOptions holds flags for the catalog commands.
type CatalogOptions struct {
	*RootOptions
	Limit  int
	Import bool
}

// NewCatalogCommand creates the Open Library command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Look up books on Open Library",
	}
	cmd.PersistentFlags().IntVarP(&opts.Limit, "limit", "n", 10, "maximum results")

	search := &cobra.Command{
		Use:           "search <query>...",
		Short:         "Search Open Library",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				client, err := opts.catalogClient(ctx, mgr)
				if err != nil {
					return err
				}
				docs, err := client.Search(ctx, strings.Join(args, " "), opts.Limit)
				if err != nil {
					return catalogError("search", err)
				}
				if opts.Import {
					books := make([]library.Book, 0, len(docs))
					for _, d := range docs {
						books = append(books, d.ToBook())
					}
					return importFound(ctx, mgr, f, books)
				}
				return f.Success(docs, func(w io.Writer) { printDocs(w, docs) })
			})
		},
	}
	search.Flags().BoolVar(&opts.Import, "import", false, "import every result into the catalog (admin)")
	cmd.AddCommand(search)

	isbn := &cobra.Command{
		Use:           "isbn <isbn>",
		Short:         "Look up an edition by ISBN",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				client, err := opts.catalogClient(ctx, mgr)
				if err != nil {
					return err
				}
				ed, err := client.ByISBN(ctx, args[0])
				if err != nil {
					return catalogError("isbn lookup", err)
				}
				b := ed.ToBook(args[0])
				if opts.Import {
					return importFound(ctx, mgr, f, []library.Book{b})
				}
				return f.Success(ed, func(w io.Writer) { printBookDetail(w, mgr, b) })
			})
		},
	}
	isbn.Flags().BoolVar(&opts.Import, "import", false, "import the edition into the catalog (admin)")
	cmd.AddCommand(isbn)

	cmd.AddCommand(&cobra.Command{
		Use:           "work <key>",
		Short:         "Show a work or edition, e.g. /works/OL45804W",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				client, err := opts.catalogClient(ctx, mgr)
				if err != nil {
					return err
				}
				work, err := client.Work(ctx, args[0])
				if err != nil {
					return catalogError("work lookup", err)
				}
				return f.Success(work, func(w io.Writer) {
					printSection(w, work.Title)
					fmt.Fprintf(w, "  %-11s %s\n", "Key:", work.Key)
					if len(work.Subjects) > 0 {
						fmt.Fprintf(w, "  %-11s %s\n", "Subjects:", TruncateString(strings.Join(work.Subjects, ", "), 80))
					}
					if work.Description != "" {
						fmt.Fprintln(w)
						fmt.Fprintln(w, string(work.Description))
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "subjects",
		Short:         "List popular subjects",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				client, err := opts.catalogClient(ctx, mgr)
				if err != nil {
					return err
				}
				subjects, err := client.Subjects(ctx, opts.Limit)
				if err != nil {
					return catalogError("subjects", err)
				}
				return f.Success(subjects, func(w io.Writer) {
					rows := make([][]string, 0, len(subjects))
					for _, s := range subjects {
						rows = append(rows, []string{s.Name, strconv.Itoa(s.WorkCount)})
					}
					printTable(w, "No subjects.", []string{"Subject", "Works"}, rows)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "subject <name>",
		Short:         "List works filed under a subject",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				client, err := opts.catalogClient(ctx, mgr)
				if err != nil {
					return err
				}
				works, err := client.BySubject(ctx, strings.Join(args, " "), opts.Limit)
				if err != nil {
					return catalogError("subject", err)
				}
				return f.Success(works, func(w io.Writer) {
					rows := make([][]string, 0, len(works))
					for _, sw := range works {
						rows = append(rows, []string{sw.Key, TruncateString(sw.Title, 40), TruncateString(joinNames(sw.Authors), 30), yearOf(sw.FirstPublishYear)})
					}
					printTable(w, "No works.", []string{"Key", "Title", "Authors", "Year"}, rows)
				})
			})
		},
	})

	return cmd
}

// NewRecommendCommand creates the recommend command.
func NewRecommendCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "recommend <book-id>",
		Short:         "Suggest books related to one in the catalog",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				seed, err := mgr.GetBook(ctx, args[0])
				if err != nil {
					return err
				}
				owned, err := mgr.ListBooks(ctx, library.BookFilter{})
				if err != nil {
					return err
				}
				client, err := opts.catalogClient(ctx, mgr)
				if err != nil {
					return err
				}
				recs, err := client.Recommend(ctx, seed, owned)
				if err != nil {
					return catalogError("recommend", err)
				}
				return f.Success(recs, func(w io.Writer) {
					printSection(w, "Because you have "+seed.Title)
					rows := make([][]string, 0, len(recs))
					for _, r := range recs {
						rows = append(rows, []string{TruncateString(r.Title, 40), TruncateString(r.Authors, 30), string(r.Source), TruncateString(r.Via, 25)})
					}
					printTable(w, "No recommendations.", []string{"Title", "Authors", "Source", "Via"}, rows)
				})
			})
		},
	}
}

// importFound imports catalog results and reports how many were new.
func importFound(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter, books []library.Book) error {
	n, err := mgr.ImportBooks(ctx, books)
	if err != nil {
		return err
	}
	return f.Success(map[string]int{"found": len(books), "imported": n}, func(w io.Writer) {
		printSuccess(w, "Imported %d of %d books", n, len(books))
	})
}

// catalogError makes catalog failures command errors; a missing record
// reads as a plain message.
func catalogError(op string, err error) error {
	if errors.Is(err, openlibrary.ErrNotFound) {
		return NewExitError(ExitFailure, op+": no match on Open Library")
	}
	return WrapExitError(ExitCommandError, op, err)
}

func printDocs(w io.Writer, docs []openlibrary.Doc) {
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []string{
			d.Key,
			TruncateString(d.Title, 40),
			TruncateString(strings.Join(d.AuthorName, ", "), 30),
			yearOf(d.FirstPublishYear),
		})
	}
	printTable(w, "No results.", []string{"Key", "Title", "Authors", "Year"}, rows)
}

func joinNames(ns []openlibrary.Named) string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Name)
	}
	return strings.Join(out, ", ")
}

func yearOf(y int) string {
	if y <= 0 {
		return ""
	}
	return strconv.Itoa(y)
}
