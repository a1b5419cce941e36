package cli

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"library-management/library"
)

// NewCategoriesCommand creates the categories command group.
func NewCategoriesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category"},
		Short:   "Browse and manage categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List categories with their book counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				cats, err := mgr.ListCategories(ctx)
				if err != nil {
					return err
				}
				return f.Success(cats, func(w io.Writer) { printCategories(w, cats) })
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "add <name>",
		Short:         "Add a category (admin)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				added, err := mgr.AddCategory(ctx, args[0])
				if err != nil {
					return err
				}
				return f.Success(map[string]bool{"added": added}, func(w io.Writer) {
					if added {
						printSuccess(w, "Added category %q", args[0])
					} else {
						printWarning(w, "Category %q already exists", args[0])
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <category-id>",
		Short:         "Delete a category and remove it from every book (admin)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				if err := mgr.DeleteCategory(ctx, args[0]); err != nil {
					return err
				}
				return f.Success(map[string]string{"deleted": args[0]}, func(w io.Writer) {
					printSuccess(w, "Deleted category %s", args[0])
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "recount",
		Short:         "Recompute category counts from the books",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				cats, err := mgr.RecomputeCounts(ctx)
				if err != nil {
					return err
				}
				return f.Success(cats, func(w io.Writer) { printCategories(w, cats) })
			})
		},
	})

	return cmd
}

func printCategories(w io.Writer, cats []library.Category) {
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, []string{c.ID, TruncateString(c.Name, 30), strconv.Itoa(c.Count)})
	}
	printTable(w, "No categories.", []string{"ID", "Name", "Books"}, rows)
}
