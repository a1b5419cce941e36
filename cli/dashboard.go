package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-management/library"
)

// NewStatsCommand creates the admin statistics command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Library statistics (admin)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				st, err := mgr.AdminStatistics(ctx)
				if err != nil {
					return err
				}
				return f.Success(st, func(w io.Writer) { printAdminStats(w, st) })
			})
		},
	}
}

func printAdminStats(w io.Writer, st library.AdminStats) {
	printSection(w, "Library statistics")
	printTable(w, "", []string{"Books", "Borrowed", "Overdue", "Users", "Admins", "Categories"}, [][]string{{
		strconv.Itoa(st.TotalBooks),
		strconv.Itoa(st.Borrowed),
		strconv.Itoa(st.Overdue),
		strconv.Itoa(st.TotalUsers),
		strconv.Itoa(st.Admins),
		strconv.Itoa(st.TotalCategories),
	}})

	printSection(w, "Top categories")
	printCategories(w, st.TopCategories)

	printSection(w, "Books added per month")
	for _, m := range st.AddedPerMonth {
		fmt.Fprintf(w, "  %s %s %d\n", m.Month.Format("Jan 2006"), successStyle.Render(strings.Repeat("█", m.Count)), m.Count)
	}
}

// NewSummaryCommand creates the member dashboard command.
func NewSummaryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "summary",
		Short:         "Your dashboard: catalog totals, new arrivals and your loans",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				st, err := mgr.MemberSummary(ctx)
				if err != nil {
					return err
				}
				return f.Success(st, func(w io.Writer) {
					fmt.Fprintf(w, "%d books in %d categories\n", st.TotalBooks, st.TotalCategories)
					printSection(w, "Recently added")
					printBooks(w, mgr, st.RecentBooks)
					printSection(w, "Your loans")
					printLoans(w, mgr, st.Loans)
				})
			})
		},
	}
}

// SettingsOptions holds flags for settings set.
type SettingsOptions struct {
	*RootOptions
	Name         string
	ItemsPerPage int
	Endpoint     string
}

// NewSettingsCommand creates the settings command group.
func NewSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the library settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Show the library settings",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				s, err := mgr.Settings(ctx)
				if err != nil {
					return err
				}
				return f.Success(s, func(w io.Writer) { printSettings(w, s) })
			})
		},
	})

	set := &cobra.Command{
		Use:           "set",
		Short:         "Change the library settings (admin)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				s, err := mgr.Settings(ctx)
				if err != nil {
					return err
				}
				fs := cmd.Flags()
				if fs.Changed("name") {
					s.LibraryName = opts.Name
				}
				if fs.Changed("per-page") {
					s.ItemsPerPage = opts.ItemsPerPage
				}
				if fs.Changed("endpoint") {
					s.CatalogEndpoint = opts.Endpoint
				}
				s, err = mgr.UpdateSettings(ctx, s)
				if err != nil {
					return err
				}
				return f.Success(s, func(w io.Writer) {
					printSuccess(w, "Settings saved")
					printSettings(w, s)
				})
			})
		},
	}
	set.Flags().StringVar(&opts.Name, "name", "", "library name")
	set.Flags().IntVar(&opts.ItemsPerPage, "per-page", 0, "books per page (1-200)")
	set.Flags().StringVar(&opts.Endpoint, "endpoint", "", "Open Library endpoint URL")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:           "reset",
		Short:         "Restore the default settings (admin)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				s, err := mgr.ResetSettings(ctx)
				if err != nil {
					return err
				}
				return f.Success(s, func(w io.Writer) {
					printSuccess(w, "Settings reset")
					printSettings(w, s)
				})
			})
		},
	})

	return cmd
}

func printSettings(w io.Writer, s library.Settings) {
	fmt.Fprintf(w, "  %-17s %s\n", "Library name:", s.LibraryName)
	fmt.Fprintf(w, "  %-17s %d\n", "Items per page:", s.ItemsPerPage)
	fmt.Fprintf(w, "  %-17s %s\n", "Catalog endpoint:", s.CatalogEndpoint)
}
