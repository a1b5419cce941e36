// Command import_books bulk-loads books from a JSON file into the library,
// logged in as an admin account.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-management/cli"
	"library-management/config"
	"library-management/library"
	"library-management/logging"
)

type importOptions struct {
	configPath string
	dbPath     string
	file       string
	reset      bool
	replace    bool
	username   string
	password   string
	verbose    bool
}

func main() {
	err := newImportCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}

func newImportCommand() *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import_books --file books.json",
		Short: "Bulk-import books into the library",
		Long: `Bulk-import books into the library from a JSON array of books, or from a
"library books export" document. Books whose title and author are already in the
catalog are skipped. The import logs in as an admin account and logs out when
it is done.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "configuration file")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database file")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "JSON file to import")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "delete the SQLite database files first")
	cmd.Flags().BoolVar(&opts.replace, "replace", false, "remove every book and category before importing")
	cmd.Flags().StringVarP(&opts.username, "user", "u", "", "admin account (default: the configured first admin)")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "admin password (prompted when omitted)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// readPassword securely reads a password with masking
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

func runImport(ctx context.Context, opts *importOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.dbPath != "" {
		cfg.Storage.Path = opts.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	books, err := cli.ReadBooksFile(opts.file)
	if err != nil {
		return err
	}

	if opts.reset {
		if cfg.Storage.Backend != library.StorageSQLite {
			return fmt.Errorf("--reset only applies to sqlite storage")
		}
		// Clean up any existing database files
		fmt.Println("Cleaning up existing database files...")
		for _, file := range []string{cfg.Storage.Path, cfg.Storage.Path + "-shm", cfg.Storage.Path + "-wal"} {
			if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
				fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
			}
		}
		fmt.Println("Database cleanup complete.")
	}

	manager, err := cli.OpenLibrary(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening library: %w", err)
	}
	defer manager.Close()

	if err := loginAdmin(ctx, manager, cfg, opts); err != nil {
		return err
	}
	defer func() { _ = manager.Logout(ctx) }()

	fmt.Printf("Importing %d books from %s...\n", len(books), opts.file)
	var imported int
	if opts.replace {
		imported, err = manager.ReplaceCatalog(ctx, books)
	} else {
		imported, err = manager.ImportBooks(ctx, books)
	}
	if err != nil {
		return err
	}
	if opts.replace {
		fmt.Println("Replaced every book and category.")
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", imported)
	fmt.Printf("Skipped (duplicate or incomplete): %d\n", len(books)-imported)

	// Display summary of the catalog
	if imported > 0 {
		fmt.Println("\nCatalog:")
		all, err := manager.ListBooks(ctx, library.BookFilter{})
		if err != nil {
			fmt.Printf("Error retrieving books: %v\n", err)
			return nil
		}
		fmt.Printf("%-36s %-40s %-30s\n", "ID", "Title", "Author")
		fmt.Println(strings.Repeat("-", 108))
		for _, book := range all {
			fmt.Printf("%-36s %-40s %-30s\n", book.ID, cli.TruncateString(book.Title, 40), cli.TruncateString(book.Author, 30))
		}
	}
	return nil
}

// loginAdmin logs in as the import account. Whether it may import is up to
// the library.
func loginAdmin(ctx context.Context, manager *library.LibraryManager, cfg *config.Config, opts *importOptions) error {
	username := opts.username
	if username == "" {
		username = cfg.Auth.AdminUsername
	}
	password := opts.password
	if password == "" {
		var err error
		if password, err = readPassword(fmt.Sprintf("Password for %s: ", username)); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	_, err := manager.Login(ctx, username, password)
	return err
}
