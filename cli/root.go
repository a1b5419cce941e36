// Package cli implements the library command-line interface.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"library-management/config"
	"library-management/library"
	"library-management/logging"
	"library-management/openlibrary"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Storage    string // overrides storage.backend
	DBPath     string // overrides storage.path

	cfg *config.Config
	log *zap.Logger

	// mgr is set when the command runs inside a shell that already holds
	// the library open.
	mgr *library.LibraryManager
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the library CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Library manager",
		Long: `Manage a small library: the book catalog, member accounts, loans with due
dates, categories, and Open Library lookups.

The acting user is whoever last ran "library login" against the same store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "configuration file")
	cmd.PersistentFlags().StringVar(&opts.Storage, "storage", "", "storage backend (sqlite|postgres|memory)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database file")

	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewProfileCommand(opts))
	cmd.AddCommand(NewUsersCommand(opts))
	cmd.AddCommand(NewBooksCommand(opts))
	cmd.AddCommand(NewBorrowCommand(opts))
	cmd.AddCommand(NewReturnCommand(opts))
	cmd.AddCommand(NewLoansCommand(opts))
	cmd.AddCommand(NewCategoriesCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewSummaryCommand(opts))
	cmd.AddCommand(NewSettingsCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewRecommendCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// setup loads configuration and builds the logger once per process. Its
// errors are plain errors: main reports them and exits with
// ExitCommandError.
func (o *RootOptions) setup() error {
	if o.cfg != nil {
		return nil
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if o.Storage != "" {
		cfg.Storage.Backend = o.Storage
	}
	if o.DBPath != "" {
		cfg.Storage.Path = o.DBPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, o.Verbose)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.log = logger
	return nil
}

// Config returns the loaded configuration.
func (o *RootOptions) Config() *config.Config { return o.cfg }

// Logger returns the command logger, or a no-op logger before setup.
func (o *RootOptions) Logger() *zap.Logger {
	if o.log == nil {
		return zap.NewNop()
	}
	return o.log
}

// OpenManager opens the library described by the loaded configuration.
// The caller closes it.
func (o *RootOptions) OpenManager(ctx context.Context) (*library.LibraryManager, error) {
	cfg := o.cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return OpenLibrary(ctx, cfg, o.Logger())
}

// OpenLibrary opens the storage backend named by cfg and builds a manager
// over it with the configured hasher, loan periods and first admin.
func OpenLibrary(ctx context.Context, cfg *config.Config, log *zap.Logger) (*library.LibraryManager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	hasher, err := library.HasherByName(cfg.Auth.PasswordHash)
	if err != nil {
		return nil, err
	}

	kv, err := library.OpenKV(ctx, cfg.Storage.Backend, cfg.Storage.Path, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	mgr, err := library.NewLibraryManager(ctx, kv,
		library.WithLogger(log.Named("library")),
		library.WithHasher(hasher),
		library.WithLoanPeriod(cfg.LoanPeriod()),
		library.WithDueSoonWindow(cfg.DueSoonWindow()),
		library.WithSeedAdmin(&library.SeedAdmin{
			Username: cfg.Auth.AdminUsername,
			Email:    cfg.Auth.AdminEmail,
			Password: cfg.Auth.AdminPassword,
		}),
	)
	if err != nil {
		kv.Close()
		return nil, err
	}
	log.Debug("library opened",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("path", cfg.Storage.Path))
	return mgr, nil
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// run opens the library, runs fn, and reports its error through the
// formatter.
func (o *RootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error) error {
	f := o.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	mgr := o.mgr
	if mgr == nil {
		opened, err := o.OpenManager(ctx)
		if err != nil {
			return f.Fail(WrapExitError(ExitCommandError, "open library", err))
		}
		defer opened.Close()
		mgr = opened
	}

	if err := fn(ctx, mgr, f); err != nil {
		return f.Fail(err)
	}
	return nil
}

// catalogClient returns an Open Library client. A configured non-default
// endpoint wins over the one stored in the library settings.
func (o *RootOptions) catalogClient(ctx context.Context, mgr *library.LibraryManager) (*openlibrary.Client, error) {
	endpoint := openlibrary.DefaultEndpoint
	timeout := config.DefaultConfig().CatalogTimeout()
	if o.cfg != nil {
		endpoint = o.cfg.Catalog.Endpoint
		timeout = o.cfg.CatalogTimeout()
	}
	if endpoint == "" || endpoint == openlibrary.DefaultEndpoint {
		settings, err := mgr.Settings(ctx)
		if err != nil {
			return nil, err
		}
		endpoint = settings.CatalogEndpoint
	}
	return openlibrary.NewClient(endpoint,
		openlibrary.WithTimeout(timeout),
		openlibrary.WithLogger(o.Logger().Named("openlibrary")),
	), nil
}
