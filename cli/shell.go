package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"library-management/library"
)

// NewShellCommand creates the interactive shell command.
func NewShellCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run library commands interactively",
		Long: `Run library commands interactively against one open library. Every line is a
library command without the leading "library", e.g. "books list -q tolkien".
With --storage memory the shell is the only way to keep data between commands.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			if opts.mgr != nil {
				return f.Fail(NewExitError(ExitCommandError, "already in a shell"))
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			mgr, err := opts.OpenManager(ctx)
			if err != nil {
				return f.Fail(WrapExitError(ExitCommandError, "open library", err))
			}
			defer mgr.Close()

			return runShell(ctx, opts, mgr, cmd)
		},
	}
}

func runShell(ctx context.Context, opts *RootOptions, mgr *library.LibraryManager, cmd *cobra.Command) error {
	in := newLineReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	settings, err := mgr.Settings(ctx)
	if err != nil {
		return opts.formatter(cmd).Fail(err)
	}
	fmt.Fprintf(out, "Welcome to %s!\n", settings.LibraryName)
	fmt.Fprintln(out, "Type a command such as 'login admin', 'books list' or 'borrow <id>'.")
	fmt.Fprintln(out, "Type 'help' for every command and 'exit' to leave.")

	for {
		fmt.Fprintf(out, "\n%s> ", shellPrompt(ctx, mgr))
		line, err := in.readLine()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "read command", err)
		}

		args, err := splitArgs(line)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("Error:"), err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "library":
			args = args[1:]
		}

		child := newRootCommand(&RootOptions{
			Verbose:    opts.Verbose,
			Format:     opts.Format,
			ConfigPath: opts.ConfigPath,
			cfg:        opts.cfg,
			log:        opts.log,
			mgr:        mgr,
		})
		child.SetArgs(args)
		child.SetIn(in)
		child.SetOut(out)
		child.SetErr(cmd.ErrOrStderr())

		if err := child.ExecuteContext(ctx); err != nil {
			var exitErr *ExitError
			if !errors.As(err, &exitErr) {
				// cobra's own errors (unknown command, bad flags) were not reported yet
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("Error:"), err)
			}
		}
	}
}

// shellPrompt is the acting username, or "library" when logged out.
func shellPrompt(ctx context.Context, mgr *library.LibraryManager) string {
	id, err := mgr.CurrentIdentity(ctx)
	if err != nil || id == nil {
		return "library"
	}
	return id.Username
}

// splitArgs splits a shell line on blanks. Single or double quotes group
// words; a backslash escapes the next character outside single quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inArg = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
