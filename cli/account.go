package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"library-management/library"
)

// AccountOptions holds flags shared by the account commands.
type AccountOptions struct {
	*RootOptions
	Password string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <username> <email>",
		Short: "Create a member account",
		Long: `Create a member account with the user role. Usernames and emails are unique,
ignoring case. Registering does not log the new account in.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				password, err := p.passwordOr(opts.Password, "Password: ")
				if err != nil {
					return err
				}
				id, err := mgr.Register(ctx, args[0], args[1], password)
				if err != nil {
					return err
				}
				return f.Success(id, func(w io.Writer) {
					printSuccess(w, "Registered %s. Log in with: library login %s", id.Username, id.Username)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "password (prompted when omitted)")

	return cmd
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "login <username>",
		Short:         "Log in and make the account the acting user",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				password, err := p.passwordOr(opts.Password, "Password: ")
				if err != nil {
					return err
				}
				id, err := mgr.Login(ctx, args[0], password)
				if err != nil {
					return err
				}
				return f.Success(id, func(w io.Writer) {
					printSuccess(w, "Logged in as %s (%s)", id.Username, id.Role)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "password (prompted when omitted)")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "End the current session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				if err := mgr.Logout(ctx); err != nil {
					return err
				}
				return f.Success(map[string]bool{"loggedOut": true}, func(w io.Writer) {
					printSuccess(w, "Logged out")
				})
			})
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "whoami",
		Short:         "Show the acting user",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				id, err := mgr.CurrentIdentity(ctx)
				if err != nil {
					return err
				}
				return f.Success(id, func(w io.Writer) {
					if id == nil {
						fmt.Fprintln(w, mutedStyle.Render("Not logged in"))
						return
					}
					printUsers(w, []library.Identity{*id})
				})
			})
		},
	}
}

// NewProfileCommand creates the profile command group for the acting user.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Edit your own account",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "email <new-email>",
		Short:         "Change your email address",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				me, err := mgr.Actor(ctx)
				if err != nil {
					return err
				}
				id, err := mgr.UpdateEmail(ctx, me.ID, args[0])
				if err != nil {
					return err
				}
				return f.Success(id, func(w io.Writer) {
					printSuccess(w, "Email changed to %s", id.Email)
				})
			})
		},
	})

	var current, next string
	passwd := &cobra.Command{
		Use:           "password",
		Short:         "Change your password",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			return rootOpts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				me, err := mgr.Actor(ctx)
				if err != nil {
					return err
				}
				cur, err := p.passwordOr(current, "Current password: ")
				if err != nil {
					return err
				}
				nxt, err := p.passwordOr(next, "New password: ")
				if err != nil {
					return err
				}
				if err := mgr.ChangePassword(ctx, me.ID, cur, nxt); err != nil {
					return err
				}
				return f.Success(map[string]bool{"changed": true}, func(w io.Writer) {
					printSuccess(w, "Password changed")
				})
			})
		},
	}
	passwd.Flags().StringVar(&current, "current", "", "current password (prompted when omitted)")
	passwd.Flags().StringVar(&next, "new", "", "new password (prompted when omitted)")
	cmd.AddCommand(passwd)

	return cmd
}

// UsersOptions holds flags for the users commands.
type UsersOptions struct {
	*RootOptions
	Password string
	Role     string
}

// NewUsersCommand creates the users command group (admin only).
func NewUsersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UsersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts (admin)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List every account",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				users, err := mgr.ListUsers(ctx)
				if err != nil {
					return err
				}
				return f.Success(users, func(w io.Writer) { printUsers(w, users) })
			})
		},
	})

	add := &cobra.Command{
		Use:           "add <username> <email>",
		Short:         "Create an account with any role",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				password, err := p.passwordOr(opts.Password, "Password for new account: ")
				if err != nil {
					return err
				}
				id, err := mgr.CreateUser(ctx, args[0], args[1], password, library.Role(opts.Role))
				if err != nil {
					return err
				}
				return f.Success(id, func(w io.Writer) {
					printSuccess(w, "Created %s %s (ID: %s)", id.Role, id.Username, id.ID)
				})
			})
		},
	}
	add.Flags().StringVarP(&opts.Password, "password", "p", "", "password (prompted when omitted)")
	add.Flags().StringVar(&opts.Role, "role", string(library.RoleUser), "role (user|admin)")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:           "role <user-id> <role>",
		Short:         "Change another account's role",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				id, err := mgr.ChangeRole(ctx, args[0], library.Role(args[1]))
				if err != nil {
					return err
				}
				return f.Success(id, func(w io.Writer) {
					printSuccess(w, "%s is now %s", id.Username, id.Role)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <user-id>",
		Short:         "Delete another account",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, mgr *library.LibraryManager, f *OutputFormatter) error {
				if err := mgr.DeleteUser(ctx, args[0]); err != nil {
					return err
				}
				return f.Success(map[string]string{"deleted": args[0]}, func(w io.Writer) {
					printSuccess(w, "Deleted user %s", args[0])
				})
			})
		},
	})

	return cmd
}

func printUsers(w io.Writer, users []library.Identity) {
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{
			u.ID,
			TruncateString(u.Username, 20),
			TruncateString(u.Email, 30),
			string(u.Role),
			u.CreatedAt.Format("2006-01-02"),
		})
	}
	printTable(w, "No users.", []string{"ID", "Username", "Email", "Role", "Created"}, rows)
}
