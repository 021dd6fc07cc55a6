package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"scriptor/internal/auth"
	"scriptor/internal/command"
	"scriptor/internal/core/apperror"
	"scriptor/internal/core/env"
	"scriptor/internal/shell"
)

var (
	flagUserDatabase string
	flagUserPassword string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userSetPasswordCmd = &cobra.Command{
	Use:   "set-password LOGIN",
	Short: "Set a user's password, creating the account when absent",
	Long: `Sets the password for LOGIN inside a single transaction. The password
comes from --password, or from stdin when it is piped. The change
commits on success.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := runContext(cmd.Context())
		login := args[0]

		password := flagUserPassword
		if password == "" && !shell.IsTerminal(os.Stdin) {
			raw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return apperror.NewValidation("read stdin: " + err.Error())
			}
			password = strings.TrimRight(string(raw), "\r\n")
		}
		if password == "" {
			return apperror.NewValidation("no password provided; use --password or pipe it on stdin")
		}

		mgr, err := newManager(ctx)
		if err != nil {
			return err
		}
		defer mgr.Close()

		runner, err := newRunner(mgr)
		if err != nil {
			return err
		}

		svc := auth.NewService(nil)
		def := command.New()
		return def.Execute(ctx, runner, command.Invocation{
			Database:       flagUserDatabase,
			ConfigDatabase: cfg.DBName,
			Detail:         map[string]any{"operation": "set-password", "login": login},
		}, func(ctx context.Context, e *env.Env) error {
			return svc.SetPassword(ctx, e, login, password)
		})
	},
}

func init() {
	userSetPasswordCmd.Flags().StringVarP(&flagUserDatabase, "database", "d", "", "database holding the account")
	userSetPasswordCmd.Flags().StringVar(&flagUserPassword, "password", "", "new password; prefer piping stdin")
	userCmd.AddCommand(userSetPasswordCmd)
	rootCmd.AddCommand(userCmd)
}
