package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"scriptor/internal/command"
	"scriptor/internal/core/apperror"
	"scriptor/internal/core/env"
	"scriptor/internal/script"
	"scriptor/internal/shell"
)

var (
	flagDatabase    string
	flagRollback    bool
	flagInteractive bool
	flagShellIface  string
)

// consoleWanted decides whether the session opens a console: requested with
// -i, or nothing to run with a terminal on stdin. A piped but empty stdin is
// an empty script, not a console.
func consoleWanted(interactiveFlag bool, scriptPath, source string, stdinTTY bool) bool {
	return interactiveFlag || (scriptPath == "" && source == "" && stdinTTY)
}

var runCmd = &cobra.Command{
	Use:   "run [script [args...]]",
	Short: "Run a script, or open a console, inside a transaction",
	Long: `Runs the given Lua script inside a single transaction. The transaction
commits when the script succeeds and rolls back when it fails or when
--rollback is set. Without a script argument, a script is read from
stdin when stdin is piped, and a console opens when it is a terminal.
Console sessions always roll back.

Arguments after the script path are passed through to the script's arg
table untouched.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := runContext(cmd.Context())

		scriptPath := ""
		var scriptArgs []string
		if len(args) > 0 {
			scriptPath = args[0]
			scriptArgs = args
		}

		stdinTTY := shell.IsTerminal(os.Stdin)

		var source string
		if scriptPath == "" && !stdinTTY {
			raw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return apperror.NewValidation(fmt.Sprintf("read stdin: %v", err))
			}
			source = string(raw)
		}

		interactive := consoleWanted(flagInteractive, scriptPath, source, stdinTTY)

		var order []shell.Interface
		if interactive {
			preferred := flagShellIface
			if preferred == "" {
				preferred = cfg.ShellInterface
			}
			var err error
			order, err = shell.Choose(preferred)
			if err != nil {
				return err
			}
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

		def := command.New()
		detail := map[string]any{}
		if scriptPath != "" {
			detail["script"] = scriptPath
		}

		work := func(ctx context.Context, e *env.Env) error {
			if scriptPath != "" || source != "" {
				eng := script.New(ctx, e, scriptArgs)
				var err error
				if scriptPath != "" {
					err = eng.RunFile(scriptPath)
				} else {
					err = eng.RunSource(source)
				}
				if err != nil {
					return err
				}
			}
			if interactive {
				return shell.New(os.Stdin, os.Stdout).Interact(ctx, e, order)
			}
			return nil
		}

		return def.Execute(ctx, runner, command.Invocation{
			Database:       flagDatabase,
			ConfigDatabase: cfg.DBName,
			Rollback:       flagRollback,
			Interactive:    interactive,
			Detail:         detail,
		}, work)
	},
}

func init() {
	runCmd.Flags().StringVarP(&flagDatabase, "database", "d", "", "database to bind the transaction to")
	runCmd.Flags().BoolVar(&flagRollback, "rollback", false, "roll back at the end even on success")
	runCmd.Flags().BoolVarP(&flagInteractive, "interactive", "i", false, "open a console after the script, always rolling back")
	runCmd.Flags().StringVar(&flagShellIface, "shell-interface", "", "preferred console flavor: lua or sql")
	rootCmd.AddCommand(runCmd)
}
