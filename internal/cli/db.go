package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"scriptor/internal/core/apperror"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect databases",
}

var dbExistsCmd = &cobra.Command{
	Use:   "exists NAME",
	Short: "Check whether a database exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := runContext(cmd.Context())

		mgr, err := newManager(ctx)
		if err != nil {
			return err
		}
		defer mgr.Close()

		exists, err := mgr.Exists(ctx, args[0])
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NewDatabaseNotFound(args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s exists\n", args[0])
		return nil
	},
}

var dbVersionCmd = &cobra.Command{
	Use:   "version NAME",
	Short: "Show a database's schema version marker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := runContext(cmd.Context())

		mgr, err := newManager(ctx)
		if err != nil {
			return err
		}
		defer mgr.Close()

		exists, err := mgr.Exists(ctx, args[0])
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NewDatabaseNotFound(args[0])
		}

		version, err := mgr.SchemaVersion(ctx, args[0])
		if err != nil {
			return err
		}
		if version == "" {
			version = "(unset)"
		}
		fmt.Fprintln(cmd.OutOrStdout(), version)
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbExistsCmd)
	dbCmd.AddCommand(dbVersionCmd)
	rootCmd.AddCommand(dbCmd)
}
