// Package cli implements the scriptor command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scriptor/internal/config"
	"scriptor/internal/core/apperror"
	"scriptor/pkg/logger"
)

var (
	flagConfig   string
	flagLogLevel string
	flagLogFile  string

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scriptor",
	Short: "Run scripts and serve API traffic against a managed database",
	Long: `scriptor binds a unit of work to a database-backed environment:
scripts run inside a transaction that commits on success and rolls back
on failure, interactive sessions always roll back, and the API server
gives every request its own transaction.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return apperror.NewValidation(err.Error())
		}

		level := cfg.LogLevel
		if flagLogLevel != "" {
			level = flagLogLevel
		}
		logfile := cfg.LogFile
		if flagLogFile != "" {
			logfile = flagLogFile
		}

		// Script output owns stdout; logs go to stderr or a file.
		outputs := []string{"stderr"}
		if logfile != "" {
			outputs = []string{logfile}
		}
		log, err = logger.New(logger.Config{Level: level, OutputPaths: outputs})
		if err != nil {
			return apperror.NewValidation(fmt.Sprintf("logger: %v", err))
		}
		return nil
	},
}

// Execute runs the command tree. Usage errors exit 2, everything else 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if apperror.IsValidation(err) {
		os.Exit(2)
	}
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "logfile", "", "log to this file instead of stderr")
}
