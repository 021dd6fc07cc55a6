package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"scriptor/internal/auth"
	"scriptor/internal/core/apperror"
	"scriptor/internal/core/model"
	"scriptor/internal/server"
)

var flagServeDatabase string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API against one database",
	Long: `Starts the API server bound to a single database for its whole
lifetime. Every request gets its own transaction, released when the
request finishes; only handlers that commit explicitly keep their
writes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := runContext(cmd.Context())

		database := flagServeDatabase
		if database == "" {
			database = cfg.DBName
		}
		if database == "" {
			return apperror.NewValidation(
				"no database provided; use --database or set db_name in the configuration file")
		}
		if cfg.HTTP.JWTSecret == "" {
			return apperror.NewValidation("http.jwt_secret must be configured")
		}

		mgr, err := newManager(ctx)
		if err != nil {
			return err
		}
		defer mgr.Close()

		// Fail at startup, not on the first request.
		exists, err := mgr.Exists(ctx, database)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NewDatabaseNotFound(database)
		}
		if err := mgr.Compatible(ctx, database); err != nil {
			return err
		}

		jwtCfg := auth.DefaultJWTConfig(cfg.HTTP.JWTSecret)
		if cfg.HTTP.TokenTTL > 0 {
			jwtCfg.TokenTTL = cfg.HTTP.TokenTTL
		}
		jwtService := auth.NewJWTService(jwtCfg)

		router := server.NewRouter(server.RouterConfig{
			Manager:     mgr,
			Resolver:    model.Default(),
			Database:    database,
			Logger:      log.WithComponent("http"),
			TokenAuth:   jwtService,
			AuthService: auth.NewService(jwtService),
		})

		srv := server.New(
			server.DefaultConfig(fmt.Sprintf(":%d", cfg.HTTP.Port)),
			router,
			log.WithComponent("server"),
		)
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&flagServeDatabase, "database", "d", "", "database to serve")
	rootCmd.AddCommand(serveCmd)
}
