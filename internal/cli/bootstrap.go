package cli

import (
	"context"
	"time"

	"scriptor/internal/audit"
	"scriptor/internal/core/database"
	"scriptor/internal/core/lifecycle"
	"scriptor/internal/core/model"
	"scriptor/pkg/logger"
)

func managerConfig() database.ManagerConfig {
	mc := database.DefaultManagerConfig()
	mc.Host = cfg.DBHost
	mc.Port = cfg.DBPort
	mc.User = cfg.DBUser
	mc.Password = cfg.DBPassword
	mc.AdminDB = cfg.AdminDB
	if cfg.MaxConnsPerDB > 0 {
		mc.MaxConnsPerDB = int32(cfg.MaxConnsPerDB)
	}
	if cfg.MaxTotalPools > 0 {
		mc.MaxTotalPools = cfg.MaxTotalPools
	}
	if cfg.PoolIdleTimeout > 0 {
		mc.PoolIdleTimeout = cfg.PoolIdleTimeout
	}
	return mc
}

func newManager(ctx context.Context) (*database.Manager, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return database.NewManager(connectCtx, managerConfig(), log.WithComponent("database"))
}

func newRunner(m *database.Manager) (*lifecycle.Runner, error) {
	opts := []lifecycle.RunnerOption{
		lifecycle.WithLogger(log.WithComponent("lifecycle")),
	}

	if cfg.CommitGuard != "" {
		guard, err := lifecycle.NewGuard(cfg.CommitGuard)
		if err != nil {
			return nil, err
		}
		opts = append(opts, lifecycle.WithGuard(guard))
	}

	if cfg.AuditEnabled {
		store, err := audit.NewStore(m)
		if err != nil {
			return nil, err
		}
		opts = append(opts, lifecycle.WithRecorder(store))
	}

	return lifecycle.NewRunner(m, model.Default(), opts...), nil
}

// runContext threads the logger so downstream code picks it up from ctx.
func runContext(ctx context.Context) context.Context {
	return logger.WithLogger(ctx, log)
}
