// Package database manages connections to the named business databases and
// answers existence/compatibility probes against the storage catalog.
// Databases are addressed by name; each gets its own lazily created pool.
package database

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"scriptor/internal/core/env"
	"scriptor/pkg/logger"
)

// ManagerConfig configures Manager behavior.
type ManagerConfig struct {
	// Database server credentials
	Host     string
	Port     int
	User     string
	Password string

	// AdminDB is the maintenance database used for catalog probes.
	AdminDB string

	// Pool settings (per database)
	MaxConnsPerDB int32
	MinConnsPerDB int32

	ConnectTimeout time.Duration

	// Lifecycle settings
	MaxTotalPools     int           // Max simultaneous pools (0 = unlimited)
	PoolIdleTimeout   time.Duration // Close pool after inactivity (0 = never)
	HealthCheckPeriod time.Duration
}

// DefaultManagerConfig returns production-safe defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Host:              "localhost",
		Port:              5432,
		AdminDB:           "postgres",
		MaxConnsPerDB:     10,
		MinConnsPerDB:     2,
		ConnectTimeout:    10 * time.Second,
		MaxTotalPools:     100,
		PoolIdleTimeout:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

// DSN builds the connection string for the named database.
func (c ManagerConfig) DSN(database string) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, database,
	)
}

// managedPool wraps pgxpool.Pool with lifecycle tracking.
type managedPool struct {
	pool     *pgxpool.Pool
	database string
	lastUsed atomic.Int64 // Unix timestamp
	refCount atomic.Int32 // Sessions currently held from this pool
}

func (mp *managedPool) touch() {
	mp.lastUsed.Store(time.Now().Unix())
}

// Manager manages connection pools for the named databases.
// Thread-safe for concurrent access.
type Manager struct {
	config ManagerConfig

	admin     *pgxpool.Pool
	pools     sync.Map // map[database]*managedPool
	poolCount atomic.Int32
	closed    atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logger.Logger
}

// NewManager connects to the maintenance database and starts the pool
// eviction loop. Call Close to shut everything down.
func NewManager(ctx context.Context, cfg ManagerConfig, log *logger.Logger) (*Manager, error) {
	adminCfg, err := pgxpool.ParseConfig(cfg.DSN(cfg.AdminDB))
	if err != nil {
		return nil, fmt.Errorf("parse admin dsn: %w", err)
	}
	adminCfg.MaxConns = 2
	adminCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	admin, err := pgxpool.NewWithConfig(ctx, adminCfg)
	if err != nil {
		return nil, fmt.Errorf("create admin pool: %w", err)
	}

	mctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config: cfg,
		admin:  admin,
		ctx:    mctx,
		cancel: cancel,
		log:    log.WithComponent("database-manager"),
	}

	if cfg.PoolIdleTimeout > 0 {
		m.wg.Add(1)
		go m.evictionLoop()
	}

	return m, nil
}

// Admin returns the maintenance database pool used for catalog probes.
func (m *Manager) Admin() *pgxpool.Pool { return m.admin }

// AcquireSession hands out one exclusively held connection on the named
// database, creating the pool if needed. Implements env.Source.
func (m *Manager) AcquireSession(ctx context.Context, database string) (env.Session, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	mp, err := m.getPool(ctx, database)
	if err != nil {
		return nil, err
	}

	conn, err := mp.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection on %s: %w", database, err)
	}

	mp.refCount.Add(1)
	mp.touch()
	return &pgxSession{conn: conn, owner: mp}, nil
}

// getPool returns the pool for database, creating if needed.
func (m *Manager) getPool(ctx context.Context, database string) (*managedPool, error) {
	if val, ok := m.pools.Load(database); ok {
		mp := val.(*managedPool)
		mp.touch()
		return mp, nil
	}
	return m.createPool(ctx, database)
}

func (m *Manager) createPool(ctx context.Context, database string) (*managedPool, error) {
	if m.config.MaxTotalPools > 0 && int(m.poolCount.Load()) >= m.config.MaxTotalPools {
		return nil, fmt.Errorf("%w (%d)", ErrMaxPoolLimit, m.config.MaxTotalPools)
	}

	poolCfg, err := pgxpool.ParseConfig(m.config.DSN(database))
	if err != nil {
		return nil, fmt.Errorf("parse dsn for %s: %w", database, err)
	}

	poolCfg.MaxConns = m.config.MaxConnsPerDB
	poolCfg.MinConns = m.config.MinConnsPerDB
	poolCfg.HealthCheckPeriod = m.config.HealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = m.config.ConnectTimeout

	createCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(createCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool for %s: %w", database, err)
	}

	if err := pool.Ping(createCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", database, err)
	}

	mp := &managedPool{pool: pool, database: database}
	mp.touch()

	// Another goroutine might have created the pool first.
	actual, loaded := m.pools.LoadOrStore(database, mp)
	if loaded {
		pool.Close()
		return actual.(*managedPool), nil
	}

	m.poolCount.Add(1)
	m.log.Infow("created pool",
		"database", database,
		"total_pools", m.poolCount.Load(),
	)
	return mp, nil
}

func (m *Manager) evictionLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PoolIdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.evictIdlePools()
		}
	}
}

func (m *Manager) evictIdlePools() {
	threshold := time.Now().Add(-m.config.PoolIdleTimeout).Unix()

	m.pools.Range(func(key, value any) bool {
		mp := value.(*managedPool)

		// Never evict while sessions are held from it.
		if mp.refCount.Load() > 0 {
			return true
		}
		if mp.lastUsed.Load() < threshold {
			m.pools.Delete(key)
			mp.pool.Close()
			m.poolCount.Add(-1)
			m.log.Infow("closed idle pool", "database", mp.database)
		}
		return true
	})
}

// Close shuts down all pools. Held sessions become unusable.
func (m *Manager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	m.cancel()
	m.wg.Wait()

	m.pools.Range(func(key, value any) bool {
		value.(*managedPool).pool.Close()
		return true
	})
	m.admin.Close()
	m.log.Info("database manager closed")
}

var _ env.Source = (*Manager)(nil)
