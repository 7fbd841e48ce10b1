package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

// Client owns the process-wide GORM handle.
type Client struct {
	conn   *gorm.DB
	driver string
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TxRunner is the transactional surface services depend on.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// New opens postgres or sqlite per cfg, sizes the pool and verifies the
// connection.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	driver := config.DBDriverPostgres
	if cfg.IsSQLite() {
		driver = config.DBDriverSQLite
	}

	dialector, err := openDialector(driver, cfg)
	if err != nil {
		return nil, err
	}
	conn, err := gorm.Open(dialector, GormConfig(logg, cfg.SlowQueryThreshold))
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", driver, err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}

	switch driver {
	case config.DBDriverSQLite:
		// sqlite serialises writers; one connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	default:
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{"db_driver": driver, "db_max_open": sqlDB.Stats().MaxOpenConnections}), "db.connected")
	return &Client{conn: conn, driver: driver}, nil
}

// NewFromConn wraps an already opened GORM handle.
func NewFromConn(conn *gorm.DB) *Client {
	driver := config.DBDriverPostgres
	if conn != nil && conn.Dialector != nil && conn.Dialector.Name() == "sqlite" {
		driver = config.DBDriverSQLite
	}
	return &Client{conn: conn, driver: driver}
}

// GormConfig is shared by the API, the migrate command and test databases.
// Timestamps are always UTC.
func GormConfig(logg *logger.Logger, slow time.Duration) *gorm.Config {
	return &gorm.Config{
		Logger:                 newGormLogger(logg, slow),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}

func openDialector(driver string, cfg config.DBConfig) (gorm.Dialector, error) {
	if driver == config.DBDriverSQLite {
		return sqlite.Open(cfg.DSN), nil
	}
	dsn, err := withStatementTimeout(cfg.DSN, cfg.StatementTimeout.Milliseconds())
	if err != nil {
		return nil, err
	}
	return postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), nil
}

// withStatementTimeout sets a server side statement_timeout unless the DSN
// already carries one. Both URL and key=value DSNs are handled.
func withStatementTimeout(dsn string, millis int64) (string, error) {
	if millis <= 0 || strings.Contains(dsn, "statement_timeout") {
		return dsn, nil
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return dsn + " statement_timeout=" + strconv.FormatInt(millis, 10), nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parsing database DSN: %w", err)
	}
	q := u.Query()
	q.Set("statement_timeout", strconv.FormatInt(millis, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DB returns the underlying GORM connection.
func (c *Client) DB() *gorm.DB {
	return c.conn
}

// Driver is "postgres" or "sqlite".
func (c *Client) Driver() string {
	return c.driver
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction. A returned error or a panic rolls back;
// typed errors from fn come back unchanged.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
