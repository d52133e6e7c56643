package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenPostgres connects to dsn, retrying with exponential backoff until the
// database answers a ping or attempts run out.
func OpenPostgres(ctx context.Context, dsn string, attempts uint64, log *slog.Logger) (*gorm.DB, error) {
	var db *gorm.DB
	backoff := retry.WithMaxRetries(attempts, retry.NewExponential(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			log.Warn("database connection failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			log.Warn("database ping failed, retrying", "error", err)
			_ = sqlDB.Close()
			return retry.RetryableError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("attempts", attempts).Wrap(err)
	}
	return db, nil
}
