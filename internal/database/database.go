package database

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// sqlitePragmas keep concurrent writers waiting on the file lock instead of
// failing immediately with SQLITE_BUSY.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"

const slowQueryThreshold = 200 * time.Millisecond

func Connect(dsn string) (*gorm.DB, error) {
	if isPostgres(dsn) {
		pgCfg, err := pgconn.ParseConfig(dsn)
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"host":     pgCfg.Host,
			"database": pgCfg.Database,
			"user":     pgCfg.User,
		}).Info("connecting to PostgreSQL")
		return gorm.Open(postgres.Open(dsn), gormConfig())
	}

	log.WithField("dsn", dsn).Info("using SQLite")

	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        sqliteDSN(dsn),
		}),
		gormConfig(),
	)
	if err != nil {
		return nil, err
	}

	// Every connection to ":memory:" is its own database.
	if strings.Contains(dsn, ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// gormConfig sends gorm's own logging through logrus. SQL statements are
// only logged at debug level.
func gormConfig() *gorm.Config {
	level := logger.Warn
	if log.IsLevelEnabled(log.DebugLevel) {
		level = logger.Info
	}
	return &gorm.Config{
		Logger: logger.New(log.StandardLogger(), logger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}
