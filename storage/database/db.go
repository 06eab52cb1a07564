package database

import (
	"context"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/repoacademico/repositorio/core"
)

const driverName = "mysql"

var sleepFunc = time.Sleep // mockable

// Open opens the configured MySQL database and waits for it to answer.
func Open(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	dsn, err := conf.Database.DSN()
	if err != nil {
		return nil, errors.Wrap(err, "building dsn")
	}
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	// admin commands work on one connection at a time
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	if err := ping(ctx, db, conf.Database.PingAttempts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db core.DB, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		if attempts < maxAttempts {
			sleepFunc(time.Duration(attempts) * 100 * time.Millisecond)
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

// WithSession runs fn on a single dedicated connection and always releases it.
func WithSession(ctx context.Context, db *sqlx.DB, fn func(sess *Session) error) error {
	conn, err := db.Connx(ctx)
	if err != nil {
		return errors.Wrap(err, "acquiring connection")
	}
	defer func() { _ = conn.Close() }()
	return fn(NewSession(conn))
}
