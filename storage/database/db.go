package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/credikids/credikids/core"
	appfs "github.com/credikids/credikids/fs"
)

// DB adapts an sqlx handle to core.DB.
type DB struct {
	*sqlx.DB
}

var _ core.DB = (*DB)(nil)

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.DBTransactor, error) {
	return db.DB.BeginTxx(ctx, opts)
}

func open(dbName string, conf *core.Config) (*DB, error) {
	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     url.UserPassword(conf.Database.User, conf.Database.Password),
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	db, err := sqlx.Open(conf.Database.Engine, u.String())
	if err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func Open(conf *core.Config) (*DB, error) {
	return open(conf.Database.Name, conf)
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func createDB(db *DB, conf *core.Config) error {
	// check if DB exists
	var exists bool
	rows, err := db.Query(fmt.Sprintf("SELECT true FROM pg_database WHERE datname='%s'", conf.Database.Name))
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err = rows.Scan(&exists); err != nil {
			return errors.Wrap(err, "checking DB")
		}
	}
	if err = rows.Err(); err != nil {
		return errors.Wrap(err, "checking DB")
	}

	// create DB if not exist
	if !exists {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

func CreateIfNotExist(conf *core.Config) error {
	db, err := open("postgres", conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	return createDB(db, conf)
}

func Migrate(db *DB) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.Up(db.DB.DB, "migrations"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
