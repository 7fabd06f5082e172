// Package inmemdb provides a mutex-guarded in-memory store satisfying the
// repository interfaces, used by service tests in place of Postgres.
package inmemdb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/credit"
	"github.com/credikids/credikids/core/reward"
	"github.com/credikids/credikids/core/task"
	"github.com/credikids/credikids/core/user"
)

type DB struct {
	mutex sync.RWMutex
	pk    int

	users       map[int]*user.User
	icons       []user.Icon
	tasks       map[int]*task.Task
	assignments map[int]*task.Assignment
	completions map[int]*task.Completion
	proposals   map[int]*task.Proposal
	rewards     map[int]*reward.Reward
	redemptions map[int]*reward.Redemption
	bonuses     map[int]*credit.Bonus
}

var _ core.DB = (*DB)(nil)

func NewDB() *DB {
	return &DB{
		users:       make(map[int]*user.User),
		tasks:       make(map[int]*task.Task),
		assignments: make(map[int]*task.Assignment),
		completions: make(map[int]*task.Completion),
		proposals:   make(map[int]*task.Proposal),
		rewards:     make(map[int]*reward.Reward),
		redemptions: make(map[int]*reward.Redemption),
		bonuses:     make(map[int]*credit.Bonus),
	}
}

// nextPK must be called with the write lock held.
func (db *DB) nextPK() int {
	db.pk++
	return db.pk
}

func (db *DB) SeedIcons(icons ...user.Icon) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	for _, icon := range icons {
		icon.ID = db.nextPK()
		db.icons = append(db.icons, icon)
	}
}

// The raw SQL surface is never exercised in-memory; repositories go straight
// to the maps.
func (db *DB) Exec(string, ...interface{}) (sql.Result, error)                    { return nil, nil }
func (db *DB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (db *DB) Query(string, ...interface{}) (*sql.Rows, error) { return nil, nil }
func (db *DB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (db *DB) QueryRow(string, ...interface{}) *sql.Row                     { return nil }
func (db *DB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }

func (db *DB) BeginTx(context.Context, *sql.TxOptions) (core.DBTransactor, error) {
	return noopTx{db}, nil
}

// noopTx applies writes immediately; rollback is not supported in-memory.
type noopTx struct {
	*DB
}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }
