package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/user"
)

// execer is what a repository needs from an sqlx handle; both *sqlx.DB and
// *sqlx.Tx satisfy it. Service-layer code only carries core.DBExecutor, so
// repositories assert back to it.
type execer interface {
	core.DBExecutor
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func getExec(dflt core.DBExecutor, svcExec []core.DBExecutor) execer {
	if len(svcExec) > 0 {
		return svcExec[0].(execer)
	}
	return dflt.(execer)
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

type userRow struct {
	ID         int       `db:"id"`
	Nick       string    `db:"nick"`
	Figure     string    `db:"figure"`
	AccessCode string    `db:"access_code"`
	Role       string    `db:"role"`
	Score      int       `db:"score"`
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (repo userRepository) unrow(r userRow) user.User {
	return user.User{
		ID:         r.ID,
		Nick:       r.Nick,
		Figure:     r.Figure,
		AccessCode: r.AccessCode,
		Role:       r.Role,
		Score:      r.Score,
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (repo userRepository) unrowSlice(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, repo.unrow(r))
	}
	return users
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUniqueness(ctx context.Context, nick, accessCode string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	exe := getExec(repo.exec, exec)

	exclIDs := make([]int, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		exclIDs = append(exclIDs, u.ID)
	}
	exclIDs = append(exclIDs, 0) // keep the NOT IN clause valid when empty

	check := func(column, value string) (bool, error) {
		if value == "" {
			return false, nil
		}
		q, args, err := sqlx.In(
			`SELECT EXISTS (SELECT 1 FROM "user" WHERE `+column+` = ? AND id NOT IN (?))`, value, exclIDs)
		if err != nil {
			return false, err
		}
		var exists bool
		if err := exe.GetContext(ctx, &exists, exe.Rebind(q), args...); err != nil {
			return false, err
		}
		return exists, nil
	}

	taken, err := check("nick", nick)
	if err != nil {
		return errors.Wrap(err, "checking nick uniqueness")
	}
	if taken {
		return user.ErrNickExists
	}

	taken, err = check("access_code", accessCode)
	if err != nil {
		return errors.Wrap(err, "checking access code uniqueness")
	}
	if taken {
		return user.ErrAccessCodeExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	var r userRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`INSERT INTO "user" (nick, figure, access_code, role, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING *`,
		usr.Nick, usr.Figure, usr.AccessCode, usr.Role, usr.IsActive, usr.CreatedAt, usr.UpdatedAt)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unrow(r), nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context, exec ...core.DBExecutor) ([]user.User, error) {
	var rows []userRow
	err := getExec(repo.exec, exec).SelectContext(ctx, &rows, `SELECT * FROM "user" ORDER BY nick`)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unrowSlice(rows), nil
}

func (repo userRepository) QueryUsersByID(ctx context.Context, ids []int, exec ...core.DBExecutor) ([]user.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	exe := getExec(repo.exec, exec)

	q, args, err := sqlx.In(`SELECT * FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying users by ID")
	}
	var rows []userRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users by ID")
	}
	return repo.unrowSlice(rows), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int, exec ...core.DBExecutor) (user.User, error) {
	var r userRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r, `SELECT * FROM "user" WHERE id = $1`, id)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user by ID")
	}
	return repo.unrow(r), nil
}

func (repo userRepository) GetUserByAccessCode(ctx context.Context, code string, exec ...core.DBExecutor) (user.User, error) {
	var r userRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r, `SELECT * FROM "user" WHERE access_code = $1`, code)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user by access code")
	}
	return repo.unrow(r), nil
}

// UpdateUser only saves set fields.
func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool, exec ...core.DBExecutor) (user.User, error) {
	var r userRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`UPDATE "user" SET
			nick        = COALESCE(NULLIF($2, ''), nick),
			figure      = COALESCE(NULLIF($3, ''), figure),
			access_code = COALESCE(NULLIF($4, ''), access_code),
			role        = COALESCE(NULLIF($5, ''), role),
			is_active   = COALESCE($6, is_active),
			updated_at  = $7
		 WHERE id = $1
		 RETURNING *`,
		usr.ID, usr.Nick, usr.Figure, usr.AccessCode, usr.Role, isActive, usr.UpdatedAt)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return repo.unrow(r), nil
}

func (repo userRepository) AdjustUserScore(ctx context.Context, id, delta int, exec ...core.DBExecutor) (int, error) {
	var score int
	err := getExec(repo.exec, exec).GetContext(ctx, &score,
		`UPDATE "user" SET score = score + $2, updated_at = now() WHERE id = $1 RETURNING score`, id, delta)
	if err != nil {
		return 0, repo.trapNoRowsErr(err, "adjusting user score")
	}
	return score, nil
}

func (repo userRepository) GetUserScoreForUpdate(ctx context.Context, id int, exec ...core.DBExecutor) (int, error) {
	var score int
	err := getExec(repo.exec, exec).GetContext(ctx, &score,
		`SELECT score FROM "user" WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return 0, repo.trapNoRowsErr(err, "locking user score")
	}
	return score, nil
}

func (repo userRepository) QueryIcons(ctx context.Context, exec ...core.DBExecutor) ([]user.Icon, error) {
	var rows []struct {
		ID           int    `db:"id"`
		Name         string `db:"name"`
		IconPath     string `db:"icon_path"`
		DisplayOrder int    `db:"display_order"`
	}
	err := getExec(repo.exec, exec).SelectContext(ctx, &rows, `SELECT * FROM icon ORDER BY display_order, id`)
	if err != nil {
		return nil, errors.Wrap(err, "querying icons")
	}
	icons := make([]user.Icon, 0, len(rows))
	for _, r := range rows {
		icons = append(icons, user.Icon{ID: r.ID, Name: r.Name, IconPath: r.IconPath, DisplayOrder: r.DisplayOrder})
	}
	return icons, nil
}
