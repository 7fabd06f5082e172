package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/credit"
)

type creditRepository struct {
	exec core.DBExecutor
}

var _ credit.Repository = (*creditRepository)(nil) // interface compliance check

func NewCreditRepository(exec core.DBExecutor) *creditRepository {
	return &creditRepository{exec: exec}
}

type bonusRow struct {
	ID          int       `db:"id"`
	UserID      int       `db:"user_id"`
	Credits     int       `db:"credits"`
	Reason      string    `db:"reason"`
	GrantedByID int       `db:"granted_by_id"`
	CreatedAt   time.Time `db:"created_at"`
}

func (repo creditRepository) CreateBonus(ctx context.Context, b credit.Bonus, exec ...core.DBExecutor) (credit.Bonus, error) {
	var r bonusRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`INSERT INTO bonus (user_id, credits, reason, granted_by_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING *`,
		b.UserID, b.Credits, b.Reason, b.GrantedByID, b.CreatedAt)
	if err != nil {
		return credit.Bonus{}, errors.Wrap(err, "inserting bonus")
	}
	return credit.Bonus(r), nil
}

func (repo creditRepository) QueryBonuses(ctx context.Context, userID int, exec ...core.DBExecutor) ([]credit.Bonus, error) {
	q := `SELECT * FROM bonus`
	var args []interface{}
	if userID != 0 {
		q += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	q += ` ORDER BY created_at DESC`

	var rows []bonusRow
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying bonuses")
	}
	bonuses := make([]credit.Bonus, 0, len(rows))
	for _, r := range rows {
		bonuses = append(bonuses, credit.Bonus(r))
	}
	return bonuses, nil
}
