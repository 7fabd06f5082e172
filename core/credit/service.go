package credit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/credikids/credikids/core"
)

var ErrNotFound = errors.New("bonus not found")

type (
	Repository interface {
		CreateBonus(ctx context.Context, b Bonus, exec ...core.DBExecutor) (Bonus, error)
		// QueryBonuses lists a user's bonuses, newest first. userID 0 matches
		// all users.
		QueryBonuses(ctx context.Context, userID int, exec ...core.DBExecutor) ([]Bonus, error)
	}

	// UserDirectory is the slice of the user repository this service needs.
	UserDirectory interface {
		AdjustUserScore(ctx context.Context, id, delta int, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		db    core.DB
		repo  Repository
		users UserDirectory
	}
)

func NewService(db core.DB, repo Repository, users UserDirectory) *Service {
	return &Service{db: db, repo: repo, users: users}
}

// PostBonus applies the signed delta to the user's balance and records the
// entry atomically. Returns the bonus and the new balance.
func (svc *Service) PostBonus(ctx context.Context, nb NewBonus, grantedBy int) (Bonus, int, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Bonus{}, 0, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	newScore, err := svc.users.AdjustUserScore(ctx, nb.UserID, nb.Credits, tx)
	if err != nil {
		return Bonus{}, 0, errors.Wrap(err, "adjusting score")
	}

	b, err := svc.repo.CreateBonus(ctx, Bonus{
		UserID:      nb.UserID,
		Credits:     nb.Credits,
		Reason:      nb.Reason,
		GrantedByID: grantedBy,
		CreatedAt:   time.Now().UTC(),
	}, tx)
	if err != nil {
		return Bonus{}, 0, errors.Wrap(err, "creating bonus")
	}
	if err := tx.Commit(); err != nil {
		return Bonus{}, 0, errors.Wrap(err, "committing tx")
	}
	return b, newScore, nil
}

// QueryByUser lists a user's bonuses; userID 0 lists everyone's.
func (svc *Service) QueryByUser(ctx context.Context, userID int) ([]Bonus, error) {
	return svc.repo.QueryBonuses(ctx, userID)
}
