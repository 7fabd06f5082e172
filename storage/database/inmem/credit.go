package inmemdb

import (
	"context"
	"sort"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/credit"
)

type creditRepository struct {
	db *DB
}

var _ credit.Repository = (*creditRepository)(nil)

func NewCreditRepository(db *DB) *creditRepository {
	return &creditRepository{db: db}
}

func (repo *creditRepository) CreateBonus(_ context.Context, b credit.Bonus, _ ...core.DBExecutor) (credit.Bonus, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	b.ID = repo.db.nextPK()
	repo.db.bonuses[b.ID] = &b
	return b, nil
}

func (repo *creditRepository) QueryBonuses(_ context.Context, userID int, _ ...core.DBExecutor) ([]credit.Bonus, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	bonuses := make([]credit.Bonus, 0, len(repo.db.bonuses))
	for _, b := range repo.db.bonuses {
		if userID != 0 && b.UserID != userID {
			continue
		}
		bonuses = append(bonuses, *b)
	}
	sort.Slice(bonuses, func(i, j int) bool { return bonuses[i].ID > bonuses[j].ID })
	return bonuses, nil
}
