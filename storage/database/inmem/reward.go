package inmemdb

import (
	"context"
	"sort"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/reward"
)

type rewardRepository struct {
	db *DB
}

var _ reward.Repository = (*rewardRepository)(nil)

func NewRewardRepository(db *DB) *rewardRepository {
	return &rewardRepository{db: db}
}

func (repo *rewardRepository) CreateReward(_ context.Context, rw reward.Reward, _ ...core.DBExecutor) (reward.Reward, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rw.ID = repo.db.nextPK()
	repo.db.rewards[rw.ID] = &rw
	return rw, nil
}

func (repo *rewardRepository) GetRewardByID(_ context.Context, id int, _ ...core.DBExecutor) (reward.Reward, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rw, ok := repo.db.rewards[id]; ok {
		return *rw, nil
	}
	return reward.Reward{}, reward.ErrNotFound
}

func (repo *rewardRepository) QueryRewards(_ context.Context, activeOnly bool, _ ...core.DBExecutor) ([]reward.Reward, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rewards := make([]reward.Reward, 0, len(repo.db.rewards))
	for _, rw := range repo.db.rewards {
		if activeOnly && !rw.IsActive {
			continue
		}
		rewards = append(rewards, *rw)
	}
	sort.Slice(rewards, func(i, j int) bool { return rewards[i].ID < rewards[j].ID })
	return rewards, nil
}

func (repo *rewardRepository) UpdateReward(_ context.Context, rw reward.Reward, _ ...core.DBExecutor) (reward.Reward, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rewards[rw.ID]; !ok {
		return reward.Reward{}, reward.ErrNotFound
	}
	repo.db.rewards[rw.ID] = &rw
	return rw, nil
}

func (repo *rewardRepository) DecrementStock(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rw, ok := repo.db.rewards[id]
	if !ok {
		return reward.ErrNotFound
	}
	if !rw.Stock.Valid {
		return nil
	}
	if rw.Stock.Int <= 0 {
		return reward.ErrOutOfStock
	}
	rw.Stock.Int--
	return nil
}

func (repo *rewardRepository) CreateRedemption(_ context.Context, rd reward.Redemption, _ ...core.DBExecutor) (reward.Redemption, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rd.ID = repo.db.nextPK()
	repo.db.redemptions[rd.ID] = &rd
	return rd, nil
}

func (repo *rewardRepository) GetRedemptionByID(_ context.Context, id int, _ ...core.DBExecutor) (reward.Redemption, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rd, ok := repo.db.redemptions[id]; ok {
		return *rd, nil
	}
	return reward.Redemption{}, reward.ErrRedemptionNotFound
}

func (repo *rewardRepository) QueryRedemptions(_ context.Context, userID int, status string, _ ...core.DBExecutor) ([]reward.Redemption, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	redemptions := make([]reward.Redemption, 0, len(repo.db.redemptions))
	for _, rd := range repo.db.redemptions {
		if userID != 0 && rd.UserID != userID {
			continue
		}
		if status != "" && rd.Status != status {
			continue
		}
		redemptions = append(redemptions, *rd)
	}
	sort.Slice(redemptions, func(i, j int) bool { return redemptions[i].ID > redemptions[j].ID })
	return redemptions, nil
}

func (repo *rewardRepository) UpdateRedemption(_ context.Context, rd reward.Redemption, _ ...core.DBExecutor) (reward.Redemption, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.redemptions[rd.ID]; !ok {
		return reward.Redemption{}, reward.ErrRedemptionNotFound
	}
	repo.db.redemptions[rd.ID] = &rd
	return rd, nil
}

func (repo *rewardRepository) SumPendingCredits(_ context.Context, userID int, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var sum int
	for _, rd := range repo.db.redemptions {
		if rd.UserID == userID && rd.Status == reward.RedemptionPending {
			sum += rd.CreditsSpent
		}
	}
	return sum, nil
}

func (repo *rewardRepository) CountPendingByReward(_ context.Context, rewardID int, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var cnt int
	for _, rd := range repo.db.redemptions {
		if rd.RewardID == rewardID && rd.Status == reward.RedemptionPending {
			cnt++
		}
	}
	return cnt, nil
}
