package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/reward"
)

type rewardRepository struct {
	exec core.DBExecutor
}

var _ reward.Repository = (*rewardRepository)(nil) // interface compliance check

func NewRewardRepository(exec core.DBExecutor) *rewardRepository {
	return &rewardRepository{exec: exec}
}

type (
	rewardRow struct {
		ID          int       `db:"id"`
		Name        string    `db:"name"`
		Description string    `db:"description"`
		Cost        int       `db:"cost"`
		Stock       null.Int  `db:"stock"`
		IsActive    bool      `db:"is_active"`
		CreatedByID int       `db:"created_by_id"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	redemptionRow struct {
		ID              int         `db:"id"`
		RewardID        int         `db:"reward_id"`
		UserID          int         `db:"user_id"`
		CreditsSpent    int         `db:"credits_spent"`
		Status          string      `db:"status"`
		Notes           null.String `db:"notes"`
		ApprovedByID    null.Int    `db:"approved_by_id"`
		ApprovedAt      null.Time   `db:"approved_at"`
		RejectionReason null.String `db:"rejection_reason"`
		RedeemedAt      time.Time   `db:"redeemed_at"`
	}
)

func (repo rewardRepository) unrowReward(r rewardRow) reward.Reward {
	return reward.Reward{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Cost:        r.Cost,
		Stock:       r.Stock,
		IsActive:    r.IsActive,
		CreatedByID: r.CreatedByID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (repo rewardRepository) unrowRedemption(r redemptionRow) reward.Redemption {
	return reward.Redemption(r)
}

func (repo rewardRepository) CreateReward(ctx context.Context, rw reward.Reward, exec ...core.DBExecutor) (reward.Reward, error) {
	var r rewardRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`INSERT INTO reward (name, description, cost, stock, is_active, created_by_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING *`,
		rw.Name, rw.Description, rw.Cost, rw.Stock, rw.IsActive, rw.CreatedByID, rw.CreatedAt, rw.UpdatedAt)
	if err != nil {
		return reward.Reward{}, errors.Wrap(err, "inserting reward")
	}
	return repo.unrowReward(r), nil
}

func (repo rewardRepository) GetRewardByID(ctx context.Context, id int, exec ...core.DBExecutor) (reward.Reward, error) {
	var r rewardRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r, `SELECT * FROM reward WHERE id = $1`, id)
	if err != nil {
		return reward.Reward{}, trapNoRows(err, reward.ErrNotFound, "finding reward by ID")
	}
	return repo.unrowReward(r), nil
}

func (repo rewardRepository) QueryRewards(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]reward.Reward, error) {
	q := `SELECT * FROM reward`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY cost, id`

	var rows []rewardRow
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying rewards")
	}
	rewards := make([]reward.Reward, 0, len(rows))
	for _, r := range rows {
		rewards = append(rewards, repo.unrowReward(r))
	}
	return rewards, nil
}

func (repo rewardRepository) UpdateReward(ctx context.Context, rw reward.Reward, exec ...core.DBExecutor) (reward.Reward, error) {
	var r rewardRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`UPDATE reward SET name = $2, description = $3, cost = $4, stock = $5, is_active = $6, updated_at = $7
		 WHERE id = $1
		 RETURNING *`,
		rw.ID, rw.Name, rw.Description, rw.Cost, rw.Stock, rw.IsActive, rw.UpdatedAt)
	if err != nil {
		return reward.Reward{}, trapNoRows(err, reward.ErrNotFound, "updating reward")
	}
	return repo.unrowReward(r), nil
}

func (repo rewardRepository) DecrementStock(ctx context.Context, id int, exec ...core.DBExecutor) error {
	exe := getExec(repo.exec, exec)

	res, err := exe.ExecContext(ctx,
		`UPDATE reward SET stock = stock - 1, updated_at = now() WHERE id = $1 AND stock > 0`, id)
	if err != nil {
		return errors.Wrap(err, "decrementing stock")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt > 0 {
		return nil
	}

	// nothing updated: unlimited supply (NULL stock) is fine, a tracked
	// zero is not
	var stock null.Int
	if err := exe.GetContext(ctx, &stock, `SELECT stock FROM reward WHERE id = $1`, id); err != nil {
		return trapNoRows(err, reward.ErrNotFound, "checking stock")
	}
	if stock.Valid {
		return reward.ErrOutOfStock
	}
	return nil
}

func (repo rewardRepository) CreateRedemption(ctx context.Context, rd reward.Redemption, exec ...core.DBExecutor) (reward.Redemption, error) {
	var r redemptionRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`INSERT INTO redemption (reward_id, user_id, credits_spent, status, notes, redeemed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING *`,
		rd.RewardID, rd.UserID, rd.CreditsSpent, rd.Status, rd.Notes, rd.RedeemedAt)
	if err != nil {
		return reward.Redemption{}, errors.Wrap(err, "inserting redemption")
	}
	return repo.unrowRedemption(r), nil
}

func (repo rewardRepository) GetRedemptionByID(ctx context.Context, id int, exec ...core.DBExecutor) (reward.Redemption, error) {
	var r redemptionRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r, `SELECT * FROM redemption WHERE id = $1`, id)
	if err != nil {
		return reward.Redemption{}, trapNoRows(err, reward.ErrRedemptionNotFound, "finding redemption by ID")
	}
	return repo.unrowRedemption(r), nil
}

func (repo rewardRepository) QueryRedemptions(ctx context.Context, userID int, status string, exec ...core.DBExecutor) ([]reward.Redemption, error) {
	q := `SELECT * FROM redemption`
	var (
		clauses []string
		args    []interface{}
	)
	if userID != 0 {
		clauses = append(clauses, "user_id = ?")
		args = append(args, userID)
	}
	if status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, status)
	}
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY redeemed_at DESC"

	exe := getExec(repo.exec, exec)
	var rows []redemptionRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying redemptions")
	}
	redemptions := make([]reward.Redemption, 0, len(rows))
	for _, r := range rows {
		redemptions = append(redemptions, repo.unrowRedemption(r))
	}
	return redemptions, nil
}

func (repo rewardRepository) UpdateRedemption(ctx context.Context, rd reward.Redemption, exec ...core.DBExecutor) (reward.Redemption, error) {
	var r redemptionRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`UPDATE redemption SET status = $2, approved_by_id = $3, approved_at = $4, rejection_reason = $5
		 WHERE id = $1
		 RETURNING *`,
		rd.ID, rd.Status, rd.ApprovedByID, rd.ApprovedAt, rd.RejectionReason)
	if err != nil {
		return reward.Redemption{}, trapNoRows(err, reward.ErrRedemptionNotFound, "updating redemption")
	}
	return repo.unrowRedemption(r), nil
}

func (repo rewardRepository) SumPendingCredits(ctx context.Context, userID int, exec ...core.DBExecutor) (int, error) {
	var sum int
	err := getExec(repo.exec, exec).GetContext(ctx, &sum,
		`SELECT COALESCE(SUM(credits_spent), 0) FROM redemption WHERE user_id = $1 AND status = 'pending'`, userID)
	if err != nil {
		return 0, errors.Wrap(err, "summing pending credits")
	}
	return sum, nil
}

func (repo rewardRepository) CountPendingByReward(ctx context.Context, rewardID int, exec ...core.DBExecutor) (int, error) {
	var cnt int
	err := getExec(repo.exec, exec).GetContext(ctx, &cnt,
		`SELECT COUNT(*) FROM redemption WHERE reward_id = $1 AND status = 'pending'`, rewardID)
	if err != nil {
		return 0, errors.Wrap(err, "counting pending redemptions")
	}
	return cnt, nil
}
