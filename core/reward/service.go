package reward

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/credikids/credikids/core"
)

var (
	// errors
	ErrNotFound           = errors.New("reward not found")
	ErrRedemptionNotFound = errors.New("redemption not found")

	errRewardInactive      = errors.New("reward is not active")
	ErrOutOfStock          = errors.New("reward is out of stock")
	errInsufficientCredits = errors.New("insufficient available credits")
	errAlreadyDecided      = errors.New("redemption already decided")
)

type (
	Repository interface {
		CreateReward(ctx context.Context, r Reward, exec ...core.DBExecutor) (Reward, error)
		GetRewardByID(ctx context.Context, id int, exec ...core.DBExecutor) (Reward, error)
		QueryRewards(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]Reward, error)
		UpdateReward(ctx context.Context, r Reward, exec ...core.DBExecutor) (Reward, error)
		// DecrementStock subtracts one unit if stock is tracked and positive;
		// returns ErrOutOfStock when the guard fails.
		DecrementStock(ctx context.Context, id int, exec ...core.DBExecutor) error

		CreateRedemption(ctx context.Context, rd Redemption, exec ...core.DBExecutor) (Redemption, error)
		GetRedemptionByID(ctx context.Context, id int, exec ...core.DBExecutor) (Redemption, error)
		// QueryRedemptions lists redemptions, newest first. userID 0 matches
		// all users; status "" matches all statuses.
		QueryRedemptions(ctx context.Context, userID int, status string, exec ...core.DBExecutor) ([]Redemption, error)
		UpdateRedemption(ctx context.Context, rd Redemption, exec ...core.DBExecutor) (Redemption, error)
		// SumPendingCredits totals credits_spent over a user's pending
		// redemptions.
		SumPendingCredits(ctx context.Context, userID int, exec ...core.DBExecutor) (int, error)
		// CountPendingByReward counts pending redemptions targeting a reward.
		CountPendingByReward(ctx context.Context, rewardID int, exec ...core.DBExecutor) (int, error)
	}

	// UserDirectory is the slice of the user repository this service needs.
	UserDirectory interface {
		GetUserScoreForUpdate(ctx context.Context, id int, exec ...core.DBExecutor) (int, error)
		AdjustUserScore(ctx context.Context, id, delta int, exec ...core.DBExecutor) (int, error)
	}

	// Balance breaks a user's credits into total, reserved and spendable.
	Balance struct {
		Total     int `json:"total"`
		Pending   int `json:"pending"`
		Available int `json:"available"`
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

func (svc *Service) Create(ctx context.Context, nr NewReward, createdBy int) (Reward, error) {
	now := time.Now().UTC()
	r := Reward{
		Name:        nr.Name,
		Description: nr.Description,
		Cost:        nr.Cost,
		IsActive:    true,
		CreatedByID: createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nr.Stock != nil {
		r.Stock = null.IntFrom(*nr.Stock)
	}
	return svc.repo.CreateReward(ctx, r)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Reward, error) {
	r, err := svc.repo.GetRewardByID(ctx, id)
	if err != nil {
		return Reward{}, err
	}
	return svc.withAvailableStock(ctx, r)
}

func (svc *Service) Query(ctx context.Context, activeOnly bool) ([]Reward, error) {
	rewards, err := svc.repo.QueryRewards(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	for i, r := range rewards {
		if rewards[i], err = svc.withAvailableStock(ctx, r); err != nil {
			return nil, err
		}
	}
	return rewards, nil
}

func (svc *Service) Update(ctx context.Context, id int, ur UpdateReward) (Reward, error) {
	r, err := svc.repo.GetRewardByID(ctx, id)
	if err != nil {
		return Reward{}, err
	}
	if ur.Name != "" {
		r.Name = ur.Name
	}
	if ur.Description != nil {
		r.Description = *ur.Description
	}
	if ur.Cost != 0 {
		r.Cost = ur.Cost
	}
	if ur.Stock != nil {
		r.Stock = null.IntFrom(*ur.Stock)
	}
	if ur.IsActive != nil {
		r.IsActive = *ur.IsActive
	}
	r.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateReward(ctx, r)
}

func (svc *Service) Deactivate(ctx context.Context, id int) (Reward, error) {
	r, err := svc.repo.GetRewardByID(ctx, id)
	if err != nil {
		return Reward{}, err
	}
	r.IsActive = false
	r.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateReward(ctx, r)
}

// Redeem opens a pending redemption, reserving the reward's cost against the
// user's spendable balance. Credits and stock do not move until approval.
func (svc *Service) Redeem(ctx context.Context, rewardID, userID int, notes string) (Redemption, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Redemption{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	r, err := svc.repo.GetRewardByID(ctx, rewardID, tx)
	if err != nil {
		return Redemption{}, err
	}
	if !r.IsActive {
		return Redemption{}, core.NewConflictError(errRewardInactive)
	}
	if r.Stock.Valid && r.Stock.Int <= 0 {
		return Redemption{}, core.NewConflictError(ErrOutOfStock)
	}

	// Lock the user row so concurrent redemptions see each other's
	// reservations.
	total, err := svc.users.GetUserScoreForUpdate(ctx, userID, tx)
	if err != nil {
		return Redemption{}, err
	}
	pending, err := svc.repo.SumPendingCredits(ctx, userID, tx)
	if err != nil {
		return Redemption{}, errors.Wrap(err, "summing pending credits")
	}
	available := total - pending
	if available < r.Cost {
		return Redemption{}, core.NewConflictError(errInsufficientCredits, map[string]interface{}{
			"total": total, "pending": pending, "available": available, "cost": r.Cost,
		})
	}

	rd, err := svc.repo.CreateRedemption(ctx, Redemption{
		RewardID:     rewardID,
		UserID:       userID,
		CreditsSpent: r.Cost,
		Status:       RedemptionPending,
		Notes:        null.NewString(notes, notes != ""),
		RedeemedAt:   time.Now().UTC(),
	}, tx)
	if err != nil {
		return Redemption{}, errors.Wrap(err, "creating redemption")
	}
	if err := tx.Commit(); err != nil {
		return Redemption{}, errors.Wrap(err, "committing tx")
	}
	return rd, nil
}

// Approve grants a pending redemption: credits leave the user's balance and
// one unit of tracked stock is consumed. Returns the redemption and the
// user's new balance.
func (svc *Service) Approve(ctx context.Context, redemptionID, adminID int) (Redemption, int, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Redemption{}, 0, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	rd, err := svc.repo.GetRedemptionByID(ctx, redemptionID, tx)
	if err != nil {
		return Redemption{}, 0, err
	}
	if rd.Status != RedemptionPending {
		return Redemption{}, 0, core.NewConflictError(errAlreadyDecided)
	}

	if _, err := svc.users.GetUserScoreForUpdate(ctx, rd.UserID, tx); err != nil {
		return Redemption{}, 0, err
	}

	if err := svc.repo.DecrementStock(ctx, rd.RewardID, tx); err != nil {
		if errors.Cause(err) == ErrOutOfStock {
			return Redemption{}, 0, core.NewConflictError(err)
		}
		return Redemption{}, 0, errors.Wrap(err, "decrementing stock")
	}

	newScore, err := svc.users.AdjustUserScore(ctx, rd.UserID, -rd.CreditsSpent, tx)
	if err != nil {
		return Redemption{}, 0, errors.Wrap(err, "deducting credits")
	}

	rd.Status = RedemptionApproved
	rd.ApprovedByID = null.IntFrom(adminID)
	rd.ApprovedAt = null.TimeFrom(time.Now().UTC())
	if rd, err = svc.repo.UpdateRedemption(ctx, rd, tx); err != nil {
		return Redemption{}, 0, errors.Wrap(err, "updating redemption")
	}
	if err := tx.Commit(); err != nil {
		return Redemption{}, 0, errors.Wrap(err, "committing tx")
	}
	return rd, newScore, nil
}

// Reject turns a pending redemption down, releasing its reservation. The
// user's balance never moved, so nothing is refunded.
func (svc *Service) Reject(ctx context.Context, redemptionID, adminID int, data RejectRedemption) (Redemption, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Redemption{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	rd, err := svc.repo.GetRedemptionByID(ctx, redemptionID, tx)
	if err != nil {
		return Redemption{}, err
	}
	if rd.Status != RedemptionPending {
		return Redemption{}, core.NewConflictError(errAlreadyDecided)
	}

	rd.Status = RedemptionRejected
	rd.ApprovedByID = null.IntFrom(adminID)
	rd.ApprovedAt = null.TimeFrom(time.Now().UTC())
	rd.RejectionReason = null.NewString(data.RejectionReason, data.RejectionReason != "")
	if rd, err = svc.repo.UpdateRedemption(ctx, rd, tx); err != nil {
		return Redemption{}, errors.Wrap(err, "updating redemption")
	}
	if err := tx.Commit(); err != nil {
		return Redemption{}, errors.Wrap(err, "committing tx")
	}
	return rd, nil
}

// QueryRedemptions lists redemptions; userID 0 lists everyone's and an empty
// status matches all.
func (svc *Service) QueryRedemptions(ctx context.Context, userID int, status string) ([]Redemption, error) {
	return svc.repo.QueryRedemptions(ctx, userID, status)
}

// AvailableCredits reports a user's balance alongside its pending
// reservations. The total comes from the caller to avoid a second user
// lookup.
func (svc *Service) AvailableCredits(ctx context.Context, userID, total int) (Balance, error) {
	pending, err := svc.repo.SumPendingCredits(ctx, userID)
	if err != nil {
		return Balance{}, errors.Wrap(err, "summing pending credits")
	}
	return Balance{Total: total, Pending: pending, Available: total - pending}, nil
}

func (svc *Service) withAvailableStock(ctx context.Context, r Reward) (Reward, error) {
	if !r.Stock.Valid {
		return r, nil
	}
	reserved, err := svc.repo.CountPendingByReward(ctx, r.ID)
	if err != nil {
		return Reward{}, errors.Wrap(err, "counting pending redemptions")
	}
	avail := r.Stock.Int - reserved
	if avail < 0 {
		avail = 0
	}
	r.AvailableStock = null.IntFrom(avail)
	return r, nil
}
