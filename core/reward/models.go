package reward

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/credikids/credikids/core"
)

// Redemption statuses
const (
	RedemptionPending  = "pending"
	RedemptionApproved = "approved"
	RedemptionRejected = "rejected"
)

// Reward is something a user can spend credits on. A null Stock means
// unlimited supply.
type Reward struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Cost        int       `json:"cost"`
	Stock       null.Int  `json:"stock"`
	IsActive    bool      `json:"is_active"`
	CreatedByID int       `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC

	// AvailableStock is Stock minus pending redemptions; computed on read,
	// never stored.
	AvailableStock null.Int `json:"available_stock"`
}

// Redemption is a user's request to spend credits on a Reward. While pending
// it reserves CreditsSpent against the user's balance; the balance only moves
// on approval.
type Redemption struct {
	ID              int         `json:"id"`
	RewardID        int         `json:"reward_id"`
	UserID          int         `json:"user_id"`
	CreditsSpent    int         `json:"credits_spent"`
	Status          string      `json:"status"`
	Notes           null.String `json:"notes"`
	ApprovedByID    null.Int    `json:"approved_by_id"`
	ApprovedAt      null.Time   `json:"approved_at"`
	RejectionReason null.String `json:"rejection_reason"`
	RedeemedAt      time.Time   `json:"redeemed_at"`
}

// NewReward contains information needed to create a new Reward.
type NewReward struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Cost        int    `json:"cost" validate:"required,gt=0"`
	Stock       *int   `json:"stock" validate:"omitempty,gte=0"`
}

func (nr *NewReward) Validate() error {
	nr.Name = core.CleanString(nr.Name)
	nr.Description = core.CleanString(nr.Description)
	return core.Validate.Struct(nr)
}

// UpdateReward defines what may be modified on an existing Reward.
type UpdateReward struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Cost        int     `json:"cost" validate:"omitempty,gt=0"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
	IsActive    *bool   `json:"is_active"`
}

func (ur *UpdateReward) Validate() error {
	ur.Name = core.CleanString(ur.Name)
	return core.Validate.Struct(ur)
}

// RejectRedemption carries the admin's reason for turning a request down.
type RejectRedemption struct {
	RejectionReason string `json:"rejection_reason"`
}
