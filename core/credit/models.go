package credit

import (
	"time"

	"github.com/credikids/credikids/core"
)

// Bonus is a signed manual adjustment of a user's balance, outside the task
// and reward flows.
type Bonus struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	Credits     int       `json:"credits"` // positive or negative, never zero
	Reason      string    `json:"reason"`
	GrantedByID int       `json:"granted_by_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// NewBonus contains information needed to post a bonus.
type NewBonus struct {
	UserID  int    `json:"user_id" validate:"required"`
	Credits int    `json:"credits" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}

func (nb *NewBonus) Validate() error {
	nb.Reason = core.CleanString(nb.Reason)
	return core.Validate.Struct(nb)
}
