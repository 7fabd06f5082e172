package task

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/credikids/credikids/core"
)

// Task types
const (
	TypeObligatory = "obligatory" // penalizes on cancellation, awards nothing on completion
	TypeSpecial    = "special"
	TypeProposed   = "proposed"
)

// Frequencies
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyOneTime = "one_time"
)

// Statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusArchived = "archived"
)

// DateLayout is the wire format of calendar dates (no time component).
const DateLayout = "2006-01-02"

type Task struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"task_type"`
	Frequency   string    `json:"frequency"`
	BaseValue   int       `json:"base_value"`
	Status      string    `json:"status"`
	CreatedByID int       `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Assignment is one scheduled occurrence of a Task for one User on one date.
// It is created pending and transitions at most once to completed or
// cancelled; an admin reset returns it to pending.
type Assignment struct {
	ID                 int         `json:"id"`
	TaskID             int         `json:"task_id"`
	UserID             int         `json:"user_id"`
	AssignedDate       time.Time   `json:"assigned_date"` // date only
	IsCompleted        bool        `json:"is_completed"`
	IsValidated        bool        `json:"is_validated"`
	IsCancelled        bool        `json:"is_cancelled"`
	CancellationReason null.String `json:"cancellation_reason"`
	CancelledAt        null.Time   `json:"cancelled_at"`
	AssignedByID       int         `json:"assigned_by_id"`
	CreatedAt          time.Time   `json:"created_at"`
}

func (a *Assignment) IsPending() bool {
	return !a.IsCompleted && !a.IsCancelled
}

// Completion is a user's claim that an Assignment was done, awaiting admin
// validation. CreditsAwarded stays 0 until validated.
type Completion struct {
	ID              int         `json:"id"`
	AssignmentID    int         `json:"assignment_id"`
	TaskID          int         `json:"task_id"`
	UserID          int         `json:"user_id"`
	CompletionNotes string      `json:"completion_notes"`
	CompletedAt     time.Time   `json:"completed_at"`
	ValidationScore null.Int    `json:"validation_score"` // 1, 2 or 3
	ValidatedByID   null.Int    `json:"validated_by_id"`
	ValidatedAt     null.Time   `json:"validated_at"`
	ValidationNotes null.String `json:"validation_notes"`
	CreditsAwarded  int         `json:"credits_awarded"`
}

// Proposal statuses
const (
	ProposalPending  = "pending"
	ProposalApproved = "approved"
	ProposalModified = "modified"
	ProposalRejected = "rejected"
)

type Proposal struct {
	ID               int         `json:"id"`
	UserID           int         `json:"user_id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Frequency        string      `json:"frequency"`
	SuggestedReward  int         `json:"suggested_reward"`
	MessageToAdmin   string      `json:"message_to_admin"`
	Status           string      `json:"status"`
	ReviewedByID     null.Int    `json:"reviewed_by_id"`
	ReviewedAt       null.Time   `json:"reviewed_at"`
	AdminNotes       null.String `json:"admin_notes"`
	FinalTitle       null.String `json:"final_title"`
	FinalDescription null.String `json:"final_description"`
	FinalReward      null.Int    `json:"final_reward"`
	CreatedTaskID    null.Int    `json:"created_task_id"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Type        string `json:"task_type" validate:"required,oneof=obligatory special proposed"`
	Frequency   string `json:"frequency" validate:"required,oneof=daily weekly monthly one_time"`
	BaseValue   int    `json:"base_value" validate:"required,gt=0"`
}

func (nt *NewTask) Validate() error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	return core.Validate.Struct(nt)
}

// UpdateTask defines what may be modified on an existing Task.
type UpdateTask struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Type        string  `json:"task_type" validate:"omitempty,oneof=obligatory special proposed"`
	Frequency   string  `json:"frequency" validate:"omitempty,oneof=daily weekly monthly one_time"`
	BaseValue   int     `json:"base_value" validate:"omitempty,gt=0"`
	Status      string  `json:"status" validate:"omitempty,oneof=active inactive archived"`
}

func (ut *UpdateTask) Validate() error {
	ut.Title = core.CleanString(ut.Title)
	return core.Validate.Struct(ut)
}

// NewAssignment is a single-date assignment request.
type NewAssignment struct {
	TaskID       int    `json:"task_id" validate:"required"`
	UserID       int    `json:"user_id" validate:"required"`
	AssignedDate string `json:"assigned_date" validate:"required,datetime=2006-01-02"`
}

func (na NewAssignment) Validate() error { return core.Validate.Struct(na) }

// NewProposal contains a user's task proposal.
type NewProposal struct {
	Title           string `json:"title" validate:"required"`
	Description     string `json:"description" validate:"required"`
	Frequency       string `json:"frequency" validate:"required,oneof=daily weekly monthly one_time"`
	SuggestedReward int    `json:"suggested_reward" validate:"required,gt=0"`
	MessageToAdmin  string `json:"message_to_admin"`
}

func (np *NewProposal) Validate() error {
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	return core.Validate.Struct(np)
}

// ReviewProposal is the admin's decision on a pending Proposal. The final_*
// fields default to the proposed values when the decision keeps them.
type ReviewProposal struct {
	Status           string `json:"status" validate:"required,oneof=approved modified rejected"`
	AdminNotes       string `json:"admin_notes"`
	FinalTitle       string `json:"final_title"`
	FinalDescription string `json:"final_description"`
	FinalReward      int    `json:"final_reward" validate:"omitempty,gt=0"`
}

func (rp *ReviewProposal) Validate() error {
	rp.FinalTitle = core.CleanString(rp.FinalTitle)
	return core.Validate.Struct(rp)
}

// ValidateCompletion is the admin's scoring of a Completion.
type ValidateCompletion struct {
	ValidationScore int    `json:"validation_score" validate:"required,min=1,max=3"`
	ValidationNotes string `json:"validation_notes"`
}

func (vc ValidateCompletion) Validate() error { return core.Validate.Struct(vc) }

// ParseDate parses a wire-format calendar date into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
