package task

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("task not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrCompletionNotFound = errors.New("completion not found")
	ErrProposalNotFound   = errors.New("proposal not found")
	ErrUserNotFound       = errors.New("one or more users not found")
	ErrNotAssignee        = errors.New("assignment belongs to another user")

	errAlreadyAssigned  = errors.New("task already assigned for this date")
	errAlreadyCompleted = errors.New("task already completed")
	errAlreadyCancelled = errors.New("task already cancelled")
	errAlreadyValidated = errors.New("task already validated")
	errAlreadyReviewed  = errors.New("proposal already reviewed")
	errStillPending     = errors.New("assignment is still pending")
)

type (
	// AssignmentFilter applies AND semantics on its set fields.
	AssignmentFilter struct {
		UserID      int       // 0 = any user
		From        time.Time // zero = unbounded
		To          time.Time // zero = unbounded
		IsCompleted *bool
		IsCancelled *bool
		Limit       int
		Ordering    []core.DBOrdering
	}

	CompletionFilter struct {
		UserID      int // 0 = any user
		Unvalidated bool
		Ordering    []core.DBOrdering
	}

	Repository interface {
		CreateTask(ctx context.Context, t Task, exec ...core.DBExecutor) (Task, error)
		GetTaskByID(ctx context.Context, id int, exec ...core.DBExecutor) (Task, error)
		QueryTasks(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]Task, error)
		UpdateTask(ctx context.Context, t Task, exec ...core.DBExecutor) (Task, error)

		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		// CreateAssignments inserts the whole batch; all-or-nothing when run
		// inside a transaction.
		CreateAssignments(ctx context.Context, as []Assignment, exec ...core.DBExecutor) (int, error)
		GetAssignmentByID(ctx context.Context, id int, exec ...core.DBExecutor) (Assignment, error)
		FindAssignment(ctx context.Context, taskID, userID int, date time.Time, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignments(ctx context.Context, filter AssignmentFilter, exec ...core.DBExecutor) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)

		CreateCompletion(ctx context.Context, c Completion, exec ...core.DBExecutor) (Completion, error)
		GetCompletionByID(ctx context.Context, id int, exec ...core.DBExecutor) (Completion, error)
		GetCompletionByAssignmentID(ctx context.Context, assignmentID int, exec ...core.DBExecutor) (Completion, error)
		QueryCompletions(ctx context.Context, filter CompletionFilter, exec ...core.DBExecutor) ([]Completion, error)
		UpdateCompletion(ctx context.Context, c Completion, exec ...core.DBExecutor) (Completion, error)
		DeleteCompletion(ctx context.Context, id int, exec ...core.DBExecutor) error

		CreateProposal(ctx context.Context, p Proposal, exec ...core.DBExecutor) (Proposal, error)
		GetProposalByID(ctx context.Context, id int, exec ...core.DBExecutor) (Proposal, error)
		QueryProposals(ctx context.Context, userID int, exec ...core.DBExecutor) ([]Proposal, error)
		UpdateProposal(ctx context.Context, p Proposal, exec ...core.DBExecutor) (Proposal, error)
	}

	// UserDirectory is the slice of the user repository this service needs.
	UserDirectory interface {
		GetUserByID(ctx context.Context, id int, exec ...core.DBExecutor) (user.User, error)
		QueryUsersByID(ctx context.Context, ids []int, exec ...core.DBExecutor) ([]user.User, error)
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

func (svc *Service) Create(ctx context.Context, nt NewTask, createdBy int) (Task, error) {
	now := time.Now().UTC()
	t := Task{
		Title:       nt.Title,
		Description: nt.Description,
		Type:        nt.Type,
		Frequency:   nt.Frequency,
		BaseValue:   nt.BaseValue,
		Status:      StatusActive,
		CreatedByID: createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateTask(ctx, t)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Task, error) {
	return svc.repo.GetTaskByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, activeOnly bool) ([]Task, error) {
	return svc.repo.QueryTasks(ctx, activeOnly)
}

func (svc *Service) Update(ctx context.Context, id int, ut UpdateTask) (Task, error) {
	t, err := svc.repo.GetTaskByID(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if ut.Title != "" {
		t.Title = ut.Title
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.Type != "" {
		t.Type = ut.Type
	}
	if ut.Frequency != "" {
		t.Frequency = ut.Frequency
	}
	if ut.BaseValue != 0 {
		t.BaseValue = ut.BaseValue
	}
	if ut.Status != "" {
		t.Status = ut.Status
	}
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTask(ctx, t)
}

// Archive soft-deletes a task; its assignments and history remain queryable.
func (svc *Service) Archive(ctx context.Context, id int) (Task, error) {
	t, err := svc.repo.GetTaskByID(ctx, id)
	if err != nil {
		return Task{}, err
	}
	t.Status = StatusArchived
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTask(ctx, t)
}

// Assign creates a single pending assignment, guarding against a duplicate
// (task, user, date) row.
func (svc *Service) Assign(ctx context.Context, na NewAssignment, assignedBy int) (Assignment, error) {
	if _, err := svc.repo.GetTaskByID(ctx, na.TaskID); err != nil {
		return Assignment{}, err
	}
	if _, err := svc.users.GetUserByID(ctx, na.UserID); err != nil {
		return Assignment{}, errors.Wrap(ErrUserNotFound, err.Error())
	}

	date, err := ParseDate(na.AssignedDate)
	if err != nil {
		return Assignment{}, core.NewValidationError(err, core.FieldError{Field: "assigned_date", Error: err.Error()})
	}

	if _, err := svc.repo.FindAssignment(ctx, na.TaskID, na.UserID, date); err == nil {
		return Assignment{}, core.NewConflictError(errAlreadyAssigned)
	} else if errors.Cause(err) != ErrAssignmentNotFound {
		return Assignment{}, err
	}

	return svc.repo.CreateAssignment(ctx, Assignment{
		TaskID:       na.TaskID,
		UserID:       na.UserID,
		AssignedDate: date,
		AssignedByID: assignedBy,
		CreatedAt:    time.Now().UTC(),
	})
}

// BulkAssign expands a recurrence rule into pending assignments and inserts
// them in a single transaction. Returns the number of rows created.
func (svc *Service) BulkAssign(ctx context.Context, ba *BulkAssignment, assignedBy int) (int, error) {
	if err := ba.Validate(); err != nil {
		return 0, err
	}
	if _, err := svc.repo.GetTaskByID(ctx, ba.TaskID); err != nil {
		return 0, err
	}
	users, err := svc.users.QueryUsersByID(ctx, ba.UserIDs)
	if err != nil {
		return 0, err
	}
	if len(users) != len(ba.UserIDs) {
		return 0, ErrUserNotFound
	}

	assignments := ba.Expand(assignedBy, time.Now().UTC())
	if len(assignments) == 0 {
		return 0, nil
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	count, err := svc.repo.CreateAssignments(ctx, assignments, tx)
	if err != nil {
		return 0, errors.Wrap(err, "creating assignments")
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing tx")
	}
	return count, nil
}

// Complete marks a pending assignment as completed by its assignee and opens
// a completion awaiting admin validation. No credit moves yet.
func (svc *Service) Complete(ctx context.Context, assignmentID, actorID int, notes string) (Completion, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Completion{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	a, err := svc.repo.GetAssignmentByID(ctx, assignmentID, tx)
	if err != nil {
		return Completion{}, err
	}
	if a.UserID != actorID {
		return Completion{}, ErrNotAssignee
	}
	if a.IsCompleted {
		return Completion{}, core.NewConflictError(errAlreadyCompleted)
	}
	if a.IsCancelled {
		return Completion{}, core.NewConflictError(errAlreadyCancelled)
	}

	c, err := svc.repo.CreateCompletion(ctx, Completion{
		AssignmentID:    a.ID,
		TaskID:          a.TaskID,
		UserID:          a.UserID,
		CompletionNotes: notes,
		CompletedAt:     time.Now().UTC(),
	}, tx)
	if err != nil {
		return Completion{}, errors.Wrap(err, "creating completion")
	}

	a.IsCompleted = true
	if _, err := svc.repo.UpdateAssignment(ctx, a, tx); err != nil {
		return Completion{}, errors.Wrap(err, "updating assignment")
	}
	if err := tx.Commit(); err != nil {
		return Completion{}, errors.Wrap(err, "committing tx")
	}
	return c, nil
}

// Cancel declines a pending assignment. Cancelling an obligatory task applies
// an immediate penalty of the task's base value; the applied amount is
// returned (0 for non-obligatory tasks).
func (svc *Service) Cancel(ctx context.Context, assignmentID, actorID int, reason string) (Assignment, int, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Assignment{}, 0, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	a, err := svc.repo.GetAssignmentByID(ctx, assignmentID, tx)
	if err != nil {
		return Assignment{}, 0, err
	}
	if a.UserID != actorID {
		return Assignment{}, 0, ErrNotAssignee
	}
	if a.IsCompleted {
		return Assignment{}, 0, core.NewConflictError(errAlreadyCompleted)
	}
	if a.IsCancelled {
		return Assignment{}, 0, core.NewConflictError(errAlreadyCancelled)
	}

	a.IsCancelled = true
	a.CancelledAt = null.TimeFrom(time.Now().UTC())
	a.CancellationReason = null.NewString(reason, reason != "")
	if a, err = svc.repo.UpdateAssignment(ctx, a, tx); err != nil {
		return Assignment{}, 0, errors.Wrap(err, "updating assignment")
	}

	var penalty int
	t, err := svc.repo.GetTaskByID(ctx, a.TaskID, tx)
	if err != nil {
		return Assignment{}, 0, err
	}
	if t.Type == TypeObligatory {
		penalty = t.BaseValue
		if _, err := svc.users.AdjustUserScore(ctx, a.UserID, -penalty, tx); err != nil {
			return Assignment{}, 0, errors.Wrap(err, "applying penalty")
		}
	}

	if err := tx.Commit(); err != nil {
		return Assignment{}, 0, errors.Wrap(err, "committing tx")
	}
	return a, penalty, nil
}

// ValidateCompletion scores a completion and awards the mapped credits.
// Obligatory tasks award nothing on completion (they only penalize on
// cancellation). A completion can be validated at most once. Returns the
// completion and the user's new balance.
func (svc *Service) ValidateCompletion(ctx context.Context, completionID, adminID int, data ValidateCompletion) (Completion, int, error) {
	if err := data.Validate(); err != nil {
		return Completion{}, 0, err
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Completion{}, 0, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	c, err := svc.repo.GetCompletionByID(ctx, completionID, tx)
	if err != nil {
		return Completion{}, 0, err
	}
	if c.ValidationScore.Valid {
		return Completion{}, 0, core.NewConflictError(errAlreadyValidated)
	}

	t, err := svc.repo.GetTaskByID(ctx, c.TaskID, tx)
	if err != nil {
		return Completion{}, 0, err
	}

	credits := 0
	if t.Type != TypeObligatory {
		credits = CreditsForScore(data.ValidationScore, t.BaseValue)
	}

	c.ValidationScore = null.IntFrom(data.ValidationScore)
	c.ValidatedByID = null.IntFrom(adminID)
	c.ValidatedAt = null.TimeFrom(time.Now().UTC())
	c.ValidationNotes = null.NewString(data.ValidationNotes, data.ValidationNotes != "")
	c.CreditsAwarded = credits
	if c, err = svc.repo.UpdateCompletion(ctx, c, tx); err != nil {
		return Completion{}, 0, errors.Wrap(err, "updating completion")
	}

	a, err := svc.repo.GetAssignmentByID(ctx, c.AssignmentID, tx)
	if err != nil {
		return Completion{}, 0, err
	}
	a.IsValidated = true
	if _, err := svc.repo.UpdateAssignment(ctx, a, tx); err != nil {
		return Completion{}, 0, errors.Wrap(err, "updating assignment")
	}

	newScore, err := svc.users.AdjustUserScore(ctx, c.UserID, credits, tx)
	if err != nil {
		return Completion{}, 0, errors.Wrap(err, "awarding credits")
	}

	if err := tx.Commit(); err != nil {
		return Completion{}, 0, errors.Wrap(err, "committing tx")
	}
	return c, newScore, nil
}

// Reset returns a completed or cancelled assignment to pending, reversing
// exactly the credit delta previously applied: awarded credits are taken
// back, an obligatory-cancellation penalty is refunded.
func (svc *Service) Reset(ctx context.Context, assignmentID int) (Assignment, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	a, err := svc.repo.GetAssignmentByID(ctx, assignmentID, tx)
	if err != nil {
		return Assignment{}, err
	}
	if a.IsPending() {
		return Assignment{}, core.NewConflictError(errStillPending)
	}

	if a.IsCompleted {
		c, err := svc.repo.GetCompletionByAssignmentID(ctx, a.ID, tx)
		switch errors.Cause(err) {
		case nil:
			if c.CreditsAwarded > 0 {
				if _, err := svc.users.AdjustUserScore(ctx, a.UserID, -c.CreditsAwarded, tx); err != nil {
					return Assignment{}, errors.Wrap(err, "reversing awarded credits")
				}
			}
			if err := svc.repo.DeleteCompletion(ctx, c.ID, tx); err != nil {
				return Assignment{}, errors.Wrap(err, "deleting completion")
			}
		case ErrCompletionNotFound:
		default:
			return Assignment{}, err
		}
		a.IsCompleted = false
		a.IsValidated = false
	}

	if a.IsCancelled {
		t, err := svc.repo.GetTaskByID(ctx, a.TaskID, tx)
		if err != nil {
			return Assignment{}, err
		}
		if t.Type == TypeObligatory {
			if _, err := svc.users.AdjustUserScore(ctx, a.UserID, t.BaseValue, tx); err != nil {
				return Assignment{}, errors.Wrap(err, "refunding penalty")
			}
		}
		a.IsCancelled = false
		a.CancelledAt = null.Time{}
		a.CancellationReason = null.String{}
	}

	if a, err = svc.repo.UpdateAssignment(ctx, a, tx); err != nil {
		return Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if err := tx.Commit(); err != nil {
		return Assignment{}, errors.Wrap(err, "committing tx")
	}
	return a, nil
}

// PendingValidations lists completions still awaiting an admin score.
func (svc *Service) PendingValidations(ctx context.Context) ([]Completion, error) {
	return svc.repo.QueryCompletions(ctx, CompletionFilter{
		Unvalidated: true,
		Ordering:    []core.DBOrdering{{Field: "completed_at"}},
	})
}

// CancelledAssignments lists cancelled assignments for admin review.
func (svc *Service) CancelledAssignments(ctx context.Context) ([]Assignment, error) {
	cancelled := true
	return svc.repo.QueryAssignments(ctx, AssignmentFilter{
		IsCancelled: &cancelled,
		Ordering:    []core.DBOrdering{{Field: "cancelled_at"}},
	})
}

func (svc *Service) QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, filter)
}

func (svc *Service) QueryCompletions(ctx context.Context, filter CompletionFilter) ([]Completion, error) {
	return svc.repo.QueryCompletions(ctx, filter)
}

func (svc *Service) CreateProposal(ctx context.Context, np NewProposal, userID int) (Proposal, error) {
	now := time.Now().UTC()
	return svc.repo.CreateProposal(ctx, Proposal{
		UserID:          userID,
		Title:           np.Title,
		Description:     np.Description,
		Frequency:       np.Frequency,
		SuggestedReward: np.SuggestedReward,
		MessageToAdmin:  np.MessageToAdmin,
		Status:          ProposalPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

// QueryProposals lists proposals; userID 0 lists everyone's.
func (svc *Service) QueryProposals(ctx context.Context, userID int) ([]Proposal, error) {
	return svc.repo.QueryProposals(ctx, userID)
}

// ReviewProposal records the admin's decision on a pending proposal. When
// approved or modified, the final fields default to the proposed values and
// the corresponding Task is created as a proposed-type task.
func (svc *Service) ReviewProposal(ctx context.Context, proposalID, adminID int, data ReviewProposal) (Proposal, error) {
	if err := data.Validate(); err != nil {
		return Proposal{}, err
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Proposal{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	p, err := svc.repo.GetProposalByID(ctx, proposalID, tx)
	if err != nil {
		return Proposal{}, err
	}
	if p.Status != ProposalPending {
		return Proposal{}, core.NewConflictError(errAlreadyReviewed)
	}

	now := time.Now().UTC()
	p.Status = data.Status
	p.ReviewedByID = null.IntFrom(adminID)
	p.ReviewedAt = null.TimeFrom(now)
	p.AdminNotes = null.NewString(data.AdminNotes, data.AdminNotes != "")
	p.UpdatedAt = now

	if data.Status == ProposalApproved || data.Status == ProposalModified {
		finalTitle := p.Title
		if data.FinalTitle != "" {
			finalTitle = data.FinalTitle
		}
		finalDescription := p.Description
		if data.FinalDescription != "" {
			finalDescription = data.FinalDescription
		}
		finalReward := p.SuggestedReward
		if data.FinalReward != 0 {
			finalReward = data.FinalReward
		}
		p.FinalTitle = null.StringFrom(finalTitle)
		p.FinalDescription = null.StringFrom(finalDescription)
		p.FinalReward = null.IntFrom(finalReward)

		t, err := svc.repo.CreateTask(ctx, Task{
			Title:       finalTitle,
			Description: finalDescription,
			Type:        TypeProposed,
			Frequency:   p.Frequency,
			BaseValue:   finalReward,
			Status:      StatusActive,
			CreatedByID: adminID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, tx)
		if err != nil {
			return Proposal{}, errors.Wrap(err, "creating task from proposal")
		}
		p.CreatedTaskID = null.IntFrom(t.ID)
	}

	if p, err = svc.repo.UpdateProposal(ctx, p, tx); err != nil {
		return Proposal{}, errors.Wrap(err, "updating proposal")
	}
	if err := tx.Commit(); err != nil {
		return Proposal{}, errors.Wrap(err, "committing tx")
	}
	return p, nil
}
