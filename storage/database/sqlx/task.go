package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/task"
)

type taskRepository struct {
	exec core.DBExecutor
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(exec core.DBExecutor) *taskRepository {
	return &taskRepository{exec: exec}
}

type (
	taskRow struct {
		ID          int       `db:"id"`
		Title       string    `db:"title"`
		Description string    `db:"description"`
		Type        string    `db:"task_type"`
		Frequency   string    `db:"frequency"`
		BaseValue   int       `db:"base_value"`
		Status      string    `db:"status"`
		CreatedByID int       `db:"created_by_id"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	assignmentRow struct {
		ID                 int         `db:"id"`
		TaskID             int         `db:"task_id"`
		UserID             int         `db:"user_id"`
		AssignedDate       time.Time   `db:"assigned_date"`
		IsCompleted        bool        `db:"is_completed"`
		IsValidated        bool        `db:"is_validated"`
		IsCancelled        bool        `db:"is_cancelled"`
		CancellationReason null.String `db:"cancellation_reason"`
		CancelledAt        null.Time   `db:"cancelled_at"`
		AssignedByID       int         `db:"assigned_by_id"`
		CreatedAt          time.Time   `db:"created_at"`
	}

	completionRow struct {
		ID              int         `db:"id"`
		AssignmentID    int         `db:"assignment_id"`
		TaskID          int         `db:"task_id"`
		UserID          int         `db:"user_id"`
		CompletionNotes string      `db:"completion_notes"`
		CompletedAt     time.Time   `db:"completed_at"`
		ValidationScore null.Int    `db:"validation_score"`
		ValidatedByID   null.Int    `db:"validated_by_id"`
		ValidatedAt     null.Time   `db:"validated_at"`
		ValidationNotes null.String `db:"validation_notes"`
		CreditsAwarded  int         `db:"credits_awarded"`
	}

	proposalRow struct {
		ID               int         `db:"id"`
		UserID           int         `db:"user_id"`
		Title            string      `db:"title"`
		Description      string      `db:"description"`
		Frequency        string      `db:"frequency"`
		SuggestedReward  int         `db:"suggested_reward"`
		MessageToAdmin   string      `db:"message_to_admin"`
		Status           string      `db:"status"`
		ReviewedByID     null.Int    `db:"reviewed_by_id"`
		ReviewedAt       null.Time   `db:"reviewed_at"`
		AdminNotes       null.String `db:"admin_notes"`
		FinalTitle       null.String `db:"final_title"`
		FinalDescription null.String `db:"final_description"`
		FinalReward      null.Int    `db:"final_reward"`
		CreatedTaskID    null.Int    `db:"created_task_id"`
		CreatedAt        time.Time   `db:"created_at"`
		UpdatedAt        time.Time   `db:"updated_at"`
	}
)

func (repo taskRepository) unrowTask(r taskRow) task.Task {
	return task.Task(r)
}

func (repo taskRepository) unrowAssignment(r assignmentRow) task.Assignment {
	return task.Assignment(r)
}

func (repo taskRepository) unrowCompletion(r completionRow) task.Completion {
	return task.Completion(r)
}

func (repo taskRepository) unrowProposal(r proposalRow) task.Proposal {
	return task.Proposal(r)
}

func trapNoRows(err, sentinel error, msg string) error {
	if err == sql.ErrNoRows {
		return sentinel
	}
	return errors.Wrap(err, msg)
}

func (repo taskRepository) CreateTask(ctx context.Context, t task.Task, exec ...core.DBExecutor) (task.Task, error) {
	var r taskRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`INSERT INTO task (title, description, task_type, frequency, base_value, status, created_by_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING *`,
		t.Title, t.Description, t.Type, t.Frequency, t.BaseValue, t.Status, t.CreatedByID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return repo.unrowTask(r), nil
}

func (repo taskRepository) GetTaskByID(ctx context.Context, id int, exec ...core.DBExecutor) (task.Task, error) {
	var r taskRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r, `SELECT * FROM task WHERE id = $1`, id)
	if err != nil {
		return task.Task{}, trapNoRows(err, task.ErrNotFound, "finding task by ID")
	}
	return repo.unrowTask(r), nil
}

func (repo taskRepository) QueryTasks(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]task.Task, error) {
	q := `SELECT * FROM task`
	if activeOnly {
		q += ` WHERE status = 'active'`
	}
	q += ` ORDER BY created_at DESC`

	var rows []taskRow
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, repo.unrowTask(r))
	}
	return tasks, nil
}

func (repo taskRepository) UpdateTask(ctx context.Context, t task.Task, exec ...core.DBExecutor) (task.Task, error) {
	var r taskRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`UPDATE task SET title = $2, description = $3, task_type = $4, frequency = $5, base_value = $6, status = $7, updated_at = $8
		 WHERE id = $1
		 RETURNING *`,
		t.ID, t.Title, t.Description, t.Type, t.Frequency, t.BaseValue, t.Status, t.UpdatedAt)
	if err != nil {
		return task.Task{}, trapNoRows(err, task.ErrNotFound, "updating task")
	}
	return repo.unrowTask(r), nil
}

func (repo taskRepository) CreateAssignment(ctx context.Context, a task.Assignment, exec ...core.DBExecutor) (task.Assignment, error) {
	var r assignmentRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`INSERT INTO assignment (task_id, user_id, assigned_date, assigned_by_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING *`,
		a.TaskID, a.UserID, a.AssignedDate, a.AssignedByID, a.CreatedAt)
	if err != nil {
		return task.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return repo.unrowAssignment(r), nil
}

func (repo taskRepository) CreateAssignments(ctx context.Context, as []task.Assignment, exec ...core.DBExecutor) (int, error) {
	if len(as) == 0 {
		return 0, nil
	}
	rows := make([]assignmentRow, 0, len(as))
	for _, a := range as {
		rows = append(rows, assignmentRow(a))
	}
	res, err := sqlx.NamedExecContext(ctx, getExec(repo.exec, exec),
		`INSERT INTO assignment (task_id, user_id, assigned_date, assigned_by_id, created_at)
		 VALUES (:task_id, :user_id, :assigned_date, :assigned_by_id, :created_at)`, rows)
	if err != nil {
		return 0, errors.Wrap(err, "inserting assignments")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return len(as), nil
	}
	return int(cnt), nil
}

func (repo taskRepository) GetAssignmentByID(ctx context.Context, id int, exec ...core.DBExecutor) (task.Assignment, error) {
	var r assignmentRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r, `SELECT * FROM assignment WHERE id = $1`, id)
	if err != nil {
		return task.Assignment{}, trapNoRows(err, task.ErrAssignmentNotFound, "finding assignment by ID")
	}
	return repo.unrowAssignment(r), nil
}

func (repo taskRepository) FindAssignment(ctx context.Context, taskID, userID int, date time.Time, exec ...core.DBExecutor) (task.Assignment, error) {
	var r assignmentRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`SELECT * FROM assignment WHERE task_id = $1 AND user_id = $2 AND assigned_date = $3 LIMIT 1`,
		taskID, userID, date)
	if err != nil {
		return task.Assignment{}, trapNoRows(err, task.ErrAssignmentNotFound, "finding assignment")
	}
	return repo.unrowAssignment(r), nil
}

func (repo taskRepository) QueryAssignments(ctx context.Context, filter task.AssignmentFilter, exec ...core.DBExecutor) ([]task.Assignment, error) {
	q := `SELECT * FROM assignment`
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(val interface{}) string {
		args = append(args, val)
		return "?"
	}

	if filter.UserID != 0 {
		clauses = append(clauses, "user_id = "+arg(filter.UserID))
	}
	if !filter.From.IsZero() {
		clauses = append(clauses, "assigned_date >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		clauses = append(clauses, "assigned_date <= "+arg(filter.To))
	}
	if filter.IsCompleted != nil {
		clauses = append(clauses, "is_completed = "+arg(*filter.IsCompleted))
	}
	if filter.IsCancelled != nil {
		clauses = append(clauses, "is_cancelled = "+arg(*filter.IsCancelled))
	}
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}

	if len(filter.Ordering) > 0 {
		orderList := make([]string, 0, len(filter.Ordering))
		for _, ord := range filter.Ordering {
			orderList = append(orderList, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderList, ", ")
	} else {
		q += " ORDER BY assigned_date, id"
	}
	if filter.Limit > 0 {
		q += " LIMIT " + arg(filter.Limit)
	}

	exe := getExec(repo.exec, exec)
	var rows []assignmentRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]task.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, repo.unrowAssignment(r))
	}
	return assignments, nil
}

func (repo taskRepository) UpdateAssignment(ctx context.Context, a task.Assignment, exec ...core.DBExecutor) (task.Assignment, error) {
	var r assignmentRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`UPDATE assignment SET is_completed = $2, is_validated = $3, is_cancelled = $4, cancellation_reason = $5, cancelled_at = $6
		 WHERE id = $1
		 RETURNING *`,
		a.ID, a.IsCompleted, a.IsValidated, a.IsCancelled, a.CancellationReason, a.CancelledAt)
	if err != nil {
		return task.Assignment{}, trapNoRows(err, task.ErrAssignmentNotFound, "updating assignment")
	}
	return repo.unrowAssignment(r), nil
}

var errDuplicateCompletion = errors.New("assignment already completed")

func (repo taskRepository) CreateCompletion(ctx context.Context, c task.Completion, exec ...core.DBExecutor) (task.Completion, error) {
	var r completionRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`INSERT INTO completion (assignment_id, task_id, user_id, completion_notes, completed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING *`,
		c.AssignmentID, c.TaskID, c.UserID, c.CompletionNotes, c.CompletedAt)
	if err != nil {
		// unique_violation on assignment_id: a concurrent complete won the race
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == "23505" {
			return task.Completion{}, core.NewConflictError(errDuplicateCompletion)
		}
		return task.Completion{}, errors.Wrap(err, "inserting completion")
	}
	return repo.unrowCompletion(r), nil
}

func (repo taskRepository) GetCompletionByID(ctx context.Context, id int, exec ...core.DBExecutor) (task.Completion, error) {
	var r completionRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r, `SELECT * FROM completion WHERE id = $1`, id)
	if err != nil {
		return task.Completion{}, trapNoRows(err, task.ErrCompletionNotFound, "finding completion by ID")
	}
	return repo.unrowCompletion(r), nil
}

func (repo taskRepository) GetCompletionByAssignmentID(ctx context.Context, assignmentID int, exec ...core.DBExecutor) (task.Completion, error) {
	var r completionRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`SELECT * FROM completion WHERE assignment_id = $1`, assignmentID)
	if err != nil {
		return task.Completion{}, trapNoRows(err, task.ErrCompletionNotFound, "finding completion by assignment")
	}
	return repo.unrowCompletion(r), nil
}

func (repo taskRepository) QueryCompletions(ctx context.Context, filter task.CompletionFilter, exec ...core.DBExecutor) ([]task.Completion, error) {
	q := `SELECT * FROM completion`
	var (
		clauses []string
		args    []interface{}
	)
	if filter.UserID != 0 {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Unvalidated {
		clauses = append(clauses, "validation_score IS NULL")
	}
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}

	if len(filter.Ordering) > 0 {
		orderList := make([]string, 0, len(filter.Ordering))
		for _, ord := range filter.Ordering {
			orderList = append(orderList, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderList, ", ")
	} else {
		q += " ORDER BY completed_at DESC"
	}

	exe := getExec(repo.exec, exec)
	var rows []completionRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying completions")
	}
	completions := make([]task.Completion, 0, len(rows))
	for _, r := range rows {
		completions = append(completions, repo.unrowCompletion(r))
	}
	return completions, nil
}

func (repo taskRepository) UpdateCompletion(ctx context.Context, c task.Completion, exec ...core.DBExecutor) (task.Completion, error) {
	var r completionRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`UPDATE completion SET validation_score = $2, validated_by_id = $3, validated_at = $4, validation_notes = $5, credits_awarded = $6
		 WHERE id = $1
		 RETURNING *`,
		c.ID, c.ValidationScore, c.ValidatedByID, c.ValidatedAt, c.ValidationNotes, c.CreditsAwarded)
	if err != nil {
		return task.Completion{}, trapNoRows(err, task.ErrCompletionNotFound, "updating completion")
	}
	return repo.unrowCompletion(r), nil
}

func (repo taskRepository) DeleteCompletion(ctx context.Context, id int, exec ...core.DBExecutor) error {
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM completion WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting completion")
	}
	return nil
}

func (repo taskRepository) CreateProposal(ctx context.Context, p task.Proposal, exec ...core.DBExecutor) (task.Proposal, error) {
	var r proposalRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`INSERT INTO proposal (user_id, title, description, frequency, suggested_reward, message_to_admin, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING *`,
		p.UserID, p.Title, p.Description, p.Frequency, p.SuggestedReward, p.MessageToAdmin, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return task.Proposal{}, errors.Wrap(err, "inserting proposal")
	}
	return repo.unrowProposal(r), nil
}

func (repo taskRepository) GetProposalByID(ctx context.Context, id int, exec ...core.DBExecutor) (task.Proposal, error) {
	var r proposalRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r, `SELECT * FROM proposal WHERE id = $1`, id)
	if err != nil {
		return task.Proposal{}, trapNoRows(err, task.ErrProposalNotFound, "finding proposal by ID")
	}
	return repo.unrowProposal(r), nil
}

func (repo taskRepository) QueryProposals(ctx context.Context, userID int, exec ...core.DBExecutor) ([]task.Proposal, error) {
	q := `SELECT * FROM proposal`
	var args []interface{}
	if userID != 0 {
		q += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	q += ` ORDER BY created_at DESC`

	var rows []proposalRow
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying proposals")
	}
	proposals := make([]task.Proposal, 0, len(rows))
	for _, r := range rows {
		proposals = append(proposals, repo.unrowProposal(r))
	}
	return proposals, nil
}

func (repo taskRepository) UpdateProposal(ctx context.Context, p task.Proposal, exec ...core.DBExecutor) (task.Proposal, error) {
	var r proposalRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r,
		`UPDATE proposal SET status = $2, reviewed_by_id = $3, reviewed_at = $4, admin_notes = $5,
			final_title = $6, final_description = $7, final_reward = $8, created_task_id = $9, updated_at = $10
		 WHERE id = $1
		 RETURNING *`,
		p.ID, p.Status, p.ReviewedByID, p.ReviewedAt, p.AdminNotes,
		p.FinalTitle, p.FinalDescription, p.FinalReward, p.CreatedTaskID, p.UpdatedAt)
	if err != nil {
		return task.Proposal{}, trapNoRows(err, task.ErrProposalNotFound, "updating proposal")
	}
	return repo.unrowProposal(r), nil
}
