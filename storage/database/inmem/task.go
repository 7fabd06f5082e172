package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/task"
)

var errDuplicateCompletion = errors.New("assignment already completed")

type taskRepository struct {
	db *DB
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *DB) *taskRepository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTask(_ context.Context, t task.Task, _ ...core.DBExecutor) (task.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.ID = repo.db.nextPK()
	repo.db.tasks[t.ID] = &t
	return t, nil
}

func (repo *taskRepository) GetTaskByID(_ context.Context, id int, _ ...core.DBExecutor) (task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.tasks[id]; ok {
		return *t, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) QueryTasks(_ context.Context, activeOnly bool, _ ...core.DBExecutor) ([]task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tasks := make([]task.Task, 0, len(repo.db.tasks))
	for _, t := range repo.db.tasks {
		if activeOnly && t.Status != task.StatusActive {
			continue
		}
		tasks = append(tasks, *t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (repo *taskRepository) UpdateTask(_ context.Context, t task.Task, _ ...core.DBExecutor) (task.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tasks[t.ID]; !ok {
		return task.Task{}, task.ErrNotFound
	}
	repo.db.tasks[t.ID] = &t
	return t, nil
}

func (repo *taskRepository) CreateAssignment(_ context.Context, a task.Assignment, _ ...core.DBExecutor) (task.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.ID = repo.db.nextPK()
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *taskRepository) CreateAssignments(_ context.Context, as []task.Assignment, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, a := range as {
		a := a
		a.ID = repo.db.nextPK()
		repo.db.assignments[a.ID] = &a
	}
	return len(as), nil
}

func (repo *taskRepository) GetAssignmentByID(_ context.Context, id int, _ ...core.DBExecutor) (task.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return task.Assignment{}, task.ErrAssignmentNotFound
}

func (repo *taskRepository) FindAssignment(_ context.Context, taskID, userID int, date time.Time, _ ...core.DBExecutor) (task.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, a := range repo.db.assignments {
		if a.TaskID == taskID && a.UserID == userID && a.AssignedDate.Equal(date) {
			return *a, nil
		}
	}
	return task.Assignment{}, task.ErrAssignmentNotFound
}

func (repo *taskRepository) QueryAssignments(_ context.Context, filter task.AssignmentFilter, _ ...core.DBExecutor) ([]task.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]task.Assignment, 0, len(repo.db.assignments))
	for _, a := range repo.db.assignments {
		if filter.UserID != 0 && a.UserID != filter.UserID {
			continue
		}
		if !filter.From.IsZero() && a.AssignedDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && a.AssignedDate.After(filter.To) {
			continue
		}
		if filter.IsCompleted != nil && a.IsCompleted != *filter.IsCompleted {
			continue
		}
		if filter.IsCancelled != nil && a.IsCancelled != *filter.IsCancelled {
			continue
		}
		assignments = append(assignments, *a)
	}
	ord := core.DBOrdering{Field: "assigned_date", Ascending: true}
	if len(filter.Ordering) > 0 {
		ord = filter.Ordering[0]
	}
	sort.Slice(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		if !ord.Ascending {
			a, b = b, a
		}
		switch ord.Field {
		case "cancelled_at":
			if !a.CancelledAt.Time.Equal(b.CancelledAt.Time) {
				return a.CancelledAt.Time.Before(b.CancelledAt.Time)
			}
		default:
			if !a.AssignedDate.Equal(b.AssignedDate) {
				return a.AssignedDate.Before(b.AssignedDate)
			}
		}
		return a.ID < b.ID
	})
	if filter.Limit > 0 && len(assignments) > filter.Limit {
		assignments = assignments[:filter.Limit]
	}
	return assignments, nil
}

func (repo *taskRepository) UpdateAssignment(_ context.Context, a task.Assignment, _ ...core.DBExecutor) (task.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.assignments[a.ID]; !ok {
		return task.Assignment{}, task.ErrAssignmentNotFound
	}
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *taskRepository) CreateCompletion(_ context.Context, c task.Completion, _ ...core.DBExecutor) (task.Completion, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// one completion per assignment
	for _, existing := range repo.db.completions {
		if existing.AssignmentID == c.AssignmentID {
			return task.Completion{}, core.NewConflictError(errDuplicateCompletion)
		}
	}

	c.ID = repo.db.nextPK()
	repo.db.completions[c.ID] = &c
	return c, nil
}

func (repo *taskRepository) GetCompletionByID(_ context.Context, id int, _ ...core.DBExecutor) (task.Completion, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.completions[id]; ok {
		return *c, nil
	}
	return task.Completion{}, task.ErrCompletionNotFound
}

func (repo *taskRepository) GetCompletionByAssignmentID(_ context.Context, assignmentID int, _ ...core.DBExecutor) (task.Completion, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, c := range repo.db.completions {
		if c.AssignmentID == assignmentID {
			return *c, nil
		}
	}
	return task.Completion{}, task.ErrCompletionNotFound
}

func (repo *taskRepository) QueryCompletions(_ context.Context, filter task.CompletionFilter, _ ...core.DBExecutor) ([]task.Completion, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	completions := make([]task.Completion, 0, len(repo.db.completions))
	for _, c := range repo.db.completions {
		if filter.UserID != 0 && c.UserID != filter.UserID {
			continue
		}
		if filter.Unvalidated && c.ValidationScore.Valid {
			continue
		}
		completions = append(completions, *c)
	}
	sort.Slice(completions, func(i, j int) bool { return completions[i].ID < completions[j].ID })
	return completions, nil
}

func (repo *taskRepository) UpdateCompletion(_ context.Context, c task.Completion, _ ...core.DBExecutor) (task.Completion, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.completions[c.ID]; !ok {
		return task.Completion{}, task.ErrCompletionNotFound
	}
	repo.db.completions[c.ID] = &c
	return c, nil
}

func (repo *taskRepository) DeleteCompletion(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.completions, id)
	return nil
}

func (repo *taskRepository) CreateProposal(_ context.Context, p task.Proposal, _ ...core.DBExecutor) (task.Proposal, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p.ID = repo.db.nextPK()
	repo.db.proposals[p.ID] = &p
	return p, nil
}

func (repo *taskRepository) GetProposalByID(_ context.Context, id int, _ ...core.DBExecutor) (task.Proposal, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.proposals[id]; ok {
		return *p, nil
	}
	return task.Proposal{}, task.ErrProposalNotFound
}

func (repo *taskRepository) QueryProposals(_ context.Context, userID int, _ ...core.DBExecutor) ([]task.Proposal, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	proposals := make([]task.Proposal, 0, len(repo.db.proposals))
	for _, p := range repo.db.proposals {
		if userID != 0 && p.UserID != userID {
			continue
		}
		proposals = append(proposals, *p)
	}
	sort.Slice(proposals, func(i, j int) bool { return proposals[i].ID < proposals[j].ID })
	return proposals, nil
}

func (repo *taskRepository) UpdateProposal(_ context.Context, p task.Proposal, _ ...core.DBExecutor) (task.Proposal, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.proposals[p.ID]; !ok {
		return task.Proposal{}, task.ErrProposalNotFound
	}
	repo.db.proposals[p.ID] = &p
	return p, nil
}
