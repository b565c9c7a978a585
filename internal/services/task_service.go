package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/task-manager-be/internal/database"
	"github.com/isdelr/task-manager-be/internal/errs"
	"github.com/isdelr/task-manager-be/internal/models"
)

// Publisher receives task changes after they are committed.
type Publisher interface {
	Publish(ownerID string, event models.TaskEvent)
}

// TaskServiceProvider defines the interface for task services. Every method
// is scoped to ownerID; tasks of other owners behave as if they did not exist.
type TaskServiceProvider interface {
	Create(ctx context.Context, ownerID string, fields Fields) (models.Task, error)
	Get(ctx context.Context, ownerID, id string) (models.Task, error)
	List(ctx context.Context, ownerID string, q TaskQuery) ([]models.Task, error)
	Update(ctx context.Context, ownerID, id string, fields Fields) (models.Task, error)
	Delete(ctx context.Context, ownerID, id string) (models.Task, error)
}

// TaskService provides business logic for tasks.
type TaskService struct {
	db     *sql.DB
	events Publisher
	now    func() time.Time
}

// NewTaskService creates a new TaskService. events may be nil.
func NewTaskService(db *sql.DB, events Publisher) *TaskService {
	return &TaskService{
		db:     db,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

const taskColumns = "id, description, completed, owner_id, created_at, updated_at"

func scanTask(row interface{ Scan(...any) error }) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.Description, &t.Completed, &t.Owner, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *TaskService) publish(action string, task models.Task) {
	if s.events != nil {
		s.events.Publish(task.Owner, models.TaskEvent{Action: action, Task: task})
	}
}

func taskDescription(fields Fields) (string, error) {
	description, err := fields.stringValue("description")
	if err != nil {
		return "", err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return "", errs.Validation("description is required")
	}
	return description, nil
}

// Create adds a task owned by ownerID. completed defaults to false.
func (s *TaskService) Create(ctx context.Context, ownerID string, fields Fields) (models.Task, error) {
	if err := fields.checkAllowed("description", "completed"); err != nil {
		return models.Task{}, err
	}
	if !fields.has("description") {
		return models.Task{}, errs.Validation("description is required")
	}
	description, err := taskDescription(fields)
	if err != nil {
		return models.Task{}, err
	}
	var completed bool
	if fields.has("completed") {
		if completed, err = fields.boolValue("completed"); err != nil {
			return models.Task{}, err
		}
	}

	now := s.now()
	task := models.Task{
		ID:          uuid.NewString(),
		Description: description,
		Completed:   completed,
		Owner:       ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, description, completed, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		task.ID, task.Description, task.Completed, task.Owner, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return models.Task{}, errs.Internal("insert task", err)
	}

	s.publish(models.TaskCreated, task)
	return task, nil
}

// Get returns the task only when ownerID owns it.
func (s *TaskService) Get(ctx context.Context, ownerID, id string) (models.Task, error) {
	return getTask(ctx, s.db, ownerID, id)
}

func getTask(ctx context.Context, q database.DBTX, ownerID, id string) (models.Task, error) {
	task, err := scanTask(q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, errs.NotFound("task")
	}
	if err != nil {
		return models.Task{}, errs.Internal("load task", err)
	}
	return task, nil
}

// List returns the owner's tasks filtered, sorted and paged by q.
func (s *TaskService) List(ctx context.Context, ownerID string, q TaskQuery) ([]models.Task, error) {
	query, args := q.SQL(ownerID)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Internal("list tasks", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, errs.Internal("scan task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Internal("list tasks", err)
	}
	return tasks, nil
}

// Update applies a partial update of description and completed.
func (s *TaskService) Update(ctx context.Context, ownerID, id string, fields Fields) (models.Task, error) {
	if err := fields.checkAllowed("description", "completed"); err != nil {
		return models.Task{}, err
	}

	var (
		sets []string
		args []any
	)
	if fields.has("description") {
		description, err := taskDescription(fields)
		if err != nil {
			return models.Task{}, err
		}
		sets = append(sets, "description = ?")
		args = append(args, description)
	}
	if fields.has("completed") {
		completed, err := fields.boolValue("completed")
		if err != nil {
			return models.Task{}, err
		}
		sets = append(sets, "completed = ?")
		args = append(args, completed)
	}

	if len(sets) == 0 {
		return s.Get(ctx, ownerID, id)
	}

	var task models.Task
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx database.DBTX) error {
		sets = append(sets, "updated_at = ?")
		args = append(args, s.now(), id, ownerID)
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ? AND owner_id = ?`, args...)
		if err != nil {
			return errs.Internal("update task", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return errs.NotFound("task")
		}
		task, err = getTask(ctx, tx, ownerID, id)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}

	s.publish(models.TaskUpdated, task)
	return task, nil
}

// Delete removes the task and returns it as it was.
func (s *TaskService) Delete(ctx context.Context, ownerID, id string) (models.Task, error) {
	var task models.Task
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx database.DBTX) error {
		var err error
		if task, err = getTask(ctx, tx, ownerID, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID); err != nil {
			return errs.Internal("delete task", err)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}

	s.publish(models.TaskDeleted, task)
	return task, nil
}
