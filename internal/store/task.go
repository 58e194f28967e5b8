package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/agenda/internal/model"
)

// scanLimit caps rows returned to the reminder engine per user and query.
const scanLimit = 200

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, owner_id, description, due_date, start_time, end_time, priority, is_completed, created_at, updated_at`

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var completed int
	err := scanner.Scan(&t.ID, &t.OwnerID, &t.Description, &t.DueDate, &t.StartTime, &t.EndTime, &t.Priority, &completed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Completed = completed != 0
	return &t, nil
}

func (s *TaskStore) Create(ownerID, description, dueDate, startTime, endTime, priority string) (*model.Task, error) {
	result, err := s.db.Exec(
		`INSERT INTO tasks (owner_id, description, due_date, start_time, end_time, priority)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ownerID, description, dueDate, startTime, endTime, priority,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id, ownerID)
}

func (s *TaskStore) GetByID(id int64, ownerID string) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) List(ownerID string) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks WHERE owner_id = ?
		 ORDER BY due_date DESC, start_time ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *TaskStore) Update(id int64, ownerID, description, dueDate, startTime, endTime, priority string, completed bool) (*model.Task, error) {
	var completedInt int
	if completed {
		completedInt = 1
	}
	_, err := s.db.Exec(
		`UPDATE tasks
		 SET description = ?, due_date = ?, start_time = ?, end_time = ?, priority = ?, is_completed = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND owner_id = ?`,
		description, dueDate, startTime, endTime, priority, completedInt, id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(id, ownerID)
}

// ToggleCompleted flips the completion flag and returns the updated task.
func (s *TaskStore) ToggleCompleted(id int64, ownerID string) (*model.Task, error) {
	_, err := s.db.Exec(
		`UPDATE tasks SET is_completed = 1 - is_completed, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle task: %w", err)
	}
	return s.GetByID(id, ownerID)
}

func (s *TaskStore) Delete(id int64, ownerID string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// ListPendingBetween returns uncompleted tasks due in [from, to] (YYYY-MM-DD, inclusive).
func (s *TaskStore) ListPendingBetween(ctx context.Context, ownerID, from, to string) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks
		 WHERE owner_id = ? AND is_completed = 0 AND due_date >= ? AND due_date <= ?
		 ORDER BY due_date, start_time LIMIT ?`,
		ownerID, from, to, scanLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]model.Task, error) {
	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
