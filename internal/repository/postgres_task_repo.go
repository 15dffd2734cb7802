package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/todoman/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// すべてのクエリは user_id による絞り込みを明示的に含む。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// ListByUserID はユーザーのタスク一覧を作成日時の昇順で返す。
func (r *PostgresTaskRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, is_completed, user_id, created_at, updated_at
		 FROM tasks WHERE user_id = $1 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*model.Task{}
	for rows.Next() {
		task := &model.Task{}
		if err := rows.Scan(&task.ID, &task.Title, &task.IsCompleted, &task.UserID, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task rows: %w", err)
	}
	return tasks, nil
}

// FindByIDAndUserID は所有者が一致するタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Task, error) {
	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, is_completed, user_id, created_at, updated_at
		 FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&task.ID, &task.Title, &task.IsCompleted, &task.UserID, &task.CreatedAt, &task.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, is_completed, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		task.ID, task.Title, task.IsCompleted, task.UserID, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Update はnilでないフィールドのみを1文で更新し、更新後のタスクを返す。
// 所有者が一致するタスクが存在しない場合はnilを返す。
func (r *PostgresTaskRepo) Update(ctx context.Context, id, userID string, patch model.TaskPatch) (*model.Task, error) {
	var title sql.NullString
	if patch.Title != nil {
		title = sql.NullString{String: *patch.Title, Valid: true}
	}
	var completed sql.NullBool
	if patch.IsCompleted != nil {
		completed = sql.NullBool{Bool: *patch.IsCompleted, Valid: true}
	}

	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE tasks
		 SET title = COALESCE($3, title),
		     is_completed = COALESCE($4, is_completed),
		     updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, title, is_completed, user_id, created_at, updated_at`,
		id, userID, title, completed,
	).Scan(&task.ID, &task.Title, &task.IsCompleted, &task.UserID, &task.CreatedAt, &task.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// DeleteByIDAndUserID は所有者が一致するタスクを削除する。
func (r *PostgresTaskRepo) DeleteByIDAndUserID(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
