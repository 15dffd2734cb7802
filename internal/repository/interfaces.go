// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/todoman/internal/model"
)

// ErrDuplicateEmail はusers.emailの一意制約に違反した場合に返される。
// 登録時の存在確認と作成の間で競合した場合もこのエラーになる。
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository はユーザーデータ（認証情報）の永続化インターフェース。
type UserRepository interface {
	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが既に存在する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error
}

// TaskRepository はタスクデータの永続化インターフェース。
// すべての操作は所有者のユーザーIDで絞り込まれる。
type TaskRepository interface {
	// ListByUserID はユーザーのタスク一覧を作成日時の昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Task, error)

	// FindByIDAndUserID は所有者が一致するタスクを取得する。見つからない場合はnilを返す。
	FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Task, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// Update はnilでないフィールドのみを更新し、更新後のタスクを返す。
	// 所有者が一致するタスクが存在しない場合はnilを返す。
	Update(ctx context.Context, id, userID string, patch model.TaskPatch) (*model.Task, error)

	// DeleteByIDAndUserID は所有者が一致するタスクを削除する。
	// 削除した場合はtrue、対象が存在しない場合はfalseを返す。
	DeleteByIDAndUserID(ctx context.Context, id, userID string) (bool, error)
}
