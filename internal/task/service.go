// Package task はタスク管理のドメインロジックを提供する。
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/todoman/internal/metrics"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
	"github.com/hitoshi/todoman/internal/security"
)

// Service はタスク管理のサービス層。
// 全ての操作は認証済みユーザーのIDで絞り込まれ、他ユーザーのタスクは存在しないものとして扱う。
type Service struct {
	taskRepo  repository.TaskRepository
	sanitizer security.TitleSanitizerService
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	taskRepo repository.TaskRepository,
	sanitizer security.TitleSanitizerService,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		taskRepo:  taskRepo,
		sanitizer: sanitizer,
		metrics:   collector,
	}
}

// List はユーザーのタスク一覧を作成日時の昇順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Task, error) {
	tasks, err := s.taskRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	return tasks, nil
}

// Get は指定タスクを返す。
func (s *Service) Get(ctx context.Context, userID, taskID string) (*model.Task, error) {
	taskID, ok := normalizeID(taskID)
	if !ok {
		return nil, model.NewTaskNotFoundError()
	}

	t, err := s.taskRepo.FindByIDAndUserID(ctx, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewTaskNotFoundError()
	}
	return t, nil
}

// Create はタスクを作成する。タイトルはサニタイズ後に空であればエラーとする。
func (s *Service) Create(ctx context.Context, userID, title string, isCompleted bool) (*model.Task, error) {
	cleaned := s.sanitizer.Sanitize(title)
	if cleaned == "" {
		return nil, model.NewInvalidTitleError()
	}

	now := time.Now()
	t := &model.Task{
		ID:          uuid.New().String(),
		Title:       cleaned,
		IsCompleted: isCompleted,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.taskRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}

	s.metrics.RecordTaskOperation("create")
	return t, nil
}

// Update はタスクを部分更新する。patchのnilフィールドは変更しない。
func (s *Service) Update(ctx context.Context, userID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	taskID, ok := normalizeID(taskID)
	if !ok {
		return nil, model.NewTaskNotFoundError()
	}

	if patch.Title != nil {
		cleaned := s.sanitizer.Sanitize(*patch.Title)
		if cleaned == "" {
			return nil, model.NewInvalidTitleError()
		}
		patch.Title = &cleaned
	}

	// 変更内容がない場合は現在の状態を返す
	if patch.IsEmpty() {
		return s.Get(ctx, userID, taskID)
	}

	t, err := s.taskRepo.Update(ctx, taskID, userID, patch)
	if err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewTaskNotFoundError()
	}

	s.metrics.RecordTaskOperation("update")
	return t, nil
}

// Delete はタスクを削除する。
func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	taskID, ok := normalizeID(taskID)
	if !ok {
		return model.NewTaskNotFoundError()
	}

	deleted, err := s.taskRepo.DeleteByIDAndUserID(ctx, taskID, userID)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewTaskNotFoundError()
	}

	s.metrics.RecordTaskOperation("delete")
	return nil
}

// normalizeID はIDを正規形のUUID文字列に変換する。
// UUIDとして解釈できないIDはSQLに渡さない。
func normalizeID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
