package model

import "time"

// Task はユーザーが所有するタスクを表す。
// UserIDは所有者への外部キーであり、所有者以外からは参照・更新できない。
type Task struct {
	ID          string
	Title       string
	IsCompleted bool
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskPatch はタスクの部分更新内容を表す。
// nilのフィールドは変更しない。
type TaskPatch struct {
	Title       *string
	IsCompleted *bool
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.IsCompleted == nil
}
