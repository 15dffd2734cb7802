// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Emailは保存時の表記のまま一意（大文字小文字を区別する）。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
