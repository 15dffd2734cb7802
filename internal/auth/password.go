package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes はbcryptがハッシュ計算に使用するパスワードの最大バイト数。
// これを超える入力は先頭72バイトに切り詰めてからハッシュ化・照合する。
// そのため先頭72バイトが同一のパスワード同士は同じものとして扱われる。
const MaxPasswordBytes = 72

// PasswordHasher はbcryptによるパスワードのハッシュ化と照合を行う。
// ソルトはハッシュごとにランダムに生成され、ハッシュ文字列に埋め込まれる。
// 空のパスワードも受け付ける（入力ポリシーは呼び出し側の責務）。
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher はPasswordHasherを生成する。
// costが0以下の場合はbcrypt.DefaultCostを使用する。
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash はパスワードのbcryptハッシュを返す。
// コストが不正な場合など内部的な失敗の場合のみエラーを返す。
func (h *PasswordHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(truncatePassword(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify はパスワードがハッシュと一致する場合にtrueを返す。
// ハッシュが不正な形式の場合もfalseを返す。
func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncatePassword(password)) == nil
}

func truncatePassword(password string) []byte {
	b := []byte(password)
	if len(b) > MaxPasswordBytes {
		b = b[:MaxPasswordBytes]
	}
	return b
}
