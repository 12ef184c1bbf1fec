package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はパスワードハッシュのデフォルトコストファクタ。
const DefaultBcryptCost = 12

// PasswordHasher はパスワードの一方向ハッシュ化と検証のインターフェース。
type PasswordHasher interface {
	// Hash は平文パスワードをソルト付きでハッシュ化する。
	Hash(plaintext string) (string, error)
	// Verify は平文パスワードが保存済みハッシュと一致するかを返す。
	// 比較はタイミング攻撃耐性を持つ。
	Verify(plaintext, hashed string) bool
}

// BcryptHasher はbcryptによるPasswordHasherの実装。
// ソルトはbcryptがハッシュ値に埋め込むため別途管理しない。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
// costが有効範囲外の場合はDefaultBcryptCostを使用する。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash は平文パスワードをハッシュ化する。
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify は平文パスワードが保存済みハッシュと一致するかを返す。
// bcrypt.CompareHashAndPasswordは内部で定数時間比較を行う。
func (h *BcryptHasher) Verify(plaintext, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}

// compile-time interface check
var _ PasswordHasher = (*BcryptHasher)(nil)
