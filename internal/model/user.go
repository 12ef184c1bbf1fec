// Package model はドメインモデルを定義する。
package model

import "time"

// 認証プロバイダー名。
const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
)

// RoleUser は新規作成ユーザーに付与されるデフォルトロール。
const RoleUser = "USER"

// User はサービス利用ユーザーを表す。
// クレデンシャル認証で作成されたユーザーはPasswordHashを持ち、
// 外部IdP認証で作成されたユーザーはProviderID/Imageを持つ。
// Emailは最大1ユーザーを一意に識別する（DBのUNIQUE制約で保証）。
type User struct {
	ID           string
	Email        string
	Name         *string
	PasswordHash *string
	Image        *string
	AvatarData   []byte
	AvatarMime   string
	Provider     string
	ProviderID   *string
	Role         string
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword はパスワード認証が可能なユーザーかどうかを返す。
// 外部IdP専用ユーザー（PasswordHashなし）はfalseを返す。
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// DisplayName は表示名を返す。未設定の場合は空文字列を返す。
func (u *User) DisplayName() string {
	if u.Name == nil {
		return ""
	}
	return *u.Name
}

// SessionView はセッショントークンのクレームから復元される
// UI向けのユーザービュー。トークンの検証に成功した場合のみ生成される。
type SessionView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Image    string `json:"image,omitempty"`
	Provider string `json:"provider"`
}
