// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/ideaboard/internal/model"
)

// ErrDuplicateEmail は同一メールアドレスのユーザーが既に存在する場合のエラー。
// Createがusersテーブルのemail UNIQUE制約違反を検出した際に返す。
// 同一メールアドレスへの並行サインアップはこの制約でDBがシリアライズし、
// 最大1件のみが成功する。
var ErrDuplicateEmail = errors.New("user with this email already exists")

// UserRepository はユーザーデータの永続化インターフェース。
// 認証本体が必要とするのはemailによる検索と作成/UPSERTのみ。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。
	// 大文字小文字は保存値と完全一致で比較する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// email重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// UpsertByEmail はemailをキーにユーザーを作成または更新する。
	// 外部IdP認証フロー専用。新規時はuserの全フィールドで作成し、
	// 既存時はlast_login/provider/provider_id/imageのみを更新する
	// （id・email・password_hash・roleは変更しない）。
	// 更新後のユーザーを返す。
	UpsertByEmail(ctx context.Context, user *model.User) (*model.User, error)

	// UpdateAvatar は取得済みアバター画像のバイト列とMIMEを保存する。
	UpdateAvatar(ctx context.Context, id string, data []byte, mimeType string) error
}
