// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidAssertion   = "INVALID_ASSERTION"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeStoreFailure       = "STORE_FAILURE"
	ErrCodeInvalidStage       = "INVALID_STAGE"
	ErrCodeAvatarFetchFailed  = "AVATAR_FETCH_FAILED"
)

// NewEmailTakenError はメールアドレス重複エラーを生成する。
// サインアップ時に既存ユーザーと同じメールアドレスが指定された場合に返す。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、サインインしてください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// アカウント列挙を防ぐため、「ユーザーが存在しない」「パスワードが違う」
// 「パスワード未設定の外部IdPユーザー」のいずれの場合も同一のエラーを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidAssertionError は外部IdPアサーション不正エラーを生成する。
// 必須フィールド（email、プロバイダー名）が欠落している場合に返す。
// エンドユーザーではなく認証フロー呼び出し側に返却されるエラー。
func NewInvalidAssertionError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAssertion,
		Message:  fmt.Sprintf("外部IdPアサーションが不正です: %s", reason),
		Category: "auth",
		Action:   "IdPの設定とスコープ（email, profile）を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewStoreFailureError は永続化層の失敗を表すエラーを生成する。
// 原因の詳細は呼び出し側に分類させず、一般的な失敗として伝搬する。
func NewStoreFailureError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeStoreFailure,
		Message:  fmt.Sprintf("データストアの操作に失敗しました: %v", err),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidStageError は不明なステージ指定エラーを生成する。
func NewInvalidStageError(stage string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStage,
		Message:  fmt.Sprintf("不明なステージです: %s", stage),
		Category: "validation",
		Action:   "Seed, Refining, Validating, Launching のいずれかを指定してください。",
	}
}

// NewAvatarFetchFailedError はアバター画像取得失敗エラーを生成する。
func NewAvatarFetchFailedError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeAvatarFetchFailed,
		Message:  fmt.Sprintf("アバター画像の取得に失敗しました: %v", err),
		Category: "system",
		Action:   "画像URLを確認してください。",
	}
}

// FieldError は単一フィールドの検証エラーを表す。
// Pathは入力フィールド名、Codeは違反ルールの識別子。
type FieldError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError は1つ以上のフィールド検証エラーの集合を表す。
// 違反したルールは短絡せずすべて収集されるため、
// UIは全フィールドのエラーを一度に表示できる。
type ValidationError struct {
	Details []FieldError
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return "validation failed"
	}
	paths := make([]string, len(e.Details))
	for i, d := range e.Details {
		paths[i] = d.Path
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(paths, ", "))
}
