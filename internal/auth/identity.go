package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/ideaboard/internal/model"
	"github.com/hitoshi/ideaboard/internal/repository"
)

// ExternalAssertion は外部IdPから受け取った検証済みのアイデンティティを表す。
// IdP側の検証プロトコル（トークン交換等）はOAuthProviderが担い、
// 本体は受領済みアサーションを信頼して処理する。
type ExternalAssertion struct {
	Email             string
	Name              string
	Image             string
	ProviderAccountID string
	ProviderName      string // "google" 等
}

// NameSanitizer は外部IdP由来の表示名をサニタイズするインターフェース。
type NameSanitizer interface {
	SanitizeName(raw string) string
}

// IdentityAuthenticator は外部IdPアサーションによる認証を提供する。
// email をキーにローカルユーザーをUPSERTし、last_loginを更新する。
// パスワードハッシュには一切触れず、クレデンシャル検証も実行しない。
type IdentityAuthenticator struct {
	users     repository.UserRepository
	sanitizer NameSanitizer
	now       func() time.Time
}

// NewIdentityAuthenticator はIdentityAuthenticatorを生成する。
func NewIdentityAuthenticator(users repository.UserRepository, sanitizer NameSanitizer) *IdentityAuthenticator {
	return &IdentityAuthenticator{
		users:     users,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Authenticate はアサーションを検証し、ローカルユーザーをUPSERTして返す。
// 新規作成時: email/name/image/provider/provider_id/role=USER/last_login=now。
// 既存更新時: last_login=now（provider/provider_id/imageも最新値に更新）。
// 拒否（アサーション不正）とストア障害は別のエラーとして区別される。
func (a *IdentityAuthenticator) Authenticate(ctx context.Context, assertion ExternalAssertion) (*model.User, error) {
	if assertion.Email == "" {
		return nil, model.NewInvalidAssertionError("email is missing")
	}
	if assertion.ProviderName == "" {
		return nil, model.NewInvalidAssertionError("provider name is missing")
	}

	now := a.now()
	candidate := &model.User{
		ID:        uuid.New().String(),
		Email:     assertion.Email,
		Provider:  assertion.ProviderName,
		Role:      model.RoleUser,
		LastLogin: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if name := a.sanitizeName(assertion.Name); name != "" {
		candidate.Name = &name
	}
	if assertion.Image != "" {
		image := assertion.Image
		candidate.Image = &image
	}
	if assertion.ProviderAccountID != "" {
		providerID := assertion.ProviderAccountID
		candidate.ProviderID = &providerID
	}

	user, err := a.users.UpsertByEmail(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	slog.Info("external identity authenticated",
		slog.String("user_id", user.ID),
		slog.String("provider", assertion.ProviderName),
	)

	return user, nil
}

// sanitizeName は表示名からHTMLタグ等を除去する。
func (a *IdentityAuthenticator) sanitizeName(raw string) string {
	if a.sanitizer == nil {
		return raw
	}
	return a.sanitizer.SanitizeName(raw)
}

// IsInvalidAssertion はエラーがアサーション不正（認証拒否）かどうかを返す。
// OAuthコールバックのハンドラーが拒否とストア障害を区別するために使用する。
func IsInvalidAssertion(err error) bool {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == model.ErrCodeInvalidAssertion
	}
	return false
}
