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

// AuthMetrics は認証イベントのメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type AuthMetrics interface {
	RecordSignupSuccess()
	RecordSignupFailure(reason string)
	RecordSigninSuccess(provider string)
	RecordSigninFailure(provider string, reason string)
}

// Service はクレデンシャル認証（サインアップ/サインイン）の
// ビジネスロジックを提供する。
type Service struct {
	validator *Validator
	hasher    PasswordHasher
	users     repository.UserRepository
	metrics   AuthMetrics
	now       func() time.Time
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(validator *Validator, hasher PasswordHasher, users repository.UserRepository, metrics AuthMetrics) *Service {
	return &Service{
		validator: validator,
		hasher:    hasher,
		users:     users,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Signup は新規ユーザーを作成する。
// 処理順序: 検証 → 既存ユーザー確認 → ハッシュ化 → 作成。
// メールアドレスが既に使用されている場合はEmailTakenエラーを返す。
// 同一メールアドレスへの並行サインアップはDBのUNIQUE制約により
// 最大1件のみ成功し、敗者にもEmailTakenエラーが返る。
func (s *Service) Signup(ctx context.Context, input SignupInput) (*model.User, error) {
	if verr := s.validator.ValidateSignup(&input); verr != nil {
		s.recordSignupFailure("validation")
		return nil, verr
	}

	// 事前チェック。競合の最終防衛線はCreateのUNIQUE制約。
	existing, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		s.recordSignupFailure("store")
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		s.recordSignupFailure("email_taken")
		return nil, model.NewEmailTakenError()
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	name := input.Name
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		Name:         &name,
		PasswordHash: &hashed,
		Provider:     model.ProviderCredentials,
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.recordSignupFailure("email_taken")
			return nil, model.NewEmailTakenError()
		}
		s.recordSignupFailure("store")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSignupSuccess()
	}
	slog.Info("new user signed up",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// recordSignupFailure はメトリクスコレクターが設定されている場合のみ記録する。
func (s *Service) recordSignupFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordSignupFailure(reason)
	}
}

// recordSigninFailure はメトリクスコレクターが設定されている場合のみ記録する。
func (s *Service) recordSigninFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordSigninFailure(model.ProviderCredentials, reason)
	}
}

// Signin はメールアドレスとパスワードでユーザーを認証する。
// アカウント列挙を防ぐため、ユーザー不在・パスワード未設定・
// パスワード不一致のいずれも同一のInvalidCredentialsエラーを返す。
// 外部IdP認証と異なり、last_loginは更新しない。
func (s *Service) Signin(ctx context.Context, input SigninInput) (*model.User, error) {
	if verr := s.validator.ValidateSignin(&input); verr != nil {
		s.recordSigninFailure("validation")
		return nil, verr
	}

	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		s.recordSigninFailure("store")
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || !user.HasPassword() {
		s.recordSigninFailure("invalid_credentials")
		return nil, model.NewInvalidCredentialsError()
	}

	if !s.hasher.Verify(input.Password, *user.PasswordHash) {
		s.recordSigninFailure("invalid_credentials")
		return nil, model.NewInvalidCredentialsError()
	}

	if s.metrics != nil {
		s.metrics.RecordSigninSuccess(model.ProviderCredentials)
	}
	slog.Info("user signed in",
		slog.String("user_id", user.ID),
		slog.String("provider", model.ProviderCredentials),
	)

	return user, nil
}
