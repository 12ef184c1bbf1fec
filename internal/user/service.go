// Package user はユーザープロフィールのドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/ideaboard/internal/model"
	"github.com/hitoshi/ideaboard/internal/repository"
)

// maxAvatarSize はアバター画像の最大サイズ（2MB）。
const maxAvatarSize = 2 * 1024 * 1024

// defaultAvatarTimeout はアバター取得のデフォルトタイムアウト。
const defaultAvatarTimeout = 5 * time.Second

// SSRFValidator はアバター取得で使用するSSRF防止のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Service はユーザープロフィールのサービス層。
// プロフィール取得とアバター画像の管理を提供する。
type Service struct {
	users     repository.UserRepository
	ssrfGuard SSRFValidator
	timeout   time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserRepository, ssrfGuard SSRFValidator, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultAvatarTimeout
	}
	return &Service{
		users:     users,
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
	}
}

// GetProfile はユーザーIDからプロフィールを取得する。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// RefreshAvatar は外部IdPのアバターURLから画像を取得して保存する。
// 取得失敗はサインインを妨げないよう、呼び出し側で警告ログに留める前提。
func (s *Service) RefreshAvatar(ctx context.Context, userID, imageURL string) error {
	if imageURL == "" {
		return nil
	}

	data, mimeType, err := s.fetchAvatar(ctx, imageURL)
	if err != nil {
		return model.NewAvatarFetchFailedError(err)
	}
	if data == nil {
		// 取得できなかった場合は既存のアバターを維持する
		return nil
	}

	if err := s.users.UpdateAvatar(ctx, userID, data, mimeType); err != nil {
		return fmt.Errorf("アバターの保存に失敗しました: %w", err)
	}

	slog.Info("avatar refreshed",
		slog.String("user_id", userID),
		slog.String("mime_type", mimeType),
		slog.Int("size", len(data)),
	)
	return nil
}

// GetAvatar はユーザーの保存済みアバター画像を返す。
// アバター未設定の場合はnilデータと空MIMEを返す。
func (s *Service) GetAvatar(ctx context.Context, userID string) ([]byte, string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, "", model.NewUserNotFoundError()
	}
	return user.AvatarData, user.AvatarMime, nil
}

// fetchAvatar は指定URLからアバター画像を取得する。
// 画像でないレスポンスやサイズ超過はnilデータと空MIMEを返す（エラーは返さない）。
func (s *Service) fetchAvatar(ctx context.Context, imageURL string) ([]byte, string, error) {
	// SSRF検証
	if s.ssrfGuard != nil {
		if err := s.ssrfGuard.ValidateURL(imageURL); err != nil {
			return nil, "", fmt.Errorf("unsafe avatar URL: %w", err)
		}
	}

	client := s.httpClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Ideaboard/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("アバターの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("avatar fetch returned non-2xx",
			slog.String("url", imageURL),
			slog.Int("status", resp.StatusCode),
		)
		return nil, "", nil
	}

	// レスポンスボディを読み込み（最大2MB）
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("レスポンスの読み取りに失敗しました: %w", err)
	}
	if int64(len(body)) > maxAvatarSize {
		slog.Warn("avatar exceeds size limit",
			slog.String("url", imageURL),
			slog.Int("size", len(body)),
		)
		return nil, "", nil
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isImageMime(mimeType) {
		slog.Warn("avatar has non-image content type",
			slog.String("url", imageURL),
			slog.String("mime_type", mimeType),
		)
		return nil, "", nil
	}

	return body, mimeType, nil
}

// httpClient はアバター取得用のHTTPクライアントを返す。
func (s *Service) httpClient() *http.Client {
	if s.ssrfGuard != nil {
		return s.ssrfGuard.NewSafeClient(s.timeout)
	}
	return &http.Client{Timeout: s.timeout}
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
