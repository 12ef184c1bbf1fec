// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/ideaboard/internal/auth"
	"github.com/hitoshi/ideaboard/internal/middleware"
	"github.com/hitoshi/ideaboard/internal/model"
)

const oauthStateCookie = "oauth_state"

// CredentialServiceInterface はクレデンシャル認証ハンドラーが必要とする
// サービスインターフェース。
type CredentialServiceInterface interface {
	Signup(ctx context.Context, input auth.SignupInput) (*model.User, error)
	Signin(ctx context.Context, input auth.SigninInput) (*model.User, error)
}

// IdentityAuthenticatorInterface は外部IdP認証のインターフェース。
type IdentityAuthenticatorInterface interface {
	Authenticate(ctx context.Context, assertion auth.ExternalAssertion) (*model.User, error)
}

// OAuthProviderInterface はOAuthプロバイダーのインターフェース。
type OAuthProviderInterface interface {
	GetLoginURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*auth.ExternalAssertion, error)
}

// SessionIssuerInterface はセッショントークンの発行・検証インターフェース。
type SessionIssuerInterface interface {
	Issue(user *model.User) (string, error)
	Project(tokenString string) (*model.SessionView, bool)
	MaxAge() time.Duration
}

// AvatarRefresher は外部IdPサインイン成功後のアバター取得インターフェース。
// 取得失敗はサインインを妨げない。
type AvatarRefresher interface {
	RefreshAvatar(ctx context.Context, userID, imageURL string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL      string
	CookieDomain string
	CookieSecure bool
}

// AuthHandler は認証関連のHTTPハンドラー。
// クレデンシャル認証（サインアップ/サインイン）とGoogle OAuthフローを提供する。
type AuthHandler struct {
	credentials CredentialServiceInterface
	identity    IdentityAuthenticatorInterface
	oauth       OAuthProviderInterface
	sessions    SessionIssuerInterface
	avatars     AvatarRefresher
	config      AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	credentials CredentialServiceInterface,
	identity IdentityAuthenticatorInterface,
	oauth OAuthProviderInterface,
	sessions SessionIssuerInterface,
	avatars AvatarRefresher,
	config AuthHandlerConfig,
) *AuthHandler {
	return &AuthHandler{
		credentials: credentials,
		identity:    identity,
		oauth:       oauth,
		sessions:    sessions,
		avatars:     avatars,
		config:      config,
	}
}

// signupResponse はサインアップ成功時のレスポンス。
type signupResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// Signup は新規ユーザーを作成する。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var input auth.SignupInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_JSON",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "リクエスト形式を確認してください。",
		})
		return
	}

	user, err := h.credentials.Signup(r.Context(), input)
	if err != nil {
		h.writeSignupError(w, err)
		return
	}

	// パスワードハッシュはレスポンスに含めない
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(signupResponse{
		Message: "アカウントを作成しました。",
		UserID:  user.ID,
	})
}

// writeSignupError はサインアップのエラー種別に応じたレスポンスを書き込む。
func (h *AuthHandler) writeSignupError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		middleware.WriteValidationErrorResponse(w, verr)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeEmailTaken {
		middleware.WriteErrorResponse(w, http.StatusConflict, apiErr)
		return
	}

	slog.Error("signup failed", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// Signin はメールアドレスとパスワードで認証し、セッションを発行する。
// POST /api/auth/signin
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var input auth.SigninInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_JSON",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "リクエスト形式を確認してください。",
		})
		return
	}

	user, err := h.credentials.Signin(r.Context(), input)
	if err != nil {
		h.writeSigninError(w, err)
		return
	}

	if !h.issueSessionCookie(w, user) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionViewOf(user))
}

// writeSigninError はサインインのエラー種別に応じたレスポンスを書き込む。
// 認証失敗のメッセージはユーザー不在・パスワード不一致で共通。
func (h *AuthHandler) writeSigninError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		middleware.WriteValidationErrorResponse(w, verr)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidCredentials {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
		return
	}

	slog.Error("signin failed", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	url := h.oauth.GetLoginURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
// アサーション不正（拒否）とストア障害は別のステータスで応答する。
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	// 3. 認可コードをアサーションに交換
	assertion, err := h.oauth.ExchangeCode(r.Context(), code)
	if err != nil {
		slog.Error("oauth code exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// 4. ローカルユーザーのUPSERT
	user, err := h.identity.Authenticate(r.Context(), *assertion)
	if err != nil {
		if auth.IsInvalidAssertion(err) {
			slog.Warn("external identity rejected", slog.String("error", err.Error()))
			http.Error(w, "sign-in denied", http.StatusBadRequest)
			return
		}
		slog.Error("external identity authentication failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// 5. アバター画像の取得（失敗してもサインインは継続）
	if h.avatars != nil && assertion.Image != "" {
		if err := h.avatars.RefreshAvatar(r.Context(), user.ID, assertion.Image); err != nil {
			slog.Warn("failed to refresh avatar",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	// 6. セッションCookieを設定し、ダッシュボードへリダイレクト
	if !h.issueSessionCookie(w, user) {
		return
	}
	http.Redirect(w, r, h.config.BaseURL+"/dashboard", http.StatusTemporaryRedirect)
}

// Logout はセッションCookieをクリアする。
// POST /auth/logout
// トークンはステートレスのため、サーバー側の失効リストは存在しない。
// クリア後もトークン自体は自然失効まで暗号的には有効なままである。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Me は現在のセッションビューを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	view, ok := h.sessions.Project(cookie.Value)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

// issueSessionCookie はユーザーのセッショントークンを発行してCookieに設定する。
// 発行失敗時は500を書き込みfalseを返す。
func (h *AuthHandler) issueSessionCookie(w http.ResponseWriter, user *model.User) bool {
	token, err := h.sessions.Issue(user)
	if err != nil {
		slog.Error("failed to issue session token", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.sessions.MaxAge().Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

// sessionViewOf は認証直後のユーザーからセッションビューを構築する。
func sessionViewOf(user *model.User) *model.SessionView {
	view := &model.SessionView{
		ID:       user.ID,
		Email:    user.Email,
		Name:     user.DisplayName(),
		Provider: user.Provider,
	}
	if user.Image != nil {
		view.Image = *user.Image
	}
	return view
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
