// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/ideaboard/internal/model"
)

// SessionCookieName はセッショントークンを保持するHTTP Only Cookieの名前。
const SessionCookieName = "session_token"

// サインイン/ダッシュボードページのパス。リダイレクト先として使用する。
const (
	signInPath    = "/signin"
	signUpPath    = "/signup"
	dashboardPath = "/dashboard"
)

// Decision はルートゲートの認可判定結果を表す。
type Decision int

const (
	// DecisionAllow はリクエストの通過を許可する。
	DecisionAllow Decision = iota
	// DecisionRedirectSignIn はサインインページへリダイレクトする。
	DecisionRedirectSignIn
	// DecisionRedirectDashboard はダッシュボードへリダイレクトする。
	// 認証済みユーザーが認証フォームにアクセスした場合に返る。
	DecisionRedirectDashboard
)

// publicPrefixes は前置一致で公開されるパス。
var publicPrefixes = []string{signInPath, signUpPath}

// bypassPrefixes はゲートの判定自体を通らないインフラパス。
// 認証機構のエンドポイント、メトリクス、ヘルスチェック、静的アセット。
var bypassPrefixes = []string{
	"/auth/",
	"/api/auth/",
	"/static/",
}

// bypassExact は完全一致でバイパスされるパス。
var bypassExact = []string{
	"/health",
	"/metrics",
	"/favicon.ico",
}

// Authorize は純粋な認可判定関数。
// リクエストパスと有効なセッションの有無から判定を返す。
//
//   - 公開パス（"/"完全一致、/signin・/signup前置一致）は常に許可。
//     ただし有効なセッションを持つユーザーが /signin または /signup に
//     完全一致でアクセスした場合はダッシュボードへリダイレクトする。
//   - それ以外のパスはセッションがあれば許可、なければサインインへ。
func Authorize(path string, hasValidSession bool) Decision {
	if hasValidSession && (path == signInPath || path == signUpPath) {
		return DecisionRedirectDashboard
	}

	if isPublicPath(path) {
		return DecisionAllow
	}

	if hasValidSession {
		return DecisionAllow
	}
	return DecisionRedirectSignIn
}

// IsBypassed はゲートの判定を通らないインフラパスかどうかを返す。
func IsBypassed(path string) bool {
	for _, p := range bypassExact {
		if path == p {
			return true
		}
	}
	for _, prefix := range bypassPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// isPublicPath は認証なしでアクセス可能な公開パスかどうかを返す。
func isPublicPath(path string) bool {
	if path == "/" {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// TokenVerifier はセッショントークンの検証に必要なインターフェース。
// auth.TokenIssuerの部分集合として定義する。
type TokenVerifier interface {
	// Project はトークンを検証してセッションビューを返す。
	// 検証失敗時はfalseを返す（エラーは返さない）。
	Project(tokenString string) (*model.SessionView, bool)
}

// NewGateMiddleware はルートゲートミドルウェアを返す。
// Cookieからセッショントークンを読み取り検証したうえで、
// Authorizeの判定に従って通過・リダイレクトを行う。
// 検証失敗は「セッションなし」として扱い、エラーにはしない。
// 許可されたリクエストのセッションビューはコンテキストに注入される。
func NewGateMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if IsBypassed(path) {
				next.ServeHTTP(w, r)
				return
			}

			view, ok := readSession(r, verifier)

			switch Authorize(path, ok) {
			case DecisionRedirectSignIn:
				http.Redirect(w, r, signInPath, http.StatusTemporaryRedirect)
				return
			case DecisionRedirectDashboard:
				http.Redirect(w, r, dashboardPath, http.StatusTemporaryRedirect)
				return
			}

			if ok {
				r = r.WithContext(ContextWithSession(r.Context(), view))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// readSession はCookieからトークンを読み取り検証する。
func readSession(r *http.Request, verifier TokenVerifier) (*model.SessionView, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	return verifier.Project(cookie.Value)
}

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションビューを格納するためのキー。
var sessionContextKey = contextKey("session")

// ContextWithSession はコンテキストにセッションビューを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, view *model.SessionView) context.Context {
	return context.WithValue(ctx, sessionContextKey, view)
}

// SessionFromContext はリクエストコンテキストからセッションビューを取得する。
// ゲートミドルウェアを通過した認証済みリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*model.SessionView, error) {
	view, ok := ctx.Value(sessionContextKey).(*model.SessionView)
	if !ok || view == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return view, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	view, err := SessionFromContext(ctx)
	if err != nil {
		return "", err
	}
	if view.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return view.ID, nil
}
