package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/ideaboard/internal/middleware"
	"github.com/hitoshi/ideaboard/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	GetAvatar(ctx context.Context, userID string) (data []byte, mimeType string, err error)
}

// UserHandler はユーザープロフィールのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// profileResponse はプロフィールのレスポンス。
// パスワードハッシュとアバターのバイナリは含めない。
type profileResponse struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	Image     *string `json:"image"`
	Provider  string  `json:"provider"`
	Role      string  `json:"role"`
	HasAvatar bool    `json:"hasAvatar"`
}

// GetProfile は現在のユーザーのプロフィールを返す。
// GET /api/users/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profileResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.DisplayName(),
		Image:     user.Image,
		Provider:  user.Provider,
		Role:      user.Role,
		HasAvatar: len(user.AvatarData) > 0,
	})
}

// GetAvatar は現在のユーザーの保存済みアバター画像を返す。
// GET /api/users/me/avatar
// アバター未設定の場合は404を返す。
func (h *UserHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	data, mimeType, err := h.service.GetAvatar(r.Context(), userID)
	if err != nil {
		h.writeUserError(w, err)
		return
	}
	if len(data) == 0 {
		http.Error(w, "avatar not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// writeUserError はユーザー操作のエラー種別に応じたレスポンスを書き込む。
func (h *UserHandler) writeUserError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUserNotFound {
		middleware.WriteErrorResponse(w, http.StatusNotFound, apiErr)
		return
	}
	slog.Error("user operation failed", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
