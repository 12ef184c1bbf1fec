package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ideaboard/internal/middleware"
	"github.com/hitoshi/ideaboard/internal/model"
)

// IdeaServiceInterface はアイデアハンドラーが必要とするサービスインターフェース。
type IdeaServiceInterface interface {
	ListIdeas(ctx context.Context, stage model.Stage) ([]model.Idea, error)
	StageSummaries(ctx context.Context) ([]model.StageSummary, error)
}

// IdeaHandler はアイデア一覧のHTTPハンドラー。
type IdeaHandler struct {
	service IdeaServiceInterface
}

// NewIdeaHandler はIdeaHandlerを生成する。
func NewIdeaHandler(service IdeaServiceInterface) *IdeaHandler {
	return &IdeaHandler{service: service}
}

// ideaListResponse はアイデア一覧のレスポンス。
type ideaListResponse struct {
	Ideas []model.Idea `json:"ideas"`
	Total int          `json:"total"`
}

// ListIdeas はアイデア一覧を返す。
// GET /api/ideas?stage=seed
func (h *IdeaHandler) ListIdeas(w http.ResponseWriter, r *http.Request) {
	stage := model.Stage(r.URL.Query().Get("stage"))

	ideas, err := h.service.ListIdeas(r.Context(), stage)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidStage {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
			return
		}
		slog.Error("failed to list ideas", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ideaListResponse{
		Ideas: ideas,
		Total: len(ideas),
	})
}

// stageSummaryResponse はステージ別サマリのレスポンス。
type stageSummaryResponse struct {
	Stages []model.StageSummary `json:"stages"`
}

// StageSummaries はステージごとのアイデア件数を返す。
// GET /api/ideas/stages
func (h *IdeaHandler) StageSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.StageSummaries(r.Context())
	if err != nil {
		slog.Error("failed to summarize stages", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stageSummaryResponse{Stages: summaries})
}
