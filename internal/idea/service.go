// Package idea はアイデアボードの読み取り専用サービスを提供する。
package idea

import (
	"context"
	"time"

	"github.com/hitoshi/ideaboard/internal/model"
)

// Service はダッシュボードに表示するアイデア一覧を提供する。
// 現状はシードデータのみを返す。永続化は今後の課題。
type Service struct {
	now func() time.Time
}

// NewService はServiceを生成する。
func NewService() *Service {
	return &Service{now: time.Now}
}

// ListIdeas はステージ順に整列したアイデア一覧を返す。
// stageが空でない場合はそのステージのみに絞り込む。
func (s *Service) ListIdeas(ctx context.Context, stage model.Stage) ([]model.Idea, error) {
	if stage != "" && !stage.IsValid() {
		return nil, model.NewInvalidStageError(string(stage))
	}

	all := s.seedIdeas()
	if stage == "" {
		return all, nil
	}

	filtered := make([]model.Idea, 0, len(all))
	for _, i := range all {
		if i.Stage == stage {
			filtered = append(filtered, i)
		}
	}
	return filtered, nil
}

// StageSummaries はステージごとのアイデア件数を返す。
// 件数0のステージも含む。
func (s *Service) StageSummaries(ctx context.Context) ([]model.StageSummary, error) {
	counts := make(map[model.Stage]int, len(model.Stages))
	for _, i := range s.seedIdeas() {
		counts[i.Stage]++
	}

	summaries := make([]model.StageSummary, 0, len(model.Stages))
	for _, stage := range model.Stages {
		summaries = append(summaries, model.StageSummary{
			Stage: stage,
			Count: counts[stage],
		})
	}
	return summaries, nil
}

// seedIdeas はダッシュボード初期表示用のシードアイデアを返す。
func (s *Service) seedIdeas() []model.Idea {
	base := s.now().UTC()
	return []model.Idea{
		{
			ID:          "idea-001",
			Title:       "AIレシピジェネレーター",
			Description: "冷蔵庫にある食材からレシピを提案するサービス。",
			Stage:       model.StageSeed,
			Tags:        []string{"AI", "フード"},
			UpdatedAt:   base.Add(-72 * time.Hour),
		},
		{
			ID:          "idea-002",
			Title:       "リモートワーカー向けバーチャルオフィス",
			Description: "常時接続の音声空間で雑談のきっかけを作る。",
			Stage:       model.StageRefining,
			Tags:        []string{"リモートワーク", "コミュニケーション"},
			UpdatedAt:   base.Add(-48 * time.Hour),
		},
		{
			ID:          "idea-003",
			Title:       "ご近所スキルシェア",
			Description: "徒歩圏内でスキルを貸し借りできるマッチング。",
			Stage:       model.StageValidating,
			Tags:        []string{"マーケットプレイス"},
			UpdatedAt:   base.Add(-24 * time.Hour),
		},
		{
			ID:          "idea-004",
			Title:       "習慣トラッカー連携ボット",
			Description: "チャットツールに常駐して習慣の記録を促す。",
			Stage:       model.StageLaunching,
			Tags:        []string{"生産性", "ボット"},
			UpdatedAt:   base.Add(-6 * time.Hour),
		},
	}
}
