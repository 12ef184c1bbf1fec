// Package model はドメインモデルを定義する。
package model

import "time"

// Stage はアイデアの育成ステージを表す。
// Seed → Refining → Validating → Launching の固定4段階。
type Stage string

const (
	StageSeed       Stage = "Seed"
	StageRefining   Stage = "Refining"
	StageValidating Stage = "Validating"
	StageLaunching  Stage = "Launching"
)

// Stages は表示順のステージ一覧。
var Stages = []Stage{StageSeed, StageRefining, StageValidating, StageLaunching}

// IsValid は定義済みステージかどうかを返す。
func (s Stage) IsValid() bool {
	for _, stage := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// Idea はダッシュボードに表示するアイデアカードを表す。
// 本システムではサンプルデータの読み取り専用表示のみを提供する。
type Idea struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Stage       Stage     `json:"stage"`
	Tags        []string  `json:"tags"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StageSummary はステージごとのアイデア件数を表す。
type StageSummary struct {
	Stage Stage `json:"stage"`
	Count int   `json:"count"`
}
