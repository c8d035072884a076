// Package model はドメインモデルを定義する。
package model

import "time"

// タイムプレイスのバリデーション境界値。
const (
	// MaxRadiusKm は検索半径の上限（km）。
	MaxRadiusKm = 50
	// MaxDescriptionLength は説明文の最大文字数。
	MaxDescriptionLength = 2000
)

// TimePlace はユーザーが提案する「いつ・どこで・何を」を表す。
// 作成したユーザーのみが所有し、削除は物理削除ではなくソフトデリートで行う。
// 座標はDB上では固定精度のnumericで保持し、距離計算時のみfloat64として扱う。
type TimePlace struct {
	ID          string
	UserID      string
	Start       time.Time
	End         time.Time
	Latitude    float64
	Longitude   float64
	RadiusKm    int
	Description string
	City        string // ジオコーディングで解決した都市名。解決失敗時は空文字列。
	Interests   []int64
	Activities  []int64
	Deleted     bool
	DeletedOn   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
