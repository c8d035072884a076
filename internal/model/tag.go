// Package model はドメインモデルを定義する。
package model

import "time"

// Interest は興味タグのカタログエントリを表す。
// マッチングロジックからはIDの集合としてのみ扱われ、名前は表示用。
type Interest struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Activity はアクティビティタグのカタログエントリを表す。
type Activity struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Language は言語のカタログエントリを表す。
// 共通言語フィルタはユーザーごとの言語ID集合の交差のみで判定する。
type Language struct {
	ID   int64
	Name string
}
