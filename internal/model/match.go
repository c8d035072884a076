// Package model はドメインモデルを定義する。
package model

import "time"

// MaxChatMessageLength はチャットメッセージの最大文字数。
const MaxChatMessageLength = 500

// Match は2つのタイムプレイス（とその所有者）の確定したペアリングを表す。
// (timeplace_1, timeplace_2) は概念的には順序なしペアで、検索は両順序で行う。
// メール・電話の開示フラグは片側ごとに独立しており、一方の開示が他方に波及することはない。
// 削除は物理削除ではなくソフトデリートで行い、削除済みマッチは終端状態となる。
type Match struct {
	ID           string
	TimePlace1   string
	TimePlace2   string
	EmailUser1   bool
	EmailUser2   bool
	PhoneUser1   bool
	PhoneUser2   bool
	ChatAccepted bool
	Deleted      bool
	DeletedOn    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MatchChat はマッチ内の1件のチャットメッセージを表す。
// 追記専用で、本コアが更新・削除することはない。
type MatchChat struct {
	ID        string
	MatchID   string
	UserID    string
	Message   string
	CreatedAt time.Time
}

// ContactField は開示対象の連絡先フィールドの種別を表す。
type ContactField string

const (
	// ContactFieldEmail はメールアドレスの開示を示す。
	ContactFieldEmail ContactField = "email"
	// ContactFieldPhone は電話番号の開示を示す。
	ContactFieldPhone ContactField = "phone"
)
