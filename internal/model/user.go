// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// アカウント管理・認証は外部コラボレーターの責務で、本コアは参照のみ行う。
type User struct {
	ID        string
	Email     string
	Name      string
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserProfile はユーザーの公開プロフィールを表す。
// 連絡先（電話番号・プロフィールメール）は可視性プロジェクタの開示判定を通してのみ公開される。
type UserProfile struct {
	UserID       string
	Phone        string
	ProfileEmail string
}

// Session はユーザーのログインセッションを表す。
// 発行は外部コラボレーターの責務で、本コアは検証のための読み取りのみ行う。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
