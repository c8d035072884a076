// Package auth は認可判定を提供する。
// 「所有者本人または管理者のみ」のルールはタイムプレイス、マッチ、
// チャットのすべてで繰り返されるため、単一の述語として共通化する。
package auth

import "github.com/hitoshi/machiawase/internal/model"

// CanAccess はユーザーが指定の所有者のリソースにアクセスできるかを判定する。
// 所有者本人または管理者の場合にtrueを返す。
func CanAccess(user *model.User, ownerID string) bool {
	if user == nil {
		return false
	}
	return user.IsAdmin || user.ID == ownerID
}

// IsMember はユーザーが2者のいずれかであるかを判定する。
// マッチの当事者判定に使用する。管理者の特権は認めない。
// 連絡先の公開やチャットは当事者本人の意思表示であるため、
// 管理者であっても代行できない。
func IsMember(user *model.User, ownerID1, ownerID2 string) bool {
	if user == nil {
		return false
	}
	return user.ID == ownerID1 || user.ID == ownerID2
}
