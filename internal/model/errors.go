// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// Detailには機械可読な補足情報（既存マッチIDなど）を格納する。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, matching, system
	Action   string            // ユーザー向け対処方法
	Detail   map[string]string // 機械可読な補足情報（省略可）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeTimePlaceNotFound = "TIMEPLACE_NOT_FOUND"
	ErrCodeMatchNotFound     = "MATCH_NOT_FOUND"
	ErrCodeMatchExists       = "MATCH_EXISTS"
	ErrCodeSelfMatch         = "SELF_MATCH"
	ErrCodeNotMatchMember    = "NOT_MATCH_MEMBER"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeInvalidChatText   = "INVALID_CHAT_TEXT"
	ErrCodeChatNotAccepted   = "CHAT_NOT_ACCEPTED"
	ErrCodeTagNotFound       = "TAG_NOT_FOUND"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
)

// NewTimePlaceNotFoundError はタイムプレイス未検出エラーを生成する。
// 他ユーザーのタイムプレイスへのアクセスも、存在を漏らさないよう同じエラーになる。
func NewTimePlaceNotFoundError(timeplaceID string) *APIError {
	return &APIError{
		Code:     ErrCodeTimePlaceNotFound,
		Message:  fmt.Sprintf("指定されたタイムプレイスが見つかりません: %s", timeplaceID),
		Category: "matching",
		Action:   "タイムプレイスIDを確認してください。",
	}
}

// NewMatchNotFoundError はマッチ未検出エラーを生成する。
// 当事者以外からのアクセスも、存在を漏らさないよう同じエラーになる。
func NewMatchNotFoundError(matchID string) *APIError {
	return &APIError{
		Code:     ErrCodeMatchNotFound,
		Message:  fmt.Sprintf("指定されたマッチが見つかりません: %s", matchID),
		Category: "matching",
		Action:   "マッチIDを確認してください。",
	}
}

// NewMatchExistsError は重複マッチ作成エラーを生成する。
// Detailに既存のマッチIDを含める。
func NewMatchExistsError(existingMatchID string) *APIError {
	return &APIError{
		Code:     ErrCodeMatchExists,
		Message:  "このタイムプレイスの組み合わせにはすでにマッチが存在します。",
		Category: "matching",
		Action:   "既存のマッチを確認してください。",
		Detail:   map[string]string{"existing_match_id": existingMatchID},
	}
}

// NewSelfMatchError は自分自身のタイムプレイス同士のマッチ作成エラーを生成する。
func NewSelfMatchError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfMatch,
		Message:  "自分のタイムプレイス同士をマッチさせることはできません。",
		Category: "matching",
		Action:   "他のユーザーのタイムプレイスを選択してください。",
	}
}

// NewNotMatchMemberError はマッチの当事者以外による操作エラーを生成する。
func NewNotMatchMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeNotMatchMember,
		Message:  "このマッチの当事者ではないため、操作できません。",
		Category: "auth",
		Action:   "自分が参加しているマッチに対してのみ操作できます。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "自分が所有するリソースに対してのみ操作できます。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidChatTextError はチャットメッセージの検証エラーを生成する。
func NewInvalidChatTextError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidChatText,
		Message:  fmt.Sprintf("チャットメッセージが不正です: %s", reason),
		Category: "validation",
		Action:   "メッセージは1文字以上500文字以内で入力してください。",
	}
}

// NewChatNotAcceptedError はチャット未承諾時の投稿エラーを生成する。
// チャット承諾ゲートのポリシーが有効な場合にのみ返される。
func NewChatNotAcceptedError() *APIError {
	return &APIError{
		Code:     ErrCodeChatNotAccepted,
		Message:  "チャットがまだ承諾されていません。",
		Category: "matching",
		Action:   "チャットが承諾されるまでお待ちください。",
	}
}

// NewTagNotFoundError は存在しないタグIDの指定エラーを生成する。
func NewTagNotFoundError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeTagNotFound,
		Message:  fmt.Sprintf("指定された%sタグの一部が見つかりません。", kind),
		Category: "validation",
		Action:   "タグ一覧APIで有効なIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
