// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/machiawase/internal/geo"
	"github.com/hitoshi/machiawase/internal/model"
)

// ErrDuplicateMatch はアクティブなマッチの一意制約違反を表す。
// 2つの並行リクエストが同じペアのマッチを同時に作成しようとした場合、
// 後者はストアの部分一意インデックスに弾かれてこのエラーを受け取る。
var ErrDuplicateMatch = errors.New("active match already exists for this pair")

// UserRepository はユーザーデータの読み取りインターフェース。
// アカウント管理は外部コラボレーターの責務のため、本コアは参照のみ行う。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindProfile は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindProfile(ctx context.Context, userID string) (*model.UserProfile, error)
}

// SessionRepository はセッションデータの読み取りインターフェース。
// セッションの発行・失効は外部コラボレーターの責務。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れ・未検出の場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// CandidateQuery は候補フィルタ（粗フィルタ）のクエリ条件。
// 起点タイムプレイスから導出され、ストア側で
// 自己除外・削除済み除外・時間帯重複・境界矩形・共通言語の条件に変換される。
type CandidateQuery struct {
	OriginID string          // 起点タイムプレイス自身を除外するためのID
	OwnerID  string          // 起点の所有者。所有者が同じレコードは候補から除外される
	Start    time.Time       // 起点の開始時刻
	End      time.Time       // 起点の終了時刻
	Box      geo.BoundingBox // radius/100度数近似の検索矩形
}

// TimePlaceRepository はタイムプレイスデータの永続化インターフェース。
type TimePlaceRepository interface {
	// FindByID は指定IDのタイムプレイスをタグ付きで取得する。
	// 見つからない場合はnilを返す。削除済みレコードも返すため、
	// 可視性の判定は呼び出し元のサービス層が行う。
	FindByID(ctx context.Context, id string) (*model.TimePlace, error)

	// Create はタイムプレイスとタグ関連を同一トランザクションで作成する。
	Create(ctx context.Context, tp *model.TimePlace) error

	// Update はタイムプレイス本体とタグ関連を同一トランザクションで更新する。
	Update(ctx context.Context, tp *model.TimePlace) error

	// SoftDelete は指定IDのタイムプレイスをソフトデリートする。
	// すでに削除済みの場合も成功として扱う（冪等）。
	SoftDelete(ctx context.Context, id string, deletedOn time.Time) error

	// ListByUser は指定ユーザーの非削除タイムプレイス一覧と総数を返す。
	// 作成日時の降順で、limit/offsetでページングする。
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.TimePlace, int, error)

	// ListAll は全ユーザーのタイムプレイス一覧と総数を返す（管理者用、削除済み含む）。
	ListAll(ctx context.Context, limit, offset int) ([]*model.TimePlace, int, error)

	// FindCandidates は粗フィルタを満たす候補一覧をstart昇順で返す。
	// 条件: 所有者が異なる、削除されていない、時間帯が重複する、
	// 境界矩形内にある、起点の所有者と共通言語を1つ以上持つ。
	// 共通言語の判定はuser_languagesの結合で行い、言語未登録の所有者は
	// 何ともマッチしない。タグIDは集約して各候補に含めて返す。
	FindCandidates(ctx context.Context, q CandidateQuery) ([]*model.TimePlace, error)
}

// MatchRepository はマッチデータの永続化インターフェース。
type MatchRepository interface {
	// FindByID は指定IDのマッチを取得する。見つからない場合はnilを返す。
	// 削除済みレコードも返すため、可視性の判定は呼び出し元が行う。
	FindByID(ctx context.Context, id string) (*model.Match, error)

	// FindActiveByPair は(tpA,tpB)または(tpB,tpA)の非削除マッチを検索する。
	// 見つからない場合はnilを返す。
	FindActiveByPair(ctx context.Context, tpA, tpB string) (*model.Match, error)

	// Create はマッチを作成する。同じ順序なしペアのアクティブなマッチが
	// すでに存在する場合、部分一意インデックスによりErrDuplicateMatchを返す。
	Create(ctx context.Context, m *model.Match) error

	// SetContactShared は指定サイド（1または2）の開示フラグを単一カラムの
	// アトミックなUPDATEでtrueにする。すでにtrueの場合は変更せずfalseを返す
	// （新規設定時はtrueを返す）。単調で取り消し不能。
	SetContactShared(ctx context.Context, matchID string, field model.ContactField, side int) (bool, error)

	// SetChatAccepted はchat_acceptedフラグをアトミックにtrueにする。
	// すでにtrueの場合は変更せずfalseを返す。
	SetChatAccepted(ctx context.Context, matchID string) (bool, error)

	// SoftDelete は指定IDのマッチをソフトデリートする。
	// すでに削除済みの場合も成功として扱う（冪等）。
	SoftDelete(ctx context.Context, id string, deletedOn time.Time) error

	// ListForUser は指定ユーザーが当事者である非削除マッチ一覧と総数を
	// 作成日時の降順で返す。
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*model.Match, int, error)

	// ListForTimePlace は指定タイムプレイスが片側である非削除マッチ一覧を
	// 作成日時の降順で返す。
	ListForTimePlace(ctx context.Context, timeplaceID string) ([]*model.Match, error)
}

// MatchChatRepository はチャットメッセージの永続化インターフェース。
// メッセージは追記専用で、更新・削除のメソッドは存在しない。
type MatchChatRepository interface {
	// Create はチャットメッセージを追記する。
	Create(ctx context.Context, chat *model.MatchChat) error

	// ListByMatch は指定マッチのメッセージ一覧と総数を作成日時の昇順で返す。
	ListByMatch(ctx context.Context, matchID string, limit, offset int) ([]*model.MatchChat, int, error)
}

// TagRepository は興味・アクティビティ・言語カタログの永続化インターフェース。
// カタログは参照データで、作成は管理者のみが行う。
type TagRepository interface {
	// ListInterests は興味タグ一覧と総数を名前の昇順で返す。
	ListInterests(ctx context.Context, limit, offset int) ([]model.Interest, int, error)

	// ListActivities はアクティビティタグ一覧と総数を名前の昇順で返す。
	ListActivities(ctx context.Context, limit, offset int) ([]model.Activity, int, error)

	// ListLanguages は言語一覧を名前の昇順で返す。
	ListLanguages(ctx context.Context) ([]model.Language, error)

	// CreateInterest は興味タグを作成する。
	CreateInterest(ctx context.Context, name string) (*model.Interest, error)

	// CreateActivity はアクティビティタグを作成する。
	CreateActivity(ctx context.Context, name string) (*model.Activity, error)

	// CreateLanguage は言語を作成する。
	CreateLanguage(ctx context.Context, name string) (*model.Language, error)

	// CountInterestsByIDs は指定IDのうち実在する興味タグの数を返す。
	// タイムプレイス作成・更新時のタグID検証に使用する。
	CountInterestsByIDs(ctx context.Context, ids []int64) (int, error)

	// CountActivitiesByIDs は指定IDのうち実在するアクティビティタグの数を返す。
	CountActivitiesByIDs(ctx context.Context, ids []int64) (int, error)
}
