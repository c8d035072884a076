package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/machiawase/internal/model"
)

// PostgresMatchChatRepo はPostgreSQLを使用したチャットメッセージリポジトリ。
// メッセージは追記専用で、更新・削除は行わない。
type PostgresMatchChatRepo struct {
	db *sql.DB
}

// NewPostgresMatchChatRepo はPostgresMatchChatRepoを生成する。
func NewPostgresMatchChatRepo(db *sql.DB) *PostgresMatchChatRepo {
	return &PostgresMatchChatRepo{db: db}
}

// Create はチャットメッセージを追記する。
func (r *PostgresMatchChatRepo) Create(ctx context.Context, chat *model.MatchChat) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO match_chats (id, match_id, user_id, message, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		chat.ID, chat.MatchID, chat.UserID, chat.Message, chat.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("チャットメッセージの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByMatch は指定マッチのメッセージ一覧と総数を作成日時の昇順で返す。
func (r *PostgresMatchChatRepo) ListByMatch(ctx context.Context, matchID string, limit, offset int) ([]*model.MatchChat, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM match_chats WHERE match_id = $1`,
		matchID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("チャットメッセージ総数の取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, match_id, user_id, message, created_at
		 FROM match_chats
		 WHERE match_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2 OFFSET $3`,
		matchID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("チャットメッセージ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var chats []*model.MatchChat
	for rows.Next() {
		chat := &model.MatchChat{}
		if err := rows.Scan(&chat.ID, &chat.MatchID, &chat.UserID, &chat.Message, &chat.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("チャットメッセージ行の読み取りに失敗しました: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("チャットメッセージ一覧の走査に失敗しました: %w", err)
	}

	return chats, total, nil
}

// compile-time interface check
var _ MatchChatRepository = (*PostgresMatchChatRepo)(nil)
