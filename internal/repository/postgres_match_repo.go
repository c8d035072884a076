package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/machiawase/internal/model"
)

// uniqueViolationCode はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolationCode = "23505"

// matchSelectColumns はマッチ取得時の共通SELECT句。
const matchSelectColumns = `
	id, timeplace_1, timeplace_2,
	email_user_1, email_user_2, phone_user_1, phone_user_2,
	chat_accepted, deleted, deleted_on, created_at, updated_at`

// PostgresMatchRepo はPostgreSQLを使用したマッチリポジトリ。
type PostgresMatchRepo struct {
	db *sql.DB
}

// NewPostgresMatchRepo はPostgresMatchRepoを生成する。
func NewPostgresMatchRepo(db *sql.DB) *PostgresMatchRepo {
	return &PostgresMatchRepo{db: db}
}

// scanMatch は1行分のマッチを読み取る。
func scanMatch(scanner interface {
	Scan(dest ...interface{}) error
}) (*model.Match, error) {
	m := &model.Match{}
	var deletedOn sql.NullTime

	err := scanner.Scan(
		&m.ID, &m.TimePlace1, &m.TimePlace2,
		&m.EmailUser1, &m.EmailUser2, &m.PhoneUser1, &m.PhoneUser2,
		&m.ChatAccepted, &m.Deleted, &deletedOn, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if deletedOn.Valid {
		t := deletedOn.Time
		m.DeletedOn = &t
	}
	return m, nil
}

// FindByID は指定IDのマッチを取得する。見つからない場合はnilを返す。
// 削除済みレコードも返すため、可視性の判定は呼び出し元が行う。
func (r *PostgresMatchRepo) FindByID(ctx context.Context, id string) (*model.Match, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+matchSelectColumns+` FROM matches WHERE id = $1`,
		id,
	)

	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("マッチの取得に失敗しました: %w", err)
	}
	return m, nil
}

// FindActiveByPair は(tpA,tpB)または(tpB,tpA)の非削除マッチを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresMatchRepo) FindActiveByPair(ctx context.Context, tpA, tpB string) (*model.Match, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+matchSelectColumns+`
		 FROM matches
		 WHERE deleted = false
		   AND ((timeplace_1 = $1 AND timeplace_2 = $2)
		     OR (timeplace_1 = $2 AND timeplace_2 = $1))`,
		tpA, tpB,
	)

	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ペアによるマッチの検索に失敗しました: %w", err)
	}
	return m, nil
}

// Create はマッチを作成する。
// 同じ順序なしペアのアクティブなマッチがすでに存在する場合、
// (LEAST, GREATEST)に対する部分一意インデックスが違反となり、
// ErrDuplicateMatchを返す。並行する2つの作成リクエストのうち
// 後からコミットした側が必ずこのエラーを受け取る。
func (r *PostgresMatchRepo) Create(ctx context.Context, m *model.Match) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO matches
			(id, timeplace_1, timeplace_2,
			 email_user_1, email_user_2, phone_user_1, phone_user_2,
			 chat_accepted, deleted, created_at, updated_at)
		 VALUES ($1, $2, $3, false, false, false, false, false, false, $4, $5)`,
		m.ID, m.TimePlace1, m.TimePlace2, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return ErrDuplicateMatch
		}
		return fmt.Errorf("マッチの作成に失敗しました: %w", err)
	}
	return nil
}

// contactColumn は開示フィールドとサイドからカラム名を解決する。
func contactColumn(field model.ContactField, side int) (string, error) {
	switch {
	case field == model.ContactFieldEmail && side == 1:
		return "email_user_1", nil
	case field == model.ContactFieldEmail && side == 2:
		return "email_user_2", nil
	case field == model.ContactFieldPhone && side == 1:
		return "phone_user_1", nil
	case field == model.ContactFieldPhone && side == 2:
		return "phone_user_2", nil
	default:
		return "", fmt.Errorf("不正な開示フィールド指定です: field=%s side=%d", field, side)
	}
}

// SetContactShared は指定サイドの開示フラグをアトミックにtrueにする。
// WHERE句でfalseのみを対象とする単一カラムUPDATEのため、
// 並行する呼び出しがあっても read-modify-write の競合は発生しない。
// 新規に設定した場合はtrue、すでにtrueだった場合はfalseを返す（どちらも成功）。
func (r *PostgresMatchRepo) SetContactShared(ctx context.Context, matchID string, field model.ContactField, side int) (bool, error) {
	column, err := contactColumn(field, side)
	if err != nil {
		return false, err
	}

	// カラム名は上のホワイトリストからのみ取得するため文字列連結で安全。
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET `+column+` = true, updated_at = NOW()
		 WHERE id = $1 AND `+column+` = false AND deleted = false`,
		matchID,
	)
	if err != nil {
		return false, fmt.Errorf("開示フラグの更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// SetChatAccepted はchat_acceptedフラグをアトミックにtrueにする。
// 新規に設定した場合はtrue、すでにtrueだった場合はfalseを返す。
func (r *PostgresMatchRepo) SetChatAccepted(ctx context.Context, matchID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET chat_accepted = true, updated_at = NOW()
		 WHERE id = $1 AND chat_accepted = false AND deleted = false`,
		matchID,
	)
	if err != nil {
		return false, fmt.Errorf("チャット承諾フラグの更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// SoftDelete は指定IDのマッチをソフトデリートする。
// すでに削除済みの場合は何も変更せず成功を返す（冪等）。
func (r *PostgresMatchRepo) SoftDelete(ctx context.Context, id string, deletedOn time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE matches
		 SET deleted = true, deleted_on = $2, updated_at = NOW()
		 WHERE id = $1 AND deleted = false`,
		id, deletedOn,
	)
	if err != nil {
		return fmt.Errorf("マッチのソフトデリートに失敗しました: %w", err)
	}
	return nil
}

// ListForUser は指定ユーザーが当事者である非削除マッチ一覧と総数を返す。
// 当事者判定はタイムプレイスの所有者との結合で行う。
func (r *PostgresMatchRepo) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*model.Match, int, error) {
	const memberCondition = `
		m.deleted = false
		AND EXISTS (
			SELECT 1 FROM timeplaces t
			WHERE t.id IN (m.timeplace_1, m.timeplace_2) AND t.user_id = $1
		)`

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches m WHERE `+memberCondition,
		userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("マッチ総数の取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.timeplace_1, m.timeplace_2,
		        m.email_user_1, m.email_user_2, m.phone_user_1, m.phone_user_2,
		        m.chat_accepted, m.deleted, m.deleted_on, m.created_at, m.updated_at
		 FROM matches m
		 WHERE `+memberCondition+`
		 ORDER BY m.created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("マッチ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	matches, err := collectMatches(rows)
	if err != nil {
		return nil, 0, err
	}
	return matches, total, nil
}

// ListForTimePlace は指定タイムプレイスが片側である非削除マッチ一覧を返す。
func (r *PostgresMatchRepo) ListForTimePlace(ctx context.Context, timeplaceID string) ([]*model.Match, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+matchSelectColumns+`
		 FROM matches
		 WHERE deleted = false
		   AND (timeplace_1 = $1 OR timeplace_2 = $1)
		 ORDER BY created_at DESC`,
		timeplaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("タイムプレイスのマッチ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectMatches(rows)
}

// collectMatches は結果セットの全行を読み取る。
func collectMatches(rows *sql.Rows) ([]*model.Match, error) {
	var matches []*model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("マッチ行の読み取りに失敗しました: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("マッチ一覧の走査に失敗しました: %w", err)
	}
	return matches, nil
}

// compile-time interface check
var _ MatchRepository = (*PostgresMatchRepo)(nil)
