package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/machiawase/internal/model"
)

// timeplaceSelectColumns はタイムプレイス取得時の共通SELECT句。
// 興味・アクティビティのタグIDは集約サブクエリで配列として取得する。
const timeplaceSelectColumns = `
	t.id, t.user_id, t.start_at, t.end_at, t.latitude, t.longitude,
	t.radius_km, t.description, t.city, t.deleted, t.deleted_on,
	t.created_at, t.updated_at,
	COALESCE(ti.ids, '{}') AS interest_ids,
	COALESCE(ta.ids, '{}') AS activity_ids`

// timeplaceTagJoins はタグID集約サブクエリとのLEFT JOIN句。
const timeplaceTagJoins = `
	LEFT JOIN (
		SELECT timeplace_id, array_agg(interest_id ORDER BY interest_id) AS ids
		FROM timeplace_interests GROUP BY timeplace_id
	) ti ON ti.timeplace_id = t.id
	LEFT JOIN (
		SELECT timeplace_id, array_agg(activity_id ORDER BY activity_id) AS ids
		FROM timeplace_activities GROUP BY timeplace_id
	) ta ON ta.timeplace_id = t.id`

// PostgresTimePlaceRepo はPostgreSQLを使用したタイムプレイスリポジトリ。
type PostgresTimePlaceRepo struct {
	db *sql.DB
}

// NewPostgresTimePlaceRepo はPostgresTimePlaceRepoを生成する。
func NewPostgresTimePlaceRepo(db *sql.DB) *PostgresTimePlaceRepo {
	return &PostgresTimePlaceRepo{db: db}
}

// scanTimePlace は1行分のタイムプレイスを読み取る。
func scanTimePlace(scanner interface {
	Scan(dest ...interface{}) error
}) (*model.TimePlace, error) {
	tp := &model.TimePlace{}
	var deletedOn sql.NullTime
	var interestIDs, activityIDs pq.Int64Array

	err := scanner.Scan(
		&tp.ID, &tp.UserID, &tp.Start, &tp.End, &tp.Latitude, &tp.Longitude,
		&tp.RadiusKm, &tp.Description, &tp.City, &tp.Deleted, &deletedOn,
		&tp.CreatedAt, &tp.UpdatedAt,
		&interestIDs, &activityIDs,
	)
	if err != nil {
		return nil, err
	}

	if deletedOn.Valid {
		t := deletedOn.Time
		tp.DeletedOn = &t
	}
	tp.Interests = []int64(interestIDs)
	tp.Activities = []int64(activityIDs)

	return tp, nil
}

// FindByID は指定IDのタイムプレイスをタグ付きで取得する。見つからない場合はnilを返す。
// 削除済みレコードも返すため、可視性の判定は呼び出し元のサービス層が行う。
func (r *PostgresTimePlaceRepo) FindByID(ctx context.Context, id string) (*model.TimePlace, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+timeplaceSelectColumns+`
		 FROM timeplaces t`+timeplaceTagJoins+`
		 WHERE t.id = $1`,
		id,
	)

	tp, err := scanTimePlace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タイムプレイスの取得に失敗しました: %w", err)
	}

	return tp, nil
}

// Create はタイムプレイスとタグ関連を同一トランザクションで作成する。
func (r *PostgresTimePlaceRepo) Create(ctx context.Context, tp *model.TimePlace) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO timeplaces
			(id, user_id, start_at, end_at, latitude, longitude, radius_km,
			 description, city, deleted, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10, $11)`,
		tp.ID, tp.UserID, tp.Start, tp.End, tp.Latitude, tp.Longitude,
		tp.RadiusKm, tp.Description, tp.City, tp.CreatedAt, tp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タイムプレイスの作成に失敗しました: %w", err)
	}

	if err := insertTimePlaceTags(ctx, tx, tp); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// Update はタイムプレイス本体とタグ関連を同一トランザクションで更新する。
// タグ関連は削除して挿入し直す。
func (r *PostgresTimePlaceRepo) Update(ctx context.Context, tp *model.TimePlace) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE timeplaces
		 SET start_at = $2, end_at = $3, latitude = $4, longitude = $5,
		     radius_km = $6, description = $7, city = $8, updated_at = NOW()
		 WHERE id = $1`,
		tp.ID, tp.Start, tp.End, tp.Latitude, tp.Longitude,
		tp.RadiusKm, tp.Description, tp.City,
	)
	if err != nil {
		return fmt.Errorf("タイムプレイスの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("タイムプレイスが見つかりません: %s", tp.ID)
	}

	for _, stmt := range []string{
		`DELETE FROM timeplace_interests WHERE timeplace_id = $1`,
		`DELETE FROM timeplace_activities WHERE timeplace_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, tp.ID); err != nil {
			return fmt.Errorf("タグ関連の削除に失敗しました: %w", err)
		}
	}

	if err := insertTimePlaceTags(ctx, tx, tp); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// insertTimePlaceTags はタグ関連行を挿入する。
func insertTimePlaceTags(ctx context.Context, tx *sql.Tx, tp *model.TimePlace) error {
	for _, interestID := range tp.Interests {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO timeplace_interests (timeplace_id, interest_id) VALUES ($1, $2)`,
			tp.ID, interestID,
		); err != nil {
			return fmt.Errorf("興味タグ関連の作成に失敗しました: %w", err)
		}
	}
	for _, activityID := range tp.Activities {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO timeplace_activities (timeplace_id, activity_id) VALUES ($1, $2)`,
			tp.ID, activityID,
		); err != nil {
			return fmt.Errorf("アクティビティタグ関連の作成に失敗しました: %w", err)
		}
	}
	return nil
}

// SoftDelete は指定IDのタイムプレイスをソフトデリートする。
// すでに削除済みの場合は何も変更せず成功を返す（冪等）。
func (r *PostgresTimePlaceRepo) SoftDelete(ctx context.Context, id string, deletedOn time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE timeplaces
		 SET deleted = true, deleted_on = $2, updated_at = NOW()
		 WHERE id = $1 AND deleted = false`,
		id, deletedOn,
	)
	if err != nil {
		return fmt.Errorf("タイムプレイスのソフトデリートに失敗しました: %w", err)
	}
	return nil
}

// ListByUser は指定ユーザーの非削除タイムプレイス一覧と総数を返す。
func (r *PostgresTimePlaceRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.TimePlace, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM timeplaces WHERE user_id = $1 AND deleted = false`,
		userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("タイムプレイス総数の取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+timeplaceSelectColumns+`
		 FROM timeplaces t`+timeplaceTagJoins+`
		 WHERE t.user_id = $1 AND t.deleted = false
		 ORDER BY t.created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("タイムプレイス一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	tps, err := collectTimePlaces(rows)
	if err != nil {
		return nil, 0, err
	}
	return tps, total, nil
}

// ListAll は全タイムプレイス一覧と総数を返す（管理者用、削除済み含む）。
func (r *PostgresTimePlaceRepo) ListAll(ctx context.Context, limit, offset int) ([]*model.TimePlace, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM timeplaces`).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("タイムプレイス総数の取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+timeplaceSelectColumns+`
		 FROM timeplaces t`+timeplaceTagJoins+`
		 ORDER BY t.created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("タイムプレイス一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	tps, err := collectTimePlaces(rows)
	if err != nil {
		return nil, 0, err
	}
	return tps, total, nil
}

// FindCandidates は粗フィルタを満たす候補一覧をstart昇順で返す。
// 共通言語の判定はuser_languages同士の結合によるEXISTSで行うため、
// 言語未登録の所有者（起点・候補いずれも）は何ともマッチしない。
func (r *PostgresTimePlaceRepo) FindCandidates(ctx context.Context, q CandidateQuery) ([]*model.TimePlace, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+timeplaceSelectColumns+`
		 FROM timeplaces t`+timeplaceTagJoins+`
		 WHERE t.deleted = false
		   AND t.id <> $1
		   AND t.user_id <> $2
		   AND t.start_at <= $3
		   AND t.end_at >= $4
		   AND t.latitude BETWEEN $5 AND $6
		   AND t.longitude BETWEEN $7 AND $8
		   AND EXISTS (
		       SELECT 1
		       FROM user_languages cl
		       JOIN user_languages ol
		         ON ol.language_id = cl.language_id AND ol.user_id = $2
		       WHERE cl.user_id = t.user_id
		   )
		 ORDER BY t.start_at ASC`,
		q.OriginID, q.OwnerID, q.End, q.Start,
		q.Box.MinLat, q.Box.MaxLat, q.Box.MinLon, q.Box.MaxLon,
	)
	if err != nil {
		return nil, fmt.Errorf("候補タイムプレイスの検索に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectTimePlaces(rows)
}

// collectTimePlaces は結果セットの全行を読み取る。
func collectTimePlaces(rows *sql.Rows) ([]*model.TimePlace, error) {
	var tps []*model.TimePlace
	for rows.Next() {
		tp, err := scanTimePlace(rows)
		if err != nil {
			return nil, fmt.Errorf("タイムプレイス行の読み取りに失敗しました: %w", err)
		}
		tps = append(tps, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タイムプレイス一覧の走査に失敗しました: %w", err)
	}
	return tps, nil
}

// compile-time interface check
var _ TimePlaceRepository = (*PostgresTimePlaceRepo)(nil)
