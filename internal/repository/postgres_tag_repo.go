package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/machiawase/internal/model"
)

// PostgresTagRepo はPostgreSQLを使用したタグカタログリポジトリ。
// 興味・アクティビティ・言語の参照データを扱う。
type PostgresTagRepo struct {
	db *sql.DB
}

// NewPostgresTagRepo はPostgresTagRepoを生成する。
func NewPostgresTagRepo(db *sql.DB) *PostgresTagRepo {
	return &PostgresTagRepo{db: db}
}

// ListInterests は興味タグ一覧と総数を名前の昇順で返す。
func (r *PostgresTagRepo) ListInterests(ctx context.Context, limit, offset int) ([]model.Interest, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interests`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("興味タグ総数の取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at
		 FROM interests ORDER BY name ASC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("興味タグ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var interests []model.Interest
	for rows.Next() {
		var in model.Interest
		if err := rows.Scan(&in.ID, &in.Name, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("興味タグ行の読み取りに失敗しました: %w", err)
		}
		interests = append(interests, in)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("興味タグ一覧の走査に失敗しました: %w", err)
	}

	return interests, total, nil
}

// ListActivities はアクティビティタグ一覧と総数を名前の昇順で返す。
func (r *PostgresTagRepo) ListActivities(ctx context.Context, limit, offset int) ([]model.Activity, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("アクティビティタグ総数の取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at
		 FROM activities ORDER BY name ASC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("アクティビティタグ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		var ac model.Activity
		if err := rows.Scan(&ac.ID, &ac.Name, &ac.CreatedAt, &ac.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("アクティビティタグ行の読み取りに失敗しました: %w", err)
		}
		activities = append(activities, ac)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("アクティビティタグ一覧の走査に失敗しました: %w", err)
	}

	return activities, total, nil
}

// ListLanguages は言語一覧を名前の昇順で返す。
func (r *PostgresTagRepo) ListLanguages(ctx context.Context) ([]model.Language, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM languages ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("言語一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var languages []model.Language
	for rows.Next() {
		var lang model.Language
		if err := rows.Scan(&lang.ID, &lang.Name); err != nil {
			return nil, fmt.Errorf("言語行の読み取りに失敗しました: %w", err)
		}
		languages = append(languages, lang)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("言語一覧の走査に失敗しました: %w", err)
	}

	return languages, nil
}

// CreateInterest は興味タグを作成する。
func (r *PostgresTagRepo) CreateInterest(ctx context.Context, name string) (*model.Interest, error) {
	in := &model.Interest{Name: name}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO interests (name, created_at, updated_at)
		 VALUES ($1, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		name,
	).Scan(&in.ID, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("興味タグの作成に失敗しました: %w", err)
	}
	return in, nil
}

// CreateActivity はアクティビティタグを作成する。
func (r *PostgresTagRepo) CreateActivity(ctx context.Context, name string) (*model.Activity, error) {
	ac := &model.Activity{Name: name}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO activities (name, created_at, updated_at)
		 VALUES ($1, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		name,
	).Scan(&ac.ID, &ac.CreatedAt, &ac.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("アクティビティタグの作成に失敗しました: %w", err)
	}
	return ac, nil
}

// CreateLanguage は言語を作成する。
func (r *PostgresTagRepo) CreateLanguage(ctx context.Context, name string) (*model.Language, error) {
	lang := &model.Language{Name: name}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO languages (name) VALUES ($1) RETURNING id`,
		name,
	).Scan(&lang.ID)
	if err != nil {
		return nil, fmt.Errorf("言語の作成に失敗しました: %w", err)
	}
	return lang, nil
}

// CountInterestsByIDs は指定IDのうち実在する興味タグの数を返す。
func (r *PostgresTagRepo) CountInterestsByIDs(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interests WHERE id = ANY($1)`,
		pq.Array(ids),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("興味タグ数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CountActivitiesByIDs は指定IDのうち実在するアクティビティタグの数を返す。
func (r *PostgresTagRepo) CountActivitiesByIDs(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activities WHERE id = ANY($1)`,
		pq.Array(ids),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("アクティビティタグ数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ TagRepository = (*PostgresTagRepo)(nil)
