package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/machiawase/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// アカウントの作成・更新は外部コラボレーターの責務のため、読み取りのみ提供する。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, is_admin, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &user.Name, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	return user, nil
}

// FindProfile は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	profile := &model.UserProfile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, phone, profile_email
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&profile.UserID, &profile.Phone, &profile.ProfileEmail)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	return profile, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
