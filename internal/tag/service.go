// Package tag は興味・アクティビティ・言語カタログの参照と管理を提供する。
package tag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/machiawase/internal/model"
	"github.com/hitoshi/machiawase/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// maxTagNameLength はタグ名の最大文字数。
	maxTagNameLength = 100
)

// Service はタグカタログのサービス層。
// カタログの参照は全ユーザーに開かれ、追加は管理者のみが行える。
type Service struct {
	tagRepo repository.TagRepository
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(tagRepo repository.TagRepository, logger *slog.Logger) *Service {
	return &Service{tagRepo: tagRepo, logger: logger}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// InterestPage は興味タグ一覧の1ページ分の結果。
type InterestPage struct {
	Interests []model.Interest
	Total     int
	Page      int
	PageSize  int
}

// ActivityPage はアクティビティタグ一覧の1ページ分の結果。
type ActivityPage struct {
	Activities []model.Activity
	Total      int
	Page       int
	PageSize   int
}

// ListInterests は興味タグ一覧を名前順で返す。
func (s *Service) ListInterests(ctx context.Context, page, pageSize int) (*InterestPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	interests, total, err := s.tagRepo.ListInterests(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("興味タグ一覧の取得に失敗しました: %w", err)
	}
	return &InterestPage{Interests: interests, Total: total, Page: page, PageSize: pageSize}, nil
}

// ListActivities はアクティビティタグ一覧を名前順で返す。
func (s *Service) ListActivities(ctx context.Context, page, pageSize int) (*ActivityPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	activities, total, err := s.tagRepo.ListActivities(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("アクティビティタグ一覧の取得に失敗しました: %w", err)
	}
	return &ActivityPage{Activities: activities, Total: total, Page: page, PageSize: pageSize}, nil
}

// ListLanguages は言語カタログの全件を返す。件数が少ないためページネーションしない。
func (s *Service) ListLanguages(ctx context.Context) ([]model.Language, error) {
	languages, err := s.tagRepo.ListLanguages(ctx)
	if err != nil {
		return nil, fmt.Errorf("言語一覧の取得に失敗しました: %w", err)
	}
	return languages, nil
}

// validateTagName はタグ名を正規化して検証する。
func validateTagName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", model.NewValidationError("タグ名は必須です")
	}
	if utf8.RuneCountInString(name) > maxTagNameLength {
		return "", model.NewValidationError(
			fmt.Sprintf("タグ名は%d文字以内で入力してください", maxTagNameLength))
	}
	return name, nil
}

// CreateInterest は興味タグをカタログに追加する。管理者のみ実行できる。
func (s *Service) CreateInterest(ctx context.Context, requester *model.User, name string) (*model.Interest, error) {
	if requester == nil || !requester.IsAdmin {
		return nil, model.NewForbiddenError()
	}
	name, err := validateTagName(name)
	if err != nil {
		return nil, err
	}

	interest, err := s.tagRepo.CreateInterest(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("興味タグの作成に失敗しました: %w", err)
	}

	s.logger.Info("興味タグを作成しました",
		slog.Int64("interest_id", interest.ID),
		slog.String("name", interest.Name),
	)
	return interest, nil
}

// CreateActivity はアクティビティタグをカタログに追加する。管理者のみ実行できる。
func (s *Service) CreateActivity(ctx context.Context, requester *model.User, name string) (*model.Activity, error) {
	if requester == nil || !requester.IsAdmin {
		return nil, model.NewForbiddenError()
	}
	name, err := validateTagName(name)
	if err != nil {
		return nil, err
	}

	activity, err := s.tagRepo.CreateActivity(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("アクティビティタグの作成に失敗しました: %w", err)
	}

	s.logger.Info("アクティビティタグを作成しました",
		slog.Int64("activity_id", activity.ID),
		slog.String("name", activity.Name),
	)
	return activity, nil
}

// CreateLanguage は言語をカタログに追加する。管理者のみ実行できる。
func (s *Service) CreateLanguage(ctx context.Context, requester *model.User, name string) (*model.Language, error) {
	if requester == nil || !requester.IsAdmin {
		return nil, model.NewForbiddenError()
	}
	name, err := validateTagName(name)
	if err != nil {
		return nil, err
	}

	language, err := s.tagRepo.CreateLanguage(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("言語の作成に失敗しました: %w", err)
	}

	s.logger.Info("言語を作成しました",
		slog.Int64("language_id", language.ID),
		slog.String("name", language.Name),
	)
	return language, nil
}
