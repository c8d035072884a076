// Package timeplace はタイムプレイスのCRUDとバリデーションを提供する。
package timeplace

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/machiawase/internal/auth"
	"github.com/hitoshi/machiawase/internal/geocode"
	"github.com/hitoshi/machiawase/internal/model"
	"github.com/hitoshi/machiawase/internal/repository"
	"github.com/hitoshi/machiawase/internal/security"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Input はタイムプレイスの作成・更新の入力値。
type Input struct {
	Start       time.Time
	End         time.Time
	Latitude    float64
	Longitude   float64
	RadiusKm    int
	Description string
	Interests   []int64
	Activities  []int64
}

// Service はタイムプレイスのサービス層。
type Service struct {
	timeplaceRepo repository.TimePlaceRepository
	tagRepo       repository.TagRepository
	geocoder      geocode.ReverseGeocoder
	sanitizer     security.ContentSanitizerService
	logger        *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	timeplaceRepo repository.TimePlaceRepository,
	tagRepo repository.TagRepository,
	geocoder geocode.ReverseGeocoder,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
) *Service {
	return &Service{
		timeplaceRepo: timeplaceRepo,
		tagRepo:       tagRepo,
		geocoder:      geocoder,
		sanitizer:     sanitizer,
		logger:        logger,
	}
}

// Page はタイムプレイス一覧の1ページ分の結果。
type Page struct {
	TimePlaces []*model.TimePlace
	Total      int
	Page       int
	PageSize   int
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

// validate は入力値の境界を検証する。説明文はサニタイズ済みであること。
func validate(in *Input, now time.Time) error {
	if !in.Start.After(now) {
		return model.NewValidationError("開始時刻は未来でなければなりません")
	}
	if !in.End.After(in.Start) {
		return model.NewValidationError("終了時刻は開始時刻より後でなければなりません")
	}
	if in.Latitude < -90 || in.Latitude > 90 {
		return model.NewValidationError("緯度は-90から90の範囲で指定してください")
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return model.NewValidationError("経度は-180から180の範囲で指定してください")
	}
	if in.RadiusKm < 1 || in.RadiusKm > model.MaxRadiusKm {
		return model.NewValidationError(
			fmt.Sprintf("半径は1から%dkmの範囲で指定してください", model.MaxRadiusKm))
	}
	if utf8.RuneCountInString(in.Description) > model.MaxDescriptionLength {
		return model.NewValidationError(
			fmt.Sprintf("説明文は%d文字以内で入力してください", model.MaxDescriptionLength))
	}
	return nil
}

// dedupeIDs は重複を除いたID一覧を返す。
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

// validateTags は指定されたタグIDがすべてカタログに存在することを検証する。
func (s *Service) validateTags(ctx context.Context, interests, activities []int64) error {
	if len(interests) > 0 {
		count, err := s.tagRepo.CountInterestsByIDs(ctx, interests)
		if err != nil {
			return fmt.Errorf("興味タグの検証に失敗しました: %w", err)
		}
		if count != len(interests) {
			return model.NewTagNotFoundError("興味")
		}
	}
	if len(activities) > 0 {
		count, err := s.tagRepo.CountActivitiesByIDs(ctx, activities)
		if err != nil {
			return fmt.Errorf("アクティビティタグの検証に失敗しました: %w", err)
		}
		if count != len(activities) {
			return model.NewTagNotFoundError("アクティビティ")
		}
	}
	return nil
}

// Create はタイムプレイスを作成する。都市名はジオコーディングで解決するが、
// 解決に失敗しても作成は続行し、都市名は空のままになる。
func (s *Service) Create(ctx context.Context, requester *model.User, in *Input) (*model.TimePlace, error) {
	in.Description = s.sanitizer.Sanitize(in.Description)
	if err := validate(in, time.Now()); err != nil {
		return nil, err
	}

	interests := dedupeIDs(in.Interests)
	activities := dedupeIDs(in.Activities)
	if err := s.validateTags(ctx, interests, activities); err != nil {
		return nil, err
	}

	city := s.geocoder.CityName(ctx, in.Latitude, in.Longitude)

	now := time.Now()
	tp := &model.TimePlace{
		ID:          uuid.NewString(),
		UserID:      requester.ID,
		Start:       in.Start,
		End:         in.End,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		RadiusKm:    in.RadiusKm,
		Description: in.Description,
		City:        city,
		Interests:   interests,
		Activities:  activities,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.timeplaceRepo.Create(ctx, tp); err != nil {
		return nil, fmt.Errorf("タイムプレイスの作成に失敗しました: %w", err)
	}

	s.logger.Info("タイムプレイスを作成しました",
		slog.String("timeplace_id", tp.ID),
		slog.String("user_id", tp.UserID),
		slog.String("city", tp.City),
	)
	return tp, nil
}

// Get は指定IDのタイムプレイスを返す。所有者または管理者のみ取得でき、
// それ以外には存在を秘匿するためNotFoundを返す。
func (s *Service) Get(ctx context.Context, requester *model.User, id string) (*model.TimePlace, error) {
	tp, err := s.timeplaceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("タイムプレイスの取得に失敗しました: %w", err)
	}
	if tp == nil || tp.Deleted {
		return nil, model.NewTimePlaceNotFoundError(id)
	}
	if !auth.CanAccess(requester, tp.UserID) {
		return nil, model.NewTimePlaceNotFoundError(id)
	}
	return tp, nil
}

// Update はタイムプレイスを更新する。位置が変わった場合のみ都市名を引き直す。
func (s *Service) Update(ctx context.Context, requester *model.User, id string, in *Input) (*model.TimePlace, error) {
	tp, err := s.Get(ctx, requester, id)
	if err != nil {
		return nil, err
	}

	in.Description = s.sanitizer.Sanitize(in.Description)
	if err := validate(in, time.Now()); err != nil {
		return nil, err
	}

	interests := dedupeIDs(in.Interests)
	activities := dedupeIDs(in.Activities)
	if err := s.validateTags(ctx, interests, activities); err != nil {
		return nil, err
	}

	if in.Latitude != tp.Latitude || in.Longitude != tp.Longitude {
		tp.City = s.geocoder.CityName(ctx, in.Latitude, in.Longitude)
	}

	tp.Start = in.Start
	tp.End = in.End
	tp.Latitude = in.Latitude
	tp.Longitude = in.Longitude
	tp.RadiusKm = in.RadiusKm
	tp.Description = in.Description
	tp.Interests = interests
	tp.Activities = activities

	if err := s.timeplaceRepo.Update(ctx, tp); err != nil {
		return nil, fmt.Errorf("タイムプレイスの更新に失敗しました: %w", err)
	}
	return tp, nil
}

// Delete はタイムプレイスをソフトデリートする。
// すでに削除済みの場合はNotFoundを返す（可視性の秘匿と同じ扱い）。
func (s *Service) Delete(ctx context.Context, requester *model.User, id string) error {
	if _, err := s.Get(ctx, requester, id); err != nil {
		return err
	}

	if err := s.timeplaceRepo.SoftDelete(ctx, id, time.Now()); err != nil {
		return err
	}
	s.logger.Info("タイムプレイスを削除しました", slog.String("timeplace_id", id))
	return nil
}

// List はタイムプレイス一覧を返す。一般ユーザーは自分の非削除分のみ、
// 管理者は全件を閲覧できる。
func (s *Service) List(ctx context.Context, requester *model.User, page, pageSize int) (*Page, error) {
	page, pageSize = normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	var (
		tps   []*model.TimePlace
		total int
		err   error
	)
	if requester.IsAdmin {
		tps, total, err = s.timeplaceRepo.ListAll(ctx, pageSize, offset)
	} else {
		tps, total, err = s.timeplaceRepo.ListByUser(ctx, requester.ID, pageSize, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("タイムプレイス一覧の取得に失敗しました: %w", err)
	}

	return &Page{
		TimePlaces: tps,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}
