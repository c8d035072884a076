// Package matching はタイムプレイス間のマッチング判定と検索を提供する。
// 候補の粗い絞り込みはリポジトリ層のクエリで行い、
// 本パッケージは距離とタグの重なりによる厳密なペア判定と、
// 検索結果のページネーションを担当する。
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/machiawase/internal/auth"
	"github.com/hitoshi/machiawase/internal/geo"
	"github.com/hitoshi/machiawase/internal/metrics"
	"github.com/hitoshi/machiawase/internal/model"
	"github.com/hitoshi/machiawase/internal/repository"
)

const (
	// DefaultPageSize はマッチング検索のデフォルトのページサイズ。
	DefaultPageSize = 20
	// MaxPageSize はマッチング検索の最大ページサイズ。
	MaxPageSize = 100
)

// Overlaps は2つのタグID集合に共通要素が存在するかを判定する。
// 小さい方の集合をハッシュセット化してO(len(a)+len(b))で判定する。
func Overlaps(a, b []int64) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	set := make(map[int64]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// Predicate は起点タイムプレイスと候補がマッチするかを厳密に判定する。
// 距離が両者の半径の小さい方以内であり、かつ興味とアクティビティの
// 双方に重なりがある場合にtrueを返す。最初の不成立で打ち切る。
// 引数の対称性があるため Predicate(a, b) == Predicate(b, a) が成り立つ。
func Predicate(origin, candidate *model.TimePlace) bool {
	effectiveRadius := origin.RadiusKm
	if candidate.RadiusKm < effectiveRadius {
		effectiveRadius = candidate.RadiusKm
	}

	distance := geo.Distance(origin.Latitude, origin.Longitude, candidate.Latitude, candidate.Longitude)
	if distance > float64(effectiveRadius) {
		return false
	}

	if !Overlaps(origin.Interests, candidate.Interests) {
		return false
	}

	return Overlaps(origin.Activities, candidate.Activities)
}

// Service はマッチング検索のサービス層。
// 起点タイムプレイスに対する互換候補の検索を提供する。
type Service struct {
	timeplaceRepo repository.TimePlaceRepository
	logger        *slog.Logger
	collector     metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	timeplaceRepo repository.TimePlaceRepository,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		timeplaceRepo: timeplaceRepo,
		logger:        logger,
		collector:     collector,
	}
}

// Result はマッチング検索の1ページ分の結果。
type Result struct {
	TimePlaces []*model.TimePlace
	Total      int
	Page       int
	PageSize   int
}

// normalizePage はページ番号とページサイズを正規化する。
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// FindMatches は起点タイムプレイスに対する互換候補を検索して返す。
// 起点の所有者または管理者のみが検索でき、それ以外には存在を秘匿するため
// NotFoundを返す。結果は開始時刻の昇順で、ページネーションされる。
func (s *Service) FindMatches(ctx context.Context, requester *model.User, timeplaceID string, page, pageSize int) (*Result, error) {
	began := time.Now()
	page, pageSize = normalizePage(page, pageSize)

	origin, err := s.timeplaceRepo.FindByID(ctx, timeplaceID)
	if err != nil {
		return nil, fmt.Errorf("タイムプレイスの取得に失敗しました: %w", err)
	}
	if origin == nil || origin.Deleted {
		return nil, model.NewTimePlaceNotFoundError(timeplaceID)
	}
	if !auth.CanAccess(requester, origin.UserID) {
		// 他人のタイムプレイスの存在は開示しない
		return nil, model.NewTimePlaceNotFoundError(timeplaceID)
	}

	box := geo.NewBoundingBox(origin.Latitude, origin.Longitude, origin.RadiusKm)
	candidates, err := s.timeplaceRepo.FindCandidates(ctx, repository.CandidateQuery{
		OriginID: origin.ID,
		OwnerID:  origin.UserID,
		Start:    origin.Start,
		End:      origin.End,
		Box:      box,
	})
	if err != nil {
		return nil, fmt.Errorf("マッチ候補の取得に失敗しました: %w", err)
	}

	matched := make([]*model.TimePlace, 0, len(candidates))
	for _, c := range candidates {
		if Predicate(origin, c) {
			matched = append(matched, c)
		}
	}

	if s.collector != nil {
		s.collector.RecordMatchQuery(len(candidates), len(matched))
		s.collector.RecordMatchQueryLatency(time.Since(began))
	}
	s.logger.Info("マッチング検索を実行しました",
		slog.String("timeplace_id", origin.ID),
		slog.Int("candidates", len(candidates)),
		slog.Int("matched", len(matched)),
	)

	// 候補はstart昇順で返るため、ページ切り出しで順序が保たれる
	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &Result{
		TimePlaces: matched[start:end],
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}
