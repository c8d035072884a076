// Package match はマッチのライフサイクル管理を提供する。
// 作成・連絡先開示・チャット承諾・チャット投稿・ソフトデリートと、
// 当事者視点でのマッチビューの射影を扱う。
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/machiawase/internal/auth"
	"github.com/hitoshi/machiawase/internal/metrics"
	"github.com/hitoshi/machiawase/internal/model"
	"github.com/hitoshi/machiawase/internal/repository"
	"github.com/hitoshi/machiawase/internal/security"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service はマッチライフサイクルのサービス層。
type Service struct {
	matchRepo     repository.MatchRepository
	chatRepo      repository.MatchChatRepository
	timeplaceRepo repository.TimePlaceRepository
	userRepo      repository.UserRepository
	sanitizer     security.ContentSanitizerService
	logger        *slog.Logger
	collector     metrics.MetricsCollector

	// chatRequiresAcceptance が有効な場合、chat_acceptedがtrueになるまで
	// チャット投稿を受け付けない。
	chatRequiresAcceptance bool
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	matchRepo repository.MatchRepository,
	chatRepo repository.MatchChatRepository,
	timeplaceRepo repository.TimePlaceRepository,
	userRepo repository.UserRepository,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	chatRequiresAcceptance bool,
) *Service {
	return &Service{
		matchRepo:              matchRepo,
		chatRepo:               chatRepo,
		timeplaceRepo:          timeplaceRepo,
		userRepo:               userRepo,
		sanitizer:              sanitizer,
		logger:                 logger,
		collector:              collector,
		chatRequiresAcceptance: chatRequiresAcceptance,
	}
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

// GetExisting は順序なしペア(tpA, tpB)に対する非削除マッチを返す。
// 存在しない場合はnilを返す。
func (s *Service) GetExisting(ctx context.Context, tpA, tpB string) (*model.Match, error) {
	return s.matchRepo.FindActiveByPair(ctx, tpA, tpB)
}

// Create は自分のタイムプレイスと相手のタイムプレイスのマッチを作成する。
// 自分同士のマッチはForbidden、既存のアクティブなマッチがある場合は
// 既存IDを含むConflictを返す。並行作成とはストアの一意制約で競合解決し、
// 敗者も同じConflictを受け取る。
func (s *Service) Create(ctx context.Context, requester *model.User, ownTPID, otherTPID string) (*model.Match, error) {
	ownTP, err := s.timeplaceRepo.FindByID(ctx, ownTPID)
	if err != nil {
		return nil, fmt.Errorf("タイムプレイスの取得に失敗しました: %w", err)
	}
	if ownTP == nil || ownTP.Deleted {
		return nil, model.NewTimePlaceNotFoundError(ownTPID)
	}
	if !auth.CanAccess(requester, ownTP.UserID) {
		return nil, model.NewTimePlaceNotFoundError(ownTPID)
	}

	otherTP, err := s.timeplaceRepo.FindByID(ctx, otherTPID)
	if err != nil {
		return nil, fmt.Errorf("タイムプレイスの取得に失敗しました: %w", err)
	}
	if otherTP == nil || otherTP.Deleted {
		return nil, model.NewTimePlaceNotFoundError(otherTPID)
	}

	if ownTP.UserID == otherTP.UserID {
		return nil, model.NewSelfMatchError()
	}

	existing, err := s.matchRepo.FindActiveByPair(ctx, ownTP.ID, otherTP.ID)
	if err != nil {
		return nil, fmt.Errorf("既存マッチの検索に失敗しました: %w", err)
	}
	if existing != nil {
		if s.collector != nil {
			s.collector.RecordMatchConflict()
		}
		return nil, model.NewMatchExistsError(existing.ID)
	}

	now := time.Now()
	m := &model.Match{
		ID:         uuid.NewString(),
		TimePlace1: ownTP.ID,
		TimePlace2: otherTP.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.matchRepo.Create(ctx, m); err != nil {
		// 並行作成との競合。勝者のIDを引き直してConflictとして返す。
		if errors.Is(err, repository.ErrDuplicateMatch) {
			if s.collector != nil {
				s.collector.RecordMatchConflict()
			}
			winner, findErr := s.matchRepo.FindActiveByPair(ctx, ownTP.ID, otherTP.ID)
			if findErr == nil && winner != nil {
				return nil, model.NewMatchExistsError(winner.ID)
			}
			return nil, model.NewMatchExistsError("")
		}
		return nil, fmt.Errorf("マッチの作成に失敗しました: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordMatchCreated()
	}
	s.logger.Info("マッチを作成しました",
		slog.String("match_id", m.ID),
		slog.String("timeplace_1", m.TimePlace1),
		slog.String("timeplace_2", m.TimePlace2),
	)
	return m, nil
}

// loadPair はマッチの両側のタイムプレイスを取得する。
func (s *Service) loadPair(ctx context.Context, m *model.Match) (tp1, tp2 *model.TimePlace, err error) {
	tp1, err = s.timeplaceRepo.FindByID(ctx, m.TimePlace1)
	if err != nil {
		return nil, nil, fmt.Errorf("タイムプレイスの取得に失敗しました: %w", err)
	}
	tp2, err = s.timeplaceRepo.FindByID(ctx, m.TimePlace2)
	if err != nil {
		return nil, nil, fmt.Errorf("タイムプレイスの取得に失敗しました: %w", err)
	}
	if tp1 == nil || tp2 == nil {
		return nil, nil, model.NewMatchNotFoundError(m.ID)
	}
	return tp1, tp2, nil
}

// memberSide はリクエストユーザーがマッチのどちら側かを返す。
// 当事者でない場合は0を返す。管理者であっても当事者扱いはしない。
func memberSide(requester *model.User, tp1, tp2 *model.TimePlace) int {
	if requester == nil {
		return 0
	}
	switch requester.ID {
	case tp1.UserID:
		return 1
	case tp2.UserID:
		return 2
	default:
		return 0
	}
}

// findActiveMatch はIDでマッチを取得し、未検出・削除済みをNotFoundに正規化する。
func (s *Service) findActiveMatch(ctx context.Context, matchID string) (*model.Match, error) {
	m, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("マッチの取得に失敗しました: %w", err)
	}
	if m == nil || m.Deleted {
		return nil, model.NewMatchNotFoundError(matchID)
	}
	return m, nil
}

// ShareEmail はリクエストユーザー側のメール開示フラグをtrueにする。
// 開示は単調で取り消せないため、すでに開示済みでも成功を返す。
func (s *Service) ShareEmail(ctx context.Context, requester *model.User, matchID string) error {
	return s.shareContact(ctx, requester, matchID, model.ContactFieldEmail)
}

// SharePhone はリクエストユーザー側の電話番号開示フラグをtrueにする。
func (s *Service) SharePhone(ctx context.Context, requester *model.User, matchID string) error {
	return s.shareContact(ctx, requester, matchID, model.ContactFieldPhone)
}

func (s *Service) shareContact(ctx context.Context, requester *model.User, matchID string, field model.ContactField) error {
	m, err := s.findActiveMatch(ctx, matchID)
	if err != nil {
		return err
	}
	tp1, tp2, err := s.loadPair(ctx, m)
	if err != nil {
		return err
	}

	// 連絡先の開示は本人の同意行為のため、管理者でも代行できない
	side := memberSide(requester, tp1, tp2)
	if side == 0 {
		return model.NewNotMatchMemberError()
	}

	newly, err := s.matchRepo.SetContactShared(ctx, matchID, field, side)
	if err != nil {
		return err
	}
	if newly {
		if s.collector != nil {
			s.collector.RecordContactShared(string(field))
		}
		s.logger.Info("連絡先を開示しました",
			slog.String("match_id", matchID),
			slog.String("field", string(field)),
			slog.Int("side", side),
		)
	}
	return nil
}

// AcceptChat はチャット承諾フラグをtrueにする。当事者のどちらでも設定でき、
// 一度trueになったら戻らない。すでに承諾済みでも成功を返す。
func (s *Service) AcceptChat(ctx context.Context, requester *model.User, matchID string) error {
	m, err := s.findActiveMatch(ctx, matchID)
	if err != nil {
		return err
	}
	tp1, tp2, err := s.loadPair(ctx, m)
	if err != nil {
		return err
	}
	if memberSide(requester, tp1, tp2) == 0 {
		return model.NewNotMatchMemberError()
	}

	if _, err := s.matchRepo.SetChatAccepted(ctx, matchID); err != nil {
		return err
	}
	return nil
}

// SoftDelete はマッチをソフトデリートする。当事者または管理者のみ実行でき、
// すでに削除済みの場合は何もせず成功を返す。削除は終端状態で復帰しない。
func (s *Service) SoftDelete(ctx context.Context, requester *model.User, matchID string) error {
	m, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return fmt.Errorf("マッチの取得に失敗しました: %w", err)
	}
	if m == nil {
		return model.NewMatchNotFoundError(matchID)
	}

	tp1, tp2, err := s.loadPair(ctx, m)
	if err != nil {
		return err
	}
	if !auth.IsMember(requester, tp1.UserID, tp2.UserID) && (requester == nil || !requester.IsAdmin) {
		return model.NewMatchNotFoundError(matchID)
	}

	if m.Deleted {
		return nil
	}

	if err := s.matchRepo.SoftDelete(ctx, matchID, time.Now()); err != nil {
		return err
	}
	s.logger.Info("マッチを削除しました", slog.String("match_id", matchID))
	return nil
}

// PostChatMessage はマッチにチャットメッセージを追加する。
// 本文はサニタイズ後に1文字以上500文字以内であることを検証する。
// 削除済みマッチへの投稿と当事者以外の投稿は拒否する。
func (s *Service) PostChatMessage(ctx context.Context, requester *model.User, matchID, text string) (*model.MatchChat, error) {
	m, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("マッチの取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewMatchNotFoundError(matchID)
	}
	if m.Deleted {
		return nil, model.NewForbiddenError()
	}

	tp1, tp2, err := s.loadPair(ctx, m)
	if err != nil {
		return nil, err
	}
	if memberSide(requester, tp1, tp2) == 0 {
		return nil, model.NewNotMatchMemberError()
	}

	sanitized := s.sanitizer.Sanitize(text)
	if sanitized == "" {
		return nil, model.NewInvalidChatTextError("メッセージが空です")
	}
	if utf8.RuneCountInString(sanitized) > model.MaxChatMessageLength {
		return nil, model.NewInvalidChatTextError(
			fmt.Sprintf("メッセージが%d文字を超えています", model.MaxChatMessageLength))
	}

	if s.chatRequiresAcceptance && !m.ChatAccepted {
		return nil, model.NewChatNotAcceptedError()
	}

	chat := &model.MatchChat{
		ID:        uuid.NewString(),
		MatchID:   m.ID,
		UserID:    requester.ID,
		Message:   sanitized,
		CreatedAt: time.Now(),
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("チャットメッセージの作成に失敗しました: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordChatMessage()
	}
	return chat, nil
}

// ChatPage はチャットメッセージの1ページ分の結果。
type ChatPage struct {
	Messages []*model.MatchChat
	Total    int
	Page     int
	PageSize int
}

// ListChatMessages はマッチのチャットメッセージを時系列昇順で返す。
// 当事者と管理者のみ閲覧できる。
func (s *Service) ListChatMessages(ctx context.Context, requester *model.User, matchID string, page, pageSize int) (*ChatPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	m, err := s.findActiveMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	tp1, tp2, err := s.loadPair(ctx, m)
	if err != nil {
		return nil, err
	}
	if memberSide(requester, tp1, tp2) == 0 && (requester == nil || !requester.IsAdmin) {
		return nil, model.NewMatchNotFoundError(matchID)
	}

	offset := (page - 1) * pageSize
	messages, total, err := s.chatRepo.ListByMatch(ctx, matchID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("チャットメッセージの取得に失敗しました: %w", err)
	}

	return &ChatPage{
		Messages: messages,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// MatchPage はマッチビューの1ページ分の結果。
type MatchPage struct {
	Views    []*View
	Total    int
	Page     int
	PageSize int
}

// ListForUser はリクエストユーザーが当事者であるマッチのビュー一覧を返す。
func (s *Service) ListForUser(ctx context.Context, requester *model.User, page, pageSize int) (*MatchPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	offset := (page - 1) * pageSize
	matches, total, err := s.matchRepo.ListForUser(ctx, requester.ID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("マッチ一覧の取得に失敗しました: %w", err)
	}

	views := make([]*View, 0, len(matches))
	for _, m := range matches {
		view, err := s.buildView(ctx, m, requester)
		if err != nil {
			return nil, err
		}
		if view != nil {
			views = append(views, view)
		}
	}

	return &MatchPage{
		Views:    views,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// ListForTimePlace は指定タイムプレイスが片側であるマッチのビュー一覧を返す。
// タイムプレイスの所有者または管理者のみ取得でき、ビューは所有者視点で射影する。
func (s *Service) ListForTimePlace(ctx context.Context, requester *model.User, timeplaceID string) ([]*View, error) {
	tp, err := s.timeplaceRepo.FindByID(ctx, timeplaceID)
	if err != nil {
		return nil, fmt.Errorf("タイムプレイスの取得に失敗しました: %w", err)
	}
	if tp == nil || tp.Deleted {
		return nil, model.NewTimePlaceNotFoundError(timeplaceID)
	}
	if !auth.CanAccess(requester, tp.UserID) {
		return nil, model.NewTimePlaceNotFoundError(timeplaceID)
	}

	matches, err := s.matchRepo.ListForTimePlace(ctx, timeplaceID)
	if err != nil {
		return nil, fmt.Errorf("マッチ一覧の取得に失敗しました: %w", err)
	}

	// 管理者による閲覧でも、射影は所有者の視点で行う
	perspective := &model.User{ID: tp.UserID}

	views := make([]*View, 0, len(matches))
	for _, m := range matches {
		view, err := s.buildView(ctx, m, perspective)
		if err != nil {
			return nil, err
		}
		if view != nil {
			views = append(views, view)
		}
	}
	return views, nil
}

// GetView はマッチをリクエストユーザー視点のビューとして返す。
// 当事者のみ取得でき、それ以外には存在を秘匿するためNotFoundを返す。
func (s *Service) GetView(ctx context.Context, requester *model.User, matchID string) (*View, error) {
	m, err := s.findActiveMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	view, err := s.buildView(ctx, m, requester)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, model.NewMatchNotFoundError(matchID)
	}
	return view, nil
}

// buildView はタイムプレイスとプロフィールを取得してビューを射影する。
// リクエストユーザーが当事者でない場合はnilを返す。
func (s *Service) buildView(ctx context.Context, m *model.Match, requester *model.User) (*View, error) {
	tp1, tp2, err := s.loadPair(ctx, m)
	if err != nil {
		return nil, err
	}

	side := memberSide(requester, tp1, tp2)
	if side == 0 {
		return nil, nil
	}

	var foreignOwnerID string
	if side == 1 {
		foreignOwnerID = tp2.UserID
	} else {
		foreignOwnerID = tp1.UserID
	}

	foreignProfile, err := s.userRepo.FindProfile(ctx, foreignOwnerID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	return ProjectView(m, tp1, tp2, foreignProfile, requester), nil
}
