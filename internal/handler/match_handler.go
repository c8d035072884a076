package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/machiawase/internal/match"
	"github.com/hitoshi/machiawase/internal/model"
)

// MatchServiceInterface はマッチハンドラーが必要とするサービスインターフェース。
type MatchServiceInterface interface {
	// Create はマッチを新規作成する。requesterはownTPIDの所有者でなければならない。
	Create(ctx context.Context, requester *model.User, ownTPID, otherTPID string) (*model.Match, error)
	// GetView はマッチをリクエストユーザー視点のビューとして返す。
	GetView(ctx context.Context, requester *model.User, matchID string) (*match.View, error)
	// ListForUser はリクエストユーザーが当事者であるマッチの一覧を返す。
	ListForUser(ctx context.Context, requester *model.User, page, pageSize int) (*match.MatchPage, error)
	// ListForTimePlace はタイムプレイスに紐づくマッチビューの一覧を返す。
	ListForTimePlace(ctx context.Context, requester *model.User, timeplaceID string) ([]*match.View, error)
	// ShareEmail は自分側のメール開示フラグを立てる。
	ShareEmail(ctx context.Context, requester *model.User, matchID string) error
	// SharePhone は自分側の電話番号開示フラグを立てる。
	SharePhone(ctx context.Context, requester *model.User, matchID string) error
	// AcceptChat はチャット承諾フラグを立てる。
	AcceptChat(ctx context.Context, requester *model.User, matchID string) error
	// SoftDelete はマッチをソフトデリートする。
	SoftDelete(ctx context.Context, requester *model.User, matchID string) error
	// PostChatMessage はチャットメッセージを投稿する。
	PostChatMessage(ctx context.Context, requester *model.User, matchID, text string) (*model.MatchChat, error)
	// ListChatMessages はチャットメッセージを時系列昇順で返す。
	ListChatMessages(ctx context.Context, requester *model.User, matchID string, page, pageSize int) (*match.ChatPage, error)
}

// MatchHandler はマッチ管理のHTTPハンドラー。
type MatchHandler struct {
	service MatchServiceInterface
}

// NewMatchHandler はMatchHandlerを生成する。
func NewMatchHandler(service MatchServiceInterface) *MatchHandler {
	return &MatchHandler{service: service}
}

// createMatchRequest はマッチ作成リクエストのボディ。
type createMatchRequest struct {
	OwnTimePlaceID   string `json:"own_timeplace_id"`
	OtherTimePlaceID string `json:"other_timeplace_id"`
}

// postChatRequest はチャット投稿リクエストのボディ。
type postChatRequest struct {
	Message string `json:"message"`
}

// matchResponse はマッチ作成直後のAPIレスポンス。
// 開示フラグはすべて未開示で作成されるため、ビューではなく素のマッチを返す。
type matchResponse struct {
	ID           string    `json:"id"`
	TimePlace1   string    `json:"timeplace_1"`
	TimePlace2   string    `json:"timeplace_2"`
	ChatAccepted bool      `json:"chat_accepted"`
	CreatedAt    time.Time `json:"created_at"`
}

// matchViewResponse はリクエストユーザー視点に射影したマッチのAPIレスポンス。
// 相手の連絡先は相手側が開示した場合にのみ値が入り、未開示ならnullになる。
type matchViewResponse struct {
	ID               string            `json:"id"`
	OwnTimePlace     timePlaceResponse `json:"own_timeplace"`
	ForeignTimePlace timePlaceResponse `json:"foreign_timeplace"`
	ForeignEmail     *string           `json:"foreign_email"`
	ForeignPhone     *string           `json:"foreign_phone"`
	ChatAccepted     bool              `json:"chat_accepted"`
	CreatedAt        time.Time         `json:"created_at"`
}

// matchListResponse はマッチ一覧のレスポンス。
type matchListResponse struct {
	Matches  []matchViewResponse `json:"matches"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// chatMessageResponse はチャットメッセージのAPIレスポンス。
type chatMessageResponse struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// chatListResponse はチャットメッセージ一覧のレスポンス。
type chatListResponse struct {
	Messages []chatMessageResponse `json:"messages"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// Create はマッチを作成する。
// POST /api/v1/matches
func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.OwnTimePlaceID == "" || req.OtherTimePlaceID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("own_timeplace_idとother_timeplace_idの両方を指定してください"))
		return
	}

	m, err := h.service.Create(r.Context(), requester, req.OwnTimePlaceID, req.OtherTimePlaceID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(matchResponse{
		ID:           m.ID,
		TimePlace1:   m.TimePlace1,
		TimePlace2:   m.TimePlace2,
		ChatAccepted: m.ChatAccepted,
		CreatedAt:    m.CreatedAt,
	})
}

// Get はマッチをリクエストユーザー視点のビューとして取得する。
// GET /api/v1/matches/:id
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetView(r.Context(), requester, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toMatchViewResponse(view))
}

// List はリクエストユーザーのマッチ一覧を取得する。
// GET /api/v1/matches?page=&page_size=
func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	page, pageSize := parsePageParams(r)
	result, err := h.service.ListForUser(r.Context(), requester, page, pageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := matchListResponse{
		Matches:  make([]matchViewResponse, 0, len(result.Views)),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	}
	for _, view := range result.Views {
		resp.Matches = append(resp.Matches, toMatchViewResponse(view))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListForTimePlace はタイムプレイスに紐づくマッチビューの一覧を取得する。
// GET /api/v1/timeplaces/:id/chats
func (h *MatchHandler) ListForTimePlace(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	views, err := h.service.ListForTimePlace(r.Context(), requester, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]matchViewResponse, 0, len(views))
	for _, view := range views {
		resp = append(resp, toMatchViewResponse(view))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Delete はマッチをソフトデリートする。
// DELETE /api/v1/matches/:id
func (h *MatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	if err := h.service.SoftDelete(r.Context(), requester, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ShareEmail は自分側のメール開示フラグを立てる。
// POST /api/v1/matches/:id/share_email
func (h *MatchHandler) ShareEmail(w http.ResponseWriter, r *http.Request) {
	h.flagAction(w, r, h.service.ShareEmail)
}

// SharePhone は自分側の電話番号開示フラグを立てる。
// POST /api/v1/matches/:id/share_phone
func (h *MatchHandler) SharePhone(w http.ResponseWriter, r *http.Request) {
	h.flagAction(w, r, h.service.SharePhone)
}

// AcceptChat はチャット承諾フラグを立てる。
// POST /api/v1/matches/:id/accept_chat
func (h *MatchHandler) AcceptChat(w http.ResponseWriter, r *http.Request) {
	h.flagAction(w, r, h.service.AcceptChat)
}

// flagAction は開示・承諾系の冪等なフラグ操作を共通処理する。
// 成功時は操作後のビューを返す。
func (h *MatchHandler) flagAction(w http.ResponseWriter, r *http.Request, action func(context.Context, *model.User, string) error) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	matchID := chi.URLParam(r, "id")
	if err := action(r.Context(), requester, matchID); err != nil {
		handleServiceError(w, err)
		return
	}

	view, err := h.service.GetView(r.Context(), requester, matchID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toMatchViewResponse(view))
}

// PostChat はチャットメッセージを投稿する。
// POST /api/v1/matches/:id/chat
func (h *MatchHandler) PostChat(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	var req postChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	chat, err := h.service.PostChatMessage(r.Context(), requester, chi.URLParam(r, "id"), req.Message)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toChatMessageResponse(chat))
}

// ListChat はチャットメッセージ一覧を取得する。
// GET /api/v1/matches/:id/chat?page=&page_size=
func (h *MatchHandler) ListChat(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	page, pageSize := parsePageParams(r)
	result, err := h.service.ListChatMessages(r.Context(), requester, chi.URLParam(r, "id"), page, pageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := chatListResponse{
		Messages: make([]chatMessageResponse, 0, len(result.Messages)),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	}
	for _, msg := range result.Messages {
		resp.Messages = append(resp.Messages, toChatMessageResponse(msg))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- ヘルパー関数 ---

// toMatchViewResponse はmatch.ViewからAPIレスポンスに変換する。
func toMatchViewResponse(view *match.View) matchViewResponse {
	return matchViewResponse{
		ID:               view.Match.ID,
		OwnTimePlace:     toTimePlaceResponse(view.OwnTimePlace),
		ForeignTimePlace: toTimePlaceResponse(view.ForeignTimePlace),
		ForeignEmail:     view.ForeignEmail,
		ForeignPhone:     view.ForeignPhone,
		ChatAccepted:     view.ChatAccepted,
		CreatedAt:        view.Match.CreatedAt,
	}
}

// toChatMessageResponse はmodel.MatchChatからAPIレスポンスに変換する。
func toChatMessageResponse(chat *model.MatchChat) chatMessageResponse {
	return chatMessageResponse{
		ID:        chat.ID,
		MatchID:   chat.MatchID,
		UserID:    chat.UserID,
		Message:   chat.Message,
		CreatedAt: chat.CreatedAt,
	}
}
