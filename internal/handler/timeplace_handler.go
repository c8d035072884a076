// Package handler はHTTP APIのハンドラー層を提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/machiawase/internal/matching"
	"github.com/hitoshi/machiawase/internal/middleware"
	"github.com/hitoshi/machiawase/internal/model"
	"github.com/hitoshi/machiawase/internal/timeplace"
)

// TimePlaceServiceInterface はタイムプレイスハンドラーが必要とするサービスインターフェース。
type TimePlaceServiceInterface interface {
	// Create はタイムプレイスを新規作成する。
	Create(ctx context.Context, requester *model.User, in *timeplace.Input) (*model.TimePlace, error)
	// Get はタイムプレイスを取得する。所有者と管理者のみ参照できる。
	Get(ctx context.Context, requester *model.User, id string) (*model.TimePlace, error)
	// Update はタイムプレイスを更新する。
	Update(ctx context.Context, requester *model.User, id string, in *timeplace.Input) (*model.TimePlace, error)
	// Delete はタイムプレイスをソフトデリートする。
	Delete(ctx context.Context, requester *model.User, id string) error
	// List はタイムプレイス一覧を返す。管理者は全件、一般ユーザーは自分の分のみ。
	List(ctx context.Context, requester *model.User, page, pageSize int) (*timeplace.Page, error)
}

// MatchingServiceInterface はマッチング検索のサービスインターフェース。
type MatchingServiceInterface interface {
	// FindMatches は起点タイムプレイスに対する互換候補を検索する。
	FindMatches(ctx context.Context, requester *model.User, timeplaceID string, page, pageSize int) (*matching.Result, error)
}

// TimePlaceHandler はタイムプレイス管理のHTTPハンドラー。
type TimePlaceHandler struct {
	service  TimePlaceServiceInterface
	matching MatchingServiceInterface
}

// NewTimePlaceHandler はTimePlaceHandlerを生成する。
func NewTimePlaceHandler(service TimePlaceServiceInterface, matching MatchingServiceInterface) *TimePlaceHandler {
	return &TimePlaceHandler{
		service:  service,
		matching: matching,
	}
}

// timePlaceRequest はタイムプレイス作成・更新リクエストのボディ。
type timePlaceRequest struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	RadiusKm    int       `json:"radius_km"`
	Description string    `json:"description"`
	Interests   []int64   `json:"interests"`
	Activities  []int64   `json:"activities"`
}

// timePlaceResponse はタイムプレイスのAPIレスポンス。
type timePlaceResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	RadiusKm    int       `json:"radius_km"`
	Description string    `json:"description"`
	City        string    `json:"city"`
	Interests   []int64   `json:"interests"`
	Activities  []int64   `json:"activities"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// timePlaceListResponse はタイムプレイス一覧のレスポンス。
type timePlaceListResponse struct {
	TimePlaces []timePlaceResponse `json:"timeplaces"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Category string            `json:"category"`
	Action   string            `json:"action"`
	Detail   map[string]string `json:"detail,omitempty"`
}

// Create はタイムプレイスを作成する。
// POST /api/v1/timeplaces
func (h *TimePlaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	req, ok := decodeTimePlaceRequest(w, r)
	if !ok {
		return
	}

	tp, err := h.service.Create(r.Context(), requester, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toTimePlaceResponse(tp))
}

// Get はタイムプレイス詳細を取得する。
// GET /api/v1/timeplaces/:id
func (h *TimePlaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	tp, err := h.service.Get(r.Context(), requester, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTimePlaceResponse(tp))
}

// Update はタイムプレイスを更新する。
// PATCH /api/v1/timeplaces/:id
func (h *TimePlaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	req, ok := decodeTimePlaceRequest(w, r)
	if !ok {
		return
	}

	tp, err := h.service.Update(r.Context(), requester, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTimePlaceResponse(tp))
}

// Delete はタイムプレイスをソフトデリートする。
// DELETE /api/v1/timeplaces/:id
func (h *TimePlaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), requester, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List はタイムプレイス一覧を取得する。
// GET /api/v1/timeplaces?page=&page_size=
func (h *TimePlaceHandler) List(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	page, pageSize := parsePageParams(r)
	result, err := h.service.List(r.Context(), requester, page, pageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := timePlaceListResponse{
		TimePlaces: make([]timePlaceResponse, 0, len(result.TimePlaces)),
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
	}
	for _, tp := range result.TimePlaces {
		resp.TimePlaces = append(resp.TimePlaces, toTimePlaceResponse(tp))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// FindMatches は起点タイムプレイスに対する互換候補を検索する。
// GET /api/v1/timeplaces/:id/matches?page=&page_size=
func (h *TimePlaceHandler) FindMatches(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	page, pageSize := parsePageParams(r)
	result, err := h.matching.FindMatches(r.Context(), requester, chi.URLParam(r, "id"), page, pageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := timePlaceListResponse{
		TimePlaces: make([]timePlaceResponse, 0, len(result.TimePlaces)),
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
	}
	for _, tp := range result.TimePlaces {
		resp.TimePlaces = append(resp.TimePlaces, toTimePlaceResponse(tp))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- ヘルパー関数 ---

func (req *timePlaceRequest) toInput() *timeplace.Input {
	return &timeplace.Input{
		Start:       req.Start,
		End:         req.End,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		RadiusKm:    req.RadiusKm,
		Description: req.Description,
		Interests:   req.Interests,
		Activities:  req.Activities,
	}
}

// decodeTimePlaceRequest はリクエストボディをパースする。
// パースに失敗した場合はエラーレスポンスを書き込みfalseを返す。
func decodeTimePlaceRequest(w http.ResponseWriter, r *http.Request) (*timePlaceRequest, bool) {
	var req timePlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return nil, false
	}
	return &req, true
}

// toTimePlaceResponse はmodel.TimePlaceからAPIレスポンスに変換する。
func toTimePlaceResponse(tp *model.TimePlace) timePlaceResponse {
	interests := tp.Interests
	if interests == nil {
		interests = []int64{}
	}
	activities := tp.Activities
	if activities == nil {
		activities = []int64{}
	}
	return timePlaceResponse{
		ID:          tp.ID,
		UserID:      tp.UserID,
		Start:       tp.Start,
		End:         tp.End,
		Latitude:    tp.Latitude,
		Longitude:   tp.Longitude,
		RadiusKm:    tp.RadiusKm,
		Description: tp.Description,
		City:        tp.City,
		Interests:   interests,
		Activities:  activities,
		CreatedAt:   tp.CreatedAt,
		UpdatedAt:   tp.UpdatedAt,
	}
}

// requesterFromContext はリクエストコンテキストからユーザーを取り出す。
// 取り出せない場合は401レスポンスを書き込みfalseを返す。
func requesterFromContext(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return nil, false
	}
	return user, true
}

// parsePageParams はクエリパラメータからページ番号とページサイズを取り出す。
// 不正な値や未指定はゼロ値で返し、正規化はサービス層に委ねる。
func parsePageParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Detail:   apiErr.Detail,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeTimePlaceNotFound, model.ErrCodeMatchNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeMatchExists, model.ErrCodeChatNotAccepted:
		return http.StatusConflict
	case model.ErrCodeSelfMatch, model.ErrCodeNotMatchMember, model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeValidation, model.ErrCodeInvalidChatText, model.ErrCodeTagNotFound:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
