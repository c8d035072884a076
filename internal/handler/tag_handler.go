package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/machiawase/internal/model"
	"github.com/hitoshi/machiawase/internal/tag"
)

// TagServiceInterface はタグカタログハンドラーが必要とするサービスインターフェース。
type TagServiceInterface interface {
	// ListInterests は興味タグ一覧を名前順で返す。
	ListInterests(ctx context.Context, page, pageSize int) (*tag.InterestPage, error)
	// ListActivities はアクティビティタグ一覧を名前順で返す。
	ListActivities(ctx context.Context, page, pageSize int) (*tag.ActivityPage, error)
	// ListLanguages は言語カタログの全件を返す。
	ListLanguages(ctx context.Context) ([]model.Language, error)
	// CreateInterest は興味タグを登録する。管理者のみ実行できる。
	CreateInterest(ctx context.Context, requester *model.User, name string) (*model.Interest, error)
	// CreateActivity はアクティビティタグを登録する。管理者のみ実行できる。
	CreateActivity(ctx context.Context, requester *model.User, name string) (*model.Activity, error)
	// CreateLanguage は言語を登録する。管理者のみ実行できる。
	CreateLanguage(ctx context.Context, requester *model.User, name string) (*model.Language, error)
}

// TagHandler はタグカタログのHTTPハンドラー。
type TagHandler struct {
	service TagServiceInterface
}

// NewTagHandler はTagHandlerを生成する。
func NewTagHandler(service TagServiceInterface) *TagHandler {
	return &TagHandler{service: service}
}

// createTagRequest はタグ登録リクエストのボディ。
type createTagRequest struct {
	Name string `json:"name"`
}

// tagResponse はタグ1件のAPIレスポンス。
type tagResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// tagListResponse はタグ一覧のレスポンス。
type tagListResponse struct {
	Tags     []tagResponse `json:"tags"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// ListInterests は興味タグ一覧を取得する。
// GET /api/v1/interests?page=&page_size=
func (h *TagHandler) ListInterests(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePageParams(r)
	result, err := h.service.ListInterests(r.Context(), page, pageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := tagListResponse{
		Tags:     make([]tagResponse, 0, len(result.Interests)),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	}
	for _, it := range result.Interests {
		resp.Tags = append(resp.Tags, tagResponse{ID: it.ID, Name: it.Name})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListActivities はアクティビティタグ一覧を取得する。
// GET /api/v1/activities?page=&page_size=
func (h *TagHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePageParams(r)
	result, err := h.service.ListActivities(r.Context(), page, pageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := tagListResponse{
		Tags:     make([]tagResponse, 0, len(result.Activities)),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	}
	for _, act := range result.Activities {
		resp.Tags = append(resp.Tags, tagResponse{ID: act.ID, Name: act.Name})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListLanguages は言語カタログを取得する。
// GET /api/v1/languages
func (h *TagHandler) ListLanguages(w http.ResponseWriter, r *http.Request) {
	languages, err := h.service.ListLanguages(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]tagResponse, 0, len(languages))
	for _, lang := range languages {
		resp = append(resp, tagResponse{ID: lang.ID, Name: lang.Name})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CreateInterest は興味タグを登録する。
// POST /api/v1/interests
func (h *TagHandler) CreateInterest(w http.ResponseWriter, r *http.Request) {
	requester, name, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}

	interest, err := h.service.CreateInterest(r.Context(), requester, name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tagResponse{ID: interest.ID, Name: interest.Name})
}

// CreateActivity はアクティビティタグを登録する。
// POST /api/v1/activities
func (h *TagHandler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	requester, name, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}

	activity, err := h.service.CreateActivity(r.Context(), requester, name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tagResponse{ID: activity.ID, Name: activity.Name})
}

// CreateLanguage は言語を登録する。
// POST /api/v1/languages
func (h *TagHandler) CreateLanguage(w http.ResponseWriter, r *http.Request) {
	requester, name, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}

	language, err := h.service.CreateLanguage(r.Context(), requester, name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tagResponse{ID: language.ID, Name: language.Name})
}

func (h *TagHandler) decodeCreate(w http.ResponseWriter, r *http.Request) (*model.User, string, bool) {
	requester, ok := requesterFromContext(w, r)
	if !ok {
		return nil, "", false
	}

	var req createTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return nil, "", false
	}

	return requester, req.Name, true
}
