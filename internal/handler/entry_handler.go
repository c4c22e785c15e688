package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/nutrilog/internal/entry"
	"github.com/hitoshi/nutrilog/internal/middleware"
	"github.com/hitoshi/nutrilog/internal/model"
)

// EntryServiceInterface は食事記録ハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	LogEntry(ctx context.Context, userID string, input entry.LogInput) (*model.FoodEntry, error)
	GetEntry(ctx context.Context, userID, entryID string) (*model.FoodEntry, error)
	ListEntries(ctx context.Context, userID string, filter entry.ListFilter) ([]*model.FoodEntry, error)
	UpdateEntry(ctx context.Context, userID, entryID string, input entry.LogInput) (*model.FoodEntry, error)
	DeleteEntry(ctx context.Context, userID, entryID string) error
}

// EntryHandler は食事記録のHTTPハンドラー。
type EntryHandler struct {
	service EntryServiceInterface
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(service EntryServiceInterface) *EntryHandler {
	return &EntryHandler{service: service}
}

// entryRequest は食事記録の登録・更新リクエストのボディ。
type entryRequest struct {
	FoodID     string     `json:"foodId"`
	Quantity   float64    `json:"quantity"`
	Unit       string     `json:"unit"`
	MealType   string     `json:"mealType"`
	ConsumedAt *time.Time `json:"consumedAt"`
	Notes      string     `json:"notes"`
}

// toInput はリクエストボディをサービス入力に変換する。
func (req *entryRequest) toInput() entry.LogInput {
	return entry.LogInput{
		FoodID:     req.FoodID,
		Quantity:   req.Quantity,
		Unit:       req.Unit,
		MealType:   req.MealType,
		ConsumedAt: req.ConsumedAt,
		Notes:      req.Notes,
	}
}

// LogEntry は食事記録を登録する。
// POST /api/entries
func (h *EntryHandler) LogEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	logged, err := h.service.LogEntry(r.Context(), userID, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEntryResponse(logged))
}

// ListEntries は食事記録の一覧を返す。
// GET /api/entries?date=2026-09-01&startDate=&endDate=&mealType=&limit=&offset=
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	q := r.URL.Query()
	filter := entry.ListFilter{
		Date:      q.Get("date"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		MealType:  q.Get("mealType"),
		Limit:     parseIntParam(q.Get("limit"), 0),
		Offset:    parseIntParam(q.Get("offset"), 0),
	}

	entries, err := h.service.ListEntries(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]entryResponse, len(entries))
	for i, e := range entries {
		results[i] = toEntryResponse(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": results,
		"count":   len(results),
	})
}

// GetEntry は食事記録の詳細を返す。
// GET /api/entries/{id}
func (h *EntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	found, err := h.service.GetEntry(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryResponse(found))
}

// UpdateEntry は食事記録を更新する。
// PUT /api/entries/{id}
func (h *EntryHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.UpdateEntry(r.Context(), userID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryResponse(updated))
}

// DeleteEntry は食事記録を削除する。
// DELETE /api/entries/{id}
func (h *EntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DeleteEntry(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
