package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// RatingHandler はアプリ評価のHTTPハンドラー。
type RatingHandler struct {
	repo      repository.RatingRepository
	collector metrics.MetricsCollector
}

// NewRatingHandler はRatingHandlerを生成する。
func NewRatingHandler(repo repository.RatingRepository, collector metrics.MetricsCollector) *RatingHandler {
	return &RatingHandler{
		repo:      repo,
		collector: collector,
	}
}

// submitRatingRequest は評価送信リクエストのボディ。
type submitRatingRequest struct {
	Stars int `json:"stars"`
}

// ratingSummaryResponse は評価サマリーのAPIレスポンス。
type ratingSummaryResponse struct {
	Average float64 `json:"average"`
	Total   int     `json:"total"`
}

// Submit は1〜5の星評価を受け付ける。
// POST /api/ratings
func (h *RatingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	var req submitRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Stars < 1 || req.Stars > 5 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewRatingOutOfRangeError(req.Stars))
		return
	}

	rating := &model.Rating{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Stars:     req.Stars,
		CreatedAt: time.Now(),
	}

	if err := h.repo.Create(r.Context(), rating); err != nil {
		handleServiceError(w, err)
		return
	}
	h.collector.RecordRatingSubmitted(req.Stars)

	w.WriteHeader(http.StatusCreated)
}

// Summary は全評価の平均と件数を返す。
// GET /api/ratings
func (h *RatingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.repo.Summary(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ratingSummaryResponse{
		Average: summary.Average,
		Total:   summary.Total,
	})
}
