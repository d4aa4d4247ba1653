package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/security"
)

// タイトルの最大文字数
const maxTitleLength = 200

// ObjectiveHandler は目標管理のHTTPハンドラー。
// 全ての読み書きは認証済みアカウントのIDでスコープされる。
type ObjectiveHandler struct {
	repo      repository.ObjectiveRepository
	sanitizer security.TextSanitizerService
	collector metrics.MetricsCollector
}

// NewObjectiveHandler はObjectiveHandlerを生成する。
func NewObjectiveHandler(
	repo repository.ObjectiveRepository,
	sanitizer security.TextSanitizerService,
	collector metrics.MetricsCollector,
) *ObjectiveHandler {
	return &ObjectiveHandler{
		repo:      repo,
		sanitizer: sanitizer,
		collector: collector,
	}
}

// createObjectiveRequest は目標作成リクエストのボディ。
type createObjectiveRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Deadline    *string `json:"deadline"`
	Category    string  `json:"category"`
}

// updateObjectiveRequest は目標更新リクエストのボディ。
// 省略されたフィールドは変更しない。deadlineに空文字列を指定すると期限を解除する。
type updateObjectiveRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Deadline    *string `json:"deadline"`
	Category    *string `json:"category"`
}

// objectiveResponse は目標のAPIレスポンス。
type objectiveResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    *string   `json:"deadline"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// List は認証済みアカウントの全目標を作成日時昇順で返す。
// GET /api/objectives
func (h *ObjectiveHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	objectives, err := h.repo.ListByOwner(r.Context(), ownerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.collector.RecordObjectiveOperation("list")

	responses := make([]objectiveResponse, 0, len(objectives))
	for _, o := range objectives {
		responses = append(responses, toObjectiveResponse(o))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// Create は新しい目標を作成する。
// POST /api/objectives
func (h *ObjectiveHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	var req createObjectiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	title := h.sanitizer.Sanitize(req.Title)
	description := h.sanitizer.Sanitize(req.Description)

	if err := validateTitle(title); err != nil {
		handleServiceError(w, err)
		return
	}

	category := model.Category(req.Category)
	if !model.ValidCategory(category) {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationFailedError(fmt.Sprintf("カテゴリが不正です: %s", req.Category)))
		return
	}

	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationFailedError("期限の形式が正しくありません"))
		return
	}

	objective := &model.Objective{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Deadline:    deadline,
		Category:    category,
		CreatedAt:   time.Now(),
	}

	if err := h.repo.Create(r.Context(), objective); err != nil {
		handleServiceError(w, err)
		return
	}
	h.collector.RecordObjectiveOperation("create")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toObjectiveResponse(objective))
}

// Update は目標を部分更新し、更新後の行を返す。
// 対象が存在しない場合と他アカウントの所有である場合は、いずれも404を返す。
// PATCH /api/objectives/:id
func (h *ObjectiveHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	objectiveID := chi.URLParam(r, "id")

	var req updateObjectiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	fields := repository.ObjectiveUpdate{}

	if req.Title != nil {
		title := h.sanitizer.Sanitize(*req.Title)
		if err := validateTitle(title); err != nil {
			handleServiceError(w, err)
			return
		}
		fields.Title = &title
	}

	if req.Description != nil {
		description := h.sanitizer.Sanitize(*req.Description)
		fields.Description = &description
	}

	if req.Category != nil {
		category := model.Category(*req.Category)
		if !model.ValidCategory(category) {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationFailedError(fmt.Sprintf("カテゴリが不正です: %s", *req.Category)))
			return
		}
		fields.Category = &category
	}

	if req.Deadline != nil {
		deadline, err := parseDeadline(req.Deadline)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationFailedError("期限の形式が正しくありません"))
			return
		}
		fields.Deadline = &deadline
	}

	updated, err := h.repo.UpdateScoped(r.Context(), objectiveID, ownerID, fields)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if updated == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewObjectiveNotFoundError(objectiveID))
		return
	}
	h.collector.RecordObjectiveOperation("update")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toObjectiveResponse(updated))
}

// Delete は目標を削除する。対象が既に存在しない場合も204を返す（冪等）。
// DELETE /api/objectives/:id
func (h *ObjectiveHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	objectiveID := chi.URLParam(r, "id")

	if _, err := h.repo.DeleteScoped(r.Context(), objectiveID, ownerID); err != nil {
		handleServiceError(w, err)
		return
	}
	h.collector.RecordObjectiveOperation("delete")

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toObjectiveResponse はmodel.ObjectiveからAPIレスポンスに変換する。
// 期限未設定の場合、deadlineはnullになる。
func toObjectiveResponse(o *model.Objective) objectiveResponse {
	resp := objectiveResponse{
		ID:          o.ID,
		OwnerID:     o.OwnerID,
		Title:       o.Title,
		Description: o.Description,
		Category:    string(o.Category),
		CreatedAt:   o.CreatedAt,
	}
	if o.HasDeadline() {
		s := o.Deadline.UTC().Format(time.RFC3339)
		resp.Deadline = &s
	}
	return resp
}

// parseDeadline は期限文字列を解釈する。
// nilまたは空文字列は期限未設定（ゼロ値）として扱う。
func parseDeadline(raw *string) (time.Time, error) {
	if raw == nil || *raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, *raw)
}

// validateTitle はサニタイズ後のタイトルを検証する。
func validateTitle(title string) error {
	if title == "" {
		return model.NewValidationFailedError("タイトルは必須です")
	}
	if len([]rune(title)) > maxTitleLength {
		return model.NewValidationFailedError(fmt.Sprintf("タイトルは%d文字以内で指定してください", maxTitleLength))
	}
	return nil
}
