package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/babynest/internal/form"
	"github.com/hitoshi/babynest/internal/middleware"
	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/storage"
)

// BabyServiceInterface は赤ちゃんハンドラーが必要とするサービスインターフェース。
type BabyServiceInterface interface {
	List(ctx context.Context) ([]*model.Baby, error)
	Get(ctx context.Context, id string) (*model.Baby, error)
	// Save はidが空または存在しない場合は新規作成、存在する場合は更新する。
	Save(ctx context.Context, id string, f form.BabyForm, image *storage.Image) (*model.Baby, error)
	Delete(ctx context.Context, id string) error
}

// babyResponse は赤ちゃんのレスポンス形式。
type babyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Gender    string    `json:"gender"`
	Color     string    `json:"color"`
	PhotoURL  string    `json:"photoUrl"`
	BirthDate string    `json:"birthDate"`
	Age       string    `json:"age"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toBabyResponse(b *model.Baby, now time.Time) babyResponse {
	return babyResponse{
		ID:        b.ID,
		Name:      b.Name,
		Gender:    string(b.Gender),
		Color:     b.Color,
		PhotoURL:  b.PhotoURL,
		BirthDate: b.BirthDate.Format("2006-01-02"),
		Age:       model.AgeAt(b.BirthDate, now).Label(),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

// BabyHandler は赤ちゃん管理のHTTPハンドラー。
type BabyHandler struct {
	service  BabyServiceInterface
	metrics  FormMetrics
	maxImage int64
	now      func() time.Time
}

// NewBabyHandler はBabyHandlerを生成する。maxImageは画像サイズ上限（バイト）。
func NewBabyHandler(service BabyServiceInterface, m FormMetrics, maxImage int64) *BabyHandler {
	return &BabyHandler{
		service:  service,
		metrics:  m,
		maxImage: maxImage,
		now:      time.Now,
	}
}

// List は赤ちゃん一覧を返す。
// GET /api/babies
func (h *BabyHandler) List(w http.ResponseWriter, r *http.Request) {
	babies, err := h.service.List(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	now := h.now()
	resp := make([]babyResponse, len(babies))
	for i, b := range babies {
		resp[i] = toBabyResponse(b, now)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は赤ちゃん1件を返す。
// GET /api/babies/{id}
func (h *BabyHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBabyResponse(b, h.now()))
}

// Create は赤ちゃんを登録する。
// POST /api/babies
func (h *BabyHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "", form.BabyDefaults(), http.StatusCreated)
}

// Update は赤ちゃんを更新する。存在しないIDの場合は新規登録になる。
// PUT /api/babies/{id}
func (h *BabyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, err := h.service.Get(r.Context(), id)
	var apiErr *model.APIError
	switch {
	case err == nil:
		h.save(w, r, id, form.BabyFormFrom(current), http.StatusOK)
	case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeBabyNotFound:
		h.save(w, r, id, form.BabyDefaults(), http.StatusCreated)
	default:
		middleware.WriteError(w, err)
	}
}

func (h *BabyHandler) save(w http.ResponseWriter, r *http.Request, id string, initial form.BabyForm, status int) {
	p := form.MustNew(form.BabyFields(), initial)
	sub, err := decodeSubmission(r, p.Fields(), h.maxImage)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	var saved *model.Baby
	err = p.Submit(r.Context(), sub, func(ctx context.Context, f form.BabyForm, img *storage.Image) error {
		b, err := h.service.Save(ctx, id, f, img)
		saved = b
		return err
	})
	if err != nil {
		recordInvalid(h.metrics, "baby", err)
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, status, toBabyResponse(saved, h.now()))
}

// Delete は赤ちゃんを削除する。
// DELETE /api/babies/{id}
func (h *BabyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetupBabyRoutes は赤ちゃん管理のルーティングを設定する。
func SetupBabyRoutes(r chi.Router, h *BabyHandler) {
	r.Route("/api/babies", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
}
