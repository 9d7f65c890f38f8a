package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/babynest/internal/form"
	"github.com/hitoshi/babynest/internal/middleware"
	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/storage"
)

// HouseServiceInterface は家庭ハンドラーが必要とするサービスインターフェース。
type HouseServiceInterface interface {
	List(ctx context.Context) ([]*model.House, error)
	Get(ctx context.Context, id string) (*model.House, error)
	Save(ctx context.Context, id string, f form.HouseForm) (*model.House, error)
	Delete(ctx context.Context, id string) error
}

// HouseHandler は家庭管理のHTTPハンドラー。
type HouseHandler struct {
	service HouseServiceInterface
	metrics FormMetrics
}

// NewHouseHandler はHouseHandlerを生成する。
func NewHouseHandler(service HouseServiceInterface, m FormMetrics) *HouseHandler {
	return &HouseHandler{service: service, metrics: m}
}

// List は家庭一覧を返す。
// GET /api/houses
func (h *HouseHandler) List(w http.ResponseWriter, r *http.Request) {
	houses, err := h.service.List(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if houses == nil {
		houses = []*model.House{}
	}
	writeJSON(w, http.StatusOK, houses)
}

// Get は家庭1件を返す。
// GET /api/houses/{id}
func (h *HouseHandler) Get(w http.ResponseWriter, r *http.Request) {
	house, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, house)
}

// Create は家庭を登録する。
// POST /api/houses
func (h *HouseHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "", form.HouseForm{}, http.StatusCreated)
}

// Update は家庭を更新する。存在しないIDの場合は新規登録になる。
// PUT /api/houses/{id}
func (h *HouseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, err := h.service.Get(r.Context(), id)
	var apiErr *model.APIError
	switch {
	case err == nil:
		h.save(w, r, id, form.HouseFormFrom(current), http.StatusOK)
	case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeHouseNotFound:
		h.save(w, r, id, form.HouseForm{}, http.StatusCreated)
	default:
		middleware.WriteError(w, err)
	}
}

func (h *HouseHandler) save(w http.ResponseWriter, r *http.Request, id string, initial form.HouseForm, status int) {
	p := form.MustNew(form.HouseFields(), initial)
	sub, err := decodeSubmission(r, p.Fields(), 0)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	var saved *model.House
	err = p.Submit(r.Context(), sub, func(ctx context.Context, f form.HouseForm, _ *storage.Image) error {
		house, err := h.service.Save(ctx, id, f)
		saved = house
		return err
	})
	if err != nil {
		recordInvalid(h.metrics, "house", err)
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, status, saved)
}

// Delete は家庭を削除する。
// DELETE /api/houses/{id}
func (h *HouseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetupHouseRoutes は家庭管理のルーティングを設定する。
func SetupHouseRoutes(r chi.Router, h *HouseHandler) {
	r.Route("/api/houses", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
}
