package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/babynest/internal/form"
	"github.com/hitoshi/babynest/internal/model"
)

// --- モック定義 ---

type mockHouseService struct {
	listFn   func(ctx context.Context) ([]*model.House, error)
	getFn    func(ctx context.Context, id string) (*model.House, error)
	saveFn   func(ctx context.Context, id string, f form.HouseForm) (*model.House, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockHouseService) List(ctx context.Context) ([]*model.House, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockHouseService) Get(ctx context.Context, id string) (*model.House, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewHouseNotFoundError(id)
}

func (m *mockHouseService) Save(ctx context.Context, id string, f form.HouseForm) (*model.House, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, id, f)
	}
	return &model.House{ID: "house-1", Name: f.Name}, nil
}

func (m *mockHouseService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// --- テスト ---

func TestHouseHandler_List_NilBecomesEmptyArray(t *testing.T) {
	h := NewHouseHandler(&mockHouseService{}, &mockMetrics{})

	req := httptest.NewRequest(http.MethodGet, "/api/houses", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestHouseHandler_Create_Success(t *testing.T) {
	h := NewHouseHandler(&mockHouseService{}, &mockMetrics{})

	req := jsonRequest(http.MethodPost, "/api/houses", `{"name":"Grandma's"}`)
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var got model.House
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "Grandma's" {
		t.Errorf("name = %q, want %q", got.Name, "Grandma's")
	}
}

func TestHouseHandler_Create_RejectsMarkup(t *testing.T) {
	m := &mockMetrics{}
	h := NewHouseHandler(&mockHouseService{}, m)

	req := jsonRequest(http.MethodPost, "/api/houses", `{"name":"<b>Home</b>"}`)
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := parseErrorBody(t, w); body.Fields["name"] != "Name must not contain markup" {
		t.Errorf("name error = %q", body.Fields["name"])
	}
	if got := m.invalidForms(); len(got) != 1 || got[0] != "house" {
		t.Errorf("validation failures = %v, want [house]", got)
	}
}

func TestHouseHandler_Update(t *testing.T) {
	tests := []struct {
		name   string
		getFn  func(ctx context.Context, id string) (*model.House, error)
		status int
	}{
		{
			name: "existing",
			getFn: func(ctx context.Context, id string) (*model.House, error) {
				return &model.House{ID: id, Name: "Home"}, nil
			},
			status: http.StatusOK,
		},
		{name: "missing creates", status: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockHouseService{
				getFn: tt.getFn,
				saveFn: func(ctx context.Context, id string, f form.HouseForm) (*model.House, error) {
					if id != "house-9" {
						t.Errorf("id = %q, want house-9", id)
					}
					return &model.House{ID: id, Name: f.Name}, nil
				},
			}
			h := NewHouseHandler(svc, &mockMetrics{})

			req := jsonRequest(http.MethodPut, "/api/houses/house-9", `{"name":"Cottage"}`)
			req = withChiURLParam(req, "id", "house-9")
			w := httptest.NewRecorder()
			h.Update(w, req)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestHouseHandler_Delete_NotFound(t *testing.T) {
	svc := &mockHouseService{
		deleteFn: func(ctx context.Context, id string) error {
			return model.NewHouseNotFoundError(id)
		},
	}
	h := NewHouseHandler(svc, &mockMetrics{})

	req := withChiURLParam(httptest.NewRequest(http.MethodDelete, "/api/houses/x", nil), "id", "x")
	w := httptest.NewRecorder()
	h.Delete(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
