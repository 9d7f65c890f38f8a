package baby

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/babynest/internal/form"
	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/storage"
)

// --- モック定義 ---

type mockBabyRepo struct {
	listFn     func(ctx context.Context) ([]*model.Baby, error)
	findByIDFn func(ctx context.Context, id string) (*model.Baby, error)
	createFn   func(ctx context.Context, b *model.Baby) error
	updateFn   func(ctx context.Context, id string, patch model.BabyPatch) (*model.Baby, error)
	deleteFn   func(ctx context.Context, id string) (bool, error)
}

func (m *mockBabyRepo) List(ctx context.Context) ([]*model.Baby, error) { return m.listFn(ctx) }
func (m *mockBabyRepo) FindByID(ctx context.Context, id string) (*model.Baby, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockBabyRepo) Create(ctx context.Context, b *model.Baby) error { return m.createFn(ctx, b) }
func (m *mockBabyRepo) Update(ctx context.Context, id string, patch model.BabyPatch) (*model.Baby, error) {
	return m.updateFn(ctx, id, patch)
}
func (m *mockBabyRepo) Delete(ctx context.Context, id string) (bool, error) { return m.deleteFn(ctx, id) }

type mockImageStore struct {
	uploadFn func(ctx context.Context, path string, img *storage.Image) (string, error)
	paths    []string
}

func (m *mockImageStore) Upload(ctx context.Context, path string, img *storage.Image) (string, error) {
	m.paths = append(m.paths, path)
	return m.uploadFn(ctx, path, img)
}

func validForm() form.BabyForm {
	return form.BabyForm{Name: "Luna", Gender: "female", Color: "#BEB6D9", BirthDate: "2026-01-05"}
}

func fixedNow() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

// --- テスト ---

func TestSave_EmptyID_Creates(t *testing.T) {
	var created *model.Baby
	repo := &mockBabyRepo{
		createFn: func(_ context.Context, b *model.Baby) error { created = b; return nil },
	}
	svc := NewService(repo, &mockImageStore{})
	svc.now = fixedNow

	b, err := svc.Save(context.Background(), "", validForm(), nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if created == nil || created.ID == "" {
		t.Fatal("expected Create with generated ID")
	}
	if b.Gender != model.GenderFemale || !b.BirthDate.Equal(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("baby = %+v", b)
	}
	if !b.CreatedAt.Equal(fixedNow()) {
		t.Errorf("CreatedAt = %v", b.CreatedAt)
	}
}

func TestSave_WithImage_UploadsUnderBabyPrefix(t *testing.T) {
	images := &mockImageStore{
		uploadFn: func(_ context.Context, path string, _ *storage.Image) (string, error) {
			return "https://cdn/" + path, nil
		},
	}
	repo := &mockBabyRepo{createFn: func(context.Context, *model.Baby) error { return nil }}
	svc := NewService(repo, images)

	b, err := svc.Save(context.Background(), "", validForm(), &storage.Image{Filename: "luna.png"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := "babyImages/" + b.ID + "/luna.png"
	if len(images.paths) != 1 || images.paths[0] != want {
		t.Errorf("paths = %v, want %q", images.paths, want)
	}
	if b.PhotoURL != "https://cdn/"+want {
		t.Errorf("PhotoURL = %q", b.PhotoURL)
	}
}

func TestSave_ExistingID_Updates(t *testing.T) {
	var gotPatch model.BabyPatch
	repo := &mockBabyRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Baby, error) { return &model.Baby{ID: id}, nil },
		updateFn: func(_ context.Context, id string, patch model.BabyPatch) (*model.Baby, error) {
			gotPatch = patch
			return &model.Baby{ID: id, Name: *patch.Name}, nil
		},
	}
	svc := NewService(repo, &mockImageStore{})

	b, err := svc.Save(context.Background(), "b1", validForm(), nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if b.ID != "b1" || b.Name != "Luna" {
		t.Errorf("baby = %+v", b)
	}
	if gotPatch.PhotoURL != nil {
		t.Error("PhotoURL should not be patched without an image")
	}
}

func TestSave_MissingID_CreatesNew(t *testing.T) {
	created := false
	repo := &mockBabyRepo{
		findByIDFn: func(context.Context, string) (*model.Baby, error) { return nil, nil },
		createFn:   func(context.Context, *model.Baby) error { created = true; return nil },
	}
	svc := NewService(repo, &mockImageStore{})

	if _, err := svc.Save(context.Background(), "gone", validForm(), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !created {
		t.Error("expected create for missing record")
	}
}

func TestSave_UploadFailure_DoesNotPersist(t *testing.T) {
	images := &mockImageStore{
		uploadFn: func(context.Context, string, *storage.Image) (string, error) {
			return "", errors.New("bucket unavailable")
		},
	}
	repo := &mockBabyRepo{
		createFn: func(context.Context, *model.Baby) error {
			t.Fatal("Create should not be called")
			return nil
		},
	}
	svc := NewService(repo, images)

	_, err := svc.Save(context.Background(), "", validForm(), &storage.Image{Filename: "x.png"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUploadFailed {
		t.Fatalf("expected upload failed error, got %v", err)
	}
}

func TestSave_PersistenceFailure(t *testing.T) {
	repo := &mockBabyRepo{
		createFn: func(context.Context, *model.Baby) error { return errors.New("connection refused") },
	}
	svc := NewService(repo, &mockImageStore{})

	_, err := svc.Save(context.Background(), "", validForm(), nil)
	var perr *model.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if model.UserMessage(err) != model.PersistenceMessage {
		t.Errorf("UserMessage = %q", model.UserMessage(err))
	}
}

func TestSave_InvalidBirthDate(t *testing.T) {
	svc := NewService(&mockBabyRepo{}, &mockImageStore{})
	f := validForm()
	f.BirthDate = "05/01/2026"

	_, err := svc.Save(context.Background(), "", f, nil)
	var verr *model.ValidationError
	if !errors.As(err, &verr) || !strings.Contains(verr.Fields["birthDate"], "not valid") {
		t.Fatalf("expected birthDate validation error, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := &mockBabyRepo{
		findByIDFn: func(context.Context, string) (*model.Baby, error) { return nil, nil },
	}
	svc := NewService(repo, &mockImageStore{})

	_, err := svc.Get(context.Background(), "b9")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeBabyNotFound {
		t.Fatalf("expected BABY_NOT_FOUND, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name     string
		deleted  bool
		repoErr  error
		wantCode string
		wantErr  bool
	}{
		{"削除成功", true, nil, "", false},
		{"存在しない", false, nil, model.ErrCodeBabyNotFound, true},
		{"DBエラー", false, errors.New("down"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockBabyRepo{
				deleteFn: func(context.Context, string) (bool, error) { return tt.deleted, tt.repoErr },
			}
			err := NewService(repo, &mockImageStore{}).Delete(context.Background(), "b1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			var apiErr *model.APIError
			if tt.wantCode != "" && (!errors.As(err, &apiErr) || apiErr.Code != tt.wantCode) {
				t.Errorf("err = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestList_WrapsPersistenceError(t *testing.T) {
	repo := &mockBabyRepo{
		listFn: func(context.Context) ([]*model.Baby, error) { return nil, errors.New("down") },
	}
	_, err := NewService(repo, &mockImageStore{}).List(context.Background())
	var perr *model.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}
