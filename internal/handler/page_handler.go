package handler

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/babynest/internal/form"
	"github.com/hitoshi/babynest/internal/i18n"
	"github.com/hitoshi/babynest/internal/listview"
	"github.com/hitoshi/babynest/internal/metrics"
	"github.com/hitoshi/babynest/internal/middleware"
	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/session"
	"github.com/hitoshi/babynest/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// StaticHandler は埋め込みの静的ファイル（CSS・JS）を配信する。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// MessageSource はロケールごとの表示文言を返す。
type MessageSource interface {
	LoadMessages(locale string) i18n.Messages
}

// pageData はテンプレートに渡す値。
type pageData struct {
	Locale    string
	Msg       i18n.Messages
	User      *model.User
	CSRFToken string
	Title     string
	Flash     string
	Error     string
	Action    string
	Submit    string
	Inputs    []form.Input
	Items     any
	HasItems  bool
}

// babyItem は一覧に表示する赤ちゃん1件。
type babyItem struct {
	ID       string
	Name     string
	Color    string
	PhotoURL string
	Age      string
}

// PageHandler はロケール付きのHTML画面を提供する。
type PageHandler struct {
	auth     AuthServiceInterface
	babies   BabyServiceInterface
	houses   HouseServiceInterface
	profiles ProfileServiceInterface
	messages MessageSource
	metrics  LoginRecorder
	locales  []string
	config   AuthHandlerConfig
	maxImage int64
	limit    func(http.Handler) http.Handler
	pages    map[string]*template.Template
	now      func() time.Time
}

// PageHandlerDeps はPageHandlerの依存関係。
type PageHandlerDeps struct {
	Auth     AuthServiceInterface
	Babies   BabyServiceInterface
	Houses   HouseServiceInterface
	Profiles ProfileServiceInterface
	Messages MessageSource
	Metrics  LoginRecorder
	Locales  []string
	Config   AuthHandlerConfig
	MaxImage int64
	// LoginLimit はログイン・登録の送信に掛けるレート制限。nilなら制限しない。
	LoginLimit func(http.Handler) http.Handler
}

var pageNames = []string{"home", "login", "register", "onboarding", "error", "loading", "profile", "babies", "houses"}

// NewPageHandler はテンプレートを読み込んでPageHandlerを生成する。
func NewPageHandler(deps PageHandlerDeps) (*PageHandler, error) {
	funcs := template.FuncMap{"imageURL": imageURL}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}

	return &PageHandler{
		auth:     deps.Auth,
		babies:   deps.Babies,
		houses:   deps.Houses,
		profiles: deps.Profiles,
		messages: deps.Messages,
		metrics:  deps.Metrics,
		locales:  deps.Locales,
		config:   deps.Config,
		maxImage: deps.MaxImage,
		limit:    deps.LoginLimit,
		pages:    pages,
		now:      time.Now,
	}, nil
}

// imageURL は画像として表示してよいURLだけを通す。data URLはプレビュー用。
func imageURL(s string) template.URL {
	switch {
	case strings.HasPrefix(s, "data:image/"),
		strings.HasPrefix(s, "https://"),
		strings.HasPrefix(s, "http://"),
		strings.HasPrefix(s, "/"):
		return template.URL(s)
	default:
		return ""
	}
}

// Routes はロケール配下の画面ルーティングを設定する。
func (h *PageHandler) Routes(r chi.Router) {
	limited := r
	if h.limit != nil {
		limited = r.With(h.limit)
	}

	r.Get("/", h.Home)
	r.Get("/login", h.LoginPage)
	limited.Post("/login", h.LoginSubmit)
	r.Get("/register", h.RegisterPage)
	limited.Post("/register", h.RegisterSubmit)
	r.Get("/onboarding", h.simple("onboarding", "onboarding.title"))
	r.Get("/error", h.simple("error", "errorPage.title"))
	r.Post("/logout", h.Logout)

	r.Route("/user", func(r chi.Router) {
		r.Get("/profile", h.ProfilePage)
		r.Post("/profile", h.ProfileSubmit)
		r.Post("/profile/withdraw", h.Withdraw)

		r.Get("/settings/baby", h.BabiesPage)
		r.Post("/settings/baby", h.BabySubmit)
		r.Post("/settings/baby/{id}", h.BabySubmit)
		r.Post("/settings/baby/{id}/delete", h.BabyDelete)

		r.Get("/settings/house", h.HousesPage)
		r.Post("/settings/house", h.HouseSubmit)
		r.Post("/settings/house/{id}", h.HouseSubmit)
		r.Post("/settings/house/{id}/delete", h.HouseDelete)
	})
}

// Loading はセッション状態の確定待ちの画面を返す。
func (h *PageHandler) Loading() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		h.render(w, r, http.StatusServiceUnavailable, "loading", &pageData{Title: "common.loading"})
	})
}

func (h *PageHandler) locale(r *http.Request) string {
	return requestLocale(r, h.config.DefaultLocale)
}

// render はレイアウト付きでページを描画する。共通の値はここで埋める。
func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data *pageData) {
	data.Locale = h.locale(r)
	data.Msg = h.messages.LoadMessages(data.Locale)
	data.User = middleware.UserFromContext(r.Context())
	data.CSRFToken = middleware.CSRFTokenFromContext(r.Context())
	data.Title = data.Msg.T(data.Title)
	if data.Submit == "" {
		data.Submit = "common.save"
	}

	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *PageHandler) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func (h *PageHandler) simple(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusOK, name, &pageData{Title: title})
	}
}

// Home はホーム画面を表示する。
// GET /{locale}
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "home", &pageData{Title: "navbar.home"})
}

// LoginPage はログイン画面を表示する。
// GET /{locale}/login
func (h *PageHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	p := form.MustNew(form.LoginFields(), form.LoginForm{})
	data := h.loginData(r, p)
	if r.URL.Query().Get("error") == "provider" {
		data.Error = "Sign-in with Google failed. Please try again."
	}
	h.render(w, r, http.StatusOK, "login", data)
}

func (h *PageHandler) loginData(r *http.Request, p *form.Pipeline[form.LoginForm]) *pageData {
	return &pageData{
		Title:  "auth.login",
		Action: session.LoginPath(h.locale(r)),
		Submit: "auth.login",
		Inputs: p.Inputs(),
		Error:  p.SubmitError(),
	}
}

// LoginSubmit はメールアドレスとパスワードでログインする。
// POST /{locale}/login
func (h *PageHandler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	p := form.MustNew(form.LoginFields(), form.LoginForm{})
	sub, err := decodeSubmission(r, p.Fields(), 0)
	if err != nil {
		h.render(w, r, middleware.StatusForError(err), "login", h.loginData(r, p))
		return
	}

	var user *model.User
	err = p.Submit(r.Context(), sub, func(ctx context.Context, f form.LoginForm, _ *storage.Image) error {
		s, u, err := h.auth.SignInWithPassword(ctx, f.Email, f.Password)
		if err != nil {
			return err
		}
		setSessionCookie(w, h.config, s.ID)
		user = u
		return nil
	})
	if err != nil {
		recordInvalid(h.metrics, "login", err)
		h.render(w, r, middleware.StatusForError(err), "login", h.loginData(r, p))
		return
	}

	h.metrics.RecordLogin(model.ProviderPassword)
	middleware.SetLocaleCookie(w, user.Language, h.config.CookieSecure, h.config.CookieDomain)
	h.redirect(w, r, session.HomePath(user.Language))
}

// RegisterPage はアカウント作成画面を表示する。
// GET /{locale}/register
func (h *PageHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	p := form.MustNew(form.RegisterFields(), form.RegisterForm{})
	h.render(w, r, http.StatusOK, "register", h.registerData(r, p))
}

func (h *PageHandler) registerData(r *http.Request, p *form.Pipeline[form.RegisterForm]) *pageData {
	return &pageData{
		Title:  "auth.createAccount",
		Action: "/" + h.locale(r) + "/register",
		Submit: "auth.createAccount",
		Inputs: p.Inputs(),
		Error:  p.SubmitError(),
	}
}

// RegisterSubmit はアカウントを作成してオンボーディングへ進む。
// POST /{locale}/register
func (h *PageHandler) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	p := form.MustNew(form.RegisterFields(), form.RegisterForm{})
	sub, err := decodeSubmission(r, p.Fields(), 0)
	if err != nil {
		h.render(w, r, middleware.StatusForError(err), "register", h.registerData(r, p))
		return
	}

	locale := h.locale(r)
	err = p.Submit(r.Context(), sub, func(ctx context.Context, f form.RegisterForm, _ *storage.Image) error {
		s, _, err := h.auth.CreateAccount(ctx, f.Email, f.Password, f.Name, locale)
		if err != nil {
			return err
		}
		setSessionCookie(w, h.config, s.ID)
		return nil
	})
	if err != nil {
		recordInvalid(h.metrics, "register", err)
		h.render(w, r, middleware.StatusForError(err), "register", h.registerData(r, p))
		return
	}

	h.metrics.RecordLogin(model.ProviderPassword)
	h.redirect(w, r, "/"+locale+"/onboarding")
}

// Logout はログアウトしてログイン画面へ戻す。
// POST /{locale}/logout
func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := middleware.SessionIDFromRequest(r); sessionID != "" {
		if err := h.auth.SignOut(r.Context(), sessionID); err != nil {
			slog.Error("failed to sign out", slog.String("error", err.Error()))
		} else {
			h.metrics.RecordLogout(metrics.LogoutManual)
		}
	}
	clearSessionCookie(w, h.config)
	h.redirect(w, r, session.LoginPath(h.locale(r)))
}

// ProfilePage はプロフィール編集画面を表示する。
// GET /{locale}/user/profile
func (h *PageHandler) ProfilePage(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.redirect(w, r, session.LoginPath(h.locale(r)))
		return
	}

	p := form.MustNew(form.ProfileFields(h.locales), form.ProfileFormFrom(user))
	data := h.profileData(r, p)
	if r.URL.Query().Get("saved") == "1" {
		data.Flash = h.messages.LoadMessages(h.locale(r)).T("profile.success")
	}
	h.render(w, r, http.StatusOK, "profile", data)
}

func (h *PageHandler) profileData(r *http.Request, p *form.Pipeline[form.ProfileForm]) *pageData {
	return &pageData{
		Title:  "profile.editProfile",
		Action: "/" + h.locale(r) + "/user/profile",
		Submit: "profile.update",
		Inputs: p.Inputs(),
		Error:  p.SubmitError(),
	}
}

// ProfileSubmit はプロフィールを更新する。
// 成功時はロケールCookieを更新し、新しい言語のプロフィール画面へ移動する。
// POST /{locale}/user/profile
func (h *PageHandler) ProfileSubmit(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.redirect(w, r, session.LoginPath(h.locale(r)))
		return
	}

	p := form.MustNew(form.ProfileFields(h.locales), form.ProfileFormFrom(user))
	sub, err := decodeSubmission(r, p.Fields(), h.maxImage)
	if err != nil {
		h.render(w, r, middleware.StatusForError(err), "profile", h.profileData(r, p))
		return
	}

	var updated *model.User
	err = p.Submit(r.Context(), sub, func(ctx context.Context, f form.ProfileForm, img *storage.Image) error {
		u, err := h.profiles.Update(ctx, user.ID, f, img)
		updated = u
		return err
	})
	if err != nil {
		recordInvalid(h.metrics, "profile", err)
		h.render(w, r, middleware.StatusForError(err), "profile", h.profileData(r, p))
		return
	}

	middleware.SetLocaleCookie(w, updated.Language, h.config.CookieSecure, h.config.CookieDomain)
	h.redirect(w, r, "/"+updated.Language+"/user/profile?saved=1")
}

// Withdraw は退会処理をしてログイン画面へ戻す。
// POST /{locale}/user/profile/withdraw
func (h *PageHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.redirect(w, r, session.LoginPath(h.locale(r)))
		return
	}

	if err := h.profiles.Withdraw(r.Context(), user.ID); err != nil {
		p := form.MustNew(form.ProfileFields(h.locales), form.ProfileFormFrom(user))
		data := h.profileData(r, p)
		data.Error = model.UserMessage(err)
		h.render(w, r, middleware.StatusForError(err), "profile", data)
		return
	}

	if sessionID := middleware.SessionIDFromRequest(r); sessionID != "" {
		if err := h.auth.SignOut(r.Context(), sessionID); err != nil {
			slog.Warn("failed to notify sign-out after withdrawal", slog.String("error", err.Error()))
		}
	}
	clearSessionCookie(w, h.config)
	h.redirect(w, r, session.LoginPath(h.locale(r)))
}

// --- 赤ちゃん ---

func (h *PageHandler) babyItems(r *http.Request, items []*model.Baby) []babyItem {
	msg := h.messages.LoadMessages(h.locale(r))
	word := func(key string) string {
		if key == "old" {
			return msg.T("baby.old")
		}
		return msg.T("common." + key)
	}

	now := h.now()
	out := make([]babyItem, len(items))
	for i, b := range items {
		out[i] = babyItem{
			ID:       b.ID,
			Name:     b.Name,
			Color:    b.Color,
			PhotoURL: b.PhotoURL,
			Age:      model.AgeAt(b.BirthDate, now).LabelFunc(word),
		}
	}
	return out
}

func (h *PageHandler) babiesData(r *http.Request, list *listview.Collection[*model.Baby], p *form.Pipeline[form.BabyForm], id string) *pageData {
	action := "/" + h.locale(r) + "/user/settings/baby"
	if id != "" {
		action += "/" + id
	}
	data := &pageData{
		Title:    "baby.babyList",
		Action:   action,
		Submit:   "common.save",
		Inputs:   p.Inputs(),
		Items:    h.babyItems(r, list.Items()),
		HasItems: len(list.Items()) > 0,
		Error:    p.SubmitError(),
	}
	if data.Error == "" {
		data.Error = list.Err()
	}
	if id == "" {
		data.Submit = "baby.register"
	}
	return data
}

// BabiesPage は赤ちゃん一覧と登録フォームを表示する。?edit={id}で編集フォームになる。
// GET /{locale}/user/settings/baby
func (h *PageHandler) BabiesPage(w http.ResponseWriter, r *http.Request) {
	list := listview.New[*model.Baby](h.babies)
	if err := list.Load(r.Context()); err != nil {
		slog.Error("failed to load babies", slog.String("error", err.Error()))
	}

	p := form.MustNew(form.BabyFields(), form.BabyDefaults())
	id := r.URL.Query().Get("edit")
	if id != "" {
		b, err := h.babies.Get(r.Context(), id)
		if err != nil {
			data := h.babiesData(r, list, p, "")
			data.Error = model.UserMessage(err)
			h.render(w, r, middleware.StatusForError(err), "babies", data)
			return
		}
		p.Load(form.BabyFormFrom(b))
	}
	h.render(w, r, http.StatusOK, "babies", h.babiesData(r, list, p, id))
}

// BabySubmit は赤ちゃんを登録・更新する。
// 成功時は保存結果を一覧に反映し、空の登録フォームを表示する。
// POST /{locale}/user/settings/baby[/{id}]
func (h *PageHandler) BabySubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	initial := form.BabyDefaults()
	if id != "" {
		current, err := h.babies.Get(r.Context(), id)
		var apiErr *model.APIError
		switch {
		case err == nil:
			initial = form.BabyFormFrom(current)
		case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeBabyNotFound:
		default:
			slog.Error("failed to load baby", slog.String("error", err.Error()))
		}
	}

	p := form.MustNew(form.BabyFields(), initial)
	list := listview.New[*model.Baby](h.babies)

	sub, err := decodeSubmission(r, p.Fields(), h.maxImage)
	if err == nil {
		var saved *model.Baby
		err = p.Submit(r.Context(), sub, func(ctx context.Context, f form.BabyForm, img *storage.Image) error {
			b, err := h.babies.Save(ctx, id, f, img)
			saved = b
			return err
		})
		if err == nil {
			if loadErr := list.Load(r.Context()); loadErr != nil {
				slog.Error("failed to load babies", slog.String("error", loadErr.Error()))
			}
			list.Reconcile(saved)

			data := h.babiesData(r, list, form.MustNew(form.BabyFields(), form.BabyDefaults()), "")
			data.Flash = h.messages.LoadMessages(h.locale(r)).T("common.success")
			h.render(w, r, http.StatusOK, "babies", data)
			return
		}
	}

	if loadErr := list.Load(r.Context()); loadErr != nil {
		slog.Error("failed to load babies", slog.String("error", loadErr.Error()))
	}
	recordInvalid(h.metrics, "baby", err)
	h.render(w, r, middleware.StatusForError(err), "babies", h.babiesData(r, list, p, id))
}

// BabyDelete は赤ちゃんを削除する。削除が確定した後にのみ一覧から取り除く。
// POST /{locale}/user/settings/baby/{id}/delete
func (h *PageHandler) BabyDelete(w http.ResponseWriter, r *http.Request) {
	list := listview.New[*model.Baby](h.babies)
	if err := list.Load(r.Context()); err != nil {
		slog.Error("failed to load babies", slog.String("error", err.Error()))
	}

	status := http.StatusOK
	if err := list.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		status = middleware.StatusForError(err)
	}
	p := form.MustNew(form.BabyFields(), form.BabyDefaults())
	h.render(w, r, status, "babies", h.babiesData(r, list, p, ""))
}

// --- 家庭 ---

func (h *PageHandler) housesData(r *http.Request, list *listview.Collection[*model.House], p *form.Pipeline[form.HouseForm], id string) *pageData {
	action := "/" + h.locale(r) + "/user/settings/house"
	if id != "" {
		action += "/" + id
	}
	data := &pageData{
		Title:    "house.houseList",
		Action:   action,
		Submit:   "common.save",
		Inputs:   p.Inputs(),
		Items:    list.Items(),
		HasItems: len(list.Items()) > 0,
		Error:    p.SubmitError(),
	}
	if data.Error == "" {
		data.Error = list.Err()
	}
	if id == "" {
		data.Submit = "house.register"
	}
	return data
}

// HousesPage は家庭一覧と登録フォームを表示する。?edit={id}で編集フォームになる。
// GET /{locale}/user/settings/house
func (h *PageHandler) HousesPage(w http.ResponseWriter, r *http.Request) {
	list := listview.New[*model.House](h.houses)
	if err := list.Load(r.Context()); err != nil {
		slog.Error("failed to load houses", slog.String("error", err.Error()))
	}

	p := form.MustNew(form.HouseFields(), form.HouseForm{})
	id := r.URL.Query().Get("edit")
	if id != "" {
		house, err := h.houses.Get(r.Context(), id)
		if err != nil {
			data := h.housesData(r, list, p, "")
			data.Error = model.UserMessage(err)
			h.render(w, r, middleware.StatusForError(err), "houses", data)
			return
		}
		p.Load(form.HouseFormFrom(house))
	}
	h.render(w, r, http.StatusOK, "houses", h.housesData(r, list, p, id))
}

// HouseSubmit は家庭を登録・更新する。
// POST /{locale}/user/settings/house[/{id}]
func (h *PageHandler) HouseSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	initial := form.HouseForm{}
	if id != "" {
		current, err := h.houses.Get(r.Context(), id)
		var apiErr *model.APIError
		switch {
		case err == nil:
			initial = form.HouseFormFrom(current)
		case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeHouseNotFound:
		default:
			slog.Error("failed to load house", slog.String("error", err.Error()))
		}
	}

	p := form.MustNew(form.HouseFields(), initial)
	list := listview.New[*model.House](h.houses)

	sub, err := decodeSubmission(r, p.Fields(), 0)
	if err == nil {
		var saved *model.House
		err = p.Submit(r.Context(), sub, func(ctx context.Context, f form.HouseForm, _ *storage.Image) error {
			house, err := h.houses.Save(ctx, id, f)
			saved = house
			return err
		})
		if err == nil {
			if loadErr := list.Load(r.Context()); loadErr != nil {
				slog.Error("failed to load houses", slog.String("error", loadErr.Error()))
			}
			list.Reconcile(saved)

			data := h.housesData(r, list, form.MustNew(form.HouseFields(), form.HouseForm{}), "")
			data.Flash = h.messages.LoadMessages(h.locale(r)).T("common.success")
			h.render(w, r, http.StatusOK, "houses", data)
			return
		}
	}

	if loadErr := list.Load(r.Context()); loadErr != nil {
		slog.Error("failed to load houses", slog.String("error", loadErr.Error()))
	}
	recordInvalid(h.metrics, "house", err)
	h.render(w, r, middleware.StatusForError(err), "houses", h.housesData(r, list, p, id))
}

// HouseDelete は家庭を削除する。削除が確定した後にのみ一覧から取り除く。
// POST /{locale}/user/settings/house/{id}/delete
func (h *PageHandler) HouseDelete(w http.ResponseWriter, r *http.Request) {
	list := listview.New[*model.House](h.houses)
	if err := list.Load(r.Context()); err != nil {
		slog.Error("failed to load houses", slog.String("error", err.Error()))
	}

	status := http.StatusOK
	if err := list.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		status = middleware.StatusForError(err)
	}
	p := form.MustNew(form.HouseFields(), form.HouseForm{})
	h.render(w, r, status, "houses", h.housesData(r, list, p, ""))
}
