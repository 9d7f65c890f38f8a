package session

import "strings"

// Decision はルート表示の判定結果。
type Decision int

const (
	// RenderChildren はページをそのまま表示する。
	RenderChildren Decision = iota
	// RenderLoading は状態確定までの読み込み表示。
	RenderLoading
	// RedirectLogin はログインページへ移動させる。
	RedirectLogin
	// RedirectHome はホームへ移動させる。
	RedirectHome
)

// DefaultPublicRoutes はログインなしで表示できるページ。パスの末尾で照合する。
var DefaultPublicRoutes = []string{"/login", "/register", "/onboarding", "/error"}

// Gate はセッション状態からページの表示可否を決める。
type Gate struct {
	publicRoutes []string
}

// NewGate はGateを生成する。routesが空ならDefaultPublicRoutesを使う。
func NewGate(routes ...string) *Gate {
	if len(routes) == 0 {
		routes = DefaultPublicRoutes
	}
	return &Gate{publicRoutes: routes}
}

// IsPublic はpathが公開ルートかどうかを返す。
func (g *Gate) IsPublic(path string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, r := range g.publicRoutes {
		if strings.HasSuffix(path, r) {
			return true
		}
	}
	return false
}

// Decide はpathとstateから表示方法を決める。
func (g *Gate) Decide(path string, st State) Decision {
	if st.Status == StatusAuthenticated && strings.HasSuffix(strings.TrimSuffix(path, "/"), "/login") {
		return RedirectHome
	}
	if g.IsPublic(path) {
		return RenderChildren
	}

	switch st.Status {
	case StatusAuthenticated:
		return RenderChildren
	case StatusAnonymous:
		return RedirectLogin
	default:
		return RenderLoading
	}
}

// LoginPath はロケール付きのログインページのパスを返す。
func LoginPath(locale string) string {
	return "/" + locale + "/login"
}

// HomePath はロケール付きのホームのパスを返す。
func HomePath(locale string) string {
	return "/" + locale
}
