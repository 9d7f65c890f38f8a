package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hitoshi/babynest/internal/idle"
	"github.com/hitoshi/babynest/internal/metrics"
	"github.com/hitoshi/babynest/internal/middleware"
	"github.com/hitoshi/babynest/internal/session"
)

const (
	idleWriteWait  = 5 * time.Second
	idlePongWait   = 60 * time.Second
	idlePingPeriod = idlePongWait * 9 / 10
	signOutTimeout = 5 * time.Second
)

// IdleAuth はアイドル監視チャネルが必要とする認証操作。
type IdleAuth interface {
	CurrentIdentity(ctx context.Context, sessionID string) (string, error)
	Subscribe(ctx context.Context, sessionID string, fn func(userID string)) func()
	SignOut(ctx context.Context, sessionID string) error
}

// IdleMetrics はアイドル監視の計測先。
type IdleMetrics interface {
	RecordLogout(reason string)
	RecordIdleWarning()
	IdleSocketOpened()
	IdleSocketClosed()
}

// idleServerMessage はサーバーからクライアントへのメッセージ。
type idleServerMessage struct {
	Type      string `json:"type"` // state | redirect
	State     string `json:"state,omitempty"`
	Remaining int    `json:"remaining"`
	Location  string `json:"location,omitempty"`
}

// idleClientMessage はクライアントからのメッセージ。
// typeは activity / stay / logout のいずれか。
type idleClientMessage struct {
	Type string `json:"type"`
}

// IdleHandler はログイン中のページとWebSocketで接続し、無操作による
// 自動ログアウトを管理する。接続ごとにidle.Monitorとsession.Machineを持つ。
type IdleHandler struct {
	auth           IdleAuth
	users          session.UserFinder
	metrics        IdleMetrics
	idle           idle.Config
	clock          idle.Clock
	hydrateTimeout time.Duration
	defaultLocale  string
	upgrader       websocket.Upgrader
}

// IdleHandlerConfig はIdleHandlerの設定。
type IdleHandlerConfig struct {
	Idle           idle.Config
	HydrateTimeout time.Duration
	DefaultLocale  string
}

// NewIdleHandler はIdleHandlerを生成する。
func NewIdleHandler(auth IdleAuth, users session.UserFinder, m IdleMetrics, cfg IdleHandlerConfig) *IdleHandler {
	return &IdleHandler{
		auth:           auth,
		users:          users,
		metrics:        m,
		idle:           cfg.Idle,
		clock:          idle.RealClock,
		hydrateTimeout: cfg.HydrateTimeout,
		defaultLocale:  cfg.DefaultLocale,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP はWebSocketへ切り替えて監視を開始する。
// GET /ws/idle
func (h *IdleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromRequest(r)
	userID, err := h.auth.CurrentIdentity(r.Context(), sessionID)
	if err != nil {
		slog.Error("failed to resolve session for idle channel", slog.String("error", err.Error()))
	}
	if err != nil || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("failed to upgrade idle channel", slog.String("error", err.Error()))
		return
	}

	h.metrics.IdleSocketOpened()
	defer h.metrics.IdleSocketClosed()

	c := &idleConn{conn: conn, done: make(chan struct{})}
	h.run(c, sessionID, requestLocale(r, h.defaultLocale))
}

func (h *IdleHandler) run(c *idleConn, sessionID, locale string) {
	defer c.conn.Close()

	var countdown int
	var manual atomic.Bool
	mon := idle.New(h.idle, h.clock, func() {
		ctx, cancel := context.WithTimeout(context.Background(), signOutTimeout)
		defer cancel()
		if err := h.auth.SignOut(ctx, sessionID); err != nil {
			slog.Error("failed to sign out idle session", slog.String("error", err.Error()))
			c.finish()
			return
		}
		reason := metrics.LogoutIdle
		if manual.Load() {
			reason = metrics.LogoutManual
		}
		h.metrics.RecordLogout(reason)
	}, func(ev idle.Event) {
		if ev.State == idle.StateWarning && ev.Remaining == countdown {
			h.metrics.RecordIdleWarning()
		}
		c.send(idleServerMessage{Type: "state", State: ev.State.String(), Remaining: ev.Remaining})
	})
	countdown = mon.Remaining()
	defer mon.Stop()

	machine := session.NewMachine(h.users, h.hydrateTimeout)
	stopWatch := machine.Watch(func(st session.State) {
		if st.Status != session.StatusAnonymous {
			return
		}
		// 他の経路でサインアウトされた場合も、ここでカウントダウンを止める
		mon.Stop()
		c.send(idleServerMessage{Type: "redirect", Location: session.LoginPath(locale)})
		c.finish()
	})
	defer stopWatch()
	teardown := machine.Attach(h.auth, sessionID)
	defer teardown()

	mon.Start()

	c.send(idleServerMessage{Type: "state", State: mon.State().String(), Remaining: mon.Remaining()})

	go c.readLoop(func(msg idleClientMessage) {
		switch msg.Type {
		case "activity":
			mon.Activity()
		case "stay":
			mon.StayActive()
		case "logout":
			manual.Store(true)
			mon.Logout()
		}
	})

	ticker := time.NewTicker(idlePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(idleWriteWait))
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(idleWriteWait)); err != nil {
				return
			}
		}
	}
}

// idleConn は1本のWebSocket接続。書き込みは直列化する。
type idleConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (c *idleConn) send(msg idleServerMessage) {
	select {
	case <-c.done:
		return
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(idleWriteWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		slog.Warn("failed to write idle message", slog.String("error", err.Error()))
		c.finish()
	}
}

func (c *idleConn) finish() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *idleConn) readLoop(handle func(idleClientMessage)) {
	defer c.finish()

	c.conn.SetReadDeadline(time.Now().Add(idlePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idlePongWait))
	})
	for {
		var msg idleClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(idlePongWait))
		handle(msg)
	}
}
