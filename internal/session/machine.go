// Package session はログイン状態の状態機械とルートごとの表示判定を提供する。
//
// 状態はUnknownから始まり、認証通知によってAuthenticatedまたはAnonymousへ遷移する。
// 通知は空文字列のユーザーIDでサインアウトを表す。
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/babynest/internal/model"
)

// Status はセッションの状態種別。
type Status int

const (
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusAnonymous
)

// String は状態名を返す。
func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State はセッションの現在値。UserはAuthenticatedのときのみ非nil。
type State struct {
	Status Status
	User   *model.User
}

func (s State) userID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// UserFinder はユーザーレコードの取得を抽象化する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Source は認証通知の購読元。fnは購読直後に現在の値で1回、以後は変化のたびに呼ばれる。
type Source interface {
	Subscribe(ctx context.Context, sessionID string, fn func(userID string)) (unsubscribe func())
}

// Machine はセッション状態を保持する。
type Machine struct {
	users          UserFinder
	hydrateTimeout time.Duration

	mu        sync.Mutex
	state     State
	seq       uint64
	listeners map[int]func(State)
	nextID    int
	settled   chan struct{}
}

// NewMachine はUnknown状態のMachineを生成する。
func NewMachine(users UserFinder, hydrateTimeout time.Duration) *Machine {
	return &Machine{
		users:          users,
		hydrateTimeout: hydrateTimeout,
		listeners:      make(map[int]func(State)),
		settled:        make(chan struct{}),
	}
}

// State は現在の状態を返す。
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetUser はログイン直後やプロフィール更新後に状態を楽観的に上書きする。
// uがnilならAnonymousになる。処理中の取得結果は破棄される。
func (m *Machine) SetUser(u *model.User) {
	next := State{Status: StatusAnonymous}
	if u != nil {
		next = State{Status: StatusAuthenticated, User: u}
	}

	m.mu.Lock()
	m.seq++
	m.apply(next)
}

// Notify は認証通知を1件処理する。
// 空のuserIDはAnonymous、それ以外はユーザーレコードを取得してAuthenticatedにする。
// 取得に失敗した場合やレコードがない場合はAnonymousにする。
// 現在の状態と同じ通知は何もしない。
func (m *Machine) Notify(ctx context.Context, userID string) {
	m.mu.Lock()
	switch {
	case userID == "" && m.state.Status == StatusAnonymous:
		m.mu.Unlock()
		return
	case userID != "" && m.state.Status == StatusAuthenticated && m.state.userID() == userID:
		m.mu.Unlock()
		return
	}
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	next := State{Status: StatusAnonymous}
	if userID != "" {
		next = m.hydrate(ctx, userID)
	}

	m.mu.Lock()
	if seq != m.seq {
		// より新しい通知が先に反映された
		m.mu.Unlock()
		return
	}
	m.apply(next)
}

func (m *Machine) hydrate(ctx context.Context, userID string) State {
	if m.hydrateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.hydrateTimeout)
		defer cancel()
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		slog.Warn("failed to hydrate session user",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return State{Status: StatusAnonymous}
	}
	if user == nil {
		return State{Status: StatusAnonymous}
	}
	return State{Status: StatusAuthenticated, User: user}
}

// apply は状態を更新してロックを解放し、遷移があればリスナーへ通知する。
// 呼び出し時点でm.muを保持していること。
func (m *Machine) apply(next State) {
	prev := m.state
	m.state = next

	if prev.Status == StatusUnknown && next.Status != StatusUnknown {
		close(m.settled)
	}

	transitioned := prev.Status != next.Status || prev.userID() != next.userID()
	var fns []func(State)
	if transitioned {
		fns = make([]func(State), 0, len(m.listeners))
		for _, fn := range m.listeners {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

// Watch は状態遷移のたびにfnを呼ぶ。同じ状態への更新では呼ばない。
// 戻り値で登録を解除する。
func (m *Machine) Watch(fn func(State)) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// Attach はsrcの認証通知をこのMachineに流し込む。
// 戻り値は購読を解除する唯一の手段で、何度呼んでも1回だけ解除する。
func (m *Machine) Attach(src Source, sessionID string) (teardown func()) {
	ctx, cancel := context.WithCancel(context.Background())
	unsubscribe := src.Subscribe(ctx, sessionID, func(userID string) {
		if ctx.Err() != nil {
			return
		}
		m.Notify(ctx, userID)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			unsubscribe()
		})
	}
}

// Wait は状態がUnknownを抜けるまで待つ。
func (m *Machine) Wait(ctx context.Context) (State, error) {
	select {
	case <-m.settled:
		return m.State(), nil
	case <-ctx.Done():
		return m.State(), ctx.Err()
	}
}
