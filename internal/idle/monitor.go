// Package idle は無操作時の自動ログアウトを管理する。
//
// 無操作がタイムアウトに達すると警告状態になり、1秒ごとのカウントダウンが
// 0に達した時点でサインアウト関数を1回だけ呼ぶ。
package idle

import (
	"sync"
	"time"
)

// State はMonitorの状態。
type State int

const (
	StateActive State = iota
	StateWarning
	StateLoggedOut
)

// String は状態名を返す。
func (s State) String() string {
	switch s {
	case StateWarning:
		return "warning"
	case StateLoggedOut:
		return "logged_out"
	default:
		return "active"
	}
}

// Timer はClock.AfterFuncが返すタイマー。
type Timer interface {
	Stop() bool
}

// Clock は時間経過を抽象化する。テストでは偽の時計に差し替える。
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock は実時間のClock。
var RealClock Clock = realClock{}

// Event は状態変化の通知。Remainingは警告中の残り秒数。
type Event struct {
	State     State
	Remaining int
}

// Config はMonitorの設定。
type Config struct {
	Timeout    time.Duration // 無操作と判定するまでの時間
	Countdown  int           // 警告から自動ログアウトまでのカウント数
	TickPeriod time.Duration // カウント1つ分の間隔
}

// DefaultConfig は既定の設定を返す。
func DefaultConfig() Config {
	return Config{
		Timeout:    100 * time.Minute,
		Countdown:  10,
		TickPeriod: time.Second,
	}
}

// Monitor は1つのセッションの無操作を監視する。
type Monitor struct {
	cfg      Config
	clock    Clock
	signOut  func()
	onChange func(Event)

	mu        sync.Mutex
	state     State
	remaining int
	gen       uint64
	idleTimer Timer
	tickTimer Timer
	started   bool
	stopped   bool
	signedOut bool
}

// New はMonitorを生成する。signOutは自動ログアウトまたはLogout時に1回だけ呼ばれる。
// onChangeはnilでもよい。
func New(cfg Config, clock Clock, signOut func(), onChange func(Event)) *Monitor {
	if clock == nil {
		clock = RealClock
	}
	if cfg.Countdown <= 0 {
		cfg.Countdown = DefaultConfig().Countdown
	}
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = DefaultConfig().TickPeriod
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Monitor{
		cfg:       cfg,
		clock:     clock,
		signOut:   signOut,
		onChange:  onChange,
		remaining: cfg.Countdown,
	}
}

// Start は無操作タイマーを開始する。2回目以降の呼び出しは何もしない。
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	m.armIdleLocked()
}

// State は現在の状態を返す。
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Remaining は警告中の残りカウントを返す。
func (m *Monitor) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

// Activity は利用者の操作を記録する。Active中のみ無操作タイマーを巻き戻す。
// 警告中の操作では警告を解除しない。
func (m *Monitor) Activity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.state != StateActive {
		return
	}
	m.armIdleLocked()
}

// StayActive は警告を解除してActiveに戻し、無操作タイマーとカウントを初期化する。
func (m *Monitor) StayActive() {
	m.mu.Lock()
	if m.stopped || m.state != StateWarning {
		m.mu.Unlock()
		return
	}
	m.stopTimersLocked()
	m.state = StateActive
	m.remaining = m.cfg.Countdown
	m.armIdleLocked()
	ev := Event{State: m.state, Remaining: m.remaining}
	m.mu.Unlock()

	m.emit(ev)
}

// Logout は警告中の「今すぐログアウト」操作。直ちにサインアウトする。
func (m *Monitor) Logout() {
	m.mu.Lock()
	m.finishLocked()
}

// Stop はすべてのタイマーを止める。以後サインアウトは呼ばれない。
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.stopTimersLocked()
}

func (m *Monitor) armIdleLocked() {
	m.stopTimersLocked()
	gen := m.gen
	m.idleTimer = m.clock.AfterFunc(m.cfg.Timeout, func() { m.onIdle(gen) })
}

func (m *Monitor) armTickLocked() {
	gen := m.gen
	m.tickTimer = m.clock.AfterFunc(m.cfg.TickPeriod, func() { m.onTick(gen) })
}

// stopTimersLocked は両方のタイマーを止め、発火済みのコールバックを無効にする。
func (m *Monitor) stopTimersLocked() {
	m.gen++
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	if m.tickTimer != nil {
		m.tickTimer.Stop()
		m.tickTimer = nil
	}
}

func (m *Monitor) onIdle(gen uint64) {
	m.mu.Lock()
	if m.stopped || gen != m.gen || m.state != StateActive {
		m.mu.Unlock()
		return
	}
	m.state = StateWarning
	m.remaining = m.cfg.Countdown
	m.idleTimer = nil
	m.armTickLocked()
	ev := Event{State: m.state, Remaining: m.remaining}
	m.mu.Unlock()

	m.emit(ev)
}

func (m *Monitor) onTick(gen uint64) {
	m.mu.Lock()
	if m.stopped || gen != m.gen || m.state != StateWarning {
		m.mu.Unlock()
		return
	}
	m.remaining--
	if m.remaining <= 0 {
		m.remaining = 0
		m.finishLocked()
		return
	}
	m.armTickLocked()
	ev := Event{State: m.state, Remaining: m.remaining}
	m.mu.Unlock()

	m.emit(ev)
}

// finishLocked はLoggedOutへ遷移してロックを解放し、サインアウトを1回だけ呼ぶ。
func (m *Monitor) finishLocked() {
	if m.stopped || m.signedOut {
		m.mu.Unlock()
		return
	}
	m.signedOut = true
	m.stopTimersLocked()
	m.state = StateLoggedOut
	ev := Event{State: m.state, Remaining: m.remaining}
	m.mu.Unlock()

	if m.signOut != nil {
		m.signOut()
	}
	m.emit(ev)
}

func (m *Monitor) emit(ev Event) {
	if m.onChange != nil {
		m.onChange(ev)
	}
}
