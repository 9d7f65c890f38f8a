package auth

import (
	"context"
	"log/slog"
	"sync"
)

// Relay は認証通知を他のインスタンスへ中継する。
type Relay interface {
	Publish(ctx context.Context, sessionID, userID string) error
}

// Broker はセッションごとの認証状態の変化を購読者へ配信する。
// userIDが空文字列の通知はサインアウトを表す。
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[int]func(userID string)
	nextID int
	relay  Relay
}

// NewBroker はBrokerを生成する。
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[int]func(string))}
}

// SetRelay はインスタンス間の中継先を設定する。
func (b *Broker) SetRelay(r Relay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relay = r
}

// Publish は同じインスタンスの購読者に配信し、中継先があれば中継する。
func (b *Broker) Publish(ctx context.Context, sessionID, userID string) {
	b.Deliver(sessionID, userID)

	b.mu.Lock()
	relay := b.relay
	b.mu.Unlock()
	if relay == nil {
		return
	}
	if err := relay.Publish(ctx, sessionID, userID); err != nil {
		slog.Warn("failed to relay auth notification",
			slog.String("error", err.Error()),
		)
	}
}

// Deliver はこのインスタンスの購読者にのみ配信する。
func (b *Broker) Deliver(sessionID, userID string) {
	b.mu.Lock()
	fns := make([]func(string), 0, len(b.subs[sessionID]))
	for _, fn := range b.subs[sessionID] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(userID)
	}
}

// subscribe はsessionIDの通知を購読する。戻り値で解除する。
func (b *Broker) subscribe(sessionID string, fn func(userID string)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[int]func(string))
	}
	b.subs[sessionID][id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[sessionID], id)
			if len(b.subs[sessionID]) == 0 {
				delete(b.subs, sessionID)
			}
		})
	}
}

// subscriberCount はsessionIDの購読者数を返す。
func (b *Broker) subscriberCount(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}
