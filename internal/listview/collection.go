// Package listview は一覧画面のコレクション状態を管理する。
package listview

import (
	"context"
	"sync"

	"github.com/hitoshi/babynest/internal/model"
)

// Entity は一覧に並べる要素。
type Entity interface {
	GetID() string
}

// Store は一覧の取得と削除を行う永続化層。
type Store[T Entity] interface {
	List(ctx context.Context) ([]T, error)
	Delete(ctx context.Context, id string) error
}

// Collection は一覧の現在値と直近のエラーを保持する。
type Collection[T Entity] struct {
	store Store[T]

	mu     sync.Mutex
	items  []T
	loaded bool
	err    string
}

// New はCollectionを生成する。
func New[T Entity](store Store[T]) *Collection[T] {
	return &Collection[T]{store: store}
}

// Load はコレクション全体を取得し直す。
func (c *Collection[T]) Load(ctx context.Context) error {
	items, err := c.store.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.err = model.UserMessage(err)
		return err
	}
	c.items = items
	c.loaded = true
	c.err = ""
	return nil
}

// Items は現在の要素のコピーを返す。
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

// Loaded は一度でも取得に成功したかを返す。
func (c *Collection[T]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Err は直近の失敗メッセージを返す。
func (c *Collection[T]) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Reconcile は同じIDの要素を置き換え、なければ末尾に追加する。
func (c *Collection[T]) Reconcile(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.items {
		if existing.GetID() == item.GetID() {
			c.items[i] = item
			return
		}
	}
	c.items = append(c.items, item)
}

// Remove は永続化層での削除が成功した後にのみ一覧から取り除く。
// 失敗した場合は一覧を変えずにエラーメッセージを設定する。
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		c.mu.Lock()
		c.err = model.UserMessage(err)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = ""
	for i, existing := range c.items {
		if existing.GetID() == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	return nil
}
