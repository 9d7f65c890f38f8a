package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// DefaultRelayChannel は認証通知を中継するRedisチャンネル名。
const DefaultRelayChannel = "babynest:auth"

type relayMessage struct {
	Origin    string `json:"origin"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// RedisRelay はRedis Pub/Subで認証通知をインスタンス間に中継する。
type RedisRelay struct {
	client  *redis.Client
	channel string
	broker  *Broker
	origin  string
}

// NewRedisRelay はRedisRelayを生成し、brokerの中継先として登録する。
func NewRedisRelay(client *redis.Client, broker *Broker, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	r := &RedisRelay{
		client:  client,
		channel: channel,
		broker:  broker,
		origin:  uuid.New().String(),
	}
	broker.SetRelay(r)
	return r
}

// Publish は通知をRedisへ送る。
func (r *RedisRelay) Publish(ctx context.Context, sessionID, userID string) error {
	payload, err := json.Marshal(relayMessage{Origin: r.origin, SessionID: sessionID, UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to encode relay message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish relay message: %w", err)
	}
	return nil
}

// Start はチャンネルの購読を確立し、受信ループをバックグラウンドで開始する。
// 自インスタンスが送った通知は無視する。戻り値のstopで購読を終了する。
func (r *RedisRelay) Start(ctx context.Context) (stop func(), err error) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe relay channel: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			var m relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				slog.Warn("invalid relay message", slog.String("error", err.Error()))
				continue
			}
			if m.Origin == r.origin {
				continue
			}
			r.broker.Deliver(m.SessionID, m.UserID)
		}
	}()

	slog.Info("auth relay started", slog.String("channel", r.channel))
	return func() {
		pubsub.Close()
		<-done
	}, nil
}
