package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newRelayPair(t *testing.T) (*Broker, *Broker) {
	t.Helper()
	mr := miniredis.RunT(t)

	brokers := make([]*Broker, 2)
	for i := range brokers {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })

		brokers[i] = NewBroker()
		relay := NewRedisRelay(client, brokers[i], "")
		stop, err := relay.Start(context.Background())
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		t.Cleanup(stop)
	}
	return brokers[0], brokers[1]
}

func TestRedisRelay_DeliversToOtherInstance(t *testing.T) {
	a, b := newRelayPair(t)

	got := make(chan string, 1)
	unsub := b.subscribe("sess-1", func(userID string) { got <- userID })
	defer unsub()

	a.Publish(context.Background(), "sess-1", "")

	select {
	case userID := <-got:
		if userID != "" {
			t.Errorf("userID = %q, want sign-out", userID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relayed notification not delivered")
	}
}

func TestRedisRelay_IgnoresOwnMessages(t *testing.T) {
	a, _ := newRelayPair(t)

	got := make(chan string, 4)
	unsub := a.subscribe("sess-1", func(userID string) { got <- userID })
	defer unsub()

	a.Publish(context.Background(), "sess-1", "u1")

	if userID := <-got; userID != "u1" {
		t.Fatalf("local delivery = %q, want u1", userID)
	}
	select {
	case userID := <-got:
		t.Errorf("own relay message delivered twice: %q", userID)
	case <-time.After(200 * time.Millisecond):
	}
}
