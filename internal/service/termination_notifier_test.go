package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"session-service/internal/client"
	"session-service/internal/util"
)

func newNotifierForTest(t *testing.T, timeout time.Duration) (*RedisTerminationNotifier, *goredis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	notifier := NewRedisTerminationNotifier(&client.RedisClient{Client: rdb}, timeout, util.Get())

	cleanup := func() {
		rdb.Close()
		mr.Close()
	}
	return notifier, rdb, cleanup
}

func TestNotifyPublishesTerminationNotice(t *testing.T) {
	notifier, rdb, cleanup := newNotifierForTest(t, 5*time.Second)
	defer cleanup()

	ctx := context.Background()

	// A connected client already listening on the user's channel.
	listener := rdb.Subscribe(ctx, UserUpdatesChannel("u1"))
	defer listener.Close()
	if _, err := listener.Receive(ctx); err != nil {
		t.Fatalf("listener subscribe: %v", err)
	}

	notifier.Notify(ctx, "u1", "s2")

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := listener.ReceiveMessage(recvCtx)
	if err != nil {
		t.Fatalf("listener never received the broadcast: %v", err)
	}

	var notice struct {
		Event   string `json:"event"`
		Payload struct {
			TerminatedSessionID string `json:"terminated_session_id"`
		} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	if notice.Event != "session-change" {
		t.Fatalf("event = %q, want session-change", notice.Event)
	}
	if notice.Payload.TerminatedSessionID != "s2" {
		t.Fatalf("terminated_session_id = %q, want s2", notice.Payload.TerminatedSessionID)
	}
}

func TestNotifyUnreachableTransportReturnsWithinBound(t *testing.T) {
	// Point at a port nothing listens on.
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	timeout := 200 * time.Millisecond
	notifier := NewRedisTerminationNotifier(&client.RedisClient{Client: rdb}, timeout, util.Get())

	start := time.Now()
	notifier.Notify(context.Background(), "u1", "s1")
	elapsed := time.Since(start)

	if elapsed > timeout+500*time.Millisecond {
		t.Fatalf("Notify blocked for %v, bound was %v", elapsed, timeout)
	}
}

func TestNotifyTimeoutDoesNotBlockCaller(t *testing.T) {
	notifier, rdb, cleanup := newNotifierForTest(t, 50*time.Millisecond)
	defer cleanup()

	// Kill the backing server so publish hangs or fails slowly.
	rdb.Close()

	start := time.Now()
	notifier.Notify(context.Background(), "u1", "s1")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Notify blocked for %v after transport loss", elapsed)
	}
}
