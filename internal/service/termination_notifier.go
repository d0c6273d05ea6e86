package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"session-service/internal/client"
	"session-service/internal/util"
)

// terminationEvent is the broadcast event name clients listen for.
const terminationEvent = "session-change"

// TerminationNotifier delivers a best-effort termination notice to a
// user's other connected clients.
type TerminationNotifier interface {
	// Notify blocks until the broadcast has been attempted or the
	// notifier's wait bound elapses, whichever comes first. It never
	// returns an error: failures are logged and swallowed.
	Notify(ctx context.Context, userID, terminatedSessionID string)
}

// NoopNotifier drops every notice. Used when no broadcast transport is
// configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, userID, terminatedSessionID string) {}

// terminationNotice is the wire payload published on the user's
// broadcast channel.
type terminationNotice struct {
	Event   string `json:"event"`
	Payload struct {
		TerminatedSessionID string `json:"terminated_session_id"`
	} `json:"payload"`
}

// UserUpdatesChannel derives the per-user broadcast topic name.
func UserUpdatesChannel(userID string) string {
	return "user-updates:" + userID
}

// RedisTerminationNotifier broadcasts termination notices over Redis
// Pub/Sub. Before publishing it opens its own subscription on the topic
// and waits for the transport's subscribe confirmation, so the publish
// only happens on a channel the broker has acknowledged.
type RedisTerminationNotifier struct {
	client  *client.RedisClient
	timeout time.Duration
	logger  *zap.Logger
}

func NewRedisTerminationNotifier(client *client.RedisClient, timeout time.Duration, logger *zap.Logger) *RedisTerminationNotifier {
	return &RedisTerminationNotifier{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// Notify runs the subscribe/publish handshake concurrently and waits up
// to the configured bound for the publish attempt. Exceeding the bound
// abandons the wait only: the broadcast keeps its own deadline and may
// still land after the caller has moved on.
func (n *RedisTerminationNotifier) Notify(ctx context.Context, userID, terminatedSessionID string) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		n.broadcast(userID, terminatedSessionID)
	}()

	select {
	case <-done:
	case <-time.After(n.timeout):
		n.logger.Warn("Gave up waiting for termination broadcast",
			util.String("user_id", userID),
			util.String("session_id", terminatedSessionID),
			util.Duration("timeout", n.timeout))
	case <-ctx.Done():
	}
}

func (n *RedisTerminationNotifier) broadcast(userID, terminatedSessionID string) {
	// Detached from the request context: cancelling the wait must not
	// cancel a broadcast already in flight.
	ctx, cancel := context.WithTimeout(context.Background(), 2*n.timeout)
	defer cancel()

	channel := UserUpdatesChannel(userID)

	pubsub := n.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	ack, err := pubsub.Receive(ctx)
	if err != nil {
		n.logger.Error("Failed to open termination broadcast subscription",
			util.String("channel", channel),
			util.ErrorField(err))
		return
	}
	if _, ok := ack.(*redis.Subscription); !ok {
		n.logger.Error("Unexpected subscribe acknowledgement",
			util.String("channel", channel))
		return
	}

	var notice terminationNotice
	notice.Event = terminationEvent
	notice.Payload.TerminatedSessionID = terminatedSessionID

	payload, err := json.Marshal(notice)
	if err != nil {
		n.logger.Error("Failed to encode termination notice", util.ErrorField(err))
		return
	}

	if err := n.client.Publish(ctx, channel, payload); err != nil {
		n.logger.Error("Failed to publish termination notice",
			util.String("channel", channel),
			util.ErrorField(err))
		return
	}

	n.logger.Info("Termination notice published",
		util.String("channel", channel),
		util.String("session_id", terminatedSessionID))
}
