package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"session-service/internal/client"
	"session-service/internal/models"
	"session-service/internal/util"
)

// AuditEmitter publishes session lifecycle events to the Kafka audit
// stream. A nil emitter, or one without a producer, drops events
// silently so the stream stays optional.
type AuditEmitter struct {
	producer *client.KafkaProducer
}

func NewAuditEmitter(producer *client.KafkaProducer) *AuditEmitter {
	return &AuditEmitter{producer: producer}
}

// Emit publishes one event keyed by user_id. Best-effort: failures are
// logged and never propagate to the operation that produced the event.
func (a *AuditEmitter) Emit(ctx context.Context, eventType, userID, sessionID, deviceInfo, ipAddress string) {
	if a == nil || a.producer == nil {
		return
	}

	event := models.SessionEvent{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		UserID:     userID,
		SessionID:  sessionID,
		DeviceInfo: deviceInfo,
		IPAddress:  ipAddress,
		OccurredAt: time.Now().UTC(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		util.Error("Failed to encode session event", util.ErrorField(err))
		return
	}

	publishCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := a.producer.Publish(publishCtx, []byte(userID), value); err != nil {
		util.Error("Failed to publish session event",
			util.String("event_type", eventType),
			util.String("user_id", userID),
			util.ErrorField(err))
		return
	}

	util.Debug("Session event published",
		util.String("event_type", eventType),
		util.String("event_id", event.EventID))
}
