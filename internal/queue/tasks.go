package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names double as queue routing keys.
const (
	TypeLogNotification     = "email:log_notification"
	TypeClientViewed        = "email:client_viewed"
	TypeSubscriptionEmail   = "email:subscription"
	TypeWeeklyRecap         = "email:weekly_recap"
	TypeRecapFanout         = "email:recap_fanout"
	TypeExpireSubscriptions = "billing:expire_subscriptions"
)

// Payloads carry ids only; workers reload current state from the database so
// a task delayed in the queue never emails stale data.

type LogNotificationPayload struct {
	LogID uuid.UUID `json:"log_id"`
}

type ClientViewedPayload struct {
	ClientID uuid.UUID `json:"client_id"`
}

const (
	SubscriptionActivated = "activated"
	SubscriptionExpired   = "expired"
)

type SubscriptionEmailPayload struct {
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Kind        string    `json:"kind"` // activated | expired
}

type WeeklyRecapPayload struct {
	WorkspaceID uuid.UUID `json:"workspace_id"`
}

func NewLogNotificationTask(logID uuid.UUID) (*asynq.Task, error) {
	return marshalTask(TypeLogNotification, LogNotificationPayload{LogID: logID})
}

func NewClientViewedTask(clientID uuid.UUID) (*asynq.Task, error) {
	return marshalTask(TypeClientViewed, ClientViewedPayload{ClientID: clientID})
}

func NewSubscriptionEmailTask(workspaceID uuid.UUID, kind string) (*asynq.Task, error) {
	return marshalTask(TypeSubscriptionEmail, SubscriptionEmailPayload{WorkspaceID: workspaceID, Kind: kind})
}

func NewWeeklyRecapTask(workspaceID uuid.UUID) (*asynq.Task, error) {
	return marshalTask(TypeWeeklyRecap, WeeklyRecapPayload{WorkspaceID: workspaceID})
}

func NewRecapFanoutTask() *asynq.Task {
	return asynq.NewTask(TypeRecapFanout, nil)
}

func NewExpireSubscriptionsTask() *asynq.Task {
	return asynq.NewTask(TypeExpireSubscriptions, nil)
}

func marshalTask(typ string, payload interface{}) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return asynq.NewTask(typ, data), nil
}
