package models

import "time"

type EventAction string

const (
	EventActionCreate EventAction = "create"
	EventActionUpdate EventAction = "update"
	EventActionDelete EventAction = "delete"
	EventActionTake   EventAction = "take"
)

// EventLog: Append-only olay günlüğü (JSONL export/rotasyon için ham kaynak).
// Her kayıt ilgili entity'nin o anki halini payload olarak taşır.
type EventLog struct {
	ID      uint        `gorm:"primaryKey"`
	Ts      time.Time   `gorm:"autoCreateTime;index"`
	Model   string      `gorm:"size:32;not null;index:idx_event_logs_model_action,priority:1"`
	Action  EventAction `gorm:"size:16;not null;index:idx_event_logs_model_action,priority:2"`
	RefID   uint        `gorm:"not null;index"`
	Payload string      `gorm:"type:jsonb;not null;default:'null'"`
}
