package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cashdash/cashdash-backend/pkg/enums"
)

// OrderEvent is the append-only audit trail for an order. Rows are written in
// the same transaction as the status change they describe and never updated.
type OrderEvent struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	Type      enums.OrderEventType `gorm:"column:type;type:order_event_type;not null"`
	ActorID   *uuid.UUID           `gorm:"column:actor_id;type:uuid"`
	Metadata  json.RawMessage      `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}
