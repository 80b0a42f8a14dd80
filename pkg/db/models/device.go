package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cashdash/cashdash-backend/pkg/enums"
)

// Device holds a push token registered by a client app. The (user_id, token)
// pair is unique so re-registration upserts instead of duplicating.
type Device struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID            `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_devices_user_token"`
	Token      string               `gorm:"column:token;type:text;not null;uniqueIndex:idx_devices_user_token"`
	Platform   enums.DevicePlatform `gorm:"column:platform;type:device_platform;not null"`
	AppRole    enums.DeviceAppRole  `gorm:"column:app_role;type:device_app_role;not null"`
	IsActive   bool                 `gorm:"column:is_active;not null;default:true"`
	LastSeenAt *time.Time           `gorm:"column:last_seen_at"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
