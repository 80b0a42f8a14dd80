package models

import (
	"time"

	"github.com/google/uuid"
)

// BankAccount is a refund destination on file for a user. ProviderCardID is
// the payout provider's token; an account without one cannot receive refunds.
type BankAccount struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	Nickname       string     `gorm:"column:nickname;type:text;not null"`
	Last4          string     `gorm:"column:last4;type:text;not null"`
	ProviderCardID *string    `gorm:"column:provider_card_id"`
	IsPrimary      bool       `gorm:"column:is_primary;not null;default:false"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true"`
	DeactivatedAt  *time.Time `gorm:"column:deactivated_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
