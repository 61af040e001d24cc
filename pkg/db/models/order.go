package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bozorline/shop-backend/pkg/enums"
)

// Order is the immutable snapshot produced by checkout. Only Status (and
// incidental metadata) changes after creation; TotalPrice moves only through
// the explicit recalculation operation.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	TotalPrice      decimal.Decimal   `gorm:"column:total_price;type:numeric(10,2);not null;default:0"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:'new'"`
	ShippingAddress string            `gorm:"column:shipping_address;not null;default:''"`
	PhoneNumber     string            `gorm:"column:phone_number;not null;default:''"`
	Notes           string            `gorm:"column:notes;not null;default:''"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
