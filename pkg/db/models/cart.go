package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the per-user pending selection. Exactly one cart exists per user
// (unique index); it is created lazily on first access and never deleted.
// TotalPrice is always the sum of price x quantity over active items and is
// recomputed synchronously by every mutating cart operation.
type Cart struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_carts_user"`
	TotalPrice decimal.Decimal `gorm:"column:total_price;type:numeric(10,2);not null;default:0"`
	Items      []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// ActiveItems returns the items currently in the cart.
func (c *Cart) ActiveItems() []CartItem {
	items := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.IsActive {
			items = append(items, item)
		}
	}
	return items
}
