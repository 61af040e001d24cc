package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a product review with a 1-5 rating. One row exists per
// (user, product); removal deactivates the row and a later review reuses it.
type Comment struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_comments_user_product"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_comments_user_product"`
	Product   *Product  `gorm:"foreignKey:ProductID"`
	Text      string    `gorm:"column:text;not null"`
	Rating    int       `gorm:"column:rating;not null;default:5"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
