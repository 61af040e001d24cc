package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the canonical catalog listing. Quantity is the shared stock
// counter mutated only through guarded add/subtract statements.
type Product struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title        string          `gorm:"column:title;not null"`
	Slug         string          `gorm:"column:slug;not null;uniqueIndex"`
	Description  string          `gorm:"column:description;not null;default:''"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Quantity     int             `gorm:"column:quantity;not null;default:0"`
	CategoryID   uuid.UUID       `gorm:"column:category_id;type:uuid;not null"`
	Category     *Category       `gorm:"foreignKey:CategoryID"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true"`
	Rating       float64         `gorm:"column:rating;not null;default:0"`
	TotalRatings int             `gorm:"column:total_ratings;not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// InStock reports whether any units remain.
func (p *Product) InStock() bool {
	return p.Quantity > 0
}
