package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups products; a nil ParentID marks a root category.
type Category struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string     `gorm:"column:name;not null"`
	Slug      string     `gorm:"column:slug;not null;uniqueIndex"`
	ParentID  *uuid.UUID `gorm:"column:parent_id;type:uuid"`
	IsActive  bool       `gorm:"column:is_active;not null;default:true"`
	Children  []Category `gorm:"foreignKey:ParentID"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
