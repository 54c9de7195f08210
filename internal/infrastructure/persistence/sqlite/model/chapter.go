package model

import (
	"time"

	"gorm.io/gorm"

	"shelfd/internal/domain/catalog"
)

// Chapter keeps the chapter index twice: OrderKey as ingested and OrderNum coerced
// to a number, which every ordering query uses.
type Chapter struct {
	ID        string    `gorm:"column:id;type:text;primaryKey"`
	SeriesID  string    `gorm:"column:series_id;type:text;not null;index:idx_chapters_series_order,priority:1;uniqueIndex:idx_chapters_series_slug,priority:1"`
	Slug      string    `gorm:"column:slug;type:text;not null;uniqueIndex:idx_chapters_series_slug,priority:2"`
	Title     string    `gorm:"column:title;type:text;not null;default:''"`
	OrderKey  string    `gorm:"column:order_key;type:text;not null;default:''"`
	OrderNum  float64   `gorm:"column:order_num;type:real;not null;default:0;index:idx_chapters_series_order,priority:2"`
	Images    []string  `gorm:"column:images;type:text;serializer:json"`
	Content   string    `gorm:"column:content;type:text;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// BeforeSave keeps OrderNum in step with OrderKey on every insert or update.
func (c *Chapter) BeforeSave(_ *gorm.DB) error {
	c.OrderNum = catalog.ParseOrderKey(c.OrderKey)
	return nil
}
