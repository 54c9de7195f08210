package model

import "time"

type Series struct {
	ID        string    `gorm:"column:id;type:text;primaryKey"`
	Slug      string    `gorm:"column:slug;type:text;not null;uniqueIndex"`
	Title     string    `gorm:"column:title;type:text;not null;index"`
	Thumb     string    `gorm:"column:thumb;type:text;not null;default:''"`
	Synopsis  string    `gorm:"column:synopsis;type:text;not null;default:''"`
	Author    string    `gorm:"column:author;type:text;not null;default:''"`
	Type      string    `gorm:"column:type;type:text;not null;default:'';index"`
	Status    string    `gorm:"column:status;type:text;not null;default:'';index"`
	Views     int64     `gorm:"column:views;not null;default:0;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime;index"`
}

func (Series) TableName() string {
	return "series"
}
