package model

type SeriesTag struct {
	SeriesID string `gorm:"column:series_id;type:text;not null;primaryKey"`
	Tag      string `gorm:"column:tag;type:text;not null;primaryKey;index"`
}

func (SeriesTag) TableName() string {
	return "series_tags"
}
